package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/catjump/catjump/pkg/config"
	"github.com/catjump/catjump/pkg/log"
	"github.com/catjump/catjump/pkg/store"
	"github.com/catjump/catjump/pkg/workers"
)

// One-shot maintenance jobs, for deployments that schedule cleanups
// externally (cron, Cloud Scheduler) instead of running the in-process
// workers.
func main() {
	job := flag.String("job", "", "job to run: weekly-reset, cleanup-idempotency, cleanup-rate-limits")
	batchSize := flag.Int("batch-size", workers.DefaultBatchSize, "max deletes per batch")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx := context.Background()

	s, err := newStoreFromURL(ctx, cfg.StoreURL)
	if err != nil {
		panic(fmt.Sprintf("Failed to create store: %v", err))
	}
	defer s.Close(ctx)

	var deleted int
	switch *job {
	case "weekly-reset":
		deleted, err = workers.ResetWeeklyLeaderboard(ctx, s, *batchSize)
	case "cleanup-idempotency":
		deleted, err = workers.CleanupIdempotencyKeys(ctx, s, *batchSize)
	case "cleanup-rate-limits":
		deleted, err = workers.CleanupRateLimits(ctx, s, *batchSize)
	default:
		panic(fmt.Sprintf("Unknown job %q", *job))
	}
	if err != nil {
		panic(fmt.Sprintf("Job %s failed after deleting %d records: %v", *job, deleted, err))
	}

	log.Info("Job %s deleted %d records", *job, deleted)
}

func newStoreFromURL(ctx context.Context, rawURL string) (store.Store, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse store URL: %v", err)
	}

	switch u.Scheme {
	case "memory":
		return store.NewInMemoryStore(), nil
	case "sqlite":
		return store.NewSQLiteStore(ctx, u.Host+u.Path)
	case "postgres", "postgresql":
		return store.NewPostgresStore(ctx, u.String())
	case "redis":
		password, _ := u.User.Password()
		db := 0
		if path := strings.TrimPrefix(u.Path, "/"); path != "" {
			db, err = strconv.Atoi(path)
			if err != nil {
				return nil, fmt.Errorf("invalid redis database number %q", path)
			}
		}
		return store.NewRedisStore(ctx, u.Host, password, db)
	default:
		return nil, fmt.Errorf("unknown store type %s", u.Scheme)
	}
}
