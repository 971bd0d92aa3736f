package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/catjump/catjump/pkg/api"
	authproviders "github.com/catjump/catjump/pkg/auth/providers"
	"github.com/catjump/catjump/pkg/config"
	"github.com/catjump/catjump/pkg/leaderboard"
	"github.com/catjump/catjump/pkg/log"
	"github.com/catjump/catjump/pkg/ratelimit"
	"github.com/catjump/catjump/pkg/rewards"
	"github.com/catjump/catjump/pkg/store"
	"github.com/catjump/catjump/pkg/version"
	"github.com/catjump/catjump/pkg/workers"
)

func main() {
	port := flag.Int("port", 0, "port to listen on (overrides CATJUMP_PORT)")
	logLevel := flag.String("log-level", "", "Log level (overrides CATJUMP_LOG_LEVEL)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	parsedLogLevel, err := log.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting server version %s", version.Get())
	ctx := context.Background()

	s, err := newStoreFromURL(ctx, cfg.StoreURL)
	if err != nil {
		panic(fmt.Sprintf("Failed to create store: %v", err))
	}
	defer s.Close(ctx)

	authProvider, err := newAuthProvider(ctx, cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to create auth provider: %v", err))
	}

	limiter := ratelimit.NewLimiter(ratelimit.NewLimiterOptions{
		Store:      s,
		FailClosed: cfg.RateLimitFailClosed,
	})
	processor := rewards.NewProcessor(rewards.NewProcessorOptions{
		Store:          s,
		IdempotencyTTL: cfg.IdempotencyTTL,
	})
	leaderboardService := leaderboard.NewService(leaderboard.NewServiceOptions{
		Store: s,
	})

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	retentionWorker := workers.NewRetentionWorker(workers.NewRetentionWorkerOptions{
		Store:    s,
		Interval: time.Hour,
	})
	go retentionWorker.Start(workerCtx)

	weeklyResetWorker := workers.NewWeeklyResetWorker(workers.NewWeeklyResetWorkerOptions{
		Store:    s,
		Interval: time.Minute,
	})
	go weeklyResetWorker.Start(workerCtx)

	apiServerOpts := api.NewAPIServerOptions{
		Port:         cfg.Port,
		AuthProvider: authProvider,
		Store:        s,
		Limiter:      limiter,
		Rewards:      processor,
		Leaderboard:  leaderboardService,
	}
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		apiServerOpts.TLS = &api.TLSConfig{
			CertFile: cfg.TLSCertFile,
			KeyFile:  cfg.TLSKeyFile,
		}
	}
	server := api.NewAPIServer(apiServerOpts)
	go server.Start()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop server: %v", err)
	}
}

func newAuthProvider(ctx context.Context, cfg *config.Config) (authproviders.AuthProvider, error) {
	switch cfg.AuthProvider {
	case "firebase":
		return authproviders.NewFirebaseAuthProvider(ctx, cfg.FirebaseProjectID, cfg.FirebaseAPIKey)
	case "jwt":
		return authproviders.NewJWTAuthProvider(cfg.JWTSecret), nil
	default:
		return nil, fmt.Errorf("unknown auth provider %s", cfg.AuthProvider)
	}
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
