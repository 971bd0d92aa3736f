// Package ratelimit implements per-user sliding-window admission control
// backed by the store's optimistic transactions.
package ratelimit

import (
	"context"
	"time"

	"github.com/catjump/catjump/pkg/log"
	"github.com/catjump/catjump/pkg/store"
	"github.com/catjump/catjump/pkg/types"
)

// Operation names guarded by admission control.
const (
	OpValidateScore     = "validateScore"
	OpGrantReward       = "grantReward"
	OpUpdateLeaderboard = "updateLeaderboard"
)

// Config is the limit for one operation.
type Config struct {
	MaxRequests int
	WindowMs    int64
}

// DefaultConfigs mirrors the per-operation limits of the original service.
func DefaultConfigs() map[string]Config {
	return map[string]Config{
		OpValidateScore:     {MaxRequests: 10, WindowMs: 60 * 1000},
		OpGrantReward:       {MaxRequests: 5, WindowMs: 60 * 1000},
		OpUpdateLeaderboard: {MaxRequests: 10, WindowMs: 60 * 1000},
	}
}

type Limiter struct {
	store      store.Store
	configs    map[string]Config
	failClosed bool
	now        func() time.Time
}

type NewLimiterOptions struct {
	Store   store.Store
	Configs map[string]Config
	// FailClosed rejects requests when the admission check itself fails.
	// Default is fail-open: a storage error lets the request through.
	FailClosed bool
}

func NewLimiter(opts NewLimiterOptions) *Limiter {
	configs := opts.Configs
	if configs == nil {
		configs = DefaultConfigs()
	}
	return &Limiter{
		store:      opts.Store,
		configs:    configs,
		failClosed: opts.FailClosed,
		now:        time.Now,
	}
}

// Admit reports whether uid may perform operation right now. It runs one
// atomic read-modify-write transaction: timestamps outside the window are
// dropped, and the request is recorded only when admitted. Operations
// without a configured limit are always admitted.
func (l *Limiter) Admit(ctx context.Context, uid, operation string) bool {
	config, ok := l.configs[operation]
	if !ok {
		return true
	}

	now := l.now().UnixMilli()
	windowStart := now - config.WindowMs

	limited := false
	err := l.store.Update(ctx, func(tx store.Tx) error {
		record, err := tx.GetRateLimit(uid, operation)
		if err != nil {
			if !store.IsNotFound(err) {
				return err
			}
			record = &types.RateLimitRecord{}
		}

		recent := record.Requests[:0]
		for _, timestamp := range record.Requests {
			if timestamp > windowStart {
				recent = append(recent, timestamp)
			}
		}

		if len(recent) >= config.MaxRequests {
			limited = true
			return nil
		}

		record.Requests = append(recent, now)
		record.UpdatedAt = now
		return tx.PutRateLimit(uid, operation, record)
	})
	if err != nil {
		log.Error("Rate limit check failed for %s/%s: %v", uid, operation, err)
		return !l.failClosed
	}

	return !limited
}
