// Package workers contains the scheduled batch jobs: retention cleanup of
// rate-limit and idempotency records, and weekly leaderboard rotation.
// Each job is stateless and idempotent, and deletes in bounded batches to
// respect storage-layer transaction limits.
package workers

import (
	"context"
	"time"

	"github.com/catjump/catjump/pkg/log"
	"github.com/catjump/catjump/pkg/store"
)

// DefaultBatchSize caps deletes per batch.
const DefaultBatchSize = 500

// RateLimitTTL is how long an idle rate-limit record is kept.
const RateLimitTTL = 24 * time.Hour

// CleanupRateLimits deletes rate-limit records idle for longer than
// RateLimitTTL, looping in batches until drained. Returns the total
// deleted.
func CleanupRateLimits(ctx context.Context, s store.Store, batchSize int) (int, error) {
	cutoff := time.Now().Add(-RateLimitTTL).UnixMilli()
	total := 0
	for {
		deleted, err := s.DeleteRateLimitsBefore(ctx, cutoff, batchSize)
		if err != nil {
			return total, err
		}
		total += deleted
		if deleted < batchSize {
			return total, nil
		}
	}
}

// CleanupIdempotencyKeys deletes expired idempotency records, looping in
// batches until drained. Returns the total deleted.
func CleanupIdempotencyKeys(ctx context.Context, s store.Store, batchSize int) (int, error) {
	now := time.Now().UnixMilli()
	total := 0
	for {
		deleted, err := s.DeleteIdempotencyExpired(ctx, now, batchSize)
		if err != nil {
			return total, err
		}
		total += deleted
		if deleted < batchSize {
			return total, nil
		}
	}
}

type RetentionWorker struct {
	store     store.Store
	interval  time.Duration
	batchSize int
}

type NewRetentionWorkerOptions struct {
	Store     store.Store
	Interval  time.Duration
	BatchSize int
}

// NewRetentionWorker creates a worker that periodically runs both cleanup
// jobs. Deployments with an external scheduler can run cmd/jobs instead.
func NewRetentionWorker(opts NewRetentionWorkerOptions) *RetentionWorker {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &RetentionWorker{
		store:     opts.Store,
		interval:  opts.Interval,
		batchSize: batchSize,
	}
}

func (w *RetentionWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

func (w *RetentionWorker) run(ctx context.Context) {
	deleted, err := CleanupRateLimits(ctx, w.store, w.batchSize)
	if err != nil {
		log.Error("Failed to clean up rate limit records: %v", err)
	} else {
		log.Info("Cleaned up %d old rate limit records", deleted)
	}

	deleted, err = CleanupIdempotencyKeys(ctx, w.store, w.batchSize)
	if err != nil {
		log.Error("Failed to clean up idempotency records: %v", err)
	} else {
		log.Info("Cleaned up %d expired idempotency records", deleted)
	}
}
