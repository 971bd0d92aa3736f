package workers

import (
	"context"
	"time"

	"github.com/catjump/catjump/pkg/leaderboard"
	"github.com/catjump/catjump/pkg/log"
	"github.com/catjump/catjump/pkg/store"
)

// ResetWeeklyLeaderboard deletes all weekly entries in bounded batches,
// looping until the collection is empty. Safe to re-run.
func ResetWeeklyLeaderboard(ctx context.Context, s store.Store, batchSize int) (int, error) {
	total := 0
	for {
		deleted, err := s.DeleteWeeklyEntries(ctx, batchSize)
		if err != nil {
			return total, err
		}
		total += deleted
		if deleted < batchSize {
			return total, nil
		}
	}
}

// WeeklyResetWorker rotates the weekly leaderboard when the ISO week id
// changes. It only fires on a boundary observed while running; a rotation
// missed during downtime is covered by week-id filtering on reads and the
// next boundary's wipe.
type WeeklyResetWorker struct {
	store      store.Store
	interval   time.Duration
	batchSize  int
	lastWeekID string
	now        func() time.Time
}

type NewWeeklyResetWorkerOptions struct {
	Store     store.Store
	Interval  time.Duration
	BatchSize int
}

func NewWeeklyResetWorker(opts NewWeeklyResetWorkerOptions) *WeeklyResetWorker {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &WeeklyResetWorker{
		store:     opts.Store,
		interval:  opts.Interval,
		batchSize: batchSize,
		now:       time.Now,
	}
}

func (w *WeeklyResetWorker) Start(ctx context.Context) {
	w.lastWeekID = leaderboard.WeekID(w.now())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			weekID := leaderboard.WeekID(w.now())
			if weekID == w.lastWeekID {
				continue
			}
			deleted, err := ResetWeeklyLeaderboard(ctx, w.store, w.batchSize)
			if err != nil {
				log.Error("Failed to reset weekly leaderboard: %v", err)
				continue
			}
			log.Info("Weekly leaderboard reset for %s: %d entries deleted", weekID, deleted)
			w.lastWeekID = weekID
		}
	}
}
