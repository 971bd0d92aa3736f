// Package store persists save documents, rate-limit and idempotency
// records, and leaderboard entries behind per-record optimistic
// transactions. Backends provide read-modify-write atomicity scoped to the
// records touched by one Update call; contention is retried inside the
// backend and never surfaced to callers.
package store

import (
	"context"

	"github.com/catjump/catjump/pkg/types"
)

// Tx is the view of the store inside one atomic transaction. All writes
// staged through a Tx commit together or not at all.
type Tx interface {
	GetSave(uid string) (*types.SaveSnapshot, error)
	PutSave(uid string, snapshot *types.SaveSnapshot) error
	GetRateLimit(uid, operation string) (*types.RateLimitRecord, error)
	PutRateLimit(uid, operation string, record *types.RateLimitRecord) error
	GetIdempotency(uid, key string) (*types.IdempotencyRecord, error)
	PutIdempotency(uid, key string, record *types.IdempotencyRecord) error
	GetEntry(uid string) (*types.LeaderboardEntry, error)
	PutEntry(entry *types.LeaderboardEntry) error
	PutWeeklyEntry(entry *types.LeaderboardEntry) error
}

type Store interface {
	Close(ctx context.Context) error

	// Update runs fn against a transactional view and commits atomically,
	// retrying transparently when a concurrent commit touched the same
	// records. Returning an error from fn aborts the transaction.
	Update(ctx context.Context, fn func(tx Tx) error) error

	GetSave(ctx context.Context, uid string) (*types.SaveSnapshot, error)
	PutSave(ctx context.Context, uid string, snapshot *types.SaveSnapshot) error

	// TopEntries returns up to limit leaderboard entries ordered by score
	// descending.
	TopEntries(ctx context.Context, limit int) ([]types.LeaderboardEntry, error)
	TopWeeklyEntries(ctx context.Context, weekID string, limit int) ([]types.LeaderboardEntry, error)

	// Retention deletes. Each removes at most limit records and reports how
	// many were deleted, so callers can loop in bounded batches.
	DeleteRateLimitsBefore(ctx context.Context, cutoff int64, limit int) (int, error)
	DeleteIdempotencyExpired(ctx context.Context, now int64, limit int) (int, error)
	DeleteWeeklyEntries(ctx context.Context, limit int) (int, error)
}
