package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/catjump/catjump/pkg/log"
	"github.com/catjump/catjump/pkg/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS saves (
	uid TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	last_saved BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS rate_limits (
	uid TEXT NOT NULL,
	operation TEXT NOT NULL,
	data TEXT NOT NULL,
	updated_at BIGINT NOT NULL,
	PRIMARY KEY (uid, operation)
);
CREATE INDEX IF NOT EXISTS idx_rate_limits_updated_at ON rate_limits (updated_at);
CREATE TABLE IF NOT EXISTS idempotency_keys (
	uid TEXT NOT NULL,
	key TEXT NOT NULL,
	data TEXT NOT NULL,
	expires_at BIGINT NOT NULL,
	PRIMARY KEY (uid, key)
);
CREATE INDEX IF NOT EXISTS idx_idempotency_keys_expires_at ON idempotency_keys (expires_at);
CREATE TABLE IF NOT EXISTS leaderboard (
	uid TEXT PRIMARY KEY,
	nickname TEXT NOT NULL,
	score BIGINT NOT NULL,
	floor BIGINT NOT NULL,
	updated_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_leaderboard_score ON leaderboard (score DESC);
CREATE TABLE IF NOT EXISTS leaderboard_weekly (
	uid TEXT PRIMARY KEY,
	nickname TEXT NOT NULL,
	score BIGINT NOT NULL,
	floor BIGINT NOT NULL,
	updated_at BIGINT NOT NULL,
	week_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_leaderboard_weekly_score ON leaderboard_weekly (score DESC);
`

// maxTxAttempts bounds the retry loop for serialization failures.
const maxTxAttempts = 5

type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = &PostgresStore{}

// NewPostgresStore connects to the database and ensures the schema exists.
// The caller is responsible for calling Close() on the store.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %v", err)
	}

	var username string
	var database string
	if err := pool.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database); err != nil {
		return nil, fmt.Errorf("failed to query database: %v", err)
	}
	log.Info("Connected to %s as %s", database, username)

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %v", err)
	}

	return &PostgresStore{
		pool: pool,
	}, nil
}

func (s *PostgresStore) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}

type postgresTx struct {
	ctx context.Context
	tx  pgx.Tx
}

// Update runs fn in a serializable transaction and retries on detected
// serialization failures, so concurrent read-modify-write cycles on the
// same records behave like Firestore's optimistic transactions.
func (s *PostgresStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.updateOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) {
			return err
		}
		lastErr = err
		log.Debug("Retrying transaction after serialization failure (attempt %d)", attempt+1)
	}
	return fmt.Errorf("transaction failed after %d attempts: %v", maxTxAttempts, lastErr)
}

func (s *PostgresStore) updateOnce(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&postgresTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// 40001 serialization_failure, 40P01 deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func (t *postgresTx) GetSave(uid string) (*types.SaveSnapshot, error) {
	q := `SELECT data FROM saves WHERE uid = $1 FOR UPDATE;`
	var data string
	if err := t.tx.QueryRow(t.ctx, q, uid).Scan(&data); err != nil {
		if err == pgx.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan save: %v", err)
	}
	snapshot := &types.SaveSnapshot{}
	if err := json.Unmarshal([]byte(data), snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal save: %v", err)
	}
	return snapshot, nil
}

func (t *postgresTx) PutSave(uid string, snapshot *types.SaveSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %v", err)
	}
	q := `
	INSERT INTO saves (uid, data, last_saved) VALUES ($1, $2, $3)
	ON CONFLICT (uid) DO UPDATE SET data = $2, last_saved = $3;
	`
	if _, err := t.tx.Exec(t.ctx, q, uid, string(data), snapshot.LastSaved); err != nil {
		return fmt.Errorf("failed to upsert save: %v", err)
	}
	return nil
}

func (t *postgresTx) GetRateLimit(uid, operation string) (*types.RateLimitRecord, error) {
	q := `SELECT data FROM rate_limits WHERE uid = $1 AND operation = $2 FOR UPDATE;`
	var data string
	if err := t.tx.QueryRow(t.ctx, q, uid, operation).Scan(&data); err != nil {
		if err == pgx.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan rate limit: %v", err)
	}
	record := &types.RateLimitRecord{}
	if err := json.Unmarshal([]byte(data), record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rate limit: %v", err)
	}
	return record, nil
}

func (t *postgresTx) PutRateLimit(uid, operation string, record *types.RateLimitRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal rate limit: %v", err)
	}
	q := `
	INSERT INTO rate_limits (uid, operation, data, updated_at) VALUES ($1, $2, $3, $4)
	ON CONFLICT (uid, operation) DO UPDATE SET data = $3, updated_at = $4;
	`
	if _, err := t.tx.Exec(t.ctx, q, uid, operation, string(data), record.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert rate limit: %v", err)
	}
	return nil
}

func (t *postgresTx) GetIdempotency(uid, key string) (*types.IdempotencyRecord, error) {
	q := `SELECT data FROM idempotency_keys WHERE uid = $1 AND key = $2 FOR UPDATE;`
	var data string
	if err := t.tx.QueryRow(t.ctx, q, uid, key).Scan(&data); err != nil {
		if err == pgx.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan idempotency record: %v", err)
	}
	record := &types.IdempotencyRecord{}
	if err := json.Unmarshal([]byte(data), record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal idempotency record: %v", err)
	}
	return record, nil
}

func (t *postgresTx) PutIdempotency(uid, key string, record *types.IdempotencyRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency record: %v", err)
	}
	q := `
	INSERT INTO idempotency_keys (uid, key, data, expires_at) VALUES ($1, $2, $3, $4)
	ON CONFLICT (uid, key) DO UPDATE SET data = $3, expires_at = $4;
	`
	if _, err := t.tx.Exec(t.ctx, q, uid, key, string(data), record.ExpiresAt); err != nil {
		return fmt.Errorf("failed to upsert idempotency record: %v", err)
	}
	return nil
}

func (t *postgresTx) GetEntry(uid string) (*types.LeaderboardEntry, error) {
	q := `SELECT uid, nickname, score, floor, updated_at FROM leaderboard WHERE uid = $1 FOR UPDATE;`
	entry := &types.LeaderboardEntry{}
	err := t.tx.QueryRow(t.ctx, q, uid).
		Scan(&entry.UID, &entry.Nickname, &entry.Score, &entry.Floor, &entry.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan leaderboard entry: %v", err)
	}
	return entry, nil
}

func (t *postgresTx) PutEntry(entry *types.LeaderboardEntry) error {
	q := `
	INSERT INTO leaderboard (uid, nickname, score, floor, updated_at) VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (uid) DO UPDATE SET nickname = $2, score = $3, floor = $4, updated_at = $5;
	`
	_, err := t.tx.Exec(t.ctx, q, entry.UID, entry.Nickname, entry.Score, entry.Floor, entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert leaderboard entry: %v", err)
	}
	return nil
}

func (t *postgresTx) PutWeeklyEntry(entry *types.LeaderboardEntry) error {
	q := `
	INSERT INTO leaderboard_weekly (uid, nickname, score, floor, updated_at, week_id) VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (uid) DO UPDATE SET nickname = $2, score = $3, floor = $4, updated_at = $5, week_id = $6;
	`
	_, err := t.tx.Exec(t.ctx, q, entry.UID, entry.Nickname, entry.Score, entry.Floor, entry.UpdatedAt, entry.WeekID)
	if err != nil {
		return fmt.Errorf("failed to upsert weekly leaderboard entry: %v", err)
	}
	return nil
}

func (s *PostgresStore) GetSave(ctx context.Context, uid string) (*types.SaveSnapshot, error) {
	q := `SELECT data FROM saves WHERE uid = $1;`
	var data string
	if err := s.pool.QueryRow(ctx, q, uid).Scan(&data); err != nil {
		if err == pgx.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan save: %v", err)
	}
	snapshot := &types.SaveSnapshot{}
	if err := json.Unmarshal([]byte(data), snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal save: %v", err)
	}
	return snapshot, nil
}

func (s *PostgresStore) PutSave(ctx context.Context, uid string, snapshot *types.SaveSnapshot) error {
	return s.Update(ctx, func(tx Tx) error {
		return tx.PutSave(uid, snapshot)
	})
}

func (s *PostgresStore) TopEntries(ctx context.Context, limit int) ([]types.LeaderboardEntry, error) {
	q := `SELECT uid, nickname, score, floor, updated_at FROM leaderboard ORDER BY score DESC, uid ASC LIMIT $1;`
	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %v", err)
	}
	defer rows.Close()

	var entries []types.LeaderboardEntry
	for rows.Next() {
		var entry types.LeaderboardEntry
		if err := rows.Scan(&entry.UID, &entry.Nickname, &entry.Score, &entry.Floor, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %v", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) TopWeeklyEntries(ctx context.Context, weekID string, limit int) ([]types.LeaderboardEntry, error) {
	q := `SELECT uid, nickname, score, floor, updated_at, week_id FROM leaderboard_weekly WHERE week_id = $1 ORDER BY score DESC, uid ASC LIMIT $2;`
	rows, err := s.pool.Query(ctx, q, weekID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query weekly leaderboard: %v", err)
	}
	defer rows.Close()

	var entries []types.LeaderboardEntry
	for rows.Next() {
		var entry types.LeaderboardEntry
		if err := rows.Scan(&entry.UID, &entry.Nickname, &entry.Score, &entry.Floor, &entry.UpdatedAt, &entry.WeekID); err != nil {
			return nil, fmt.Errorf("failed to scan weekly leaderboard entry: %v", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) DeleteRateLimitsBefore(ctx context.Context, cutoff int64, limit int) (int, error) {
	q := `DELETE FROM rate_limits WHERE ctid IN (SELECT ctid FROM rate_limits WHERE updated_at < $1 LIMIT $2);`
	tag, err := s.pool.Exec(ctx, q, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to delete rate limits: %v", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) DeleteIdempotencyExpired(ctx context.Context, now int64, limit int) (int, error) {
	q := `DELETE FROM idempotency_keys WHERE ctid IN (SELECT ctid FROM idempotency_keys WHERE expires_at < $1 LIMIT $2);`
	tag, err := s.pool.Exec(ctx, q, now, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to delete idempotency records: %v", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) DeleteWeeklyEntries(ctx context.Context, limit int) (int, error) {
	q := `DELETE FROM leaderboard_weekly WHERE ctid IN (SELECT ctid FROM leaderboard_weekly LIMIT $1);`
	tag, err := s.pool.Exec(ctx, q, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to delete weekly leaderboard entries: %v", err)
	}
	return int(tag.RowsAffected()), nil
}
