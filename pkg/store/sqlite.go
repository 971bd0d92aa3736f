package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/catjump/catjump/pkg/types"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS saves (
	uid TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	last_saved INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS rate_limits (
	uid TEXT NOT NULL,
	operation TEXT NOT NULL,
	data TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (uid, operation)
);
CREATE INDEX IF NOT EXISTS idx_rate_limits_updated_at ON rate_limits (updated_at);
CREATE TABLE IF NOT EXISTS idempotency_keys (
	uid TEXT NOT NULL,
	key TEXT NOT NULL,
	data TEXT NOT NULL,
	expires_at INTEGER NOT NULL,
	PRIMARY KEY (uid, key)
);
CREATE INDEX IF NOT EXISTS idx_idempotency_keys_expires_at ON idempotency_keys (expires_at);
CREATE TABLE IF NOT EXISTS leaderboard (
	uid TEXT PRIMARY KEY,
	nickname TEXT NOT NULL,
	score INTEGER NOT NULL,
	floor INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_leaderboard_score ON leaderboard (score DESC);
CREATE TABLE IF NOT EXISTS leaderboard_weekly (
	uid TEXT PRIMARY KEY,
	nickname TEXT NOT NULL,
	score INTEGER NOT NULL,
	floor INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	week_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_leaderboard_weekly_score ON leaderboard_weekly (score DESC);
`

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = &SQLiteStore{}

// NewSQLiteStore opens (creating if needed) a SQLite database at path.
// Transactions begin with BEGIN IMMEDIATE (_txlock=immediate) so an Update
// takes the write lock before its first read. A deferred transaction that
// reads and then writes would instead hit SQLITE_BUSY on the lock upgrade
// when another writer commits in between, and _busy_timeout does not cover
// that case. With the immediate lock, concurrent Updates queue on the busy
// timeout and each sees the previous writer's commit.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %v", err)
	}

	return &SQLiteStore{
		db: db,
	}, nil
}

func (s *SQLiteStore) Close(ctx context.Context) error {
	return s.db.Close()
}

type sqliteTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (s *SQLiteStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}
	return nil
}

func (t *sqliteTx) GetSave(uid string) (*types.SaveSnapshot, error) {
	q := `SELECT data FROM saves WHERE uid = ?;`
	return scanSave(t.tx.QueryRowContext(t.ctx, q, uid))
}

func (t *sqliteTx) PutSave(uid string, snapshot *types.SaveSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %v", err)
	}
	q := `INSERT OR REPLACE INTO saves (uid, data, last_saved) VALUES (?, ?, ?);`
	if _, err := t.tx.ExecContext(t.ctx, q, uid, string(data), snapshot.LastSaved); err != nil {
		return fmt.Errorf("failed to upsert save: %v", err)
	}
	return nil
}

func (t *sqliteTx) GetRateLimit(uid, operation string) (*types.RateLimitRecord, error) {
	q := `SELECT data FROM rate_limits WHERE uid = ? AND operation = ?;`
	var data string
	if err := t.tx.QueryRowContext(t.ctx, q, uid, operation).Scan(&data); err != nil {
		if err == sql.ErrNoRows {
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

func (t *sqliteTx) PutRateLimit(uid, operation string, record *types.RateLimitRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal rate limit: %v", err)
	}
	q := `INSERT OR REPLACE INTO rate_limits (uid, operation, data, updated_at) VALUES (?, ?, ?, ?);`
	if _, err := t.tx.ExecContext(t.ctx, q, uid, operation, string(data), record.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert rate limit: %v", err)
	}
	return nil
}

func (t *sqliteTx) GetIdempotency(uid, key string) (*types.IdempotencyRecord, error) {
	q := `SELECT data FROM idempotency_keys WHERE uid = ? AND key = ?;`
	var data string
	if err := t.tx.QueryRowContext(t.ctx, q, uid, key).Scan(&data); err != nil {
		if err == sql.ErrNoRows {
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

func (t *sqliteTx) PutIdempotency(uid, key string, record *types.IdempotencyRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency record: %v", err)
	}
	q := `INSERT OR REPLACE INTO idempotency_keys (uid, key, data, expires_at) VALUES (?, ?, ?, ?);`
	if _, err := t.tx.ExecContext(t.ctx, q, uid, key, string(data), record.ExpiresAt); err != nil {
		return fmt.Errorf("failed to upsert idempotency record: %v", err)
	}
	return nil
}

func (t *sqliteTx) GetEntry(uid string) (*types.LeaderboardEntry, error) {
	q := `SELECT uid, nickname, score, floor, updated_at FROM leaderboard WHERE uid = ?;`
	entry := &types.LeaderboardEntry{}
	err := t.tx.QueryRowContext(t.ctx, q, uid).
		Scan(&entry.UID, &entry.Nickname, &entry.Score, &entry.Floor, &entry.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan leaderboard entry: %v", err)
	}
	return entry, nil
}

func (t *sqliteTx) PutEntry(entry *types.LeaderboardEntry) error {
	q := `INSERT OR REPLACE INTO leaderboard (uid, nickname, score, floor, updated_at) VALUES (?, ?, ?, ?, ?);`
	_, err := t.tx.ExecContext(t.ctx, q, entry.UID, entry.Nickname, entry.Score, entry.Floor, entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert leaderboard entry: %v", err)
	}
	return nil
}

func (t *sqliteTx) PutWeeklyEntry(entry *types.LeaderboardEntry) error {
	q := `INSERT OR REPLACE INTO leaderboard_weekly (uid, nickname, score, floor, updated_at, week_id) VALUES (?, ?, ?, ?, ?, ?);`
	_, err := t.tx.ExecContext(t.ctx, q, entry.UID, entry.Nickname, entry.Score, entry.Floor, entry.UpdatedAt, entry.WeekID)
	if err != nil {
		return fmt.Errorf("failed to upsert weekly leaderboard entry: %v", err)
	}
	return nil
}

func (s *SQLiteStore) GetSave(ctx context.Context, uid string) (*types.SaveSnapshot, error) {
	q := `SELECT data FROM saves WHERE uid = ?;`
	return scanSave(s.db.QueryRowContext(ctx, q, uid))
}

func (s *SQLiteStore) PutSave(ctx context.Context, uid string, snapshot *types.SaveSnapshot) error {
	return s.Update(ctx, func(tx Tx) error {
		return tx.PutSave(uid, snapshot)
	})
}

func scanSave(row *sql.Row) (*types.SaveSnapshot, error) {
	var data string
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
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

func (s *SQLiteStore) TopEntries(ctx context.Context, limit int) ([]types.LeaderboardEntry, error) {
	q := `SELECT uid, nickname, score, floor, updated_at FROM leaderboard ORDER BY score DESC, uid ASC LIMIT ?;`
	rows, err := s.db.QueryContext(ctx, q, limit)
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

func (s *SQLiteStore) TopWeeklyEntries(ctx context.Context, weekID string, limit int) ([]types.LeaderboardEntry, error) {
	q := `SELECT uid, nickname, score, floor, updated_at, week_id FROM leaderboard_weekly WHERE week_id = ? ORDER BY score DESC, uid ASC LIMIT ?;`
	rows, err := s.db.QueryContext(ctx, q, weekID, limit)
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

func (s *SQLiteStore) DeleteRateLimitsBefore(ctx context.Context, cutoff int64, limit int) (int, error) {
	q := `DELETE FROM rate_limits WHERE rowid IN (SELECT rowid FROM rate_limits WHERE updated_at < ? LIMIT ?);`
	return execDelete(ctx, s.db, q, cutoff, limit)
}

func (s *SQLiteStore) DeleteIdempotencyExpired(ctx context.Context, now int64, limit int) (int, error) {
	q := `DELETE FROM idempotency_keys WHERE rowid IN (SELECT rowid FROM idempotency_keys WHERE expires_at < ? LIMIT ?);`
	return execDelete(ctx, s.db, q, now, limit)
}

func (s *SQLiteStore) DeleteWeeklyEntries(ctx context.Context, limit int) (int, error) {
	q := `DELETE FROM leaderboard_weekly WHERE rowid IN (SELECT rowid FROM leaderboard_weekly LIMIT ?);`
	return execDelete(ctx, s.db, q, limit)
}

func execDelete(ctx context.Context, db *sql.DB, q string, args ...interface{}) (int, error) {
	result, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete: %v", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %v", err)
	}
	return int(affected), nil
}
