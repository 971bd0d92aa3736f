package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/catjump/catjump/pkg/types"
)

// InMemoryStore keeps everything in process memory behind one mutex. It
// backs tests and local development; a single lock gives Update its
// atomicity for free.
type InMemoryStore struct {
	lock        sync.Mutex
	saves       map[string]*types.SaveSnapshot
	rateLimits  map[string]*types.RateLimitRecord
	idempotency map[string]*types.IdempotencyRecord
	entries     map[string]*types.LeaderboardEntry
	weekly      map[string]*types.LeaderboardEntry
}

var _ Store = &InMemoryStore{}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		saves:       make(map[string]*types.SaveSnapshot),
		rateLimits:  make(map[string]*types.RateLimitRecord),
		idempotency: make(map[string]*types.IdempotencyRecord),
		entries:     make(map[string]*types.LeaderboardEntry),
		weekly:      make(map[string]*types.LeaderboardEntry),
	}
}

func (s *InMemoryStore) Close(ctx context.Context) error {
	return nil
}

// memoryTx stages writes and applies them only when fn succeeds.
type memoryTx struct {
	store       *InMemoryStore
	saves       map[string]*types.SaveSnapshot
	rateLimits  map[string]*types.RateLimitRecord
	idempotency map[string]*types.IdempotencyRecord
	entries     map[string]*types.LeaderboardEntry
	weekly      map[string]*types.LeaderboardEntry
}

func recordKey(uid, name string) string {
	return fmt.Sprintf("%s_%s", uid, name)
}

func (t *memoryTx) GetSave(uid string) (*types.SaveSnapshot, error) {
	if snapshot, ok := t.saves[uid]; ok {
		return snapshot.Clone(), nil
	}
	snapshot, ok := t.store.saves[uid]
	if !ok {
		return nil, &ErrNotFound{}
	}
	return snapshot.Clone(), nil
}

func (t *memoryTx) PutSave(uid string, snapshot *types.SaveSnapshot) error {
	t.saves[uid] = snapshot.Clone()
	return nil
}

func (t *memoryTx) GetRateLimit(uid, operation string) (*types.RateLimitRecord, error) {
	key := recordKey(uid, operation)
	if record, ok := t.rateLimits[key]; ok {
		return copyRateLimit(record), nil
	}
	record, ok := t.store.rateLimits[key]
	if !ok {
		return nil, &ErrNotFound{}
	}
	return copyRateLimit(record), nil
}

func (t *memoryTx) PutRateLimit(uid, operation string, record *types.RateLimitRecord) error {
	t.rateLimits[recordKey(uid, operation)] = copyRateLimit(record)
	return nil
}

func (t *memoryTx) GetIdempotency(uid, key string) (*types.IdempotencyRecord, error) {
	k := recordKey(uid, key)
	if record, ok := t.idempotency[k]; ok {
		copied := *record
		return &copied, nil
	}
	record, ok := t.store.idempotency[k]
	if !ok {
		return nil, &ErrNotFound{}
	}
	copied := *record
	return &copied, nil
}

func (t *memoryTx) PutIdempotency(uid, key string, record *types.IdempotencyRecord) error {
	copied := *record
	t.idempotency[recordKey(uid, key)] = &copied
	return nil
}

func (t *memoryTx) GetEntry(uid string) (*types.LeaderboardEntry, error) {
	if entry, ok := t.entries[uid]; ok {
		copied := *entry
		return &copied, nil
	}
	entry, ok := t.store.entries[uid]
	if !ok {
		return nil, &ErrNotFound{}
	}
	copied := *entry
	return &copied, nil
}

func (t *memoryTx) PutEntry(entry *types.LeaderboardEntry) error {
	copied := *entry
	t.entries[entry.UID] = &copied
	return nil
}

func (t *memoryTx) PutWeeklyEntry(entry *types.LeaderboardEntry) error {
	copied := *entry
	t.weekly[entry.UID] = &copied
	return nil
}

func (s *InMemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	tx := &memoryTx{
		store:       s,
		saves:       make(map[string]*types.SaveSnapshot),
		rateLimits:  make(map[string]*types.RateLimitRecord),
		idempotency: make(map[string]*types.IdempotencyRecord),
		entries:     make(map[string]*types.LeaderboardEntry),
		weekly:      make(map[string]*types.LeaderboardEntry),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for uid, snapshot := range tx.saves {
		s.saves[uid] = snapshot
	}
	for key, record := range tx.rateLimits {
		s.rateLimits[key] = record
	}
	for key, record := range tx.idempotency {
		s.idempotency[key] = record
	}
	for uid, entry := range tx.entries {
		s.entries[uid] = entry
	}
	for uid, entry := range tx.weekly {
		s.weekly[uid] = entry
	}
	return nil
}

func (s *InMemoryStore) GetSave(ctx context.Context, uid string) (*types.SaveSnapshot, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	snapshot, ok := s.saves[uid]
	if !ok {
		return nil, &ErrNotFound{}
	}
	return snapshot.Clone(), nil
}

func (s *InMemoryStore) PutSave(ctx context.Context, uid string, snapshot *types.SaveSnapshot) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.saves[uid] = snapshot.Clone()
	return nil
}

func (s *InMemoryStore) TopEntries(ctx context.Context, limit int) ([]types.LeaderboardEntry, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return topEntries(s.entries, "", limit), nil
}

func (s *InMemoryStore) TopWeeklyEntries(ctx context.Context, weekID string, limit int) ([]types.LeaderboardEntry, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return topEntries(s.weekly, weekID, limit), nil
}

func topEntries(m map[string]*types.LeaderboardEntry, weekID string, limit int) []types.LeaderboardEntry {
	entries := make([]types.LeaderboardEntry, 0, len(m))
	for _, entry := range m {
		if weekID != "" && entry.WeekID != weekID {
			continue
		}
		entries = append(entries, *entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].UID < entries[j].UID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func (s *InMemoryStore) DeleteRateLimitsBefore(ctx context.Context, cutoff int64, limit int) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	deleted := 0
	for key, record := range s.rateLimits {
		if deleted >= limit {
			break
		}
		if record.UpdatedAt < cutoff {
			delete(s.rateLimits, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *InMemoryStore) DeleteIdempotencyExpired(ctx context.Context, now int64, limit int) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	deleted := 0
	for key, record := range s.idempotency {
		if deleted >= limit {
			break
		}
		if record.ExpiresAt < now {
			delete(s.idempotency, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *InMemoryStore) DeleteWeeklyEntries(ctx context.Context, limit int) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	deleted := 0
	for uid := range s.weekly {
		if deleted >= limit {
			break
		}
		delete(s.weekly, uid)
		deleted++
	}
	return deleted, nil
}

func copyRateLimit(record *types.RateLimitRecord) *types.RateLimitRecord {
	return &types.RateLimitRecord{
		Requests:  append([]int64(nil), record.Requests...),
		UpdatedAt: record.UpdatedAt,
	}
}
