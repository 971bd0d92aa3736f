package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/catjump/catjump/pkg/log"
	"github.com/catjump/catjump/pkg/types"
	"github.com/redis/go-redis/v9"
)

const (
	redisRateLimitIndex = "ratelimit:index"
	redisIdemIndex      = "idempotency:index"
	redisScoreIndex     = "leaderboard:scores"
	redisWeeklyIndex    = "leaderboard:weekly:scores"
)

type RedisStore struct {
	client *redis.Client
}

var _ Store = &RedisStore{}

// NewRedisStore connects to redis at addr. Records are JSON values; sorted
// sets index scores and retention timestamps. Update uses WATCH/MULTI/EXEC
// optimistic transactions: every key read inside fn is watched, staged
// writes are committed in one EXEC, and the whole fn is retried when a
// watched key changed underneath it.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	return &RedisStore{
		client: client,
	}, nil
}

func (s *RedisStore) Close(ctx context.Context) error {
	return s.client.Close()
}

func redisSaveKey(uid string) string {
	return fmt.Sprintf("save:%s", uid)
}

func redisRateLimitKey(uid, operation string) string {
	return fmt.Sprintf("ratelimit:%s:%s", uid, operation)
}

func redisIdemKey(uid, key string) string {
	return fmt.Sprintf("idempotency:%s:%s", uid, key)
}

func redisEntryKey(uid string) string {
	return fmt.Sprintf("leaderboard:entry:%s", uid)
}

func redisWeeklyEntryKey(uid string) string {
	return fmt.Sprintf("leaderboard:weekly:entry:%s", uid)
}

type redisTx struct {
	ctx context.Context
	tx  *redis.Tx
	// staged writes, applied in one MULTI/EXEC on commit
	sets  map[string]string
	zadds map[string][]redis.Z
}

func (t *redisTx) get(key string, out interface{}) error {
	if staged, ok := t.sets[key]; ok {
		return json.Unmarshal([]byte(staged), out)
	}
	if err := t.tx.Watch(t.ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to watch %s: %v", key, err)
	}
	data, err := t.tx.Get(t.ctx, key).Result()
	if err == redis.Nil {
		return &ErrNotFound{}
	}
	if err != nil {
		return fmt.Errorf("failed to get %s: %v", key, err)
	}
	return json.Unmarshal([]byte(data), out)
}

func (t *redisTx) set(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %v", key, err)
	}
	t.sets[key] = string(data)
	return nil
}

func (t *redisTx) zadd(index string, member string, score float64) {
	t.zadds[index] = append(t.zadds[index], redis.Z{Member: member, Score: score})
}

func (t *redisTx) GetSave(uid string) (*types.SaveSnapshot, error) {
	snapshot := &types.SaveSnapshot{}
	if err := t.get(redisSaveKey(uid), snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (t *redisTx) PutSave(uid string, snapshot *types.SaveSnapshot) error {
	return t.set(redisSaveKey(uid), snapshot)
}

func (t *redisTx) GetRateLimit(uid, operation string) (*types.RateLimitRecord, error) {
	record := &types.RateLimitRecord{}
	if err := t.get(redisRateLimitKey(uid, operation), record); err != nil {
		return nil, err
	}
	return record, nil
}

func (t *redisTx) PutRateLimit(uid, operation string, record *types.RateLimitRecord) error {
	key := redisRateLimitKey(uid, operation)
	if err := t.set(key, record); err != nil {
		return err
	}
	t.zadd(redisRateLimitIndex, key, float64(record.UpdatedAt))
	return nil
}

func (t *redisTx) GetIdempotency(uid, key string) (*types.IdempotencyRecord, error) {
	record := &types.IdempotencyRecord{}
	if err := t.get(redisIdemKey(uid, key), record); err != nil {
		return nil, err
	}
	return record, nil
}

func (t *redisTx) PutIdempotency(uid, key string, record *types.IdempotencyRecord) error {
	k := redisIdemKey(uid, key)
	if err := t.set(k, record); err != nil {
		return err
	}
	t.zadd(redisIdemIndex, k, float64(record.ExpiresAt))
	return nil
}

func (t *redisTx) GetEntry(uid string) (*types.LeaderboardEntry, error) {
	entry := &types.LeaderboardEntry{}
	if err := t.get(redisEntryKey(uid), entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (t *redisTx) PutEntry(entry *types.LeaderboardEntry) error {
	if err := t.set(redisEntryKey(entry.UID), entry); err != nil {
		return err
	}
	t.zadd(redisScoreIndex, entry.UID, float64(entry.Score))
	return nil
}

func (t *redisTx) PutWeeklyEntry(entry *types.LeaderboardEntry) error {
	if err := t.set(redisWeeklyEntryKey(entry.UID), entry); err != nil {
		return err
	}
	t.zadd(redisWeeklyIndex, entry.UID, float64(entry.Score))
	return nil
}

func (s *RedisStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			t := &redisTx{
				ctx:   ctx,
				tx:    rtx,
				sets:  make(map[string]string),
				zadds: make(map[string][]redis.Z),
			}
			if err := fn(t); err != nil {
				return err
			}
			_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for key, value := range t.sets {
					pipe.Set(ctx, key, value, 0)
				}
				for index, members := range t.zadds {
					pipe.ZAdd(ctx, index, members...)
				}
				return nil
			})
			return err
		})
		if err == redis.TxFailedErr {
			log.Debug("Retrying transaction after watch conflict (attempt %d)", attempt+1)
			continue
		}
		return err
	}
	return fmt.Errorf("transaction failed after %d attempts: %v", maxTxAttempts, redis.TxFailedErr)
}

func (s *RedisStore) GetSave(ctx context.Context, uid string) (*types.SaveSnapshot, error) {
	data, err := s.client.Get(ctx, redisSaveKey(uid)).Result()
	if err == redis.Nil {
		return nil, &ErrNotFound{}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get save: %v", err)
	}
	snapshot := &types.SaveSnapshot{}
	if err := json.Unmarshal([]byte(data), snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal save: %v", err)
	}
	return snapshot, nil
}

func (s *RedisStore) PutSave(ctx context.Context, uid string, snapshot *types.SaveSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %v", err)
	}
	if err := s.client.Set(ctx, redisSaveKey(uid), string(data), 0).Err(); err != nil {
		return fmt.Errorf("failed to set save: %v", err)
	}
	return nil
}

func (s *RedisStore) TopEntries(ctx context.Context, limit int) ([]types.LeaderboardEntry, error) {
	return s.topEntries(ctx, redisScoreIndex, redisEntryKey, "", limit)
}

func (s *RedisStore) TopWeeklyEntries(ctx context.Context, weekID string, limit int) ([]types.LeaderboardEntry, error) {
	return s.topEntries(ctx, redisWeeklyIndex, redisWeeklyEntryKey, weekID, limit)
}

// topEntries pages through the index rather than slicing once: stale-week
// members can linger in the weekly index after a missed rotation, and a
// single slice filtered by weekID would come back short even when enough
// current-week entries exist further down.
func (s *RedisStore) topEntries(ctx context.Context, index string, entryKey func(string) string, weekID string, limit int) ([]types.LeaderboardEntry, error) {
	var entries []types.LeaderboardEntry
	for start := int64(0); len(entries) < limit; start += int64(limit) {
		uids, err := s.client.ZRevRange(ctx, index, start, start+int64(limit)-1).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to range %s: %v", index, err)
		}
		if len(uids) == 0 {
			break
		}

		keys := make([]string, len(uids))
		for i, uid := range uids {
			keys[i] = entryKey(uid)
		}
		values, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to fetch entries: %v", err)
		}

		for _, value := range values {
			data, ok := value.(string)
			if !ok {
				continue
			}
			var entry types.LeaderboardEntry
			if err := json.Unmarshal([]byte(data), &entry); err != nil {
				return nil, fmt.Errorf("failed to unmarshal entry: %v", err)
			}
			if weekID != "" && entry.WeekID != weekID {
				continue
			}
			entries = append(entries, entry)
			if len(entries) == limit {
				break
			}
		}
		if len(uids) < limit {
			break
		}
	}
	return entries, nil
}

func (s *RedisStore) DeleteRateLimitsBefore(ctx context.Context, cutoff int64, limit int) (int, error) {
	return s.deleteByIndex(ctx, redisRateLimitIndex, cutoff, limit)
}

func (s *RedisStore) DeleteIdempotencyExpired(ctx context.Context, now int64, limit int) (int, error) {
	return s.deleteByIndex(ctx, redisIdemIndex, now, limit)
}

func (s *RedisStore) DeleteWeeklyEntries(ctx context.Context, limit int) (int, error) {
	uids, err := s.client.ZRange(ctx, redisWeeklyIndex, 0, int64(limit-1)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to range weekly index: %v", err)
	}
	if len(uids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(uids))
	members := make([]interface{}, len(uids))
	for i, uid := range uids {
		keys[i] = redisWeeklyEntryKey(uid)
		members[i] = uid
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("failed to delete weekly entries: %v", err)
	}
	if err := s.client.ZRem(ctx, redisWeeklyIndex, members...).Err(); err != nil {
		return 0, fmt.Errorf("failed to trim weekly index: %v", err)
	}
	return len(uids), nil
}

// deleteByIndex removes up to limit records whose index score is below
// cutoff. Index members are the record keys themselves.
func (s *RedisStore) deleteByIndex(ctx context.Context, index string, cutoff int64, limit int) (int, error) {
	keys, err := s.client.ZRangeByScore(ctx, index, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("(%d", cutoff),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to range %s: %v", index, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("failed to delete records: %v", err)
	}
	members := make([]interface{}, len(keys))
	for i, key := range keys {
		members[i] = key
	}
	if err := s.client.ZRem(ctx, index, members...).Err(); err != nil {
		return 0, fmt.Errorf("failed to trim %s: %v", index, err)
	}
	return len(keys), nil
}
