package rewards

import (
	"context"
	"testing"
	"time"

	"github.com/catjump/catjump/pkg/store"
	"github.com/catjump/catjump/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcessor(s store.Store) *Processor {
	return NewProcessor(NewProcessorOptions{Store: s})
}

func getSave(t *testing.T, s store.Store, uid string) *types.SaveSnapshot {
	t.Helper()
	snapshot, err := s.GetSave(context.Background(), uid)
	require.NoError(t, err)
	return snapshot
}

func TestGrant_DailyLogin(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryStore()
	processor := newTestProcessor(s)

	result, err := processor.Grant(ctx, "user-1", TypeDailyLogin, "key-1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.NotNil(t, result.Reward)
	assert.Equal(t, "coins", result.Reward.Type)
	assert.Equal(t, int64(100), result.Reward.Amount)

	snapshot := getSave(t, s, "user-1")
	assert.Equal(t, int64(100), snapshot.Currency.Coins)
	assert.Equal(t, DayKey(time.Now()), snapshot.Retention.LastClaimedDay)
}

func TestGrant_DailyLoginRewardFollowsStreak(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryStore()
	processor := newTestProcessor(s)

	snapshot := types.DefaultSaveSnapshot()
	snapshot.Retention.CurrentStreak = 3
	require.NoError(t, s.PutSave(ctx, "user-1", snapshot))

	result, err := processor.Grant(ctx, "user-1", TypeDailyLogin, "key-1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "diamonds", result.Reward.Type)
	assert.Equal(t, int64(5), result.Reward.Amount)
	assert.Equal(t, int64(5), getSave(t, s, "user-1").Currency.Diamonds)
}

func TestGrant_DailyLoginAlreadyClaimed(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryStore()
	processor := newTestProcessor(s)

	first, err := processor.Grant(ctx, "user-1", TypeDailyLogin, "key-1")
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := processor.Grant(ctx, "user-1", TypeDailyLogin, "key-2")
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.Equal(t, ReasonAlreadyClaimed, second.Reason)

	// No second grant applied.
	assert.Equal(t, int64(100), getSave(t, s, "user-1").Currency.Coins)
}

func TestGrant_DuplicateKeyReplaysResult(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryStore()
	processor := newTestProcessor(s)

	first, err := processor.Grant(ctx, "user-1", TypeAd, "key-1")
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := processor.Grant(ctx, "user-1", TypeAd, "key-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Exactly one mutation.
	assert.Equal(t, int64(50), getSave(t, s, "user-1").Currency.Coins)
}

func TestGrant_RejectionWritesNoLedgerRecord(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryStore()
	processor := newTestProcessor(s)

	claimed, err := processor.Grant(ctx, "user-1", TypeDailyLogin, "key-1")
	require.NoError(t, err)
	require.True(t, claimed.Success)

	rejected, err := processor.Grant(ctx, "user-1", TypeDailyLogin, "key-2")
	require.NoError(t, err)
	require.False(t, rejected.Success)

	// The same key must be free to retry on a later day: no record stored.
	err = s.Update(ctx, func(tx store.Tx) error {
		_, err := tx.GetIdempotency("user-1", "key-2")
		assert.True(t, store.IsNotFound(err))
		return nil
	})
	require.NoError(t, err)
}

func TestGrant_Offline(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryStore()
	processor := newTestProcessor(s)

	now := time.Now()
	processor.now = func() time.Time { return now }

	snapshot := types.DefaultSaveSnapshot()
	snapshot.Retention.LastPlayDate = now.Add(-5 * time.Hour).UnixMilli()
	require.NoError(t, s.PutSave(ctx, "user-1", snapshot))

	result, err := processor.Grant(ctx, "user-1", TypeOffline, "key-1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(50), result.Reward.Amount)

	stored := getSave(t, s, "user-1")
	assert.Equal(t, now.UnixMilli(), stored.Retention.LastPlayDate)
}

func TestGrant_OfflineCapped(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryStore()
	processor := newTestProcessor(s)

	now := time.Now()
	processor.now = func() time.Time { return now }

	snapshot := types.DefaultSaveSnapshot()
	snapshot.Retention.LastPlayDate = now.Add(-100 * time.Hour).UnixMilli()
	require.NoError(t, s.PutSave(ctx, "user-1", snapshot))

	result, err := processor.Grant(ctx, "user-1", TypeOffline, "key-1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(480), result.Reward.Amount)
}

func TestGrant_OfflineTooSoon(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryStore()
	processor := newTestProcessor(s)

	now := time.Now()
	processor.now = func() time.Time { return now }

	snapshot := types.DefaultSaveSnapshot()
	snapshot.Retention.LastPlayDate = now.Add(-30 * time.Minute).UnixMilli()
	require.NoError(t, s.PutSave(ctx, "user-1", snapshot))

	result, err := processor.Grant(ctx, "user-1", TypeOffline, "key-1")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ReasonNotEnoughOfflineTime, result.Reason)
}

func TestGrant_OfflineFirstSession(t *testing.T) {
	ctx := context.Background()
	processor := newTestProcessor(store.NewInMemoryStore())

	// No save yet: no offline time has accrued.
	result, err := processor.Grant(ctx, "user-1", TypeOffline, "key-1")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ReasonNotEnoughOfflineTime, result.Reason)
}

func TestGrant_UnknownType(t *testing.T) {
	ctx := context.Background()
	processor := newTestProcessor(store.NewInMemoryStore())

	result, err := processor.Grant(ctx, "user-1", "mystery_box", "key-1")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ReasonUnknownRewardType, result.Reason)
}

func TestDayKey(t *testing.T) {
	// 2024-03-01 23:30 UTC is already 2024-03-02 in KST.
	utc := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, 20240302, DayKey(utc))

	kst := time.Date(2024, 3, 1, 12, 0, 0, 0, rewardTimezone)
	assert.Equal(t, 20240301, DayKey(kst))
}
