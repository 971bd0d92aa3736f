package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/catjump/catjump/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(s store.Store) *Service {
	return NewService(NewServiceOptions{Store: s})
}

// plausible fills in run metadata that passes validation for the score.
func plausible(score, floor int64) SubmitInput {
	return SubmitInput{
		Score:      score,
		Floor:      floor,
		PlayTimeMs: floor * 3000,
	}
}

func TestSubmitScore_OnlyHigherScoresOverwrite(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryStore()
	service := newTestService(s)

	first, err := service.SubmitScore(ctx, "user-1", plausible(1000, 30))
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.True(t, first.NewRecord)

	higher, err := service.SubmitScore(ctx, "user-1", plausible(1200, 35))
	require.NoError(t, err)
	assert.True(t, higher.NewRecord)

	lower, err := service.SubmitScore(ctx, "user-1", plausible(900, 28))
	require.NoError(t, err)
	assert.True(t, lower.Success)
	assert.False(t, lower.NewRecord)

	entries, err := service.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1200), entries[0].Score)
}

func TestSubmitScore_Rank(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryStore()
	service := newTestService(s)

	_, err := service.SubmitScore(ctx, "user-1", plausible(3000, 80))
	require.NoError(t, err)
	_, err = service.SubmitScore(ctx, "user-2", plausible(2000, 60))
	require.NoError(t, err)

	result, err := service.SubmitScore(ctx, "user-3", plausible(2500, 70))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rank)

	result, err = service.SubmitScore(ctx, "user-4", plausible(100, 10))
	require.NoError(t, err)
	assert.Equal(t, 4, result.Rank)
}

func TestSubmitScore_InvalidScoreRejected(t *testing.T) {
	ctx := context.Background()
	service := newTestService(store.NewInMemoryStore())

	_, err := service.SubmitScore(ctx, "user-1", SubmitInput{
		Score:      100000,
		Floor:      10,
		PlayTimeMs: 60000,
	})
	require.Error(t, err)
	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Equal(t, ReasonScoreTooHigh, validationErr.Reason)

	// Nothing written.
	entries, err := service.Top(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSubmitScore_DefaultNickname(t *testing.T) {
	ctx := context.Background()
	service := newTestService(store.NewInMemoryStore())

	_, err := service.SubmitScore(ctx, "abcdef123456", plausible(1000, 30))
	require.NoError(t, err)

	entries, err := service.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Catabcdef", entries[0].Nickname)
}

func TestSubmitScore_WritesWeeklyEntry(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryStore()
	service := newTestService(s)

	_, err := service.SubmitScore(ctx, "user-1", plausible(1000, 30))
	require.NoError(t, err)

	weekly, err := service.TopWeekly(ctx, 10)
	require.NoError(t, err)
	require.Len(t, weekly, 1)
	assert.Equal(t, WeekID(time.Now()), weekly[0].WeekID)
}

func TestTopWeekly_ScopedToCurrentWeek(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryStore()
	service := newTestService(s)

	lastWeek := time.Now().AddDate(0, 0, -14)
	service.now = func() time.Time { return lastWeek }
	_, err := service.SubmitScore(ctx, "user-1", plausible(1000, 30))
	require.NoError(t, err)

	service.now = time.Now
	weekly, err := service.TopWeekly(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, weekly)
}

func TestWeekID(t *testing.T) {
	assert.Equal(t, "2024-W01", WeekID(time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)))
	// ISO week years shift around January 1st.
	assert.Equal(t, "2020-W53", WeekID(time.Date(2021, 1, 1, 12, 0, 0, 0, time.UTC)))
}

func TestDefaultNickname_ShortUID(t *testing.T) {
	assert.Equal(t, "Catab", DefaultNickname("ab"))
}
