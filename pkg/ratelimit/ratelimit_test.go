package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/catjump/catjump/pkg/store"
	"github.com/stretchr/testify/assert"
)

func newTestLimiter(s store.Store, failClosed bool) *Limiter {
	return NewLimiter(NewLimiterOptions{
		Store:      s,
		FailClosed: failClosed,
	})
}

func TestLimiter_AdmitsUpToLimit(t *testing.T) {
	ctx := context.Background()
	limiter := newTestLimiter(store.NewInMemoryStore(), false)

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Admit(ctx, "user-1", OpGrantReward), "request %d should be admitted", i+1)
	}
	assert.False(t, limiter.Admit(ctx, "user-1", OpGrantReward))

	// Other users and operations are unaffected.
	assert.True(t, limiter.Admit(ctx, "user-2", OpGrantReward))
	assert.True(t, limiter.Admit(ctx, "user-1", OpValidateScore))
}

func TestLimiter_WindowSlides(t *testing.T) {
	ctx := context.Background()
	limiter := newTestLimiter(store.NewInMemoryStore(), false)

	current := time.UnixMilli(1_000_000)
	limiter.now = func() time.Time { return current }

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Admit(ctx, "user-1", OpGrantReward))
	}
	assert.False(t, limiter.Admit(ctx, "user-1", OpGrantReward))

	current = current.Add(61 * time.Second)
	assert.True(t, limiter.Admit(ctx, "user-1", OpGrantReward))
}

func TestLimiter_RejectedRequestNotRecorded(t *testing.T) {
	ctx := context.Background()
	limiter := newTestLimiter(store.NewInMemoryStore(), false)

	current := time.UnixMilli(1_000_000)
	limiter.now = func() time.Time { return current }

	for i := 0; i < 5; i++ {
		limiter.Admit(ctx, "user-1", OpGrantReward)
	}

	// Hammering while limited must not extend the lockout.
	for i := 0; i < 20; i++ {
		current = current.Add(time.Second)
		assert.False(t, limiter.Admit(ctx, "user-1", OpGrantReward))
	}

	current = current.Add(41 * time.Second)
	assert.True(t, limiter.Admit(ctx, "user-1", OpGrantReward))
}

func TestLimiter_UnknownOperationAdmitted(t *testing.T) {
	limiter := newTestLimiter(store.NewInMemoryStore(), false)
	assert.True(t, limiter.Admit(context.Background(), "user-1", "someNewOperation"))
}

type failingStore struct {
	store.Store
}

func (s *failingStore) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	return fmt.Errorf("storage unavailable")
}

func TestLimiter_FailOpenOnStorageError(t *testing.T) {
	limiter := newTestLimiter(&failingStore{Store: store.NewInMemoryStore()}, false)
	assert.True(t, limiter.Admit(context.Background(), "user-1", OpGrantReward))
}

func TestLimiter_FailClosedOnStorageError(t *testing.T) {
	limiter := newTestLimiter(&failingStore{Store: store.NewInMemoryStore()}, true)
	assert.False(t, limiter.Admit(context.Background(), "user-1", OpGrantReward))
}
