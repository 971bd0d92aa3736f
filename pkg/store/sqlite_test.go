package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/catjump/catjump/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close(context.Background())
	})
	return s
}

func TestSQLiteStore_SaveRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.GetSave(ctx, "uid-1")
	assert.True(t, IsNotFound(err))

	snapshot := types.DefaultSaveSnapshot()
	snapshot.Currency.Coins = 250
	snapshot.LastSaved = 100000
	require.NoError(t, s.PutSave(ctx, "uid-1", snapshot))

	got, err := s.GetSave(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, int64(250), got.Currency.Coins)
	assert.Equal(t, int64(100000), got.LastSaved)
}

func TestSQLiteStore_UpdateRollsBackOnError(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(tx Tx) error {
		snapshot := types.DefaultSaveSnapshot()
		if err := tx.PutSave("uid-1", snapshot); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	_, err = s.GetSave(ctx, "uid-1")
	assert.True(t, IsNotFound(err))
}

func TestSQLiteStore_ConcurrentUpdatesAllApply(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	snapshot := types.DefaultSaveSnapshot()
	initial := snapshot.Currency.Coins
	require.NoError(t, s.PutSave(ctx, "uid-1", snapshot))

	const workers = 4
	const perWorker = 10

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				errs <- s.Update(ctx, func(tx Tx) error {
					save, err := tx.GetSave("uid-1")
					if err != nil {
						return err
					}
					save.Currency.Coins++
					return tx.PutSave("uid-1", save)
				})
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.GetSave(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, initial+workers*perWorker, got.Currency.Coins)
}
