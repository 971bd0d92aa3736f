package save

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/catjump/catjump/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	return NewLocalStore(NewLocalStoreOptions{Dir: t.TempDir()})
}

func TestLocalStore_RoundTrip(t *testing.T) {
	local := newTestLocalStore(t)

	snapshot := types.DefaultSaveSnapshot()
	snapshot.Stats.HighScore = 1500
	snapshot.Currency.Coins = 300
	require.NoError(t, local.Save(snapshot))

	loaded, err := local.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, int64(1500), loaded.Stats.HighScore)
	assert.Equal(t, int64(300), loaded.Currency.Coins)
	assert.NotZero(t, loaded.LastSaved)
}

func TestLocalStore_LoadMissingFile(t *testing.T) {
	local := newTestLocalStore(t)

	loaded, err := local.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLocalStore_CorruptFileTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	local := NewLocalStore(NewLocalStoreOptions{Dir: dir})

	require.NoError(t, os.WriteFile(filepath.Join(dir, SaveFileName), []byte("not a save"), 0644))

	loaded, err := local.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLocalStore_SaveOverwrites(t *testing.T) {
	local := newTestLocalStore(t)

	first := types.DefaultSaveSnapshot()
	first.Currency.Coins = 100
	require.NoError(t, local.Save(first))

	second := types.DefaultSaveSnapshot()
	second.Currency.Coins = 200
	require.NoError(t, local.Save(second))

	loaded, err := local.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(200), loaded.Currency.Coins)
}
