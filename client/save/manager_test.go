package save

import (
	"context"
	"testing"
	"time"

	"github.com/catjump/catjump/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager := NewManager(NewManagerOptions{
		Local:            newTestLocalStore(t),
		AutosaveInterval: time.Hour,
	})
	require.NoError(t, manager.Initialize(context.Background()))
	t.Cleanup(func() {
		_ = manager.Close()
	})
	return manager
}

func TestManager_InitializeStartsFromDefaults(t *testing.T) {
	manager := newTestManager(t)

	snapshot := manager.Snapshot()
	assert.Equal(t, types.CurrentSchemaVersion, snapshot.Version)
	assert.Equal(t, int64(0), snapshot.Currency.Coins)
}

func TestManager_RecordGameResult(t *testing.T) {
	manager := newTestManager(t)

	manager.RecordGameResult(GameResult{
		Score:        1200,
		Floor:        40,
		PerfectCount: 5,
		MaxCombo:     7,
		CoinsEarned:  30,
		Medals:       []string{"floor_40"},
	})
	manager.RecordGameResult(GameResult{
		Score:        800,
		Floor:        25,
		PerfectCount: 2,
		MaxCombo:     3,
		CoinsEarned:  20,
		Medals:       []string{"floor_40"},
	})

	snapshot := manager.Snapshot()
	assert.Equal(t, int64(2), snapshot.Stats.GamesPlayed)
	assert.Equal(t, int64(2000), snapshot.Stats.TotalScore)
	assert.Equal(t, int64(1200), snapshot.Stats.HighScore)
	assert.Equal(t, int64(40), snapshot.Stats.HighFloor)
	assert.Equal(t, int64(7), snapshot.Stats.PerfectCount)
	assert.Equal(t, int64(7), snapshot.Stats.MaxCombo)
	assert.Equal(t, []string{"floor_40"}, snapshot.Stats.Medals)
	assert.Equal(t, int64(50), snapshot.Currency.Coins)
}

func TestManager_SpendCoins(t *testing.T) {
	manager := newTestManager(t)
	manager.AddCoins(100)

	require.NoError(t, manager.SpendCoins(60))
	assert.Equal(t, int64(40), manager.Snapshot().Currency.Coins)

	err := manager.SpendCoins(50)
	assert.Error(t, err)
	assert.Equal(t, int64(40), manager.Snapshot().Currency.Coins)
}

func TestManager_SpendDiamonds(t *testing.T) {
	manager := newTestManager(t)
	manager.AddDiamonds(10)

	require.NoError(t, manager.SpendDiamonds(4))
	assert.Equal(t, int64(6), manager.Snapshot().Currency.Diamonds)

	assert.Error(t, manager.SpendDiamonds(7))
}

func TestManager_SnapshotIsACopy(t *testing.T) {
	manager := newTestManager(t)

	snapshot := manager.Snapshot()
	snapshot.Currency.Coins = 9999

	assert.Equal(t, int64(0), manager.Snapshot().Currency.Coins)
}

func TestManager_CloseFlushesPendingChanges(t *testing.T) {
	local := newTestLocalStore(t)
	manager := NewManager(NewManagerOptions{
		Local:            local,
		AutosaveInterval: time.Hour,
	})
	require.NoError(t, manager.Initialize(context.Background()))

	manager.AddCoins(250)
	require.NoError(t, manager.Close())

	loaded, err := local.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, int64(250), loaded.Currency.Coins)
}

func TestManager_FlushOnlyWritesWhenDirty(t *testing.T) {
	local := newTestLocalStore(t)
	manager := NewManager(NewManagerOptions{
		Local:            local,
		AutosaveInterval: time.Hour,
	})
	require.NoError(t, manager.Initialize(context.Background()))
	defer manager.Close()

	before, err := local.Load()
	require.NoError(t, err)

	// A clean flush must not bump lastSaved.
	require.NoError(t, manager.Flush())
	after, err := local.Load()
	require.NoError(t, err)
	assert.Equal(t, before.LastSaved, after.LastSaved)
}
