package save

import (
	"testing"

	"github.com/catjump/catjump/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_MissingFieldsKeepDefaults(t *testing.T) {
	snapshot, err := Decode([]byte(`{"stats":{"highScore":999}}`))
	require.NoError(t, err)

	assert.Equal(t, int64(999), snapshot.Stats.HighScore)
	assert.True(t, snapshot.Settings.Sound)
	assert.Equal(t, "ko", snapshot.Settings.Language)
	assert.Equal(t, 5, snapshot.Energy.Max)
}

func TestDecode_InvalidJSON(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	assert.Error(t, err)
}

func TestMigrate_UpgradesOldVersion(t *testing.T) {
	old := &types.SaveSnapshot{Version: 0}

	migrated := Migrate(old)

	assert.Equal(t, types.CurrentSchemaVersion, migrated.Version)
	assert.Equal(t, "ko", migrated.Settings.Language)
	assert.Equal(t, "default", migrated.Inventory.CurrentCat)
	assert.NotNil(t, migrated.Stats.Medals)
	assert.NotNil(t, migrated.Missions.Daily)
	assert.Equal(t, 5, migrated.Energy.Max)
	assert.Equal(t, 20, migrated.Energy.RecoveryMinutes)
}

func TestMigrate_KeepsNewerVersion(t *testing.T) {
	future := types.DefaultSaveSnapshot()
	future.Version = types.CurrentSchemaVersion + 5

	migrated := Migrate(future)

	assert.Equal(t, types.CurrentSchemaVersion+5, migrated.Version)
}

func TestMigrate_Idempotent(t *testing.T) {
	snapshot := &types.SaveSnapshot{Version: 0}
	snapshot.Stats.HighScore = 777

	once := Migrate(snapshot)
	twice := Migrate(once)

	assert.Equal(t, once, twice)
}

func TestMigrate_PreservesExistingData(t *testing.T) {
	snapshot := types.DefaultSaveSnapshot()
	snapshot.Settings.Language = "en"
	snapshot.Inventory.UnlockedCats = []string{"default", "ninja"}
	snapshot.Currency.Coins = 1234

	migrated := Migrate(snapshot)

	assert.Equal(t, "en", migrated.Settings.Language)
	assert.Equal(t, []string{"default", "ninja"}, migrated.Inventory.UnlockedCats)
	assert.Equal(t, int64(1234), migrated.Currency.Coins)
}
