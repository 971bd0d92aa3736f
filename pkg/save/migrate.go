// Package save implements schema migration and conflict resolution for
// save snapshots. This is the only place schema evolution logic lives;
// every other component operates on an already-migrated snapshot.
package save

import (
	"encoding/json"
	"fmt"

	"github.com/catjump/catjump/pkg/log"
	"github.com/catjump/catjump/pkg/types"
)

// Decode unmarshals a serialized snapshot over the schema defaults, so any
// field absent from the document keeps its default value.
func Decode(data []byte) (*types.SaveSnapshot, error) {
	snapshot := types.DefaultSaveSnapshot()
	if err := json.Unmarshal(data, snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %v", err)
	}
	return snapshot, nil
}

// Migrate upgrades a loaded snapshot to the current schema. Missing
// sub-object fields are filled from defaults and Version becomes
// max(loaded, current). A snapshot written by a newer build keeps its
// higher version so future-version data is never destroyed. Idempotent.
func Migrate(loaded *types.SaveSnapshot) *types.SaveSnapshot {
	defaults := types.DefaultSaveSnapshot()

	if loaded.Version > types.CurrentSchemaVersion {
		log.Warn("save data version %d is newer than schema version %d, keeping it",
			loaded.Version, types.CurrentSchemaVersion)
	}

	migrated := loaded.Clone()
	if migrated.Version < types.CurrentSchemaVersion {
		migrated.Version = types.CurrentSchemaVersion
	}

	if migrated.Settings.Language == "" {
		migrated.Settings.Language = defaults.Settings.Language
	}
	if migrated.Stats.Medals == nil {
		migrated.Stats.Medals = []string{}
	}
	if migrated.Inventory.UnlockedCats == nil {
		migrated.Inventory.UnlockedCats = defaults.Inventory.UnlockedCats
	}
	if migrated.Inventory.UnlockedCostumes == nil {
		migrated.Inventory.UnlockedCostumes = []string{}
	}
	if migrated.Inventory.CurrentCat == "" {
		migrated.Inventory.CurrentCat = defaults.Inventory.CurrentCat
	}
	if migrated.Missions.Daily == nil {
		migrated.Missions.Daily = []types.Mission{}
	}
	if migrated.Missions.Weekly == nil {
		migrated.Missions.Weekly = []types.Mission{}
	}
	if migrated.Energy.Max == 0 {
		migrated.Energy.Max = defaults.Energy.Max
	}
	if migrated.Energy.RecoveryMinutes == 0 {
		migrated.Energy.RecoveryMinutes = defaults.Energy.RecoveryMinutes
	}

	return migrated
}
