package save

import (
	"github.com/catjump/catjump/pkg/types"
)

// Merge resolves a concurrent-write conflict between a local and a cloud
// snapshot, favoring the player: numeric progress fields take the max of
// both sides, medals take the set union, settings/inventory/missions keep
// the local copy (most recent device intent), and energy adopts whichever
// side has the newer recovery anchor wholesale so the timer is never split
// across two clocks. The merged snapshot is stamped with lastSaved=now.
//
// The outcome is commutative for every max-merged field and for the medal
// set, and merging an already-merged pair with either input is a no-op.
func Merge(local, cloud *types.SaveSnapshot, now int64) *types.SaveSnapshot {
	merged := local.Clone()

	if cloud.Version > merged.Version {
		merged.Version = cloud.Version
	}

	merged.Stats = types.Stats{
		GamesPlayed:  maxInt64(local.Stats.GamesPlayed, cloud.Stats.GamesPlayed),
		TotalScore:   maxInt64(local.Stats.TotalScore, cloud.Stats.TotalScore),
		HighScore:    maxInt64(local.Stats.HighScore, cloud.Stats.HighScore),
		HighFloor:    maxInt64(local.Stats.HighFloor, cloud.Stats.HighFloor),
		PerfectCount: maxInt64(local.Stats.PerfectCount, cloud.Stats.PerfectCount),
		MaxCombo:     maxInt64(local.Stats.MaxCombo, cloud.Stats.MaxCombo),
		Medals:       unionStrings(local.Stats.Medals, cloud.Stats.Medals),
		TotalShares:  maxInt64(local.Stats.TotalShares, cloud.Stats.TotalShares),
	}

	merged.Currency = types.Currency{
		Coins:    maxInt64(local.Currency.Coins, cloud.Currency.Coins),
		Diamonds: maxInt64(local.Currency.Diamonds, cloud.Currency.Diamonds),
	}

	merged.Retention = local.Retention
	merged.Retention.CurrentStreak = maxInt64(local.Retention.CurrentStreak, cloud.Retention.CurrentStreak)

	// Local energy only survives a strictly newer recovery anchor; ties
	// adopt cloud.
	if cloud.Energy.LastRecoveryTime >= local.Energy.LastRecoveryTime {
		merged.Energy = cloud.Energy
	}

	merged.LastSaved = now
	return merged
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// unionStrings keeps the order of a and appends members of b not already
// present.
func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	union := make([]string, 0, len(a)+len(b))
	for _, lists := range [][]string{a, b} {
		for _, s := range lists {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			union = append(union, s)
		}
	}
	return union
}
