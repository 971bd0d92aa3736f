// Package types defines the save document and server-side record types
// shared between the client and the backend.
package types

// CurrentSchemaVersion is the save document schema version written by this
// build. Loaded documents with a lower version are upgraded in place.
const CurrentSchemaVersion = 1

// Settings holds device-level user preferences.
type Settings struct {
	Sound      bool   `json:"sound"`
	Music      bool   `json:"music"`
	Haptics    bool   `json:"haptics"`
	Language   string `json:"language"`
	AdsRemoved bool   `json:"adsRemoved"`
}

// Stats holds lifetime gameplay progress.
type Stats struct {
	GamesPlayed  int64    `json:"gamesPlayed"`
	TotalScore   int64    `json:"totalScore"`
	HighScore    int64    `json:"highScore"`
	HighFloor    int64    `json:"highFloor"`
	PerfectCount int64    `json:"perfectCount"`
	MaxCombo     int64    `json:"maxCombo"`
	Medals       []string `json:"medals"`
	TotalShares  int64    `json:"totalShares"`
}

// Currency holds the player's balances. Both are invariant non-negative.
type Currency struct {
	Coins    int64 `json:"coins"`
	Diamonds int64 `json:"diamonds"`
}

// Inventory holds unlocked content and the current selection.
type Inventory struct {
	UnlockedCats     []string `json:"unlockedCats"`
	UnlockedCostumes []string `json:"unlockedCostumes"`
	CurrentCat       string   `json:"currentCat"`
	CurrentCostume   string   `json:"currentCostume"`
}

// Mission is one daily or weekly mission slot.
type Mission struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Target    int64  `json:"target"`
	Current   int64  `json:"current"`
	Completed bool   `json:"completed"`
	Claimed   bool   `json:"claimed"`
}

// Missions holds mission progress and reset bookkeeping.
type Missions struct {
	Daily           []Mission `json:"dailyMissions"`
	Weekly          []Mission `json:"weeklyMissions"`
	LastDailyReset  int64     `json:"lastDailyReset"`
	LastWeeklyReset int64     `json:"lastWeeklyReset"`
}

// Retention tracks play-day streaks and reward claims. LastClaimedDay is a
// YYYYMMDD integer in the reward timezone.
type Retention struct {
	FirstPlayDate   int64 `json:"firstPlayDate"`
	LastPlayDate    int64 `json:"lastPlayDate"`
	TotalDaysPlayed int64 `json:"totalDaysPlayed"`
	CurrentStreak   int64 `json:"currentStreak"`
	LongestStreak   int64 `json:"longestStreak"`
	LastClaimedDay  int   `json:"lastClaimedDay"`
}

// Energy tracks the play-session stamina timer. Recovery is anchored to
// LastRecoveryTime so the whole struct must move between devices as a unit.
type Energy struct {
	Current          int   `json:"current"`
	Max              int   `json:"max"`
	LastRecoveryTime int64 `json:"lastRecoveryTime"`
	RecoveryMinutes  int   `json:"recoveryMinutes"`
}

// SaveSnapshot is the full serialized state of one player's progress. One
// document per player, mirrored between the device-local store and the
// cloud store. LastSaved is epoch milliseconds written by whichever side
// last committed.
type SaveSnapshot struct {
	Version   int       `json:"version"`
	Settings  Settings  `json:"settings"`
	Stats     Stats     `json:"stats"`
	Currency  Currency  `json:"currency"`
	Inventory Inventory `json:"inventory"`
	Missions  Missions  `json:"missions"`
	Retention Retention `json:"retention"`
	Energy    Energy    `json:"energy"`
	LastSaved int64     `json:"lastSaved"`
}

// DefaultSaveSnapshot returns the schema defaults for a first boot.
func DefaultSaveSnapshot() *SaveSnapshot {
	return &SaveSnapshot{
		Version: CurrentSchemaVersion,
		Settings: Settings{
			Sound:    true,
			Music:    true,
			Haptics:  true,
			Language: "ko",
		},
		Stats: Stats{
			Medals: []string{},
		},
		Inventory: Inventory{
			UnlockedCats:     []string{"default"},
			UnlockedCostumes: []string{},
			CurrentCat:       "default",
		},
		Missions: Missions{
			Daily:  []Mission{},
			Weekly: []Mission{},
		},
		Energy: Energy{
			Current:         5,
			Max:             5,
			RecoveryMinutes: 20,
		},
	}
}

// Clone returns a deep copy of the snapshot.
func (s *SaveSnapshot) Clone() *SaveSnapshot {
	c := *s
	c.Stats.Medals = append([]string(nil), s.Stats.Medals...)
	c.Inventory.UnlockedCats = append([]string(nil), s.Inventory.UnlockedCats...)
	c.Inventory.UnlockedCostumes = append([]string(nil), s.Inventory.UnlockedCostumes...)
	c.Missions.Daily = append([]Mission(nil), s.Missions.Daily...)
	c.Missions.Weekly = append([]Mission(nil), s.Missions.Weekly...)
	return &c
}

// RateLimitRecord tracks recent request timestamps for one (uid, operation)
// pair. Requests holds epoch-millisecond timestamps within the current
// window, oldest first.
type RateLimitRecord struct {
	Requests  []int64 `json:"requests"`
	UpdatedAt int64   `json:"updatedAt"`
}

// Reward is a single currency grant.
type Reward struct {
	Type   string `json:"type"`
	Amount int64  `json:"amount"`
}

// RewardResult is the response of a grant request. Results of successful
// grants are recorded in the idempotency ledger and replayed verbatim on
// retries.
type RewardResult struct {
	Success bool    `json:"success"`
	Reward  *Reward `json:"reward,omitempty"`
	Reason  string  `json:"reason,omitempty"`
}

// IdempotencyRecord is the durable record of an already-processed request,
// keyed by (uid, idempotency token). Created inside the same transaction as
// the side effect it deduplicates; read-only afterward.
type IdempotencyRecord struct {
	Result    RewardResult `json:"result"`
	CreatedAt int64        `json:"createdAt"`
	ExpiresAt int64        `json:"expiresAt"`
}

// LeaderboardEntry is one player's best run. Global entries are keyed by
// uid; weekly entries additionally carry the WeekID they belong to.
type LeaderboardEntry struct {
	UID       string `json:"uid"`
	Nickname  string `json:"nickname"`
	Score     int64  `json:"score"`
	Floor     int64  `json:"floor"`
	UpdatedAt int64  `json:"updatedAt"`
	WeekID    string `json:"weekId,omitempty"`
}
