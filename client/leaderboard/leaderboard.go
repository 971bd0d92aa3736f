// Package leaderboard is the client-side view of the leaderboard: a short
// cache over the API plus display annotations.
package leaderboard

import (
	"context"
	"sync"
	"time"

	"github.com/catjump/catjump/client/cloud"
	pkgleaderboard "github.com/catjump/catjump/pkg/leaderboard"
	"github.com/catjump/catjump/pkg/types"
)

// CacheTTL is how long a fetched page stays fresh. Scores move slowly
// enough that refetching on every screen open is wasted traffic.
const CacheTTL = 60 * time.Second

// PageSize is how many entries a leaderboard screen shows.
const PageSize = 20

const (
	ScopeGlobal = "global"
	ScopeWeekly = "weekly"
)

// Entry is one row ready for display.
type Entry struct {
	Rank          int
	Nickname      string
	Score         int64
	Floor         int64
	Tier          string
	IsCurrentUser bool
}

// Tier returns the medal tier for a rank.
func Tier(rank int) string {
	switch rank {
	case 1:
		return "gold"
	case 2:
		return "silver"
	case 3:
		return "bronze"
	default:
		return ""
	}
}

// API is the subset of the cloud client this view needs.
type API interface {
	Leaderboard(ctx context.Context, scope string, limit int) ([]types.LeaderboardEntry, error)
	SubmitScore(ctx context.Context, in cloud.SubmitScoreInput) (*pkgleaderboard.SubmitResult, error)
}

type cachedPage struct {
	entries   []Entry
	fetchedAt time.Time
}

type View struct {
	api API
	uid string

	mu    sync.Mutex
	cache map[string]cachedPage
	now   func() time.Time
}

type NewViewOptions struct {
	API API
	// UID marks the current player's row in fetched pages.
	UID string
}

func NewView(opts NewViewOptions) *View {
	return &View{
		api:   opts.API,
		uid:   opts.UID,
		cache: make(map[string]cachedPage),
		now:   time.Now,
	}
}

// Top returns the top page for scope, served from cache when fresh.
func (v *View) Top(ctx context.Context, scope string) ([]Entry, error) {
	v.mu.Lock()
	if page, ok := v.cache[scope]; ok && v.now().Sub(page.fetchedAt) < CacheTTL {
		entries := page.entries
		v.mu.Unlock()
		return entries, nil
	}
	v.mu.Unlock()

	raw, err := v.api.Leaderboard(ctx, scope, PageSize)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(raw))
	for i, entry := range raw {
		rank := i + 1
		entries = append(entries, Entry{
			Rank:          rank,
			Nickname:      entry.Nickname,
			Score:         entry.Score,
			Floor:         entry.Floor,
			Tier:          Tier(rank),
			IsCurrentUser: entry.UID == v.uid,
		})
	}

	v.mu.Lock()
	v.cache[scope] = cachedPage{entries: entries, fetchedAt: v.now()}
	v.mu.Unlock()

	return entries, nil
}

// SubmitScore submits a run and invalidates the cache so the next Top
// shows the new placement.
func (v *View) SubmitScore(ctx context.Context, in cloud.SubmitScoreInput) (*pkgleaderboard.SubmitResult, error) {
	result, err := v.api.SubmitScore(ctx, in)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.cache = make(map[string]cachedPage)
	v.mu.Unlock()

	return result, nil
}
