// Package leaderboard implements score validation, conditional best-score
// updates, and approximate rank computation.
package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/catjump/catjump/pkg/store"
	"github.com/catjump/catjump/pkg/types"
)

// RankScanLimit bounds the rank scan; only the top of the board matters to
// players, so rank beyond the limit is reported as limit+1.
const RankScanLimit = 1000

// ValidationError rejects a submission that failed plausibility checks.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("score validation failed: %s", e.Reason)
}

type Service struct {
	store store.Store
	now   func() time.Time
}

type NewServiceOptions struct {
	Store store.Store
}

func NewService(opts NewServiceOptions) *Service {
	return &Service{
		store: opts.Store,
		now:   time.Now,
	}
}

type SubmitInput struct {
	Score        int64
	Floor        int64
	Nickname     string
	PerfectCount int64
	MaxCombo     int64
	PlayTimeMs   int64
	Actions      []Action
}

type SubmitResult struct {
	Success   bool `json:"success"`
	NewRecord bool `json:"newRecord"`
	Rank      int  `json:"rank"`
}

// SubmitScore validates the submission, then conditionally overwrites the
// player's global and current-week entries inside one transaction: only a
// score strictly above the stored one is written. Rank is computed outside
// the transaction by scanning the top RankScanLimit entries and counting
// strictly higher scores.
func (s *Service) SubmitScore(ctx context.Context, uid string, in SubmitInput) (*SubmitResult, error) {
	validation := ValidateScore(ValidationInput{
		Score:        in.Score,
		Floor:        in.Floor,
		PerfectCount: in.PerfectCount,
		MaxCombo:     in.MaxCombo,
		PlayTimeMs:   in.PlayTimeMs,
		Actions:      in.Actions,
	})
	if !validation.Valid {
		return nil, &ValidationError{Reason: validation.Reason}
	}

	nickname := in.Nickname
	if nickname == "" {
		nickname = DefaultNickname(uid)
	}

	now := s.now()
	newRecord := false
	err := s.store.Update(ctx, func(tx store.Tx) error {
		var currentScore int64
		entry, err := tx.GetEntry(uid)
		if err != nil {
			if !store.IsNotFound(err) {
				return err
			}
		} else {
			currentScore = entry.Score
		}

		if in.Score <= currentScore {
			return nil
		}

		updated := &types.LeaderboardEntry{
			UID:       uid,
			Nickname:  nickname,
			Score:     in.Score,
			Floor:     in.Floor,
			UpdatedAt: now.UnixMilli(),
		}
		if err := tx.PutEntry(updated); err != nil {
			return err
		}

		weekly := *updated
		weekly.WeekID = WeekID(now)
		if err := tx.PutWeeklyEntry(&weekly); err != nil {
			return err
		}

		newRecord = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update leaderboard: %w", err)
	}

	rank, err := s.rank(ctx, uid, in.Score)
	if err != nil {
		return nil, fmt.Errorf("failed to compute rank: %w", err)
	}

	return &SubmitResult{
		Success:   true,
		NewRecord: newRecord,
		Rank:      rank,
	}, nil
}

// rank counts entries with a strictly higher score than the submission,
// stopping at the player's own entry.
func (s *Service) rank(ctx context.Context, uid string, score int64) (int, error) {
	entries, err := s.store.TopEntries(ctx, RankScanLimit)
	if err != nil {
		return 0, err
	}

	rank := 1
	for _, entry := range entries {
		if entry.UID == uid {
			break
		}
		if entry.Score > score {
			rank++
		}
	}
	return rank, nil
}

// Top returns the global leaderboard ordered by score descending.
func (s *Service) Top(ctx context.Context, limit int) ([]types.LeaderboardEntry, error) {
	return s.store.TopEntries(ctx, limit)
}

// TopWeekly returns the current week's leaderboard.
func (s *Service) TopWeekly(ctx context.Context, limit int) ([]types.LeaderboardEntry, error) {
	return s.store.TopWeeklyEntries(ctx, WeekID(s.now()), limit)
}

// DefaultNickname derives a display name from the uid for players who
// never set one.
func DefaultNickname(uid string) string {
	if len(uid) > 6 {
		uid = uid[:6]
	}
	return "Cat" + uid
}
