// Package rewards computes and applies currency rewards exactly once per
// idempotency token. The reward effect and its ledger record commit in the
// same store transaction: a retried or concurrent duplicate request
// observes the winner's record and gets the original result replayed.
package rewards

import (
	"context"
	"fmt"
	"time"

	"github.com/catjump/catjump/pkg/save"
	"github.com/catjump/catjump/pkg/store"
	"github.com/catjump/catjump/pkg/types"
)

// Reward types accepted by Grant.
const (
	TypeDailyLogin = "daily_login"
	TypeOffline    = "offline"
	TypeAd         = "ad"
)

// Rejection reasons. Rejected attempts write no ledger record: they are
// safe to retry once the blocking condition clears.
const (
	ReasonAlreadyClaimed       = "ALREADY_CLAIMED"
	ReasonNotEnoughOfflineTime = "NOT_ENOUGH_OFFLINE_TIME"
	ReasonUnknownRewardType    = "UNKNOWN_REWARD_TYPE"
)

// DefaultIdempotencyTTL matches the observed 24 h ledger retention.
const DefaultIdempotencyTTL = 24 * time.Hour

// rewardTimezone anchors day keys; the original service keys claims to KST
// regardless of device timezone.
var rewardTimezone = time.FixedZone("KST", 9*60*60)

// dailyRewards is the 7-slot login reward cycle, indexed by currentStreak%7.
var dailyRewards = [7]types.Reward{
	{Type: "coins", Amount: 100},
	{Type: "coins", Amount: 150},
	{Type: "coins", Amount: 200},
	{Type: "diamonds", Amount: 5},
	{Type: "coins", Amount: 300},
	{Type: "coins", Amount: 400},
	{Type: "diamonds", Amount: 20},
}

const (
	offlineCoinsPerHour = 10
	offlineCoinsCap     = 480 // 48 h * 10
	adRewardCoins       = 50
)

type Processor struct {
	store store.Store
	ttl   time.Duration
	now   func() time.Time
}

type NewProcessorOptions struct {
	Store store.Store
	// IdempotencyTTL overrides DefaultIdempotencyTTL when positive.
	IdempotencyTTL time.Duration
}

func NewProcessor(opts NewProcessorOptions) *Processor {
	ttl := opts.IdempotencyTTL
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &Processor{
		store: opts.Store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Grant computes the reward for rewardType and applies it to uid's save
// document in one transaction. When idempotencyKey was already processed
// the stored result is returned unchanged, with no second currency
// mutation. A nil error with Success=false is a rejection; an error means
// the grant could not be attempted.
func (p *Processor) Grant(ctx context.Context, uid, rewardType, idempotencyKey string) (*types.RewardResult, error) {
	now := p.now()
	nowMs := now.UnixMilli()

	var result *types.RewardResult
	err := p.store.Update(ctx, func(tx store.Tx) error {
		if idempotencyKey != "" {
			record, err := tx.GetIdempotency(uid, idempotencyKey)
			if err == nil {
				replayed := record.Result
				result = &replayed
				return nil
			}
			if !store.IsNotFound(err) {
				return err
			}
		}

		snapshot, err := tx.GetSave(uid)
		if err != nil {
			if !store.IsNotFound(err) {
				return err
			}
			snapshot = types.DefaultSaveSnapshot()
		}
		snapshot = save.Migrate(snapshot)

		var reward types.Reward
		switch rewardType {
		case TypeDailyLogin:
			today := DayKey(now)
			if snapshot.Retention.LastClaimedDay == today {
				result = &types.RewardResult{Success: false, Reason: ReasonAlreadyClaimed}
				return nil
			}
			reward = dailyRewards[snapshot.Retention.CurrentStreak%7]
			snapshot.Retention.LastClaimedDay = today

		case TypeOffline:
			lastPlay := snapshot.Retention.LastPlayDate
			if lastPlay == 0 {
				lastPlay = nowMs
			}
			hoursOffline := (nowMs - lastPlay) / (1000 * 60 * 60)
			if hoursOffline < 1 {
				result = &types.RewardResult{Success: false, Reason: ReasonNotEnoughOfflineTime}
				return nil
			}
			coins := hoursOffline * offlineCoinsPerHour
			if coins > offlineCoinsCap {
				coins = offlineCoinsCap
			}
			reward = types.Reward{Type: "coins", Amount: coins}
			snapshot.Retention.LastPlayDate = nowMs

		case TypeAd:
			reward = types.Reward{Type: "coins", Amount: adRewardCoins}

		default:
			result = &types.RewardResult{Success: false, Reason: ReasonUnknownRewardType}
			return nil
		}

		switch reward.Type {
		case "coins":
			snapshot.Currency.Coins += reward.Amount
		case "diamonds":
			snapshot.Currency.Diamonds += reward.Amount
		default:
			return fmt.Errorf("unknown currency %q in reward table", reward.Type)
		}

		if err := tx.PutSave(uid, snapshot); err != nil {
			return err
		}

		granted := reward
		result = &types.RewardResult{Success: true, Reward: &granted}

		if idempotencyKey != "" {
			record := &types.IdempotencyRecord{
				Result:    *result,
				CreatedAt: nowMs,
				ExpiresAt: nowMs + p.ttl.Milliseconds(),
			}
			if err := tx.PutIdempotency(uid, idempotencyKey, record); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to grant reward: %w", err)
	}
	return result, nil
}

// DayKey returns the YYYYMMDD integer for t in the reward timezone.
func DayKey(t time.Time) int {
	t = t.In(rewardTimezone)
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}
