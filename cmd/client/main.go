package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/catjump/catjump/client/cloud"
	clientleaderboard "github.com/catjump/catjump/client/leaderboard"
	clientsave "github.com/catjump/catjump/client/save"
	authproviders "github.com/catjump/catjump/pkg/auth/providers"
	"github.com/catjump/catjump/pkg/log"
	"github.com/catjump/catjump/pkg/rewards"
	"github.com/catjump/catjump/pkg/types"
	"github.com/catjump/catjump/pkg/version"
)

// Headless client for exercising a running server: boots a save, syncs it
// with the cloud, claims the daily reward, submits a score, and prints the
// leaderboard.
func main() {
	serverURL := flag.String("server-url", "http://localhost:8080", "server base URL")
	uid := flag.String("uid", "local-player", "player uid to sign the dev token for")
	jwtSecret := flag.String("jwt-secret", "", "shared secret for the dev jwt auth provider")
	dataDir := flag.String("data-dir", ".", "directory for the local save file")
	score := flag.Int64("score", 1200, "score to submit")
	floor := flag.Int64("floor", 40, "floor to submit")
	conflictWindowMs := flag.Int64("conflict-window-ms", clientsave.DefaultConflictWindowMs, "save conflict merge window in milliseconds")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)

	log.Info("Starting client version %s", version.Get())
	ctx := context.Background()

	if *jwtSecret == "" {
		panic("-jwt-secret must be set")
	}
	tokenProvider := authproviders.NewJWTAuthProvider(*jwtSecret)
	token, err := tokenProvider.IssueToken(*uid)
	if err != nil {
		panic(fmt.Sprintf("Failed to issue token: %v", err))
	}

	apiClient := cloud.NewClient(cloud.NewClientOptions{
		BaseURL: *serverURL,
		Token: func(ctx context.Context) (string, error) {
			return token, nil
		},
	})

	manager := clientsave.NewManager(clientsave.NewManagerOptions{
		Local: clientsave.NewLocalStore(clientsave.NewLocalStoreOptions{
			Dir: *dataDir,
		}),
		Syncer: clientsave.NewSyncer(clientsave.NewSyncerOptions{
			Cloud:            apiClient,
			ConflictWindowMs: *conflictWindowMs,
		}),
	})
	if err := manager.Initialize(ctx); err != nil {
		panic(fmt.Sprintf("Failed to initialize save manager: %v", err))
	}
	defer func() {
		if err := manager.Close(); err != nil {
			log.Error("Failed to close save manager: %v", err)
		}
	}()

	snapshot := manager.Snapshot()
	log.Info("Save loaded: %d games played, high score %d, %d coins",
		snapshot.Stats.GamesPlayed, snapshot.Stats.HighScore, snapshot.Currency.Coins)

	result, err := apiClient.GrantReward(ctx, rewards.TypeDailyLogin)
	if err != nil {
		log.Error("Failed to claim daily reward: %v", err)
	} else if result.Success {
		log.Info("Daily reward: %d %s", result.Reward.Amount, result.Reward.Type)
		manager.Mutate(applyReward(result))
	} else {
		log.Info("Daily reward not granted: %s", result.Reason)
	}

	manager.RecordGameResult(clientsave.GameResult{
		Score: *score,
		Floor: *floor,
	})

	view := clientleaderboard.NewView(clientleaderboard.NewViewOptions{
		API: apiClient,
		UID: *uid,
	})
	submitResult, err := view.SubmitScore(ctx, cloud.SubmitScoreInput{
		Score:      *score,
		Floor:      *floor,
		PlayTimeMs: *floor * 2500,
	})
	if err != nil {
		log.Error("Failed to submit score: %v", err)
	} else {
		log.Info("Score submitted: newRecord=%t rank=%d", submitResult.NewRecord, submitResult.Rank)
	}

	entries, err := view.Top(ctx, clientleaderboard.ScopeGlobal)
	if err != nil {
		log.Error("Failed to fetch leaderboard: %v", err)
		return
	}
	for _, entry := range entries {
		marker := " "
		if entry.IsCurrentUser {
			marker = "*"
		}
		log.Info("%s #%d %s: %d (floor %d)", marker, entry.Rank, entry.Nickname, entry.Score, entry.Floor)
	}
}

func applyReward(result *types.RewardResult) func(s *types.SaveSnapshot) {
	return func(s *types.SaveSnapshot) {
		switch result.Reward.Type {
		case "coins":
			s.Currency.Coins += result.Reward.Amount
		case "diamonds":
			s.Currency.Diamonds += result.Reward.Amount
		}
	}
}
