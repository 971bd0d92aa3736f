package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/catjump/catjump/pkg/api/middleware"
	"github.com/catjump/catjump/pkg/leaderboard"
	"github.com/catjump/catjump/pkg/log"
	"github.com/catjump/catjump/pkg/ratelimit"
	"github.com/catjump/catjump/pkg/rewards"
	"github.com/catjump/catjump/pkg/save"
	"github.com/catjump/catjump/pkg/store"
	"github.com/catjump/catjump/pkg/types"
)

// maxBodySize caps request bodies. Save snapshots are the largest payload
// and stay well under this.
const maxBodySize = 1 << 20

const defaultLeaderboardLimit = 20
const maxLeaderboardLimit = 100

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, reason string) {
	writeJSON(w, status, errorResponse{Error: message, Reason: reason})
}

// requestUID returns the uid the auth middleware attached to the request.
func requestUID(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, ok := middleware.UIDFromContext(r.Context())
	if !ok {
		log.Error("failed to get uid from context")
		writeError(w, http.StatusInternalServerError, "failed to get uid from context", "")
	}
	return uid, ok
}

func HandleHealthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func HandleGetSave(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := requestUID(w, r)
		if !ok {
			return
		}

		snapshot, err := s.GetSave(r.Context(), uid)
		if err != nil {
			if store.IsNotFound(err) {
				writeError(w, http.StatusNotFound, "save not found", "")
				return
			}
			log.Error("failed to get save: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to get save", "")
			return
		}

		writeJSON(w, http.StatusOK, snapshot)
	}
}

func HandlePutSave(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := requestUID(w, r)
		if !ok {
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body", "")
			return
		}

		snapshot, err := save.Decode(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid save data", "INVALID_DATA")
			return
		}
		snapshot = save.Migrate(snapshot)

		if err := s.PutSave(r.Context(), uid, snapshot); err != nil {
			log.Error("failed to put save: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to put save", "")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

type validateScoreRequest struct {
	Score        int64                `json:"score"`
	Floor        int64                `json:"floor"`
	PerfectCount int64                `json:"perfectCount"`
	MaxCombo     int64                `json:"maxCombo"`
	PlayTimeMs   int64                `json:"playTime"`
	Actions      []leaderboard.Action `json:"actions"`
}

type validateScoreResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func HandleValidateScore(limiter *ratelimit.Limiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := requestUID(w, r)
		if !ok {
			return
		}

		if !limiter.Admit(r.Context(), uid, ratelimit.OpValidateScore) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "")
			return
		}

		var req validateScoreRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "INVALID_DATA")
			return
		}

		result := leaderboard.ValidateScore(leaderboard.ValidationInput{
			Score:        req.Score,
			Floor:        req.Floor,
			PerfectCount: req.PerfectCount,
			MaxCombo:     req.MaxCombo,
			PlayTimeMs:   req.PlayTimeMs,
			Actions:      req.Actions,
		})

		writeJSON(w, http.StatusOK, validateScoreResponse{
			Valid:  result.Valid,
			Reason: result.Reason,
		})
	}
}

type grantRewardRequest struct {
	Type           string `json:"type"`
	IdempotencyKey string `json:"idempotencyKey"`
}

func HandleGrantReward(limiter *ratelimit.Limiter, processor *rewards.Processor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := requestUID(w, r)
		if !ok {
			return
		}

		if !limiter.Admit(r.Context(), uid, ratelimit.OpGrantReward) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "")
			return
		}

		var req grantRewardRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "INVALID_DATA")
			return
		}

		if req.IdempotencyKey == "" {
			writeError(w, http.StatusBadRequest, "idempotencyKey is required", "INVALID_DATA")
			return
		}

		result, err := processor.Grant(r.Context(), uid, req.Type, req.IdempotencyKey)
		if err != nil {
			log.Error("failed to grant reward: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to grant reward", "")
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

type submitScoreRequest struct {
	Score        int64                `json:"score"`
	Floor        int64                `json:"floor"`
	Nickname     string               `json:"nickname"`
	PerfectCount int64                `json:"perfectCount"`
	MaxCombo     int64                `json:"maxCombo"`
	PlayTimeMs   int64                `json:"playTime"`
	Actions      []leaderboard.Action `json:"actions"`
}

func HandleSubmitScore(limiter *ratelimit.Limiter, service *leaderboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := requestUID(w, r)
		if !ok {
			return
		}

		if !limiter.Admit(r.Context(), uid, ratelimit.OpUpdateLeaderboard) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "")
			return
		}

		var req submitScoreRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "INVALID_DATA")
			return
		}

		result, err := service.SubmitScore(r.Context(), uid, leaderboard.SubmitInput{
			Score:        req.Score,
			Floor:        req.Floor,
			Nickname:     req.Nickname,
			PerfectCount: req.PerfectCount,
			MaxCombo:     req.MaxCombo,
			PlayTimeMs:   req.PlayTimeMs,
			Actions:      req.Actions,
		})
		if err != nil {
			var validationErr *leaderboard.ValidationError
			if errors.As(err, &validationErr) {
				writeError(w, http.StatusBadRequest, "score validation failed", validationErr.Reason)
				return
			}
			log.Error("failed to submit score: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to submit score", "")
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func HandleGetLeaderboard(service *leaderboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requestUID(w, r); !ok {
			return
		}

		limit := defaultLeaderboardLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil || parsed < 1 {
				writeError(w, http.StatusBadRequest, "invalid limit", "INVALID_DATA")
				return
			}
			if parsed > maxLeaderboardLimit {
				parsed = maxLeaderboardLimit
			}
			limit = parsed
		}

		var entries []types.LeaderboardEntry
		var err error
		switch scope := r.URL.Query().Get("scope"); scope {
		case "", "global":
			entries, err = service.Top(r.Context(), limit)
		case "weekly":
			entries, err = service.TopWeekly(r.Context(), limit)
		default:
			writeError(w, http.StatusBadRequest, "invalid scope", "INVALID_DATA")
			return
		}
		if err != nil {
			log.Error("failed to get leaderboard: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to get leaderboard", "")
			return
		}

		if entries == nil {
			entries = []types.LeaderboardEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}
