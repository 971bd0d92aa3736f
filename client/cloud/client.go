// Package cloud is the game client's HTTP client for the backend API.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/catjump/catjump/pkg/leaderboard"
	"github.com/catjump/catjump/pkg/types"
	"github.com/google/uuid"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string
	Reason  string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("api error %d: %s (%s)", e.Status, e.Message, e.Reason)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsNotFound checks if the error is a 404 APIError
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Status == http.StatusNotFound
}

// TokenFunc returns a fresh bearer token for the current player.
type TokenFunc func(ctx context.Context) (string, error)

type Client struct {
	baseURL    string
	token      TokenFunc
	httpClient *http.Client
}

type NewClientOptions struct {
	BaseURL string
	Token   TokenFunc
	// HTTPClient overrides the default client. Optional.
	HTTPClient *http.Client
}

func NewClient(opts NewClientOptions) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    opts.BaseURL,
		token:      opts.Token,
		httpClient: httpClient,
	}
}

// GetSave fetches the player's cloud save. Returns a 404 APIError if the
// player has never uploaded one.
func (c *Client) GetSave(ctx context.Context) (*types.SaveSnapshot, error) {
	var snapshot types.SaveSnapshot
	if err := c.do(ctx, http.MethodGet, "/v1/save", nil, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// PutSave uploads the player's save.
func (c *Client) PutSave(ctx context.Context, snapshot *types.SaveSnapshot) error {
	return c.do(ctx, http.MethodPut, "/v1/save", snapshot, nil)
}

type ValidateScoreInput struct {
	Score        int64                `json:"score"`
	Floor        int64                `json:"floor"`
	PerfectCount int64                `json:"perfectCount"`
	MaxCombo     int64                `json:"maxCombo"`
	PlayTimeMs   int64                `json:"playTime"`
	Actions      []leaderboard.Action `json:"actions"`
}

type ValidateScoreResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func (c *Client) ValidateScore(ctx context.Context, in ValidateScoreInput) (*ValidateScoreResult, error) {
	var result ValidateScoreResult
	if err := c.do(ctx, http.MethodPost, "/v1/scores/validate", in, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type grantRewardRequest struct {
	Type           string `json:"type"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// GrantReward requests a reward grant. A fresh idempotency key is attached
// so a retried request cannot double-grant.
func (c *Client) GrantReward(ctx context.Context, rewardType string) (*types.RewardResult, error) {
	req := grantRewardRequest{
		Type:           rewardType,
		IdempotencyKey: uuid.New().String(),
	}
	var result types.RewardResult
	if err := c.do(ctx, http.MethodPost, "/v1/rewards/grant", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type SubmitScoreInput struct {
	Score        int64                `json:"score"`
	Floor        int64                `json:"floor"`
	Nickname     string               `json:"nickname"`
	PerfectCount int64                `json:"perfectCount"`
	MaxCombo     int64                `json:"maxCombo"`
	PlayTimeMs   int64                `json:"playTime"`
	Actions      []leaderboard.Action `json:"actions"`
}

func (c *Client) SubmitScore(ctx context.Context, in SubmitScoreInput) (*leaderboard.SubmitResult, error) {
	var result leaderboard.SubmitResult
	if err := c.do(ctx, http.MethodPost, "/v1/leaderboard", in, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Leaderboard fetches the top entries for scope ("global" or "weekly").
func (c *Client) Leaderboard(ctx context.Context, scope string, limit int) ([]types.LeaderboardEntry, error) {
	path := fmt.Sprintf("/v1/leaderboard?scope=%s&limit=%d", scope, limit)
	var entries []types.LeaderboardEntry
	if err := c.do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get auth token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var errBody struct {
			Error  string `json:"error"`
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil {
			apiErr.Message = errBody.Error
			apiErr.Reason = errBody.Reason
		}
		return apiErr
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %v", err)
		}
	}

	return nil
}
