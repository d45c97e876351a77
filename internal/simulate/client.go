package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/storyrank/internal/adapters/http/auth"
	"github.com/okian/storyrank/internal/domain/model"
	"github.com/okian/storyrank/internal/domain/types"
)

// maxErrorBody bounds how much of a failed response ends up in an error.
const maxErrorBody = 512

type client struct {
	http    *http.Client
	baseURL string
	token   string
	tenant  string
	user    string
}

func newClient(cfg *Config) *client {
	return &client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		tenant:  cfg.Tenant,
		user:    cfg.User,
	}
}

// do sends body as JSON and decodes a 2xx response into out. The status
// code is returned so callers can tell an accepted comparison from a
// duplicate.
func (c *client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else {
		req.Header.Set(auth.HeaderTenant, c.tenant)
		req.Header.Set(auth.HeaderUser, c.user)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.StatusCode, nil
}

func (c *client) health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	return err
}

func (c *client) createStories(ctx context.Context, titles []string) ([]model.Story, error) {
	var resp struct {
		Stories []model.Story `json:"stories"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/stories", map[string][]string{"titles": titles}, &resp); err != nil {
		return nil, err
	}
	return resp.Stories, nil
}

type comparison struct {
	ComparisonID  string `json:"comparison_id"`
	Metric        string `json:"metric"`
	LeftStoryID   string `json:"left_story_id"`
	RightStoryID  string `json:"right_story_id"`
	WinnerStoryID string `json:"winner_story_id"`
	TS            string `json:"ts"`
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeAccepted
	outcomeDuplicate
)

func (c *client) compare(ctx context.Context, cmp comparison) outcome {
	var resp struct {
		Duplicate bool `json:"duplicate"`
	}
	code, err := c.do(ctx, http.MethodPost, "/elo/compare", cmp, &resp)
	switch {
	case err != nil:
		return outcomeFailed
	case code == http.StatusOK && resp.Duplicate:
		return outcomeDuplicate
	default:
		return outcomeAccepted
	}
}

func (c *client) stats(ctx context.Context) (types.Stats, error) {
	var st types.Stats
	_, err := c.do(ctx, http.MethodGet, "/stats", nil, &st)
	return st, err
}

func (c *client) leaderboard(ctx context.Context, metric string, limit int) ([]types.Entry, error) {
	var entries []types.Entry
	path := fmt.Sprintf("/leaderboard?metric=%s&limit=%d", metric, limit)
	if _, err := c.do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func timestamp() string { return time.Now().UTC().Format(time.RFC3339) }
