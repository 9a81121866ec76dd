package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	service "github.com/okian/leaderboard/internal/app"
	"github.com/okian/leaderboard/internal/domain/model"
)

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("unexpected status %d", e.Status)
	}
	return fmt.Sprintf("status %d: %s: %s", e.Status, e.Code, e.Message)
}

// Client calls the leaderboard HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for baseURL. A nil hc gets a client with timeout.
func NewClient(baseURL string, hc *http.Client, timeout time.Duration) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// Ping checks GET / answers 200.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/", nil, http.StatusOK, nil)
}

// AddUser creates a user.
func (c *Client) AddUser(ctx context.Context, username string, score int64) (model.User, error) {
	var u model.User
	body := map[string]any{"username": username, "score": score}
	err := c.do(ctx, http.MethodPost, "/api/users/addUser", body, http.StatusCreated, &u)
	return u, err
}

// UpdateScore replaces a user's score.
func (c *Client) UpdateScore(ctx context.Context, id, score int64) (model.User, error) {
	var u model.User
	body := map[string]any{"score": score}
	err := c.do(ctx, http.MethodPut, "/api/users/updateScore/"+strconv.FormatInt(id, 10), body, http.StatusOK, &u)
	return u, err
}

// TopUsers fetches the first limit ranked users.
func (c *Client) TopUsers(ctx context.Context, limit int) ([]model.RankedUser, error) {
	var out []model.RankedUser
	err := c.do(ctx, http.MethodGet, "/api/users/getTopUsers/"+strconv.Itoa(limit), nil, http.StatusOK, &out)
	return out, err
}

// Neighbors fetches the window of radius around id.
func (c *Client) Neighbors(ctx context.Context, id int64, radius int) ([]model.RankedUser, error) {
	var out []model.RankedUser
	path := fmt.Sprintf("/api/users/getUserWithNeighbors/%d?radius=%d", id, radius)
	err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &out)
	return out, err
}

// Rank fetches one ranked user.
func (c *Client) Rank(ctx context.Context, id int64) (model.RankedUser, error) {
	var out model.RankedUser
	err := c.do(ctx, http.MethodGet, "/api/users/getRank/"+strconv.FormatInt(id, 10), nil, http.StatusOK, &out)
	return out, err
}

// Refresh forces a rank index rebuild on the instance answering.
func (c *Client) Refresh(ctx context.Context) (service.RefreshResult, error) {
	var out service.RefreshResult
	err := c.do(ctx, http.MethodPost, "/api/leaderboard/refresh", nil, http.StatusOK, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in any, want int, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != want {
		se := &StatusError{Status: resp.StatusCode}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &env) == nil {
			se.Code, se.Message = env.Error.Code, env.Error.Message
		}
		return fmt.Errorf("%s %s: %w", method, path, se)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
