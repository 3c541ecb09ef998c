// Package chatwork delivers messages and tasks to Chatwork, either through the
// token API or through an interactive browser session.
package chatwork

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// TokenHeader carries the API token on every token API request.
const TokenHeader = "X-ChatWorkToken"

// ErrAPI is returned when the token API answers with a non-2xx status.
var ErrAPI = errors.New("chatwork api error")

// Task is a Chatwork task created in one room.
type Task struct {
	Body string
	// Limit is the deadline as a unix timestamp.
	Limit int64
	ToIDs []string
}

// APIClient talks to the Chatwork token API.
type APIClient struct {
	logger     *slog.Logger
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewAPIClient creates a token API client. httpClient carries the timeout.
func NewAPIClient(log *slog.Logger, baseURL, token string, httpClient *http.Client) *APIClient {
	if log == nil {
		log = slog.Default()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &APIClient{
		logger:     log.With(slog.String("component", "chatwork_api")),
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// PostMessage posts text to a room.
func (c *APIClient) PostMessage(ctx context.Context, roomID, text string) error {
	form := url.Values{}
	form.Set("body", text)
	return c.post(ctx, "/rooms/"+url.PathEscape(roomID)+"/messages", form)
}

// CreateTask creates task in a room.
func (c *APIClient) CreateTask(ctx context.Context, roomID string, task Task) error {
	form := url.Values{}
	form.Set("body", task.Body)
	form.Set("limit", strconv.FormatInt(task.Limit, 10))
	form.Set("to_ids", strings.Join(task.ToIDs, ","))
	return c.post(ctx, "/rooms/"+url.PathEscape(roomID)+"/tasks", form)
}

func (c *APIClient) post(ctx context.Context, path string, form url.Values) error {
	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(TokenHeader, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chatwork api request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("chatwork api error",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("body_prefix", truncate(string(respBody), 300)),
		)
		return fmt.Errorf("%w: %s: status %d", ErrAPI, path, resp.StatusCode)
	}
	c.logger.Debug("chatwork api request ok", slog.String("path", path))
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
