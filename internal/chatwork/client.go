package chatwork

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// ErrInteractiveDisabled is returned for an interactive post when no session
// credentials were configured.
var ErrInteractiveDisabled = errors.New("chatwork interactive session not configured")

// Client picks the delivery channel per call: the session for interactive
// posts, the token API for everything else.
type Client struct {
	api     *APIClient
	session *SessionClient
}

// Options configures NewClient.
type Options struct {
	APIBaseURL string
	Token      string
	// UIBaseURL and Credentials enable the session channel when UIEnabled.
	UIEnabled   bool
	UIBaseURL   string
	Credentials Credentials
	Timeout     time.Duration
	Store       SessionStore
}

// NewClient builds both channels. The session channel is left nil unless
// enabled.
func NewClient(log *slog.Logger, opts Options) *Client {
	httpClient := &http.Client{Timeout: opts.Timeout}
	c := &Client{
		api: NewAPIClient(log, opts.APIBaseURL, opts.Token, httpClient),
	}
	if opts.UIEnabled {
		c.session = NewSessionClient(log, opts.UIBaseURL, opts.Credentials, opts.Store, httpClient)
	}
	return c
}

// PostMessage sends text to a room through the session when interactive is
// set, through the token API otherwise.
func (c *Client) PostMessage(ctx context.Context, roomID, text string, interactive bool) error {
	if !interactive {
		return c.api.PostMessage(ctx, roomID, text)
	}
	if c.session == nil {
		return ErrInteractiveDisabled
	}
	return c.session.PostMessage(ctx, roomID, text)
}

// CreateTask always goes through the token API.
func (c *Client) CreateTask(ctx context.Context, roomID string, task Task) error {
	return c.api.CreateTask(ctx, roomID, task)
}

// Login warms the interactive session.
func (c *Client) Login(ctx context.Context) error {
	if c.session == nil {
		return ErrInteractiveDisabled
	}
	return c.session.Login(ctx)
}
