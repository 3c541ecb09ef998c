package chatwork

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
)

// Session store keys.
const (
	KeySession     = "cwssid"
	KeyBalancer    = "AWSELB"
	KeyAccessToken = "access_token"
)

const (
	maxSendAttempts = 2
	noLoginMessage  = "NO LOGIN"
	lastChatID      = 1157396100
	userAgent       = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.10; rv:45.0) Gecko/20100101 Firefox/45.0"
)

var (
	// ErrNoLogin means the server rejected the cached session.
	ErrNoLogin = errors.New("chatwork session expired")
	// ErrLoginFailed means the login response carried no session cookie.
	ErrLoginFailed = errors.New("chatwork login failed")
	// ErrTokenNotFound means the authenticated page had no access token.
	ErrTokenNotFound = errors.New("chatwork access token not found")
	// ErrSendRejected means the gateway refused the message for another reason.
	ErrSendRejected = errors.New("chatwork rejected message")

	accessTokenPattern = regexp.MustCompile(`ACCESS_TOKEN = '([a-z0-9]+)'`)
)

// SessionStore persists session cookies and the access token.
type SessionStore interface {
	Load(ctx context.Context) (map[string]string, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Update(ctx context.Context, fn func(values map[string]string) error) error
}

// ForgetSession removes the cached cookies and token from store and reports
// whether a session cookie was cached.
func ForgetSession(ctx context.Context, store SessionStore) (bool, error) {
	_, cached, err := store.Get(ctx, KeySession)
	if err != nil {
		return false, fmt.Errorf("read session: %w", err)
	}
	if err := store.Delete(ctx, KeySession, KeyBalancer, KeyAccessToken); err != nil {
		return false, fmt.Errorf("clear session: %w", err)
	}
	return cached, nil
}

// Credentials identify the account the session client logs in as.
type Credentials struct {
	Email    string
	ID       string
	Password string
}

// SessionClient posts messages through the web UI gateway so they appear as
// written by a real account. Calls are serialized.
type SessionClient struct {
	logger     *slog.Logger
	baseURL    string
	creds      Credentials
	store      SessionStore
	httpClient *http.Client

	mu      sync.Mutex
	loaded  bool
	cookies map[string]string
	token   string
}

type gatewayResponse struct {
	Status struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	} `json:"status"`
}

// NewSessionClient creates a session client. Cached state is read from store
// on first use, not here.
func NewSessionClient(log *slog.Logger, baseURL string, creds Credentials, store SessionStore, httpClient *http.Client) *SessionClient {
	if log == nil {
		log = slog.Default()
	}
	client := &http.Client{}
	if httpClient != nil {
		*client = *httpClient
	}
	// Login cookies arrive on the redirect response itself.
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return &SessionClient{
		logger:     log.With(slog.String("component", "chatwork_session")),
		baseURL:    strings.TrimRight(baseURL, "/"),
		creds:      creds,
		store:      store,
		httpClient: client,
		cookies:    map[string]string{},
	}
}

// PostMessage sends text to a room. A "NO LOGIN" answer triggers one fresh
// login and token fetch before the second and last attempt.
func (c *SessionClient) PostMessage(ctx context.Context, roomID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureSession(ctx); err != nil {
		return err
	}
	var lastErr error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		err := c.send(ctx, roomID, text)
		if err == nil {
			return nil
		}
		lastErr = err
		c.logger.Warn("chatwork send failed",
			slog.String("room_id", roomID),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		if attempt == maxSendAttempts || !errors.Is(err, ErrNoLogin) {
			continue
		}
		if err := c.refresh(ctx); err != nil {
			return fmt.Errorf("room %s: %w", roomID, err)
		}
	}
	return fmt.Errorf("room %s: %w", roomID, lastErr)
}

// Login performs a fresh login and token fetch and persists both.
func (c *SessionClient) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = true
	return c.refresh(ctx)
}

func (c *SessionClient) refresh(ctx context.Context) error {
	if err := c.login(ctx); err != nil {
		return err
	}
	return c.fetchToken(ctx)
}

func (c *SessionClient) ensureSession(ctx context.Context) error {
	if !c.loaded {
		values, err := c.store.Load(ctx)
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		for _, key := range []string{KeySession, KeyBalancer} {
			if v := values[key]; v != "" {
				c.cookies[key] = v
			}
		}
		c.token = values[KeyAccessToken]
		c.loaded = true
	}
	if c.cookies[KeySession] == "" {
		if err := c.login(ctx); err != nil {
			return err
		}
	}
	if c.token == "" {
		return c.fetchToken(ctx)
	}
	return nil
}

func (c *SessionClient) login(ctx context.Context) error {
	form := url.Values{}
	form.Set("auto_login", "on")
	form.Set("email", c.creds.Email)
	form.Set("login", "ログイン")
	form.Set("password", c.creds.Password)

	resp, err := c.do(ctx, http.MethodPost, "/login.php?lang=ja&args=", form)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	cookies := map[string]string{}
	for _, ck := range resp.Cookies() {
		if ck.Name == KeySession || ck.Name == KeyBalancer {
			cookies[ck.Name] = ck.Value
		}
	}
	if cookies[KeySession] == "" {
		return fmt.Errorf("%w: no %s cookie (status %d)", ErrLoginFailed, KeySession, resp.StatusCode)
	}
	c.cookies = cookies
	c.logger.Info("chatwork login ok")

	return c.store.Update(ctx, func(values map[string]string) error {
		values[KeySession] = cookies[KeySession]
		if v := cookies[KeyBalancer]; v != "" {
			values[KeyBalancer] = v
		} else {
			delete(values, KeyBalancer)
		}
		return nil
	})
}

func (c *SessionClient) fetchToken(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenNotFound, err)
	}
	defer resp.Body.Close()
	page, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenNotFound, err)
	}
	m := accessTokenPattern.FindSubmatch(page)
	if m == nil {
		return ErrTokenNotFound
	}
	c.token = string(m[1])
	c.logger.Info("chatwork access token refreshed")

	return c.store.Set(ctx, KeyAccessToken, c.token)
}

func (c *SessionClient) send(ctx context.Context, roomID, text string) error {
	pdata, err := json.Marshal(map[string]any{
		"text":         text,
		"room_id":      roomID,
		"last_chat_id": lastChatID,
		"read":         1,
		"edit_id":      0,
	})
	if err != nil {
		return err
	}
	form := url.Values{}
	form.Set("pdata", string(pdata))

	query := url.Values{}
	query.Set("cmd", "send_chat")
	query.Set("myid", c.creds.ID)
	query.Set("_v", "1.80a")
	query.Set("_av", "4")
	query.Set("ln", "ja")
	query.Set("_t", c.token)

	resp, err := c.do(ctx, http.MethodPost, "/gateway.php?"+query.Encode(), form)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	var parsed gatewayResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("%w: undecodable response (status %d): %s", ErrSendRejected, resp.StatusCode, truncate(string(body), 200))
	}
	if parsed.Status.Success {
		return nil
	}
	if parsed.Status.Message == noLoginMessage {
		return ErrNoLogin
	}
	return fmt.Errorf("%w: %s", ErrSendRejected, parsed.Status.Message)
}

func (c *SessionClient) do(ctx context.Context, method, path string, form url.Values) (*http.Response, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ja,en-US;q=0.7,en;q=0.3")
	req.Header.Set("User-Agent", userAgent)
	for _, name := range []string{KeySession, KeyBalancer} {
		if v := c.cookies[name]; v != "" {
			req.AddCookie(&http.Cookie{Name: name, Value: v})
		}
	}
	return c.httpClient.Do(req)
}
