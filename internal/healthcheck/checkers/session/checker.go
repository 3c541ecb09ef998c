package sessionchecker

import (
	"context"
	"log/slog"

	"github.com/arith-alexander/GithubChatworkBot/internal/chatwork"
	"github.com/arith-alexander/GithubChatworkBot/internal/healthcheck"
)

const (
	checkTypeSession = "chatwork.session"
	checkID          = checkTypeSession + ".cache"
)

// Store reads the cached session values.
type Store interface {
	Load(ctx context.Context) (map[string]string, error)
}

// Checker reports whether the interactive Chatwork session is cached.
type Checker struct {
	logger  *slog.Logger
	store   Store
	enabled bool
}

// NewChecker creates a session cache checker. A disabled interactive
// channel always reports ok.
func NewChecker(log *slog.Logger, store Store, enabled bool) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		logger:  log.With(slog.String("checker", "healthcheck_session")),
		store:   store,
		enabled: enabled,
	}
}

// ListChecks inspects the session store.
func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	item := healthcheck.CheckResult{
		ID:     checkID,
		Type:   checkTypeSession,
		Status: healthcheck.StatusOK,
	}
	if !c.enabled {
		item.Summary = "Interactive channel is disabled; messages use the token API."
		return []healthcheck.CheckResult{item}
	}
	if c.store == nil {
		item.Status = healthcheck.StatusError
		item.Summary = "Session store is not available."
		return []healthcheck.CheckResult{item}
	}

	values, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("session store unreadable", slog.Any("error", err))
		item.Status = healthcheck.StatusError
		item.Summary = "Session store is unreadable."
		item.Detail = err.Error()
		return []healthcheck.CheckResult{item}
	}

	hasCookie := values[chatwork.KeySession] != ""
	hasToken := values[chatwork.KeyAccessToken] != ""
	item.Metadata = map[string]any{
		"cookie_cached": hasCookie,
		"token_cached":  hasToken,
	}
	if hasCookie && hasToken {
		item.Summary = "Session cookie and access token are cached."
	} else {
		item.Status = healthcheck.StatusWarn
		item.Summary = "Session is not cached; the next message will log in first."
	}
	return []healthcheck.CheckResult{item}
}
