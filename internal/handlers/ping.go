package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/arith-alexander/GithubChatworkBot/internal/config"
	"github.com/arith-alexander/GithubChatworkBot/internal/healthcheck"
)

type PingHandler struct {
	logger       *slog.Logger
	repositories int
	interactive  bool
	checkers     []healthcheck.Checker
}

func NewPingHandler(log *slog.Logger, cfg config.Config, checkers []healthcheck.Checker) *PingHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PingHandler{
		logger:       log.With(slog.String("handler", "ping")),
		repositories: len(cfg.Repositories),
		interactive:  cfg.Chatwork.UI.Enabled,
		checkers:     checkers,
	}
}

func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.HEAD("/health", h.PingHead)
}

// Ping reports liveness, the routing summary and every runtime check.
func (h *PingHandler) Ping(c echo.Context) error {
	checks := healthcheck.Collect(c.Request().Context(), h.checkers...)
	return c.JSON(http.StatusOK, map[string]any{
		"status":       healthcheck.Overall(checks),
		"repositories": h.repositories,
		"interactive":  h.interactive,
		"checks":       checks,
	})
}

func (h *PingHandler) PingHead(c echo.Context) error {
	checks := healthcheck.Collect(c.Request().Context(), h.checkers...)
	if healthcheck.Overall(checks) == healthcheck.StatusError {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.NoContent(http.StatusOK)
}
