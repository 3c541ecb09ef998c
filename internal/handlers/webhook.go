package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/arith-alexander/GithubChatworkBot/internal/config"
	"github.com/arith-alexander/GithubChatworkBot/internal/github"
	"github.com/arith-alexander/GithubChatworkBot/internal/logger"
	"github.com/arith-alexander/GithubChatworkBot/internal/relay"
)

const (
	webhookMaxBodyBytes int64 = 1 << 20 // 1 MiB
	deliveryWindow            = time.Hour

	headerEvent    = "X-GitHub-Event"
	headerDelivery = "X-GitHub-Delivery"
)

type eventRelay interface {
	Handle(ctx context.Context, ev github.Event) (relay.Result, error)
}

// WebhookHandler receives GitHub webhook deliveries and relays them.
type WebhookHandler struct {
	logger *slog.Logger
	relay  eventRelay
	path   string
	secret []byte
	now    func() time.Time

	mu         sync.Mutex
	deliveries map[string]time.Time
}

// RoomSummary is one room entry in the webhook response.
type RoomSummary struct {
	Room  string `json:"room"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// WebhookResponse is returned for every relayed delivery.
type WebhookResponse struct {
	Delivery   string        `json:"delivery"`
	Status     string        `json:"status"`
	Kind       string        `json:"kind,omitempty"`
	Outcome    string        `json:"outcome,omitempty"`
	Addressees []string      `json:"addressees,omitempty"`
	Rooms      []RoomSummary `json:"rooms,omitempty"`
}

// NewWebhookHandler is the fx constructor.
func NewWebhookHandler(log *slog.Logger, cfg config.Config, svc *relay.Service) *WebhookHandler {
	return newWebhookHandler(log, cfg.Webhook.Path, cfg.Webhook.Secret, svc)
}

func newWebhookHandler(log *slog.Logger, path, secret string, r eventRelay) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(path) == "" {
		path = config.DefaultWebhookPath
	}
	return &WebhookHandler{
		logger:     log.With(slog.String("handler", "github_webhook")),
		relay:      r,
		path:       path,
		secret:     []byte(strings.TrimSpace(secret)),
		now:        time.Now,
		deliveries: map[string]time.Time{},
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST(h.path, h.Handle)
}

// Handle verifies, decodes and relays one delivery.
func (h *WebhookHandler) Handle(c echo.Context) error {
	req := c.Request()
	body, err := io.ReadAll(io.LimitReader(req.Body, webhookMaxBodyBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
	}
	if int64(len(body)) > webhookMaxBodyBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("payload too large: max %d bytes", webhookMaxBodyBytes))
	}
	if len(h.secret) > 0 {
		if err := github.VerifySignature(h.secret, body, req.Header.Get(github.SignatureHeader)); err != nil {
			h.logger.Warn("webhook signature rejected", slog.Any("error", err))
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook signature")
		}
	}

	deliveryID := strings.TrimSpace(req.Header.Get(headerDelivery))
	fromGitHub := deliveryID != ""
	if !fromGitHub {
		deliveryID = uuid.NewString()
	}
	eventType := strings.TrimSpace(req.Header.Get(headerEvent))
	log := h.logger.With(slog.String("delivery_id", deliveryID), slog.String("event", eventType))

	if eventType == "ping" {
		return c.JSON(http.StatusOK, WebhookResponse{Delivery: deliveryID, Status: "pong"})
	}
	if fromGitHub && h.isDuplicate(deliveryID) {
		log.Debug("duplicate delivery ignored")
		return c.JSON(http.StatusOK, WebhookResponse{Delivery: deliveryID, Status: "duplicate"})
	}

	payload, err := github.ExtractPayload(req.Header.Get(echo.HeaderContentType), body)
	if err == nil {
		var ev github.Event
		ev, err = github.Decode(payload)
		if err == nil {
			err = h.relayEvent(c, log, deliveryID, ev)
			if err != nil && fromGitHub {
				h.forget(deliveryID)
			}
			return err
		}
	}
	if fromGitHub {
		h.forget(deliveryID)
	}
	logger.Critical(log, "undecodable webhook payload", slog.Any("error", err))
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

func (h *WebhookHandler) relayEvent(c echo.Context, log *slog.Logger, deliveryID string, ev github.Event) error {
	// Rooms already started must finish after GitHub hangs up; the chatwork
	// client timeout bounds each call.
	ctx := context.WithoutCancel(c.Request().Context())
	res, err := h.relay.Handle(ctx, ev)
	if err != nil {
		if errors.Is(err, relay.ErrUnclassified) {
			logger.Critical(log, "event handler is not set", slog.Any("error", err))
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		log.Error("relay failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := WebhookResponse{
		Delivery:   deliveryID,
		Status:     "ok",
		Kind:       res.Kind,
		Outcome:    string(res.Outcome),
		Addressees: res.Addressees,
	}
	for _, room := range res.Rooms {
		summary := RoomSummary{Room: room.Room, OK: room.Err == nil}
		if room.Err != nil {
			summary.Error = room.Err.Error()
		}
		resp.Rooms = append(resp.Rooms, summary)
	}
	if res.Failed() > 0 {
		resp.Status = "partial"
		log.Warn("delivery failed for some rooms", slog.Int("failed", res.Failed()), slog.Int("rooms", len(res.Rooms)))
	}
	return c.JSON(http.StatusOK, resp)
}

// isDuplicate records deliveryID and reports whether it was seen within the
// window. Expired ids are pruned on every call.
func (h *WebhookHandler) isDuplicate(deliveryID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	for id, seenAt := range h.deliveries {
		if now.Sub(seenAt) > deliveryWindow {
			delete(h.deliveries, id)
		}
	}
	if _, ok := h.deliveries[deliveryID]; ok {
		return true
	}
	h.deliveries[deliveryID] = now
	return false
}

// forget drops deliveryID so a redelivery of a failed attempt is processed.
func (h *WebhookHandler) forget(deliveryID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.deliveries, deliveryID)
}
