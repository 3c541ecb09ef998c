package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/arith-alexander/GithubChatworkBot/internal/chatwork"
	"github.com/arith-alexander/GithubChatworkBot/internal/config"
	"github.com/arith-alexander/GithubChatworkBot/internal/directory"
	"github.com/arith-alexander/GithubChatworkBot/internal/healthcheck"
	sessionchecker "github.com/arith-alexander/GithubChatworkBot/internal/healthcheck/checkers/session"
	"github.com/arith-alexander/GithubChatworkBot/internal/kvstore"
	"github.com/arith-alexander/GithubChatworkBot/internal/logger"
	"github.com/arith-alexander/GithubChatworkBot/internal/relay"
	"github.com/arith-alexander/GithubChatworkBot/internal/schedule"
)

const (
	sessionRefreshJob = "chatwork_session_refresh"
	// A refresh is one login request plus one token request.
	maxRefreshCalls = 2
)

type configPath string

func provideConfig(path configPath) (config.Config, error) {
	cfg, err := config.Load(string(path))
	if err != nil {
		logger.Critical(logger.L, "load config failed", slog.String("path", string(path)), slog.Any("error", err))
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Init(cfg.Log.Level, cfg.Log.Format)
		logger.Critical(logger.L, "execution failed: configuration is incomplete", slog.Any("error", err))
		return config.Config{}, err
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideSessionStore(cfg config.Config) (*kvstore.Store, error) {
	store, err := kvstore.Open(cfg.Session.Path)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return store, nil
}

func provideChatworkClient(log *slog.Logger, cfg config.Config, store *kvstore.Store) *chatwork.Client {
	return chatwork.NewClient(log, chatwork.Options{
		APIBaseURL: cfg.Chatwork.APIBaseURL,
		Token:      cfg.Chatwork.Token,
		UIEnabled:  cfg.Chatwork.UI.Enabled,
		UIBaseURL:  cfg.Chatwork.UI.BaseURL,
		Credentials: chatwork.Credentials{
			Email:    cfg.Chatwork.UI.Email,
			ID:       cfg.Chatwork.UI.ID,
			Password: cfg.Chatwork.UI.Password,
		},
		Timeout: time.Duration(cfg.Chatwork.Timeout()) * time.Second,
		Store:   store,
	})
}

func provideHealthCheckers(log *slog.Logger, cfg config.Config, store *kvstore.Store) []healthcheck.Checker {
	return []healthcheck.Checker{
		sessionchecker.NewChecker(log, store, cfg.Chatwork.UI.Enabled),
	}
}

// provideScheduler registers the session refresh when the UI channel is on
// and a schedule is configured. An empty scheduler is still returned.
func provideScheduler(log *slog.Logger, cfg config.Config, client *chatwork.Client) (*schedule.Scheduler, error) {
	s := schedule.New(log, time.Duration(cfg.Chatwork.Timeout())*time.Second*maxRefreshCalls)
	if !cfg.Chatwork.UI.Enabled || cfg.Session.RefreshSchedule == "" {
		return s, nil
	}
	if err := s.Add(sessionRefreshJob, cfg.Session.RefreshSchedule, client.Login); err != nil {
		return nil, err
	}
	return s, nil
}

func provideDirectory(cfg config.Config) *directory.Directory {
	return directory.FromConfig(cfg)
}

func provideRelayService(log *slog.Logger, cfg config.Config, dir *directory.Directory, client *chatwork.Client) *relay.Service {
	return relay.NewService(log, dir, client, relay.Options{
		Interactive: cfg.Chatwork.UI.Enabled,
		MaxLength:   cfg.Chatwork.MessageMaxLength,
	})
}

// components is the non-fx wiring used by the one-shot commands.
type components struct {
	cfg     config.Config
	log     *slog.Logger
	store   *kvstore.Store
	client  *chatwork.Client
	service *relay.Service
}

func buildComponents(path string) (*components, error) {
	cfg, err := provideConfig(configPath(path))
	if err != nil {
		return nil, err
	}
	log := provideLogger(cfg)
	store, err := provideSessionStore(cfg)
	if err != nil {
		logger.Critical(log, "execution failed", slog.Any("error", err))
		return nil, err
	}
	client := provideChatworkClient(log, cfg, store)
	service := provideRelayService(log, cfg, provideDirectory(cfg), client)
	return &components{cfg: cfg, log: log, store: store, client: client, service: service}, nil
}
