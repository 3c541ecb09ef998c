package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/arith-alexander/GithubChatworkBot/internal/config"
	"github.com/arith-alexander/GithubChatworkBot/internal/handlers"
	"github.com/arith-alexander/GithubChatworkBot/internal/schedule"
	"github.com/arith-alexander/GithubChatworkBot/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook HTTP server",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			runServe(configPathFlag(cmd))
		},
	}
}

func runServe(path string) {
	fx.New(
		fx.Supply(configPath(path)),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideSessionStore,
			provideChatworkClient,
			provideDirectory,
			provideHealthCheckers,
			provideRelayService,
			provideScheduler,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(handlers.NewWebhookHandler),
			provideServer,
		),
		fx.Invoke(startServer, startScheduler),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.ServerHandlers...)
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("gcbot listening",
				slog.String("addr", srv.Addr()),
				slog.String("webhook_path", cfg.Webhook.Path),
				slog.Int("repositories", len(cfg.Repositories)),
				slog.Bool("interactive", cfg.Chatwork.UI.Enabled),
			)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}

func startScheduler(lc fx.Lifecycle, s *schedule.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if s.Len() > 0 {
				s.Start()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if s.Len() == 0 {
				return nil
			}
			return s.Stop(ctx)
		},
	})
}
