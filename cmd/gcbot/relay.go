package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arith-alexander/GithubChatworkBot/internal/chatwork"
	"github.com/arith-alexander/GithubChatworkBot/internal/github"
	"github.com/arith-alexander/GithubChatworkBot/internal/logger"
	"github.com/arith-alexander/GithubChatworkBot/internal/relay"
)

// ErrDeliveryFailed is returned by relay when every routed room failed.
var ErrDeliveryFailed = errors.New("delivery failed for every room")

func newRelayCmd() *cobra.Command {
	var (
		file        string
		contentType string
	)
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Relay one webhook payload read from a file or stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open payload: %w", err)
				}
				defer f.Close()
				in = f
			}
			return runRelay(cmd.Context(), configPathFlag(cmd), contentType, in, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Payload file (stdin when empty or \"-\").")
	cmd.Flags().StringVar(&contentType, "content-type", "application/json", "Payload encoding: application/json or application/x-www-form-urlencoded.")
	return cmd
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log the Chatwork session in and cache its cookies and token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			comps, err := buildComponents(configPathFlag(cmd))
			if err != nil {
				return err
			}
			if err := comps.client.Login(contextOrBackground(cmd.Context())); err != nil {
				logger.Critical(comps.log, "login failed", slog.Any("error", err))
				return err
			}
			comps.log.Info("chatwork session cached", slog.String("path", comps.store.Path()))
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the cached Chatwork session cookies and token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			comps, err := buildComponents(configPathFlag(cmd))
			if err != nil {
				return err
			}
			return runLogout(contextOrBackground(cmd.Context()), comps, cmd.OutOrStdout())
		},
	}
}

func runLogout(ctx context.Context, comps *components, out io.Writer) error {
	cached, err := chatwork.ForgetSession(ctx, comps.store)
	if err != nil {
		logger.Critical(comps.log, "logout failed", slog.Any("error", err))
		return err
	}
	if !cached {
		_, err = fmt.Fprintf(out, "no session cached in %s\n", comps.store.Path())
		return err
	}
	_, err = fmt.Fprintf(out, "session cleared from %s\n", comps.store.Path())
	return err
}

type relayOutput struct {
	Kind       string       `json:"kind"`
	Outcome    string       `json:"outcome"`
	Addressees []string     `json:"addressees"`
	Rooms      []roomOutput `json:"rooms"`
}

type roomOutput struct {
	Room  string `json:"room"`
	Error string `json:"error,omitempty"`
}

func runRelay(ctx context.Context, path, contentType string, in io.Reader, out io.Writer) error {
	comps, err := buildComponents(path)
	if err != nil {
		return err
	}
	ctx = contextOrBackground(ctx)

	body, err := io.ReadAll(in)
	if err != nil {
		logger.Critical(comps.log, "payload is not readable", slog.Any("error", err))
		return fmt.Errorf("read payload: %w", err)
	}
	payload, err := github.ExtractPayload(strings.TrimSpace(contentType), body)
	if err != nil {
		logger.Critical(comps.log, "payload format is wrong", slog.Any("error", err))
		return err
	}
	ev, err := github.Decode(payload)
	if err != nil {
		logger.Critical(comps.log, "payload is not decodable", slog.Any("error", err))
		return err
	}

	res, err := comps.service.Handle(ctx, ev)
	if err != nil {
		if errors.Is(err, relay.ErrUnclassified) {
			logger.Critical(comps.log, "execution failed: event handler is not set", slog.Any("error", err))
		}
		return err
	}

	report := relayOutput{Kind: res.Kind, Outcome: string(res.Outcome), Addressees: res.Addressees}
	for _, room := range res.Rooms {
		r := roomOutput{Room: room.Room}
		if room.Err != nil {
			r.Error = room.Err.Error()
		}
		report.Rooms = append(report.Rooms, r)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if len(res.Rooms) > 0 && res.Failed() == len(res.Rooms) {
		return ErrDeliveryFailed
	}
	return nil
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
