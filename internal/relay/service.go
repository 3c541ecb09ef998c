// Package relay turns GitHub events into Chatwork deliveries.
package relay

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/arith-alexander/GithubChatworkBot/internal/chatwork"
	"github.com/arith-alexander/GithubChatworkBot/internal/directory"
	"github.com/arith-alexander/GithubChatworkBot/internal/github"
	"github.com/arith-alexander/GithubChatworkBot/internal/message"
)

// Outcome says how an event was handled.
type Outcome string

const (
	// OutcomeDelivered means the message went to the routed rooms.
	OutcomeDelivered Outcome = "delivered"
	// OutcomeTask means a task directive replaced the message.
	OutcomeTask Outcome = "task"
)

// Deliverer sends to Chatwork rooms.
type Deliverer interface {
	PostMessage(ctx context.Context, roomID, text string, interactive bool) error
	CreateTask(ctx context.Context, roomID string, task chatwork.Task) error
}

// RoomResult is the delivery result for one room.
type RoomResult struct {
	Room string
	Err  error
}

// Result summarizes one handled event.
type Result struct {
	Kind       string
	Outcome    Outcome
	Addressees []string
	Rooms      []RoomResult
}

// Failed counts rooms whose delivery failed.
func (r Result) Failed() int {
	n := 0
	for _, room := range r.Rooms {
		if room.Err != nil {
			n++
		}
	}
	return n
}

// Options tune a Service.
type Options struct {
	// Interactive posts messages through the UI session instead of the API.
	Interactive bool
	MaxLength   int
	Now         func() time.Time
}

// Service handles events one at a time. It holds no per-event state and may
// be shared between goroutines.
type Service struct {
	logger    *slog.Logger
	dir       *directory.Directory
	deliverer Deliverer
	opts      Options
}

// NewService creates a relay service.
func NewService(log *slog.Logger, dir *directory.Directory, deliverer Deliverer, opts Options) *Service {
	if log == nil {
		log = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = message.DefaultMaxLength
	}
	return &Service{
		logger:    log.With(slog.String("component", "relay")),
		dir:       dir,
		deliverer: deliverer,
		opts:      opts,
	}
}

// Handle classifies ev, then either executes its task directive or delivers
// the message to every routed room. Per-room failures are reported in the
// result; the returned error is reserved for events that cannot be handled.
func (s *Service) Handle(ctx context.Context, ev github.Event) (Result, error) {
	r, err := classify(ev)
	if err != nil {
		return Result{}, err
	}
	logger := s.logger.With(
		slog.String("kind", r.kind),
		slog.String("repository", ev.Repository),
		slog.String("sender", ev.Sender),
	)
	s.logMisses(logger, ev)

	msg := r.build(s.dir, ev)
	result := Result{Kind: r.kind, Addressees: msg.Addressees}

	if r.directives {
		if task, ok := ParseTask(msg.Body, s.dir, ev.Repository, s.opts.Now()); ok {
			result.Outcome = OutcomeTask
			result.Rooms = s.createTasks(ctx, logger, task, taskFallback(msg, ev))
			return result, nil
		}
	}

	result.Outcome = OutcomeDelivered
	rooms := Rooms(s.dir, ev.Repository, msg.Addressees)
	if len(rooms) == 0 {
		logger.Warn("no rooms routed for repository")
		return result, nil
	}
	text := msg.Render(s.opts.MaxLength)
	for _, room := range rooms {
		err := s.deliverer.PostMessage(ctx, room, text, s.opts.Interactive)
		if err != nil {
			logger.Error("deliver message failed", slog.String("room_id", room), slog.Any("error", err))
		} else {
			logger.Info("message delivered", slog.String("room_id", room))
		}
		result.Rooms = append(result.Rooms, RoomResult{Room: room, Err: err})
	}
	return result, nil
}

// taskFallback is the task text used when the directive line is the whole
// body: the entity title, else the message title line.
func taskFallback(msg message.Message, ev github.Event) string {
	for _, candidate := range []string{msg.Lead, ev.Entity.Title} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return candidate
		}
	}
	title, _, _ := strings.Cut(msg.Title, "\n")
	return title
}

func (s *Service) createTasks(ctx context.Context, logger *slog.Logger, task Task, fallback string) []RoomResult {
	body := task.Body
	if body == "" {
		body = fallback
	}
	payload := chatwork.Task{Body: body, Limit: task.Deadline, ToIDs: task.ToIDs}
	if len(task.Rooms) == 0 {
		logger.Warn("task directive has no rooms", slog.Any("assignees", task.Assignees))
	}

	results := make([]RoomResult, 0, len(task.Rooms))
	for _, room := range task.Rooms {
		err := s.deliverer.CreateTask(ctx, room, payload)
		if err != nil {
			logger.Error("create task failed", slog.String("room_id", room), slog.Any("error", err))
		} else {
			logger.Info("task created", slog.String("room_id", room), slog.Any("assignees", task.Assignees))
		}
		results = append(results, RoomResult{Room: room, Err: err})
	}
	return results
}

func (s *Service) logMisses(logger *slog.Logger, ev github.Event) {
	for _, login := range []string{ev.Sender, ev.Assignee} {
		if login == "" {
			continue
		}
		if _, ok := s.dir.ChatworkID(login); !ok {
			logger.Debug("account not in directory", slog.String("login", login))
		}
	}
}
