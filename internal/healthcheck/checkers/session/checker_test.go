package sessionchecker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/arith-alexander/GithubChatworkBot/internal/chatwork"
	"github.com/arith-alexander/GithubChatworkBot/internal/healthcheck"
)

type fakeStore struct {
	values map[string]string
	err    error
}

func (f *fakeStore) Load(context.Context) (map[string]string, error) {
	return f.values, f.err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheckerListChecks(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		enabled bool
		store   Store
		want    string
	}{
		{name: "disabled", enabled: false, want: healthcheck.StatusOK},
		{name: "cached", enabled: true, store: &fakeStore{values: map[string]string{
			chatwork.KeySession: "sid", chatwork.KeyAccessToken: "tok",
		}}, want: healthcheck.StatusOK},
		{name: "token missing", enabled: true, store: &fakeStore{values: map[string]string{chatwork.KeySession: "sid"}}, want: healthcheck.StatusWarn},
		{name: "empty", enabled: true, store: &fakeStore{values: map[string]string{}}, want: healthcheck.StatusWarn},
		{name: "unreadable", enabled: true, store: &fakeStore{err: errors.New("decode failed")}, want: healthcheck.StatusError},
		{name: "no store", enabled: true, want: healthcheck.StatusError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			items := NewChecker(newTestLogger(), tc.store, tc.enabled).ListChecks(context.Background())
			if len(items) != 1 {
				t.Fatalf("expected 1 item, got %d", len(items))
			}
			if items[0].Status != tc.want {
				t.Fatalf("status = %s, want %s (%s)", items[0].Status, tc.want, items[0].Summary)
			}
			if items[0].ID != checkID {
				t.Fatalf("unexpected id: %s", items[0].ID)
			}
		})
	}
}
