package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arith-alexander/GithubChatworkBot/internal/relay"
)

type chatworkStub struct {
	mu    sync.Mutex
	paths []string
	forms []string
}

func (s *chatworkStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	s.mu.Lock()
	s.paths = append(s.paths, r.URL.Path)
	s.forms = append(s.forms, r.PostForm.Get("body"))
	s.mu.Unlock()
	_, _ = w.Write([]byte(`{}`))
}

func writeConfig(t *testing.T, apiURL string) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`
[log]
level = "error"

[chatwork]
token = "tok"
api_base_url = %q

[session]
path = %q

[accounts.bob]
chatwork_id = "200"

[accounts.carol]
chatwork_id = "300"
rooms = ["77"]

[repositories]
demo = ["1", "2"]
`, apiURL, filepath.Join(dir, "cwui.json"))
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunRelayDeliversToRoutedRooms(t *testing.T) {
	stub := &chatworkStub{}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	cfgPath := writeConfig(t, srv.URL)

	payload := `{"action":"opened","issue":{"title":"Broken","body":"please review @bob","html_url":"https://github.com/o/demo/issues/3","user":{"login":"carol"}},"repository":{"name":"demo"},"sender":{"login":"carol"}}`
	var out bytes.Buffer
	require.NoError(t, runRelay(context.Background(), cfgPath, "application/json", strings.NewReader(payload), &out))

	assert.Equal(t, []string{"/rooms/1/messages", "/rooms/2/messages"}, stub.paths)
	assert.True(t, strings.HasPrefix(stub.forms[0], "[To:200] [info][title]Issue Opened by [piconname:300]"))

	var report relayOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, "issue_opened", report.Kind)
	assert.Equal(t, "delivered", report.Outcome)
	assert.Equal(t, []string{"200"}, report.Addressees)
}

func TestRunRelayTaskDirective(t *testing.T) {
	stub := &chatworkStub{}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	cfgPath := writeConfig(t, srv.URL)

	payload := `{"action":"created","issue":{"title":"t","user":{"login":"bob"}},"comment":{"body":"!task:@bob:2016.01.11:555\nShip it","html_url":"u","user":{"login":"carol"}},"repository":{"name":"demo"},"sender":{"login":"carol"}}`
	form := url.Values{"payload": {payload}}.Encode()
	var out bytes.Buffer
	require.NoError(t, runRelay(context.Background(), cfgPath, "application/x-www-form-urlencoded", strings.NewReader(form), &out))

	assert.Equal(t, []string{"/rooms/555/tasks"}, stub.paths)
	assert.Equal(t, []string{"Ship it"}, stub.forms)
}

func TestRunRelayUnclassified(t *testing.T) {
	stub := &chatworkStub{}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	cfgPath := writeConfig(t, srv.URL)

	err := runRelay(context.Background(), cfgPath, "application/json", strings.NewReader(`{"action":"labeled","issue":{}}`), &bytes.Buffer{})
	assert.ErrorIs(t, err, relay.ErrUnclassified)
	assert.Empty(t, stub.paths)
}

func TestRunRelayRejectsIncompleteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[chatwork]\ntoken = \"\"\n"), 0o600))

	err := runRelay(context.Background(), path, "application/json", strings.NewReader(`{}`), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRelayCommandReportsMissingPayloadFile(t *testing.T) {
	root := newRootCmd()
	var stderr bytes.Buffer
	root.SetErr(&stderr)
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"relay", "--file", filepath.Join(t.TempDir(), "absent.json")})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, stderr.String(), "open payload")
}

func TestRunLogoutClearsCachedSession(t *testing.T) {
	cfgPath := writeConfig(t, "http://127.0.0.1:1")
	comps, err := buildComponents(cfgPath)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, comps.store.Update(ctx, func(values map[string]string) error {
		values["cwssid"] = "sid"
		values["AWSELB"] = "lb"
		values["access_token"] = "tok"
		values["unrelated"] = "kept"
		return nil
	}))

	var out bytes.Buffer
	require.NoError(t, runLogout(ctx, comps, &out))
	assert.Contains(t, out.String(), "session cleared from "+comps.store.Path())

	values, err := comps.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"unrelated": "kept"}, values)

	out.Reset()
	require.NoError(t, runLogout(ctx, comps, &out))
	assert.Contains(t, out.String(), "no session cached")
}
