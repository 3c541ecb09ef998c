package github

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSubjects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		body    string
		subject Subject
	}{
		{
			name:    "issue comment keeps issue subject",
			body:    `{"action":"created","issue":{"title":"t"},"comment":{"body":"hi"},"sender":{"login":"alice"},"repository":{"name":"repo"}}`,
			subject: SubjectIssue,
		},
		{
			name:    "pull request",
			body:    `{"action":"opened","pull_request":{"title":"t"},"sender":{"login":"alice"},"repository":{"name":"repo"}}`,
			subject: SubjectPullRequest,
		},
		{
			name:    "commit comment",
			body:    `{"action":"created","comment":{"body":"nit","commit_id":"abc"},"sender":{"login":"alice"},"repository":{"name":"repo"}}`,
			subject: SubjectCommitComment,
		},
		{
			name:    "push has no subject",
			body:    `{"ref":"refs/heads/main","sender":{"login":"alice"},"repository":{"name":"repo"}}`,
			subject: SubjectNone,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			event, err := Decode([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.subject, event.Subject)
			assert.Equal(t, "alice", event.Sender)
			assert.Equal(t, "repo", event.Repository)
		})
	}
}

func TestDecodeIssueFields(t *testing.T) {
	t.Parallel()

	body := `{
		"action": "assigned",
		"assignee": {"login": "bob"},
		"issue": {
			"number": 7,
			"title": "Crash on start",
			"body": null,
			"html_url": "https://github.com/o/repo/issues/7",
			"user": {"login": "carol"},
			"assignee": {"login": "bob"},
			"assignees": [{"login": "bob"}, {"login": "dave"}]
		},
		"sender": {"login": "alice"},
		"repository": {"name": "repo", "full_name": "o/repo"}
	}`
	event, err := Decode([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, ActionAssigned, event.Action)
	assert.Equal(t, "bob", event.Assignee)
	assert.Equal(t, 7, event.Entity.Number)
	assert.Equal(t, "Crash on start", event.Entity.Title)
	assert.Empty(t, event.Entity.Body)
	assert.Equal(t, "carol", event.Entity.Author)
	assert.Equal(t, []string{"bob", "dave"}, event.Entity.Assignees)
	assert.Nil(t, event.Comment)
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte("   "))
	assert.True(t, errors.Is(err, ErrEmptyPayload))

	_, err = Decode([]byte("{broken"))
	assert.True(t, errors.Is(err, ErrMalformedPayload))
}

func TestExtractPayload(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"action":"opened"}`)
	got, err := ExtractPayload("application/json", raw)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	form := url.Values{"payload": {string(raw)}}.Encode()
	got, err = ExtractPayload("application/x-www-form-urlencoded; charset=utf-8", []byte(form))
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(got))

	_, err = ExtractPayload("application/x-www-form-urlencoded", []byte("other=1"))
	assert.True(t, errors.Is(err, ErrEmptyPayload))
}
