// Package github decodes GitHub webhook deliveries into relay events.
package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"
)

var (
	// ErrMalformedPayload is returned when a delivery cannot be decoded.
	ErrMalformedPayload = errors.New("malformed github payload")
	// ErrEmptyPayload is returned when a delivery carries no payload.
	ErrEmptyPayload = errors.New("empty github payload")
)

// Subject is the kind of object an event is about.
type Subject string

const (
	SubjectNone          Subject = ""
	SubjectIssue         Subject = "issue"
	SubjectPullRequest   Subject = "pull_request"
	SubjectCommitComment Subject = "commit_comment"
)

// Common action values.
const (
	ActionCreated  = "created"
	ActionOpened   = "opened"
	ActionAssigned = "assigned"
	ActionClosed   = "closed"
)

// Entity is an issue or a pull request.
type Entity struct {
	Number    int
	Title     string
	Body      string
	HTMLURL   string
	Author    string
	Assignees []string
}

// Comment is an issue, pull request or commit comment.
type Comment struct {
	Body    string
	HTMLURL string
	Author  string
}

// Event is one decoded webhook delivery.
type Event struct {
	Action     string
	Subject    Subject
	Sender     string
	Repository string
	Entity     Entity
	Comment    *Comment
	// Assignee is the account named by an "assigned" action.
	Assignee string
}

// Decode parses a JSON webhook body. The subject is taken from the first of
// issue, pull_request, comment present in the payload; a payload with none of
// them decodes with SubjectNone.
func Decode(body []byte) (Event, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return Event{}, ErrEmptyPayload
	}
	var payload ghPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	event := Event{
		Action:     strings.TrimSpace(payload.Action),
		Sender:     payload.Sender.Login,
		Repository: payload.Repository.Name,
	}
	if payload.Assignee != nil {
		event.Assignee = payload.Assignee.Login
	}
	if payload.Comment != nil {
		event.Comment = &Comment{
			Body:    payload.Comment.Body,
			HTMLURL: payload.Comment.HTMLURL,
			Author:  payload.Comment.User.Login,
		}
	}

	switch {
	case payload.Issue != nil:
		event.Subject = SubjectIssue
		event.Entity = toEntity(payload.Issue)
	case payload.PullRequest != nil:
		event.Subject = SubjectPullRequest
		event.Entity = toEntity(payload.PullRequest)
	case payload.Comment != nil:
		event.Subject = SubjectCommitComment
	default:
		event.Subject = SubjectNone
	}
	return event, nil
}

func toEntity(e *ghEntity) Entity {
	entity := Entity{
		Number:  e.Number,
		Title:   e.Title,
		Body:    e.Body,
		HTMLURL: e.HTMLURL,
		Author:  e.User.Login,
	}
	seen := map[string]struct{}{}
	add := func(login string) {
		login = strings.TrimSpace(login)
		if login == "" {
			return
		}
		if _, ok := seen[login]; ok {
			return
		}
		seen[login] = struct{}{}
		entity.Assignees = append(entity.Assignees, login)
	}
	if e.Assignee != nil {
		add(e.Assignee.Login)
	}
	for _, a := range e.Assignees {
		add(a.Login)
	}
	return entity
}

// ExtractPayload returns the JSON document from a delivery body. GitHub sends
// either raw JSON or an urlencoded form with the JSON under "payload".
func ExtractPayload(contentType string, body []byte) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType != "application/x-www-form-urlencoded" {
		return body, nil
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	payload := values.Get("payload")
	if strings.TrimSpace(payload) == "" {
		return nil, ErrEmptyPayload
	}
	return []byte(payload), nil
}
