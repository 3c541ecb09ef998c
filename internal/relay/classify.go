package relay

import (
	"errors"
	"fmt"

	"github.com/arith-alexander/GithubChatworkBot/internal/directory"
	"github.com/arith-alexander/GithubChatworkBot/internal/github"
	"github.com/arith-alexander/GithubChatworkBot/internal/message"
)

// ErrUnclassified is returned for an event no builder accepts.
var ErrUnclassified = errors.New("unclassified event")

type builder func(dir *directory.Directory, ev github.Event) message.Message

type route struct {
	action  string
	subject github.Subject
	kind    string
	build   builder
	// directives marks events whose body was just written by the sender, the
	// only ones allowed to carry a task directive.
	directives bool
}

// dispatch is matched top to bottom; the first entry wins.
var dispatch = []route{
	{action: github.ActionCreated, subject: github.SubjectIssue, kind: "issue_commented", build: buildIssueCommented, directives: true},
	{action: github.ActionOpened, subject: github.SubjectIssue, kind: "issue_opened", build: buildIssueOpened, directives: true},
	{action: github.ActionAssigned, subject: github.SubjectIssue, kind: "issue_assigned", build: buildIssueAssigned},
	{action: github.ActionClosed, subject: github.SubjectIssue, kind: "issue_closed", build: buildIssueClosed},
	{action: github.ActionOpened, subject: github.SubjectPullRequest, kind: "pr_opened", build: buildPROpened, directives: true},
	{action: github.ActionClosed, subject: github.SubjectPullRequest, kind: "pr_closed", build: buildPRClosed},
	{action: github.ActionCreated, subject: github.SubjectPullRequest, kind: "pr_commented", build: buildPRCommented, directives: true},
	{action: github.ActionAssigned, subject: github.SubjectPullRequest, kind: "pr_assigned", build: buildPRAssigned},
	{action: github.ActionCreated, subject: github.SubjectCommitComment, kind: "commit_commented", build: buildCommitCommented, directives: true},
}

func classify(ev github.Event) (route, error) {
	for _, r := range dispatch {
		if r.action == ev.Action && r.subject == ev.Subject {
			return r, nil
		}
	}
	return route{}, fmt.Errorf("%w: action=%q subject=%q", ErrUnclassified, ev.Action, ev.Subject)
}

// Build classifies ev and builds its message.
func Build(dir *directory.Directory, ev github.Event) (message.Message, error) {
	r, err := classify(ev)
	if err != nil {
		return message.Message{}, err
	}
	return r.build(dir, ev), nil
}

func label(dir *directory.Directory, login string) string {
	id, _ := dir.ChatworkID(login)
	return message.Label(id, login)
}

func titleBy(dir *directory.Directory, what string, ev github.Event, url string) string {
	return what + " by " + label(dir, ev.Sender) + "\n" + url
}

func titleAssigned(dir *directory.Directory, what string, ev github.Event) string {
	return what + " Assigned to " + label(dir, ev.Assignee) + " by " + label(dir, ev.Sender) + "\n" + ev.Entity.HTMLURL
}

func participants(e github.Entity) []string {
	return append([]string{e.Author}, e.Assignees...)
}

func comment(ev github.Event) github.Comment {
	if ev.Comment == nil {
		return github.Comment{}
	}
	return *ev.Comment
}

func buildIssueCommented(dir *directory.Directory, ev github.Event) message.Message {
	c := comment(ev)
	return message.Message{
		Title:      titleBy(dir, "Issue Commented", ev, c.HTMLURL),
		Body:       c.Body,
		Addressees: dir.Addressees(participants(ev.Entity), c.Body, ev.Sender),
	}
}

func buildIssueOpened(dir *directory.Directory, ev github.Event) message.Message {
	return message.Message{
		Title:      titleBy(dir, "Issue Opened", ev, ev.Entity.HTMLURL),
		Lead:       ev.Entity.Title,
		Body:       ev.Entity.Body,
		Addressees: dir.Addressees(nil, ev.Entity.Body, ev.Sender),
	}
}

func buildIssueAssigned(dir *directory.Directory, ev github.Event) message.Message {
	return message.Message{
		Title:      titleAssigned(dir, "Issue", ev),
		Lead:       ev.Entity.Title,
		Addressees: dir.Addressees([]string{ev.Assignee}, ev.Entity.Body, ev.Sender),
	}
}

func buildIssueClosed(dir *directory.Directory, ev github.Event) message.Message {
	return message.Message{
		Title:      titleBy(dir, "Issue Closed", ev, ev.Entity.HTMLURL),
		Lead:       ev.Entity.Title,
		Body:       ev.Entity.Body,
		Addressees: dir.Addressees(participants(ev.Entity), "", ev.Sender),
	}
}

func buildPROpened(dir *directory.Directory, ev github.Event) message.Message {
	return message.Message{
		Title:      titleBy(dir, "PR Opened", ev, ev.Entity.HTMLURL),
		Lead:       ev.Entity.Title,
		Body:       ev.Entity.Body,
		Addressees: dir.Addressees(nil, ev.Entity.Body, ev.Sender),
	}
}

func buildPRClosed(dir *directory.Directory, ev github.Event) message.Message {
	return message.Message{
		Title:      titleBy(dir, "PR Closed", ev, ev.Entity.HTMLURL),
		Lead:       ev.Entity.Title,
		Body:       ev.Entity.Body,
		Addressees: dir.Addressees(participants(ev.Entity), "", ev.Sender),
	}
}

func buildPRCommented(dir *directory.Directory, ev github.Event) message.Message {
	c := comment(ev)
	return message.Message{
		Title:      titleBy(dir, "PR Commented", ev, c.HTMLURL),
		Body:       c.Body,
		Addressees: dir.Addressees(participants(ev.Entity), c.Body, ev.Sender),
	}
}

func buildPRAssigned(dir *directory.Directory, ev github.Event) message.Message {
	return message.Message{
		Title:      titleAssigned(dir, "PR", ev),
		Lead:       ev.Entity.Title,
		Addressees: dir.Addressees([]string{ev.Assignee}, ev.Entity.Body, ev.Sender),
	}
}

func buildCommitCommented(dir *directory.Directory, ev github.Event) message.Message {
	c := comment(ev)
	return message.Message{
		Title:      titleBy(dir, "Commit Commented", ev, c.HTMLURL),
		Body:       c.Body,
		Addressees: dir.Addressees(nil, c.Body, ev.Sender),
	}
}
