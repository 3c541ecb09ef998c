package relay

import (
	"regexp"
	"strings"
	"time"

	"github.com/arith-alexander/GithubChatworkBot/internal/directory"
)

const deadlineLayout = "2006.01.02"

var directivePattern = regexp.MustCompile(`^!task:(@[^\s:@]+(?:[ \t]+@[^\s:@]+)*)(?::(\d{4}\.\d{2}\.\d{2}))?(?::[ \t]*(\d+(?:[ \t]+\d+)*))?[ \t]*$`)

// Task is a parsed "!task:" directive, resolved against the directory.
type Task struct {
	Assignees []string
	// ToIDs holds one Chatwork id per assignee, "0" where unmapped.
	ToIDs []string
	// Deadline is a unix timestamp.
	Deadline int64
	Rooms    []string
	Body     string
}

// ParseTask reads a task directive from the first line of body:
//
//	!task:@alice @bob[:YYYY.MM.DD][:room room ...]
//
// The deadline is local midnight of the given date, or now. Without explicit
// rooms the repository's rooms are used.
func ParseTask(body string, dir *directory.Directory, repository string, now time.Time) (Task, bool) {
	first, rest, _ := strings.Cut(body, "\n")
	m := directivePattern.FindStringSubmatch(strings.TrimRight(first, "\r"))
	if m == nil {
		return Task{}, false
	}

	task := Task{
		Deadline: now.Unix(),
		Body:     strings.TrimSpace(rest),
	}
	if m[2] != "" {
		day, err := time.ParseInLocation(deadlineLayout, m[2], now.Location())
		if err != nil {
			return Task{}, false
		}
		task.Deadline = day.Unix()
	}
	for _, mention := range strings.Fields(m[1]) {
		login := strings.TrimPrefix(mention, "@")
		id, _ := dir.ChatworkID(login)
		task.Assignees = append(task.Assignees, login)
		task.ToIDs = append(task.ToIDs, id)
	}
	if m[3] != "" {
		task.Rooms = dedupe(strings.Fields(m[3]))
	} else {
		task.Rooms = dir.RepositoryRooms(repository)
	}
	return task, true
}
