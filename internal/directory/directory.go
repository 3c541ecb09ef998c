// Package directory maps GitHub accounts to Chatwork accounts and rooms.
package directory

import (
	"regexp"
	"sort"
	"strings"

	"github.com/arith-alexander/GithubChatworkBot/internal/config"
)

// MatchMode selects how account mentions are found in free text.
type MatchMode string

const (
	// MatchWord finds "@login" tokens with word boundaries, case-insensitively.
	MatchWord MatchMode = config.MentionMatchWord
	// MatchSubstring finds a login anywhere in the text. One login that is a
	// substring of another over-matches; kept for directories that rely on it.
	MatchSubstring MatchMode = config.MentionMatchSubstring
)

// UnresolvedID stands in for an account that has no Chatwork mapping.
const UnresolvedID = "0"

const (
	mentionLead  = `(?:^|[^0-9A-Za-z_.@-])@`
	mentionTrail = `(?:$|[^0-9A-Za-z_-])`
)

var mentionPattern = regexp.MustCompile(mentionLead + `([0-9A-Za-z_](?:[0-9A-Za-z_-]*[0-9A-Za-z_])?)`)

// Entry is one mapped account.
type Entry struct {
	Login      string
	ChatworkID string
	Rooms      []string
}

// Directory is read-only after construction.
type Directory struct {
	entries []Entry
	byLogin map[string]int
	byID    map[string][]int
	routes  map[string][]string
	mode    MatchMode
	// mentions holds one "@login" matcher per lowercased login in word mode.
	mentions map[string]*regexp.Regexp
}

// New builds a directory. Entries are ordered by login so every lookup that
// walks the directory yields the same order.
func New(entries []Entry, routes map[string][]string, mode MatchMode) *Directory {
	sorted := make([]Entry, 0, len(entries))
	for _, e := range entries {
		e.Login = strings.TrimSpace(e.Login)
		e.ChatworkID = strings.TrimSpace(e.ChatworkID)
		if e.Login == "" {
			continue
		}
		e.Rooms = append([]string(nil), e.Rooms...)
		sorted = append(sorted, e)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Login < sorted[j].Login })

	d := &Directory{
		entries: sorted,
		byLogin: make(map[string]int, len(sorted)),
		byID:    make(map[string][]int, len(sorted)),
		routes:  make(map[string][]string, len(routes)),
		mode:    mode,
	}
	if d.mode != MatchSubstring {
		d.mode = MatchWord
		d.mentions = make(map[string]*regexp.Regexp, len(sorted))
	}
	for i, e := range sorted {
		key := strings.ToLower(e.Login)
		if _, exists := d.byLogin[key]; !exists {
			d.byLogin[key] = i
		}
		if d.mentions != nil {
			if _, exists := d.mentions[key]; !exists {
				d.mentions[key] = regexp.MustCompile(`(?i)` + mentionLead + regexp.QuoteMeta(e.Login) + mentionTrail)
			}
		}
		if e.ChatworkID != "" {
			d.byID[e.ChatworkID] = append(d.byID[e.ChatworkID], i)
		}
	}
	for repo, rooms := range routes {
		d.routes[strings.TrimSpace(repo)] = append([]string(nil), rooms...)
	}
	return d
}

// FromConfig builds the directory described by cfg.
func FromConfig(cfg config.Config) *Directory {
	entries := make([]Entry, 0, len(cfg.Accounts))
	for _, login := range cfg.Logins() {
		account := cfg.Accounts[login]
		entries = append(entries, Entry{
			Login:      login,
			ChatworkID: account.ChatworkID,
			Rooms:      account.Rooms,
		})
	}
	return New(entries, cfg.Repositories, MatchMode(cfg.Directory.MentionMatch))
}

// Entries returns the mapped accounts in directory order.
func (d *Directory) Entries() []Entry {
	out := make([]Entry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Lookup finds the entry for a GitHub login. Logins compare case-insensitively.
func (d *Directory) Lookup(login string) (Entry, bool) {
	idx, ok := d.byLogin[strings.ToLower(strings.TrimSpace(login))]
	if !ok {
		return Entry{}, false
	}
	return d.entries[idx], true
}

// ChatworkID returns the Chatwork account id for login, or UnresolvedID.
func (d *Directory) ChatworkID(login string) (string, bool) {
	entry, ok := d.Lookup(login)
	if !ok || entry.ChatworkID == "" {
		return UnresolvedID, false
	}
	return entry.ChatworkID, true
}

// RepositoryRooms returns the rooms routed for a repository name.
func (d *Directory) RepositoryRooms(repository string) []string {
	rooms := d.routes[strings.TrimSpace(repository)]
	return append([]string(nil), rooms...)
}

// AccountRooms returns the rooms listed by every entry mapped to chatworkID.
func (d *Directory) AccountRooms(chatworkID string) []string {
	var rooms []string
	for _, idx := range d.byID[chatworkID] {
		rooms = append(rooms, d.entries[idx].Rooms...)
	}
	return rooms
}

// Addressees resolves the Chatwork ids to notify: every entry named in
// explicit or mentioned in text, de-duplicated, without the sender. The
// result follows directory order.
func (d *Directory) Addressees(explicit []string, text, sender string) []string {
	wanted := make(map[string]struct{}, len(explicit))
	for _, login := range explicit {
		login = strings.ToLower(strings.TrimSpace(login))
		if login != "" {
			wanted[login] = struct{}{}
		}
	}
	mentioned := d.mentionMatcher(text)

	senderID := ""
	if entry, ok := d.Lookup(sender); ok {
		senderID = entry.ChatworkID
	}

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, e := range d.entries {
		if e.ChatworkID == "" {
			continue
		}
		if _, ok := wanted[strings.ToLower(e.Login)]; !ok && !mentioned(e.Login) {
			continue
		}
		if strings.EqualFold(e.Login, sender) || (senderID != "" && e.ChatworkID == senderID) {
			continue
		}
		if _, dup := seen[e.ChatworkID]; dup {
			continue
		}
		seen[e.ChatworkID] = struct{}{}
		out = append(out, e.ChatworkID)
	}
	return out
}

func (d *Directory) mentionMatcher(text string) func(login string) bool {
	if strings.TrimSpace(text) == "" {
		return func(string) bool { return false }
	}
	if d.mode == MatchSubstring {
		return func(login string) bool { return strings.Contains(text, login) }
	}
	return func(login string) bool {
		re := d.mentions[strings.ToLower(login)]
		return re != nil && re.MatchString(text)
	}
}

// Mentions returns the "@login" tokens in text, in order of appearance.
func Mentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}
