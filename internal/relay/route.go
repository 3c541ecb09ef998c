package relay

import (
	"github.com/arith-alexander/GithubChatworkBot/internal/directory"
)

// Rooms returns the repository's rooms followed by the rooms of every
// addressee, without repeats.
func Rooms(dir *directory.Directory, repository string, addressees []string) []string {
	rooms := dir.RepositoryRooms(repository)
	for _, id := range addressees {
		rooms = append(rooms, dir.AccountRooms(id)...)
	}
	return dedupe(rooms)
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
