package message

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxLength bounds the formatted body when no limit is configured.
	DefaultMaxLength = 200
	// Ellipsis marks a truncated body.
	Ellipsis = "\n..."

	codeOpen  = "[code]"
	codeClose = "[/code]"
)

var (
	imagePattern = regexp.MustCompile(`!\[.*?\]\((.*?)\)`)
	fencePattern = regexp.MustCompile("(?s)```(.*?)(?:```|$)")
)

// FormatBody converts GitHub markdown into Chatwork markup and truncates it
// to maxLen runes. The result never leaves a [code] block open; a truncated
// result ends with Ellipsis, which is not counted against maxLen.
func FormatBody(text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	text = imagePattern.ReplaceAllString(text, "$1")
	text = fencePattern.ReplaceAllString(text, codeOpen+"$1"+codeClose)

	runes := []rune(text)
	if len(runes) <= maxLen {
		whole := strings.TrimRight(text, "\n")
		if !isCodeOpen(whole) || utf8.RuneCountInString(whole)+len(codeClose) <= maxLen {
			return closeCode(whole)
		}
	}

	core := cut(runes, maxLen)
	if isCodeOpen(core) && utf8.RuneCountInString(core)+len(codeClose) > maxLen {
		core = cut(runes, maxLen-len(codeClose))
	}
	return closeCode(core) + Ellipsis
}

// cut keeps at most limit runes, backing off to the end of the last
// boundary run when there is one.
func cut(runes []rune, limit int) string {
	if limit < 0 {
		limit = 0
	}
	if limit > len(runes) {
		limit = len(runes)
	}
	head := runes[:limit]
	for i := len(head) - 1; i >= 0; i-- {
		if isBoundary(head[i]) {
			head = head[:i+1]
			break
		}
	}
	core := dropTagFragment(string(head), string(runes))
	return strings.TrimRight(core, "\n")
}

func isBoundary(r rune) bool {
	switch r {
	case '\n', ' ', '。', '　', '、':
		return true
	}
	return false
}

// dropTagFragment removes the start of a code tag that the cut split in
// half. head is a prefix of full; a suffix of head only counts when full
// continues it into a complete tag.
func dropTagFragment(head, full string) string {
	for _, tag := range []string{codeClose, codeOpen} {
		for n := len(tag) - 1; n > 0; n-- {
			start := len(head) - n
			if start < 0 || !strings.HasSuffix(head, tag[:n]) {
				continue
			}
			if strings.HasPrefix(full[start:], tag) {
				return head[:start]
			}
		}
	}
	return head
}

func isCodeOpen(s string) bool {
	return strings.LastIndex(s, codeOpen) > strings.LastIndex(s, codeClose)
}

func closeCode(s string) string {
	if isCodeOpen(s) {
		return s + codeClose
	}
	return s
}
