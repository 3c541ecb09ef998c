package message

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestFormatBodyShortInput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "hello world", want: "hello world"},
		{name: "image", in: "see ![shot](https://example.com/a.png) here", want: "see https://example.com/a.png here"},
		{name: "fence", in: "before\n```\nx := 1\n```\nafter", want: "before\n[code]\nx := 1\n[/code]\nafter"},
		{name: "unterminated fence", in: "```go\nfmt.Println()", want: "[code]go\nfmt.Println()[/code]"},
		{name: "two fences", in: "```a``` and ```b```", want: "[code]a[/code] and [code]b[/code]"},
		{name: "trailing newlines", in: "done\n\n", want: "done"},
		{name: "empty", in: "", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, FormatBody(tc.in, 200))
		})
	}
}

func TestFormatBodyTruncatesAtBoundary(t *testing.T) {
	t.Parallel()

	in := strings.Repeat("word ", 50)
	got := FormatBody(in, 23)
	assert.Equal(t, "word word word word "+Ellipsis, got)
}

func TestFormatBodyHardCutWithoutBoundary(t *testing.T) {
	t.Parallel()

	got := FormatBody(strings.Repeat("x", 30), 20)
	assert.Equal(t, strings.Repeat("x", 20)+Ellipsis, got)
}

func TestFormatBodyFullWidthBoundary(t *testing.T) {
	t.Parallel()

	in := "今日は晴れ。明日は雨、明後日は曇りでしょう" + strings.Repeat("ね", 20)
	got := FormatBody(in, 16)
	assert.Equal(t, "今日は晴れ。明日は雨、"+Ellipsis, got)
}

func TestFormatBodyClosesTruncatedCode(t *testing.T) {
	t.Parallel()

	in := "look\n```\n" + strings.Repeat("abcdefgh ", 40) + "\n```"
	got := FormatBody(in, 60)
	core := strings.TrimSuffix(got, Ellipsis)

	assert.True(t, strings.HasSuffix(got, Ellipsis))
	assert.True(t, strings.HasSuffix(core, codeClose))
	assert.LessOrEqual(t, utf8.RuneCountInString(core), 60)
	assert.Equal(t, strings.Count(core, codeOpen), strings.Count(core, codeClose))
}

func TestFormatBodyDropsSplitTag(t *testing.T) {
	t.Parallel()

	in := "abcdefghij[code]x[/code]" + strings.Repeat("y", 40)
	got := FormatBody(in, 13)
	assert.Equal(t, "abcdefghij"+Ellipsis, got)
}

func TestFormatBodyKeepsLiteralBracketAtCut(t *testing.T) {
	t.Parallel()

	tail := strings.Repeat("y", 40)
	cases := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{name: "lone bracket", in: "abcdefghij[" + tail, limit: 11, want: "abcdefghij["},
		{name: "link text", in: "abcdefghi[/x]" + tail, limit: 11, want: "abcdefghi[/"},
		{name: "look-alike", in: "abcdefghi[cow" + tail, limit: 12, want: "abcdefghi[co"},
		{name: "split close tag", in: "abcdefghi[/code]" + tail, limit: 12, want: "abcdefghi"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want+Ellipsis, FormatBody(tc.in, tc.limit))
		})
	}
}

func TestFormatBodyInvariants(t *testing.T) {
	t.Parallel()

	inputs := []string{
		strings.Repeat("```\ncode line\n", 30),
		strings.Repeat("a", 500),
		"```" + strings.Repeat("z", 300),
		strings.Repeat("手紙。", 120),
		"[code]" + strings.Repeat("q ", 200),
		strings.Repeat("![i](http://x/y.png)\n", 40),
	}
	for _, limit := range []int{16, 50, 200} {
		for _, in := range inputs {
			got := FormatBody(in, limit)
			core := strings.TrimSuffix(got, Ellipsis)
			assert.LessOrEqual(t, utf8.RuneCountInString(core), limit, "input %q limit %d", in[:10], limit)
			assert.False(t, isCodeOpen(got), "unbalanced output %q", got)
		}
	}
}
