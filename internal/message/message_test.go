package message

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		msg  Message
		want string
	}{
		{
			name: "lead and body",
			msg: Message{
				Title:      "Issue Opened by [piconname:1]\nhttps://github.com/o/r/issues/1",
				Lead:       "Broken build",
				Body:       "please review @bob",
				Addressees: []string{"2", "3"},
			},
			want: "[To:2] [To:3] [info][title]Issue Opened by [piconname:1]\nhttps://github.com/o/r/issues/1[/title]Broken build\n\nplease review @bob[/info]",
		},
		{
			name: "lead only",
			msg:  Message{Title: "PR Assigned", Lead: "Add cache"},
			want: "[info][title]PR Assigned[/title]Add cache[/info]",
		},
		{
			name: "body only",
			msg:  Message{Title: "Commented", Body: "```x```"},
			want: "[info][title]Commented[/title][code]x[/code][/info]",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.msg.Render(200); got != tc.want {
				t.Fatalf("Render() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRenderTruncatesBodyOnly(t *testing.T) {
	t.Parallel()

	lead := strings.Repeat("L", 50)
	got := Message{Title: "t", Lead: lead, Body: strings.Repeat("b", 40)}.Render(20)
	want := "[info][title]t[/title]" + lead + "\n\n" + strings.Repeat("b", 20) + Ellipsis + "[/info]"
	if got != want {
		t.Fatalf("Render() = %q, want %q", got, want)
	}
}

func TestLabel(t *testing.T) {
	t.Parallel()

	if got := Label("123", "alice"); got != "[piconname:123]" {
		t.Fatalf("Label mapped = %q", got)
	}
	for _, id := range []string{"", "0"} {
		if got := Label(id, "ghost"); got != "unknown (ghost)" {
			t.Fatalf("Label(%q) = %q", id, got)
		}
	}
}
