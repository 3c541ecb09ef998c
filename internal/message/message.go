// Package message holds the chat message produced for one event and renders
// it in Chatwork markup.
package message

import (
	"strings"
)

const (
	unknownPrefix = "unknown ("
	unresolvedID  = "0"
)

// Message is built once per event. Body is kept raw so the task directive can
// still be read from it; formatting happens in Render.
type Message struct {
	Title string
	// Lead is printed ahead of the body and never truncated.
	Lead       string
	Body       string
	Addressees []string
}

// Render compiles the message into a Chatwork post. Body text is formatted
// and truncated to maxLen runes.
func (m Message) Render(maxLen int) string {
	var b strings.Builder
	for _, id := range m.Addressees {
		b.WriteString(To(id))
		b.WriteByte(' ')
	}
	b.WriteString("[info][title]")
	b.WriteString(m.Title)
	b.WriteString("[/title]")
	b.WriteString(m.Lead)
	if strings.TrimSpace(m.Body) != "" {
		if m.Lead != "" {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatBody(m.Body, maxLen))
	}
	b.WriteString("[/info]")
	return b.String()
}

// To renders an addressee tag.
func To(chatworkID string) string {
	return "[To:" + chatworkID + "]"
}

// Icon renders the avatar and name of a Chatwork account.
func Icon(chatworkID string) string {
	return "[piconname:" + chatworkID + "]"
}

// Label names a GitHub account in a title: its Chatwork icon when the account
// is mapped, or a plain "unknown (<login>)" marker otherwise.
func Label(chatworkID, login string) string {
	if chatworkID == "" || chatworkID == unresolvedID {
		return unknownPrefix + login + ")"
	}
	return Icon(chatworkID)
}
