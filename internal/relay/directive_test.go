package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTaskFull(t *testing.T) {
	t.Parallel()

	task, ok := ParseTask("!task:@alice @bob:2016.01.11:123123 567567\nDo the thing", testDirectory(), "demo", testNow)
	require.True(t, ok)
	assert.Equal(t, []string{"alice", "bob"}, task.Assignees)
	assert.Equal(t, []string{"100", "200"}, task.ToIDs)
	assert.Equal(t, time.Date(2016, 1, 11, 0, 0, 0, 0, testNow.Location()).Unix(), task.Deadline)
	assert.Equal(t, []string{"123123", "567567"}, task.Rooms)
	assert.Equal(t, "Do the thing", task.Body)
}

func TestParseTaskDefaults(t *testing.T) {
	t.Parallel()

	task, ok := ParseTask("!task:@alice\nFix it", testDirectory(), "demo", testNow)
	require.True(t, ok)
	assert.Equal(t, testNow.Unix(), task.Deadline)
	assert.Equal(t, []string{"1", "2"}, task.Rooms)
	assert.Equal(t, "Fix it", task.Body)
}

func TestParseTaskVariants(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		body  string
		ok    bool
		rooms []string
		ids   []string
	}{
		{name: "rooms without date", body: "!task:@bob:77 88 77\nx", ok: true, rooms: []string{"77", "88"}, ids: []string{"200"}},
		{name: "unknown assignee", body: "!task:@nobody\nx", ok: true, rooms: []string{"1", "2"}, ids: []string{"0"}},
		{name: "crlf", body: "!task:@bob\r\nx", ok: true, rooms: []string{"1", "2"}, ids: []string{"200"}},
		{name: "not first line", body: "hello\n!task:@bob", ok: false},
		{name: "no assignee", body: "!task:\nx", ok: false},
		{name: "missing at sign", body: "!task:bob\nx", ok: false},
		{name: "invalid date", body: "!task:@bob:2016.13.40\nx", ok: false},
		{name: "trailing junk", body: "!task:@bob please\nx", ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			task, ok := ParseTask(tc.body, testDirectory(), "demo", testNow)
			require.Equal(t, tc.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tc.rooms, task.Rooms)
			assert.Equal(t, tc.ids, task.ToIDs)
		})
	}
}

func TestRoomsDeduplicates(t *testing.T) {
	t.Parallel()

	rooms := Rooms(testDirectory(), "demo", []string{"300", "100", "300"})
	assert.Equal(t, []string{"1", "2", "901", "900"}, rooms)
	assert.Empty(t, Rooms(testDirectory(), "unknown", nil))
}
