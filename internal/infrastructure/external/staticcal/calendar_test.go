package staticcal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meetings.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFetchUpcoming(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	path := writeFile(t, `[
		{"id": "soon", "title": "Standup", "join_url": "https://meet.example.com/rooms/standup", "start_time": "2025-03-10T09:10:00Z"},
		{"id": "later", "join_url": "https://meet.example.com/rooms/later", "start_time": "2025-03-10T11:00:00Z"},
		{"id": "stale", "join_url": "https://meet.example.com/rooms/stale", "start_time": "2025-03-10T07:00:00Z"},
		{"id": "relative", "join_url": "https://meet.example.com/rooms/demo", "starts_in": "2m"},
		{"id": "broken", "join_url": "https://meet.example.com/rooms/x", "starts_in": "soon"}
	]`)

	cal := NewCalendar(path, nil)
	cal.started = now
	cal.now = func() time.Time { return now }

	meetings, err := cal.FetchUpcoming(context.Background(), 15*time.Minute)
	require.NoError(t, err)
	require.Len(t, meetings, 2)

	assert.Equal(t, "relative", meetings[0].ID)
	assert.Equal(t, now.Add(2*time.Minute), meetings[0].StartTime)
	assert.Equal(t, "soon", meetings[1].ID)
	assert.Equal(t, "Standup", meetings[1].Title)
	assert.Equal(t, "static", meetings[1].CalendarID)
}

func TestFetchUpcomingBadFile(t *testing.T) {
	cal := NewCalendar(filepath.Join(t.TempDir(), "missing.json"), nil)
	_, err := cal.FetchUpcoming(context.Background(), time.Minute)
	assert.Error(t, err)

	cal = NewCalendar(writeFile(t, `{not json`), nil)
	_, err = cal.FetchUpcoming(context.Background(), time.Minute)
	assert.Error(t, err)
}

func TestFetchUpcomingEmpty(t *testing.T) {
	cal := NewCalendar(writeFile(t, `[]`), nil)
	meetings, err := cal.FetchUpcoming(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.Empty(t, meetings)
}
