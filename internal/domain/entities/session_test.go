package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to SessionStatus
		ok       bool
	}{
		{SessionStatusScheduled, SessionStatusJoining, true},
		{SessionStatusScheduled, SessionStatusActive, false},
		{SessionStatusJoining, SessionStatusActive, true},
		{SessionStatusJoining, SessionStatusFailed, true},
		{SessionStatusActive, SessionStatusActive, true},
		{SessionStatusActive, SessionStatusEnded, true},
		{SessionStatusActive, SessionStatusJoining, false},
		{SessionStatusEnded, SessionStatusFailed, false},
		{SessionStatusFailed, SessionStatusEnded, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestSessionStatusTerminal(t *testing.T) {
	assert.True(t, SessionStatusEnded.IsTerminal())
	assert.True(t, SessionStatusFailed.IsTerminal())
	assert.False(t, SessionStatusActive.IsTerminal())
	assert.False(t, SessionStatus("paused").IsValid())
}

func TestMeetingValidate(t *testing.T) {
	m := Meeting{ID: "evt-1", JoinURL: "https://meet.example.com/abc", StartTime: time.Now()}
	assert.NoError(t, m.Validate())
	assert.Equal(t, DefaultMeetingTitle, m.DisplayTitle())

	noID := m
	noID.ID = " "
	assert.ErrorIs(t, noID.Validate(), ErrMeetingIDRequired)

	noURL := m
	noURL.JoinURL = ""
	assert.ErrorIs(t, noURL.Validate(), ErrJoinURLRequired)

	noStart := m
	noStart.StartTime = time.Time{}
	assert.ErrorIs(t, noStart.Validate(), ErrStartTimeRequired)
}

func TestSessionRecordMarks(t *testing.T) {
	m := Meeting{ID: "evt-1", Title: "Standup", JoinURL: "room-a", StartTime: time.Now()}
	r := NewSessionRecord(m, 9222, OutputLocation{Store: "bucket", Path: "recordings/evt-1.mp4"})

	assert.Equal(t, SessionStatusScheduled, r.Status)
	assert.Equal(t, "bucket/recordings/evt-1.mp4", *r.OutputLocation)
	assert.Equal(t, 9222, *r.Port)

	now := time.Now()
	r.MarkAsJoining(now)
	r.MarkAsActive(now)
	assert.Equal(t, SessionStatusActive, r.Status)
	assert.False(t, r.IsTerminal())

	r.MarkAsFailed(now, "join timeout")
	assert.True(t, r.IsTerminal())
	assert.Equal(t, "join timeout", *r.FailureReason)
	assert.NotNil(t, r.FinishedAt)
}
