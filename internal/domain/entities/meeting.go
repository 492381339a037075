package entities

import (
	"strings"
	"time"
)

// DefaultMeetingTitle is used when the calendar event has no summary
const DefaultMeetingTitle = "Untitled Meeting"

// Meeting describes a scheduled meeting discovered on a calendar
type Meeting struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Organizer  string    `json:"organizer"`
	JoinURL    string    `json:"join_url"`
	StartTime  time.Time `json:"start_time"`
	CalendarID string    `json:"calendar_id,omitempty"`
}

// Validate checks the fields the scheduler relies on
func (m Meeting) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return ErrMeetingIDRequired
	}
	if strings.TrimSpace(m.JoinURL) == "" {
		return ErrJoinURLRequired
	}
	if m.StartTime.IsZero() {
		return ErrStartTimeRequired
	}
	return nil
}

// DisplayTitle returns the title or the default one
func (m Meeting) DisplayTitle() string {
	if strings.TrimSpace(m.Title) == "" {
		return DefaultMeetingTitle
	}
	return m.Title
}

// OutputLocation addresses the artifact a session writes. Store is a bucket or
// directory, Path the object key or file path inside it.
type OutputLocation struct {
	Store string `json:"store"`
	Path  string `json:"path"`
}

// IsZero reports whether no location was allocated
func (l OutputLocation) IsZero() bool {
	return l.Store == "" && l.Path == ""
}

func (l OutputLocation) String() string {
	if l.Store == "" {
		return l.Path
	}
	return l.Store + "/" + l.Path
}
