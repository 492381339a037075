package session

import (
	"time"
)

// SessionResponse represents a live session in responses
type SessionResponse struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Organizer      string     `json:"organizer,omitempty"`
	CalendarID     string     `json:"calendar_id,omitempty"`
	JoinURL        string     `json:"join_url"`
	StartTime      time.Time  `json:"start_time"`
	Status         string     `json:"status"`
	Port           *int       `json:"port,omitempty"`
	OutputLocation string     `json:"output_location,omitempty"`
	FailureReason  string     `json:"failure_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	JoiningAt      *time.Time `json:"joining_at,omitempty"`
	ActiveAt       *time.Time `json:"active_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// SessionListResponse represents the live session list
type SessionListResponse struct {
	Sessions []*SessionResponse `json:"sessions"`
	Total    int                `json:"total"`
}

// PoolResponse represents the port pool counters
type PoolResponse struct {
	Limit     int   `json:"limit"`
	Available int   `json:"available"`
	Held      int   `json:"held"`
	HeldPorts []int `json:"held_ports"`
}

// OutputURLResponse represents a download link for a session output
type OutputURLResponse struct {
	SessionID string    `json:"session_id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HistoryRecordResponse represents a persisted lifecycle record
type HistoryRecordResponse struct {
	ID             string     `json:"id"`
	MeetingID      string     `json:"meeting_id"`
	Title          string     `json:"title"`
	Organizer      string     `json:"organizer,omitempty"`
	Status         string     `json:"status"`
	Port           *int       `json:"port,omitempty"`
	OutputLocation *string    `json:"output_location,omitempty"`
	ScheduledStart time.Time  `json:"scheduled_start"`
	JoiningAt      *time.Time `json:"joining_at,omitempty"`
	ActiveAt       *time.Time `json:"active_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	FailureReason  *string    `json:"failure_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// HealthResponse represents the health check payload
type HealthResponse struct {
	Status      string        `json:"status"`
	Environment string        `json:"environment"`
	Sessions    int           `json:"sessions"`
	Pool        *PoolResponse `json:"pool"`
}
