package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SessionRecord is the persisted lifecycle history of one bot session
type SessionRecord struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	MeetingID      string         `json:"meeting_id" gorm:"type:varchar(1024);not null;index"`
	CalendarID     string         `json:"calendar_id,omitempty" gorm:"type:varchar(320)"`
	Title          string         `json:"title" gorm:"type:text"`
	Organizer      string         `json:"organizer,omitempty" gorm:"type:varchar(320)"`
	JoinURL        string         `json:"join_url" gorm:"type:text"`
	Status         SessionStatus  `json:"status" gorm:"type:varchar(20);not null;index"`
	Port           *int           `json:"port,omitempty"`
	OutputLocation *string        `json:"output_location,omitempty" gorm:"type:text"`
	ScheduledStart time.Time      `json:"scheduled_start" gorm:"not null"`
	JoiningAt      *time.Time     `json:"joining_at,omitempty"`
	ActiveAt       *time.Time     `json:"active_at,omitempty"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
	FailureReason  *string        `json:"failure_reason,omitempty" gorm:"type:text"`
	Metadata       datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt      time.Time      `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt      time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (SessionRecord) TableName() string {
	return "bot_sessions"
}

// BeforeCreate assigns an ID when none was set
func (r *SessionRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if len(r.Metadata) == 0 {
		r.Metadata = datatypes.JSON("{}")
	}
	return nil
}

// NewSessionRecord creates a scheduled record for a newly admitted meeting
func NewSessionRecord(meeting Meeting, port int, output OutputLocation) *SessionRecord {
	loc := output.String()
	return &SessionRecord{
		ID:             uuid.New(),
		MeetingID:      meeting.ID,
		CalendarID:     meeting.CalendarID,
		Title:          meeting.DisplayTitle(),
		Organizer:      meeting.Organizer,
		JoinURL:        meeting.JoinURL,
		Status:         SessionStatusScheduled,
		Port:           &port,
		OutputLocation: &loc,
		ScheduledStart: meeting.StartTime,
	}
}

// IsTerminal checks if the session has finished
func (r *SessionRecord) IsTerminal() bool {
	return r.Status.IsTerminal()
}

// MarkAsJoining marks the record as joining
func (r *SessionRecord) MarkAsJoining(at time.Time) {
	r.Status = SessionStatusJoining
	r.JoiningAt = &at
}

// MarkAsActive marks the record as active
func (r *SessionRecord) MarkAsActive(at time.Time) {
	r.Status = SessionStatusActive
	r.ActiveAt = &at
}

// MarkAsEnded marks the record as ended
func (r *SessionRecord) MarkAsEnded(at time.Time) {
	r.Status = SessionStatusEnded
	r.FinishedAt = &at
}

// MarkAsFailed marks the record as failed
func (r *SessionRecord) MarkAsFailed(at time.Time, reason string) {
	r.Status = SessionStatusFailed
	r.FailureReason = &reason
	r.FinishedAt = &at
}
