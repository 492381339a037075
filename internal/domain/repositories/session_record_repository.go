package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/johnquangdev/meetbot/internal/domain/entities"
)

// SessionRecordRepository defines the interface for bot session history
type SessionRecordRepository interface {
	// Create stores a new session record
	Create(ctx context.Context, record *entities.SessionRecord) error

	// Update saves every field of an existing record
	Update(ctx context.Context, record *entities.SessionRecord) error

	// FindByID retrieves a record by its ID, nil when absent
	FindByID(ctx context.Context, id uuid.UUID) (*entities.SessionRecord, error)

	// FindByMeetingID retrieves every attempt made for one meeting, newest first
	FindByMeetingID(ctx context.Context, meetingID string) ([]*entities.SessionRecord, error)

	// List retrieves records with filters and pagination
	List(ctx context.Context, filters SessionRecordFilters) ([]*entities.SessionRecord, int64, error)

	// DeleteFinishedBefore purges terminal records finished before the cutoff
	DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error)
}

// SessionRecordFilters represents filter options for listing session records
type SessionRecordFilters struct {
	Status    *entities.SessionStatus
	MeetingID string
	Since     *time.Time
	Limit     int
	Offset    int
}
