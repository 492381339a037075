package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/johnquangdev/meetbot/internal/domain/entities"
	"github.com/johnquangdev/meetbot/internal/domain/repositories"
)

// SessionRecordRepository implements repositories.SessionRecordRepository using GORM
type SessionRecordRepository struct {
	db *gorm.DB
}

// NewSessionRecordRepository creates a new session record repository
func NewSessionRecordRepository(db *gorm.DB) *SessionRecordRepository {
	return &SessionRecordRepository{
		db: db,
	}
}

// Create creates a new session record
func (r *SessionRecordRepository) Create(ctx context.Context, record *entities.SessionRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to create session record: %w", err)
	}
	return nil
}

// Update writes the lifecycle columns of an existing record. created_at is
// left alone so an update racing the initial insert cannot zero it.
func (r *SessionRecordRepository) Update(ctx context.Context, record *entities.SessionRecord) error {
	err := r.db.WithContext(ctx).
		Model(&entities.SessionRecord{}).
		Where("id = ?", record.ID).
		Updates(map[string]interface{}{
			"status":          record.Status,
			"port":            record.Port,
			"output_location": record.OutputLocation,
			"joining_at":      record.JoiningAt,
			"active_at":       record.ActiveAt,
			"finished_at":     record.FinishedAt,
			"failure_reason":  record.FailureReason,
			"updated_at":      time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update session record: %w", err)
	}
	return nil
}

// FindByID finds a session record by ID
func (r *SessionRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.SessionRecord, error) {
	var record entities.SessionRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find session record: %w", err)
	}
	return &record, nil
}

// FindByMeetingID finds every attempt made for a meeting, newest first
func (r *SessionRecordRepository) FindByMeetingID(ctx context.Context, meetingID string) ([]*entities.SessionRecord, error) {
	var records []*entities.SessionRecord
	if err := r.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("created_at DESC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to find session records by meeting: %w", err)
	}
	return records, nil
}

// List retrieves session records with filters
func (r *SessionRecordRepository) List(ctx context.Context, filters repositories.SessionRecordFilters) ([]*entities.SessionRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&entities.SessionRecord{})

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.MeetingID != "" {
		query = query.Where("meeting_id = ?", filters.MeetingID)
	}
	if filters.Since != nil {
		query = query.Where("created_at >= ?", *filters.Since)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count session records: %w", err)
	}

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	var records []*entities.SessionRecord
	if err := query.Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list session records: %w", err)
	}
	return records, total, nil
}

// DeleteFinishedBefore removes terminal records finished before the cutoff
func (r *SessionRecordRepository) DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status IN ? AND finished_at < ?",
			[]entities.SessionStatus{entities.SessionStatusEnded, entities.SessionStatusFailed}, before).
		Delete(&entities.SessionRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge session records: %w", result.Error)
	}
	return result.RowsAffected, nil
}
