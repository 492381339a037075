package presenter

import (
	"github.com/johnquangdev/meetbot/internal/adapter/dto/common"
	"github.com/johnquangdev/meetbot/internal/adapter/dto/session"
	"github.com/johnquangdev/meetbot/internal/domain/entities"
	"github.com/johnquangdev/meetbot/internal/usecase/scheduler"
)

// ToSessionResponse converts a session snapshot to SessionResponse DTO
func ToSessionResponse(s scheduler.SessionSnapshot) *session.SessionResponse {
	return &session.SessionResponse{
		ID:             s.ID,
		Title:          s.Meeting.DisplayTitle(),
		Organizer:      s.Meeting.Organizer,
		CalendarID:     s.Meeting.CalendarID,
		JoinURL:        s.Meeting.JoinURL,
		StartTime:      s.Meeting.StartTime,
		Status:         string(s.Status),
		Port:           s.Port,
		OutputLocation: s.Output.String(),
		FailureReason:  s.FailureReason,
		CreatedAt:      s.CreatedAt,
		JoiningAt:      s.JoiningAt,
		ActiveAt:       s.ActiveAt,
		FinishedAt:     s.FinishedAt,
	}
}

// ToSessionListResponse converts snapshots to SessionListResponse
func ToSessionListResponse(snaps []scheduler.SessionSnapshot) *session.SessionListResponse {
	sessions := make([]*session.SessionResponse, len(snaps))
	for i, s := range snaps {
		sessions[i] = ToSessionResponse(s)
	}
	return &session.SessionListResponse{
		Sessions: sessions,
		Total:    len(sessions),
	}
}

// ToPoolResponse converts pool counters to PoolResponse
func ToPoolResponse(stats scheduler.PoolStats) *session.PoolResponse {
	held := stats.HeldPorts
	if held == nil {
		held = []int{}
	}
	return &session.PoolResponse{
		Limit:     stats.Limit,
		Available: stats.Available,
		Held:      stats.Held,
		HeldPorts: held,
	}
}

// ToHistoryRecordResponse converts a SessionRecord entity to HistoryRecordResponse
func ToHistoryRecordResponse(r *entities.SessionRecord) *session.HistoryRecordResponse {
	if r == nil {
		return nil
	}
	return &session.HistoryRecordResponse{
		ID:             r.ID.String(),
		MeetingID:      r.MeetingID,
		Title:          r.Title,
		Organizer:      r.Organizer,
		Status:         string(r.Status),
		Port:           r.Port,
		OutputLocation: r.OutputLocation,
		ScheduledStart: r.ScheduledStart,
		JoiningAt:      r.JoiningAt,
		ActiveAt:       r.ActiveAt,
		FinishedAt:     r.FinishedAt,
		FailureReason:  r.FailureReason,
		CreatedAt:      r.CreatedAt,
	}
}

// ToHistoryListResponse converts records to a paginated list
func ToHistoryListResponse(records []*entities.SessionRecord, total int64, page, pageSize int) *common.ListResponse {
	items := make([]*session.HistoryRecordResponse, len(records))
	for i, r := range records {
		items[i] = ToHistoryRecordResponse(r)
	}
	return &common.ListResponse{
		Data:       items,
		Pagination: common.NewPagination(page, pageSize, total),
	}
}
