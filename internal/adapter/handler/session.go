package handler

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetbot/errors"
	"github.com/johnquangdev/meetbot/internal/adapter/dto/session"
	"github.com/johnquangdev/meetbot/internal/adapter/presenter"
	"github.com/johnquangdev/meetbot/internal/domain/entities"
	"github.com/johnquangdev/meetbot/internal/domain/repositories"
	"github.com/johnquangdev/meetbot/internal/infrastructure/storage"
	ucErrors "github.com/johnquangdev/meetbot/internal/usecase/errors"
	"github.com/johnquangdev/meetbot/internal/usecase/scheduler"
)

const defaultOutputExpiry = time.Hour

// SessionQuerier is the read side of the scheduler
type SessionQuerier interface {
	Sessions(status *entities.SessionStatus) []scheduler.SessionSnapshot
	Session(id string) (scheduler.SessionSnapshot, error)
	PoolStats() scheduler.PoolStats
	Stopped() bool
}

// OutputLinker produces download links for session outputs
type OutputLinker interface {
	URL(ctx context.Context, loc entities.OutputLocation, expiry time.Duration) (string, error)
}

// Session serves the session status endpoints
type Session struct {
	sessions SessionQuerier
	records  repositories.SessionRecordRepository
	outputs  OutputLinker
	logger   *zap.Logger
	now      func() time.Time
}

// NewSession creates a session handler. records and outputs may be nil, the
// endpoints that need them then answer 503.
func NewSession(
	sessions SessionQuerier,
	records repositories.SessionRecordRepository,
	outputs OutputLinker,
	logger *zap.Logger,
) *Session {
	return &Session{
		sessions: sessions,
		records:  records,
		outputs:  outputs,
		logger:   logger,
		now:      time.Now,
	}
}

// ListSessions returns the live sessions
// GET /v1/sessions?status=active
func (h *Session) ListSessions(c echo.Context) error {
	var req session.ListSessionsRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("Invalid query parameters"))
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, invalidQuery(err))
	}

	var status *entities.SessionStatus
	if req.Status != "" {
		s := entities.SessionStatus(req.Status)
		status = &s
	}

	return HandleSuccess(h.logger, c, presenter.ToSessionListResponse(h.sessions.Sessions(status)))
}

// GetSession returns one live session
// GET /v1/sessions/:id
func (h *Session) GetSession(c echo.Context) error {
	snap, err := h.lookup(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, presenter.ToSessionResponse(snap))
}

// GetOutputURL returns a time-limited link to a session's output
// GET /v1/sessions/:id/output?expiry_minutes=60
func (h *Session) GetOutputURL(c echo.Context) error {
	if h.outputs == nil {
		return HandleError(h.logger, c, errors.ErrUnavailable("Output links"))
	}

	var req session.OutputURLRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("Invalid query parameters"))
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, invalidQuery(err))
	}

	snap, err := h.lookup(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	if snap.Output.IsZero() {
		return HandleError(h.logger, c, errors.ErrNotFound("Output"))
	}

	expiry := defaultOutputExpiry
	if req.ExpiryMinutes > 0 {
		expiry = time.Duration(req.ExpiryMinutes) * time.Minute
	}

	url, err := h.outputs.URL(c.Request().Context(), snap.Output, expiry)
	if err != nil {
		if stdErrors.Is(err, storage.ErrOutputNotFound) {
			return HandleError(h.logger, c, errors.ErrNotFound("Output").WithDetail("location", snap.Output.String()))
		}
		return HandleError(h.logger, c, errors.ErrStorageFailed("presign output", err))
	}

	return HandleSuccess(h.logger, c, &session.OutputURLResponse{
		SessionID: snap.ID,
		URL:       url,
		ExpiresAt: h.now().Add(expiry).UTC(),
	})
}

// GetPool returns the port pool counters
// GET /v1/pool
func (h *Session) GetPool(c echo.Context) error {
	return HandleSuccess(h.logger, c, presenter.ToPoolResponse(h.sessions.PoolStats()))
}

// ListHistory returns persisted lifecycle records
// GET /v1/history?status=failed&page=1&page_size=20
func (h *Session) ListHistory(c echo.Context) error {
	if h.records == nil {
		return HandleError(h.logger, c, errors.ErrUnavailable("Session history"))
	}

	req := session.ListHistoryRequest{Page: 1, PageSize: 20}
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("Invalid query parameters"))
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, invalidQuery(err))
	}

	filters := repositories.SessionRecordFilters{
		MeetingID: req.MeetingID,
		Limit:     req.PageSize,
		Offset:    (req.Page - 1) * req.PageSize,
	}
	if req.Status != "" {
		s := entities.SessionStatus(req.Status)
		filters.Status = &s
	}

	records, total, err := h.records.List(c.Request().Context(), filters)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrDBQueryFailed(err))
	}

	return HandleSuccess(h.logger, c, presenter.ToHistoryListResponse(records, total, req.Page, req.PageSize))
}

func (h *Session) lookup(c echo.Context) (scheduler.SessionSnapshot, error) {
	id := c.Param("id")
	if id == "" {
		return scheduler.SessionSnapshot{}, errors.ErrInvalidArgument("Session id is required")
	}
	snap, err := h.sessions.Session(id)
	if err != nil {
		if stdErrors.Is(err, ucErrors.ErrSessionNotFound) {
			return scheduler.SessionSnapshot{}, errors.ErrSessionNotFound(id)
		}
		return scheduler.SessionSnapshot{}, errors.ErrInternal(err)
	}
	return snap, nil
}
