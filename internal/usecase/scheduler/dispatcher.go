package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/johnquangdev/meetbot/internal/domain/entities"
	ucErrors "github.com/johnquangdev/meetbot/internal/usecase/errors"
)

// DispatchOutcome tells what Dispatch did with a meeting
type DispatchOutcome string

const (
	DispatchScheduled  DispatchOutcome = "scheduled"
	DispatchDuplicate  DispatchOutcome = "duplicate"
	DispatchSuppressed DispatchOutcome = "suppressed"
	DispatchDeferred   DispatchOutcome = "deferred"
	DispatchRejected   DispatchOutcome = "rejected"
)

// Dispatch admits a meeting: at most one session per meeting ID, a port from
// the pool, an output location, then a worker armed to start lead-time ahead
// of the meeting. Pool exhaustion defers the meeting to a later cycle and is
// not an error.
func (s *Scheduler) Dispatch(ctx context.Context, meeting entities.Meeting) (DispatchOutcome, error) {
	if err := meeting.Validate(); err != nil {
		return DispatchRejected, fmt.Errorf("%w: %w", ucErrors.ErrInvalidInput, err)
	}

	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	if s.baseCtx.Err() != nil {
		return DispatchRejected, ucErrors.ErrSchedulerStopped
	}

	if s.sessions.Has(meeting.ID) {
		return DispatchDuplicate, nil
	}

	if s.failures != nil {
		suppressed, reason, err := s.failures.Suppressed(ctx, meeting.ID)
		if err != nil {
			s.logger.Warn("⚠️ Failure tracker unavailable, dispatching anyway",
				zap.String("meeting_id", meeting.ID),
				zap.Error(err),
			)
		} else if suppressed {
			s.logger.Info("⏸️ Meeting suppressed after failed joins",
				zap.String("meeting_id", meeting.ID),
				zap.String("reason", reason),
			)
			return DispatchSuppressed, nil
		}
	}

	port, ok := s.pool.Acquire()
	if !ok {
		s.logger.Warn("⚠️ No available ports, deferring meeting",
			zap.String("meeting_id", meeting.ID),
			zap.Int("limit", s.cfg.ConcurrencyLimit),
		)
		return DispatchDeferred, nil
	}

	admitted := false
	defer func() {
		if admitted {
			return
		}
		if err := s.pool.Release(port); err != nil {
			s.logger.Error("❌ Failed to return port of rejected meeting",
				zap.Int("port", port),
				zap.Error(err),
			)
		}
	}()

	output, err := s.storage.AllocateOutputPath(ctx, meeting.ID)
	if err != nil {
		return DispatchRejected, fmt.Errorf("%w for %s: %w", ucErrors.ErrOutputAllocation, meeting.ID, err)
	}

	sess := newSession(meeting, port, output, s.now())
	if s.records != nil {
		sess.attachRecord(entities.NewSessionRecord(meeting, port, output))
	}
	s.sessions.Insert(sess)
	admitted = true

	delay := s.startDelay(sess.StartTime)
	s.arm(sess, delay)
	s.persist(sess, true)

	s.logger.Info("📅 Scheduled meeting",
		zap.String("meeting_id", meeting.ID),
		zap.String("title", meeting.DisplayTitle()),
		zap.Time("start_time", meeting.StartTime),
		zap.Duration("start_in", delay),
		zap.Int("port", port),
		zap.String("output", output.String()),
	)
	return DispatchScheduled, nil
}

// startDelay is how long to wait before joining; never negative
func (s *Scheduler) startDelay(start time.Time) time.Duration {
	delay := start.Sub(s.now()) - s.cfg.LeadTime
	if delay < 0 {
		return 0
	}
	return delay
}
