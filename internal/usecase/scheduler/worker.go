package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/johnquangdev/meetbot/internal/domain/entities"
	"github.com/johnquangdev/meetbot/internal/domain/ports"
	ucErrors "github.com/johnquangdev/meetbot/internal/usecase/errors"
	"github.com/johnquangdev/meetbot/pkg/sessionctx"
)

// arm starts the session's single worker goroutine. The worker waits out
// delay on a timer that teardown can cancel, then runs the session.
func (s *Scheduler) arm(sess *Session, delay time.Duration) {
	port, _ := sess.Port()
	ctx, cancel := sessionctx.Begin(s.baseCtx, sess.ID, sess.ID, port)
	sess.attachWorker(cancel)

	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		defer close(sess.done)

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}

		s.runSession(ctx, sess)
	}()
}

// runSession drives scheduled -> joining -> active and probes liveness until
// the meeting is over. Every exit path, panics included, goes through teardown.
func (s *Scheduler) runSession(ctx context.Context, sess *Session) {
	log := s.logger.With(sessionctx.Fields(ctx)...)

	defer s.teardown(sess, true)
	defer func() {
		if p := recover(); p != nil {
			log.Error("💥 Session worker panicked", zap.Any("panic", p))
			sess.fail(fmt.Sprintf("panic: %v", p))
		}
	}()

	if ctx.Err() != nil {
		return
	}
	if err := sess.transition(entities.SessionStatusJoining, s.now()); err != nil {
		log.Warn("⚠️ Session not startable", zap.Error(err))
		return
	}
	s.persist(sess, false)
	log.Info("🚪 Joining meeting", zap.String("title", sess.Meeting.DisplayTitle()))

	port, _ := sess.Port()
	driver, err := s.drivers.NewDriver(ports.DriverParams{
		SessionID: sess.ID,
		Port:      port,
		Meeting:   sess.Meeting,
		Output:    sess.Output,
	})
	if err != nil {
		s.failSession(ctx, log, sess, fmt.Errorf("%w: %w", ucErrors.ErrDriverUnavailable, err))
		return
	}
	sess.setDriver(driver)

	if err := driver.Initialize(ctx); err != nil {
		s.failSession(ctx, log, sess, fmt.Errorf("%w: %w", ucErrors.ErrDriverInitialize, err))
		return
	}
	if !sess.markDriverReady() {
		log.Warn("⚠️ Driver initialized after teardown, closing it")
		s.closeDriver(log, driver)
		return
	}

	if err := driver.Join(ctx, sess.Meeting.JoinURL); err != nil {
		s.failSession(ctx, log, sess, fmt.Errorf("%w: %w", ucErrors.ErrDriverJoin, err))
		return
	}

	if err := sess.transition(entities.SessionStatusActive, s.now()); err != nil {
		log.Warn("⚠️ Session changed state during join", zap.Error(err))
		return
	}
	s.persist(sess, false)
	log.Info("✅ Joined meeting")

	s.probe(ctx, log, sess, driver)
}

// probe re-checks liveness every ProbeInterval while the session is active.
// A probe error counts as not active.
func (s *Scheduler) probe(ctx context.Context, log *zap.Logger, sess *Session, driver ports.Driver) {
	ticker := time.NewTicker(s.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if sess.Status() != entities.SessionStatusActive {
			return
		}

		active, err := driver.IsActive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("⚠️ Liveness probe failed", zap.Error(err))
			active = false
		}
		if !active {
			if err := sess.transition(entities.SessionStatusEnded, s.now()); err != nil {
				log.Warn("⚠️ Could not end session", zap.Error(err))
			}
			log.Info("👋 Meeting is over, leaving")
			return
		}
		log.Debug("💓 Meeting still active")
	}
}

// failSession records a join-phase failure. Errors caused by shutdown
// cancelling the worker are not failures; teardown ends those sessions.
func (s *Scheduler) failSession(ctx context.Context, log *zap.Logger, sess *Session, err error) {
	if ctx.Err() != nil {
		log.Info("🛑 Join interrupted by shutdown", zap.Error(err))
		return
	}
	sess.fail(err.Error())
	log.Error("❌ Session failed", zap.Error(err))
}
