package scheduler

import (
	"context"

	"go.uber.org/zap"

	"github.com/johnquangdev/meetbot/internal/domain/entities"
	"github.com/johnquangdev/meetbot/internal/domain/ports"
)

// teardown reclaims everything a session holds. It may be called by the
// worker, the sweep and shutdown, in any order and concurrently; resources
// are released exactly once. Callers other than the worker first cancel the
// worker and wait for it up to WorkerJoinTimeout.
func (s *Scheduler) teardown(sess *Session, fromWorker bool) {
	sess.cancelWorker()
	if !fromWorker && !sess.wait(s.cfg.WorkerJoinTimeout) {
		s.logger.Warn("⚠️ Worker did not stop in time, releasing anyway",
			zap.String("meeting_id", sess.ID),
			zap.Duration("waited", s.cfg.WorkerJoinTimeout),
		)
	}

	sess.teardownOnce.Do(func() {
		s.release(sess)
	})
}

func (s *Scheduler) closeDriver(log *zap.Logger, driver ports.Driver) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DriverCloseTimeout)
	defer cancel()
	if err := driver.Close(ctx); err != nil {
		log.Warn("⚠️ Failed to close participant driver", zap.Error(err))
	}
}

func (s *Scheduler) release(sess *Session) {
	log := s.logger.With(zap.String("meeting_id", sess.ID))

	if driver := sess.takeDriver(); driver != nil {
		s.closeDriver(log, driver)
	}

	if port, ok := sess.takePort(); ok {
		if err := s.pool.Release(port); err != nil {
			log.Error("❌ Failed to return port", zap.Int("port", port), zap.Error(err))
		}
	}

	final := sess.finish(s.now())
	s.persist(sess, false)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DriverCloseTimeout)
	defer cancel()

	if final == entities.SessionStatusFailed {
		if !sess.Output.IsZero() {
			if err := s.storage.Delete(ctx, sess.Output); err != nil {
				log.Warn("⚠️ Failed to delete output of failed session",
					zap.String("output", sess.Output.String()),
					zap.Error(err),
				)
			}
		}
		if s.failures != nil {
			n, err := s.failures.RecordFailure(ctx, sess.ID)
			if err != nil {
				log.Warn("⚠️ Failed to record join failure", zap.Error(err))
			} else {
				log.Info("📉 Join failure recorded", zap.Int64("failures", n))
			}
		}
	} else if s.failures != nil && sess.reachedActive() {
		if err := s.failures.Reset(ctx, sess.ID); err != nil {
			log.Warn("⚠️ Failed to reset join failures", zap.Error(err))
		}
	}

	log.Info("🧹 Session torn down",
		zap.String("status", string(final)),
		zap.String("reason", sess.failureReason()),
	)
}
