package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/johnquangdev/meetbot/internal/domain/entities"
	ucErrors "github.com/johnquangdev/meetbot/internal/usecase/errors"
	"github.com/johnquangdev/meetbot/pkg/sessionctx"
)

// CycleReport summarizes one supervisor iteration
type CycleReport struct {
	Fetched    int
	Scheduled  int
	Duplicate  int
	Deferred   int
	Suppressed int
	Failed     int
	Swept      int
	FetchErr   error
}

// Run executes supervisor cycles with a fixed pause between them until ctx is
// cancelled, then shuts the scheduler down.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("🚀 Scheduler started",
		zap.Int("concurrency_limit", s.cfg.ConcurrencyLimit),
		zap.Int("base_port", s.cfg.BasePort),
		zap.Duration("cycle_pause", s.cfg.CyclePause),
		zap.Duration("discovery_window", s.cfg.DiscoveryWindow),
	)

	for {
		report := s.RunCycle(ctx)
		s.logger.Info("🔁 Cycle complete",
			zap.Int("fetched", report.Fetched),
			zap.Int("scheduled", report.Scheduled),
			zap.Int("deferred", report.Deferred),
			zap.Int("suppressed", report.Suppressed),
			zap.Int("failed", report.Failed),
			zap.Int("swept", report.Swept),
			zap.Int("tracked", s.sessions.Len()),
		)

		pause := time.NewTimer(s.cfg.CyclePause)
		select {
		case <-ctx.Done():
			pause.Stop()
			s.Shutdown()
			return nil
		case <-s.stopped:
			pause.Stop()
			return ucErrors.ErrSchedulerStopped
		case <-pause.C:
		}
	}
}

// RunCycle fetches upcoming meetings, dispatches each and sweeps finished
// sessions. A fetch fault skips dispatch for this cycle only.
func (s *Scheduler) RunCycle(ctx context.Context) CycleReport {
	var report CycleReport

	meetings, err := s.fetch(ctx)
	if err != nil {
		report.FetchErr = err
		s.logger.Error("❌ Failed to fetch upcoming meetings", zap.Error(err))
	} else {
		report.Fetched = len(meetings)
		for _, meeting := range meetings {
			outcome, err := s.dispatchGuarded(ctx, meeting)
			if err != nil {
				report.Failed++
				s.logger.Error("❌ Failed to dispatch meeting",
					zap.String("meeting_id", meeting.ID),
					zap.Error(err),
				)
				continue
			}
			switch outcome {
			case DispatchScheduled:
				report.Scheduled++
			case DispatchDuplicate:
				report.Duplicate++
			case DispatchDeferred:
				report.Deferred++
			case DispatchSuppressed:
				report.Suppressed++
			}
		}
	}

	report.Swept = s.Sweep()
	return report
}

func (s *Scheduler) fetch(ctx context.Context) ([]entities.Meeting, error) {
	var meetings []entities.Meeting
	err := sessionctx.Guard(ctx, func(ctx context.Context) error {
		var err error
		meetings, err = s.calendar.FetchUpcoming(ctx, s.cfg.DiscoveryWindow)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ucErrors.ErrCalendarFetch, err)
	}
	return meetings, nil
}

// dispatchGuarded keeps a panic for one meeting from aborting the cycle
func (s *Scheduler) dispatchGuarded(ctx context.Context, meeting entities.Meeting) (DispatchOutcome, error) {
	outcome := DispatchRejected
	err := sessionctx.Guard(ctx, func(ctx context.Context) error {
		var err error
		outcome, err = s.Dispatch(ctx, meeting)
		return err
	})
	var pe *sessionctx.PanicError
	if errors.As(err, &pe) {
		s.logger.Error("💥 Dispatch panicked",
			zap.String("meeting_id", meeting.ID),
			zap.Any("panic", pe.Value),
			zap.ByteString("stack", pe.Stack),
		)
	}
	return outcome, err
}

// Sweep tears down and forgets every session that reached ended or failed
func (s *Scheduler) Sweep() int {
	swept := 0
	for _, sess := range s.sessions.Terminal() {
		s.teardown(sess, false)
		if s.sessions.Remove(sess) {
			swept++
		}
	}
	return swept
}

// Shutdown cancels every worker, tears down all tracked sessions in parallel
// and clears the set. Safe to call more than once.
func (s *Scheduler) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.logger.Info("🛑 Shutting down scheduler", zap.Int("sessions", s.sessions.Len()))

		s.dispatchMu.Lock()
		s.cancelBase()
		s.dispatchMu.Unlock()

		var wg sync.WaitGroup
		for _, sess := range s.sessions.List() {
			wg.Add(1)
			go func(sess *Session) {
				defer wg.Done()
				s.teardown(sess, false)
				s.sessions.Remove(sess)
			}(sess)
		}
		wg.Wait()

		done := make(chan struct{})
		go func() {
			s.workers.Wait()
			close(done)
		}()

		timer := time.NewTimer(s.cfg.ShutdownTimeout)
		defer timer.Stop()
		select {
		case <-done:
			s.logger.Info("✅ Scheduler stopped")
		case <-timer.C:
			s.logger.Warn("⚠️ Some session workers did not exit before the shutdown timeout")
		}
		close(s.stopped)
	})
}
