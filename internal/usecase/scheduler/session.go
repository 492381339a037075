package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/johnquangdev/meetbot/internal/domain/entities"
	"github.com/johnquangdev/meetbot/internal/domain/ports"
)

// Session is the runtime state of one meeting's bot participation.
// ID, Meeting, StartTime and Output never change after construction.
type Session struct {
	ID        string
	Meeting   entities.Meeting
	StartTime time.Time
	Output    entities.OutputLocation

	mu          sync.Mutex
	status      entities.SessionStatus
	port        int
	hasPort     bool
	driver      ports.Driver
	driverReady bool
	tornDown    bool
	failure     string
	createdAt   time.Time
	joiningAt   time.Time
	activeAt    time.Time
	finishedAt  time.Time
	record      *entities.SessionRecord

	cancel       context.CancelFunc
	done         chan struct{}
	teardownOnce sync.Once
	persistMu    sync.Mutex
}

// SessionSnapshot is an immutable copy of a session's state
type SessionSnapshot struct {
	ID            string                  `json:"id"`
	Meeting       entities.Meeting        `json:"meeting"`
	Status        entities.SessionStatus  `json:"status"`
	Port          *int                    `json:"port,omitempty"`
	Output        entities.OutputLocation `json:"output"`
	FailureReason string                  `json:"failure_reason,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	JoiningAt     *time.Time              `json:"joining_at,omitempty"`
	ActiveAt      *time.Time              `json:"active_at,omitempty"`
	FinishedAt    *time.Time              `json:"finished_at,omitempty"`
}

func newSession(meeting entities.Meeting, port int, output entities.OutputLocation, now time.Time) *Session {
	return &Session{
		ID:        meeting.ID,
		Meeting:   meeting,
		StartTime: meeting.StartTime,
		Output:    output,
		status:    entities.SessionStatusScheduled,
		port:      port,
		hasPort:   true,
		createdAt: now,
		done:      make(chan struct{}),
	}
}

// Status returns the current status
func (s *Session) Status() entities.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Port returns the held port, ok is false once it was released
func (s *Session) Port() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port, s.hasPort
}

// Snapshot copies the session state
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SessionSnapshot{
		ID:            s.ID,
		Meeting:       s.Meeting,
		Status:        s.status,
		Output:        s.Output,
		FailureReason: s.failure,
		CreatedAt:     s.createdAt,
		JoiningAt:     timePtr(s.joiningAt),
		ActiveAt:      timePtr(s.activeAt),
		FinishedAt:    timePtr(s.finishedAt),
	}
	if s.hasPort {
		port := s.port
		snap.Port = &port
	}
	return snap
}

// transition moves the session to next, rejecting moves the state machine forbids
func (s *Session) transition(next entities.SessionStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", entities.ErrInvalidTransition, s.status, next)
	}
	s.status = next
	switch next {
	case entities.SessionStatusJoining:
		s.joiningAt = at
		if s.record != nil {
			s.record.MarkAsJoining(at)
		}
	case entities.SessionStatusActive:
		if s.activeAt.IsZero() {
			s.activeAt = at
			if s.record != nil {
				s.record.MarkAsActive(at)
			}
		}
	}
	return nil
}

// fail marks the session failed unless it is already terminal
func (s *Session) fail(reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.IsTerminal() {
		return false
	}
	s.status = entities.SessionStatusFailed
	s.failure = reason
	return true
}

// finish settles the terminal status: ended unless the session already failed
func (s *Session) finish(at time.Time) entities.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != entities.SessionStatusFailed {
		s.status = entities.SessionStatusEnded
	}
	if s.finishedAt.IsZero() {
		s.finishedAt = at
	}
	if s.record != nil {
		if s.status == entities.SessionStatusFailed {
			s.record.MarkAsFailed(s.finishedAt, s.failure)
		} else {
			s.record.MarkAsEnded(s.finishedAt)
		}
	}
	return s.status
}

func (s *Session) reachedActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.activeAt.IsZero()
}

func (s *Session) failureReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

func (s *Session) setDriver(d ports.Driver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.driver = d
}

// markDriverReady records a successful Initialize. It returns false when
// teardown already ran, in which case the caller owns closing the driver.
func (s *Session) markDriverReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tornDown {
		return false
	}
	s.driverReady = true
	return true
}

// takeDriver hands the driver to teardown exactly once, and only if it was initialized
func (s *Session) takeDriver() ports.Driver {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tornDown = true
	d := s.driver
	ready := s.driverReady
	s.driver = nil
	s.driverReady = false
	if !ready {
		return nil
	}
	return d
}

// takePort clears the held port so it can only be released once
func (s *Session) takePort() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	port, ok := s.port, s.hasPort
	s.hasPort = false
	return port, ok
}

func (s *Session) attachRecord(r *entities.SessionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = r
}

// recordCopy returns a copy of the lifecycle record, nil when history is disabled
func (s *Session) recordCopy() *entities.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.record == nil {
		return nil
	}
	cp := *s.record
	return &cp
}

func (s *Session) attachWorker(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = cancel
}

// cancelWorker stops a pending timer or running worker
func (s *Session) cancelWorker() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// wait blocks until the worker exits or timeout elapses
func (s *Session) wait(timeout time.Duration) bool {
	s.mu.Lock()
	started := s.cancel != nil
	s.mu.Unlock()
	if !started {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.done:
		return true
	case <-timer.C:
		return false
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
