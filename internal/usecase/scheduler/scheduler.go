package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/johnquangdev/meetbot/internal/domain/entities"
	"github.com/johnquangdev/meetbot/internal/domain/ports"
	"github.com/johnquangdev/meetbot/internal/domain/repositories"
	ucErrors "github.com/johnquangdev/meetbot/internal/usecase/errors"
	"github.com/johnquangdev/meetbot/pkg/config"
)

// Config holds the scheduler timing and capacity
type Config struct {
	ConcurrencyLimit   int
	BasePort           int
	LeadTime           time.Duration
	DiscoveryWindow    time.Duration
	CyclePause         time.Duration
	ProbeInterval      time.Duration
	WorkerJoinTimeout  time.Duration
	DriverCloseTimeout time.Duration
	ShutdownTimeout    time.Duration
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		ConcurrencyLimit:   40,
		BasePort:           9222,
		LeadTime:           time.Minute,
		DiscoveryWindow:    15 * time.Minute,
		CyclePause:         60 * time.Second,
		ProbeInterval:      30 * time.Second,
		WorkerJoinTimeout:  time.Second,
		DriverCloseTimeout: 10 * time.Second,
		ShutdownTimeout:    10 * time.Second,
	}
}

// ConfigFrom maps application configuration onto the scheduler config
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		ConcurrencyLimit:   cfg.Scheduler.ConcurrencyLimit,
		BasePort:           cfg.Scheduler.BasePort,
		LeadTime:           cfg.Scheduler.LeadTime,
		DiscoveryWindow:    cfg.Scheduler.DiscoveryWindow,
		CyclePause:         cfg.Scheduler.CyclePause,
		ProbeInterval:      cfg.Scheduler.ProbeInterval,
		WorkerJoinTimeout:  cfg.Scheduler.WorkerJoinTimeout,
		DriverCloseTimeout: cfg.Scheduler.DriverCloseTimeout,
		ShutdownTimeout:    cfg.Server.ShutdownTimeout,
	}
}

// failureGate is the part of FailureTracker the scheduler depends on
type failureGate interface {
	Suppressed(ctx context.Context, meetingID string) (bool, string, error)
	RecordFailure(ctx context.Context, meetingID string) (int64, error)
	Reset(ctx context.Context, meetingID string) error
}

// Scheduler admits meetings from a calendar, runs one bot session per meeting
// and reclaims every resource a session held once it finishes.
type Scheduler struct {
	cfg      Config
	logger   *zap.Logger
	calendar ports.CalendarSource
	drivers  ports.DriverFactory
	storage  ports.OutputStorage
	records  repositories.SessionRecordRepository
	failures failureGate
	now      func() time.Time

	pool     *PortPool
	sessions *Registry

	dispatchMu sync.Mutex

	baseCtx      context.Context
	cancelBase   context.CancelFunc
	workers      sync.WaitGroup
	shutdownOnce sync.Once
	stopped      chan struct{}
}

// Option customizes a Scheduler
type Option func(*Scheduler)

// WithRecordRepository persists a lifecycle record per session
func WithRecordRepository(repo repositories.SessionRecordRepository) Option {
	return func(s *Scheduler) { s.records = repo }
}

// WithFailureTracker enables failed-meeting suppression
func WithFailureTracker(t *FailureTracker) Option {
	return func(s *Scheduler) {
		if t != nil {
			s.failures = t
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New constructs a Scheduler
func New(
	cfg Config,
	calendar ports.CalendarSource,
	drivers ports.DriverFactory,
	storage ports.OutputStorage,
	logger *zap.Logger,
	opts ...Option,
) (*Scheduler, error) {
	if calendar == nil || drivers == nil || storage == nil {
		return nil, fmt.Errorf("%w: calendar, driver factory and storage are required", ucErrors.ErrInvalidInput)
	}
	if cfg.ProbeInterval <= 0 || cfg.CyclePause <= 0 || cfg.DiscoveryWindow <= 0 {
		return nil, fmt.Errorf("%w: intervals must be positive", ucErrors.ErrInvalidInput)
	}

	pool, err := NewPortPool(cfg.BasePort, cfg.ConcurrencyLimit)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:        cfg,
		logger:     logger,
		calendar:   calendar,
		drivers:    drivers,
		storage:    storage,
		now:        time.Now,
		pool:       pool,
		sessions:   NewRegistry(),
		baseCtx:    baseCtx,
		cancelBase: cancel,
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sessions returns snapshots of every tracked session, optionally filtered by status
func (s *Scheduler) Sessions(status *entities.SessionStatus) []SessionSnapshot {
	out := make([]SessionSnapshot, 0, s.sessions.Len())
	for _, sess := range s.sessions.List() {
		snap := sess.Snapshot()
		if status != nil && snap.Status != *status {
			continue
		}
		out = append(out, snap)
	}
	return out
}

// Session returns the snapshot of one tracked session
func (s *Scheduler) Session(id string) (SessionSnapshot, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return SessionSnapshot{}, ucErrors.ErrSessionNotFound
	}
	return sess.Snapshot(), nil
}

// PoolStats returns the port pool counters
func (s *Scheduler) PoolStats() PoolStats {
	return s.pool.Stats()
}

// Stopped reports whether Shutdown has completed
func (s *Scheduler) Stopped() bool {
	select {
	case <-s.stopped:
		return true
	default:
		return false
	}
}

// persist writes the session's lifecycle record. Writes for one session are
// serialized so the stored status never moves backwards.
func (s *Scheduler) persist(sess *Session, create bool) {
	if s.records == nil {
		return
	}

	sess.persistMu.Lock()
	defer sess.persistMu.Unlock()

	rec := sess.recordCopy()
	if rec == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	if create {
		err = s.records.Create(ctx, rec)
	} else {
		err = s.records.Update(ctx, rec)
	}
	if err != nil {
		s.logger.Warn("⚠️ Failed to persist session record",
			zap.String("meeting_id", sess.ID),
			zap.String("status", string(rec.Status)),
			zap.Error(err),
		)
	}
}
