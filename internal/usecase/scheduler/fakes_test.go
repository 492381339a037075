package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetbot/internal/domain/entities"
	"github.com/johnquangdev/meetbot/internal/domain/ports"
)

var errBoom = errors.New("boom")

type fakeCalendar struct {
	mu    sync.Mutex
	calls int
	fn    func(call int) ([]entities.Meeting, error)
}

func (c *fakeCalendar) FetchUpcoming(_ context.Context, _ time.Duration) ([]entities.Meeting, error) {
	c.mu.Lock()
	c.calls++
	call := c.calls
	fn := c.fn
	c.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(call)
}

func staticCalendar(meetings ...entities.Meeting) *fakeCalendar {
	return &fakeCalendar{fn: func(int) ([]entities.Meeting, error) { return meetings, nil }}
}

type fakeDriver struct {
	initErr     error
	joinErr     error
	probeErr    error
	panicOnJoin bool
	blockJoin   bool
	initDelay   time.Duration

	active atomic.Bool

	initCalls  atomic.Int32
	joinCalls  atomic.Int32
	probeCalls atomic.Int32
	closeCalls atomic.Int32
}

func newActiveDriver() *fakeDriver {
	d := &fakeDriver{}
	d.active.Store(true)
	return d
}

func (d *fakeDriver) Initialize(context.Context) error {
	d.initCalls.Add(1)
	if d.initDelay > 0 {
		time.Sleep(d.initDelay)
	}
	return d.initErr
}

func (d *fakeDriver) Join(ctx context.Context, _ string) error {
	d.joinCalls.Add(1)
	if d.panicOnJoin {
		panic("driver exploded")
	}
	if d.blockJoin {
		<-ctx.Done()
		return ctx.Err()
	}
	return d.joinErr
}

func (d *fakeDriver) IsActive(context.Context) (bool, error) {
	d.probeCalls.Add(1)
	if d.probeErr != nil {
		return false, d.probeErr
	}
	return d.active.Load(), nil
}

func (d *fakeDriver) Close(context.Context) error {
	d.closeCalls.Add(1)
	return nil
}

type fakeFactory struct {
	mu      sync.Mutex
	drivers map[string]*fakeDriver
	created []ports.DriverParams
	err     error
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{drivers: make(map[string]*fakeDriver)}
}

// set preconfigures the driver handed out for meetingID
func (f *fakeFactory) set(meetingID string, d *fakeDriver) *fakeDriver {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drivers[meetingID] = d
	return d
}

func (f *fakeFactory) driver(meetingID string) *fakeDriver {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.drivers[meetingID]
}

func (f *fakeFactory) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func (f *fakeFactory) NewDriver(params ports.DriverParams) (ports.Driver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, params)
	d, ok := f.drivers[params.Meeting.ID]
	if !ok {
		d = newActiveDriver()
		f.drivers[params.Meeting.ID] = d
	}
	return d, nil
}

type fakeStorage struct {
	mu        sync.Mutex
	allocErr  error
	panicFor  string
	allocated []entities.OutputLocation
	deleted   []entities.OutputLocation
}

func (s *fakeStorage) AllocateOutputPath(_ context.Context, sessionID string) (entities.OutputLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID == s.panicFor {
		panic("storage exploded")
	}
	if s.allocErr != nil {
		return entities.OutputLocation{}, s.allocErr
	}
	loc := entities.OutputLocation{Store: "bucket", Path: fmt.Sprintf("recordings/%s.mp4", sessionID)}
	s.allocated = append(s.allocated, loc)
	return loc, nil
}

func (s *fakeStorage) Delete(_ context.Context, loc entities.OutputLocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, loc)
	return nil
}

func (s *fakeStorage) deletedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deleted)
}

func testConfig(limit int) Config {
	return Config{
		ConcurrencyLimit:   limit,
		BasePort:           9222,
		LeadTime:           0,
		DiscoveryWindow:    15 * time.Minute,
		CyclePause:         10 * time.Millisecond,
		ProbeInterval:      10 * time.Millisecond,
		WorkerJoinTimeout:  500 * time.Millisecond,
		DriverCloseTimeout: time.Second,
		ShutdownTimeout:    2 * time.Second,
	}
}

type harness struct {
	s        *Scheduler
	calendar *fakeCalendar
	factory  *fakeFactory
	storage  *fakeStorage
}

func newHarness(t *testing.T, cfg Config, calendar *fakeCalendar, opts ...Option) *harness {
	t.Helper()

	if calendar == nil {
		calendar = &fakeCalendar{}
	}
	h := &harness{
		calendar: calendar,
		factory:  newFakeFactory(),
		storage:  &fakeStorage{},
	}
	s, err := New(cfg, h.calendar, h.factory, h.storage, zap.NewNop(), opts...)
	require.NoError(t, err)
	h.s = s
	t.Cleanup(s.Shutdown)
	return h
}

func meetingAt(id string, start time.Time) entities.Meeting {
	return entities.Meeting{
		ID:        id,
		Title:     "Meeting " + id,
		Organizer: "host@example.com",
		JoinURL:   "https://meet.example.com/" + id,
		StartTime: start,
	}
}

func (h *harness) status(t *testing.T, id string) entities.SessionStatus {
	t.Helper()
	sess, ok := h.s.sessions.Get(id)
	require.True(t, ok, "session %s not tracked", id)
	return sess.Status()
}

func (h *harness) requireConserved(t *testing.T) {
	t.Helper()
	stats := h.s.PoolStats()
	require.Equal(t, stats.Limit, stats.Available+stats.Held)
}
