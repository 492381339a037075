package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meetbot/internal/domain/entities"
	"github.com/johnquangdev/meetbot/internal/infrastructure/cache"
	ucErrors "github.com/johnquangdev/meetbot/internal/usecase/errors"
)

func TestCalendarFaultSkipsOnlyThatCycle(t *testing.T) {
	now := time.Now()
	cal := &fakeCalendar{fn: func(call int) ([]entities.Meeting, error) {
		if call == 1 {
			return nil, errBoom
		}
		return []entities.Meeting{meetingAt("evt", now)}, nil
	}}
	h := newHarness(t, testConfig(2), cal)

	report := h.s.RunCycle(context.Background())
	require.Error(t, report.FetchErr)
	assert.ErrorIs(t, report.FetchErr, ucErrors.ErrCalendarFetch)
	assert.Equal(t, 0, report.Scheduled)
	assert.Equal(t, 0, h.s.sessions.Len())

	report = h.s.RunCycle(context.Background())
	require.NoError(t, report.FetchErr)
	assert.Equal(t, 1, report.Scheduled)
	assert.True(t, h.s.sessions.Has("evt"))
}

func TestCalendarPanicIsContained(t *testing.T) {
	cal := &fakeCalendar{fn: func(int) ([]entities.Meeting, error) { panic("calendar exploded") }}
	h := newHarness(t, testConfig(1), cal)

	report := h.s.RunCycle(context.Background())
	assert.Error(t, report.FetchErr)
}

func TestDispatchPanicDoesNotAbortCycle(t *testing.T) {
	now := time.Now()
	cal := staticCalendar(meetingAt("boom", now), meetingAt("fine", now))
	h := newHarness(t, testConfig(2), cal)
	h.storage.panicFor = "boom"

	report := h.s.RunCycle(context.Background())
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Scheduled)
	assert.True(t, h.s.sessions.Has("fine"))
	assert.False(t, h.s.sessions.Has("boom"))

	stats := h.s.PoolStats()
	assert.Equal(t, 1, stats.Held, "port taken before the panic is returned")
	h.requireConserved(t)
}

func TestSweepRemovesTerminalSessions(t *testing.T) {
	h := newHarness(t, testConfig(2), nil)
	h.factory.set("bad", &fakeDriver{joinErr: errBoom})

	ctx := context.Background()
	_, err := h.s.Dispatch(ctx, meetingAt("bad", time.Now()))
	require.NoError(t, err)
	_, err = h.s.Dispatch(ctx, meetingAt("good", time.Now()))
	require.NoError(t, err)

	waitStatus(t, h, "bad", entities.SessionStatusFailed)
	waitStatus(t, h, "good", entities.SessionStatusActive)

	assert.Equal(t, 1, h.s.Sweep())
	assert.False(t, h.s.sessions.Has("bad"))
	assert.True(t, h.s.sessions.Has("good"))
}

func TestShutdownTearsDownEverySession(t *testing.T) {
	h := newHarness(t, testConfig(3), nil)
	ctx := context.Background()

	active := h.factory.set("active", newActiveDriver())
	joining := h.factory.set("joining", &fakeDriver{blockJoin: true})

	_, err := h.s.Dispatch(ctx, meetingAt("active", time.Now()))
	require.NoError(t, err)
	_, err = h.s.Dispatch(ctx, meetingAt("joining", time.Now()))
	require.NoError(t, err)
	_, err = h.s.Dispatch(ctx, meetingAt("pending", time.Now().Add(time.Hour)))
	require.NoError(t, err)

	waitStatus(t, h, "active", entities.SessionStatusActive)
	waitStatus(t, h, "joining", entities.SessionStatusJoining)

	sessions := h.s.sessions.List()
	h.s.Shutdown()

	assert.Equal(t, 0, h.s.sessions.Len())
	assert.Equal(t, 0, h.s.PoolStats().Held)
	assert.Equal(t, int32(1), active.closeCalls.Load())
	assert.Equal(t, int32(1), joining.closeCalls.Load())
	for _, sess := range sessions {
		assert.Equal(t, entities.SessionStatusEnded, sess.Status(), sess.ID)
	}
}

func TestShutdownClosesDriverInitializedLate(t *testing.T) {
	cfg := testConfig(1)
	h := newHarness(t, cfg, nil)
	slow := h.factory.set("slow", &fakeDriver{initDelay: cfg.WorkerJoinTimeout + 300*time.Millisecond})

	_, err := h.s.Dispatch(context.Background(), meetingAt("slow", time.Now()))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return slow.initCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	h.s.Shutdown()

	require.Eventually(t, func() bool { return slow.closeCalls.Load() == 1 }, 2*time.Second, 10*time.Millisecond,
		"driver initialized after teardown must still be closed")
	assert.Equal(t, int32(0), slow.joinCalls.Load())
	assert.Equal(t, 0, h.s.PoolStats().Held)
}

func TestRunStopsOnCancel(t *testing.T) {
	var fetches atomic.Int32
	cal := &fakeCalendar{fn: func(int) ([]entities.Meeting, error) {
		fetches.Add(1)
		return []entities.Meeting{meetingAt("evt", time.Now())}, nil
	}}
	h := newHarness(t, testConfig(1), cal)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return fetches.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond, "supervisor keeps cycling")

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Equal(t, 0, h.s.sessions.Len())
	assert.Equal(t, 0, h.s.PoolStats().Held)
	assert.Equal(t, int32(1), h.factory.driver("evt").closeCalls.Load())
}

func TestFailedMeetingIsSuppressed(t *testing.T) {
	store := cache.NewMemoryStore(0)
	defer store.Close()
	tracker := NewFailureTracker(store, FailurePolicy{Cooldown: time.Hour})

	cal := staticCalendar(meetingAt("flaky", time.Now()))
	h := newHarness(t, testConfig(1), cal, WithFailureTracker(tracker))
	d := h.factory.set("flaky", &fakeDriver{joinErr: errBoom})

	report := h.s.RunCycle(context.Background())
	assert.Equal(t, 1, report.Scheduled)
	waitStatus(t, h, "flaky", entities.SessionStatusFailed)
	require.Eventually(t, func() bool {
		return h.s.PoolStats().Held == 0
	}, time.Second, 5*time.Millisecond)

	report = h.s.RunCycle(context.Background())
	assert.Equal(t, 1, report.Swept)
	assert.Equal(t, 0, report.Scheduled)
	assert.False(t, h.s.sessions.Has("flaky"))

	report = h.s.RunCycle(context.Background())
	assert.Equal(t, 1, report.Suppressed)
	assert.Equal(t, int32(1), d.joinCalls.Load(), "suppressed meeting is not retried")
}

func TestFailedMeetingRetriedWithoutTracker(t *testing.T) {
	cal := staticCalendar(meetingAt("flaky", time.Now()))
	h := newHarness(t, testConfig(1), cal)
	d := h.factory.set("flaky", &fakeDriver{joinErr: errBoom})

	h.s.RunCycle(context.Background())
	waitStatus(t, h, "flaky", entities.SessionStatusFailed)
	require.Eventually(t, func() bool {
		return h.s.PoolStats().Held == 0
	}, time.Second, 5*time.Millisecond)

	// sweep happens at the end of the cycle, the next one re-dispatches
	h.s.RunCycle(context.Background())
	report := h.s.RunCycle(context.Background())
	assert.Equal(t, 1, report.Scheduled)
	require.Eventually(t, func() bool {
		return d.joinCalls.Load() == 2
	}, time.Second, 5*time.Millisecond)
}
