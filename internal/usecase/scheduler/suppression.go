package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// CounterStore is the key-value store failure tracking runs on
type CounterStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Delete(ctx context.Context, keys ...string) error
}

// FailurePolicy configures failed-meeting suppression. A zero Cooldown and a
// zero MaxFailures disable suppression entirely.
type FailurePolicy struct {
	Cooldown    time.Duration
	MaxFailures int
	Window      time.Duration
}

// Enabled reports whether the policy can suppress anything
func (p FailurePolicy) Enabled() bool {
	return p.Cooldown > 0 || p.MaxFailures > 0
}

// FailureTracker remembers join failures per meeting so a meeting that keeps
// failing is not re-dispatched every cycle.
type FailureTracker struct {
	store  CounterStore
	policy FailurePolicy
	prefix string
}

// NewFailureTracker creates a tracker over store
func NewFailureTracker(store CounterStore, policy FailurePolicy) *FailureTracker {
	return &FailureTracker{
		store:  store,
		policy: policy,
		prefix: "meetbot:failures:",
	}
}

func (t *FailureTracker) cooldownKey(meetingID string) string {
	return t.prefix + "cooldown:" + meetingID
}

func (t *FailureTracker) countKey(meetingID string) string {
	return t.prefix + "count:" + meetingID
}

// Suppressed reports whether meetingID must not be dispatched right now and why
func (t *FailureTracker) Suppressed(ctx context.Context, meetingID string) (bool, string, error) {
	if !t.policy.Enabled() {
		return false, "", nil
	}

	if t.policy.Cooldown > 0 {
		_, found, err := t.store.Get(ctx, t.cooldownKey(meetingID))
		if err != nil {
			return false, "", fmt.Errorf("failed to read cooldown: %w", err)
		}
		if found {
			return true, "cooling down after a failed join", nil
		}
	}

	if t.policy.MaxFailures > 0 {
		raw, found, err := t.store.Get(ctx, t.countKey(meetingID))
		if err != nil {
			return false, "", fmt.Errorf("failed to read failure count: %w", err)
		}
		if found {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return false, "", fmt.Errorf("corrupt failure count %q: %w", raw, err)
			}
			if n >= t.policy.MaxFailures {
				return true, fmt.Sprintf("failed %d times", n), nil
			}
		}
	}

	return false, "", nil
}

// RecordFailure notes a failed session and returns the failure count in the window
func (t *FailureTracker) RecordFailure(ctx context.Context, meetingID string) (int64, error) {
	if t.policy.Cooldown > 0 {
		if err := t.store.Set(ctx, t.cooldownKey(meetingID), "1", t.policy.Cooldown); err != nil {
			return 0, fmt.Errorf("failed to set cooldown: %w", err)
		}
	}
	if t.policy.MaxFailures <= 0 {
		return 0, nil
	}
	n, err := t.store.Incr(ctx, t.countKey(meetingID), t.policy.Window)
	if err != nil {
		return 0, fmt.Errorf("failed to count failure: %w", err)
	}
	return n, nil
}

// Reset clears the failure history of a meeting that ran successfully
func (t *FailureTracker) Reset(ctx context.Context, meetingID string) error {
	if !t.policy.Enabled() {
		return nil
	}
	return t.store.Delete(ctx, t.cooldownKey(meetingID), t.countKey(meetingID))
}
