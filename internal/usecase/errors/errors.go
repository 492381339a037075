package errors

import "errors"

// Common errors
var (
	ErrInvalidInput = errors.New("invalid input")
)

// Pool errors
var (
	ErrPortNotHeld    = errors.New("port is not held")
	ErrPortOutOfRange = errors.New("port is outside the pool range")
	ErrInvalidPool    = errors.New("pool limit must be positive")
)

// Scheduler errors
var (
	ErrSchedulerStopped  = errors.New("scheduler is shut down")
	ErrSessionNotFound   = errors.New("session not found")
	ErrOutputAllocation  = errors.New("failed to allocate output location")
	ErrCalendarFetch     = errors.New("failed to fetch upcoming meetings")
	ErrDriverUnavailable = errors.New("failed to create participant driver")
)

// Driver errors
var (
	ErrDriverInitialize = errors.New("participant driver failed to initialize")
	ErrDriverJoin       = errors.New("participant driver failed to join")
)
