package entities

import "errors"

// Domain errors
var (
	// Meeting errors
	ErrMeetingIDRequired = errors.New("meeting id is required")
	ErrJoinURLRequired   = errors.New("meeting join url is required")
	ErrStartTimeRequired = errors.New("meeting start time is required")

	// Session errors
	ErrInvalidTransition = errors.New("invalid session status transition")
)
