package sessionctx

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

type KeyContext string

var (
	keySessionID KeyContext = "session_id"
	keyMeetingID KeyContext = "meeting_id"
	keyPort      KeyContext = "port"
	keyStartTime KeyContext = "session_start_time"
)

// Metadata holds the identifiers a session worker carries in its context
type Metadata struct {
	SessionID string
	MeetingID string
	Port      int
	StartTime time.Time
}

// Begin derives a cancellable worker context tagged with session metadata.
func Begin(parent context.Context, sessionID, meetingID string, port int) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	ctx = context.WithValue(ctx, keySessionID, sessionID)
	ctx = context.WithValue(ctx, keyMeetingID, meetingID)
	ctx = context.WithValue(ctx, keyPort, port)
	ctx = context.WithValue(ctx, keyStartTime, time.Now())

	return ctx, cancel
}

// Guard runs fn and converts a panic into an error.
func Guard(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{Value: p, Stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}

// PanicError is returned by Guard when fn panicked
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic recovered: %v", e.Value)
}

// GetSessionID extracts session ID from context
func GetSessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(keySessionID).(string)
	return id, ok
}

// GetMeetingID extracts meeting ID from context
func GetMeetingID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(keyMeetingID).(string)
	return id, ok
}

// GetPort extracts the held port from context, -1 when absent
func GetPort(ctx context.Context) int {
	port, ok := ctx.Value(keyPort).(int)
	if !ok {
		return -1
	}
	return port
}

// GetStartTime extracts worker start time from context
func GetStartTime(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(keyStartTime).(time.Time)
	return t, ok
}

// GetMetadata extracts all session metadata from context
func GetMetadata(ctx context.Context) *Metadata {
	sessionID, _ := GetSessionID(ctx)
	meetingID, _ := GetMeetingID(ctx)
	startTime, _ := GetStartTime(ctx)

	return &Metadata{
		SessionID: sessionID,
		MeetingID: meetingID,
		Port:      GetPort(ctx),
		StartTime: startTime,
	}
}

// Fields returns zap fields for the session metadata present in ctx
func Fields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if id, ok := GetSessionID(ctx); ok {
		fields = append(fields, zap.String("session_id", id))
	}
	if id, ok := GetMeetingID(ctx); ok {
		fields = append(fields, zap.String("meeting_id", id))
	}
	if port := GetPort(ctx); port >= 0 {
		fields = append(fields, zap.Int("port", port))
	}
	return fields
}
