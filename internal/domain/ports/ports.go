package ports

import (
	"context"
	"time"

	"github.com/johnquangdev/meetbot/internal/domain/entities"
)

// CalendarSource lists meetings starting within a look-ahead window.
// An empty result is success.
type CalendarSource interface {
	FetchUpcoming(ctx context.Context, window time.Duration) ([]entities.Meeting, error)
}

// Driver controls one automated participant for one session.
// Close must be safe to call concurrently with IsActive and more than once.
type Driver interface {
	Initialize(ctx context.Context) error
	Join(ctx context.Context, address string) error
	IsActive(ctx context.Context) (bool, error)
	Close(ctx context.Context) error
}

// DriverParams describes the session a driver is created for
type DriverParams struct {
	SessionID string
	Port      int
	Meeting   entities.Meeting
	Output    entities.OutputLocation
}

// DriverFactory builds a driver per session
type DriverFactory interface {
	NewDriver(params DriverParams) (Driver, error)
}

// OutputStorage reserves and removes session output artifacts
type OutputStorage interface {
	AllocateOutputPath(ctx context.Context, sessionID string) (entities.OutputLocation, error)
	Delete(ctx context.Context, loc entities.OutputLocation) error
}
