// Package staticcal serves meetings from a JSON file, for local runs
// against the mock driver.
package staticcal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/johnquangdev/meetbot/internal/domain/entities"
)

// entry is one meeting in the file. StartsIn is resolved against the time
// the source was created and wins over StartTime.
type entry struct {
	entities.Meeting
	StartsIn string `json:"starts_in,omitempty"`
}

// Calendar re-reads its file on every fetch so edits apply without a restart
type Calendar struct {
	path    string
	started time.Time
	logger  *zap.Logger
	now     func() time.Time
}

func NewCalendar(path string, logger *zap.Logger) *Calendar {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calendar{
		path:    path,
		started: time.Now(),
		logger:  logger,
		now:     time.Now,
	}
}

// FetchUpcoming returns meetings starting within window of now. Meetings
// that started less than window ago are included too.
func (c *Calendar) FetchUpcoming(ctx context.Context, window time.Duration) ([]entities.Meeting, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calendar file: %w", err)
	}

	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse calendar file: %w", err)
	}

	now := c.now()
	meetings := make([]entities.Meeting, 0, len(entries))
	for _, e := range entries {
		m := e.Meeting
		if e.StartsIn != "" {
			offset, err := time.ParseDuration(e.StartsIn)
			if err != nil {
				c.logger.Warn("⚠️ Skipping meeting with bad starts_in",
					zap.String("meeting_id", m.ID),
					zap.String("starts_in", e.StartsIn),
				)
				continue
			}
			m.StartTime = c.started.Add(offset)
		}
		if m.StartTime.IsZero() {
			continue
		}
		if m.StartTime.After(now.Add(window)) || m.StartTime.Before(now.Add(-window)) {
			continue
		}
		if m.CalendarID == "" {
			m.CalendarID = "static"
		}
		meetings = append(meetings, m)
	}

	sort.SliceStable(meetings, func(i, j int) bool {
		return meetings[i].StartTime.Before(meetings[j].StartTime)
	})
	return meetings, nil
}
