package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	googleauth "golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/johnquangdev/meetbot/internal/domain/entities"
	"github.com/johnquangdev/meetbot/pkg/config"
)

var ErrNoCalendars = errors.New("no calendars to check")

// Calendar lists upcoming video meetings from Google Calendar
type Calendar struct {
	service    *calendar.Service
	calendars  []string
	authorized map[string]struct{}
	domain     string
	limiter    *rate.Limiter
	logger     *zap.Logger
	now        func() time.Time
}

// NewCalendar authenticates with a service account impersonating cfg.ImpersonateUser
func NewCalendar(ctx context.Context, cfg config.CalendarConfig, logger *zap.Logger) (*Calendar, error) {
	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	jwtConfig, err := googleauth.JWTConfigFromJSON(data, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
	}
	jwtConfig.Subject = cfg.ImpersonateUser

	logger.Info("🔐 Authenticated calendar service account",
		zap.String("subject", cfg.ImpersonateUser),
		zap.Int("monitored", len(cfg.CalendarIDs)),
	)
	return NewCalendarWithClient(ctx, jwtConfig.Client(ctx), cfg, logger)
}

// NewCalendarWithClient builds a Calendar over an already authorized client
func NewCalendarWithClient(ctx context.Context, client *http.Client, cfg config.CalendarConfig, logger *zap.Logger) (*Calendar, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if cfg.APIBaseURL != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimRight(cfg.APIBaseURL, "/")+"/"))
	}
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	authorized := make(map[string]struct{}, len(cfg.AuthorizedUsers))
	for _, u := range cfg.AuthorizedUsers {
		if u = strings.ToLower(strings.TrimSpace(u)); u != "" {
			authorized[u] = struct{}{}
		}
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	return &Calendar{
		service:    service,
		calendars:  cfg.CalendarIDs,
		authorized: authorized,
		domain:     strings.ToLower(strings.TrimPrefix(cfg.WorkspaceDomain, "@")),
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
		now:        time.Now,
	}, nil
}

// FetchUpcoming implements ports.CalendarSource. A failing calendar is
// skipped; an error is returned only when every calendar failed.
func (c *Calendar) FetchUpcoming(ctx context.Context, window time.Duration) ([]entities.Meeting, error) {
	from := c.now().UTC()
	to := from.Add(window)

	calendars := c.calendarIDs(ctx)
	if len(calendars) == 0 {
		return nil, ErrNoCalendars
	}

	seen := make(map[string]struct{})
	var meetings []entities.Meeting
	var errs []error
	for _, calID := range calendars {
		events, err := c.listEvents(ctx, calID, from, to)
		if err != nil {
			c.logger.Error("❌ Failed to list calendar events",
				zap.String("calendar_id", calID),
				zap.Int("status", statusCode(err)),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("calendar %s: %w", calID, err))
			continue
		}

		for _, ev := range events {
			m, ok := c.toMeeting(calID, ev)
			if !ok {
				continue
			}
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			meetings = append(meetings, m)
		}
	}

	if len(errs) == len(calendars) {
		return nil, errors.Join(errs...)
	}

	sort.SliceStable(meetings, func(i, j int) bool {
		return meetings[i].StartTime.Before(meetings[j].StartTime)
	})
	c.logger.Debug("📅 Calendar scan complete",
		zap.Int("calendars", len(calendars)),
		zap.Int("failed", len(errs)),
		zap.Int("meetings", len(meetings)),
	)
	return meetings, nil
}

// calendarIDs merges the account's calendar list with the configured calendars
func (c *Calendar) calendarIDs(ctx context.Context) []string {
	ids := make([]string, 0, len(c.calendars))
	seen := make(map[string]struct{})
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	listed, err := c.listCalendars(ctx)
	if err != nil {
		c.logger.Warn("⚠️ Failed to load calendar list", zap.Error(err))
	}
	for _, id := range listed {
		add(id)
	}
	for _, id := range c.calendars {
		add(id)
	}
	return ids
}

func (c *Calendar) listCalendars(ctx context.Context) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return ids, err
		}
		call := c.service.CalendarList.List().Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		page, err := call.Do()
		if err != nil {
			return ids, err
		}
		for _, item := range page.Items {
			ids = append(ids, item.Id)
		}
		if page.NextPageToken == "" {
			return ids, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *Calendar) listEvents(ctx context.Context, calendarID string, from, to time.Time) ([]*calendar.Event, error) {
	var events []*calendar.Event
	pageToken := ""
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		call := c.service.Events.List(calendarID).
			TimeMin(from.Format(time.RFC3339)).
			TimeMax(to.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		page, err := call.Do()
		if err != nil {
			return nil, err
		}
		events = append(events, page.Items...)
		if page.NextPageToken == "" {
			return events, nil
		}
		pageToken = page.NextPageToken
	}
}

// statusCode extracts the HTTP status of an API error, 0 otherwise
func statusCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

// toMeeting keeps timed, non-cancelled events with a video entry point
// whose organizer is authorized
func (c *Calendar) toMeeting(calendarID string, ev *calendar.Event) (entities.Meeting, bool) {
	if ev == nil || ev.Status == "cancelled" || ev.Start == nil || ev.Start.DateTime == "" {
		return entities.Meeting{}, false
	}
	link := videoLink(ev)
	if link == "" {
		return entities.Meeting{}, false
	}
	organizer := ""
	if ev.Organizer != nil {
		organizer = ev.Organizer.Email
	}
	if !c.organizerAllowed(organizer) {
		c.logger.Debug("⏭️ Skipping event from unauthorized organizer",
			zap.String("event_id", ev.Id),
			zap.String("organizer", organizer),
		)
		return entities.Meeting{}, false
	}
	start, err := time.Parse(time.RFC3339, ev.Start.DateTime)
	if err != nil {
		c.logger.Warn("⚠️ Skipping event with bad start time",
			zap.String("event_id", ev.Id),
			zap.String("start", ev.Start.DateTime),
		)
		return entities.Meeting{}, false
	}

	return entities.Meeting{
		ID:         ev.Id,
		Title:      ev.Summary,
		Organizer:  organizer,
		JoinURL:    link,
		StartTime:  start,
		CalendarID: calendarID,
	}, true
}

func videoLink(ev *calendar.Event) string {
	if ev.ConferenceData != nil && ev.ConferenceData.ConferenceId != "" {
		for _, ep := range ev.ConferenceData.EntryPoints {
			if ep != nil && ep.EntryPointType == "video" && ep.Uri != "" {
				return ep.Uri
			}
		}
	}
	return ev.HangoutLink
}

func (c *Calendar) organizerAllowed(email string) bool {
	if len(c.authorized) == 0 && c.domain == "" {
		return true
	}
	email = strings.ToLower(email)
	if _, ok := c.authorized[email]; ok {
		return true
	}
	return c.domain != "" && strings.HasSuffix(email, "@"+c.domain)
}
