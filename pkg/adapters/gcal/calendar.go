// Package gcal provides the calendar effects (get_calendar_events and
// create_calendar_event) backed by the Google Calendar API.
//
// Events created here carry the event page URL on the first line of their
// description; reads use it to recognise entities that are already scheduled.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/args"
	"github.com/aretw0/concierge/pkg/domain"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Config describes how to reach the calendar.
type Config struct {
	// CalendarID defaults to "primary".
	CalendarID string
	// CredentialsFile is a service account or authorized user JSON file.
	CredentialsFile string
	// Options are appended to the client options (endpoint overrides in tests).
	Options []option.ClientOption
}

// ReadArgs are the arguments of get_calendar_events.
type ReadArgs struct {
	StartTime time.Time `json:"start_time,omitempty" jsonschema:"description=Start of the range in RFC 3339 (UTC). Defaults to now."`
	EndTime   time.Time `json:"end_time,omitempty" jsonschema:"description=End of the range in RFC 3339 (UTC)."`
}

// CreateArgs are the arguments of create_calendar_event.
type CreateArgs struct {
	StartTime   time.Time `json:"start_time" validate:"required" jsonschema:"description=Event start time in RFC 3339 (UTC)."`
	EndTime     time.Time `json:"end_time" validate:"required,gtfield=StartTime" jsonschema:"description=Event end time in RFC 3339 (UTC)."`
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url,omitempty" validate:"omitempty,url" jsonschema:"description=The URL of the event page."`
	Location    string    `json:"location,omitempty"`
}

// Entry is the view of a calendar event returned to the model.
type Entry struct {
	URL         string `json:"url,omitempty"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
}

// Calendar serves the calendar capabilities.
type Calendar struct {
	service    func(ctx context.Context) (*calendar.Service, error)
	calendarID string
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures Calendar.
type Option func(*Calendar)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Calendar) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source used for default ranges.
func WithClock(now func() time.Time) Option {
	return func(c *Calendar) {
		c.now = now
	}
}

// New creates the calendar effects over a lazily created API service.
func New(cfg Config, opts ...Option) *Calendar {
	c := &Calendar{
		service:    Connect(cfg),
		calendarID: cfg.CalendarID,
		now:        time.Now,
		logger:     logging.NewNop(),
	}
	if c.calendarID == "" {
		c.calendarID = "primary"
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect returns a factory that builds the API service on first successful use.
func Connect(cfg Config) func(ctx context.Context) (*calendar.Service, error) {
	var (
		mu  sync.Mutex
		svc *calendar.Service
	)
	return func(ctx context.Context) (*calendar.Service, error) {
		mu.Lock()
		defer mu.Unlock()
		if svc != nil {
			return svc, nil
		}
		opts := []option.ClientOption{option.WithScopes(calendar.CalendarScope)}
		if cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		opts = append(opts, cfg.Options...)

		s, err := calendar.NewService(context.WithoutCancel(ctx), opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: calendar authentication failed: %v", domain.ErrServiceUnavailable, err)
		}
		svc = s
		return svc, nil
	}
}

// Read implements get_calendar_events.
func (c *Calendar) Read(ctx context.Context, req domain.Request) (domain.EffectResult, error) {
	var in ReadArgs
	if err := args.Decode(req.Args, &in); err != nil {
		return domain.Failed(err.Error()), nil
	}
	svc, err := c.service(ctx)
	if err != nil {
		return domain.EffectResult{}, err
	}

	start := in.StartTime
	if start.IsZero() {
		start = c.now()
	}
	call := svc.Events.List(c.calendarID).
		TimeMin(start.UTC().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)
	if !in.EndTime.IsZero() {
		call = call.TimeMax(in.EndTime.UTC().Format(time.RFC3339))
	}

	events, err := call.Do()
	if err != nil {
		return classify("list calendar events", err)
	}

	entries := make([]Entry, 0, len(events.Items))
	res := domain.EffectResult{}
	for _, ev := range events.Items {
		e := entryOf(ev)
		entries = append(entries, e)
		if e.URL != "" {
			res.Observations = append(res.Observations, domain.Observation{
				Key:       e.URL,
				Source:    domain.SourceCalendarRead,
				Scheduled: domain.Bool(true),
			})
		}
	}
	res.Payload = entries
	c.logger.Info("calendar read", "events", len(entries), "linked", len(res.Observations))
	return res, nil
}

// Create implements create_calendar_event.
func (c *Calendar) Create(ctx context.Context, req domain.Request) (domain.EffectResult, error) {
	var in CreateArgs
	if err := args.Decode(req.Args, &in); err != nil {
		return domain.Failed(err.Error()), nil
	}
	svc, err := c.service(ctx)
	if err != nil {
		return domain.EffectResult{}, err
	}

	description := in.Description
	if in.URL != "" {
		description = in.URL + "\n\n" + in.Description
	}
	created, err := svc.Events.Insert(c.calendarID, &calendar.Event{
		Summary:     in.Title,
		Description: description,
		Location:    in.Location,
		Start:       &calendar.EventDateTime{DateTime: in.StartTime.UTC().Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: in.EndTime.UTC().Format(time.RFC3339)},
	}).Context(ctx).Do()
	if err != nil {
		return classify("create calendar event", err)
	}

	entry := entryOf(created)
	entry.URL = in.URL
	res := domain.EffectResult{Payload: entry}
	if in.URL != "" {
		res.Observations = []domain.Observation{
			{Key: in.URL, Source: domain.SourceCalendarCreate, Scheduled: domain.Bool(true)},
		}
	}
	c.logger.Info("calendar event created", "title", in.Title, "url", in.URL)
	return res, nil
}

// LinkedURL returns the event page URL stored on the first description line.
func LinkedURL(description string) string {
	first, _, _ := strings.Cut(description, "\n")
	first = strings.TrimSpace(first)
	if strings.HasPrefix(first, "http://") || strings.HasPrefix(first, "https://") {
		return first
	}
	return ""
}

func entryOf(ev *calendar.Event) Entry {
	e := Entry{
		URL:         LinkedURL(ev.Description),
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
	}
	if ev.Start != nil {
		e.Start = firstNonEmpty(ev.Start.DateTime, ev.Start.Date)
	}
	if ev.End != nil {
		e.End = firstNonEmpty(ev.End.DateTime, ev.End.Date)
	}
	return e
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// classify turns API errors into recoverable results, except authentication
// failures which end the run.
func classify(op string, err error) (domain.EffectResult, error) {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return domain.EffectResult{}, fmt.Errorf("%w: %s: %v", domain.ErrServiceUnavailable, op, err)
		}
		return domain.Failed(fmt.Sprintf("%s: %s", op, apiErr.Message)), nil
	}
	return domain.EffectResult{}, fmt.Errorf("%w: %s: %v", domain.ErrServiceUnavailable, op, err)
}
