package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/mailcal/internal/google"
	"github.com/teemow/mailcal/internal/instrumentation"
	"github.com/teemow/mailcal/internal/logging"
)

const (
	primaryCalendar = "primary"
	// upcomingDays is the window of Upcoming after today.
	upcomingDays = 7
	upcomingMax  = 10
)

// Client wraps the Google Calendar service for one access token.
type Client struct {
	svc     *calendar.Service
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// Options configures a Client.
type Options struct {
	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
	// ClientOptions are appended to the API client options (endpoint overrides in tests).
	ClientOptions []option.ClientOption
}

// NewClient returns a Calendar client that authenticates with accessToken.
func NewClient(ctx context.Context, accessToken string, opts Options) (*Client, error) {
	svc, err := calendar.NewService(ctx, google.APIClientOptions(ctx, accessToken, opts.ClientOptions...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{svc: svc, metrics: opts.Metrics, logger: logging.WithComponent(logger, "calendar")}, nil
}

// UpcomingWindow returns the range Upcoming lists: local midnight of now's
// day through the last millisecond of the seventh day after it.
func UpcomingWindow(now time.Time) (time.Time, time.Time) {
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	end := time.Date(y, m, d+upcomingDays, 23, 59, 59, int(999*time.Millisecond), now.Location())
	return start, end
}

// Upcoming lists up to ten events of the primary calendar in UpcomingWindow(now).
func (c *Client) Upcoming(ctx context.Context, now time.Time) (events []Event, err error) {
	ctx, done := c.begin(ctx, instrumentation.OperationList)
	defer func() { done(err) }()

	start, end := UpcomingWindow(now)
	res, err := c.svc.Events.List(primaryCalendar).
		TimeMin(start.Format(time.RFC3339Nano)).
		TimeMax(end.Format(time.RFC3339Nano)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(upcomingMax).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", google.ClassifyAPIError(err))
	}

	events = make([]Event, 0, len(res.Items))
	for _, item := range res.Items {
		events = append(events, toEvent(item))
	}
	return events, nil
}

// CreateEvent inserts an event into the primary calendar with default reminders.
func (c *Client) CreateEvent(ctx context.Context, input EventInput) (event *Event, err error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	ctx, done := c.begin(ctx, instrumentation.OperationCreate)
	defer func() { done(err) }()

	created, err := c.svc.Events.Insert(primaryCalendar, input.toAPI()).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", google.ClassifyAPIError(err))
	}
	e := toEvent(created)
	return &e, nil
}

// Status reports whether the primary calendar can be read with the token.
// A rejected token is reported as not connected, not as an error.
func (c *Client) Status(ctx context.Context) (connected bool, err error) {
	ctx, done := c.begin(ctx, instrumentation.OperationStatus)
	defer func() { done(err) }()

	if _, err := c.svc.CalendarList.Get(primaryCalendar).Context(ctx).Do(); err != nil {
		err = google.ClassifyAPIError(err)
		if errors.Is(err, google.ErrConsentRequired) {
			c.logger.Debug("calendar access rejected", logging.Err(err))
			return false, nil
		}
		return false, fmt.Errorf("failed to get primary calendar: %w", err)
	}
	return true, nil
}

// begin starts the span and returns the function that records the outcome.
func (c *Client) begin(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, op)
	start := time.Now()
	return ctx, func(err error) {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
			instrumentation.SetSpanError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar, op, status, time.Since(start))
		span.End()
	}
}
