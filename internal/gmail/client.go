package gmail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/mailcal/internal/google"
	"github.com/teemow/mailcal/internal/instrumentation"
	"github.com/teemow/mailcal/internal/logging"
)

const (
	// primaryInboxQuery keeps the primary inbox tab only.
	primaryInboxQuery = "in:inbox -in:spam -category:promotions -category:updates -category:social -category:forums"
	// pageSize is the number of messages returned by Recent and Search.
	pageSize = 10
	// fetchConcurrency bounds parallel messages.get calls.
	fetchConcurrency = 5
)

// Client wraps the Gmail Users service for one access token.
type Client struct {
	svc     *gmail.UsersService
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

// NewClient returns a Gmail client that authenticates with accessToken.
func NewClient(ctx context.Context, accessToken string, opts Options) (*Client, error) {
	svc, err := gmail.NewService(ctx, google.APIClientOptions(ctx, accessToken, opts.ClientOptions...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		svc:     svc.Users,
		metrics: opts.Metrics,
		logger:  logging.WithComponent(logger, "gmail"),
	}, nil
}

// Recent returns up to ten messages from the primary inbox, newest first.
func (c *Client) Recent(ctx context.Context) ([]Email, error) {
	return c.list(ctx, instrumentation.OperationList, primaryInboxQuery)
}

// Search returns up to ten messages matching q.
func (c *Client) Search(ctx context.Context, q SearchQuery) ([]Email, error) {
	return c.list(ctx, instrumentation.OperationSearch, q.String())
}

func (c *Client) list(ctx context.Context, op, query string) (emails []Email, err error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, op)
	defer span.End()
	start := time.Now()
	defer func() {
		c.record(ctx, op, start, err)
		if err != nil {
			instrumentation.SetSpanError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
	}()

	res, err := c.svc.Messages.List("me").Q(query).MaxResults(pageSize).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", google.ClassifyAPIError(err))
	}
	if len(res.Messages) == 0 {
		return []Email{}, nil
	}

	emails = make([]Email, len(res.Messages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, m := range res.Messages {
		g.Go(func() error {
			full, err := c.svc.Messages.Get("me", m.Id).Format("full").Context(gctx).Do()
			if err != nil {
				return fmt.Errorf("failed to get message %s: %w", m.Id, google.ClassifyAPIError(err))
			}
			emails[i] = emailFromMessage(full)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debug("listed messages", logging.Operation(op), slog.Int("count", len(emails)))
	return emails, nil
}

// Send sends msg from the authenticated account and returns the message id.
func (c *Client) Send(ctx context.Context, msg *OutgoingMessage) (id string, err error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, instrumentation.OperationSend)
	defer span.End()
	start := time.Now()
	defer func() {
		c.record(ctx, instrumentation.OperationSend, start, err)
		if err != nil {
			instrumentation.SetSpanError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
	}()

	raw, err := msg.Raw()
	if err != nil {
		return "", err
	}
	sent, err := c.svc.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", google.ClassifyAPIError(err))
	}
	return sent.Id, nil
}

func (c *Client) record(ctx context.Context, op string, start time.Time, err error) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, op, status, time.Since(start))
}
