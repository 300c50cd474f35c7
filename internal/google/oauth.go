package google

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/mailcal/internal/instrumentation"
)

// DefaultAccessTokenTTL is assumed when the token endpoint omits expires_in.
const DefaultAccessTokenTTL = time.Hour

// tokenEndpointTimeout bounds one call to the token endpoint.
const tokenEndpointTimeout = 15 * time.Second

// Option configures the token endpoint clients.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// WithHTTPClient sets the HTTP client used for token endpoint calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithMetrics records token endpoint results.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(o *clientOptions) { o.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *clientOptions) { o.now = now }
}

func newClientOptions(opts []Option) clientOptions {
	o := clientOptions{
		httpClient: NewHTTPClient(),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewHTTPClient returns the HTTP client used for Google endpoints.
// HTTP/2 is disabled; long-lived HTTP/2 connections to Google have produced
// spurious stream errors.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: tokenEndpointTimeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			ForceAttemptHTTP2:   false,
			MaxIdleConns:        20,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// withHTTPClient injects the client into ctx the way the oauth2 package expects.
func (o clientOptions) withHTTPClient(ctx context.Context) context.Context {
	if o.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
}

// normalizeExpiry fills a missing expiry with DefaultAccessTokenTTL.
func (o clientOptions) normalizeExpiry(t *oauth2.Token) {
	if t.Expiry.IsZero() {
		t.Expiry = o.now().Add(DefaultAccessTokenTTL)
	}
}
