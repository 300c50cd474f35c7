package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/api/option"

	"github.com/teemow/mailcal/internal/calendar"
	"github.com/teemow/mailcal/internal/gate"
	"github.com/teemow/mailcal/internal/gmail"
	"github.com/teemow/mailcal/internal/google"
	"github.com/teemow/mailcal/internal/instrumentation"
	"github.com/teemow/mailcal/internal/summarize"
)

// ContextConfig wires a ServerContext.
type ContextConfig struct {
	Gate       *gate.Gate
	Summarizer *summarize.Summarizer
	Meetings   calendar.MeetingProvider

	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
	Logger  *slog.Logger

	// ClientOptions are passed to every Google API client (endpoint overrides in tests).
	ClientOptions []option.ClientOption
	Clock         func() time.Time
}

// ServerContext holds the services shared by the HTTP handlers and the MCP
// tools. Google API clients are built per call from the session's token.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    ContextConfig

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a new server context
func NewServerContext(ctx context.Context, cfg ContextConfig) (*ServerContext, error) {
	if cfg.Gate == nil {
		return nil, errors.New("access gate is required")
	}
	if cfg.Summarizer == nil {
		s, err := summarize.New(ctx, summarize.Config{Metrics: cfg.Metrics, Logger: cfg.Logger})
		if err != nil {
			return nil, err
		}
		cfg.Summarizer = s
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{ctx: shutdownCtx, cancel: cancel, cfg: cfg}, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Gate returns the access gate.
func (sc *ServerContext) Gate() *gate.Gate { return sc.cfg.Gate }

// Summarizer returns the email summarizer.
func (sc *ServerContext) Summarizer() *summarize.Summarizer { return sc.cfg.Summarizer }

// Meetings returns the meeting provider, or nil when none is configured.
func (sc *ServerContext) Meetings() calendar.MeetingProvider { return sc.cfg.Meetings }

// Metrics returns the metrics recorder. It may be nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics { return sc.cfg.Metrics }

// AuditLogger returns the audit logger. It may be nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger { return sc.cfg.Audit }

// Logger returns the logger.
func (sc *ServerContext) Logger() *slog.Logger { return sc.cfg.Logger }

// Now returns the current time of the context's clock.
func (sc *ServerContext) Now() time.Time { return sc.cfg.Clock() }

// GmailClient returns a Gmail client authenticated with accessToken.
func (sc *ServerContext) GmailClient(ctx context.Context, accessToken string) (*gmail.Client, error) {
	return gmail.NewClient(ctx, accessToken, gmail.Options{
		Metrics:       sc.cfg.Metrics,
		Logger:        sc.cfg.Logger,
		ClientOptions: sc.cfg.ClientOptions,
	})
}

// CalendarClient returns a Calendar client authenticated with accessToken.
func (sc *ServerContext) CalendarClient(ctx context.Context, accessToken string) (*calendar.Client, error) {
	return calendar.NewClient(ctx, accessToken, calendar.Options{
		Metrics:       sc.cfg.Metrics,
		Logger:        sc.cfg.Logger,
		ClientOptions: sc.cfg.ClientOptions,
	})
}

// Call runs fn with an access token of sessionID that covers caps.
//
// When the session needs consent fn is not run and the returned Decision
// carries the redirect. When fn fails because Google rejected the token, the
// forced consent redirect is returned instead of the error. Transient gate
// failures are returned as *gate.TransientAuthError.
func (sc *ServerContext) Call(ctx context.Context, sessionID string, caps []google.Capability, fn func(ctx context.Context, accessToken string) error) (gate.Decision, error) {
	d, err := sc.cfg.Gate.Ensure(ctx, sessionID, caps)
	if err != nil || !d.Ready() {
		return d, err
	}
	if err := fn(ctx, d.AccessToken); err != nil {
		if errors.Is(err, google.ErrConsentRequired) {
			return sc.cfg.Gate.ConsentRequired(ctx, sessionID, caps)
		}
		return d, err
	}
	return d, nil
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
