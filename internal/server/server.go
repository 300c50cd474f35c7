package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/teemow/mailcal/internal/instrumentation"
	"github.com/teemow/mailcal/internal/logging"
	"github.com/teemow/mailcal/internal/oauthstate"
	"github.com/teemow/mailcal/internal/registry"
	"github.com/teemow/mailcal/internal/tokenstore"
)

// Options wires a Server.
type Options struct {
	Context   *ServerContext
	Sessions  *SessionManager
	Store     tokenstore.Store
	States    oauthstate.Store
	URLs      URLBuilder
	Exchanger Exchanger
	// Revoker is optional. Without it logout only drops the stored token.
	Revoker  Revoker
	Registry *registry.Registry

	// RateLimiter is optional and guards the /auth endpoints.
	RateLimiter *RateLimiter
	// Health is optional. A checker without dependency checks is used when nil.
	Health *HealthChecker
	// MCP is mounted at /mcp when set.
	MCP http.Handler

	// AppURL is where the OAuth callback sends the browser back to.
	AppURL string
	// HTTPS enables HSTS. Cookies follow Sessions.
	HTTPS bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	TLSCertFile  string
	TLSKeyFile   string
}

// Server is the HTTP front end: the OAuth endpoints, the JSON API for the
// dashboard, the server registry and the MCP endpoint.
type Server struct {
	sc        *ServerContext
	sessions  *SessionManager
	store     tokenstore.Store
	states    oauthstate.Store
	urls      URLBuilder
	exchanger Exchanger
	revoker   Revoker
	registry  *registry.Registry
	limiter   *RateLimiter
	health    *HealthChecker
	mcp       http.Handler

	appURL string
	opts   Options

	logger  *slog.Logger
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger

	handler http.Handler

	mu         sync.Mutex
	httpServer *http.Server
}

// New validates opts and returns a Server.
func New(opts Options) (*Server, error) {
	switch {
	case opts.Context == nil:
		return nil, errors.New("server context is required")
	case opts.Store == nil:
		return nil, errors.New("token store is required")
	case opts.States == nil:
		return nil, errors.New("oauth state store is required")
	case opts.URLs == nil:
		return nil, errors.New("consent URL builder is required")
	case opts.Exchanger == nil:
		return nil, errors.New("code exchanger is required")
	case opts.Registry == nil:
		return nil, errors.New("server registry is required")
	case opts.AppURL == "":
		return nil, errors.New("application URL is required")
	}
	if opts.Sessions == nil {
		opts.Sessions = NewSessionManager(opts.HTTPS)
	}
	if opts.Health == nil {
		opts.Health = NewHealthChecker(opts.Context)
	}

	s := &Server{
		sc:        opts.Context,
		sessions:  opts.Sessions,
		store:     opts.Store,
		states:    opts.States,
		urls:      opts.URLs,
		exchanger: opts.Exchanger,
		revoker:   opts.Revoker,
		registry:  opts.Registry,
		limiter:   opts.RateLimiter,
		health:    opts.Health,
		mcp:       opts.MCP,
		appURL:    strings.TrimSuffix(opts.AppURL, "/"),
		opts:      opts,
		logger:    logging.WithComponent(opts.Context.Logger(), "http"),
		metrics:   opts.Context.Metrics(),
		audit:     opts.Context.AuditLogger(),
	}
	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /auth/start", s.limit(s.handleAuthStart))
	mux.Handle("GET /auth/callback", s.limit(s.handleAuthCallback))
	mux.Handle("GET /auth/refresh", s.limit(s.handleAuthRefresh))
	mux.Handle("GET /auth/status", s.limit(s.handleAuthStatus))
	mux.Handle("POST /auth/logout", s.limit(s.handleAuthLogout))

	mux.HandleFunc("GET /api/gmail/recent", s.handleGmailRecent)
	mux.HandleFunc("POST /api/gmail/search", s.handleGmailSearch)
	mux.HandleFunc("POST /api/gmail/send", s.handleGmailSend)
	mux.HandleFunc("POST /api/gmail/summarize", s.handleGmailSummarize)

	mux.HandleFunc("GET /api/calendar/events", s.handleCalendarEvents)
	mux.HandleFunc("POST /api/calendar/events", s.handleCalendarCreate)
	mux.HandleFunc("GET /api/calendar/status", s.handleCalendarStatus)
	mux.HandleFunc("POST /api/calendar/meeting", s.handleCalendarMeeting)

	mux.HandleFunc("GET /api/servers", s.handleServersList)
	mux.HandleFunc("POST /api/servers", s.handleServersCreate)
	mux.HandleFunc("DELETE /api/servers/{id}", s.handleServersDelete)

	s.health.RegisterHealthEndpoints(mux)

	if s.mcp != nil {
		mux.Handle("/mcp", s.mcp)
	}

	return instrument(securityHeaders(mux, s.opts.HTTPS), s.metrics, s.logger)
}

func (s *Server) limit(h http.HandlerFunc) http.Handler {
	if s.limiter == nil {
		return h
	}
	return s.limiter.Middleware(h)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Health returns the health checker.
func (s *Server) Health() *HealthChecker {
	return s.health
}

// Start listens on addr and serves until Shutdown. It serves TLS when a
// certificate and key are configured. ready, when not nil, is closed once
// the listener is bound.
func (s *Server) Start(addr string, ready chan<- struct{}) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.opts.ReadTimeout,
		WriteTimeout:      s.opts.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.health.SetReady(true)
	s.logger.Info("http server listening",
		slog.String("addr", ln.Addr().String()),
		slog.Bool("tls", s.opts.TLSCertFile != ""))
	if ready != nil {
		close(ready)
	}

	if s.opts.TLSCertFile != "" && s.opts.TLSKeyFile != "" {
		err = srv.ServeTLS(ln, s.opts.TLSCertFile, s.opts.TLSKeyFile)
	} else {
		err = srv.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
