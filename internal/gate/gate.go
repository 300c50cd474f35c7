package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/teemow/mailcal/internal/google"
	"github.com/teemow/mailcal/internal/instrumentation"
	"github.com/teemow/mailcal/internal/logging"
	"github.com/teemow/mailcal/internal/token"
	"github.com/teemow/mailcal/internal/tokenstore"
)

// refreshTimeout bounds a refresh shared by several waiting requests.
const refreshTimeout = 30 * time.Second

// DefaultStartURL is the consent start endpoint redirects point at.
const DefaultStartURL = "/auth/start"

// Refresher performs the refresh_token grant.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*token.Bundle, error)
}

// Config wires a Gate.
type Config struct {
	Store     tokenstore.Store
	Catalog   *google.ScopeCatalog
	Refresher Refresher

	// StartURL is the consent start endpoint. It defaults to DefaultStartURL.
	// The endpoint issues the CSRF state and redirects to Google.
	StartURL string
	// Locker is optional and serializes refreshes across processes.
	Locker tokenstore.Locker

	Clock   func() time.Time
	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
}

// Gate is the access gate. It is safe for concurrent use.
type Gate struct {
	store     tokenstore.Store
	catalog   *google.ScopeCatalog
	startURL  string
	refresher Refresher
	locker    tokenstore.Locker

	group singleflight.Group

	now     func() time.Time
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
}

// New validates cfg and returns a Gate.
func New(cfg Config) (*Gate, error) {
	if cfg.Store == nil {
		return nil, errors.New("gate: token store is required")
	}
	if cfg.Refresher == nil {
		return nil, errors.New("gate: refresher is required")
	}
	if cfg.Catalog == nil {
		cfg.Catalog = google.NewScopeCatalog()
	}
	if cfg.StartURL == "" {
		cfg.StartURL = DefaultStartURL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gate{
		store:     cfg.Store,
		catalog:   cfg.Catalog,
		startURL:  cfg.StartURL,
		refresher: cfg.Refresher,
		locker:    cfg.Locker,
		now:       cfg.Clock,
		logger:    logging.WithComponent(cfg.Logger, "gate"),
		metrics:   cfg.Metrics,
		audit:     cfg.Audit,
	}, nil
}

// Ensure returns a Decision for sessionID and caps.
//
// It returns a Ready decision when the stored grant covers caps and the
// access token is unexpired, refreshing it first if needed. It returns a
// redirect to the consent start endpoint when there is no usable grant.
// Repeated calls in the same state return the same decision. The only
// error it returns for provider or store trouble is *TransientAuthError.
func (g *Gate) Ensure(ctx context.Context, sessionID string, caps []google.Capability) (Decision, error) {
	ctx, span := instrumentation.StartSpan(ctx, "gate.ensure",
		attribute.String(instrumentation.SpanAttrSession, logging.SessionHash(sessionID)),
		attribute.StringSlice(instrumentation.SpanAttrCapabilities, capabilityNames(caps)))
	defer span.End()

	d, err := g.ensure(ctx, sessionID, caps)
	span.SetAttributes(attribute.String(instrumentation.SpanAttrDecision, decisionName(d, err)))
	if err != nil {
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	return d, err
}

func (g *Gate) ensure(ctx context.Context, sessionID string, caps []google.Capability) (Decision, error) {
	bundle, err := g.load(ctx, sessionID)
	switch {
	case errors.Is(err, tokenstore.ErrNotFound):
		return g.redirect(ctx, caps, false, ReasonNeedsAuth)
	case errors.Is(err, token.ErrMalformed):
		return g.redirect(ctx, caps, false, ReasonInvalidToken)
	case err != nil:
		return g.transient(ctx, "load", err)
	}

	if missing := g.catalog.Missing(caps, bundle.GrantedScopes); len(missing) > 0 {
		g.logger.Debug("grant lacks required scopes",
			logging.Session(sessionID),
			logging.Capabilities(caps),
			slog.Int("missing", len(missing)))
		return g.redirect(ctx, caps, true, ReasonNeedsScope)
	}

	if !bundle.Expired(g.now()) {
		g.metrics.RecordGateDecision(ctx, instrumentation.DecisionReady, "")
		return Decision{AccessToken: bundle.AccessToken}, nil
	}

	fresh, err := g.refresh(ctx, sessionID)
	if err != nil {
		return g.refreshFailed(ctx, sessionID, caps, err)
	}

	// the refreshed grant is authoritative
	if missing := g.catalog.Missing(caps, fresh.GrantedScopes); len(missing) > 0 {
		return g.redirect(ctx, caps, true, ReasonNeedsScope)
	}

	g.metrics.RecordGateDecision(ctx, instrumentation.DecisionRefreshed, "")
	return Decision{AccessToken: fresh.AccessToken, Refreshed: true}, nil
}

// ConsentRequired returns the forced redirect for a session whose token
// Google rejected although it looked valid locally (HTTP 401/403).
func (g *Gate) ConsentRequired(ctx context.Context, sessionID string, caps []google.Capability) (Decision, error) {
	g.audit.LogAuthEvent(ctx, instrumentation.AuthEventConsentRequired, sessionID,
		logging.Capabilities(caps))
	return g.redirect(ctx, caps, true, ReasonInvalidToken)
}

// load reads the stored bundle. A malformed record is deleted.
func (g *Gate) load(ctx context.Context, sessionID string) (*token.Bundle, error) {
	if sessionID == "" {
		return nil, tokenstore.ErrNotFound
	}
	bundle, err := g.store.Load(ctx, sessionID)
	if errors.Is(err, token.ErrMalformed) {
		g.logger.Warn("discarding malformed stored token", logging.Session(sessionID), logging.Err(err))
		g.audit.LogAuthEvent(ctx, instrumentation.AuthEventMalformedToken, sessionID)
		if derr := g.store.Delete(ctx, sessionID); derr != nil {
			g.logger.Warn("failed to delete malformed token", logging.Session(sessionID), logging.Err(derr))
		}
	}
	return bundle, err
}

// refresh runs one refresh per session at a time. Concurrent callers for the
// same session share the result.
func (g *Gate) refresh(ctx context.Context, sessionID string) (*token.Bundle, error) {
	// detached so that one caller going away does not fail the others
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
	defer cancel()

	v, err, shared := g.group.Do(sessionID, func() (any, error) {
		return g.refreshLocked(rctx, sessionID)
	})
	if shared {
		g.metrics.RecordRefreshCoalesced(ctx)
	}
	if err != nil {
		return nil, err
	}
	return v.(*token.Bundle).Clone(), nil
}

func (g *Gate) refreshLocked(ctx context.Context, sessionID string) (*token.Bundle, error) {
	if g.locker != nil {
		release, err := g.locker.Acquire(ctx, sessionID)
		if err != nil {
			return nil, &TransientAuthError{Op: "lock", Err: err}
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				g.logger.Warn("failed to release refresh lock", logging.Session(sessionID), logging.Err(err))
			}
		}()
	}

	// another holder may have refreshed while we waited
	current, err := g.load(ctx, sessionID)
	switch {
	case errors.Is(err, tokenstore.ErrNotFound), errors.Is(err, token.ErrMalformed):
		return nil, errSessionGone
	case err != nil:
		return nil, &TransientAuthError{Op: "reload", Err: err}
	}
	if !current.Expired(g.now()) {
		g.metrics.RecordRefreshCoalesced(ctx)
		return current, nil
	}

	if !current.CanRefresh() {
		return nil, &google.RefreshError{Kind: google.RefreshTokenInvalid, Err: errors.New("no refresh token stored")}
	}

	start := time.Now()
	fresh, err := g.refresher.Refresh(ctx, current.RefreshToken)
	if err != nil {
		return nil, err
	}

	if fresh.RefreshToken == "" {
		fresh.RefreshToken = current.RefreshToken
	}
	if len(fresh.GrantedScopes) == 0 {
		fresh.GrantedScopes = token.NewScopeSet().Union(current.GrantedScopes)
	}

	if err := g.store.Replace(ctx, sessionID, fresh); err != nil {
		return nil, &TransientAuthError{Op: "store", Err: err}
	}

	g.audit.LogAuthEvent(ctx, instrumentation.AuthEventRefreshed, sessionID,
		logging.Duration(time.Since(start)))
	g.logger.Debug("access token refreshed",
		logging.Session(sessionID),
		slog.Time("expires_at", fresh.ExpiresAt))
	return fresh, nil
}

func (g *Gate) refreshFailed(ctx context.Context, sessionID string, caps []google.Capability, err error) (Decision, error) {
	if errors.Is(err, errSessionGone) {
		return g.redirect(ctx, caps, false, ReasonNeedsAuth)
	}

	var rerr *google.RefreshError
	if errors.As(err, &rerr) && rerr.Kind == google.RefreshTokenInvalid {
		g.logger.Info("refresh rejected, consent required",
			logging.Session(sessionID), logging.Err(err))
		g.audit.LogAuthEvent(ctx, instrumentation.AuthEventRefreshRejected, sessionID, logging.Err(err))
		return g.redirect(ctx, caps, true, ReasonRefreshRejected)
	}

	var terr *TransientAuthError
	if errors.As(err, &terr) {
		return g.transient(ctx, terr.Op, terr.Err)
	}
	return g.transient(ctx, "refresh", err)
}

func (g *Gate) transient(ctx context.Context, op string, err error) (Decision, error) {
	g.logger.Warn("transient auth failure", slog.String("op", op), logging.Err(err))
	g.metrics.RecordGateDecision(ctx, instrumentation.DecisionTransient, "")
	return Decision{}, &TransientAuthError{Op: op, Err: err}
}

func (g *Gate) redirect(ctx context.Context, caps []google.Capability, force bool, reason Reason) (Decision, error) {
	g.metrics.RecordGateDecision(ctx, instrumentation.DecisionRedirect, string(reason))
	return Decision{
		RedirectURL:  StartURL(g.startURL, caps, force),
		Reason:       reason,
		ForceConsent: force,
	}, nil
}

// StartURL returns the link to the consent start endpoint at base for caps.
func StartURL(base string, caps []google.Capability, force bool) string {
	q := url.Values{"capabilities": {strings.Join(capabilityNames(caps), ",")}}
	if force {
		q.Set("force", "true")
	}
	return base + "?" + q.Encode()
}

func capabilityNames(caps []google.Capability) []string {
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = string(c)
	}
	return names
}

func decisionName(d Decision, err error) string {
	switch {
	case err != nil:
		return instrumentation.DecisionTransient
	case d.Refreshed:
		return instrumentation.DecisionRefreshed
	case d.Ready():
		return instrumentation.DecisionReady
	}
	return instrumentation.DecisionRedirect
}
