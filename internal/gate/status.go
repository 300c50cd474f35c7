package gate

import (
	"context"
	"errors"
	"time"

	"github.com/teemow/mailcal/internal/google"
	"github.com/teemow/mailcal/internal/token"
	"github.com/teemow/mailcal/internal/tokenstore"
)

// State is the authorization state of a session for a set of capabilities.
type State string

// Session states.
const (
	StateUnauthenticated   State = "unauthenticated"
	StateValid             State = "valid"
	StateExpired           State = "expired"
	StateScopeInsufficient State = "scope_insufficient"
)

// Status is the derived, never stored, view of a session's grant.
type Status struct {
	State State
	// Missing lists the requested capabilities the grant does not cover.
	Missing []google.Capability
	// Connected is set when a bundle is stored and is either unexpired or
	// refreshable.
	Connected bool
	// Capabilities reports, for every known capability, whether the grant covers it.
	Capabilities map[google.Capability]bool
}

// Evaluate derives the Status of bundle for caps at now. bundle may be nil.
func Evaluate(catalog *google.ScopeCatalog, bundle *token.Bundle, caps []google.Capability, now time.Time) Status {
	st := Status{Capabilities: make(map[google.Capability]bool)}
	for _, c := range google.AllCapabilities() {
		st.Capabilities[c] = false
	}
	if bundle == nil {
		st.State = StateUnauthenticated
		st.Missing = append(st.Missing, caps...)
		return st
	}

	st.Capabilities = catalog.Satisfied(bundle.GrantedScopes)
	for _, c := range caps {
		if !st.Capabilities[c] {
			st.Missing = append(st.Missing, c)
		}
	}

	expired := bundle.Expired(now)
	st.Connected = !expired || bundle.CanRefresh()
	switch {
	case len(st.Missing) > 0:
		st.State = StateScopeInsufficient
	case expired:
		st.State = StateExpired
	default:
		st.State = StateValid
	}
	return st
}

// Inspect returns the Status of sessionID without refreshing or redirecting.
// A malformed stored token is discarded and reported as unauthenticated.
func (g *Gate) Inspect(ctx context.Context, sessionID string, caps []google.Capability) (Status, error) {
	bundle, err := g.load(ctx, sessionID)
	switch {
	case errors.Is(err, tokenstore.ErrNotFound), errors.Is(err, token.ErrMalformed):
		bundle = nil
	case err != nil:
		return Status{}, &TransientAuthError{Op: "load", Err: err}
	}
	return Evaluate(g.catalog, bundle, caps, g.now()), nil
}
