package gate

// Reason explains why a redirect to the consent screen is required.
// The values are the status strings of /auth/refresh.
type Reason string

// Redirect reasons.
const (
	// ReasonNeedsAuth: no token is stored for the session.
	ReasonNeedsAuth Reason = "needs_auth"
	// ReasonInvalidToken: the stored token was unreadable or Google rejected it.
	ReasonInvalidToken Reason = "invalid_token"
	// ReasonNeedsScope: the grant lacks a scope the capabilities require.
	ReasonNeedsScope Reason = "needs_scope"
	// ReasonRefreshRejected: the refresh token is missing, expired or revoked.
	ReasonRefreshRejected Reason = "refresh_rejected"
)

// Decision is the outcome of Gate.Ensure: either a usable access token or a
// consent URL.
type Decision struct {
	AccessToken string

	RedirectURL string
	Reason      Reason
	// ForceConsent is set when the redirect URL carries prompt=consent.
	ForceConsent bool

	// Refreshed is set when the token was refreshed during this call.
	Refreshed bool
}

// Ready reports whether the caller can proceed with AccessToken.
func (d Decision) Ready() bool {
	return d.RedirectURL == "" && d.AccessToken != ""
}
