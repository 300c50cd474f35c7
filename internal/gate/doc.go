// Package gate decides, for one session and a set of capabilities, whether a
// request can proceed with the stored access token, must refresh it first, or
// must send the user to Google's consent screen.
//
// Gate.Ensure is the only place that makes that decision. HTTP handlers and
// MCP tools call it with the capabilities they need and act on the returned
// Decision:
//
//	d, err := g.Ensure(ctx, sessionID, []google.Capability{google.CalendarRead})
//	switch {
//	case err != nil:
//		// *TransientAuthError: retry later, nothing was discarded
//	case d.Ready():
//		// call Google with d.AccessToken
//	default:
//		// redirect the user to d.RedirectURL
//	}
//
// Refreshes of the same session are serialized in process with singleflight
// and, when a Locker is configured, across processes. After taking the lock
// the gate reloads the bundle and skips the refresh if another holder already
// replaced it.
package gate
