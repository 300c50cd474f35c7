// Package gmail reads and sends mail through the Gmail API on behalf of one
// session.
//
// A Client is built per request from the access token the access gate
// returned; it never refreshes tokens itself. An HTTP 401 or 403 from Gmail
// is returned wrapping google.ErrConsentRequired so the caller can send the
// user back to the consent screen.
//
//	c, err := gmail.NewClient(ctx, decision.AccessToken, gmail.Options{})
//	emails, err := c.Recent(ctx)
//
// Recent lists the primary inbox tab. Search accepts free text plus a date
// range and an attachment filter. Both return at most ten messages with their
// plain text and HTML bodies extracted from nested multipart payloads.
package gmail
