package google

import (
	calendar "google.golang.org/api/calendar/v3"
	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/mailcal/internal/token"
)

// GmailBaselineScopes are requested together whenever any Gmail capability is
// needed. They are never requested piecemeal.
var GmailBaselineScopes = []string{
	gmail.GmailReadonlyScope,
	gmail.GmailModifyScope,
	gmail.GmailComposeScope,
	gmail.GmailSendScope,
}

// ScopeCatalog maps capabilities to the OAuth scopes they require.
type ScopeCatalog struct {
	scopes map[Capability][]string
	// implied maps a broad scope to the narrower scopes a grant of it satisfies.
	implied map[string][]string
}

// NewScopeCatalog returns the catalog for Gmail and Google Calendar.
func NewScopeCatalog() *ScopeCatalog {
	return &ScopeCatalog{
		scopes: map[Capability][]string{
			GmailRead:     GmailBaselineScopes,
			GmailSend:     GmailBaselineScopes,
			CalendarRead:  {calendar.CalendarReadonlyScope},
			CalendarWrite: {calendar.CalendarEventsScope},
		},
		implied: map[string][]string{
			calendar.CalendarScope: {
				calendar.CalendarEventsScope,
				calendar.CalendarReadonlyScope,
				calendar.CalendarEventsReadonlyScope,
			},
			gmail.MailGoogleComScope: GmailBaselineScopes,
		},
	}
}

// ScopesFor returns the union of the scopes required by caps.
func (c *ScopeCatalog) ScopesFor(caps ...Capability) token.ScopeSet {
	out := token.NewScopeSet()
	for _, capability := range caps {
		for _, s := range c.scopes[capability] {
			out[s] = struct{}{}
		}
	}
	return out
}

// Effective expands granted with the narrower scopes implied by broad grants.
func (c *ScopeCatalog) Effective(granted token.ScopeSet) token.ScopeSet {
	out := token.NewScopeSet().Union(granted)
	for broad, narrower := range c.implied {
		if granted.Has(broad) {
			for _, s := range narrower {
				out[s] = struct{}{}
			}
		}
	}
	return out
}

// Missing returns the scopes required by caps that granted does not cover.
func (c *ScopeCatalog) Missing(caps []Capability, granted token.ScopeSet) token.ScopeSet {
	return c.ScopesFor(caps...).Minus(c.Effective(granted))
}

// Satisfied reports, for every capability, whether granted covers it.
func (c *ScopeCatalog) Satisfied(granted token.ScopeSet) map[Capability]bool {
	effective := c.Effective(granted)
	out := make(map[Capability]bool, len(c.scopes))
	for _, capability := range AllCapabilities() {
		out[capability] = effective.Contains(c.ScopesFor(capability))
	}
	return out
}
