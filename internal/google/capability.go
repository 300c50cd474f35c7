package google

import (
	"fmt"
	"strings"
)

// Capability is a unit of access the application asks the user for.
type Capability string

// Supported capabilities.
const (
	GmailRead     Capability = "gmail.read"
	GmailSend     Capability = "gmail.send"
	CalendarRead  Capability = "calendar.read"
	CalendarWrite Capability = "calendar.write"
)

// AllCapabilities lists every capability in display order.
func AllCapabilities() []Capability {
	return []Capability{GmailRead, GmailSend, CalendarRead, CalendarWrite}
}

// capabilityAliases accepts the short names used by older UI links.
var capabilityAliases = map[string]Capability{
	"gmail":    GmailRead,
	"calendar": CalendarRead,
}

// Valid reports whether c is a known capability.
func (c Capability) Valid() bool {
	switch c {
	case GmailRead, GmailSend, CalendarRead, CalendarWrite:
		return true
	}
	return false
}

// ParseCapabilities parses a comma-separated capability list. Names are
// trimmed and lowercased, duplicates are dropped and order is preserved.
// An empty string yields an empty list.
func ParseCapabilities(csv string) ([]Capability, error) {
	var out []Capability
	seen := make(map[Capability]bool)
	for _, part := range strings.Split(csv, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		c := Capability(name)
		if alias, ok := capabilityAliases[name]; ok {
			c = alias
		}
		if !c.Valid() {
			return nil, fmt.Errorf("unknown capability %q", name)
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}
