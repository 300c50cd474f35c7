package token

import (
	"sort"
	"strings"
)

// ScopeSet is a set of OAuth scope URIs.
type ScopeSet map[string]struct{}

// NewScopeSet builds a set from the given scopes, ignoring empty strings.
func NewScopeSet(scopes ...string) ScopeSet {
	s := make(ScopeSet, len(scopes))
	for _, scope := range scopes {
		if scope = strings.TrimSpace(scope); scope != "" {
			s[scope] = struct{}{}
		}
	}
	return s
}

// ParseScopes parses a space-delimited scope string as returned by the token endpoint.
func ParseScopes(raw string) ScopeSet {
	return NewScopeSet(strings.Fields(raw)...)
}

// Has reports whether scope is in the set.
func (s ScopeSet) Has(scope string) bool {
	_, ok := s[scope]
	return ok
}

// Union returns a new set with the scopes of both sets.
func (s ScopeSet) Union(other ScopeSet) ScopeSet {
	out := make(ScopeSet, len(s)+len(other))
	for k := range s {
		out[k] = struct{}{}
	}
	for k := range other {
		out[k] = struct{}{}
	}
	return out
}

// Minus returns the scopes of s that are not in other.
func (s ScopeSet) Minus(other ScopeSet) ScopeSet {
	out := make(ScopeSet)
	for k := range s {
		if !other.Has(k) {
			out[k] = struct{}{}
		}
	}
	return out
}

// Contains reports whether every scope of other is in s.
func (s ScopeSet) Contains(other ScopeSet) bool {
	for k := range other {
		if !s.Has(k) {
			return false
		}
	}
	return true
}

// Sorted returns the scopes in lexical order.
func (s ScopeSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// String returns the space-delimited, sorted form used on the wire.
func (s ScopeSet) String() string {
	return strings.Join(s.Sorted(), " ")
}
