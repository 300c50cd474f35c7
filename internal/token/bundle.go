package token

import (
	"time"

	"golang.org/x/oauth2"
)

// TypeBearer is the only token type Google issues.
const TypeBearer = "Bearer"

// Bundle is the credential set stored for a session.
type Bundle struct {
	AccessToken   string
	RefreshToken  string
	ExpiresAt     time.Time
	GrantedScopes ScopeSet
	TokenType     string
}

// Expired reports whether the access token can no longer be used at now.
// A bundle expiring exactly at now is expired.
func (b *Bundle) Expired(now time.Time) bool {
	return !b.ExpiresAt.After(now)
}

// CanRefresh reports whether the bundle carries a refresh token.
func (b *Bundle) CanRefresh() bool {
	return b.RefreshToken != ""
}

// Clone returns a deep copy of b.
func (b *Bundle) Clone() *Bundle {
	c := *b
	c.GrantedScopes = NewScopeSet().Union(b.GrantedScopes)
	return &c
}

// OAuth2 converts the bundle to an oauth2.Token for use with Google API clients.
func (b *Bundle) OAuth2() *oauth2.Token {
	tokenType := b.TokenType
	if tokenType == "" {
		tokenType = TypeBearer
	}
	return &oauth2.Token{
		AccessToken:  b.AccessToken,
		RefreshToken: b.RefreshToken,
		TokenType:    tokenType,
		Expiry:       b.ExpiresAt,
	}
}

// FromOAuth2 builds a bundle from a token endpoint response. The granted
// scopes come from the response's scope field; a missing field yields an
// empty set.
func FromOAuth2(t *oauth2.Token) *Bundle {
	b := &Bundle{
		AccessToken:   t.AccessToken,
		RefreshToken:  t.RefreshToken,
		ExpiresAt:     t.Expiry,
		TokenType:     t.TokenType,
		GrantedScopes: NewScopeSet(),
	}
	if b.TokenType == "" {
		b.TokenType = TypeBearer
	}
	if raw, ok := t.Extra("scope").(string); ok {
		b.GrantedScopes = ParseScopes(raw)
	}
	return b
}
