// Package google implements the client side of Google's OAuth2 flow for
// mailcal.
//
// It maps application capabilities to OAuth scopes (ScopeCatalog), builds
// consent URLs (AuthURLBuilder), exchanges authorization codes (Exchanger),
// refreshes access tokens (Refresher) and revokes grants (Revoker). Every
// component takes an explicit AuthConfig; there is no package-level client.
//
// Components return typed errors (ExchangeError, RefreshError,
// ConfigurationError) and never decide on redirects themselves.
package google
