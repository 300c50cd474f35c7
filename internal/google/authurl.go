package google

import (
	"golang.org/x/oauth2"
)

// AuthURLBuilder builds Google consent URLs.
type AuthURLBuilder struct {
	config  *oauth2.Config
	catalog *ScopeCatalog
}

// NewAuthURLBuilder validates cfg and returns a builder.
func NewAuthURLBuilder(cfg AuthConfig, catalog *ScopeCatalog) (*AuthURLBuilder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = NewScopeCatalog()
	}
	return &AuthURLBuilder{config: cfg.oauth2Config(), catalog: catalog}, nil
}

// Build returns the consent URL for caps.
//
// The URL always asks for offline access and sets include_granted_scopes so
// that a grant for new capabilities keeps the earlier ones. prompt=consent is
// added only when forceConsent is set.
func (b *AuthURLBuilder) Build(caps []Capability, forceConsent bool, state string) string {
	conf := *b.config
	conf.Scopes = b.catalog.ScopesFor(caps...).Sorted()

	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	}
	if forceConsent {
		opts = append(opts, oauth2.ApprovalForce)
	}
	return conf.AuthCodeURL(state, opts...)
}
