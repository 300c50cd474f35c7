package google

import (
	"fmt"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultRevokeURL is Google's token revocation endpoint.
const DefaultRevokeURL = "https://oauth2.googleapis.com/revoke"

// AuthConfig holds the OAuth client registration.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Endpoint overrides Google's endpoints. Zero means google.Endpoint.
	Endpoint oauth2.Endpoint

	// RevokeURL overrides DefaultRevokeURL.
	RevokeURL string
}

// ConfigurationError reports a missing or invalid OAuth client setting.
// It is fatal: no capability works until the configuration is fixed.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("oauth configuration: %s %s", e.Field, e.Reason)
}

// Validate checks that the client registration is complete.
func (c AuthConfig) Validate() error {
	if c.ClientID == "" {
		return &ConfigurationError{Field: "client id", Reason: "is required"}
	}
	if c.ClientSecret == "" {
		return &ConfigurationError{Field: "client secret", Reason: "is required"}
	}
	if c.RedirectURL == "" {
		return &ConfigurationError{Field: "redirect url", Reason: "is required"}
	}
	u, err := url.Parse(c.RedirectURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigurationError{Field: "redirect url", Reason: "must be an absolute URL"}
	}
	return nil
}

func (c AuthConfig) oauth2Config() *oauth2.Config {
	endpoint := c.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Endpoint:     endpoint,
	}
}

func (c AuthConfig) revokeURL() string {
	if c.RevokeURL != "" {
		return c.RevokeURL
	}
	return DefaultRevokeURL
}
