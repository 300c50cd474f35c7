package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformed marks a stored record that cannot be turned back into a bundle.
// Callers treat it like an absent token.
var ErrMalformed = errors.New("malformed stored token")

// record is the persisted JSON shape of a Bundle.
type record struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiryDate   int64  `json:"expiry_date"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
}

// Marshal encodes a bundle as its JSON record.
func Marshal(b *Bundle) ([]byte, error) {
	if b == nil || b.AccessToken == "" {
		return nil, errors.New("token: cannot store a bundle without an access token")
	}
	tokenType := b.TokenType
	if tokenType == "" {
		tokenType = TypeBearer
	}
	return json.Marshal(record{
		AccessToken:  b.AccessToken,
		RefreshToken: b.RefreshToken,
		ExpiryDate:   b.ExpiresAt.UnixMilli(),
		Scope:        b.GrantedScopes.String(),
		TokenType:    tokenType,
	})
}

// Unmarshal decodes a JSON record. Invalid JSON, a missing access token or a
// missing expiry yield an error wrapping ErrMalformed.
func Unmarshal(data []byte) (*Bundle, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if r.AccessToken == "" {
		return nil, fmt.Errorf("%w: missing access_token", ErrMalformed)
	}
	if r.ExpiryDate <= 0 {
		return nil, fmt.Errorf("%w: missing expiry_date", ErrMalformed)
	}
	if r.TokenType == "" {
		r.TokenType = TypeBearer
	}
	return &Bundle{
		AccessToken:   r.AccessToken,
		RefreshToken:  r.RefreshToken,
		ExpiresAt:     time.UnixMilli(r.ExpiryDate),
		GrantedScopes: ParseScopes(r.Scope),
		TokenType:     r.TokenType,
	}, nil
}
