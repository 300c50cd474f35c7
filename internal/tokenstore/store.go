package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/teemow/mailcal/internal/token"
)

// ErrNotFound is returned by Load when a session has no stored bundle.
var ErrNotFound = errors.New("token not found")

// Store persists one token bundle per session id.
//
// Replace overwrites the whole bundle; there are no partial updates. Delete
// of an absent session is not an error.
type Store interface {
	Load(ctx context.Context, sessionID string) (*token.Bundle, error)
	Replace(ctx context.Context, sessionID string, bundle *token.Bundle) error
	Delete(ctx context.Context, sessionID string) error
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// encode marshals and seals a bundle.
func encode(sealer *Sealer, b *token.Bundle) ([]byte, error) {
	data, err := token.Marshal(b)
	if err != nil {
		return nil, err
	}
	return sealer.Seal(data)
}

// decode opens and unmarshals a stored record. Any failure wraps token.ErrMalformed.
func decode(sealer *Sealer, data []byte) (*token.Bundle, error) {
	plain, err := sealer.Open(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", token.ErrMalformed, err)
	}
	return token.Unmarshal(plain)
}

func validSessionID(sessionID string) error {
	if sessionID == "" {
		return errors.New("session id cannot be empty")
	}
	return nil
}
