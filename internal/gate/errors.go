package gate

import (
	"errors"
	"fmt"
)

// TransientAuthError reports a failure that says nothing about the validity
// of the stored grant: Google or the token store could not be reached. The
// caller should retry; nothing was discarded.
type TransientAuthError struct {
	Op  string
	Err error
}

func (e *TransientAuthError) Error() string {
	return fmt.Sprintf("transient auth failure during %s: %v", e.Op, e.Err)
}

func (e *TransientAuthError) Unwrap() error { return e.Err }

// Retryable is always true.
func (e *TransientAuthError) Retryable() bool { return true }

// IsTransient reports whether err is or wraps a *TransientAuthError.
func IsTransient(err error) bool {
	var t *TransientAuthError
	return errors.As(err, &t)
}

// errSessionGone means the bundle disappeared while a refresh was pending,
// typically because the user logged out.
var errSessionGone = errors.New("session token removed during refresh")
