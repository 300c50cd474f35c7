package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// ErrConsentRequired means the user has to go through the consent screen
// again: a scope is missing, the refresh token is gone, or Google rejected a
// token that looked valid locally.
var ErrConsentRequired = errors.New("consent required")

// ExchangeErrorKind classifies authorization code exchange failures.
type ExchangeErrorKind string

// Exchange failure kinds.
const (
	// ExchangeInvalidGrant: the code is expired, reused or malformed. Not retryable.
	ExchangeInvalidGrant ExchangeErrorKind = "invalid_grant"
	// ExchangeNetworkFailure: transport error or 5xx. Retryable.
	ExchangeNetworkFailure ExchangeErrorKind = "network_failure"
	// ExchangeProviderError: any other rejection or an unusable response. Not retryable.
	ExchangeProviderError ExchangeErrorKind = "provider_error"
)

// ExchangeError is returned by Exchanger.Exchange.
type ExchangeError struct {
	Kind ExchangeErrorKind
	Err  error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("code exchange failed (%s): %v", e.Kind, e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// Retryable reports whether repeating the exchange may succeed.
func (e *ExchangeError) Retryable() bool { return e.Kind == ExchangeNetworkFailure }

// RefreshErrorKind classifies refresh failures.
type RefreshErrorKind string

// Refresh failure kinds.
const (
	// RefreshTokenInvalid: revoked, expired or rejected refresh token. Re-consent required.
	RefreshTokenInvalid RefreshErrorKind = "refresh_token_invalid"
	// RefreshNetworkFailure: the provider could not be reached or answered 5xx. Retryable.
	RefreshNetworkFailure RefreshErrorKind = "network_failure"
)

// RefreshError is returned by Refresher.Refresh.
type RefreshError struct {
	Kind RefreshErrorKind
	Err  error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed (%s): %v", e.Kind, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrConsentRequired) match an invalid refresh token.
func (e *RefreshError) Is(target error) bool {
	return target == ErrConsentRequired && e.Kind == RefreshTokenInvalid
}

// tokenFailure is the classification of a token endpoint error.
type tokenFailure int

const (
	failureNetwork tokenFailure = iota
	failureInvalidGrant
	failureRejected
	failureUnknown
)

// classifyTokenError sorts an error from the oauth2 package.
func classifyTokenError(err error) tokenFailure {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		switch {
		case re.ErrorCode == "invalid_grant":
			return failureInvalidGrant
		case status >= http.StatusInternalServerError || status == http.StatusTooManyRequests:
			return failureNetwork
		default:
			return failureRejected
		}
	}

	var urlErr *url.Error
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return failureNetwork
	case errors.As(err, &urlErr), errors.As(err, &netErr):
		return failureNetwork
	}
	return failureUnknown
}

// quotaReasons are googleapi error reasons for which a 403 means quota, not
// a withdrawn permission.
var quotaReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"dailyLimitExceeded":    true,
	"quotaExceeded":         true,
}

// ClassifyAPIError wraps Google API errors that mean the user's grant is no
// longer accepted (401, or 403 that is not a quota error) with
// ErrConsentRequired. Other errors are returned unchanged.
func ClassifyAPIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Code {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", ErrConsentRequired, err)
	case http.StatusForbidden:
		for _, item := range apiErr.Errors {
			if quotaReasons[item.Reason] {
				return err
			}
		}
		return fmt.Errorf("%w: %w", ErrConsentRequired, err)
	}
	return err
}
