package google

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/teemow/mailcal/internal/instrumentation"
	"github.com/teemow/mailcal/internal/logging"
	"github.com/teemow/mailcal/internal/token"
)

// Refresher obtains new access tokens with a refresh token.
type Refresher struct {
	config *oauth2.Config
	opts   clientOptions
}

// NewRefresher validates cfg and returns a Refresher.
func NewRefresher(cfg AuthConfig, opts ...Option) (*Refresher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Refresher{config: cfg.oauth2Config(), opts: newClientOptions(opts)}, nil
}

// Refresh performs the refresh_token grant.
//
// When the provider does not reissue a refresh token the returned bundle
// carries refreshToken. When the response has no scope field the returned
// bundle's GrantedScopes is empty and the caller keeps the previous grant.
func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (*token.Bundle, error) {
	ctx, span := instrumentation.StartTokenSpan(ctx, "refresh_token")
	defer span.End()

	logger := logging.WithOperation(r.opts.logger, "oauth.refresh")

	if refreshToken == "" {
		err := &RefreshError{Kind: RefreshTokenInvalid, Err: errors.New("no refresh token available")}
		instrumentation.SetSpanError(span, err)
		return nil, err
	}

	src := r.config.TokenSource(r.opts.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		rerr := &RefreshError{Kind: refreshKind(classifyTokenError(err)), Err: err}
		result := instrumentation.OAuthResultNetworkFailure
		if rerr.Kind == RefreshTokenInvalid {
			result = instrumentation.OAuthResultInvalidGrant
		}
		r.opts.metrics.RecordOAuthRefresh(ctx, result)
		instrumentation.SetSpanError(span, rerr)
		logger.Warn("token refresh failed",
			slog.String("kind", string(rerr.Kind)),
			logging.Err(err))
		return nil, rerr
	}

	r.opts.normalizeExpiry(tok)
	bundle := token.FromOAuth2(tok)
	if bundle.RefreshToken == "" {
		bundle.RefreshToken = refreshToken
	}

	r.opts.metrics.RecordOAuthRefresh(ctx, instrumentation.OAuthResultSuccess)
	instrumentation.SetSpanSuccess(span)
	logger.Debug("access token refreshed",
		slog.String("access_token", logging.SanitizeToken(bundle.AccessToken)),
		slog.Bool("rotated", bundle.RefreshToken != refreshToken))
	return bundle, nil
}

// refreshKind maps a token endpoint failure to a refresh error kind.
// Anything that is not a definite rejection is treated as transient so that a
// still valid refresh token is never discarded.
func refreshKind(f tokenFailure) RefreshErrorKind {
	switch f {
	case failureInvalidGrant, failureRejected:
		return RefreshTokenInvalid
	default:
		return RefreshNetworkFailure
	}
}
