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

// Exchanger trades authorization codes for token bundles.
type Exchanger struct {
	config *oauth2.Config
	opts   clientOptions
}

// NewExchanger validates cfg and returns an Exchanger.
func NewExchanger(cfg AuthConfig, opts ...Option) (*Exchanger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Exchanger{config: cfg.oauth2Config(), opts: newClientOptions(opts)}, nil
}

// Exchange performs the authorization_code grant. The granted scopes of the
// returned bundle are those listed in the provider's response.
func (e *Exchanger) Exchange(ctx context.Context, code string) (*token.Bundle, error) {
	ctx, span := instrumentation.StartTokenSpan(ctx, "authorization_code")
	defer span.End()

	logger := logging.WithOperation(e.opts.logger, "oauth.exchange")

	if code == "" {
		err := &ExchangeError{Kind: ExchangeInvalidGrant, Err: errors.New("empty authorization code")}
		instrumentation.SetSpanError(span, err)
		return nil, err
	}

	tok, err := e.config.Exchange(e.opts.withHTTPClient(ctx), code)
	if err != nil {
		xerr := &ExchangeError{Kind: exchangeKind(classifyTokenError(err)), Err: err}
		e.opts.metrics.RecordOAuthExchange(ctx, string(xerr.Kind))
		instrumentation.SetSpanError(span, xerr)
		logger.Warn("authorization code exchange failed",
			slog.String("kind", string(xerr.Kind)),
			logging.Err(err))
		return nil, xerr
	}

	e.opts.normalizeExpiry(tok)
	bundle := token.FromOAuth2(tok)

	e.opts.metrics.RecordOAuthExchange(ctx, instrumentation.OAuthResultSuccess)
	instrumentation.SetSpanSuccess(span)
	logger.Debug("authorization code exchanged",
		slog.String("access_token", logging.SanitizeToken(bundle.AccessToken)),
		slog.Bool("refresh_token", bundle.CanRefresh()),
		slog.Int("scopes", len(bundle.GrantedScopes)))
	return bundle, nil
}

func exchangeKind(f tokenFailure) ExchangeErrorKind {
	switch f {
	case failureInvalidGrant:
		return ExchangeInvalidGrant
	case failureNetwork:
		return ExchangeNetworkFailure
	default:
		return ExchangeProviderError
	}
}
