package google

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/teemow/mailcal/internal/logging"
)

// Revoker revokes tokens at Google's revocation endpoint.
type Revoker struct {
	url  string
	opts clientOptions
}

// NewRevoker returns a Revoker for cfg.
func NewRevoker(cfg AuthConfig, opts ...Option) *Revoker {
	return &Revoker{url: cfg.revokeURL(), opts: newClientOptions(opts)}
}

// Revoke revokes tok. Revoking a refresh token also invalidates the access
// tokens issued from it. An empty token is a no-op.
func (r *Revoker) Revoke(ctx context.Context, tok string) error {
	if tok == "" {
		return nil
	}

	form := url.Values{"token": {tok}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.opts.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("revoke returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	r.opts.logger.Debug("token revoked", "token", logging.SanitizeToken(tok))
	return nil
}
