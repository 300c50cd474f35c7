package google

import (
	"context"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/teemow/mailcal/internal/token"
)

// APIClientOptions returns the client options for calling a Google API with
// an access token handed out by the access gate. The token is never
// refreshed here; refresh is the gate's job.
func APIClientOptions(ctx context.Context, accessToken string, extra ...option.ClientOption) []option.ClientOption {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: token.TypeBearer})
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, src))}
	return append(opts, extra...)
}
