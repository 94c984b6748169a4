package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Discover queries the issuer's OIDC discovery document and returns its
// OAuth2 endpoints.
func Discover(ctx context.Context, issuer string) (oauth2.Endpoint, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return oauth2.Endpoint{}, fmt.Errorf("failed to query provider %q: %w", issuer, err)
	}
	return provider.Endpoint(), nil
}

// VerifierOption configures token verification.
type VerifierOption func(*oidc.Config)

// WithSkipIssuerCheck disables issuer validation in the token verifier.
// Use this for providers that issue tokens with a per-tenant issuer (e.g.,
// Microsoft via the /common endpoint).
func WithSkipIssuerCheck() VerifierOption {
	return func(c *oidc.Config) {
		c.SkipIssuerCheck = true
	}
}

// WithSigningAlgs restricts the accepted signature algorithms. Defaults to
// those advertised by the issuer, or RS256 for a static key set.
func WithSigningAlgs(algs ...string) VerifierOption {
	return func(c *oidc.Config) {
		c.SupportedSigningAlgs = algs
	}
}

// verifierConfig builds the verifier configuration. An empty audience
// accepts tokens for any client.
func verifierConfig(audience string, opts []VerifierOption) *oidc.Config {
	c := &oidc.Config{ClientID: audience}
	if audience == "" {
		c.SkipClientIDCheck = true
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
