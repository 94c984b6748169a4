package auth

import (
	"context"
	"crypto"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/mnehpets/typedrpc/endpoint"
)

type tokenKey struct{}

// BearerVerifier checks "Authorization: Bearer" JWTs on incoming requests.
// It is an endpoint.Processor; pass it to server.WithProcessors.
type BearerVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewBearerVerifier verifies tokens against keys discovered from issuer.
// Tokens must name audience in "aud" unless audience is empty.
func NewBearerVerifier(ctx context.Context, issuer, audience string, opts ...VerifierOption) (*BearerVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider %q: %w", issuer, err)
	}
	return &BearerVerifier{verifier: provider.Verifier(verifierConfig(audience, opts))}, nil
}

// NewStaticBearerVerifier verifies tokens signed by one of keys.
func NewStaticBearerVerifier(issuer, audience string, keys []crypto.PublicKey, opts ...VerifierOption) *BearerVerifier {
	keySet := &oidc.StaticKeySet{PublicKeys: keys}
	return &BearerVerifier{verifier: oidc.NewVerifier(issuer, keySet, verifierConfig(audience, opts))}
}

// Verify parses and verifies a raw token.
func (v *BearerVerifier) Verify(ctx context.Context, raw string) (*oidc.IDToken, error) {
	return v.verifier.Verify(ctx, raw)
}

// Process implements endpoint.Processor. Requests without a valid token are
// rejected with 401; otherwise the verified token is added to the request
// context.
func (v *BearerVerifier) Process(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error {
	raw, ok := bearerToken(r)
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		return endpoint.Error(http.StatusUnauthorized, "missing bearer token", nil)
	}
	token, err := v.Verify(r.Context(), raw)
	if err != nil {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		return endpoint.Error(http.StatusUnauthorized, "invalid bearer token", err)
	}
	return next(w, r.WithContext(context.WithValue(r.Context(), tokenKey{}, token)))
}

// TokenFromContext returns the token verified by a BearerVerifier.
func TokenFromContext(ctx context.Context) (*oidc.IDToken, bool) {
	t, ok := ctx.Value(tokenKey{}).(*oidc.IDToken)
	return t, ok
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// VerifiedEmail returns the token's email claim if email_verified is true.
func VerifiedEmail(token *oidc.IDToken) (string, bool) {
	if token == nil {
		return "", false
	}
	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := token.Claims(&claims); err != nil || !claims.EmailVerified || claims.Email == "" {
		return "", false
	}
	return claims.Email, true
}
