package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"golang.org/x/oauth2"
)

// DefaultTokenTTL is the lifetime of a minted token when Claims.TTL is zero.
const DefaultTokenTTL = 5 * time.Minute

// Claims describe the tokens minted by JWTSource.
type Claims struct {
	Issuer   string
	Subject  string
	Audience []string
	TTL      time.Duration
	// Extra holds private claims added to every token.
	Extra map[string]interface{}
}

type jwtSource struct {
	signer jose.Signer
	claims Claims
	now    func() time.Time
}

// JWTSource returns a token source that mints self-signed JWT bearer tokens.
// A token is reused until shortly before it expires.
func JWTSource(key jose.SigningKey, claims Claims) (oauth2.TokenSource, error) {
	signer, err := jose.NewSigner(key, (&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return nil, fmt.Errorf("auth: jwt signer: %w", err)
	}
	if claims.TTL <= 0 {
		claims.TTL = DefaultTokenTTL
	}
	return oauth2.ReuseTokenSource(nil, &jwtSource{signer: signer, claims: claims, now: time.Now}), nil
}

func (s *jwtSource) Token() (*oauth2.Token, error) {
	id := make([]byte, 16)
	if _, err := rand.Read(id); err != nil {
		return nil, err
	}

	now := s.now()
	expiry := now.Add(s.claims.TTL)
	std := jwt.Claims{
		ID:        hex.EncodeToString(id),
		Issuer:    s.claims.Issuer,
		Subject:   s.claims.Subject,
		Audience:  jwt.Audience(s.claims.Audience),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(expiry),
	}

	builder := jwt.Signed(s.signer).Claims(std)
	if len(s.claims.Extra) > 0 {
		builder = builder.Claims(s.claims.Extra)
	}
	raw, err := builder.Serialize()
	if err != nil {
		return nil, fmt.Errorf("auth: sign jwt: %w", err)
	}
	return &oauth2.Token{
		AccessToken: raw,
		TokenType:   "Bearer",
		Expiry:      expiry,
	}, nil
}
