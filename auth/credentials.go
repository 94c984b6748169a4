package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Credentials identify a client to an OAuth2 token endpoint.
type Credentials struct {
	ClientID     string
	ClientSecret string
	// TokenURL is the token endpoint. When empty it is discovered from Issuer.
	TokenURL string
	Issuer   string
	Scopes   []string
	// EndpointParams are sent with each token request, e.g. "audience".
	EndpointParams url.Values
}

// Config returns the client credentials configuration, discovering the token
// endpoint if needed.
func (c Credentials) Config(ctx context.Context) (*clientcredentials.Config, error) {
	tokenURL := c.TokenURL
	if tokenURL == "" {
		if c.Issuer == "" {
			return nil, errors.New("auth: credentials need a token URL or an issuer")
		}
		ep, err := Discover(ctx, c.Issuer)
		if err != nil {
			return nil, err
		}
		tokenURL = ep.TokenURL
	}
	return &clientcredentials.Config{
		ClientID:       c.ClientID,
		ClientSecret:   c.ClientSecret,
		TokenURL:       tokenURL,
		Scopes:         c.Scopes,
		EndpointParams: c.EndpointParams,
	}, nil
}

// ClientCredentials returns an HTTP client that authenticates each request
// with a token obtained by the client credentials grant. Tokens are cached
// and refreshed when they expire.
//
// ctx is used for discovery and for every later token request, so it should
// outlive the client.
func ClientCredentials(ctx context.Context, creds Credentials) (*http.Client, error) {
	conf, err := creds.Config(ctx)
	if err != nil {
		return nil, err
	}
	return conf.Client(ctx), nil
}

// NewClient returns an HTTP client that authenticates each request with a
// token from ts. Pass the result to transport.WithHTTPClient.
func NewClient(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	return oauth2.NewClient(ctx, ts)
}
