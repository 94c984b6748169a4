package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/mnehpets/typedrpc/auth"
	"github.com/mnehpets/typedrpc/jsonrpc"
	"github.com/mnehpets/typedrpc/seal"
	"github.com/mnehpets/typedrpc/transport"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Transport is a transport that may hold a connection.
type Transport interface {
	jsonrpc.Transport
	io.Closer
}

type closer struct {
	jsonrpc.Transport
	close func() error
}

func (c closer) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

// NewTransport assembles the transport described by c. WebSocket transports
// are dialed before NewTransport returns. Calls are logged through logger,
// which may be nil.
func NewTransport(ctx context.Context, c *Config, logger *zap.Logger) (Transport, error) {
	if c.URL == "" {
		return nil, errors.New("config: no URL")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts, err := c.options(ctx)
	if err != nil {
		return nil, err
	}
	opts = append(opts, transport.WithLogger(logger))

	if c.ClientID != "" {
		if ctx, err = c.authContext(ctx); err != nil {
			return nil, err
		}
	}

	switch c.Transport {
	case "ws":
		if c.ClientID != "" {
			tok, err := c.bearerToken(ctx)
			if err != nil {
				return nil, err
			}
			opts = append(opts, transport.WithHeader("Authorization", "Bearer "+tok))
		}
		ws, err := transport.DialWebSocket(ctx, c.URL, opts...)
		if err != nil {
			return nil, err
		}
		return closer{Transport: transport.Logged(ws, logger), close: ws.Close}, nil
	default:
		if c.ClientID != "" {
			client, err := auth.ClientCredentials(ctx, c.credentials())
			if err != nil {
				return nil, err
			}
			opts = append(opts, transport.WithHTTPClient(client))
		}
		return closer{Transport: transport.Logged(transport.NewHTTP(c.URL, opts...), logger)}, nil
	}
}

// options returns the settings shared by both transports.
func (c *Config) options(ctx context.Context) ([]transport.Option, error) {
	var opts []transport.Option

	if c.Codec == "cbor" {
		opts = append(opts, transport.WithCodec(transport.CBOR))
	}
	if c.Username != "" {
		opts = append(opts, transport.WithBasicAuth(c.Username, c.Password))
	}
	if c.Timeout > 0 {
		opts = append(opts, transport.WithTimeout(c.Timeout))
	}
	if c.Proxy != "" {
		u, err := c.proxyURL()
		if err != nil {
			return nil, err
		}
		opts = append(opts, transport.WithProxy(u))
	}
	if c.SealKeys != "" {
		sealer, err := c.Sealer()
		if err != nil {
			return nil, err
		}
		opts = append(opts, transport.WithSealer(sealer))
	}
	return opts, nil
}

func (c *Config) proxyURL() (*url.URL, error) {
	u, err := url.Parse(c.Proxy)
	if err != nil {
		return nil, fmt.Errorf("config: proxy: %w", err)
	}
	return u, nil
}

// authContext returns ctx carrying the HTTP client used for discovery and
// token requests. The authenticated RPC client wraps the same base
// transport, so both honour Proxy.
func (c *Config) authContext(ctx context.Context) (context.Context, error) {
	if c.Proxy == "" {
		return ctx, nil
	}
	u, err := c.proxyURL()
	if err != nil {
		return nil, err
	}
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.Proxy = http.ProxyURL(u)
	return context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: base}), nil
}

// Sealer builds the seal codec from SEAL_KEYS. SEAL_KEY_ID may be omitted
// when there is exactly one key.
func (c *Config) Sealer() (*seal.Codec, error) {
	keys, err := seal.ParseKeys(c.SealKeys)
	if err != nil {
		return nil, fmt.Errorf("config: seal keys: %w", err)
	}
	keyID := c.SealKeyID
	if keyID == "" && len(keys) == 1 {
		for id := range keys {
			keyID = id
		}
	}
	return seal.New(keyID, keys)
}

func (c *Config) credentials() auth.Credentials {
	return auth.Credentials{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.TokenURL,
		Issuer:       c.OIDCIssuer,
		Scopes:       c.Scopes,
	}
}

// bearerToken fetches one token for the WebSocket handshake.
func (c *Config) bearerToken(ctx context.Context) (string, error) {
	conf, err := c.credentials().Config(ctx)
	if err != nil {
		return "", err
	}
	tok, err := conf.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("config: token: %w", err)
	}
	return tok.AccessToken, nil
}
