// Package config loads client settings from .env files and the environment
// and assembles the matching transport stack.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Prefix is prepended to every environment key.
const Prefix = "TYPEDRPC_"

// Config holds client settings. Field comments name the key each is read
// from, without Prefix.
type Config struct {
	URL       string        // URL
	Transport string        // TRANSPORT: "http" or "ws"; derived from URL when empty
	Codec     string        // CODEC: "json" (default) or "cbor"
	Timeout   time.Duration // TIMEOUT, e.g. "10s"

	Username string // USERNAME
	Password string // PASSWORD
	Proxy    string // PROXY

	SealKeyID string // SEAL_KEY_ID
	SealKeys  string // SEAL_KEYS: "id:base64,id:base64"

	OIDCIssuer   string   // OIDC_ISSUER
	TokenURL     string   // TOKEN_URL
	ClientID     string   // CLIENT_ID
	ClientSecret string   // CLIENT_SECRET
	Scopes       []string // SCOPES, comma separated

	LogLevel string // LOG_LEVEL, default "info"
}

// Load reads the given .env files, or ".env" if it exists and none are
// given, and overlays the process environment. Variables already set in the
// environment win over file values.
func Load(files ...string) (*Config, error) {
	values := map[string]string{}
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			files = []string{".env"}
		}
	}
	if len(files) > 0 {
		var err error
		values, err = godotenv.Read(files...)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(k, Prefix) {
			values[k] = v
		}
	}
	return FromMap(values)
}

// FromMap parses settings from prefixed keys.
func FromMap(values map[string]string) (*Config, error) {
	get := func(key string) string {
		return strings.TrimSpace(values[Prefix+key])
	}

	c := &Config{
		URL:          get("URL"),
		Transport:    strings.ToLower(get("TRANSPORT")),
		Codec:        strings.ToLower(get("CODEC")),
		Username:     get("USERNAME"),
		Password:     values[Prefix+"PASSWORD"],
		Proxy:        get("PROXY"),
		SealKeyID:    get("SEAL_KEY_ID"),
		SealKeys:     get("SEAL_KEYS"),
		OIDCIssuer:   get("OIDC_ISSUER"),
		TokenURL:     get("TOKEN_URL"),
		ClientID:     get("CLIENT_ID"),
		ClientSecret: values[Prefix+"CLIENT_SECRET"],
		LogLevel:     strings.ToLower(get("LOG_LEVEL")),
	}

	if s := get("TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("config: %sTIMEOUT: %w", Prefix, err)
		}
		c.Timeout = d
	}
	for _, s := range strings.Split(get("SCOPES"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			c.Scopes = append(c.Scopes, s)
		}
	}

	if c.Transport == "" {
		c.Transport = "http"
		if strings.HasPrefix(c.URL, "ws://") || strings.HasPrefix(c.URL, "wss://") {
			c.Transport = "ws"
		}
	}
	if c.Codec == "" {
		c.Codec = "json"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks enumerated settings. It does not require URL, which a
// caller may supply later.
func (c *Config) Validate() error {
	var errs []error
	switch c.Transport {
	case "http", "ws":
	default:
		errs = append(errs, fmt.Errorf("config: unknown transport %q", c.Transport))
	}
	switch c.Codec {
	case "json", "cbor":
	default:
		errs = append(errs, fmt.Errorf("config: unknown codec %q", c.Codec))
	}
	if _, err := zap.ParseAtomicLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("config: log level: %w", err))
	}
	if c.ClientID != "" && c.TokenURL == "" && c.OIDCIssuer == "" {
		errs = append(errs, errors.New("config: CLIENT_ID needs TOKEN_URL or OIDC_ISSUER"))
	}
	return errors.Join(errs...)
}

// Logger builds a production logger at the configured level.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = level
	return zc.Build()
}
