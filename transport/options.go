package transport

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mnehpets/typedrpc/seal"
	"go.uber.org/zap"
)

type options struct {
	codec    Codec
	header   http.Header
	username string
	password string
	sealer   *seal.Codec
	logger   *zap.Logger

	proxy   *url.URL
	timeout time.Duration

	// HTTP only.
	client *http.Client

	// WebSocket only.
	dialer *websocket.Dialer
}

// Option configures a transport.
type Option func(*options)

func newOptions(opts []Option) *options {
	o := &options{
		codec:  JSON,
		header: make(http.Header),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.codec == nil {
		o.codec = JSON
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// WithCodec selects the wire encoding. Defaults to JSON.
func WithCodec(c Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithHeader adds a header to every request (HTTP) or to the handshake
// (WebSocket).
func WithHeader(key, value string) Option {
	return func(o *options) {
		o.header.Add(key, value)
	}
}

// WithBasicAuth sends HTTP basic credentials.
func WithBasicAuth(username, password string) Option {
	return func(o *options) {
		o.username = username
		o.password = password
	}
}

// WithSealer seals request bodies and opens reply bodies.
func WithSealer(s *seal.Codec) Option {
	return func(o *options) {
		o.sealer = s
	}
}

// WithLogger configures the transport's logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithHTTPClient configures the client used for HTTP requests, e.g. one
// returned by the auth package. Defaults to a new client per transport.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithProxy routes HTTP requests and the WebSocket handshake through a
// proxy. For HTTP it replaces the client's transport when that is nil or an
// *http.Transport; a client wrapping another transport, such as one from the
// auth package, must be built on a proxied client instead.
func WithProxy(u *url.URL) Option {
	return func(o *options) {
		o.proxy = u
	}
}

// WithTimeout bounds each HTTP round trip and the WebSocket handshake. The
// request context may bound it further.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithDialer configures the WebSocket dialer. The dialer is copied; WithProxy
// and WithTimeout override its Proxy and HandshakeTimeout.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}
