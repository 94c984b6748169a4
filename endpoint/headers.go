package endpoint

import (
	"net/http"
	"strconv"
	"strings"
)

// HeadersProcessor sets response headers suited to an RPC API and, when CORS
// is configured, answers cross-origin preflight requests.
//
// Defaults from NewAPIHeaders:
//   - Cache-Control: no-store
//   - X-Content-Type-Options: nosniff
//   - Content-Security-Policy: default-src 'none'; frame-ancestors 'none'
//   - Referrer-Policy: no-referrer
//   - Strict-Transport-Security: max-age=31536000 (TLS requests only)
type HeadersProcessor struct {
	// Header is set on every response.
	Header http.Header
	// HSTSMaxAge is the Strict-Transport-Security max-age in seconds. Zero
	// disables the header.
	HSTSMaxAge int
	// CORS configures cross-origin access. Nil disables CORS headers.
	CORS *CORSConfig
}

// CORSConfig configures Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	// AllowedOrigins lists origins allowed to call. "*" allows any origin
	// unless AllowCredentials is set.
	AllowedOrigins []string
	// AllowedHeaders defaults to Content-Type and Authorization.
	AllowedHeaders []string
	// AllowCredentials permits cookies and HTTP authentication.
	AllowCredentials bool
	// MaxAge is how long, in seconds, a preflight result may be cached.
	MaxAge int
}

// HeadersOption configures a HeadersProcessor.
type HeadersOption func(*HeadersProcessor)

// WithCORS enables CORS for the given configuration.
func WithCORS(c *CORSConfig) HeadersOption {
	return func(p *HeadersProcessor) {
		p.CORS = c
	}
}

// WithHSTS sets the Strict-Transport-Security max-age. Zero disables it.
func WithHSTS(maxAge int) HeadersOption {
	return func(p *HeadersProcessor) {
		p.HSTSMaxAge = maxAge
	}
}

// NewAPIHeaders creates a HeadersProcessor with defaults for RPC endpoints.
func NewAPIHeaders(opts ...HeadersOption) *HeadersProcessor {
	p := &HeadersProcessor{
		Header: http.Header{
			"Cache-Control":           {"no-store"},
			"X-Content-Type-Options":  {"nosniff"},
			"Content-Security-Policy": {"default-src 'none'; frame-ancestors 'none'"},
			"Referrer-Policy":         {"no-referrer"},
		},
		HSTSMaxAge: 31536000,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process implements Processor.
func (p *HeadersProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	h := w.Header()
	for k, vs := range p.Header {
		h[k] = append([]string(nil), vs...)
	}
	if p.HSTSMaxAge > 0 && r.TLS != nil {
		h.Set("Strict-Transport-Security", "max-age="+strconv.Itoa(p.HSTSMaxAge))
	}

	if p.CORS != nil {
		p.CORS.setHeaders(h, r)

		// Preflight: answer directly rather than reaching a POST-only endpoint.
		if r.Method == http.MethodOptions &&
			r.Header.Get("Origin") != "" &&
			r.Header.Get("Access-Control-Request-Method") != "" {
			return Error(http.StatusNoContent, "", nil)
		}
	}

	return next(w, r)
}

func (c *CORSConfig) setHeaders(h http.Header, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	h.Add("Vary", "Origin")

	allowed := ""
	for _, o := range c.AllowedOrigins {
		if o == "*" && !c.AllowCredentials {
			allowed = "*"
			break
		}
		if o == origin {
			allowed = origin
			break
		}
	}
	if allowed == "" {
		return
	}
	h.Set("Access-Control-Allow-Origin", allowed)
	if c.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}

	if r.Method == http.MethodOptions {
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		headers := c.AllowedHeaders
		if len(headers) == 0 {
			headers = []string{"Content-Type", "Authorization"}
		}
		h.Set("Access-Control-Allow-Headers", strings.Join(headers, ", "))
		if c.MaxAge > 0 {
			h.Set("Access-Control-Max-Age", strconv.Itoa(c.MaxAge))
		}
	}
}

var _ Processor = (*HeadersProcessor)(nil)
