package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mnehpets/typedrpc/jsonrpc"
	"go.uber.org/zap"
)

// maxReplyBytes bounds the reply body read from the peer.
const maxReplyBytes = 32 << 20

// StatusError is returned when the peer answers with an HTTP status other
// than 200 or 204.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := e.Body
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("transport: http status %d: %s", e.StatusCode, msg)
}

// HTTP posts each batch to a URL.
//
// HTTP is safe for concurrent use.
type HTTP struct {
	url    string
	client *http.Client
	opts   *options
}

// NewHTTP creates an HTTP transport for url.
func NewHTTP(url string, opts ...Option) *HTTP {
	o := newOptions(opts)

	client := o.client
	if client == nil {
		client = &http.Client{}
	}
	if o.proxy != nil || o.timeout > 0 {
		// Copy so that a shared client is not modified.
		c := *client
		if o.proxy != nil {
			base, ok := c.Transport.(*http.Transport)
			if c.Transport == nil || ok {
				var t *http.Transport
				if base != nil {
					t = base.Clone()
				} else {
					t = http.DefaultTransport.(*http.Transport).Clone()
				}
				t.Proxy = http.ProxyURL(o.proxy)
				c.Transport = t
			}
		}
		if o.timeout > 0 {
			c.Timeout = o.timeout
		}
		client = &c
	}

	return &HTTP{url: url, client: client, opts: o}
}

// Call implements jsonrpc.Transport.
func (h *HTTP) Call(ctx context.Context, requests []jsonrpc.Request) ([]jsonrpc.Reply, error) {
	if requests == nil {
		requests = []jsonrpc.Request{}
	}
	body, err := json.Marshal(requests)
	if err != nil {
		return nil, err
	}
	wire, contentType, err := encodeBody(h.opts, body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(wire))
	if err != nil {
		return nil, err
	}
	for k, vs := range h.opts.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)
	if h.opts.username != "" || h.opts.password != "" {
		req.SetBasicAuth(h.opts.username, h.opts.password)
	}

	start := time.Now()
	res, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	h.opts.logger.Debug("rpc http round trip",
		zap.String("url", h.url),
		zap.Int("status", res.StatusCode),
		zap.Int("requests", len(requests)),
		zap.Duration("elapsed", time.Since(start)),
	)

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return []jsonrpc.Reply{}, nil
	default:
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &StatusError{StatusCode: res.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, maxReplyBytes))
	if err != nil {
		return nil, err
	}
	jsonData, err := decodeBody(h.opts, data)
	if err != nil {
		return nil, err
	}
	return jsonrpc.DecodeReplies(jsonData)
}

// encodeBody converts a JSON batch to its wire form and returns it with its
// media type.
func encodeBody(o *options, body []byte) ([]byte, string, error) {
	wire, err := o.codec.Encode(body)
	if err != nil {
		return nil, "", err
	}
	if o.sealer == nil {
		return wire, o.codec.ContentType(), nil
	}
	sealed, err := o.sealer.Seal(wire, []byte(o.codec.ContentType()))
	if err != nil {
		return nil, "", err
	}
	return []byte(sealed), SealedContentType(o.codec), nil
}

// decodeBody reverses encodeBody for a reply.
func decodeBody(o *options, wire []byte) ([]byte, error) {
	if o.sealer != nil {
		plain, err := o.sealer.Open(string(bytes.TrimSpace(wire)), []byte(o.codec.ContentType()))
		if err != nil {
			return nil, err
		}
		wire = plain
	}
	return o.codec.Decode(wire)
}
