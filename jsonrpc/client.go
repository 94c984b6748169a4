package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
)

// Transport delivers request envelopes and returns the peer's replies.
//
// Implementations own everything below envelope shaping: encoding,
// connections, authentication, timeouts. Errors returned by Call are handed to
// the caller of Client unchanged.
type Transport interface {
	Call(ctx context.Context, requests []Request) ([]Reply, error)
}

// TransportFunc adapts a function to a Transport.
type TransportFunc func(ctx context.Context, requests []Request) ([]Reply, error)

func (f TransportFunc) Call(ctx context.Context, requests []Request) ([]Reply, error) {
	return f(ctx, requests)
}

// Response is the normalized outcome of a single call: either the success
// variant (Result, with ID set and Method set when the reply carried one) or
// the error variant (Error, with ID nil when the reply's id was null).
type Response[R, E any] struct {
	ID     *int64
	Method string
	Result R
	Error  *E
}

// IsError reports whether r is the error variant.
func (r *Response[R, E]) IsError() bool {
	return r != nil && r.Error != nil
}

// MarshalJSON encodes the success variant as {"id","method"?,"result"} and
// the error variant as {"error","id"}.
func (r Response[R, E]) MarshalJSON() ([]byte, error) {
	if r.Error != nil {
		return json.Marshal(struct {
			Error *E     `json:"error"`
			ID    *int64 `json:"id"`
		}{r.Error, r.ID})
	}
	return json.Marshal(struct {
		ID     *int64 `json:"id"`
		Method string `json:"method,omitempty"`
		Result R      `json:"result"`
	}{r.ID, r.Method, r.Result})
}

// IsErrorResponse reports whether r is the error variant.
func IsErrorResponse[R, E any](r *Response[R, E]) bool {
	return r.IsError()
}

// Normalize converts a decoded reply into a Response.
func Normalize[R, E any](reply Reply) (*Response[R, E], error) {
	switch r := reply.(type) {
	case *ErrorReply:
		if r == nil {
			break
		}
		e, err := DecodeError[E](r)
		if err != nil {
			return nil, err
		}
		return &Response[R, E]{Error: e, ID: r.ID}, nil
	case *SuccessReply:
		if r == nil {
			break
		}
		result, err := Decode[R](r)
		if err != nil {
			return nil, err
		}
		id := r.ID
		return &Response[R, E]{ID: &id, Method: r.Method, Result: result}, nil
	}
	return nil, fmt.Errorf("jsonrpc: unsupported reply %T", reply)
}

// Client shapes calls for a Transport. It holds no state besides the
// transport and is safe for concurrent use.
type Client struct {
	transport Transport
}

// NewClient creates a Client over t.
func NewClient(t Transport) *Client {
	return &Client{transport: t}
}

// Call sends one request for m and normalizes the first reply.
//
// The id is used as given. A nil params is omitted from the envelope. An
// error reply is returned as a Response, not as an error; the returned error
// is non-nil only for transport failures (passed through unchanged),
// ErrNoReply, or a payload that does not decode into R or E.
func Call[P, R, E any](ctx context.Context, c *Client, id int64, m Method[P, R, E], params *P) (*Response[R, E], error) {
	replies, err := c.transport.Call(ctx, []Request{m.Request(id, params)})
	if err != nil {
		return nil, err
	}
	if len(replies) == 0 {
		return nil, ErrNoReply
	}
	return Normalize[R, E](replies[0])
}

// CallBatch sends all requests in a single transport call and returns the
// transport's replies as they came. Reply order is whatever the peer chose;
// match replies to requests by id when that matters.
//
// Each request is re-enveloped, so the version is always set. An empty batch
// still makes one transport call, with an empty slice.
func (c *Client) CallBatch(ctx context.Context, requests []Request) ([]Reply, error) {
	envelopes := make([]Request, 0, len(requests))
	for _, r := range requests {
		envelopes = append(envelopes, NewRequest(r.ID, r.Method, r.Params))
	}
	return c.transport.Call(ctx, envelopes)
}
