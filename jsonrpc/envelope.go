package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the protocol version carried by every envelope.
const Version = "2.0"

// Request is an outgoing call envelope.
//
// Params is omitted from the encoding when it is nil. Use NewRequest or
// Method.Request to build one; CallBatch re-envelopes its input the same way.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// NewRequest builds a request envelope. A nil params is left out of the
// envelope entirely rather than being sent as null.
func NewRequest(id int64, method string, params any) Request {
	return Request{
		JSONRPC: Version,
		ID:      id,
		Method:  method,
		Params:  params,
	}
}

// Reply is a decoded reply envelope. It is either a *SuccessReply or an
// *ErrorReply; the variant is fixed when the reply is decoded.
type Reply interface {
	isReply()
}

// SuccessReply carries a method result.
//
// The counterpart service places the result under "params", mirroring the
// request envelope, rather than under "result".
type SuccessReply struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params"`
}

// ErrorReply carries a protocol-level error. ID is nil when the peer could
// not determine the request id.
//
// Error is kept undecoded so that methods with a custom error shape can
// decode it themselves; see DecodeError.
type ErrorReply struct {
	JSONRPC string          `json:"jsonrpc"`
	Error   json.RawMessage `json:"error"`
	ID      *int64          `json:"id"`
}

func (*SuccessReply) isReply() {}
func (*ErrorReply) isReply()   {}

// IsErrorReply reports whether r is an error reply.
func IsErrorReply(r Reply) bool {
	_, ok := r.(*ErrorReply)
	return ok
}

// DecodeReply decodes a single reply object. Any object with an "error" key
// is an error reply, whatever the key's value and whatever else the object
// holds.
func DecodeReply(data []byte) (Reply, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("jsonrpc: reply is not an object")
	}

	if _, ok := fields["error"]; ok {
		r := &ErrorReply{}
		if err := json.Unmarshal(data, r); err != nil {
			return nil, err
		}
		if r.Error == nil {
			r.Error = json.RawMessage("null")
		}
		return r, nil
	}

	r := &SuccessReply{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, err
	}
	return r, nil
}

// DecodeReplies decodes a reply array. A bare object is accepted and decodes
// to a one-element slice.
func DecodeReplies(data []byte) ([]Reply, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		r, err := DecodeReply(data)
		if err != nil {
			return nil, err
		}
		return []Reply{r}, nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, err
	}
	replies := make([]Reply, 0, len(raws))
	for i, raw := range raws {
		r, err := DecodeReply(raw)
		if err != nil {
			return nil, fmt.Errorf("jsonrpc: reply %d: %w", i, err)
		}
		replies = append(replies, r)
	}
	return replies, nil
}

// Decode decodes the result payload of a success reply into R.
func Decode[R any](r *SuccessReply) (R, error) {
	var v R
	if r == nil || len(r.Params) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(r.Params, &v); err != nil {
		return v, fmt.Errorf("jsonrpc: decode result: %w", err)
	}
	return v, nil
}

// DecodeError decodes the error object of an error reply into E.
func DecodeError[E any](r *ErrorReply) (*E, error) {
	v := new(E)
	if r == nil || len(r.Error) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(r.Error, v); err != nil {
		return nil, fmt.Errorf("jsonrpc: decode error: %w", err)
	}
	return v, nil
}
