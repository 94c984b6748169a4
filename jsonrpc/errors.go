package jsonrpc

import (
	"errors"
	"strconv"
)

const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// ErrNoReply is returned by Call when the transport answers a single request
// with an empty reply list.
var ErrNoReply = errors.New("jsonrpc: transport returned no reply")

// Error is the standard JSON-RPC 2.0 error object.
//
// It is the error shape of every method defined with Define. Methods that
// reply with a different error object use DefineWithError.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return "jsonrpc: error: <nil>"
	}
	if e.Message == "" {
		return "jsonrpc: error " + strconv.Itoa(e.Code)
	}
	return e.Message
}

// NewError creates an Error with the given code and message.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}
