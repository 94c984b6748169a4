package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mnehpets/typedrpc/jsonrpc"
	"go.uber.org/zap"
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

// successReply places the result under "params", as the client expects.
type successReply struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  interface{}     `json:"params"`
}

type errorReply struct {
	JSONRPC string          `json:"jsonrpc"`
	Error   *jsonrpc.Error  `json:"error"`
	ID      json.RawMessage `json:"id"`
}

func zapMethod(name string) zap.Field {
	return zap.String("method", name)
}

func encodeError(id json.RawMessage, e *jsonrpc.Error) json.RawMessage {
	b, err := json.Marshal(errorReply{JSONRPC: jsonrpc.Version, Error: e, ID: id})
	if err != nil {
		// Data did not marshal; drop it.
		b, _ = json.Marshal(errorReply{
			JSONRPC: jsonrpc.Version,
			Error:   jsonrpc.NewError(e.Code, e.Message),
			ID:      id,
		})
	}
	return b
}

func parseErrorReply() []byte {
	return encodeError(nil, jsonrpc.NewError(jsonrpc.CodeParseError, "parse error"))
}

// Dispatch runs a JSON body holding a single request or a batch and returns
// the JSON reply body: an object for a single request, an array for a
// batch. An empty batch is answered with an empty array. It returns nil
// when there is nothing to answer, i.e. every request was a notification.
func (s *Server) Dispatch(ctx context.Context, body []byte) []byte {
	body = bytes.TrimSpace(body)

	var raws []json.RawMessage
	single := false
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &raws); err != nil {
			return parseErrorReply()
		}
		if len(raws) == 0 {
			return []byte("[]")
		}
	} else {
		raws = []json.RawMessage{body}
		single = true
	}

	replies := make([]json.RawMessage, 0, len(raws))
	for _, raw := range raws {
		if reply := s.dispatchOne(ctx, raw); reply != nil {
			replies = append(replies, reply)
		}
	}

	if len(replies) == 0 {
		return nil
	}
	if single {
		return replies[0]
	}
	b, _ := json.Marshal(replies)
	return b
}

// dispatchOne handles one request and returns its encoded reply, or nil for
// a notification.
func (s *Server) dispatchOne(ctx context.Context, raw json.RawMessage) json.RawMessage {
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || len(raw) == 0 {
			return parseErrorReply()
		}
		return encodeError(nil, jsonrpc.NewError(jsonrpc.CodeInvalidRequest, "invalid request"))
	}
	if req.JSONRPC != jsonrpc.Version {
		return encodeError(req.ID, jsonrpc.NewError(jsonrpc.CodeInvalidRequest, "invalid request"))
	}
	if req.Method == "" {
		return encodeError(req.ID, jsonrpc.NewError(jsonrpc.CodeInvalidRequest, "method required"))
	}

	start := time.Now()
	result, err := s.invoke(ctx, req.Method, req.Params)
	fields := []zap.Field{
		zapMethod(req.Method),
		zap.ByteString("id", req.ID),
		zap.Duration("elapsed", time.Since(start)),
	}

	// Notification: no id means no reply expected.
	if req.ID == nil {
		if err != nil {
			s.logger.Debug("rpc notification failed", append(fields, zap.Error(err))...)
		}
		return nil
	}

	if err != nil {
		rpcErr := mapError(err)
		s.logger.Debug("rpc call failed", append(fields, zap.Int("code", rpcErr.Code), zap.Error(err))...)
		return encodeError(req.ID, rpcErr)
	}

	b, err := json.Marshal(successReply{
		JSONRPC: jsonrpc.Version,
		ID:      req.ID,
		Method:  req.Method,
		Params:  result,
	})
	if err != nil {
		s.logger.Warn("rpc result not encodable", append(fields, zap.Error(err))...)
		return encodeError(req.ID, jsonrpc.NewError(jsonrpc.CodeInternalError, "internal error"))
	}
	s.logger.Debug("rpc call", fields...)
	return b
}

func (s *Server) invoke(ctx context.Context, name string, params json.RawMessage) (result interface{}, err error) {
	m, ok := s.lookup(name)
	if !ok {
		return nil, jsonrpc.NewError(jsonrpc.CodeMethodNotFound, "method not found: "+name)
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("rpc method panic", zapMethod(name), zap.Any("panic", r), zap.Stack("stack"))
			result = nil
			err = jsonrpc.NewError(jsonrpc.CodeInternalError, "internal error")
		}
	}()
	return m.call(ctx, params)
}

// mapError converts any error to a JSON-RPC error.
// *jsonrpc.Error values keep their code; other errors become InternalError.
func mapError(err error) *jsonrpc.Error {
	var rpcErr *jsonrpc.Error
	if errors.As(err, &rpcErr) && rpcErr != nil {
		return rpcErr
	}
	return &jsonrpc.Error{
		Code:    jsonrpc.CodeInternalError,
		Message: err.Error(),
	}
}
