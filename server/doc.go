// Package server is the counterpart of package jsonrpc: it dispatches
// JSON-RPC 2.0 batches to Go methods and answers in the same dialect, with
// success results carried under "params".
//
// # Registering Methods
//
// Register exposes every exported method of a receiver whose signature is
//
//	func(ctx context.Context, params P) (R, error)
//
// under "namespace.Method". A struct P may rename the method with a blank
// field tagged `jsonrpc:"name"`. Handle binds a single function to a method
// declared with jsonrpc.Define, so client and server share one declaration:
//
//	var Add = jsonrpc.Define[AddParams, int]("math.add")
//
//	s := server.New(server.WithLogger(logger))
//	server.Handle(s, Add, func(ctx context.Context, p AddParams) (int, error) {
//	    return p.A + p.B, nil
//	})
//	http.Handle("/rpc", s.Handler())
//	http.Handle("/ws", s.WebSocketHandler())
//
// # Params
//
// Struct params are accepted by name (an object keyed by json tags) or by
// position (an array in field order). Fields tagged omitempty are optional;
// all others must be present. Params of any other type are decoded with
// encoding/json.
//
// # Errors
//
// A method returning a *jsonrpc.Error keeps its code, message and data. Any
// other error becomes CodeInternalError with the error text. Panics are
// recovered and reported as CodeInternalError.
//
// # Transports
//
// Handler serves POST requests whose body is JSON or CBOR, selected by
// Content-Type, and sealed bodies when the server has a sealer. The reply
// uses the request's encoding. WebSocketHandler serves one batch per
// message: text messages are JSON, binary messages CBOR.
package server
