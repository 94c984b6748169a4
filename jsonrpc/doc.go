// Package jsonrpc provides a typed JSON-RPC 2.0 client that shapes request
// envelopes and normalizes replies, leaving delivery to a Transport.
//
// This package follows the JSON-RPC 2.0 specification
// (https://www.jsonrpc.org/specification) for envelopes and error codes, with
// one dialect difference required by the counterpart service: a success reply
// carries its result under "params" instead of "result".
//
// # Basic Usage
//
// Declare the remote API as typed methods, create a client over a transport,
// and call:
//
//	type KillParams struct {
//	    Y int `json:"y"`
//	}
//
//	var Kill = jsonrpc.Define[KillParams, KillResult]("kill")
//
//	c := jsonrpc.NewClient(transport.NewHTTP("https://example.com/rpc"))
//	resp, err := jsonrpc.Call(ctx, c, 2, Kill, &KillParams{Y: 5})
//	if err != nil {
//	    // transport failure
//	}
//	if resp.IsError() {
//	    log.Printf("kill failed: %d %s", resp.Error.Code, resp.Error.Message)
//	}
//
// # Method Registry
//
// A Method value ties a name to its params, result and error types. The
// compiler rejects a call whose params do not match; nothing is validated at
// runtime. Methods that reply with a non-standard error object are declared
// with DefineWithError:
//
//	type RemoveError struct {
//	    Code int    `json:"code"`
//	    Msg  string `json:"msg"`
//	}
//
//	var Remove = jsonrpc.DefineWithError[RemoveParams, RemoveResult, RemoveError]("remove")
//
// # Replies
//
// Replies are decoded once, at the transport boundary, into *SuccessReply or
// *ErrorReply. An object with an "error" key is an error reply. Call turns
// the first reply into a Response; CallBatch returns the replies as the
// transport produced them, and Normalize converts them one by one.
//
// # Errors
//
// Error replies are values, never Go errors. Transport failures are returned
// from Call and CallBatch unchanged. Standard error codes are defined as
// constants:
//   - CodeParseError (-32700)
//   - CodeInvalidRequest (-32600)
//   - CodeMethodNotFound (-32601)
//   - CodeInvalidParams (-32602)
//   - CodeInternalError (-32603)
package jsonrpc
