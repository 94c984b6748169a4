// Package transport provides jsonrpc.Transport implementations over HTTP and
// WebSocket.
//
// Both transports send a whole batch as one message and expect one message
// holding the replies. The wire encoding is chosen with a Codec: JSON by
// default, or CBOR. Bodies may additionally be sealed with a seal.Codec.
//
//	t := transport.NewHTTP("https://example.com/rpc",
//	    transport.WithCodec(transport.CBOR),
//	    transport.WithLogger(logger),
//	)
//	c := jsonrpc.NewClient(transport.Logged(t, logger))
//
// Transports return network and HTTP failures as errors; the jsonrpc client
// passes them to its caller unchanged.
package transport
