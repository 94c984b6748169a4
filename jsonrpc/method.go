package jsonrpc

// Method binds a method name to its params type P, result type R and error
// object type E. Declaring methods as package-level values gives a typed
// registry of a remote API:
//
//	var (
//		RemoveData = jsonrpc.Define[[]RemoveParams, RemoveResult]("removeData")
//		Kill       = jsonrpc.Define[KillParams, KillResult]("kill")
//	)
//
// Method carries no runtime schema; a payload that does not match P is caught
// by the compiler, not by the client.
type Method[P, R, E any] struct {
	name string
}

// Define declares a method whose errors use the standard Error object.
func Define[P, R any](name string) Method[P, R, Error] {
	return Method[P, R, Error]{name: name}
}

// DefineWithError declares a method whose error replies carry E.
func DefineWithError[P, R, E any](name string) Method[P, R, E] {
	return Method[P, R, E]{name: name}
}

// Name returns the wire name of the method.
func (m Method[P, R, E]) Name() string {
	return m.name
}

// Request builds the envelope for a call of m. A nil params is omitted.
func (m Method[P, R, E]) Request(id int64, params *P) Request {
	if params == nil {
		return NewRequest(id, m.name, nil)
	}
	return NewRequest(id, m.name, *params)
}
