package server_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mnehpets/typedrpc/jsonrpc"
	"github.com/mnehpets/typedrpc/seal"
	"github.com/mnehpets/typedrpc/server"
	"github.com/mnehpets/typedrpc/transport"
)

type DivideParams struct {
	A int `json:"a"`
	B int `json:"b"`
}

type DivideResult struct {
	Quotient  int `json:"quotient"`
	Remainder int `json:"remainder"`
}

var Divide = jsonrpc.Define[DivideParams, DivideResult]("divide")

func newServer(opts ...server.Option) *server.Server {
	s := server.New(opts...)
	server.Handle(s, Divide, func(ctx context.Context, p DivideParams) (DivideResult, error) {
		if p.B == 0 {
			return DivideResult{}, jsonrpc.NewError(-32000, "division by zero")
		}
		return DivideResult{Quotient: p.A / p.B, Remainder: p.A % p.B}, nil
	})
	return s
}

func testSealer(t *testing.T) *seal.Codec {
	t.Helper()
	c, err := seal.New("k1", map[string][]byte{"k1": []byte(strings.Repeat("k", seal.DefaultKeySize))})
	if err != nil {
		t.Fatalf("seal.New: %v", err)
	}
	return c
}

func exercise(t *testing.T, tr jsonrpc.Transport) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c := jsonrpc.NewClient(tr)

	resp, err := jsonrpc.Call(ctx, c, 1, Divide, &DivideParams{A: 7, B: 2})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if resp.IsError() {
		t.Fatalf("unexpected error reply: %+v", resp.Error)
	}
	if resp.Result != (DivideResult{Quotient: 3, Remainder: 1}) {
		t.Errorf("got result %+v", resp.Result)
	}
	if resp.ID == nil || *resp.ID != 1 || resp.Method != "divide" {
		t.Errorf("got id %v method %q", resp.ID, resp.Method)
	}

	resp, err = jsonrpc.Call(ctx, c, 2, Divide, &DivideParams{A: 1})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !resp.IsError() || resp.Error.Code != -32000 {
		t.Errorf("got %+v, want division by zero", resp)
	}

	replies, err := c.CallBatch(ctx, []jsonrpc.Request{
		Divide.Request(3, &DivideParams{A: 9, B: 3}),
		jsonrpc.NewRequest(4, "missing", nil),
	})
	if err != nil {
		t.Fatalf("CallBatch: %v", err)
	}
	if len(replies) != 2 {
		t.Fatalf("got %d replies, want 2", len(replies))
	}
	if jsonrpc.IsErrorReply(replies[0]) || !jsonrpc.IsErrorReply(replies[1]) {
		t.Errorf("got variants %T, %T", replies[0], replies[1])
	}
	missing, err := jsonrpc.Normalize[any, jsonrpc.Error](replies[1])
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if missing.Error.Code != jsonrpc.CodeMethodNotFound || *missing.ID != 4 {
		t.Errorf("got %+v", missing)
	}
}

func TestRoundTripHTTP(t *testing.T) {
	srv := httptest.NewServer(newServer().Handler())
	defer srv.Close()
	exercise(t, transport.NewHTTP(srv.URL))
}

func TestRoundTripHTTPCBOR(t *testing.T) {
	srv := httptest.NewServer(newServer().Handler())
	defer srv.Close()
	exercise(t, transport.NewHTTP(srv.URL, transport.WithCodec(transport.CBOR)))
}

func TestRoundTripHTTPSealed(t *testing.T) {
	sealer := testSealer(t)
	srv := httptest.NewServer(newServer(server.WithSealer(sealer)).Handler())
	defer srv.Close()

	exercise(t, transport.NewHTTP(srv.URL, transport.WithSealer(sealer)))
	exercise(t, transport.NewHTTP(srv.URL, transport.WithSealer(sealer), transport.WithCodec(transport.CBOR)))

	_, err := transport.NewHTTP(srv.URL).Call(context.Background(), []jsonrpc.Request{Divide.Request(1, &DivideParams{A: 1, B: 1})})
	var statusErr *transport.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != 415 {
		t.Errorf("got %v, want 415 for an unsealed body", err)
	}

	other, err := seal.New("k1", map[string][]byte{"k1": []byte(strings.Repeat("x", seal.DefaultKeySize))})
	if err != nil {
		t.Fatal(err)
	}
	_, err = transport.NewHTTP(srv.URL, transport.WithSealer(other)).Call(context.Background(), []jsonrpc.Request{Divide.Request(1, &DivideParams{A: 1, B: 1})})
	if !errors.As(err, &statusErr) || statusErr.StatusCode != 400 {
		t.Errorf("got %v, want 400 for a body sealed with the wrong key", err)
	}
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestRoundTripWebSocket(t *testing.T) {
	tests := []struct {
		name   string
		server []server.Option
		client func(t *testing.T) []transport.Option
	}{
		{"json", nil, func(*testing.T) []transport.Option { return nil }},
		{"cbor", nil, func(*testing.T) []transport.Option {
			return []transport.Option{transport.WithCodec(transport.CBOR)}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(newServer(tt.server...).WebSocketHandler())
			defer srv.Close()

			ws, err := transport.DialWebSocket(context.Background(), wsURL(srv.URL), tt.client(t)...)
			if err != nil {
				t.Fatalf("DialWebSocket: %v", err)
			}
			defer ws.Close()
			exercise(t, ws)
		})
	}
}

func TestRoundTripWebSocketSealed(t *testing.T) {
	sealer := testSealer(t)
	srv := httptest.NewServer(newServer(server.WithSealer(sealer)).WebSocketHandler())
	defer srv.Close()

	for _, codec := range []transport.Codec{transport.JSON, transport.CBOR} {
		ws, err := transport.DialWebSocket(context.Background(), wsURL(srv.URL),
			transport.WithSealer(sealer), transport.WithCodec(codec))
		if err != nil {
			t.Fatalf("DialWebSocket: %v", err)
		}
		exercise(t, ws)
		ws.Close()
	}
}

func TestEmptyBatch(t *testing.T) {
	srv := httptest.NewServer(newServer().Handler())
	defer srv.Close()
	wsSrv := httptest.NewServer(newServer().WebSocketHandler())
	defer wsSrv.Close()

	ws, err := transport.DialWebSocket(context.Background(), wsURL(wsSrv.URL))
	if err != nil {
		t.Fatalf("DialWebSocket: %v", err)
	}
	defer ws.Close()

	tests := []struct {
		name string
		tr   jsonrpc.Transport
	}{
		{"http", transport.NewHTTP(srv.URL)},
		{"websocket", ws},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replies, err := jsonrpc.NewClient(tt.tr).CallBatch(context.Background(), nil)
			if err != nil {
				t.Fatalf("CallBatch: %v", err)
			}
			if len(replies) != 0 {
				t.Errorf("got %d replies, want none", len(replies))
			}
		})
	}
}
