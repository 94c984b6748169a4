package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/mnehpets/typedrpc/jsonrpc"
	"github.com/mnehpets/typedrpc/seal"
)

type captured struct {
	method      string
	contentType string
	accept      string
	header      http.Header
	body        []byte
}

func replyServer(t *testing.T, status int, reply string, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if got != nil {
			*got = captured{
				method:      r.Method,
				contentType: r.Header.Get("Content-Type"),
				accept:      r.Header.Get("Accept"),
				header:      r.Header.Clone(),
				body:        body,
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPCall(t *testing.T) {
	var got captured
	srv := replyServer(t, http.StatusOK,
		`[{"jsonrpc":"2.0","id":1,"method":"removeData","params":{"ok":true}},{"jsonrpc":"2.0","error":{"code":-32601,"message":"nope"},"id":2}]`,
		&got)

	tr := NewHTTP(srv.URL, WithHeader("X-Trace", "abc"), WithBasicAuth("user", "secret"))
	replies, err := tr.Call(context.Background(), []jsonrpc.Request{
		jsonrpc.NewRequest(1, "removeData", map[string]int{"x": 1}),
		jsonrpc.NewRequest(2, "kill", nil),
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	if got.method != http.MethodPost {
		t.Errorf("got method %s, want POST", got.method)
	}
	if got.contentType != ContentTypeJSON || got.accept != ContentTypeJSON {
		t.Errorf("got Content-Type %q Accept %q", got.contentType, got.accept)
	}
	if got.header.Get("X-Trace") != "abc" {
		t.Errorf("custom header not sent")
	}
	if !strings.HasPrefix(got.header.Get("Authorization"), "Basic ") {
		t.Errorf("basic auth not sent")
	}
	var sent []map[string]interface{}
	if err := json.Unmarshal(got.body, &sent); err != nil || len(sent) != 2 {
		t.Fatalf("body is not a two-element batch: %s", got.body)
	}
	if _, ok := sent[1]["params"]; ok {
		t.Errorf("nil params were sent: %s", got.body)
	}

	if len(replies) != 2 || jsonrpc.IsErrorReply(replies[0]) || !jsonrpc.IsErrorReply(replies[1]) {
		t.Errorf("got replies %#v", replies)
	}
}

func TestHTTPSingleObjectReply(t *testing.T) {
	srv := replyServer(t, http.StatusOK, `{"jsonrpc":"2.0","error":{"code":-32600,"message":"invalid request"},"id":null}`, nil)
	replies, err := NewHTTP(srv.URL).Call(context.Background(), nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(replies) != 1 || !jsonrpc.IsErrorReply(replies[0]) {
		t.Errorf("got %#v", replies)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   bool
		wantCount int
	}{
		{"no content", http.StatusNoContent, "", false, 0},
		{"unauthorized", http.StatusUnauthorized, "go away", true, 0},
		{"server error", http.StatusInternalServerError, "", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := replyServer(t, tt.status, tt.body, nil)
			replies, err := NewHTTP(srv.URL).Call(context.Background(), []jsonrpc.Request{jsonrpc.NewRequest(1, "m", nil)})
			if !tt.wantErr {
				if err != nil || len(replies) != tt.wantCount {
					t.Errorf("got %v, %v", replies, err)
				}
				return
			}
			var se *StatusError
			if !errors.As(err, &se) || se.StatusCode != tt.status {
				t.Fatalf("got %v, want StatusError %d", err, tt.status)
			}
			if tt.body != "" && se.Body != tt.body {
				t.Errorf("got body %q, want %q", se.Body, tt.body)
			}
		})
	}
}

func TestHTTPMalformedReply(t *testing.T) {
	srv := replyServer(t, http.StatusOK, `[{"jsonrpc":"2.0","id":"x","params":1}]`, nil)
	if _, err := NewHTTP(srv.URL).Call(context.Background(), nil); err == nil {
		t.Error("expected error for a non-integer id")
	}
}

func TestHTTPContextCancel(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewHTTP(srv.URL).Call(ctx, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want deadline exceeded", err)
	}
}

func TestHTTPTimeoutDoesNotModifySharedClient(t *testing.T) {
	shared := &http.Client{}
	proxy, _ := url.Parse("http://proxy.invalid:8080")
	tr := NewHTTP("http://example.invalid", WithHTTPClient(shared), WithTimeout(time.Second), WithProxy(proxy))

	if shared.Timeout != 0 || shared.Transport != nil {
		t.Error("shared client was modified")
	}
	if tr.client.Timeout != time.Second {
		t.Errorf("got timeout %v", tr.client.Timeout)
	}
	ht, ok := tr.client.Transport.(*http.Transport)
	if !ok || ht.Proxy == nil {
		t.Fatal("proxy not configured")
	}
	req, _ := http.NewRequest(http.MethodPost, "http://example.invalid", nil)
	if u, err := ht.Proxy(req); err != nil || u.String() != proxy.String() {
		t.Errorf("got proxy %v, %v", u, err)
	}
}

func TestHTTPSealedBody(t *testing.T) {
	sealer, err := seal.New("k", map[string][]byte{"k": []byte(strings.Repeat("s", seal.DefaultKeySize))})
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		codec, ok := UnsealedCodec(r.Header.Get("Content-Type"))
		if !ok {
			http.Error(w, "not sealed", http.StatusUnsupportedMediaType)
			return
		}
		body, _ := io.ReadAll(r.Body)
		plain, err := sealer.Open(string(body), []byte(codec.ContentType()))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var reqs []jsonrpc.Request
		if err := json.Unmarshal(plain, &reqs); err != nil || len(reqs) != 1 || reqs[0].Method != "ping" {
			http.Error(w, "bad batch", http.StatusBadRequest)
			return
		}
		sealed, _ := sealer.Seal([]byte(`[{"jsonrpc":"2.0","id":1,"params":"pong"}]`), []byte(codec.ContentType()))
		w.Header().Set("Content-Type", SealedContentType(codec))
		io.WriteString(w, sealed)
	}))
	defer srv.Close()

	replies, err := NewHTTP(srv.URL, WithSealer(sealer)).Call(context.Background(), []jsonrpc.Request{jsonrpc.NewRequest(1, "ping", nil)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	s, ok := replies[0].(*jsonrpc.SuccessReply)
	if !ok || string(s.Params) != `"pong"` {
		t.Errorf("got %#v", replies[0])
	}
}
