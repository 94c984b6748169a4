package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mnehpets/typedrpc/jsonrpc"
	"go.uber.org/zap"
)

// WebSocket sends each batch as one message on a persistent connection and
// reads the next message as its replies.
//
// Calls are serialized: a batch is written and its reply read before the
// next batch is sent. WebSocket is safe for concurrent use.
type WebSocket struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	opts   *options
	closed bool
}

// DialWebSocket connects to url ("ws://" or "wss://").
func DialWebSocket(ctx context.Context, url string, opts ...Option) (*WebSocket, error) {
	o := newOptions(opts)

	dialer := &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	if o.dialer != nil {
		d := *o.dialer
		dialer = &d
	}
	if o.proxy != nil {
		dialer.Proxy = http.ProxyURL(o.proxy)
	}
	if o.timeout > 0 {
		dialer.HandshakeTimeout = o.timeout
	}
	header := o.header.Clone()
	if o.username != "" || o.password != "" {
		header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(o.username+":"+o.password)))
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial websocket: %w", &StatusError{StatusCode: resp.StatusCode})
		}
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	o.logger.Debug("rpc websocket connected", zap.String("url", url))

	return &WebSocket{conn: conn, opts: o}, nil
}

// Call implements jsonrpc.Transport.
func (ws *WebSocket) Call(ctx context.Context, requests []jsonrpc.Request) ([]jsonrpc.Reply, error) {
	if requests == nil {
		requests = []jsonrpc.Request{}
	}
	body, err := json.Marshal(requests)
	if err != nil {
		return nil, err
	}
	wire, _, err := encodeBody(ws.opts, body)
	if err != nil {
		return nil, err
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.closed {
		return nil, websocket.ErrCloseSent
	}

	// Unblock the connection when ctx ends; the deadline is cleared on the
	// next call.
	if err := ws.conn.SetWriteDeadline(time.Time{}); err != nil {
		return nil, err
	}
	if err := ws.conn.SetReadDeadline(time.Time{}); err != nil {
		return nil, err
	}
	// The callback must finish before the lock is released so that its
	// deadline cannot land on the next call.
	unblocked := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(unblocked)
		now := time.Now()
		ws.conn.SetWriteDeadline(now)
		ws.conn.SetReadDeadline(now)
	})
	defer func() {
		if !stop() {
			<-unblocked
		}
	}()

	start := time.Now()
	if err := ws.conn.WriteMessage(ws.messageType(), wire); err != nil {
		return nil, ws.callError(ctx, err)
	}
	_, data, err := ws.conn.ReadMessage()
	if err != nil {
		return nil, ws.callError(ctx, err)
	}

	ws.opts.logger.Debug("rpc websocket round trip",
		zap.Int("requests", len(requests)),
		zap.Duration("elapsed", time.Since(start)),
	)

	jsonData, err := decodeBody(ws.opts, data)
	if err != nil {
		return nil, err
	}
	return jsonrpc.DecodeReplies(jsonData)
}

func (ws *WebSocket) messageType() int {
	if ws.opts.sealer == nil && ws.opts.codec.ContentType() != ContentTypeJSON {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// callError prefers the context's error when ctx ended the call. A
// connection interrupted mid-call is not reusable, so it is closed.
func (ws *WebSocket) callError(ctx context.Context, err error) error {
	ws.closed = true
	ws.conn.Close()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// Close sends a close frame and closes the connection.
func (ws *WebSocket) Close() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.closed {
		return nil
	}
	ws.closed = true
	deadline := time.Now().Add(time.Second)
	ws.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return ws.conn.Close()
}
