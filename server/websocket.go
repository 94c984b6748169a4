package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/mnehpets/typedrpc/endpoint"
	"github.com/mnehpets/typedrpc/transport"
	"go.uber.org/zap"
)

var errUnsealed = errors.New("server: message is not sealed with a known codec")

// WebSocketHandler returns an http.Handler that upgrades the connection and
// answers each message with one reply message until the peer closes.
// Processors run before the upgrade.
func (s *Server) WebSocketHandler() http.Handler {
	return endpoint.Handler(s.serveWebSocket, s.processors...)
}

func (s *Server) serveWebSocket(_ http.ResponseWriter, _ *http.Request, _ struct{}) (endpoint.Renderer, error) {
	return endpoint.RendererFunc(s.upgrade), nil
}

// upgrade takes over the connection. Errors are logged rather than returned
// since the response can no longer carry them.
func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) error {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		s.logger.Debug("rpc websocket upgrade failed", zap.Error(err))
		return nil
	}
	defer conn.Close()

	remote := zap.String("remote", r.RemoteAddr)
	s.logger.Debug("rpc websocket connected", remote)

	ctx := r.Context()
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("rpc websocket read failed", remote, zap.Error(err))
			}
			return nil
		}

		reply, err := s.handleMessage(ctx, mt, data)
		if err != nil {
			s.logger.Warn("rpc websocket message rejected", remote, zap.Error(err))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "unsupported message"))
			return nil
		}
		if err := conn.WriteMessage(mt, reply); err != nil {
			s.logger.Debug("rpc websocket write failed", remote, zap.Error(err))
			return nil
		}
	}
}

// handleMessage answers one message. Text messages are JSON and binary
// messages CBOR. With a sealer, every message is a sealed text message and
// its codec is the one whose media type authenticates it.
func (s *Server) handleMessage(ctx context.Context, mt int, data []byte) ([]byte, error) {
	var (
		codec transport.Codec
		body  []byte
	)
	switch {
	case s.sealer != nil:
		if mt != websocket.TextMessage {
			return nil, errUnsealed
		}
		for _, c := range []transport.Codec{transport.JSON, transport.CBOR} {
			if plain, err := s.sealer.Open(string(data), []byte(c.ContentType())); err == nil {
				codec, body = c, plain
				break
			}
		}
		if codec == nil {
			return nil, errUnsealed
		}
	case mt == websocket.BinaryMessage:
		codec, body = transport.CBOR, data
	default:
		codec, body = transport.JSON, data
	}

	var reply []byte
	if jsonBody, err := codec.Decode(body); err != nil {
		reply = parseErrorReply()
	} else {
		reply = s.Dispatch(ctx, jsonBody)
	}
	// Every message gets a reply, even when it held only notifications.
	if reply == nil {
		reply = []byte("[]")
	}

	wire, err := codec.Encode(reply)
	if err != nil {
		return nil, err
	}
	if s.sealer == nil {
		return wire, nil
	}
	v, err := s.sealer.Seal(wire, []byte(codec.ContentType()))
	if err != nil {
		return nil, err
	}
	return []byte(v), nil
}
