package server

import (
	"bytes"
	"net/http"

	"github.com/mnehpets/typedrpc/endpoint"
	"github.com/mnehpets/typedrpc/transport"
	"go.uber.org/zap"
)

// rpcParams captures the raw request body. Parsing is deferred to the
// endpoint because JSON-RPC answers malformed bodies with an error reply
// rather than an HTTP error.
type rpcParams struct {
	Body        []byte `body:""`
	ContentType string `header:"Content-Type"`
}

// Handler returns an http.Handler serving POSTed requests.
func (s *Server) Handler() http.Handler {
	return endpoint.Handler(s.serveHTTP, s.processors...)
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request, params rpcParams) (endpoint.Renderer, error) {
	if r.Method != http.MethodPost {
		return nil, endpoint.Error(http.StatusMethodNotAllowed, "JSON-RPC requires POST method", nil)
	}

	codec, sealed, err := s.requestCodec(params.ContentType)
	if err != nil {
		return nil, err
	}

	body := params.Body
	if sealed {
		plain, err := s.sealer.Open(string(bytes.TrimSpace(body)), []byte(codec.ContentType()))
		if err != nil {
			s.logger.Debug("rpc sealed body rejected", zap.Error(err))
			return nil, endpoint.Error(http.StatusBadRequest, "invalid sealed body", err)
		}
		body = plain
	}

	var reply []byte
	if jsonBody, err := codec.Decode(body); err != nil {
		reply = parseErrorReply()
	} else {
		reply = s.Dispatch(r.Context(), jsonBody)
	}
	if reply == nil {
		return &endpoint.NoContentRenderer{}, nil
	}

	wire, err := codec.Encode(reply)
	if err != nil {
		return nil, err
	}
	contentType := codec.ContentType()
	if sealed {
		v, err := s.sealer.Seal(wire, []byte(codec.ContentType()))
		if err != nil {
			return nil, err
		}
		wire = []byte(v)
		contentType = transport.SealedContentType(codec)
	}
	return &endpoint.BytesRenderer{ContentType: contentType, Body: wire}, nil
}

// requestCodec selects the codec for a request's Content-Type and reports
// whether the body is sealed.
func (s *Server) requestCodec(contentType string) (transport.Codec, bool, error) {
	if c, ok := transport.UnsealedCodec(contentType); ok {
		if s.sealer == nil {
			return nil, false, endpoint.Error(http.StatusUnsupportedMediaType, "sealed bodies are not accepted", nil)
		}
		return c, true, nil
	}
	if s.sealer != nil {
		return nil, false, endpoint.Error(http.StatusUnsupportedMediaType, "body must be sealed", nil)
	}
	if contentType == "" {
		return transport.JSON, false, nil
	}
	if c, ok := transport.CodecFor(contentType); ok {
		return c, false, nil
	}
	return nil, false, endpoint.Error(http.StatusUnsupportedMediaType, "Content-Type must be application/json or application/cbor", nil)
}
