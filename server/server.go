package server

import (
	"sort"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mnehpets/typedrpc/endpoint"
	"github.com/mnehpets/typedrpc/seal"
	"go.uber.org/zap"
)

// Server is a registry of JSON-RPC methods. It is safe for concurrent use;
// methods may be registered while requests are served.
type Server struct {
	mu      sync.RWMutex
	methods map[string]*method

	logger     *zap.Logger
	sealer     *seal.Codec
	processors []endpoint.Processor
	upgrader   websocket.Upgrader
}

// Option configures a Server.
type Option func(*Server)

// WithLogger configures the server's logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithSealer requires every request body to be sealed with s. Replies are
// sealed with the same codec.
func WithSealer(c *seal.Codec) Option {
	return func(s *Server) {
		s.sealer = c
	}
}

// WithProcessors runs processors, such as bearer token verification, before
// each HTTP request or WebSocket upgrade.
func WithProcessors(processors ...endpoint.Processor) Option {
	return func(s *Server) {
		s.processors = append(s.processors, processors...)
	}
}

// WithUpgrader configures the WebSocket upgrader, e.g. its CheckOrigin.
func WithUpgrader(u websocket.Upgrader) Option {
	return func(s *Server) {
		s.upgrader = u
	}
}

// New creates an empty server.
func New(opts ...Option) *Server {
	s := &Server{
		methods: make(map[string]*method),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Methods returns the registered method names in sorted order.
func (s *Server) Methods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.methods))
	for name := range s.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) add(name string, m *method) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.methods[name]; exists {
		panic("server: method name collision: " + name)
	}
	s.methods[name] = m
}

func (s *Server) lookup(name string) (*method, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.methods[name]
	return m, ok
}
