package websocket

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/meshlink-dev/signaling-server/internal/metrics"
)

// Server performs the upgrade handshake on raw sockets handed to it by
// the HTTP layer and turns each accepted socket into a Conn. It tracks
// every live connection so process shutdown can close them all.
type Server struct {
	logger *slog.Logger

	mu     sync.Mutex
	conns  map[string]*Conn
	closed bool

	onConnection func(*Conn)
}

// NewServer creates a transport server.
func NewServer(logger *slog.Logger) *Server {
	return &Server{
		logger: logger,
		conns:  make(map[string]*Conn),
	}
}

// OnConnection registers the callback announcing each accepted
// connection. Exactly one subscriber is supported; it must be registered
// before the first Upgrade.
func (s *Server) OnConnection(fn func(*Conn)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnection = fn
}

// Upgrade validates the handshake on an already-hijacked socket, writes
// the 101 response, and starts a Conn over it. A request without the
// Sec-WebSocket-Key header aborts the connection immediately.
//
// The caller supplies the request headers separately because by the time
// the socket reaches us the HTTP layer has already consumed the request.
func (s *Server) Upgrade(sock net.Conn, header http.Header) (*Conn, error) {
	key, err := validateUpgrade(header)
	if err != nil {
		sock.Close()
		return nil, fmt.Errorf("websocket upgrade rejected: %w", err)
	}

	if _, err := sock.Write([]byte(upgradeResponse(AcceptKey(key)))); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to write upgrade response: %w", err)
	}

	conn := NewConn(uuid.NewString(), sock, s.logger)
	conn.onClosed = func() { s.untrack(conn.ID) }

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		// The pumps never started, so shut the socket down directly.
		conn.teardown()
		return nil, ErrConnectionClosed
	}
	s.conns[conn.ID] = conn
	announce := s.onConnection
	metrics.ConnectionsOpen.Set(float64(len(s.conns)))
	s.mu.Unlock()

	s.logger.Info("websocket connection established",
		"conn_id", conn.ID, "remote_addr", sock.RemoteAddr().String())

	if announce != nil {
		announce(conn)
	}
	conn.Start()

	return conn, nil
}

// ConnCount returns the number of tracked connections.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close closes every tracked connection and clears the registry.
// Idempotent; subsequent upgrades are refused.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = make(map[string]*Conn)
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, id)
	metrics.ConnectionsOpen.Set(float64(len(s.conns)))
}
