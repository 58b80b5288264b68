package server

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/mcprepl/mcprepl/internal/logger"
	"github.com/mcprepl/mcprepl/internal/mcp"
	"github.com/mcprepl/mcprepl/internal/tools"
)

var log = logger.ForComponent("server")

// MaxClients caps the number of concurrently served connections. A
// connection accepted while the cap is reached is closed immediately
// without reading or writing anything.
const MaxClients = 10

// Server owns a listening unix socket and the sessions accepted from it.
type Server struct {
	socketPath string
	registry   *tools.Registry
	handler    *mcp.Handler

	listener   net.Listener
	running    atomic.Bool
	acceptDone chan struct{}
	maxClients int

	mu       sync.Mutex
	sessions map[*session]struct{}
}

func New(registry *tools.Registry, socketPath string, info mcp.ServerInfo) *Server {
	return &Server{
		socketPath: socketPath,
		registry:   registry,
		handler:    mcp.NewHandler(registry, info),
		maxClients: MaxClients,
		sessions:   make(map[*session]struct{}),
	}
}

// SetMaxClients overrides the connection cap. Only meaningful before Start.
func (s *Server) SetMaxClients(n int) {
	if n > 0 {
		s.maxClients = n
	}
}

// Start binds the socket and begins accepting connections. A stale file at
// the socket path is removed first so a crashed predecessor cannot block
// binding.
func (s *Server) Start() error {
	if s.running.Load() {
		return fmt.Errorf("server already running on %s", s.socketPath)
	}

	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket dir: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0700); err != nil {
		listener.Close()
		os.Remove(s.socketPath)
		return fmt.Errorf("failed to chmod socket: %w", err)
	}

	s.acceptDone = make(chan struct{})
	s.running.Store(true)

	go s.acceptConnections()

	log.Info("listening", "socket", s.socketPath, "tools", len(s.registry.Names()))
	return nil
}

func (s *Server) acceptConnections() {
	defer close(s.acceptDone)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				// Listener closed by Stop.
				return
			}
			log.Warn("accept failed", "error", err)
			continue
		}

		s.mu.Lock()
		s.pruneLocked()
		if len(s.sessions) >= s.maxClients {
			s.mu.Unlock()
			log.Warn("connection limit reached, rejecting", "limit", s.maxClients)
			conn.Close()
			continue
		}
		sess := newSession(conn, s.handler)
		s.sessions[sess] = struct{}{}
		s.mu.Unlock()

		go sess.run()
	}
}

// pruneLocked drops sessions that have already finished. Caller holds s.mu.
func (s *Server) pruneLocked() {
	for sess := range s.sessions {
		select {
		case <-sess.done:
			delete(s.sessions, sess)
		default:
		}
	}
}

// Stop closes the listener, waits for in-flight sessions to finish, and
// removes the socket from the filesystem. Safe to call more than once.
func (s *Server) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		// Already stopped; re-affirm cleanup.
		removeIfExists(s.socketPath)
		return nil
	}

	s.listener.Close()
	<-s.acceptDone

	s.mu.Lock()
	waiting := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		waiting = append(waiting, sess)
	}
	s.mu.Unlock()

	for _, sess := range waiting {
		<-sess.done
	}

	s.mu.Lock()
	s.sessions = make(map[*session]struct{})
	s.mu.Unlock()

	removeIfExists(s.socketPath)
	log.Info("stopped", "socket", s.socketPath)
	return nil
}

func removeIfExists(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove socket", "socket", path, "error", err)
	}
}

// ActiveSessions reports how many sessions are currently in flight.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	return len(s.sessions)
}

func (s *Server) SocketPath() string {
	return s.socketPath
}

func (s *Server) Running() bool {
	return s.running.Load()
}
