// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package server is the accept-loop façade of spec.md §6's server_open /
// server_close operations. Grounded on the teacher's server/server.go
// Serve/Shutdown shape (accept loop as a goroutine, per-connection
// goroutine, a channel closed to signal shutdown) generalized from the
// teacher's zero-copy reactor dispatch to the blocking-read-with-periodic-
// deadline worker loop spec.md's Design Notes call for, and its
// ref-counted connection bookkeeping replaced by sync.Map + sync.WaitGroup
// per the same Design Notes.

package server

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/momentics/gowsproto/api"
	"github.com/momentics/gowsproto/internal/nettransport"
	"github.com/momentics/gowsproto/protocol"
)

// Server accepts TCP connections on ListenAddr and runs the WebSocket
// opening handshake and message loop on each one.
type Server struct {
	cfg       *Config
	callbacks api.Callbacks

	listener *nettransport.Listener

	conns sync.Map // *protocol.Connection -> struct{}
	wg    sync.WaitGroup

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// ErrAlreadyRunning is returned by Listen if called more than once on the
// same Server.
var ErrAlreadyRunning = errors.New("gowsproto: server already listening")

// NewServer builds a Server that dispatches every connection's events to
// cb. It does not bind a socket; call Listen for that.
func NewServer(cb api.Callbacks, opts ...Option) *Server {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	return &Server{
		cfg:       cfg,
		callbacks: cb,
		shutdown:  make(chan struct{}),
	}
}

// Listen binds cfg.ListenAddr and starts the accept loop in the
// background. It returns once the listener is bound; connections are
// handled concurrently.
func (s *Server) Listen() error {
	if s.listener != nil {
		return ErrAlreadyRunning
	}
	ln, err := nettransport.Listen(s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr reports the bound local address, useful when ListenAddr was ":0".
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		tc, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				s.cfg.Logger.Printf("gowsproto: accept: %v", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.serveConn(tc)
	}
}

func (s *Server) serveConn(tr api.Transport) {
	defer s.wg.Done()

	conn := protocol.NewServerConnection(tr, s.callbacks, s.cfg.Logger)
	s.conns.Store(conn, struct{}{})
	defer s.conns.Delete(conn)

	protocol.RunLoop(conn, tr, &s.cfg.Config, s.shutdown)
}

// Shutdown stops accepting new connections and waits up to
// cfg.ShutdownTimeout for every tracked connection's worker goroutine to
// observe the shutdown signal, flush its close frame, and exit. Closing
// s.shutdown only signals intent; each connection's own RunLoop worker
// applies the close on its own goroutine, per spec.md §5.
func (s *Server) Shutdown() error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		if s.listener != nil {
			err = s.listener.Close()
		}
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-time.After(s.cfg.ShutdownTimeout):
		return errors.New("gowsproto: shutdown timed out waiting for connections")
	}
}
