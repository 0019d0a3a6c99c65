package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// Server timeouts. Writes allow for a full gate wait plus rendering.
const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 10 * time.Minute
	DefaultIdleTimeout     = 2 * time.Minute
	DefaultShutdownTimeout = 5 * time.Second
)

// Server owns the listener and the http.Server for one handler.
type Server struct {
	addr    string
	handler http.Handler
	logger  Logger

	mu       sync.RWMutex
	server   *http.Server
	listener net.Listener
}

// NewServer prepares a server for handler on addr.
func NewServer(addr string, handler http.Handler, logger Logger) *Server {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Server{addr: addr, handler: handler, logger: logger}
}

// Start binds the listener and serves in the background. Requests inherit
// ctx, so cancelling it interrupts requests still waiting on the gate.
func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.handler == nil {
		return errors.New("httpapi: server has no handler")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return errors.New("httpapi: server already started")
	}
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen %s: %w", s.addr, err)
	}
	server := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.listener = listener
	s.server = server
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("httpapi: serve error: %v", err)
		}
	}()
	s.logger.Printf("httpapi: listening on %s", listener.Addr().String())
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the http URL of the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return ""
	}
	return "http://" + addr
}
