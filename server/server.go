package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Server is the FTP server.
//
// It handles listening for incoming connections and dispatching them to
// client sessions. Each connection runs in its own goroutine.
//
// Lifecycle:
//  1. Create server with NewServer()
//  2. Start with ListenAndServe() or Serve()
//  3. Serve runs until the listener fails permanently or Shutdown is called
//  4. Shutdown closes the listener and every session, then waits for them
//
// Basic example:
//
//	driver, _ := server.NewFSDriver("/srv/ftp", server.WithCredentials(table))
//	s, err := server.NewServer(":2121", server.WithDriver(driver))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(s.ListenAndServe())
//
// With graceful shutdown:
//
//	go func() {
//	    <-ctx.Done()
//	    s.Shutdown(context.Background())
//	}()
//	if err := s.ListenAndServe(); !errors.Is(err, server.ErrServerClosed) {
//	    log.Fatal(err)
//	}
type Server struct {
	// addr is the TCP address to listen on (e.g., ":2121").
	addr string

	// driver is the backend driver for authentication and file operations.
	driver Driver

	// logger is the logger instance.
	logger *slog.Logger

	// welcomeMessage is the text of the 220 greeting.
	welcomeMessage string

	// serverName is the system type returned by the SYST command.
	serverName string

	// passiveHost, if set, replaces the address advertised in PASV replies.
	passiveHost net.IP

	// idleTimeout closes control connections with no command for this long.
	// If 0, connections never time out.
	idleTimeout time.Duration

	// dataTimeout bounds the wait for the client to open a data connection.
	// If 0, the server waits forever.
	dataTimeout time.Duration

	// bandwidthLimit caps each RETR/STOR at this many bytes per second.
	// If 0, transfers are not throttled.
	bandwidthLimit int64

	// maxConnections is the maximum number of simultaneous connections.
	// If 0, there is no limit.
	maxConnections int

	// metricsCollector receives command, transfer and connection metrics.
	metricsCollector MetricsCollector

	// activeConns tracks the number of currently active sessions.
	activeConns atomic.Int32

	// Shutdown handling
	mu         sync.Mutex
	listener   net.Listener
	conns      map[io.Closer]struct{}
	sessions   sync.WaitGroup
	inShutdown atomic.Bool
}

// ErrServerClosed is returned by the Server's Serve and ListenAndServe
// methods after a call to Shutdown.
var ErrServerClosed = errors.New("ftp: Server closed")

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// NewServer creates a new FTP server with the given address and options.
// The address should be in the form ":port" or "host:port".
// The driver must be provided via the WithDriver option.
//
// Default values:
//   - Logger: slog.Default()
//   - Welcome message: "FTP Server Ready"
//   - Idle timeout: none
//   - Data connection timeout: 10 seconds
//   - MaxConnections: 0 (unlimited)
//   - Bandwidth limit: 0 (unlimited)
//
// Example:
//
//	s, _ := server.NewServer(":2121",
//	    server.WithDriver(driver),
//	    server.WithMaxConnections(100),
//	    server.WithIdleTimeout(5*time.Minute),
//	)
func NewServer(addr string, options ...Option) (*Server, error) {
	s := &Server{
		addr:           addr,
		logger:         slog.Default(),
		welcomeMessage: "FTP Server Ready",
		serverName:     "UNIX Type: L8",
		dataTimeout:    10 * time.Second,
		conns:          make(map[io.Closer]struct{}),
	}

	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.driver == nil {
		return nil, fmt.Errorf("driver is required (use WithDriver option)")
	}

	return s, nil
}

// ListenAndServe starts the FTP server on the configured address.
// It blocks until the server stops or an error occurs. A bind failure is
// returned immediately.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.logger.Info("server_listening", "addr", ln.Addr().String())
	return s.Serve(ln)
}

// Addr returns the address of the listener Serve is running on, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops the server.
//
// It closes the listener, closes every control connection, data connection
// and pending passive listener, and then waits for all sessions to return
// or for ctx to be done, whichever happens first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.inShutdown.Store(true)
	ln := s.listener
	s.listener = nil
	conns := s.conns
	s.conns = make(map[io.Closer]struct{})
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	for c := range conns {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Serve accepts incoming connections on the listener l.
// It blocks until the listener is closed or Shutdown is called, in which
// case it returns ErrServerClosed.
//
// Temporary accept failures (e.g., EMFILE) are logged and retried with a
// backoff between 5ms and 1s.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.inShutdown.Load() {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.listener == l {
			s.listener = nil
		}
		s.mu.Unlock()
		l.Close()
	}()

	var delay time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay = min(delay*2, maxAcceptDelay)
			}
			s.logger.Error("accept_error", "error", err, "retry_in", delay)
			time.Sleep(delay)
			continue
		}
		delay = 0

		s.mu.Lock()
		if s.inShutdown.Load() {
			s.mu.Unlock()
			conn.Close()
			return ErrServerClosed
		}
		s.conns[conn] = struct{}{}
		s.sessions.Add(1)
		s.mu.Unlock()

		go s.handleConnection(conn)
	}
}

// handleConnection runs one client session to completion.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.sessions.Done()
	defer s.trackConnection(conn, false)

	s.handleSession(conn)
}

// trackConnection registers or forgets a connection or listener that
// Shutdown must close. Registering returns false once shutdown has begun.
func (s *Server) trackConnection(c io.Closer, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if add {
		if s.inShutdown.Load() {
			return false
		}
		s.conns[c] = struct{}{}
		return true
	}
	delete(s.conns, c)
	return true
}

// handleSession enforces the connection limit and serves the session.
func (s *Server) handleSession(conn net.Conn) {
	active := s.activeConns.Add(1)
	defer s.activeConns.Add(-1)

	if s.maxConnections > 0 && active > int32(s.maxConnections) {
		ip, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
		s.logger.Warn("connection_rejected",
			"remote_ip", ip,
			"reason", "global_limit_reached",
			"limit", s.maxConnections,
		)
		if s.metricsCollector != nil {
			s.metricsCollector.RecordConnection(false, "global_limit_reached")
		}
		_, _ = conn.Write(formatReply(421, "Too many users, sorry."))
		conn.Close()
		return
	}

	if s.metricsCollector != nil {
		s.metricsCollector.RecordConnection(true, "accepted")
	}

	session := newSession(s, conn)
	session.serve()
}
