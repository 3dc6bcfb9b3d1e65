package server

import (
	"bufio"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
)

var (
	controlReaderPool = sync.Pool{
		New: func() any { return bufio.NewReaderSize(nil, 4096) },
	}
	controlWriterPool = sync.Pool{
		New: func() any { return bufio.NewWriterSize(nil, 4096) },
	}
)

// session represents an FTP client session. It is owned by the goroutine
// running serve and is never touched by another session.
type session struct {
	server *Server
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer

	// Session tracking
	sessionID string
	remoteIP  string

	// State
	authenticated bool
	user          string
	fs            ClientContext
	transferType  string // A or I, default I
	pasv          *dataChannel
	lastCode      int
	quit          bool
}

// generateSessionID generates a unique 8-character session ID.
func generateSessionID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%08x", b)
}

// newSession creates a new session.
func newSession(server *Server, conn net.Conn) *session {
	remoteAddr := conn.RemoteAddr().String()
	remoteIP, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		remoteIP = remoteAddr
	}

	reader := controlReaderPool.Get().(*bufio.Reader)
	reader.Reset(conn)

	writer := controlWriterPool.Get().(*bufio.Writer)
	writer.Reset(conn)

	return &session{
		server:       server,
		conn:         conn,
		reader:       reader,
		writer:       writer,
		sessionID:    generateSessionID(),
		remoteIP:     remoteIP,
		transferType: "I",
	}
}

// serve runs the blocking read/dispatch/reply loop until QUIT, EOF or a
// control socket error.
func (s *session) serve() {
	defer s.close()

	s.reply(220, s.server.welcomeMessage)

	s.logger().Info("session_started",
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
	)

	for !s.quit {
		if s.server.idleTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.server.idleTimeout))
		}

		line, err := readLine(s.reader)
		if errors.Is(err, errLineTooLong) {
			s.reply(500, "Command line too long.")
			continue
		}
		if err != nil {
			var netErr net.Error
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
			case errors.As(err, &netErr) && netErr.Timeout():
				s.logger().Info("idle_timeout",
					"session_id", s.sessionID,
					"remote_ip", s.remoteIP,
					"user", s.user,
					"timeout", s.server.idleTimeout,
				)
				s.reply(421, "Timeout.")
			default:
				s.logger().Warn("read_error",
					"session_id", s.sessionID,
					"remote_ip", s.remoteIP,
					"user", s.user,
					"error", err,
				)
			}
			return
		}

		s.handleCommand(line)
	}
}

// handleCommand parses and dispatches one control line.
func (s *session) handleCommand(line string) {
	cmd := parseCommandLine(line)
	if cmd.verb == "" {
		return
	}

	logArg := cmd.arg
	if cmd.verb == "PASS" {
		logArg = "***"
	}
	s.debug("command_received", "cmd", cmd.verb, "arg", logArg)

	spec, ok := commandTable[cmd.verb]
	if !ok {
		spec = unknownCommand
	}

	start := time.Now()
	if spec.auth && !s.authenticated {
		s.reply(530, "Please login with USER and PASS.")
	} else {
		spec.handler(s, cmd.arg)
	}

	if ok && s.server.metricsCollector != nil {
		s.server.metricsCollector.RecordCommand(cmd.verb, s.lastCode < 400, time.Since(start))
	}
}

// close tears the session down. Close errors are aggregated into one log
// entry.
func (s *session) close() {
	var result *multierror.Error

	if s.pasv != nil {
		s.server.trackConnection(s.pasv, false)
		if err := s.pasv.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			result = multierror.Append(result, err)
		}
		s.pasv = nil
	}
	if s.fs != nil {
		if err := s.fs.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		s.fs = nil
	}
	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		result = multierror.Append(result, err)
	}

	s.reader.Reset(nil)
	controlReaderPool.Put(s.reader)
	s.writer.Reset(nil)
	controlWriterPool.Put(s.writer)

	if err := result.ErrorOrNil(); err != nil {
		s.debug("session_close_errors", "error", err)
	}
	s.logger().Info("session_closed",
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
		"user", s.user,
	)
}

// reply sends a single-line response to the client.
func (s *session) reply(code int, message string) {
	s.write(code, formatReply(code, message))
}

// replyLines sends a multi-line response to the client.
func (s *session) replyLines(code int, lines []string) {
	s.write(code, formatMultiline(code, lines))
}

func (s *session) write(code int, b []byte) {
	s.lastCode = code
	if _, err := s.writer.Write(b); err != nil {
		s.debug("reply_failed", "code", code, "error", err)
		return
	}
	if err := s.writer.Flush(); err != nil {
		s.debug("reply_failed", "code", code, "error", err)
	}
}

func (s *session) logger() *slog.Logger {
	return s.server.logger
}

// debug logs at debug level with the session attributes prepended.
func (s *session) debug(msg string, args ...any) {
	attrs := append([]any{"session_id", s.sessionID, "remote_ip", s.remoteIP}, args...)
	s.logger().Debug(msg, attrs...)
}
