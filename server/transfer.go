package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/gonzalop/ftpd/internal/ratelimit"
)

// transferChunkSize is the copy buffer size of the transfer engine.
const transferChunkSize = 8 * 1024

var transferBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, transferChunkSize)
		return &b
	},
}

// copyData streams src to dst through a pooled buffer, chunk by chunk.
// ReaderFrom and WriterTo are hidden so the buffer is always the one used.
func copyData(dst io.Writer, src io.Reader) (int64, error) {
	bufp := transferBufPool.Get().(*[]byte)
	defer transferBufPool.Put(bufp)
	return io.CopyBuffer(struct{ io.Writer }{dst}, struct{ io.Reader }{src}, *bufp)
}

// throttle applies the server's per-transfer bandwidth limit to r.
func (s *session) throttle(r io.Reader) io.Reader {
	return ratelimit.NewReader(r, ratelimit.New(s.server.bandwidthLimit))
}

func (s *session) handleLIST(arg string) {
	s.list("LIST", listPath(arg), false)
}

func (s *session) handleNLST(arg string) {
	s.list("NLST", listPath(arg), true)
}

func (s *session) list(cmd, path string, nameOnly bool) {
	dc, err := s.takeDataChannel()
	if err != nil {
		s.reply(425, "Use PASV or EPSV first.")
		return
	}
	defer s.closeDataChannel(dc)

	entries, err := s.fs.ListDir(path)
	if err != nil {
		s.replyError(err)
		return
	}

	s.reply(150, "Here comes the directory listing.")
	conn, err := s.acceptData(dc)
	if err != nil {
		s.transferFailed(cmd, path, err)
		s.reply(425, "Can't open data connection.")
		return
	}

	start := time.Now()
	n, err := writeListing(conn, entries, nameOnly)
	if cerr := s.closeDataConn(conn); err == nil {
		err = cerr
	}
	if err != nil {
		s.transferFailed(cmd, path, err)
		s.reply(425, "Can't open data connection.")
		return
	}

	s.transferComplete(cmd, path, n, time.Since(start))
	s.reply(226, "Directory send OK.")
}

func (s *session) handleRETR(path string) {
	if path == "" {
		s.releaseDataChannel()
		s.reply(501, "Syntax error in parameters or arguments.")
		return
	}
	dc, err := s.takeDataChannel()
	if err != nil {
		s.reply(425, "Use PASV or EPSV first.")
		return
	}
	defer s.closeDataChannel(dc)

	info, err := s.fs.Stat(path)
	if err != nil {
		s.replyError(err)
		return
	}
	if info.IsDir() {
		s.replyError(ErrIsDirectory)
		return
	}
	file, err := s.fs.OpenFile(path, os.O_RDONLY)
	if err != nil {
		s.replyError(err)
		return
	}
	defer file.Close()

	s.reply(150, fmt.Sprintf("Opening %s mode data connection for %s (%d bytes).",
		s.modeName(), path, info.Size()))
	conn, err := s.acceptData(dc)
	if err != nil {
		s.transferFailed("RETR", path, err)
		s.reply(425, "Can't open data connection.")
		return
	}

	var src io.Reader = file
	if s.transferType == "A" {
		src = newCRLFReader(file)
	}

	start := time.Now()
	n, err := copyData(conn, s.throttle(src))
	if cerr := s.closeDataConn(conn); err == nil {
		err = cerr
	}
	if err != nil {
		s.transferFailed("RETR", path, err)
		s.reply(426, "Connection closed; transfer aborted.")
		return
	}

	s.transferComplete("RETR", path, n, time.Since(start))
	s.reply(226, "Transfer complete.")
}

func (s *session) handleSTOR(path string) {
	if path == "" {
		s.releaseDataChannel()
		s.reply(501, "Syntax error in parameters or arguments.")
		return
	}
	dc, err := s.takeDataChannel()
	if err != nil {
		s.reply(425, "Use PASV or EPSV first.")
		return
	}
	defer s.closeDataChannel(dc)

	// Check the target without touching it; it is truncated only once the
	// data connection is up.
	info, err := s.fs.Stat(path)
	switch {
	case err == nil && info.IsDir():
		s.replyError(ErrIsDirectory)
		return
	case err != nil && !errors.Is(err, os.ErrNotExist):
		s.replyError(err)
		return
	}

	s.reply(150, fmt.Sprintf("Opening %s mode data connection for %s.", s.modeName(), path))
	conn, err := s.acceptData(dc)
	if err != nil {
		s.transferFailed("STOR", path, err)
		s.reply(425, "Can't open data connection.")
		return
	}

	file, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		_ = s.closeDataConn(conn)
		s.transferFailed("STOR", path, err)
		s.replyError(err)
		return
	}

	var src io.Reader = conn
	if s.transferType == "A" {
		src = newLFReader(conn)
	}

	start := time.Now()
	n, err := copyData(file, s.throttle(src))
	if cerr := s.closeDataConn(conn); err == nil {
		err = cerr
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.transferFailed("STOR", path, err)
		s.reply(426, "Connection closed; transfer aborted.")
		return
	}

	s.transferComplete("STOR", path, n, time.Since(start))
	s.reply(226, "Transfer complete.")
}

func (s *session) modeName() string {
	if s.transferType == "A" {
		return "ASCII"
	}
	return "BINARY"
}

// transferComplete logs a finished transfer and reports it to the metrics
// collector.
func (s *session) transferComplete(cmd, path string, n int64, duration time.Duration) {
	throughputMBps := float64(0)
	if duration.Seconds() > 0 {
		throughputMBps = float64(n) / duration.Seconds() / 1024 / 1024
	}

	s.logger().Info("transfer_complete",
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
		"user", s.user,
		"operation", cmd,
		"path", path,
		"bytes", n,
		"duration_ms", duration.Milliseconds(),
		"throughput_mbps", fmt.Sprintf("%.2f", throughputMBps),
	)

	if s.server.metricsCollector != nil {
		s.server.metricsCollector.RecordTransfer(cmd, n, duration)
	}
}

func (s *session) transferFailed(cmd, path string, err error) {
	attrs := []any{
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
		"user", s.user,
		"operation", cmd,
		"path", path,
		"kind", kindOf(err).String(),
		"error", err,
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		attrs = append(attrs, "timeout", true)
	}
	s.logger().Warn("transfer_failed", attrs...)
}
