package server

import (
	"context"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fatalIfErr(t *testing.T, err error, format string, args ...interface{}) {
	t.Helper()
	if err != nil {
		t.Fatalf(format+": %v", append(args, err)...)
	}
}

// userTable is a plaintext Credentials implementation for tests.
type userTable map[string]string

func (u userTable) Verify(user, pass string) bool {
	want, ok := u[user]
	return ok && want == pass
}

var testUsers = userTable{"alice": "secret", "bob": "hunter2"}

// startServer serves rootDir on a loopback port until the test ends and
// returns the control address.
func startServer(t *testing.T, rootDir string, options ...Option) (*Server, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	fatalIfErr(t, err, "listen")
	return serveOn(t, ln, rootDir, options...), ln.Addr().String()
}

// serveOn runs a server for rootDir on ln until the test ends.
func serveOn(t *testing.T, ln net.Listener, rootDir string, options ...Option) *Server {
	t.Helper()

	driver, err := NewFSDriver(rootDir, WithCredentials(testUsers))
	fatalIfErr(t, err, "NewFSDriver")

	server, err := NewServer(ln.Addr().String(), append([]Option{WithDriver(driver)}, options...)...)
	fatalIfErr(t, err, "NewServer")

	go func() {
		if err := server.Serve(ln); err != nil && err != ErrServerClosed {
			t.Logf("Server stopped: %v", err)
		}
	}()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	})
	return server
}

// controlConn is a raw control connection for checking exact reply codes.
type controlConn struct {
	t    *testing.T
	host string
	*textproto.Conn
}

// dialControl connects to addr and consumes the 220 greeting.
func dialControl(t *testing.T, addr string) *controlConn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	fatalIfErr(t, err, "dial %s", addr)
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	host, _, _ := net.SplitHostPort(addr)
	c := &controlConn{t: t, host: host, Conn: textproto.NewConn(conn)}
	t.Cleanup(func() { c.Close() })

	code, _ := c.read()
	require.Equal(t, 220, code, "greeting")
	return c
}

// read returns the next (possibly multi-line) reply.
func (c *controlConn) read() (int, string) {
	c.t.Helper()
	code, msg, err := c.ReadResponse(0)
	fatalIfErr(c.t, err, "read reply")
	return code, msg
}

// cmd sends one command line and returns its reply.
func (c *controlConn) cmd(format string, args ...any) (int, string) {
	c.t.Helper()
	fatalIfErr(c.t, c.PrintfLine(format, args...), "send %q", format)
	return c.read()
}

// expect sends a command and fails the test unless it gets code.
func (c *controlConn) expect(code int, format string, args ...any) string {
	c.t.Helper()
	got, msg := c.cmd(format, args...)
	require.Equal(c.t, code, got, "%s: %s", fmt.Sprintf(format, args...), msg)
	return msg
}

func (c *controlConn) login(user, pass string) {
	c.t.Helper()
	c.expect(331, "USER %s", user)
	c.expect(230, "PASS %s", pass)
}

// pasv sends PASV and dials the advertised data address.
func (c *controlConn) pasv() net.Conn {
	c.t.Helper()
	msg := c.expect(227, "PASV")
	_, port := parsePASV(c.t, msg)
	return c.dialData(port)
}

// epsv sends EPSV and dials the announced port on the control host.
func (c *controlConn) epsv() net.Conn {
	c.t.Helper()
	msg := c.expect(229, "EPSV")
	return c.dialData(parseEPSV(c.t, msg))
}

func (c *controlConn) dialData(port int) net.Conn {
	c.t.Helper()
	data, err := net.DialTimeout("tcp", net.JoinHostPort(c.host, strconv.Itoa(port)), 5*time.Second)
	fatalIfErr(c.t, err, "dial data port %d", port)
	_ = data.SetDeadline(time.Now().Add(10 * time.Second))
	c.t.Cleanup(func() { data.Close() })
	return data
}

// parsePASV extracts the address from "Entering Passive Mode (h1,h2,h3,h4,p1,p2).".
func parsePASV(t *testing.T, msg string) (net.IP, int) {
	t.Helper()
	start := strings.IndexByte(msg, '(')
	end := strings.IndexByte(msg, ')')
	require.True(t, start >= 0 && end > start, "malformed PASV reply %q", msg)

	parts := strings.Split(msg[start+1:end], ",")
	require.Len(t, parts, 6, "PASV reply %q", msg)
	nums := make([]int, 6)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		fatalIfErr(t, err, "PASV field %q", p)
		nums[i] = n
	}
	ip := net.IPv4(byte(nums[0]), byte(nums[1]), byte(nums[2]), byte(nums[3]))
	return ip, nums[4]*256 + nums[5]
}

// parseEPSV extracts the port from "Entering Extended Passive Mode (|||port|)".
func parseEPSV(t *testing.T, msg string) int {
	t.Helper()
	start := strings.Index(msg, "(|||")
	end := strings.LastIndex(msg, "|)")
	require.True(t, start >= 0 && end > start+4, "malformed EPSV reply %q", msg)
	port, err := strconv.Atoi(msg[start+4 : end])
	fatalIfErr(t, err, "EPSV port")
	return port
}
