package server

import (
	"bytes"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// metricsCounts is what mockMetricsCollector has seen so far.
type metricsCounts struct {
	commands        map[string]int
	failedCommands  int
	transfers       map[string]int64
	connections     int
	rejected        int
	authentications int
	failedLogins    int
}

// mockMetricsCollector counts calls. Sessions call it from their own
// goroutines.
type mockMetricsCollector struct {
	mu     sync.Mutex
	counts metricsCounts
}

func newMockMetrics() *mockMetricsCollector {
	return &mockMetricsCollector{counts: metricsCounts{
		commands:  make(map[string]int),
		transfers: make(map[string]int64),
	}}
}

func (m *mockMetricsCollector) RecordCommand(cmd string, success bool, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts.commands[cmd]++
	if !success {
		m.counts.failedCommands++
	}
}

func (m *mockMetricsCollector) RecordTransfer(operation string, bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts.transfers[operation] += bytes
}

func (m *mockMetricsCollector) RecordConnection(accepted bool, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if accepted {
		m.counts.connections++
	} else {
		m.counts.rejected++
	}
}

func (m *mockMetricsCollector) RecordAuthentication(success bool, user string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.counts.authentications++
	} else {
		m.counts.failedLogins++
	}
}

func (m *mockMetricsCollector) snapshot() metricsCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.counts
	snap.commands = make(map[string]int, len(m.counts.commands))
	for k, v := range m.counts.commands {
		snap.commands[k] = v
	}
	snap.transfers = make(map[string]int64, len(m.counts.transfers))
	for k, v := range m.counts.transfers {
		snap.transfers[k] = v
	}
	return snap
}

func TestWithMetricsCollector(t *testing.T) {
	t.Parallel()
	mock := newMockMetrics()

	s, err := NewServer(":0",
		WithDriver(newTestDriver(t)),
		WithMetricsCollector(mock),
	)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	if s.metricsCollector == nil {
		t.Error("Expected metricsCollector to be set")
	}
}

func TestMetricsRecorded(t *testing.T) {
	t.Parallel()
	mock := newMockMetrics()
	_, addr := startServer(t, t.TempDir(), WithMetricsCollector(mock))

	c := dialControl(t, addr)
	c.expect(331, "USER alice")
	c.expect(530, "PASS wrong")
	c.login("alice", "secret")
	c.expect(502, "BOGUS")

	client, err := ftp.Dial(addr, ftp.DialWithTimeout(5*time.Second), ftp.DialWithDisabledEPSV(true))
	require.NoError(t, err)
	require.NoError(t, client.Login("bob", "hunter2"))
	payload := bytes.Repeat([]byte("m"), 1000)
	require.NoError(t, client.Stor("m.bin", bytes.NewReader(payload)))
	require.NoError(t, client.Quit())

	c.expect(221, "QUIT")

	// The server records the transfer before it sends 226, and QUIT is
	// answered after everything before it, so the counts are final.
	require.Eventually(t, func() bool {
		return mock.snapshot().commands["QUIT"] == 2
	}, 5*time.Second, 10*time.Millisecond)

	snap := mock.snapshot()
	assert.Equal(t, 2, snap.connections)
	assert.Zero(t, snap.rejected)
	assert.Equal(t, 2, snap.authentications)
	assert.Equal(t, 1, snap.failedLogins)
	assert.Equal(t, int64(len(payload)), snap.transfers["STOR"])
	assert.Equal(t, 1, snap.commands["STOR"])
	assert.Equal(t, 3, snap.commands["PASS"])
	assert.NotContains(t, snap.commands, "BOGUS", "unknown verbs are not recorded")
	assert.GreaterOrEqual(t, snap.failedCommands, 1)
}

func TestMetricsRejectedConnection(t *testing.T) {
	t.Parallel()
	mock := newMockMetrics()
	_, addr := startServer(t, t.TempDir(), WithMetricsCollector(mock), WithMaxConnections(1))

	c := dialControl(t, addr)
	c.login("alice", "secret")

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	line, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(line), "421 "), "got %q", line)

	require.Eventually(t, func() bool {
		return mock.snapshot().rejected == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, mock.snapshot().connections)
}
