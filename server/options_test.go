package server

import (
	"log/slog"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDriver(t *testing.T) *FSDriver {
	t.Helper()
	driver, err := NewFSDriver(t.TempDir(), WithCredentials(testUsers))
	fatalIfErr(t, err, "NewFSDriver")
	return driver
}

// TestWithDriver tests the WithDriver option
func TestWithDriver(t *testing.T) {
	driver := newTestDriver(t)

	// Test successful driver setting
	s, err := NewServer(":0", WithDriver(driver))
	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if s.driver == nil {
		t.Error("Driver not set")
	}

	// Test duplicate driver setting
	_, err = NewServer(":0",
		WithDriver(driver),
		WithDriver(driver), // Should error
	)
	if err == nil {
		t.Error("Expected error when setting driver twice")
	}
}

func TestServerDefaults(t *testing.T) {
	s, err := NewServer(":0", WithDriver(newTestDriver(t)))
	require.NoError(t, err)

	assert.Equal(t, slog.Default(), s.logger)
	assert.Equal(t, "FTP Server Ready", s.welcomeMessage)
	assert.Equal(t, "UNIX Type: L8", s.serverName)
	assert.Equal(t, 10*time.Second, s.dataTimeout)
	assert.Zero(t, s.idleTimeout)
	assert.Zero(t, s.maxConnections)
	assert.Zero(t, s.bandwidthLimit)
	assert.Nil(t, s.passiveHost)
	assert.Nil(t, s.metricsCollector)
	assert.Nil(t, s.Addr(), "Addr before Serve")
}

// TestWithLogger tests the WithLogger option
func TestWithLogger(t *testing.T) {
	driver := newTestDriver(t)

	customLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	s, err := NewServer(":0",
		WithDriver(driver),
		WithLogger(customLogger),
	)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	if s.logger != customLogger {
		t.Error("Custom logger not set")
	}

	_, err = NewServer(":0", WithDriver(driver), WithLogger(nil))
	assert.Error(t, err, "nil logger")
}

func TestWithGreetingOptions(t *testing.T) {
	s, err := NewServer(":0",
		WithDriver(newTestDriver(t)),
		WithWelcomeMessage("Hello"),
		WithServerName("UNIX"),
	)
	require.NoError(t, err)
	assert.Equal(t, "Hello", s.welcomeMessage)
	assert.Equal(t, "UNIX", s.serverName)
}

func TestWithPassiveHost(t *testing.T) {
	driver := newTestDriver(t)

	tests := []struct {
		name        string
		host        string
		expected    net.IP
		expectError bool
	}{
		{"IPv4", "203.0.113.7", net.IPv4(203, 0, 113, 7).To4(), false},
		{"IPv6", "2001:db8::1", nil, true},
		{"Hostname", "ftp.example.com", nil, true},
		{"Empty", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewServer(":0", WithDriver(driver), WithPassiveHost(tt.host))
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(s.passiveHost), "got %v", s.passiveHost)
			assert.Len(t, s.passiveHost, net.IPv4len)
		})
	}
}

// TestWithMaxConnections tests the WithMaxConnections option
func TestWithMaxConnections(t *testing.T) {
	driver := newTestDriver(t)

	s, err := NewServer(":0",
		WithDriver(driver),
		WithMaxConnections(100),
	)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	if s.maxConnections != 100 {
		t.Errorf("Expected maxConnections=100, got %d", s.maxConnections)
	}

	_, err = NewServer(":0", WithDriver(driver), WithMaxConnections(-1))
	assert.Error(t, err, "negative limit")
}

func TestWithTimeouts(t *testing.T) {
	s, err := NewServer(":0",
		WithDriver(newTestDriver(t)),
		WithIdleTimeout(5*time.Minute),
		WithDataTimeout(0),
	)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, s.idleTimeout)
	assert.Zero(t, s.dataTimeout)
}

func TestWithBandwidthLimit(t *testing.T) {
	driver := newTestDriver(t)

	s, err := NewServer(":0", WithDriver(driver), WithBandwidthLimit(64*1024))
	require.NoError(t, err)
	assert.Equal(t, int64(64*1024), s.bandwidthLimit)

	_, err = NewServer(":0", WithDriver(driver), WithBandwidthLimit(-1))
	assert.Error(t, err)
}
