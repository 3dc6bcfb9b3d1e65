package server

import (
	"fmt"
	"log/slog"
	"net"
	"time"
)

// Option is a functional option for configuring an FTP server.
type Option func(*Server) error

// WithDriver sets the backend driver for authentication and file operations.
// This option is required and can only be set once.
//
// Example:
//
//	driver, _ := server.NewFSDriver("/srv/ftp", server.WithCredentials(table))
//	s, _ := server.NewServer(":2121", server.WithDriver(driver))
func WithDriver(driver Driver) Option {
	return func(s *Server) error {
		if s.driver != nil {
			return fmt.Errorf("driver already set")
		}
		s.driver = driver
		return nil
	}
}

// WithLogger sets a custom logger for the server.
// If not specified, slog.Default() is used.
//
// Example with debug logging:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	}))
//	s, _ := server.NewServer(":2121",
//	    server.WithDriver(driver),
//	    server.WithLogger(logger),
//	)
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			return fmt.Errorf("logger must not be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithWelcomeMessage sets the text of the 220 greeting.
func WithWelcomeMessage(msg string) Option {
	return func(s *Server) error {
		s.welcomeMessage = msg
		return nil
	}
}

// WithServerName sets the system type returned by SYST.
// Defaults to "UNIX Type: L8".
func WithServerName(name string) Option {
	return func(s *Server) error {
		s.serverName = name
		return nil
	}
}

// WithPassiveHost sets the IPv4 address advertised in PASV replies, for
// servers behind NAT. The data listener still binds the control
// connection's local address.
func WithPassiveHost(host string) Option {
	return func(s *Server) error {
		ip := net.ParseIP(host).To4()
		if ip == nil {
			return fmt.Errorf("passive host %q is not an IPv4 address", host)
		}
		s.passiveHost = ip
		return nil
	}
}

// WithMaxConnections sets the maximum number of simultaneous connections.
// If 0, there is no limit. This is the default.
//
// When the limit is reached, new connections receive a "421 Too many users" response.
func WithMaxConnections(max int) Option {
	return func(s *Server) error {
		if max < 0 {
			return fmt.Errorf("max connections must not be negative")
		}
		s.maxConnections = max
		return nil
	}
}

// WithBandwidthLimit throttles every RETR and STOR to bytesPerSecond.
// Each transfer gets its own budget. If 0, there is no limit. This is the
// default.
func WithBandwidthLimit(bytesPerSecond int64) Option {
	return func(s *Server) error {
		if bytesPerSecond < 0 {
			return fmt.Errorf("bandwidth limit must not be negative")
		}
		s.bandwidthLimit = bytesPerSecond
		return nil
	}
}

// WithIdleTimeout closes control connections that send no command for d.
// If not specified, connections never time out.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) error {
		s.idleTimeout = d
		return nil
	}
}

// WithDataTimeout bounds how long a data-bearing command waits for the
// client to connect to the passive listener. Defaults to 10 seconds;
// 0 waits forever.
func WithDataTimeout(d time.Duration) Option {
	return func(s *Server) error {
		s.dataTimeout = d
		return nil
	}
}

// WithMetricsCollector sets the collector notified of commands, transfers,
// connections and logins.
func WithMetricsCollector(c MetricsCollector) Option {
	return func(s *Server) error {
		s.metricsCollector = c
		return nil
	}
}
