// Package config loads the ftpd YAML configuration file.
package config

import (
	"bytes"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Default values for keys missing from the file.
const (
	DefaultListen      = ":2121"
	DefaultDataTimeout = 10 * time.Second
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
)

// Config is the decoded configuration file.
type Config struct {
	// Listen is the control connection address.
	Listen string `yaml:"listen"`

	// Root is the directory served to every user.
	Root string `yaml:"root"`

	// PassiveHost is the IPv4 address advertised in PASV replies.
	PassiveHost string `yaml:"passive_host"`

	// Welcome is the text of the 220 greeting.
	Welcome string `yaml:"welcome"`

	MaxConnections int           `yaml:"max_connections"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	DataTimeout    time.Duration `yaml:"data_timeout"`

	// MaxBandwidth caps each transfer in bytes per second. 0 is unlimited.
	MaxBandwidth int64 `yaml:"max_bandwidth"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// LogFormat is text or json.
	LogFormat string `yaml:"log_format"`

	// Users maps user names to plaintext or bcrypt secrets.
	Users map[string]string `yaml:"users"`

	// UsersDB is the path of an optional SQLite users database.
	UsersDB string `yaml:"users_db"`
}

// Default returns a Config with every default filled in.
func Default() *Config {
	return &Config{
		Listen:      DefaultListen,
		DataTimeout: DefaultDataTimeout,
		LogLevel:    DefaultLogLevel,
		LogFormat:   DefaultLogFormat,
	}
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes a YAML document on top of Default. Unknown keys are an
// error. The result is not validated.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "decode")
	}
	return cfg, nil
}

// Validate checks the values a server cannot start without.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen address is required")
	}
	if c.Root == "" {
		return errors.New("root directory is required")
	}
	if c.PassiveHost != "" && net.ParseIP(c.PassiveHost).To4() == nil {
		return errors.Errorf("passive_host %q is not an IPv4 address", c.PassiveHost)
	}
	if c.MaxConnections < 0 {
		return errors.New("max_connections must not be negative")
	}
	if c.MaxBandwidth < 0 {
		return errors.New("max_bandwidth must not be negative")
	}
	if c.IdleTimeout < 0 || c.DataTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return errors.Errorf("log_format %q must be text or json", c.LogFormat)
	}
	if len(c.Users) == 0 && c.UsersDB == "" {
		return errors.New("no users configured (set users or users_db)")
	}
	return nil
}

// Level returns LogLevel as a slog.Level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(c.LogLevel))); err != nil {
		return 0, errors.Errorf("log_level %q must be debug, info, warn or error", c.LogLevel)
	}
	return level, nil
}
