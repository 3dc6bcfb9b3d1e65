// Command ftpd serves a directory over FTP to the users of a static
// credential table.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	cli "github.com/urfave/cli/v2"

	"github.com/gonzalop/ftpd/internal/config"
	"github.com/gonzalop/ftpd/internal/credentials"
	"github.com/gonzalop/ftpd/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ftpd:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ftpd",
		Usage: "serve a directory over FTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML configuration file", EnvVars: []string{"FTPD_CONFIG"}},
			&cli.StringFlag{Name: "listen", Aliases: []string{"l"}, Usage: "control connection address", EnvVars: []string{"FTPD_LISTEN"}},
			&cli.StringFlag{Name: "root", Aliases: []string{"r"}, Usage: "directory to serve", EnvVars: []string{"FTPD_ROOT"}},
			&cli.StringFlag{Name: "passive-host", Usage: "IPv4 address advertised in PASV replies", EnvVars: []string{"FTPD_PASSIVE_HOST"}},
			&cli.StringFlag{Name: "welcome", Usage: "220 greeting text", EnvVars: []string{"FTPD_WELCOME"}},
			&cli.IntFlag{Name: "max-connections", Usage: "simultaneous connection limit (0 = unlimited)", EnvVars: []string{"FTPD_MAX_CONNECTIONS"}},
			&cli.Int64Flag{Name: "max-bandwidth", Usage: "per-transfer limit in bytes per second (0 = unlimited)", EnvVars: []string{"FTPD_MAX_BANDWIDTH"}},
			&cli.DurationFlag{Name: "idle-timeout", Usage: "close idle control connections after this long (0 = never)", EnvVars: []string{"FTPD_IDLE_TIMEOUT"}},
			&cli.DurationFlag{Name: "data-timeout", Usage: "wait this long for the client to open a data connection", EnvVars: []string{"FTPD_DATA_TIMEOUT"}},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error", EnvVars: []string{"FTPD_LOG_LEVEL"}},
			&cli.StringFlag{Name: "log-format", Usage: "text or json", EnvVars: []string{"FTPD_LOG_FORMAT"}},
			&cli.StringSliceFlag{Name: "user", Usage: "name:secret pair, repeatable", EnvVars: []string{"FTPD_USERS"}},
			&cli.StringFlag{Name: "users-db", Usage: "SQLite users database", EnvVars: []string{"FTPD_USERS_DB"}},
		},
		Action: runServer,
	}
}

func runServer(c *cli.Context) error {
	cfg, err := configFromFlags(c)
	if err != nil {
		return err
	}
	logger, err := newLogger(c.App.ErrWriter, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg, logger)
}

// configFromFlags loads the config file, if any, and applies the flags
// that were set on top of it.
func configFromFlags(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if c.IsSet("listen") {
		cfg.Listen = c.String("listen")
	}
	if c.IsSet("root") {
		cfg.Root = c.String("root")
	}
	if c.IsSet("passive-host") {
		cfg.PassiveHost = c.String("passive-host")
	}
	if c.IsSet("welcome") {
		cfg.Welcome = c.String("welcome")
	}
	if c.IsSet("max-connections") {
		cfg.MaxConnections = c.Int("max-connections")
	}
	if c.IsSet("max-bandwidth") {
		cfg.MaxBandwidth = c.Int64("max-bandwidth")
	}
	if c.IsSet("idle-timeout") {
		cfg.IdleTimeout = c.Duration("idle-timeout")
	}
	if c.IsSet("data-timeout") {
		cfg.DataTimeout = c.Duration("data-timeout")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.LogFormat = c.String("log-format")
	}
	if c.IsSet("users-db") {
		cfg.UsersDB = c.String("users-db")
	}
	for _, pair := range c.StringSlice("user") {
		name, secret, ok := strings.Cut(pair, ":")
		if !ok || name == "" {
			return nil, errors.Errorf("--user %q must be name:secret", pair)
		}
		if cfg.Users == nil {
			cfg.Users = make(map[string]string)
		}
		cfg.Users[name] = secret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// loadCredentials builds the table from the config users and the users
// database. Database entries win on duplicate names.
func loadCredentials(ctx context.Context, cfg *config.Config) (*credentials.Table, error) {
	table := credentials.New(cfg.Users)
	if cfg.UsersDB == "" {
		return table, nil
	}
	fromDB, err := credentials.LoadSQLite(ctx, cfg.UsersDB)
	if err != nil {
		return nil, err
	}
	return table.Merge(fromDB), nil
}

func serverOptions(cfg *config.Config, driver server.Driver, logger *slog.Logger) []server.Option {
	options := []server.Option{
		server.WithDriver(driver),
		server.WithLogger(logger),
		server.WithMaxConnections(cfg.MaxConnections),
		server.WithBandwidthLimit(cfg.MaxBandwidth),
		server.WithIdleTimeout(cfg.IdleTimeout),
		server.WithDataTimeout(cfg.DataTimeout),
	}
	if cfg.Welcome != "" {
		options = append(options, server.WithWelcomeMessage(cfg.Welcome))
	}
	if cfg.PassiveHost != "" {
		options = append(options, server.WithPassiveHost(cfg.PassiveHost))
	}
	return options
}

// serve runs the server until ctx is done, then shuts it down. A bind
// failure is returned at once.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	table, err := loadCredentials(ctx, cfg)
	if err != nil {
		return err
	}
	driver, err := server.NewFSDriver(cfg.Root, server.WithCredentials(table))
	if err != nil {
		return err
	}
	srv, err := server.NewServer(cfg.Listen, serverOptions(cfg, driver, logger)...)
	if err != nil {
		return err
	}
	logger.Info("server_starting", "root", cfg.Root, "users", table.Len())

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	if err := <-errc; err != nil && !errors.Is(err, server.ErrServerClosed) {
		return err
	}
	return nil
}
