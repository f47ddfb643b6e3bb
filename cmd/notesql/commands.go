package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"

	notesql "github.com/shibukawa/notesql"
	"github.com/shibukawa/notesql/connection"
	"github.com/shibukawa/notesql/datasource"
	"github.com/shibukawa/notesql/filesync"
)

// Context represents the global context for commands
type Context struct {
	Config   *notesql.Config
	Registry *connection.Registry
	Logger   *slog.Logger
	Stdout   io.Writer

	Verbose bool
	Quiet   bool

	logFile      *os.File
	bootstrapped bool
}

func newContext(configPath string, verbose, quiet bool) (*Context, error) {
	config, err := notesql.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, logFile, err := newLogger(config.Log, verbose)
	if err != nil {
		return nil, err
	}

	return &Context{
		Config:   config,
		Registry: connection.NewRegistry(logger),
		Logger:   logger,
		Stdout:   os.Stdout,
		Verbose:  verbose,
		Quiet:    quiet,
		logFile:  logFile,
	}, nil
}

// newLogger builds the JSON logger. These lines are for the kernel log,
// never for notebook output.
func newLogger(cfg notesql.LogConfig, verbose bool) (*slog.Logger, *os.File, error) {
	level := slog.LevelInfo

	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if verbose {
		level = slog.LevelDebug
	}

	out := io.Writer(os.Stderr)

	var file *os.File

	if cfg.Path != "" {
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}

		out = f
		file = f
	}

	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})), file, nil
}

// Close releases everything the commands opened: connections first, the
// log file last.
func (c *Context) Close() {
	if c.Registry != nil {
		if err := c.Registry.CloseAll(); err != nil {
			c.Logger.Warn("failed closing connections", "error", err)
		}
	}

	if c.logFile != nil {
		_ = c.logFile.Close()
	}
}

// bootstrap loads every descriptor triplet from the secrets directory and
// registers each outcome, success or failure, in the registry, plus the
// implicit local database. Calling it again is a no-op so commands can
// share one Context.
func (c *Context) bootstrap(ctx context.Context, secretsDir string) error {
	if c.bootstrapped {
		return nil
	}

	if secretsDir == "" {
		secretsDir = c.Config.SecretsDir
	}

	b := datasource.NewBootstrapper(c.Registry, c.Logger)
	b.Installer = datasource.NewExecInstaller(c.Config.Packages.InstallCommand, c.Logger)
	b.MaxRows = c.Config.Query.MaxRows
	b.Autoinstall = c.Config.Packages.AllowAutoinstall

	outcomes, err := b.BootstrapDir(ctx, secretsDir)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", secretsDir, err)
	}

	for _, outcome := range outcomes {
		if outcome.Err != nil && !c.Quiet {
			color.Yellow("Datasource %s failed to bootstrap: %v", outcome.Handle, outcome.Err)
		}
	}

	if err := b.RegisterLocal(); err != nil {
		c.Logger.Warn("local database unavailable", "error", err)
	}

	c.bootstrapped = true

	return nil
}

// sidecarFS builds the file-sync client from configuration and scopes it
// to one tree.
func (c *Context) sidecarFS(kind filesync.FileKind) *filesync.FileSystemAPI {
	client := filesync.NewClient(
		filesync.WithBaseURL(c.Config.Sidecar.BaseURL),
		filesync.WithVersion(c.Config.Sidecar.Version),
		filesync.WithTimeout(c.Config.Sidecar.RequestTimeout),
	)

	return client.FS(kind)
}
