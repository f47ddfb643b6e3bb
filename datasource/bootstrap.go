package datasource

import (
	"context"
	"log/slog"

	notesql "github.com/shibukawa/notesql"
	"github.com/shibukawa/notesql/connection"
)

// Outcome reports what happened to one descriptor during eager bootstrap.
// Exactly one of Conn and Err is set.
type Outcome struct {
	ID     string
	Handle string
	Name   string
	Conn   *connection.Connection
	Err    error
}

// Bootstrapper turns descriptors into registered connections. The zero value
// is not usable; construct with NewBootstrapper, or fill in Registry and
// leave the rest to their defaults.
type Bootstrapper struct {
	Registry   *connection.Registry
	Installer  Installer
	Processors *ProcessorSet
	Logger     *slog.Logger

	// MaxRows caps result sets on the connections built here. Zero means
	// unlimited.
	MaxRows int

	// Autoinstall, when non-nil, overrides every descriptor's own
	// autoinstall flag.
	Autoinstall *bool
}

// NewBootstrapper builds a Bootstrapper with the default postprocessors and
// a pip-backed installer.
func NewBootstrapper(reg *connection.Registry, log *slog.Logger) *Bootstrapper {
	if log == nil {
		log = slog.Default()
	}

	return &Bootstrapper{
		Registry:   reg,
		Installer:  NewExecInstaller("", log),
		Processors: DefaultProcessors(),
		Logger:     log,
	}
}

func (b *Bootstrapper) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}

	return slog.Default()
}

func (b *Bootstrapper) installer() Installer {
	if b.Installer != nil {
		return b.Installer
	}

	return NewExecInstaller("", b.logger())
}

func (b *Bootstrapper) processors() *ProcessorSet {
	if b.Processors != nil {
		return b.Processors
	}

	return DefaultProcessors()
}

// Bootstrap builds and registers the connection for one descriptor. Any
// failure along the way, from unparseable JSON to a driver refusing the DSN,
// is logged, recorded in the registry so cells using the handle get a
// specific message, and returned in the Outcome. One bad descriptor never
// aborts a batch.
func (b *Bootstrapper) Bootstrap(ctx context.Context, raw Raw) Outcome {
	out := Outcome{ID: raw.ID, Handle: "@" + raw.ID}

	desc, err := Parse(raw)
	if err != nil {
		b.fail(&out, err)

		return out
	}

	out.Name = desc.Metadata.Name

	conn, err := b.connect(ctx, desc)
	if err != nil {
		b.fail(&out, err)

		return out
	}

	if err := b.Registry.Register(conn); err != nil {
		_ = conn.Close()
		b.fail(&out, err)

		return out
	}

	out.Conn = conn
	b.logger().Info("bootstrapped datasource",
		"datasource_id", out.ID,
		"datasource_name", out.Name,
		"dialect", conn.Dialect())

	return out
}

// BootstrapAll bootstraps every descriptor and reports one Outcome each, in
// input order.
func (b *Bootstrapper) BootstrapAll(ctx context.Context, raws []Raw) []Outcome {
	outcomes := make([]Outcome, 0, len(raws))
	for _, raw := range raws {
		outcomes = append(outcomes, b.Bootstrap(ctx, raw))
	}

	return outcomes
}

// BootstrapDir loads descriptors from dir and bootstraps them all. The error
// covers the directory scan only; per-descriptor failures live in the
// outcomes.
func (b *Bootstrapper) BootstrapDir(ctx context.Context, dir string) ([]Outcome, error) {
	raws, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}

	return b.BootstrapAll(ctx, raws), nil
}

func (b *Bootstrapper) fail(out *Outcome, err error) {
	out.Err = err

	b.logger().Error("unable to bootstrap datasource",
		"datasource_id", out.ID,
		"datasource_name", out.Name,
		"error", err)

	if rerr := b.Registry.RecordFailure(out.Handle, out.Name, err.Error()); rerr != nil {
		b.logger().Warn("could not record bootstrap failure",
			"datasource_id", out.ID,
			"error", rerr)
	}
}

// connect runs the post-parse pipeline for a descriptor: driver fixups,
// package requirements, the commit blacklist, DSN rendering, and finally the
// connection itself.
func (b *Bootstrapper) connect(ctx context.Context, desc *Descriptor) (*connection.Connection, error) {
	dialect := notesql.EffectiveDialect(desc.Metadata.DriverName)

	if proc, ok := b.processors().Lookup(dialect); ok {
		if err := proc.Process(ctx, desc); err != nil {
			return nil, err
		}
	}

	allowInstall := desc.Metadata.AllowAutoinstall
	if b.Autoinstall != nil {
		allowInstall = *b.Autoinstall
	}

	if err := EnsureRequirements(ctx, b.installer(), desc.ID,
		desc.Metadata.RequiredPackages, allowInstall); err != nil {
		return nil, err
	}

	if !desc.Metadata.AutocommitEnabled() {
		if err := notesql.MarkNoExplicitCommit(string(dialect)); err != nil {
			return nil, err
		}
	}

	dsn, err := BuildDSN(dialect, desc.DSN)
	if err != nil {
		return nil, err
	}

	return connection.New(desc.Handle(), desc.Metadata.Name, desc.Metadata.DriverName, dsn,
		connection.WithLogger(b.logger()),
		connection.WithMaxRows(b.MaxRows))
}
