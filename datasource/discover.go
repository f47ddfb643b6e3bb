package datasource

import (
	"context"

	"github.com/shibukawa/notesql/connection"
)

// The implicit local scratch database every kernel carries, backed by an
// in-memory DuckDB instance.
const (
	LocalHandle = "@local"
	LocalName   = "Local Database (DuckDB)"
)

// Discover scans the secrets directory and registers a deferred bootstrap
// per descriptor, plus the implicit local database. Nothing connects until a
// cell first uses a handle, so kernel startup stays fast no matter how many
// datasources a project carries.
//
// Descriptors that cannot even be parsed are recorded as failures right
// away. A directory that does not exist is simply empty.
func (b *Bootstrapper) Discover(ctx context.Context, dir string) error {
	raws, err := LoadDir(dir)
	if err != nil {
		return err
	}

	for _, raw := range raws {
		b.registerDeferred(raw)
	}

	return b.RegisterLocal()
}

// RegisterLocal registers the always-available local database.
func (b *Bootstrapper) RegisterLocal() error {
	return b.Registry.RegisterDeferred(LocalHandle, LocalName,
		func(ctx context.Context) (*connection.Connection, error) {
			return connection.New(LocalHandle, LocalName, "duckdb", "",
				connection.WithLogger(b.logger()),
				connection.WithMaxRows(b.MaxRows))
		})
}

func (b *Bootstrapper) registerDeferred(raw Raw) {
	handle := "@" + raw.ID

	desc, err := Parse(raw)
	if err != nil {
		b.logger().Error("unable to register datasource",
			"datasource_id", raw.ID,
			"error", err)

		if rerr := b.Registry.RecordFailure(handle, "", err.Error()); rerr != nil {
			b.logger().Warn("could not record bootstrap failure",
				"datasource_id", raw.ID,
				"error", rerr)
		}

		return
	}

	err = b.Registry.RegisterDeferred(handle, desc.Metadata.Name,
		func(ctx context.Context) (*connection.Connection, error) {
			return b.connect(ctx, desc)
		})
	if err != nil {
		b.logger().Error("unable to register datasource",
			"datasource_id", raw.ID,
			"datasource_name", desc.Metadata.Name,
			"error", err)
	}
}
