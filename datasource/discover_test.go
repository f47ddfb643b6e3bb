package datasource

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alecthomas/assert/v2"
	notesql "github.com/shibukawa/notesql"
	"github.com/shibukawa/notesql/connection"
)

func TestDiscoverDefersBootstrap(t *testing.T) {
	b := testBootstrapper(t)
	ctx := context.Background()
	dir := t.TempDir()

	writeDescriptor(t, dir, "aaa111",
		`{"drivername": "sqlite", "name": "Deferred"}`,
		`{"database": ":memory:"}`,
		"")

	assert.NoError(t, b.Discover(ctx, dir))

	infos := b.Registry.List()
	assert.Equal(t, 2, len(infos))

	for _, info := range infos {
		assert.Equal(t, "deferred", info.State)
	}

	conn, err := b.Registry.Get(ctx, "@aaa111")
	assert.NoError(t, err)

	res, err := conn.Execute(ctx, "select 1 as one")
	assert.NoError(t, err)
	assert.True(t, res.HasRows)

	// Resolved now, and the same connection comes back by name.
	byName, err := b.Registry.Get(ctx, "Deferred")
	assert.NoError(t, err)
	assert.Equal(t, conn, byName)
}

func TestDiscoverRegistersLocalDatabase(t *testing.T) {
	b := testBootstrapper(t)
	ctx := context.Background()

	assert.NoError(t, b.Discover(ctx, t.TempDir()))

	conn, err := b.Registry.Get(ctx, LocalHandle)
	assert.NoError(t, err)
	assert.Equal(t, notesql.DialectDuckDB, conn.Dialect())
	assert.Equal(t, LocalName, conn.HumanName())

	res, err := conn.Execute(ctx, "select 42 as answer")
	assert.NoError(t, err)
	assert.True(t, res.HasRows)
	assert.Equal(t, "42", fmt.Sprintf("%v", res.Scalar()))
}

func TestDiscoverMissingDirStillRegistersLocal(t *testing.T) {
	b := testBootstrapper(t)

	assert.NoError(t, b.Discover(context.Background(), "/does/not/exist"))
	assert.Equal(t, 1, b.Registry.Len())
	assert.True(t, b.Registry.Known(LocalHandle))
}

func TestDiscoverRecordsUnparseableDescriptors(t *testing.T) {
	b := testBootstrapper(t)
	ctx := context.Background()
	dir := t.TempDir()

	writeDescriptor(t, dir, "bad111", `{broken`, "", "")

	assert.NoError(t, b.Discover(ctx, dir))

	_, err := b.Registry.Get(ctx, "@bad111")

	var unknown *connection.UnknownConnectionError
	assert.True(t, errors.As(err, &unknown))
	assert.Contains(t, unknown.Message, "malformed")
}

func TestDiscoverDeferredFailurePropagates(t *testing.T) {
	b := testBootstrapper(t)
	ctx := context.Background()
	dir := t.TempDir()

	writeDescriptor(t, dir, "ora111",
		`{"drivername": "oracle", "name": "Legacy"}`,
		"", "")

	assert.NoError(t, b.Discover(ctx, dir))

	// The driver failure surfaces on first use, not at discovery.
	_, err := b.Registry.Get(ctx, "@ora111")
	assert.IsError(t, err, notesql.ErrDriverNotLinked)

	// And is recorded for every use after that.
	_, err = b.Registry.Get(ctx, "@ora111")

	var unknown *connection.UnknownConnectionError
	assert.True(t, errors.As(err, &unknown))
	assert.Contains(t, unknown.Message, "oracle")
}
