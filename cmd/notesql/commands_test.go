package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"

	notesql "github.com/shibukawa/notesql"
	"github.com/shibukawa/notesql/connection"
	"github.com/shibukawa/notesql/filesync"
)

// newTestContext builds a command context with default configuration, a
// discarded log and a buffer in place of stdout.
func newTestContext(t *testing.T) (*Context, *bytes.Buffer) {
	t.Helper()

	config, err := notesql.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NoError(t, err)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	out := &bytes.Buffer{}

	appCtx := &Context{
		Config:   config,
		Registry: connection.NewRegistry(logger),
		Logger:   logger,
		Stdout:   out,
		Quiet:    true,
	}
	t.Cleanup(appCtx.Close)

	return appCtx, out
}

// writeScratchDescriptor creates a secrets directory holding one sqlite
// datasource with no DSN part, which bootstraps in memory.
func writeScratchDescriptor(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	meta := `{"drivername": "sqlite", "name": "Scratch"}`

	err := os.WriteFile(filepath.Join(dir, "scratch.meta_js"), []byte(meta), 0o600)
	assert.NoError(t, err)

	return dir
}

func TestRenderCellValue(t *testing.T) {
	t.Run("NilRendersNothing", func(t *testing.T) {
		var buf bytes.Buffer

		assert.NoError(t, renderCellValue(&buf, nil, false))
		assert.Equal(t, "", buf.String())
	})

	t.Run("TableRendersAligned", func(t *testing.T) {
		var buf bytes.Buffer

		table := notesql.NewTable("id", "name")
		table.AppendRow(int64(1), "alice")

		assert.NoError(t, renderCellValue(&buf, table, false))
		assert.Contains(t, buf.String(), "id  name")
		assert.Contains(t, buf.String(), "alice")
	})

	t.Run("CountWordsAffectedRows", func(t *testing.T) {
		var buf bytes.Buffer

		assert.NoError(t, renderCellValue(&buf, int64(3), false))
		assert.Equal(t, "3 rows affected.\n", buf.String())
	})

	t.Run("SingleRowSingular", func(t *testing.T) {
		var buf bytes.Buffer

		assert.NoError(t, renderCellValue(&buf, int64(1), false))
		assert.Equal(t, "1 row affected.\n", buf.String())
	})

	t.Run("NegativeCountIsDone", func(t *testing.T) {
		var buf bytes.Buffer

		assert.NoError(t, renderCellValue(&buf, int64(-1), false))
		assert.Equal(t, "Done.\n", buf.String())
	})

	t.Run("ScalarIntStaysBare", func(t *testing.T) {
		var buf bytes.Buffer

		assert.NoError(t, renderCellValue(&buf, int64(42), true))
		assert.Equal(t, "42\n", buf.String())
	})

	t.Run("StringValue", func(t *testing.T) {
		var buf bytes.Buffer

		assert.NoError(t, renderCellValue(&buf, "hello", false))
		assert.Equal(t, "hello\n", buf.String())
	})
}

func TestNewLogger(t *testing.T) {
	ctx := context.Background()

	t.Run("DefaultLevelIsInfo", func(t *testing.T) {
		logger, file, err := newLogger(notesql.LogConfig{}, false)
		assert.NoError(t, err)
		assert.Zero(t, file)
		assert.False(t, logger.Enabled(ctx, slog.LevelDebug))
		assert.True(t, logger.Enabled(ctx, slog.LevelInfo))
	})

	t.Run("ConfiguredLevel", func(t *testing.T) {
		logger, _, err := newLogger(notesql.LogConfig{Level: "error"}, false)
		assert.NoError(t, err)
		assert.False(t, logger.Enabled(ctx, slog.LevelInfo))
		assert.True(t, logger.Enabled(ctx, slog.LevelError))
	})

	t.Run("VerboseOverridesLevel", func(t *testing.T) {
		logger, _, err := newLogger(notesql.LogConfig{Level: "error"}, true)
		assert.NoError(t, err)
		assert.True(t, logger.Enabled(ctx, slog.LevelDebug))
	})

	t.Run("FileTarget", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "kernel.log")

		logger, file, err := newLogger(notesql.LogConfig{Path: path}, false)
		assert.NoError(t, err)
		assert.NotZero(t, file)

		logger.Info("logger self test")
		assert.NoError(t, file.Close())

		data, err := os.ReadFile(path)
		assert.NoError(t, err)
		assert.Contains(t, string(data), "logger self test")
	})
}

func TestDatasourcesTable(t *testing.T) {
	t.Run("AllHealthy", func(t *testing.T) {
		infos := []connection.Info{
			{Handle: "@orders", Name: "Orders", State: "ready", Dialect: notesql.DialectPostgres},
			{Handle: "@stats", Name: "Stats", State: "deferred"},
		}

		table := datasourcesTable(infos)
		assert.Equal(t, []string{"Handle", "Name", "Dialect", "State"}, table.Columns)
		assert.Equal(t, 2, len(table.Rows))
	})

	t.Run("FailureAddsMessageColumn", func(t *testing.T) {
		infos := []connection.Info{
			{Handle: "@orders", Name: "Orders", State: "ready", Dialect: notesql.DialectPostgres},
			{Handle: "@broken", Name: "Broken", State: "failed", Failure: "missing drivername"},
		}

		table := datasourcesTable(infos)
		assert.Equal(t, []string{"Handle", "Name", "Dialect", "State", "Message"}, table.Columns)
		assert.Equal(t, "missing drivername", table.Rows[1][4].(string))
		assert.Equal(t, "", table.Rows[0][4].(string))
	})
}

func TestSidecarError(t *testing.T) {
	t.Run("APIErrorBecomesUserMessage", func(t *testing.T) {
		apiErr := &filesync.APIError{StatusCode: 500, Body: "boom", Operation: "pull files"}

		err := sidecarError(apiErr)
		assert.Equal(t,
			"There was an error while doing the pull files operation. Contact support with error code 500.",
			err.Error())
	})

	t.Run("WrappedAPIError", func(t *testing.T) {
		apiErr := &filesync.APIError{StatusCode: 404, Body: "", Operation: "get file status"}
		wrapped := fmt.Errorf("while syncing: %w", apiErr)

		err := sidecarError(wrapped)
		assert.Contains(t, err.Error(), "error code 404")
	})

	t.Run("OtherErrorsPassThrough", func(t *testing.T) {
		plain := errors.New("connection refused")

		assert.True(t, errors.Is(sidecarError(plain), plain))
	})
}

func TestCellCmd(t *testing.T) {
	t.Run("ScalarSelect", func(t *testing.T) {
		appCtx, out := newTestContext(t)
		secrets := writeScratchDescriptor(t)

		cmd := &CellCmd{Secrets: secrets, Cell: "@scratch #scalar select 1 + 1"}
		assert.NoError(t, cmd.Run(appCtx))
		assert.Equal(t, "2\n", out.String())
	})

	t.Run("RowSet", func(t *testing.T) {
		appCtx, out := newTestContext(t)
		secrets := writeScratchDescriptor(t)

		cmd := &CellCmd{Secrets: secrets, Cell: "@scratch select 'hello' as greeting"}
		assert.NoError(t, cmd.Run(appCtx))
		assert.Contains(t, out.String(), "greeting")
		assert.Contains(t, out.String(), "hello")
	})

	t.Run("AffectedRows", func(t *testing.T) {
		appCtx, out := newTestContext(t)
		secrets := writeScratchDescriptor(t)

		cmd := &CellCmd{
			Secrets: secrets,
			Cell:    "@scratch create table t (id integer); insert into t values (1)",
		}
		assert.NoError(t, cmd.Run(appCtx))
		assert.Equal(t, "1 row affected.\n", out.String())
	})

	t.Run("ResolvesByHumanName", func(t *testing.T) {
		appCtx, out := newTestContext(t)
		secrets := writeScratchDescriptor(t)

		cmd := &CellCmd{Secrets: secrets, Cell: "Scratch #scalar select 7"}
		assert.NoError(t, cmd.Run(appCtx))
		assert.Equal(t, "7\n", out.String())
	})
}

func TestDatasourcesCmd(t *testing.T) {
	appCtx, out := newTestContext(t)
	secrets := writeScratchDescriptor(t)

	cmd := &DatasourcesCmd{Secrets: secrets}
	assert.NoError(t, cmd.Run(appCtx))

	listing := out.String()
	assert.Contains(t, listing, "@scratch")
	assert.Contains(t, listing, "Scratch")
	assert.Contains(t, listing, "sqlite")
	assert.Contains(t, listing, "ready")
	assert.Contains(t, listing, "@local")
	assert.Contains(t, listing, "deferred")
}

func TestSchemaCmd(t *testing.T) {
	t.Run("JSONToStdout", func(t *testing.T) {
		appCtx, out := newTestContext(t)
		secrets := writeScratchDescriptor(t)

		seed := &CellCmd{
			Secrets: secrets,
			Cell:    "@scratch create table users (id integer primary key, name text not null)",
		}
		assert.NoError(t, seed.Run(appCtx))
		out.Reset()

		cmd := &SchemaCmd{Datasource: "@scratch", Format: "json"}
		assert.NoError(t, cmd.Run(appCtx))
		assert.Contains(t, out.String(), `"main.users"`)
		assert.Contains(t, out.String(), `"sqlite"`)
	})

	t.Run("XMLToFile", func(t *testing.T) {
		appCtx, _ := newTestContext(t)
		secrets := writeScratchDescriptor(t)

		seed := &CellCmd{
			Secrets: secrets,
			Cell:    "@scratch create table users (id integer primary key)",
		}
		assert.NoError(t, seed.Run(appCtx))

		output := filepath.Join(t.TempDir(), "schema.xml")
		cmd := &SchemaCmd{Datasource: "@scratch", Format: "xml", Output: output}
		assert.NoError(t, cmd.Run(appCtx))

		data, err := os.ReadFile(output)
		assert.NoError(t, err)
		assert.Contains(t, string(data), `<table name="main.users" type="TABLE">`)
	})

	t.Run("UnknownDatasource", func(t *testing.T) {
		appCtx, _ := newTestContext(t)
		secrets := writeScratchDescriptor(t)

		seed := &DatasourcesCmd{Secrets: secrets}
		assert.NoError(t, seed.Run(appCtx))

		cmd := &SchemaCmd{Datasource: "@nowhere", Format: "json"}
		err := cmd.Run(appCtx)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "@nowhere")
	})
}
