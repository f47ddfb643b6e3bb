package datasource

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/google/uuid"

	notesql "github.com/shibukawa/notesql"
)

func TestParse(t *testing.T) {
	raw := Raw{
		ID:              "a1b2c3",
		MetaJSON:        []byte(`{"drivername": "postgresql", "name": "Analytics", "required_python_modules": ["psycopg2-binary"], "allow_datasource_dialect_autoinstall": true, "sqlmagic_autocommit": true}`),
		DSNJSON:         []byte(`{"host": "db.example.com", "port": 5432, "username": "app", "password": ""}`),
		ConnectArgsJSON: []byte(`{"connect_timeout": 10}`),
	}

	desc, err := Parse(raw)
	assert.NoError(t, err)

	assert.Equal(t, "a1b2c3", desc.ID)
	assert.Equal(t, "@a1b2c3", desc.Handle())
	assert.Equal(t, "postgresql", desc.Metadata.DriverName)
	assert.Equal(t, "Analytics", desc.Metadata.Name)
	assert.Equal(t, []string{"psycopg2-binary"}, desc.Metadata.RequiredPackages)
	assert.True(t, desc.Metadata.AllowAutoinstall)
	assert.True(t, desc.Metadata.AutocommitEnabled())

	// The blank password must have been pruned.
	_, ok := desc.DSN["password"]
	assert.False(t, ok)
	assert.Equal(t, "db.example.com", desc.DSN["host"].(string))

	assert.Equal(t, float64(10), desc.ConnectArgs["connect_timeout"].(float64))
	assert.Equal(t, 0, len(desc.EngineArgs))
}

func TestParseMetadataOnly(t *testing.T) {
	desc, err := Parse(Raw{
		ID:       "bq1",
		MetaJSON: []byte(`{"drivername": "bigquery", "name": "Warehouse"}`),
	})
	assert.NoError(t, err)

	assert.Equal(t, 0, len(desc.DSN))
	assert.Equal(t, 0, len(desc.ConnectArgs))
	assert.True(t, desc.Metadata.AutocommitEnabled(), "autocommit defaults on when the flag is absent")
}

func TestParseRejectsBadDescriptors(t *testing.T) {
	tests := []struct {
		name string
		raw  Raw
	}{
		{
			name: "metadata is not json",
			raw:  Raw{ID: "x", MetaJSON: []byte(`{nope`)},
		},
		{
			name: "metadata without drivername",
			raw:  Raw{ID: "x", MetaJSON: []byte(`{"name": "No Driver"}`)},
		},
		{
			name: "dsn is not json",
			raw: Raw{
				ID:       "x",
				MetaJSON: []byte(`{"drivername": "sqlite", "name": "Broken"}`),
				DSNJSON:  []byte(`[1,`),
			},
		},
		{
			name: "connect args are not json",
			raw: Raw{
				ID:              "x",
				MetaJSON:        []byte(`{"drivername": "sqlite", "name": "Broken"}`),
				ConnectArgsJSON: []byte(`"not an object`),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			assert.IsError(t, err, notesql.ErrBadDescriptor)
		})
	}
}

func TestParseAutocommitOff(t *testing.T) {
	desc, err := Parse(Raw{
		ID:       "cl1",
		MetaJSON: []byte(`{"drivername": "clickhouse+http", "name": "Events", "sqlmagic_autocommit": false}`),
	})
	assert.NoError(t, err)
	assert.False(t, desc.Metadata.AutocommitEnabled())
}

func TestDatasourceUUID(t *testing.T) {
	// Injected descriptors are named by uuid hex, without dashes.
	id := strings.ReplaceAll(uuid.NewString(), "-", "")

	desc, err := Parse(Raw{
		ID:       id,
		MetaJSON: []byte(`{"drivername": "postgresql", "name": "Injected"}`),
	})
	assert.NoError(t, err)

	parsed, ok := desc.DatasourceUUID()
	assert.True(t, ok)
	assert.Equal(t, id, strings.ReplaceAll(parsed.String(), "-", ""))

	// Hand-written descriptors may use any id.
	desc, err = Parse(Raw{
		ID:       "scratch",
		MetaJSON: []byte(`{"drivername": "sqlite", "name": "Scratch"}`),
	})
	assert.NoError(t, err)

	_, ok = desc.DatasourceUUID()
	assert.False(t, ok)
}

func writeDescriptor(t *testing.T, dir, id, meta, dsn, connectArgs string) {
	t.Helper()

	assert.NoError(t, os.WriteFile(filepath.Join(dir, id+metaSuffix), []byte(meta), 0o600))
	if dsn != "" {
		assert.NoError(t, os.WriteFile(filepath.Join(dir, id+dsnSuffix), []byte(dsn), 0o600))
	}
	if connectArgs != "" {
		assert.NoError(t, os.WriteFile(filepath.Join(dir, id+connectArgsSuffix), []byte(connectArgs), 0o600))
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()

	writeDescriptor(t, dir, "aaa111",
		`{"drivername": "sqlite", "name": "First"}`,
		`{"database": ":memory:"}`,
		`{"timeout": 5}`)
	writeDescriptor(t, dir, "bbb222",
		`{"drivername": "bigquery", "name": "Second"}`,
		"", "")

	// Unrelated files are not descriptors.
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o600))

	raws, err := LoadDir(dir)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(raws))

	assert.Equal(t, "aaa111", raws[0].ID)
	assert.Equal(t, `{"database": ":memory:"}`, string(raws[0].DSNJSON))
	assert.Equal(t, `{"timeout": 5}`, string(raws[0].ConnectArgsJSON))

	assert.Equal(t, "bbb222", raws[1].ID)
	assert.Zero(t, raws[1].DSNJSON)
	assert.Zero(t, raws[1].ConnectArgsJSON)
}

func TestLoadDirMissing(t *testing.T) {
	raws, err := LoadDir(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.NoError(t, err)
	assert.Equal(t, 0, len(raws))
}
