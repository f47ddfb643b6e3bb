// Package datasource bootstraps database connections from descriptor files
// dropped into a secrets directory. Each datasource is described by up to
// three JSON documents sharing a basename: metadata (always present), DSN
// fields, and driver connect arguments. Bootstrapping parses the triplet,
// applies driver-specific postprocessing, verifies package requirements, and
// registers the resulting connection.
package datasource

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	notesql "github.com/shibukawa/notesql"
)

// File suffixes of the descriptor triplet as written by the secrets injector.
const (
	metaSuffix        = ".meta_js"
	dsnSuffix         = ".dsn_js"
	connectArgsSuffix = ".ca_js"
)

// Metadata is the always-present part of a descriptor.
type Metadata struct {
	DriverName       string   `json:"drivername"`
	Name             string   `json:"name"`
	RequiredPackages []string `json:"required_python_modules"`
	AllowAutoinstall bool     `json:"allow_datasource_dialect_autoinstall"`
	Autocommit       *bool    `json:"sqlmagic_autocommit"`
}

// AutocommitEnabled reports whether statements may be left to the driver's
// autocommit behavior. Descriptors from before the flag existed default to
// true.
func (m Metadata) AutocommitEnabled() bool {
	return m.Autocommit == nil || *m.Autocommit
}

// Raw is an unparsed descriptor triplet. Only the metadata part is
// guaranteed present; BigQuery datasources are known to ship without any DSN
// part at all.
type Raw struct {
	ID              string
	MetaJSON        []byte
	DSNJSON         []byte
	ConnectArgsJSON []byte
}

// Descriptor is a parsed triplet. ConnectArgs are driver-level arguments;
// EngineArgs is where postprocessors promote arguments that belong at the
// engine-construction level instead.
type Descriptor struct {
	ID          string
	Metadata    Metadata
	DSN         map[string]any
	ConnectArgs map[string]any
	EngineArgs  map[string]any
}

// Handle returns the cell selector this datasource registers under.
func (d *Descriptor) Handle() string {
	return "@" + d.ID
}

// DatasourceUUID parses the descriptor id as a datasource uuid. Secrets
// injectors name descriptor files by uuid hex; hand-written descriptors may
// use any id, so a non-uuid id is not an error.
func (d *Descriptor) DatasourceUUID() (uuid.UUID, bool) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return uuid.UUID{}, false
	}

	return id, true
}

// Parse decodes a raw triplet. Absent DSN or connect-args parts become empty
// maps. Both maps are pruned of empty-string values: the upstream config
// editor can only express "unset this optional field" by sending a blank.
func Parse(raw Raw) (*Descriptor, error) {
	var meta Metadata
	if err := json.Unmarshal(raw.MetaJSON, &meta); err != nil {
		return nil, fmt.Errorf("%w: metadata for %s: %v", notesql.ErrBadDescriptor, raw.ID, err)
	}
	if meta.DriverName == "" {
		return nil, fmt.Errorf("%w: metadata for %s has no drivername", notesql.ErrBadDescriptor, raw.ID)
	}

	dsn := map[string]any{}
	if len(raw.DSNJSON) > 0 {
		if err := json.Unmarshal(raw.DSNJSON, &dsn); err != nil {
			return nil, fmt.Errorf("%w: dsn for %s: %v", notesql.ErrBadDescriptor, raw.ID, err)
		}
	}

	connectArgs := map[string]any{}
	if len(raw.ConnectArgsJSON) > 0 {
		if err := json.Unmarshal(raw.ConnectArgsJSON, &connectArgs); err != nil {
			return nil, fmt.Errorf("%w: connect args for %s: %v", notesql.ErrBadDescriptor, raw.ID, err)
		}
	}

	PruneEmptyStrings(dsn)
	PruneEmptyStrings(connectArgs)

	return &Descriptor{
		ID:          raw.ID,
		Metadata:    meta,
		DSN:         dsn,
		ConnectArgs: connectArgs,
		EngineArgs:  map[string]any{},
	}, nil
}

// LoadDir collects descriptor triplets from dir. A missing directory is the
// same as an empty one. The DSN and connect-args parts are optional per
// datasource; any other read failure aborts the scan.
func LoadDir(dir string) ([]Raw, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+metaSuffix))
	if err != nil {
		return nil, err
	}

	raws := make([]Raw, 0, len(matches))

	for _, metaPath := range matches {
		id := strings.TrimSuffix(filepath.Base(metaPath), metaSuffix)

		metaJSON, err := os.ReadFile(metaPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", metaPath, err)
		}

		raw := Raw{ID: id, MetaJSON: metaJSON}

		base := filepath.Join(dir, id)

		raw.DSNJSON, err = readOptional(base + dsnSuffix)
		if err != nil {
			return nil, err
		}

		raw.ConnectArgsJSON, err = readOptional(base + connectArgsSuffix)
		if err != nil {
			return nil, err
		}

		raws = append(raws, raw)
	}

	return raws, nil
}

func readOptional(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return data, nil
}
