// Package schemaexport snapshots the structure of a live connection into
// the tbls interchange shape. The JSON artefact matches what `tbls out`
// produces, so downstream tooling that already consumes tbls schema files
// can read a kernel-side export without its own database credentials. An
// XML form is provided for consumers that cannot take JSON.
package schemaexport

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/beevik/etree"
	tblsschema "github.com/k1LoW/tbls/schema"

	notesql "github.com/shibukawa/notesql"
	"github.com/shibukawa/notesql/introspect"
)

// Options narrows a snapshot. Include and Exclude are * wildcard patterns
// over bare relation names; exclusion wins, and an empty include list
// admits everything.
type Options struct {
	// Include patterns over relation names. Empty includes everything.
	Include []string
	// Exclude patterns over relation names.
	Exclude []string
	// IncludeViews overrides the default behaviour of exporting views when non-nil.
	IncludeViews *bool
}

func (o Options) includeViews() bool {
	if o.IncludeViews == nil {
		return true
	}

	return *o.IncludeViews
}

// BuildTbls assembles a tbls schema document from a live introspector.
// Relations are qualified as "schema.relation" and the connection's
// default schema is recorded as the driver's current schema, the same
// shape tbls emits for multi-schema engines.
func BuildTbls(ctx context.Context, intro introspect.Introspector, dialect notesql.Dialect, dbName string, opts Options) (*tblsschema.Schema, error) {
	if intro == nil {
		return nil, ErrNilIntrospector
	}

	defaultSchema, err := intro.DefaultSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("schemaexport: resolve default schema: %w", err)
	}

	schemaNames, err := intro.SchemaNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("schemaexport: list schemas: %w", err)
	}

	sort.Strings(schemaNames)

	var tables []*tblsschema.Table

	for _, schemaName := range schemaNames {
		tableNames, err := intro.TableNames(ctx, schemaName)
		if err != nil {
			return nil, fmt.Errorf("schemaexport: list tables in %s: %w", schemaName, err)
		}

		for _, name := range tableNames {
			if !shouldInclude(name, opts.Include, opts.Exclude) {
				continue
			}

			tbl, err := buildRelation(ctx, intro, schemaName, name, "TABLE")
			if err != nil {
				return nil, err
			}

			tables = append(tables, tbl)
		}

		if !opts.includeViews() {
			continue
		}

		viewNames, err := intro.ViewNames(ctx, schemaName)
		if err != nil {
			return nil, fmt.Errorf("schemaexport: list views in %s: %w", schemaName, err)
		}

		for _, name := range viewNames {
			if !shouldInclude(name, opts.Include, opts.Exclude) {
				continue
			}

			view, err := buildRelation(ctx, intro, schemaName, name, "VIEW")
			if err != nil {
				return nil, err
			}

			definition, err := intro.ViewDefinition(ctx, schemaName, name)
			if err != nil {
				return nil, fmt.Errorf("schemaexport: read definition of %s: %w", view.Name, err)
			}

			view.Def = definition
			tables = append(tables, view)
		}
	}

	doc := &tblsschema.Schema{
		Name:   dbName,
		Tables: tables,
		Driver: &tblsschema.Driver{Name: string(dialect)},
	}
	if defaultSchema != "" {
		doc.Driver.Meta = &tblsschema.DriverMeta{CurrentSchema: defaultSchema}
	}

	return doc, nil
}

func buildRelation(ctx context.Context, intro introspect.Introspector, schemaName, relation, relType string) (*tblsschema.Table, error) {
	cols, err := intro.Columns(ctx, schemaName, relation)
	if err != nil {
		return nil, fmt.Errorf("schemaexport: describe %s: %w", qualifiedName(schemaName, relation), err)
	}

	columns := make([]*tblsschema.Column, 0, len(cols))
	for _, col := range cols {
		columns = append(columns, &tblsschema.Column{
			Name:     col.Name,
			Type:     col.DataType,
			Nullable: col.Nullable,
			Default:  nullString(col.Default),
			Comment:  stringValue(col.Comment),
		})
	}

	return &tblsschema.Table{
		Name:    qualifiedName(schemaName, relation),
		Type:    relType,
		Columns: columns,
	}, nil
}

// WriteJSON writes the schema as indented JSON, the artefact shape the
// tbls toolchain itself reads and writes.
func WriteJSON(w io.Writer, doc *tblsschema.Schema) error {
	if doc == nil {
		return ErrNilSchema
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("schemaexport: encode schema JSON: %w", err)
	}

	return nil
}

// WriteXML writes the schema as an XML document with one element per
// relation and column. View definitions travel as a child element since
// their text does not fit an attribute.
func WriteXML(w io.Writer, doc *tblsschema.Schema) error {
	if doc == nil {
		return ErrNilSchema
	}

	out := etree.NewDocument()
	out.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := out.CreateElement("schema")
	root.CreateAttr("name", doc.Name)

	if doc.Driver != nil {
		root.CreateAttr("driver", doc.Driver.Name)

		if doc.Driver.Meta != nil && doc.Driver.Meta.CurrentSchema != "" {
			root.CreateAttr("currentSchema", doc.Driver.Meta.CurrentSchema)
		}
	}

	for _, tbl := range doc.Tables {
		if tbl == nil {
			continue
		}

		tableEl := root.CreateElement("table")
		tableEl.CreateAttr("name", tbl.Name)
		tableEl.CreateAttr("type", tbl.Type)

		if tbl.Comment != "" {
			tableEl.CreateAttr("comment", tbl.Comment)
		}

		for _, col := range tbl.Columns {
			if col == nil {
				continue
			}

			colEl := tableEl.CreateElement("column")
			colEl.CreateAttr("name", col.Name)
			colEl.CreateAttr("type", col.Type)
			colEl.CreateAttr("nullable", strconv.FormatBool(col.Nullable))

			if col.Default.Valid {
				colEl.CreateAttr("default", col.Default.String)
			}

			if col.Comment != "" {
				colEl.CreateAttr("comment", col.Comment)
			}
		}

		if tbl.Def != "" {
			tableEl.CreateElement("definition").SetText(tbl.Def)
		}
	}

	out.Indent(2)

	if _, err := out.WriteTo(w); err != nil {
		return fmt.Errorf("schemaexport: write schema XML: %w", err)
	}

	return nil
}

// shouldInclude applies exclusion first, then the include list.
func shouldInclude(name string, include, exclude []string) bool {
	for _, pattern := range exclude {
		if introspect.MatchWildcard(pattern, name) {
			return false
		}
	}

	if len(include) > 0 {
		for _, pattern := range include {
			if introspect.MatchWildcard(pattern, name) {
				return true
			}
		}

		return false
	}

	return true
}

func qualifiedName(schemaName, relation string) string {
	if schemaName == "" {
		return relation
	}

	return schemaName + "." + relation
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}

	return sql.NullString{String: *v, Valid: true}
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}

	return *v
}
