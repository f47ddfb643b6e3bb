package metacmd

import (
	"context"
	"slices"
	"sort"
	"strings"

	notesql "github.com/shibukawa/notesql"
)

// SchemasCommand lists schema names. The "+" spellings add per-schema table
// and view counts.
type SchemasCommand struct{}

func (SchemasCommand) Invokers() []string {
	return []string{`\schemas`, `\schemas+`, `\dn`, `\dn+`}
}

func (SchemasCommand) Description() string { return "List schemas within database." }

func (SchemasCommand) AcceptsArgs() bool { return false }

func (SchemasCommand) IncludeInHelp() bool { return true }

func (SchemasCommand) Run(ctx context.Context, inv *Invocation) (*notesql.Table, bool, error) {
	insp := inv.Introspector

	defaultSchema, err := insp.DefaultSchema(ctx)
	if err != nil {
		return nil, false, err
	}

	schemas, err := insp.SchemaNames(ctx)
	if err != nil {
		return nil, false, err
	}

	sort.Strings(schemas)

	// The default schema leads regardless of alphabetical order.
	if i := slices.Index(schemas, defaultSchema); i > 0 {
		schemas = slices.Delete(schemas, i, i+1)
		schemas = slices.Insert(schemas, 0, defaultSchema)
	}

	withCounts := strings.HasSuffix(inv.InvokedAs, "+")

	var tableCounts, viewCounts []int

	anyViews := false

	if withCounts {
		for _, schema := range schemas {
			tables, err := insp.TableNames(ctx, schema)
			if err != nil {
				return nil, false, err
			}

			views, err := insp.ViewNames(ctx, schema)
			if err != nil {
				return nil, false, err
			}

			tableCounts = append(tableCounts, len(tables))
			viewCounts = append(viewCounts, len(views))

			if len(views) > 0 {
				anyViews = true
			}
		}
	}

	columns := []string{"Schema", "Default"}
	if withCounts {
		columns = append(columns, "Table Count")

		// The view count column appears only when some schema has views.
		if anyViews {
			columns = append(columns, "View Count")
		}
	}

	table := notesql.NewTable(columns...)

	for i, schema := range schemas {
		row := []any{schema, schema == defaultSchema}
		if withCounts {
			row = append(row, tableCounts[i])

			if anyViews {
				row = append(row, viewCounts[i])
			}
		}

		table.AppendRow(row...)
	}

	return table, false, nil
}
