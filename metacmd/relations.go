package metacmd

import (
	"context"
	"sort"
	"strings"

	notesql "github.com/shibukawa/notesql"
	"github.com/shibukawa/notesql/introspect"
)

// RelationsCommand lists tables and views together, one row per relation
// with a Kind column telling them apart.
type RelationsCommand struct{}

func (RelationsCommand) Invokers() []string { return []string{`\list`, `\dr`} }

func (RelationsCommand) Description() string {
	return "List names of tables and/or views within database."
}

func (RelationsCommand) AcceptsArgs() bool { return true }

func (RelationsCommand) IncludeInHelp() bool { return true }

func (RelationsCommand) Run(ctx context.Context, inv *Invocation) (*notesql.Table, bool, error) {
	arg, err := singleGlobArg(inv, "table pattern")
	if err != nil {
		return nil, false, err
	}

	table, err := listRelations(ctx, inv, arg, true, true)
	if err != nil {
		return nil, false, err
	}

	return table, false, nil
}

// TablesCommand lists tables only, one row per schema with a comma-joined
// name list.
type TablesCommand struct{}

func (TablesCommand) Invokers() []string { return []string{`\tables`, `\dt`} }

func (TablesCommand) Description() string { return "List names of tables within database." }

func (TablesCommand) AcceptsArgs() bool { return true }

func (TablesCommand) IncludeInHelp() bool { return true }

func (TablesCommand) Run(ctx context.Context, inv *Invocation) (*notesql.Table, bool, error) {
	arg, err := singleGlobArg(inv, "table pattern")
	if err != nil {
		return nil, false, err
	}

	table, err := listRelations(ctx, inv, arg, true, false)
	if err != nil {
		return nil, false, err
	}

	return table, false, nil
}

// ViewsCommand lists views only, one row per schema with a comma-joined
// name list.
type ViewsCommand struct{}

func (ViewsCommand) Invokers() []string { return []string{`\views`, `\dv`} }

func (ViewsCommand) Description() string { return "List names of views within database." }

func (ViewsCommand) AcceptsArgs() bool { return true }

func (ViewsCommand) IncludeInHelp() bool { return true }

func (ViewsCommand) Run(ctx context.Context, inv *Invocation) (*notesql.Table, bool, error) {
	arg, err := singleGlobArg(inv, "view pattern")
	if err != nil {
		return nil, false, err
	}

	table, err := listRelations(ctx, inv, arg, false, true)
	if err != nil {
		return nil, false, err
	}

	return table, false, nil
}

func singleGlobArg(inv *Invocation, what string) (string, error) {
	if len(inv.Args) > 1 {
		return "", usagef("Usage: %s [[schema pattern].[%s]]", inv.InvokedAs, what)
	}

	if len(inv.Args) == 0 {
		return "*", nil
	}

	return inv.Args[0], nil
}

// listRelations resolves a "[schema glob.]name glob" argument against the
// connection's catalog. Without a dot the argument targets the default
// schema only. Matching schemas are walked in sorted order; names are
// filtered with prefix matching implied for bare text.
func listRelations(ctx context.Context, inv *Invocation, arg string, includeTables, includeViews bool) (*notesql.Table, error) {
	schemaGlob, nameGlob := introspect.ParseGlob(arg)

	if schemaGlob == "" {
		schema, err := resolveDefaultSchema(ctx, inv.Introspector)
		if err != nil {
			return nil, err
		}

		schemaGlob = schema
	}

	schemaFilter := introspect.CompileGlob(schemaGlob, false)
	nameFilter := introspect.CompileGlob(nameGlob, true)

	all, err := inv.Introspector.SchemaNames(ctx)
	if err != nil {
		return nil, err
	}

	var schemas []string

	for _, schema := range all {
		if schemaFilter.MatchString(schema) {
			schemas = append(schemas, schema)
		}
	}

	sort.Strings(schemas)

	both := includeTables && includeViews

	var table *notesql.Table

	switch {
	case both:
		table = notesql.NewTable("Schema", "Relation", "Kind")
	case includeTables:
		table = notesql.NewTable("Schema", "Tables")
	default:
		table = notesql.NewTable("Schema", "Views")
	}

	for _, schema := range schemas {
		var tables, views []string

		if includeTables {
			tables, err = inv.Introspector.TableNames(ctx, schema)
			if err != nil {
				return nil, err
			}
		}

		if includeViews {
			views, err = inv.Introspector.ViewNames(ctx, schema)
			if err != nil {
				return nil, err
			}
		}

		if both {
			viewSet := make(map[string]bool, len(views))
			for _, view := range views {
				viewSet[view] = true
			}

			names := append(tables, views...)
			sort.Strings(names)

			for _, name := range names {
				if !nameFilter.MatchString(name) {
					continue
				}

				kind := "table"
				if viewSet[name] {
					kind = "view"
				}

				table.AppendRow(schema, name, kind)
			}

			continue
		}

		names := tables
		if !includeTables {
			names = views
		}

		var matched []string

		for _, name := range names {
			if nameFilter.MatchString(name) {
				matched = append(matched, name)
			}
		}

		if len(matched) > 0 {
			table.AppendRow(schema, strings.Join(matched, ", "))
		}
	}

	return table, nil
}
