package metacmd

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	notesql "github.com/shibukawa/notesql"
	"github.com/shibukawa/notesql/introspect"
)

// DescribeCommand shows the structure of one table or view: column names,
// types, nullability, plus defaults and comments when any column carries
// one. Describing a view also prints the view's definition.
type DescribeCommand struct{}

func (DescribeCommand) Invokers() []string { return []string{`\describe`, `\d`} }

func (DescribeCommand) Description() string { return "Show the structure of a single relation." }

func (DescribeCommand) AcceptsArgs() bool { return true }

func (DescribeCommand) IncludeInHelp() bool { return true }

func (DescribeCommand) Run(ctx context.Context, inv *Invocation) (*notesql.Table, bool, error) {
	if len(inv.Args) > 1 {
		return nil, false, usagef("Usage: %s [[schema].[relation_name]]", inv.InvokedAs)
	}

	if len(inv.Args) == 0 {
		// Like psql \d without arguments: list the default schema instead.
		table, err := listRelations(ctx, inv, "*", true, true)
		if err != nil {
			return nil, false, err
		}

		return table, false, nil
	}

	schema, relation := splitRelation(inv.Args[0])
	qualified := schema != ""

	if !qualified {
		var err error

		schema, err = resolveDefaultSchema(ctx, inv.Introspector)
		if err != nil {
			return nil, false, err
		}
	}

	display := relation
	if qualified {
		display = schema + "." + relation
	}

	cols, err := inv.Introspector.Columns(ctx, schema, relation)
	if err != nil {
		if errors.Is(err, introspect.ErrNoSuchRelation) {
			return nil, false, usagef("Relation %s does not exist", display)
		}

		return nil, false, err
	}

	anyDefault, anyComment := false, false

	for _, col := range cols {
		if col.Default != nil {
			anyDefault = true
		}

		if col.Comment != nil {
			anyComment = true
		}
	}

	// Sparse columns are never shown: Default and Comment appear only when
	// some column has a value for them.
	columns := []string{"Column", "Type", "Nullable"}
	if anyDefault {
		columns = append(columns, "Default")
	}

	if anyComment {
		columns = append(columns, "Comment")
	}

	table := notesql.NewTable(columns...)

	for _, col := range cols {
		row := []any{col.Name, col.DataType, col.Nullable}
		if anyDefault {
			row = append(row, optionalCell(col.Default))
		}

		if anyComment {
			row = append(row, optionalCell(col.Comment))
		}

		table.AppendRow(row...)
	}

	views, err := inv.Introspector.ViewNames(ctx, schema)
	if err != nil {
		return nil, false, err
	}

	isView := slices.Contains(views, relation)

	kind := "Table"
	if isView {
		kind = "View"
	}

	fmt.Fprintf(inv.Out, "%s %q Structure\n", kind, display)

	if err := table.Render(inv.Out); err != nil {
		return nil, false, err
	}

	if isView {
		definition, err := inv.Introspector.ViewDefinition(ctx, schema, relation)
		if err != nil {
			return nil, false, err
		}

		if definition != "" {
			fmt.Fprintf(inv.Out, "\nView Definition\n%s\n", definition)
		}
	}

	return table, true, nil
}

// splitRelation splits "foo.bar" into (foo, bar) and "foobar" into
// ("", foobar). No glob interpretation here.
func splitRelation(arg string) (schema, relation string) {
	if idx := strings.IndexByte(arg, '.'); idx >= 0 {
		return arg[:idx], arg[idx+1:]
	}

	return "", arg
}

func optionalCell(s *string) any {
	if s == nil {
		return nil
	}

	return *s
}
