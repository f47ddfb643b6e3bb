package main

import (
	"context"

	"github.com/fatih/color"

	notesql "github.com/shibukawa/notesql"
	"github.com/shibukawa/notesql/connection"
)

// DatasourcesCmd represents the datasources command
type DatasourcesCmd struct {
	Secrets string `help:"Datasource descriptor directory (defaults to the configured one)" type:"path"`
}

// Run lists every datasource the secrets directory yields, including the
// ones whose bootstrap failed, with the failure message they would show
// in a cell.
func (cmd *DatasourcesCmd) Run(appCtx *Context) error {
	ctx := context.Background()

	if err := appCtx.bootstrap(ctx, cmd.Secrets); err != nil {
		return err
	}

	infos := appCtx.Registry.List()
	if len(infos) == 0 {
		if !appCtx.Quiet {
			color.Yellow("No datasources found")
		}

		return nil
	}

	return datasourcesTable(infos).Render(appCtx.Stdout)
}

// datasourcesTable shapes registry entries for display. The Message
// column appears only when some datasource has a failure to report.
func datasourcesTable(infos []connection.Info) *notesql.Table {
	anyFailure := false

	for _, info := range infos {
		if info.Failure != "" {
			anyFailure = true

			break
		}
	}

	columns := []string{"Handle", "Name", "Dialect", "State"}
	if anyFailure {
		columns = append(columns, "Message")
	}

	table := notesql.NewTable(columns...)

	for _, info := range infos {
		row := []any{info.Handle, info.Name, string(info.Dialect), info.State}
		if anyFailure {
			row = append(row, info.Failure)
		}

		table.AppendRow(row...)
	}

	return table
}
