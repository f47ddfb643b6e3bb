package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/shibukawa/notesql/introspect"
	"github.com/shibukawa/notesql/schemaexport"
)

// SchemaCmd represents the schema command
type SchemaCmd struct {
	Datasource   string   `arg:"" help:"Datasource handle (@id) or human name"`
	Format       string   `help:"Output format" default:"json" enum:"json,xml"`
	Output       string   `short:"o" help:"Output file (defaults to stdout)" type:"path"`
	Tables       []string `help:"Relation patterns to include (wildcard supported)"`
	Exclude      []string `help:"Relation patterns to exclude"`
	ExcludeViews bool     `help:"Leave views out of the export"`
	Secrets      string   `help:"Datasource descriptor directory (defaults to the configured one)" type:"path"`
}

// Run introspects the datasource and writes a tbls-shaped schema
// document.
func (cmd *SchemaCmd) Run(appCtx *Context) error {
	ctx := context.Background()

	if err := appCtx.bootstrap(ctx, cmd.Secrets); err != nil {
		return err
	}

	conn, err := appCtx.Registry.Get(ctx, cmd.Datasource)
	if err != nil {
		return fmt.Errorf("failed to resolve datasource %s: %w", cmd.Datasource, err)
	}

	insp, err := introspect.New(conn.Dialect(), conn)
	if err != nil {
		return err
	}

	includeViews := !cmd.ExcludeViews

	doc, err := schemaexport.BuildTbls(ctx, insp, conn.Dialect(), conn.HumanName(), schemaexport.Options{
		Include:      cmd.Tables,
		Exclude:      cmd.Exclude,
		IncludeViews: &includeViews,
	})
	if err != nil {
		return err
	}

	out := appCtx.Stdout

	if cmd.Output != "" {
		f, err := os.Create(cmd.Output)
		if err != nil {
			return fmt.Errorf("failed to create output file %s: %w", cmd.Output, err)
		}
		defer f.Close()

		out = f
	}

	if cmd.Format == "xml" {
		err = schemaexport.WriteXML(out, doc)
	} else {
		err = schemaexport.WriteJSON(out, doc)
	}

	if err != nil {
		return err
	}

	if cmd.Output != "" && !appCtx.Quiet {
		color.Green("Schema extracted to %s", cmd.Output)
	}

	return nil
}
