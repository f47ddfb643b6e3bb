package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	notesql "github.com/shibukawa/notesql"
	"github.com/shibukawa/notesql/dispatch"
	"github.com/shibukawa/notesql/metacmd"
)

// CellCmd represents the cell command
type CellCmd struct {
	Secrets string `help:"Datasource descriptor directory (defaults to the configured one)" type:"path"`
	Cell    string `arg:"" help:"Cell text: an @handle or datasource name selector followed by statements"`
}

// Run executes one notebook cell, the same path the kernel takes.
func (cmd *CellCmd) Run(appCtx *Context) error {
	ctx := context.Background()

	if err := appCtx.bootstrap(ctx, cmd.Secrets); err != nil {
		return err
	}

	if timeout := appCtx.Config.Query.Timeout; timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	d := &dispatch.Dispatcher{
		Registry: appCtx.Registry,
		Commands: metacmd.NewRegistry(),
		Out:      appCtx.Stdout,
		ErrOut:   os.Stderr,
		Log:      appCtx.Logger,
	}

	header := dispatch.ParseCell(cmd.Cell)

	value, err := d.RunCell(ctx, cmd.Cell, map[string]any{})
	if err != nil {
		return err
	}

	return renderCellValue(appCtx.Stdout, value, header.Scalar)
}

// renderCellValue writes what the notebook would display for a cell
// value. A bare int64 is an affected-row count unless the cell asked for
// a scalar, since row sets only collapse to scalars behind the directive.
func renderCellValue(w io.Writer, value any, wantScalar bool) error {
	switch v := value.(type) {
	case nil:
		return nil
	case *notesql.Table:
		return v.Render(w)
	case int64:
		if wantScalar {
			_, err := fmt.Fprintln(w, notesql.FormatValue(v))
			return err
		}

		_, err := fmt.Fprintln(w, dispatch.InterpretRowCount(v))

		return err
	default:
		_, err := fmt.Fprintln(w, notesql.FormatValue(v))
		return err
	}
}
