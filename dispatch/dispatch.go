package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	notesql "github.com/shibukawa/notesql"
	"github.com/shibukawa/notesql/connection"
	"github.com/shibukawa/notesql/metacmd"
	"github.com/shibukawa/notesql/sqlscan"
)

// FatalDisconnectNotice precedes the error text when a statement failure
// is treated as fatal and the connection pool is torn down.
const FatalDisconnectNotice = "Encountered the following unexpected exception while trying to run the statement. Closed the connection just to be safe. Re-run the cell to try again!"

// Dispatcher executes notebook SQL cells against registered datasources.
// Out receives command output such as meta-command listings, ErrOut the
// short diagnostics that replace tracebacks.
type Dispatcher struct {
	Registry *connection.Registry
	Commands *metacmd.Registry
	Out      io.Writer
	ErrOut   io.Writer
	Log      *slog.Logger
}

// RunCell parses and executes one cell. The returned value is the cell's
// display value: nil when there is nothing to show, a bare scalar, a
// *notesql.Table, or an int64 affected-row count. When the cell names a
// result variable the same value is bound into ns before returning.
//
// Unknown connections and recoverable statement failures print a short
// message to ErrOut and return (nil, nil): a typo in a selector or a SQL
// statement must never look like a kernel crash. Only fatal failures,
// where the session itself is suspect, return an error.
func (d *Dispatcher) RunCell(ctx context.Context, cell string, ns map[string]any) (any, error) {
	header := ParseCell(cell)

	conn, err := d.Registry.Get(ctx, header.Selector)
	if err != nil {
		var unknown *connection.UnknownConnectionError
		if errors.As(err, &unknown) {
			fmt.Fprintln(d.errOut(), unknown.Message)

			return nil, nil
		}

		fmt.Fprintf(d.errOut(), "unable to connect to %s: %v\n", header.Selector, err)

		return nil, nil
	}

	if header.Body == "" {
		return nil, nil
	}

	if strings.HasPrefix(header.Body, "\\") {
		return d.runMeta(ctx, conn, header, ns)
	}

	return d.runSQL(ctx, conn, header, ns)
}

func (d *Dispatcher) runMeta(ctx context.Context, conn *connection.Connection, header CellHeader, ns map[string]any) (any, error) {
	if d.Commands == nil {
		return d.statementFailed(conn, fmt.Errorf("%w: no meta-command engine configured", notesql.ErrStatement))
	}

	table, displayed, err := d.Commands.Run(ctx, conn, header.Body, d.out())
	if err != nil {
		return d.statementFailed(conn, err)
	}

	if table == nil {
		return nil, nil
	}

	if header.ResultVar != "" && ns != nil {
		ns[header.ResultVar] = table
	}

	if displayed {
		return nil, nil
	}

	return table, nil
}

func (d *Dispatcher) runSQL(ctx context.Context, conn *connection.Connection, header CellHeader, ns map[string]any) (any, error) {
	engine := NewTemplateEngine(conn.Dialect(), ns)

	var result *connection.Result

	for _, stmt := range sqlscan.SplitStatements(header.Body) {
		if sqlscan.FirstWord(stmt) == "begin" {
			err := fmt.Errorf("this kernel %w: statements commit per cell, remove the explicit BEGIN", notesql.ErrTransactionsNotSupported)

			return d.statementFailed(conn, err)
		}

		expanded, binds, err := engine.Expand(stmt)
		if err != nil {
			return d.statementFailed(conn, err)
		}

		d.logger().Debug("executing cell statement",
			"handle", conn.Handle(),
			"verb", sqlscan.FirstWord(expanded),
			"binds", len(binds))

		result, err = conn.Execute(ctx, expanded, binds...)
		if err != nil {
			return d.statementFailed(conn, err)
		}
	}

	if result == nil {
		return nil, nil
	}

	value := cellValue(result, header.Scalar)
	if header.ResultVar != "" && ns != nil {
		ns[header.ResultVar] = value
	}

	return value, nil
}

// cellValue shapes the final statement's outcome: nil for silent
// statements, a bare value when #scalar fits, a table for row sets, the
// affected-row count for DML.
func cellValue(res *connection.Result, wantScalar bool) any {
	if !res.Reportable() {
		return nil
	}

	if !res.HasRows {
		return res.RowCount
	}

	if wantScalar && res.IsScalar() {
		return res.Scalar()
	}

	return res.AsTable()
}

// statementFailed applies the error policy. Recoverable failures print
// the message and leave the session alone so the next cell can reuse it.
// Anything else resets the pool, since a half-open session would poison
// every later cell, and returns the error.
func (d *Dispatcher) statementFailed(conn *connection.Connection, err error) (any, error) {
	if recoverable(err, conn.Dialect()) {
		fmt.Fprintln(d.errOut(), err.Error())
		d.logger().Debug("statement failed", "handle", conn.Handle(), "error", err)

		return nil, nil
	}

	conn.ResetPool()
	fmt.Fprintln(d.errOut(), FatalDisconnectNotice)
	d.logger().Warn("connection reset after statement failure", "handle", conn.Handle(), "error", err)

	return nil, err
}

// recoverable classifies a statement failure. Statement-level errors,
// meta-command usage errors and anything from an in-process engine leave
// the session healthy. Server errors carrying a SQLSTATE or a MySQL error
// number mean the server answered, so the session survived, except for
// the SQLSTATE classes that report the connection itself is gone.
func recoverable(err error, dialect notesql.Dialect) bool {
	if errors.Is(err, notesql.ErrStatement) || errors.Is(err, notesql.ErrTransactionsNotSupported) {
		return true
	}

	switch dialect {
	case notesql.DialectSQLite, notesql.DialectDuckDB:
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return !connectionState(pgErr.Code)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return true
	}

	return false
}

// connectionState reports whether a SQLSTATE class indicates the session
// is unusable: 08 connection exception, 53 insufficient resources, 57
// operator intervention (including server shutdown).
func connectionState(code string) bool {
	if len(code) < 2 {
		return false
	}

	switch code[:2] {
	case "08", "53", "57":
		return true
	}

	return false
}

// InterpretRowCount words an affected-row count for display.
func InterpretRowCount(n int64) string {
	switch {
	case n < 0:
		return "Done."
	case n == 1:
		return "1 row affected."
	default:
		return fmt.Sprintf("%d rows affected.", n)
	}
}

func (d *Dispatcher) out() io.Writer {
	if d.Out != nil {
		return d.Out
	}

	return os.Stdout
}

func (d *Dispatcher) errOut() io.Writer {
	if d.ErrOut != nil {
		return d.ErrOut
	}

	return os.Stderr
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}

	return slog.Default()
}
