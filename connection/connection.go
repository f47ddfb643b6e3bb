// Package connection manages live database connections for SQL cells. A
// Connection wraps a database/sql pool around a single lazily opened session,
// and a Registry resolves cell handles and human names to connections,
// running deferred bootstrap callbacks on first use.
package connection

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // DuckDB driver
	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver (pgx)
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	notesql "github.com/shibukawa/notesql"
	"github.com/shibukawa/notesql/sqlscan"
)

const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
)

// Connection is a handle- and name-addressable database connection. The
// underlying pool is opened eagerly but cheaply; no network traffic happens
// until the first statement asks for a session.
type Connection struct {
	handle    string
	humanName string
	dialect   notesql.Dialect

	db             *sql.DB
	explicitCommit bool
	maxRows        int
	log            *slog.Logger

	mu     sync.Mutex
	sess   *sql.Conn
	closed bool
}

// Option adjusts a Connection at construction time.
type Option func(*Connection)

// WithLogger replaces the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Connection) {
		c.log = log
	}
}

// WithMaxRows caps how many rows a single statement may return. Zero means
// unlimited.
func WithMaxRows(n int) Option {
	return func(c *Connection) {
		c.maxRows = n
	}
}

// WithExplicitCommit overrides the dialect-derived commit flag. Blacklisted
// dialects ignore the override and never commit explicitly.
func WithExplicitCommit(v bool) Option {
	return func(c *Connection) {
		c.explicitCommit = v
	}
}

// New opens a connection for the given driver name and DSN.
//
// handle must begin with '@' (the cell selector form), humanName is the
// user-assigned datasource title and must be non-empty. driverName is a
// dialect name as found in datasource metadata ("postgresql", "mysql",
// "clickhouse+http", ...); only dialects with a linked database/sql driver
// can actually be opened.
func New(handle, humanName, driverName, dsn string, opts ...Option) (*Connection, error) {
	if len(handle) == 0 || handle[0] != '@' {
		return nil, fmt.Errorf("%w: %q", notesql.ErrBadHandle, handle)
	}
	if humanName == "" {
		return nil, fmt.Errorf("%w: handle %s", notesql.ErrMissingHumanName, handle)
	}

	dialect := notesql.EffectiveDialect(driverName)

	sqlDriver, ok := notesql.DriverName(dialect)
	if !ok {
		return nil, fmt.Errorf("%w: %q", notesql.ErrDriverNotLinked, dialect)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", sqlDriver, err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	c := &Connection{
		handle:         handle,
		humanName:      humanName,
		dialect:        dialect,
		db:             db,
		explicitCommit: notesql.RequiresExplicitCommit(dialect),
		log:            slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if notesql.CommitBlacklisted(dialect) {
		c.explicitCommit = false
	}

	return c, nil
}

// Handle returns the '@'-prefixed cell selector.
func (c *Connection) Handle() string { return c.handle }

// HumanName returns the user-assigned datasource title.
func (c *Connection) HumanName() string { return c.humanName }

// Dialect returns the resolved base dialect.
func (c *Connection) Dialect() notesql.Dialect { return c.dialect }

// RequiresCommit reports whether statements run inside a per-statement
// transaction that is committed on success.
func (c *Connection) RequiresCommit() bool { return c.explicitCommit }

// Statement verbs that project a result set. Anything else goes through
// Exec so the affected-row count survives.
var queryVerbs = map[string]struct{}{
	"select":   {},
	"with":     {},
	"show":     {},
	"describe": {},
	"desc":     {},
	"explain":  {},
	"pragma":   {},
	"values":   {},
	"table":    {},
	"call":     {},
}

// Statement verbs whose affected-row count is meaningful. DDL drivers tend
// to report a stale or zero count, which would render as "0 rows affected"
// instead of a plain acknowledgement.
var countVerbs = map[string]struct{}{
	"insert":  {},
	"update":  {},
	"delete":  {},
	"replace": {},
	"merge":   {},
	"upsert":  {},
	"copy":    {},
	"load":    {},
	"import":  {},
}

func queryShaped(statement string) bool {
	if _, ok := queryVerbs[sqlscan.FirstWord(statement)]; ok {
		return true
	}

	// INSERT ... RETURNING and friends project rows despite the DML verb.
	return sqlscan.ContainsWord(statement, "returning")
}

func countShaped(statement string) bool {
	_, ok := countVerbs[sqlscan.FirstWord(statement)]

	return ok
}

// Execute runs one statement on the connection's session, lazily opening the
// session on first use. When the dialect requires explicit commits the
// statement runs inside its own transaction that is committed on success.
func (c *Connection) Execute(ctx context.Context, statement string, params ...any) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("%w: %s", notesql.ErrConnectionClosed, c.handle)
	}

	sess, err := c.sessionLocked(ctx)
	if err != nil {
		return nil, err
	}

	c.log.Debug("executing statement", "handle", c.handle, "verb", sqlscan.FirstWord(statement))

	if c.explicitCommit {
		return c.runCommitted(ctx, sess, statement, params)
	}

	return c.runAutocommit(ctx, sess, statement, params)
}

func (c *Connection) runAutocommit(ctx context.Context, sess *sql.Conn, statement string, params []any) (*Result, error) {
	if queryShaped(statement) {
		rows, err := sess.QueryContext(ctx, statement, params...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		return ReadRows(rows, c.maxRows)
	}

	res, err := sess.ExecContext(ctx, statement, params...)
	if err != nil {
		return nil, err
	}

	if !countShaped(statement) {
		return &Result{RowCount: -1}, nil
	}

	return FromExec(res), nil
}

func (c *Connection) runCommitted(ctx context.Context, sess *sql.Conn, statement string, params []any) (*Result, error) {
	tx, err := sess.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	var result *Result

	if queryShaped(statement) {
		rows, err := tx.QueryContext(ctx, statement, params...)
		if err != nil {
			_ = tx.Rollback()

			return nil, err
		}

		result, err = ReadRows(rows, c.maxRows)
		rows.Close()

		if err != nil {
			_ = tx.Rollback()

			return nil, err
		}
	} else {
		res, err := tx.ExecContext(ctx, statement, params...)
		if err != nil {
			_ = tx.Rollback()

			return nil, err
		}

		if countShaped(statement) {
			result = FromExec(res)
		} else {
			result = &Result{RowCount: -1}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return result, nil
}

// QueryContext runs a read-only query over the same session Execute uses, so
// schema introspection observes uncommitted session state such as temporary
// tables.
func (c *Connection) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("%w: %s", notesql.ErrConnectionClosed, c.handle)
	}

	sess, err := c.sessionLocked(ctx)
	if err != nil {
		return nil, err
	}

	return sess.QueryContext(ctx, query, args...)
}

func (c *Connection) sessionLocked(ctx context.Context) (*sql.Conn, error) {
	if c.sess == nil {
		sess, err := c.db.Conn(ctx)
		if err != nil {
			return nil, err
		}

		c.sess = sess
	}

	return c.sess, nil
}

// ResetPool discards the current session and all pooled connections, such as
// after an error suspected to indicate a broken connection. The next Execute
// acquires a fresh session.
func (c *Connection) ResetPool() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.log.Warn("resetting connection pool", "handle", c.handle)

	if c.sess != nil {
		_ = c.sess.Close()
		c.sess = nil
	}

	// Dropping the idle limit to zero closes everything currently pooled.
	c.db.SetMaxIdleConns(0)
	c.db.SetMaxIdleConns(defaultMaxIdleConns)
}

// Close releases the session and the pool. Further calls are no-ops.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true

	if c.sess != nil {
		_ = c.sess.Close()
		c.sess = nil
	}

	return c.db.Close()
}
