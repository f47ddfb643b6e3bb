// Package metacmd implements the backslash commands available inside SQL
// cells: schema listing, relation listing, and single-relation description,
// in the spirit of the psql backslash family. Commands introspect the cell's
// connection through the introspect package and report results as tables.
package metacmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	notesql "github.com/shibukawa/notesql"
	"github.com/shibukawa/notesql/connection"
	"github.com/shibukawa/notesql/introspect"
)

// Command is one backslash command. Invokers lists every spelling that
// selects it, the first being the canonical one.
type Command interface {
	Invokers() []string
	Description() string
	AcceptsArgs() bool
	IncludeInHelp() bool
	Run(ctx context.Context, inv *Invocation) (*notesql.Table, bool, error)
}

// Invocation carries everything a command needs for one run. InvokedAs is
// the spelling the user typed, so usage messages and the schemas "+" variant
// can react to it.
type Invocation struct {
	Conn         *connection.Connection
	Introspector introspect.Introspector
	InvokedAs    string
	Args         []string
	Out          io.Writer
}

// UsageError reports a mistyped command invocation. It is a statement-level
// error: the message is shown to the user and the connection stays up.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string { return e.Message }

func (e *UsageError) Unwrap() error { return notesql.ErrStatement }

func usagef(format string, args ...any) error {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// Registry maps invoker spellings to commands.
type Registry struct {
	commands  []Command
	byInvoker map[string]Command
}

// NewRegistry returns a registry with the full built-in command set. The
// registration order is the fallback order for help listings.
func NewRegistry() *Registry {
	r := &Registry{byInvoker: make(map[string]Command)}

	r.Register(DescribeCommand{})
	r.Register(RelationsCommand{})
	r.Register(TablesCommand{})
	r.Register(ViewsCommand{})
	r.Register(SchemasCommand{})
	r.Register(&HelpCommand{registry: r})

	return r
}

// Register adds a command. Invoker spellings must be unique across the
// registry; a duplicate is a programming error.
func (r *Registry) Register(cmd Command) {
	r.commands = append(r.commands, cmd)

	for _, invoker := range cmd.Invokers() {
		if _, dup := r.byInvoker[invoker]; dup {
			panic(fmt.Sprintf("metacmd: invoker %s registered twice", invoker))
		}

		r.byInvoker[invoker] = cmd
	}
}

// Lookup resolves one invoker spelling.
func (r *Registry) Lookup(invoker string) (Command, bool) {
	cmd, ok := r.byInvoker[invoker]

	return cmd, ok
}

// Commands returns every registered command in registration order.
func (r *Registry) Commands() []Command {
	return r.commands
}

// Run parses a backslash command line and executes it against conn. The
// returned bool reports whether the command already wrote its result to out;
// when false the caller is expected to present the table itself.
func (r *Registry) Run(ctx context.Context, conn *connection.Connection, text string, out io.Writer) (*notesql.Table, bool, error) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, false, fmt.Errorf("%w: empty meta-command", notesql.ErrStatement)
	}

	invoker, args := words[0], words[1:]

	cmd, ok := r.byInvoker[invoker]
	if !ok {
		return nil, false, usagef("Unknown command %s", invoker)
	}

	if len(args) > 0 && !cmd.AcceptsArgs() {
		return nil, false, usagef("%s does not expect arguments", invoker)
	}

	insp, err := introspect.New(conn.Dialect(), conn)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", notesql.ErrStatement, err)
	}

	inv := &Invocation{
		Conn:         conn,
		Introspector: insp,
		InvokedAs:    invoker,
		Args:         args,
		Out:          out,
	}

	return cmd.Run(ctx, inv)
}

// resolveDefaultSchema returns the connection's default schema, falling back
// to the first known schema for engines that do not declare one (MySQL with
// no database selected).
func resolveDefaultSchema(ctx context.Context, insp introspect.Introspector) (string, error) {
	schema, err := insp.DefaultSchema(ctx)
	if err != nil {
		return "", err
	}

	if schema == "" {
		names, err := insp.SchemaNames(ctx)
		if err != nil {
			return "", err
		}

		if len(names) > 0 {
			schema = names[0]
		}
	}

	return schema, nil
}
