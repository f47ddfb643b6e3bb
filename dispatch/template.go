package dispatch

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/decls"
	"github.com/google/cel-go/common/types/ref"

	notesql "github.com/shibukawa/notesql"
)

// TemplateEngine expands {{expr}} regions in a statement against the
// notebook namespace. Expressions are CEL, so attribute dereference like
// {{order.id}} works on nested maps. Each scalar result becomes one
// positional placeholder plus a bind value, a list result becomes a
// parenthesized placeholder group for IN clauses, and raw(expr) splices
// the rendered value into the statement text verbatim.
//
// Placeholders are always positional, `$n` for PostgreSQL-protocol
// dialects and `?` everywhere else. Source expressions never leak into
// the statement, so a dotted expression cannot malform the driver's
// parameter syntax.
type TemplateEngine struct {
	ns     map[string]any
	dollar bool
	env    *cel.Env
}

// NewTemplateEngine prepares expansion for one cell. The CEL environment
// is built lazily on the first statement that contains a template region.
func NewTemplateEngine(dialect notesql.Dialect, ns map[string]any) *TemplateEngine {
	if ns == nil {
		ns = map[string]any{}
	}

	driver, _ := notesql.DriverName(dialect)

	return &TemplateEngine{ns: ns, dollar: driver == "pgx"}
}

// Expand rewrites one statement, returning the text to execute and the
// bind values in placeholder order. Statements without template regions
// come back unchanged. Template regions inside quoted strings are left
// alone. All expansion failures are statement-level errors.
func (e *TemplateEngine) Expand(stmt string) (string, []any, error) {
	if !strings.Contains(stmt, "{{") {
		return stmt, nil, nil
	}

	var out strings.Builder

	var binds []any

	i := 0
	for i < len(stmt) {
		switch c := stmt[i]; c {
		case '\'', '"':
			i = copyQuoted(&out, stmt, i, c)
		case '{':
			if i+1 < len(stmt) && stmt[i+1] == '{' {
				end := strings.Index(stmt[i+2:], "}}")
				if end < 0 {
					return "", nil, fmt.Errorf("%w: unterminated template expression in %q", notesql.ErrStatement, stmt)
				}

				expr := strings.TrimSpace(stmt[i+2 : i+2+end])

				if err := e.expandExpression(&out, &binds, expr); err != nil {
					return "", nil, err
				}

				i += 2 + end + 2

				continue
			}

			out.WriteByte(c)
			i++
		default:
			out.WriteByte(c)
			i++
		}
	}

	return out.String(), binds, nil
}

func copyQuoted(out *strings.Builder, s string, i int, quote byte) int {
	out.WriteByte(s[i])
	i++

	for i < len(s) {
		out.WriteByte(s[i])

		if s[i] == quote {
			if i+1 < len(s) && s[i+1] == quote {
				out.WriteByte(s[i+1])
				i += 2

				continue
			}

			return i + 1
		}

		i++
	}

	return i
}

func (e *TemplateEngine) expandExpression(out *strings.Builder, binds *[]any, expr string) error {
	if expr == "" {
		return fmt.Errorf("%w: empty template expression", notesql.ErrStatement)
	}

	if inner, ok := rawArgument(expr); ok {
		val, err := e.evaluate(inner)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "%v", val)

		return nil
	}

	val, err := e.evaluate(expr)
	if err != nil {
		return err
	}

	if elems, ok := listElements(val); ok {
		out.WriteByte('(')

		for n, elem := range elems {
			if n > 0 {
				out.WriteString(", ")
			}

			*binds = append(*binds, elem)
			out.WriteString(e.placeholder(len(*binds)))
		}

		out.WriteByte(')')

		return nil
	}

	*binds = append(*binds, val)
	out.WriteString(e.placeholder(len(*binds)))

	return nil
}

// rawArgument unwraps raw(...) markers. The marker is recognized
// syntactically, before CEL sees the expression.
func rawArgument(expr string) (string, bool) {
	if !strings.HasPrefix(expr, "raw(") || !strings.HasSuffix(expr, ")") {
		return "", false
	}

	return strings.TrimSpace(expr[len("raw(") : len(expr)-1]), true
}

// listElements flattens slice and array values for IN-clause expansion.
// Strings and byte slices stay scalar.
func listElements(val any) ([]any, bool) {
	if val == nil {
		return nil, false
	}

	rv := reflect.ValueOf(val)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}

	elems := make([]any, rv.Len())
	for i := range elems {
		elems[i] = nativeValue(rv.Index(i).Interface())
	}

	return elems, true
}

// nativeValue unwraps CEL runtime values down to plain Go values.
func nativeValue(val any) any {
	if rv, ok := val.(ref.Val); ok {
		return rv.Value()
	}

	return val
}

func (e *TemplateEngine) placeholder(n int) string {
	if e.dollar {
		return "$" + strconv.Itoa(n)
	}

	return "?"
}

func (e *TemplateEngine) evaluate(expr string) (any, error) {
	env, err := e.environment()
	if err != nil {
		return nil, err
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: template expression %q: %v", notesql.ErrStatement, expr, issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: template expression %q: %v", notesql.ErrStatement, expr, err)
	}

	val, _, err := prg.Eval(e.ns)
	if err != nil {
		return nil, fmt.Errorf("%w: template expression %q: %v", notesql.ErrStatement, expr, err)
	}

	return nativeValue(val.Value()), nil
}

func (e *TemplateEngine) environment() (*cel.Env, error) {
	if e.env != nil {
		return e.env, nil
	}

	vars := make([]*decls.VariableDecl, 0, len(e.ns))

	for key := range e.ns {
		if isIdentifier(key) {
			vars = append(vars, decls.NewVariable(key, cel.DynType))
		}
	}

	env, err := cel.NewEnv(
		cel.EagerlyValidateDeclarations(true),
		cel.VariableDecls(vars...),
	)
	if err != nil {
		return nil, fmt.Errorf("template environment: %w", err)
	}

	e.env = env

	return env, nil
}
