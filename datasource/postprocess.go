package datasource

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	notesql "github.com/shibukawa/notesql"
)

// PostProcessor patches a parsed descriptor with fixups a particular driver
// needs before the engine can be built. Processors run after pruning and may
// rewrite DSN fields, move connect arguments around, or touch the filesystem.
type PostProcessor interface {
	Dialect() notesql.Dialect
	Process(ctx context.Context, desc *Descriptor) error
}

// ProcessorSet holds at most one postprocessor per dialect.
type ProcessorSet struct {
	byDialect map[notesql.Dialect]PostProcessor
}

// NewProcessorSet builds a set from the given processors. Two processors for
// the same dialect is a programming error and panics at startup.
func NewProcessorSet(procs ...PostProcessor) *ProcessorSet {
	s := &ProcessorSet{byDialect: make(map[notesql.Dialect]PostProcessor, len(procs))}
	for _, p := range procs {
		if _, dup := s.byDialect[p.Dialect()]; dup {
			panic(fmt.Sprintf("datasource: postprocessor for dialect %q registered twice", p.Dialect()))
		}

		s.byDialect[p.Dialect()] = p
	}

	return s
}

// Lookup returns the processor for a dialect, if any. Dialects without a
// processor need no fixups.
func (s *ProcessorSet) Lookup(d notesql.Dialect) (PostProcessor, bool) {
	p, ok := s.byDialect[d]

	return p, ok
}

// DefaultProcessors returns the full set of known driver fixups.
func DefaultProcessors() *ProcessorSet {
	return NewProcessorSet(
		PostgresProcessor{},
		CockroachProcessor{},
		BigQueryProcessor{},
		SnowflakeProcessor{},
		&SQLiteProcessor{},
		AthenaProcessor{},
		&DatabricksProcessor{},
		ClickHouseProcessor{},
		MSSQLProcessor{},
	)
}

// PostgresProcessor exists for parity with the other drivers. Interrupting an
// in-flight query needs no driver-level patch here: canceling the statement
// context cancels the query server-side.
type PostgresProcessor struct{}

func (PostgresProcessor) Dialect() notesql.Dialect { return notesql.DialectPostgres }

func (PostgresProcessor) Process(ctx context.Context, desc *Descriptor) error { return nil }

// CockroachProcessor mirrors PostgresProcessor. CockroachDB speaks the
// PostgreSQL wire protocol and shares its driver behavior.
type CockroachProcessor struct{}

func (CockroachProcessor) Dialect() notesql.Dialect { return notesql.DialectCockroach }

func (CockroachProcessor) Process(ctx context.Context, desc *Descriptor) error { return nil }

// BigQueryProcessor promotes connect arguments up to the engine level, where
// the BigQuery driver expects them, and materializes inline credentials into
// a file the driver can read.
type BigQueryProcessor struct {
	// CredentialsDir is where decoded credential files land. Empty means the
	// system temp directory.
	CredentialsDir string
}

func (BigQueryProcessor) Dialect() notesql.Dialect { return notesql.DialectBigQuery }

func (p BigQueryProcessor) Process(ctx context.Context, desc *Descriptor) error {
	for key, value := range desc.ConnectArgs {
		desc.EngineArgs[key] = value
	}
	desc.ConnectArgs = map[string]any{}

	raw, ok := desc.EngineArgs["credential_file_contents"]
	if !ok {
		return nil
	}
	delete(desc.EngineArgs, "credential_file_contents")

	encoded, ok := raw.(string)
	if !ok {
		return fmt.Errorf("%w: credential_file_contents must be a base64 string, got %T", notesql.ErrBadDescriptor, raw)
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("%w: credential_file_contents is not valid base64: %v", notesql.ErrBadDescriptor, err)
	}

	dir := p.CredentialsDir
	if dir == "" {
		dir = os.TempDir()
	}

	path := filepath.Join(dir, desc.ID+"_bigquery_credentials.json")
	if err := os.WriteFile(path, decoded, 0o600); err != nil {
		return fmt.Errorf("write bigquery credentials: %w", err)
	}

	desc.EngineArgs["credentials_path"] = path

	return nil
}

// SnowflakeProcessor folds an optional schema field into the database path,
// which is how the snowflake driver wants it spelled.
type SnowflakeProcessor struct{}

func (SnowflakeProcessor) Dialect() notesql.Dialect { return notesql.DialectSnowflake }

func (SnowflakeProcessor) Process(ctx context.Context, desc *Descriptor) error {
	schema, ok := desc.DSN["schema"]
	if !ok {
		return nil
	}

	database, ok := desc.DSN["database"]
	if !ok {
		return fmt.Errorf("%w: snowflake schema given without a database", notesql.ErrBadDescriptor)
	}

	delete(desc.DSN, "schema")
	desc.DSN["database"] = fmt.Sprintf("%v/%v", database, schema)

	return nil
}

const defaultMaxDownloadSeconds = 10

// SQLiteProcessor resolves the database path. A URL path is downloaded to a
// temp file first; a plain path must stay inside the temp sandbox so a
// descriptor cannot name, say, /etc/passwd.
type SQLiteProcessor struct {
	// Client overrides the HTTP client used for downloads.
	Client *http.Client
}

func (*SQLiteProcessor) Dialect() notesql.Dialect { return notesql.DialectSQLite }

func (p *SQLiteProcessor) Process(ctx context.Context, desc *Descriptor) error {
	raw, ok := desc.DSN["database"]
	if !ok {
		return nil
	}

	path, ok := raw.(string)
	if !ok {
		return fmt.Errorf("%w: database must be a string, got %T", notesql.ErrBadDescriptor, raw)
	}
	if path == "" || path == ":memory:" {
		return nil
	}

	maxDownload := defaultMaxDownloadSeconds
	if raw, ok := desc.ConnectArgs["max_download_seconds"]; ok {
		delete(desc.ConnectArgs, "max_download_seconds")

		switch v := raw.(type) {
		case float64:
			maxDownload = int(v)
		case string:
			parsed, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: max_download_seconds %q is not a number", notesql.ErrBadDescriptor, v)
			}

			maxDownload = parsed
		default:
			return fmt.Errorf("%w: max_download_seconds must be a number, got %T", notesql.ErrBadDescriptor, raw)
		}
	}

	if u, err := url.Parse(path); err == nil && isDownloadScheme(u.Scheme) {
		downloaded, err := p.download(ctx, path, maxDownload)
		if err != nil {
			return err
		}

		path = downloaded
		desc.DSN["database"] = path
	}

	if !insideTempSandbox(path) {
		return fmt.Errorf("%w: got %q", notesql.ErrUnsafeDatabasePath, raw)
	}

	return nil
}

func isDownloadScheme(scheme string) bool {
	switch scheme {
	case "http", "https", "ftp":
		return true
	default:
		return false
	}
}

func (p *SQLiteProcessor) download(ctx context.Context, rawURL string, maxSeconds int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(maxSeconds)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("download %s: %s", rawURL, resp.Status)
	}

	out, err := os.CreateTemp("", "sqlite-database-*")
	if err != nil {
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()

		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}

	return out.Name(), nil
}

// insideTempSandbox reports whether path resolves under /tmp or $TMPDIR.
// Symlinks are resolved on both sides where possible; macOS points $TMPDIR
// through /var -> /private/var.
func insideTempSandbox(path string) bool {
	resolved := canonicalize(path)

	for _, parent := range sandboxRoots() {
		if resolved == parent || strings.HasPrefix(resolved, parent+string(filepath.Separator)) {
			return true
		}
	}

	return false
}

func sandboxRoots() []string {
	roots := []string{"/tmp"}

	if tmpdir := os.Getenv("TMPDIR"); tmpdir != "" {
		roots = append(roots, canonicalize(tmpdir))
	}

	return roots
}

func canonicalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}

	// The leaf may not exist yet; resolving its directory still catches a
	// symlinked $TMPDIR.
	if resolved, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		return filepath.Join(resolved, filepath.Base(abs))
	}

	return abs
}

// AthenaProcessor rewrites the bare AWS region in the host field into the
// full Athena endpoint and percent-encodes the credential fields and staging
// directory, which all travel inside a URL.
type AthenaProcessor struct{}

func (AthenaProcessor) Dialect() notesql.Dialect { return notesql.DialectAthena }

func (AthenaProcessor) Process(ctx context.Context, desc *Descriptor) error {
	region, err := requiredString(desc.DSN, "host")
	if err != nil {
		return err
	}
	desc.DSN["host"] = fmt.Sprintf("athena.%s.amazonaws.com", region)

	username, err := requiredString(desc.DSN, "username")
	if err != nil {
		return err
	}
	desc.DSN["username"] = url.QueryEscape(username)

	password, err := requiredString(desc.DSN, "password")
	if err != nil {
		return err
	}
	desc.DSN["password"] = url.QueryEscape(password)

	staging, err := requiredString(desc.ConnectArgs, "s3_staging_dir")
	if err != nil {
		return err
	}
	desc.ConnectArgs["s3_staging_dir"] = url.QueryEscape(staging)

	return nil
}

const databricksConfigureTimeout = 10 * time.Second

// DatabricksProcessor feeds the local databricks-connect configure script
// with the cluster coordinates from the descriptor, then strips those
// arguments so the driver never sees them. Without the script on PATH the
// cluster arguments are stripped and nothing else happens.
type DatabricksProcessor struct {
	// LookPath and HomeDir are overridable for tests.
	LookPath func(name string) (string, error)
	HomeDir  string
}

func (*DatabricksProcessor) Dialect() notesql.Dialect { return notesql.DialectDatabricks }

func (p *DatabricksProcessor) Process(ctx context.Context, desc *Descriptor) error {
	clusterKeys := []string{"cluster_id", "org_id", "port"}

	lookPath := p.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	if _, hasCluster := desc.ConnectArgs["cluster_id"]; hasCluster {
		if script, err := lookPath("databricks-connect"); err == nil {
			if err := p.configure(ctx, script, desc, clusterKeys); err != nil {
				return err
			}
		}
	}

	for _, key := range clusterKeys {
		delete(desc.ConnectArgs, key)
	}

	return nil
}

func (p *DatabricksProcessor) configure(ctx context.Context, script string, desc *Descriptor, clusterKeys []string) error {
	host, err := requiredString(desc.DSN, "host")
	if err != nil {
		return err
	}

	token, err := requiredString(desc.DSN, "password")
	if err != nil {
		return err
	}

	args := make(map[string]string, len(clusterKeys))
	for _, key := range clusterKeys {
		value, ok := desc.ConnectArgs[key]
		if !ok {
			return fmt.Errorf("%w: databricks-connect requires %s", notesql.ErrBadDescriptor, key)
		}

		args[key] = fmt.Sprintf("%v", value)
	}

	home := p.HomeDir
	if home == "" {
		home, err = os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("locate home directory: %w", err)
		}
	}

	// The script refuses to run non-interactively while a config file
	// exists.
	_ = os.Remove(filepath.Join(home, ".databricks-connect"))

	// Answers, in prompt order: accept license, host, token, cluster id,
	// org id, port.
	stdin := fmt.Sprintf("y\nhttps://%s/\n%s\n%s\n%s\n%s",
		host, token, args["cluster_id"], args["org_id"], args["port"])

	ctx, cancel := context.WithTimeout(ctx, databricksConfigureTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, script, "configure")
	cmd.Stdin = strings.NewReader(stdin)
	if p.HomeDir != "" {
		env := make([]string, 0, len(os.Environ())+1)
		for _, kv := range os.Environ() {
			if !strings.HasPrefix(kv, "HOME=") {
				env = append(env, kv)
			}
		}

		cmd.Env = append(env, "HOME="+home)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("databricks-connect took longer than %s to complete", databricksConfigureTimeout)
		}

		return fmt.Errorf("failed to run databricks-connect configure: %v: %s", err, strings.TrimSpace(stderr.String()))
	}

	return nil
}

// ClickHouse descriptors carry the literal answer the user picked in the
// connection form.
const (
	clickhouseHTTPS       = "Yes, use HTTPS"
	clickhouseHTTPSVerify = "Yes, use HTTPS and verify server certificate"
	clickhouseHTTP        = "No, use HTTP"
)

// ClickHouseProcessor translates the three-way secure-connection choice into
// the protocol and verify arguments the driver understands.
type ClickHouseProcessor struct{}

func (ClickHouseProcessor) Dialect() notesql.Dialect { return notesql.DialectClickHouse }

func (ClickHouseProcessor) Process(ctx context.Context, desc *Descriptor) error {
	raw, ok := desc.ConnectArgs["verify"]
	if !ok {
		return fmt.Errorf("%w: clickhouse descriptor is missing the verify choice", notesql.ErrBadDescriptor)
	}

	choice, _ := raw.(string)

	var protocol string
	var verify bool

	switch choice {
	case clickhouseHTTPS:
		protocol, verify = "https", false
	case clickhouseHTTPSVerify:
		protocol, verify = "https", true
	case clickhouseHTTP:
		protocol, verify = "http", false
	default:
		return fmt.Errorf("%w: unrecognized clickhouse secure connection choice %q", notesql.ErrBadDescriptor, raw)
	}

	desc.ConnectArgs["protocol"] = protocol
	desc.ConnectArgs["verify"] = verify

	return nil
}

// MSSQLProcessor pins the ODBC arguments SQL Server connections always need
// and inverts the verify checkbox into TrustServerCertificate.
type MSSQLProcessor struct{}

func (MSSQLProcessor) Dialect() notesql.Dialect { return notesql.DialectMSSQL }

func (MSSQLProcessor) Process(ctx context.Context, desc *Descriptor) error {
	verify := false

	if raw, ok := desc.ConnectArgs["verify"]; ok {
		b, ok := raw.(bool)
		if !ok {
			return fmt.Errorf("%w: mssql verify must be a boolean, got %T", notesql.ErrBadDescriptor, raw)
		}

		verify = b
		delete(desc.ConnectArgs, "verify")
	}

	trust := "yes"
	if verify {
		trust = "no"
	}

	desc.ConnectArgs["TrustServerCertificate"] = trust
	desc.ConnectArgs["driver"] = "ODBC Driver 18 for SQL Server"
	desc.ConnectArgs["authentication"] = "SqlPassword"
	desc.ConnectArgs["encrypt"] = "yes"

	return nil
}

func requiredString(m map[string]any, key string) (string, error) {
	raw, ok := m[key]
	if !ok {
		return "", fmt.Errorf("%w: missing required field %s", notesql.ErrBadDescriptor, key)
	}

	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", notesql.ErrBadDescriptor, key, raw)
	}

	return s, nil
}
