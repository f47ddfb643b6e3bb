package datasource

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/go-sql-driver/mysql"
	notesql "github.com/shibukawa/notesql"
)

// BuildDSN renders a pruned DSN mapping into the connection string format the
// dialect's database/sql driver expects. Dialects without a linked driver
// still render to a generic URL so the failure message downstream can show
// what was asked for.
func BuildDSN(dialect notesql.Dialect, dsn map[string]any) (string, error) {
	switch dialect {
	case notesql.DialectPostgres, notesql.DialectCockroach, notesql.DialectRedshift:
		return buildURLDSN("postgres", dsn)
	case notesql.DialectMySQL, notesql.DialectMariaDB, notesql.DialectSingleStore:
		return buildMySQLDSN(dsn)
	case notesql.DialectSQLite:
		return buildFileDSN(dsn, ":memory:")
	case notesql.DialectDuckDB:
		return buildFileDSN(dsn, "")
	default:
		return buildURLDSN(string(dialect), dsn)
	}
}

var urlDSNFields = map[string]bool{
	"host":     true,
	"port":     true,
	"username": true,
	"password": true,
	"database": true,
	"query":    true,
}

func buildURLDSN(scheme string, dsn map[string]any) (string, error) {
	if err := rejectUnknownFields(dsn, urlDSNFields); err != nil {
		return "", err
	}

	u := &url.URL{Scheme: scheme}

	username, hasUser, err := stringField(dsn, "username")
	if err != nil {
		return "", err
	}

	password, hasPassword, err := stringField(dsn, "password")
	if err != nil {
		return "", err
	}

	switch {
	case hasUser && hasPassword:
		u.User = url.UserPassword(username, password)
	case hasUser:
		u.User = url.User(username)
	case hasPassword:
		return "", fmt.Errorf("%w: password given without username", notesql.ErrBadDescriptor)
	}

	host, hasHost, err := stringField(dsn, "host")
	if err != nil {
		return "", err
	}

	port, hasPort, err := portField(dsn)
	if err != nil {
		return "", err
	}

	switch {
	case hasHost && hasPort:
		u.Host = host + ":" + port
	case hasHost:
		u.Host = host
	case hasPort:
		return "", fmt.Errorf("%w: port given without host", notesql.ErrBadDescriptor)
	}

	database, hasDatabase, err := stringField(dsn, "database")
	if err != nil {
		return "", err
	}
	if hasDatabase {
		u.Path = "/" + database
	}

	if rawQuery, ok := dsn["query"]; ok {
		nested, ok := rawQuery.(map[string]any)
		if !ok {
			return "", fmt.Errorf("%w: query must be an object, got %T", notesql.ErrBadDescriptor, rawQuery)
		}

		values := url.Values{}
		for key, value := range nested {
			values.Set(key, fmt.Sprintf("%v", value))
		}

		u.RawQuery = values.Encode()
	}

	return u.String(), nil
}

func buildMySQLDSN(dsn map[string]any) (string, error) {
	if err := rejectUnknownFields(dsn, urlDSNFields); err != nil {
		return "", err
	}

	cfg := mysql.NewConfig()

	username, ok, err := stringField(dsn, "username")
	if err != nil {
		return "", err
	}
	if ok {
		cfg.User = username
	}

	password, ok, err := stringField(dsn, "password")
	if err != nil {
		return "", err
	}
	if ok {
		cfg.Passwd = password
	}

	host, hasHost, err := stringField(dsn, "host")
	if err != nil {
		return "", err
	}

	port, hasPort, err := portField(dsn)
	if err != nil {
		return "", err
	}

	if hasHost {
		cfg.Net = "tcp"
		cfg.Addr = host
		if hasPort {
			cfg.Addr = host + ":" + port
		}
	} else if hasPort {
		return "", fmt.Errorf("%w: port given without host", notesql.ErrBadDescriptor)
	}

	database, ok, err := stringField(dsn, "database")
	if err != nil {
		return "", err
	}
	if ok {
		cfg.DBName = database
	}

	if rawQuery, ok := dsn["query"]; ok {
		nested, ok := rawQuery.(map[string]any)
		if !ok {
			return "", fmt.Errorf("%w: query must be an object, got %T", notesql.ErrBadDescriptor, rawQuery)
		}

		cfg.Params = map[string]string{}
		for key, value := range nested {
			cfg.Params[key] = fmt.Sprintf("%v", value)
		}
	}

	return cfg.FormatDSN(), nil
}

// buildFileDSN handles the file-backed engines. An absent or blank database
// resolves to the driver's in-memory alias.
func buildFileDSN(dsn map[string]any, memoryAlias string) (string, error) {
	for key := range dsn {
		if key != "database" {
			return "", fmt.Errorf("%w: unsupported connection field %q for a file-backed database", notesql.ErrBadDescriptor, key)
		}
	}

	database, ok, err := stringField(dsn, "database")
	if err != nil {
		return "", err
	}
	if !ok || database == "" || database == ":memory:" {
		return memoryAlias, nil
	}

	return database, nil
}

func rejectUnknownFields(dsn map[string]any, allowed map[string]bool) error {
	var unknown []string
	for key := range dsn {
		if !allowed[key] {
			unknown = append(unknown, key)
		}
	}

	if len(unknown) == 0 {
		return nil
	}

	sort.Strings(unknown)

	return fmt.Errorf("%w: unsupported connection fields %v", notesql.ErrBadDescriptor, unknown)
}

func stringField(dsn map[string]any, key string) (string, bool, error) {
	value, ok := dsn[key]
	if !ok {
		return "", false, nil
	}

	s, ok := value.(string)
	if !ok {
		return "", false, fmt.Errorf("%w: %s must be a string, got %T", notesql.ErrBadDescriptor, key, value)
	}

	return s, true, nil
}

// portField tolerates both string and numeric ports. JSON decoding hands
// numbers over as float64.
func portField(dsn map[string]any) (string, bool, error) {
	value, ok := dsn["port"]
	if !ok {
		return "", false, nil
	}

	switch v := value.(type) {
	case string:
		return v, true, nil
	case float64:
		return strconv.Itoa(int(v)), true, nil
	default:
		return "", false, fmt.Errorf("%w: port must be a string or number, got %T", notesql.ErrBadDescriptor, value)
	}
}
