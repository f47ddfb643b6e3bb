package notesql

import "strings"

// Dialect represents supported database dialects
// This type is shared across all packages
type Dialect string

const (
	DialectPostgres    Dialect = "postgres"
	DialectCockroach   Dialect = "cockroachdb"
	DialectRedshift    Dialect = "redshift"
	DialectMySQL       Dialect = "mysql"
	DialectMariaDB     Dialect = "mariadb"
	DialectSingleStore Dialect = "singlestore"
	DialectSQLite      Dialect = "sqlite"
	DialectDuckDB      Dialect = "duckdb"
	DialectBigQuery    Dialect = "bigquery"
	DialectSnowflake   Dialect = "snowflake"
	DialectAthena      Dialect = "awsathena"
	DialectClickHouse  Dialect = "clickhouse"
	DialectDatabricks  Dialect = "databricks"
	DialectMSSQL       Dialect = "mssql"
	DialectTrino       Dialect = "trino"
)

// driverAliases maps raw descriptor driver names to dialects. Descriptor
// driver names may carry a sub-driver suffix ("clickhouse+http",
// "databricks+connector") which selects postprocessing behavior but not the
// dialect itself.
var driverAliases = map[string]Dialect{
	"postgres":    DialectPostgres,
	"postgresql":  DialectPostgres,
	"cockroachdb": DialectCockroach,
	"redshift":    DialectRedshift,
	"mysql":       DialectMySQL,
	"mariadb":     DialectMariaDB,
	"singlestore": DialectSingleStore,
	"sqlite":      DialectSQLite,
	"duckdb":      DialectDuckDB,
	"bigquery":    DialectBigQuery,
	"snowflake":   DialectSnowflake,
	"awsathena":   DialectAthena,
	"clickhouse":  DialectClickHouse,
	"databricks":  DialectDatabricks,
	"mssql":       DialectMSSQL,
	"trino":       DialectTrino,
}

// ParseDialect resolves a raw descriptor driver name ("postgresql",
// "clickhouse+http", "mysql+pymysql") to its Dialect. The part after the
// first "+" is the sub-driver and is ignored for dialect resolution.
func ParseDialect(drivername string) (Dialect, bool) {
	base := drivername
	if idx := strings.IndexByte(base, '+'); idx >= 0 {
		base = base[:idx]
	}

	d, ok := driverAliases[strings.ToLower(strings.TrimSpace(base))]

	return d, ok
}

// EffectiveDialect resolves a raw driver name like ParseDialect but never
// fails: an unrecognized name becomes a dialect of its own, so error messages
// and registry listings can still show what the descriptor asked for.
func EffectiveDialect(drivername string) Dialect {
	if d, ok := ParseDialect(drivername); ok {
		return d
	}

	base := drivername
	if idx := strings.IndexByte(base, '+'); idx >= 0 {
		base = base[:idx]
	}

	return Dialect(strings.ToLower(strings.TrimSpace(base)))
}

// SubDriver returns the part of a raw driver name after "+", or "" when the
// name has no sub-driver ("clickhouse+http" -> "http").
func SubDriver(drivername string) string {
	if idx := strings.IndexByte(drivername, '+'); idx >= 0 {
		return drivername[idx+1:]
	}

	return ""
}

// DriverName maps a dialect to the registered database/sql driver that
// handles it. Dialects without a linked Go driver return false; engine
// construction for them is a recorded bootstrap failure, not a panic.
func DriverName(d Dialect) (string, bool) {
	switch d {
	case DialectPostgres, DialectCockroach, DialectRedshift:
		return "pgx", true
	case DialectMySQL, DialectMariaDB, DialectSingleStore:
		return "mysql", true
	case DialectSQLite:
		return "sqlite3", true
	case DialectDuckDB:
		return "duckdb", true
	default:
		return "", false
	}
}
