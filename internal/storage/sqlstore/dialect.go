package sqlstore

import (
	"fmt"
	"regexp"
)

// Dialect selects driver name and DDL for a SQL engine.
type Dialect string

const (
	Postgres Dialect = "postgres"
	DuckDB   Dialect = "duckdb"
)

// ParseDialect parses a configured backend name.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(s) {
	case Postgres, DuckDB:
		return Dialect(s), nil
	default:
		return "", fmt.Errorf("unknown sql dialect %q", s)
	}
}

// Driver returns the database/sql driver name.
func (d Dialect) Driver() string {
	return string(d)
}

func (d Dialect) blobType() string {
	if d == Postgres {
		return "BYTEA"
	}
	return "BLOB"
}

// schema returns the CREATE TABLE statements for the dialect.
func (d Dialect) schema(readings, invalidations string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	time BIGINT PRIMARY KEY,
	value %s NOT NULL,
	tags TEXT NOT NULL
)`, readings, d.blobType()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	time BIGINT PRIMARY KEY,
	value REAL NOT NULL,
	tags TEXT NOT NULL,
	reasons TEXT NOT NULL
)`, invalidations),
	}
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// validIdentifier reports whether name can be used unquoted as a table name.
func validIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}
