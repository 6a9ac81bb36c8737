package sqlstore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// dialect holds what differs between the two engines.
type dialect struct {
	name         string
	driver       string // database/sql driver name
	numbered     bool   // "$1" placeholders instead of "?"
	singleWriter bool
	pragmas      []string
	types        *strings.Replacer // fills the schema template

	isUniqueViolation func(err error) bool
}

func dialectFor(name string) (*dialect, error) {
	switch name {
	case "", "sqlite", "sqlite3":
		return sqliteDialect, nil
	case "postgres", "postgresql", "pgx":
		return postgresDialect, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q (want sqlite or postgres)", name)
	}
}

var sqliteDialect = &dialect{
	name:         "sqlite",
	driver:       "sqlite",
	singleWriter: true,
	pragmas: []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	},
	types: strings.NewReplacer(
		"{{PK}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{TIMESTAMP}}", "DATETIME",
		"{{BOOL}}", "INTEGER",
		"{{FALSE}}", "0",
	),
	isUniqueViolation: func(err error) bool {
		var se *sqlite.Error
		if !errors.As(err, &se) {
			return false
		}
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	},
}

var postgresDialect = &dialect{
	name:     "postgres",
	driver:   "pgx",
	numbered: true,
	types: strings.NewReplacer(
		"{{PK}}", "BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY",
		"{{TIMESTAMP}}", "TIMESTAMPTZ",
		"{{BOOL}}", "BOOLEAN",
		"{{FALSE}}", "FALSE",
	),
	isUniqueViolation: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == "23505"
	},
}

// rebind rewrites "?" placeholders as "$1", "$2", ... when the dialect
// numbers them. Queries in this package never contain a literal "?".
func (d *dialect) rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// likePattern escapes LIKE wildcards with '\' and wraps term for a substring
// match. Use with "LOWER(col) LIKE LOWER(?) ESCAPE '\'": case folding stays
// in SQL so the column and the term fold the same way.
func likePattern(term string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
	return "%" + escaped + "%"
}
