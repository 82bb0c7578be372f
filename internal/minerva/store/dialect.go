package store

import (
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect captures the SQL differences between the supported backends
type Dialect struct {
	// Driver is the database/sql driver name
	Driver string
	// Schema creates the cliente table if it does not exist
	Schema string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
}

var (
	// SQLite uses AUTOINCREMENT so deleted ids are never handed out again.
	SQLite = Dialect{
		Driver: "sqlite3",
		Schema: `
		CREATE TABLE IF NOT EXISTS cliente (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tipo SMALLINT NOT NULL DEFAULT 0,
			nome TEXT NOT NULL,
			pj BOOLEAN NOT NULL DEFAULT 0,
			docto TEXT NOT NULL,
			ativo BOOLEAN NOT NULL DEFAULT 1,
			bloqueado BOOLEAN NOT NULL DEFAULT 0
		);`,
	}

	Postgres = Dialect{
		Driver: "pgx",
		Schema: `
		CREATE TABLE IF NOT EXISTS cliente (
			id SERIAL PRIMARY KEY,
			tipo SMALLINT NOT NULL DEFAULT 0,
			nome VARCHAR NOT NULL,
			pj BOOLEAN NOT NULL DEFAULT FALSE,
			docto VARCHAR NOT NULL,
			ativo BOOLEAN NOT NULL DEFAULT TRUE,
			bloqueado BOOLEAN NOT NULL DEFAULT FALSE
		);`,
		numbered: true,
	}
)

// DialectFor picks the dialect from a connection string. postgres:// and
// postgresql:// URLs go to pgx, everything else is treated as a SQLite path or URI.
func DialectFor(dsn string) Dialect {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return Postgres
	}
	return SQLite
}

// DataSource turns a DSN into the string handed to sql.Open. SQLite paths get
// WAL mode and a busy timeout so concurrent leases do not fail with SQLITE_BUSY.
func (d Dialect) DataSource(dsn string) string {
	if d.Driver != SQLite.Driver {
		return dsn
	}
	dsn = strings.TrimPrefix(dsn, "sqlite://")
	if strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
}

// Rebind rewrites ? placeholders for dialects that use numbered parameters
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
