// Package store implements the customer registry on top of database/sql.
//
// Every operation takes a Querier so it can run on a connection leased from
// the pool (*sql.Conn), directly on a *sql.DB, or inside a transaction.
// Driver errors never leave this package unclassified: callers receive an
// *errors.Error carrying one of the registry codes.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stderrors "errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	mdwerrors "github.com/msto63/minerva/pkg/core/errors"
)

// DefaultPageSize is the maximum number of customers in one listing page
const DefaultPageSize = 100

// Querier is the subset of database/sql shared by *sql.DB, *sql.Conn and *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Config holds store configuration
type Config struct {
	// PageSize is the LIMIT of ScanPage
	PageSize int

	// LegacyOffset uses the page*PageSize + 1 offset of earlier releases,
	// which never returns the lowest id. On unless switched off.
	LegacyOffset bool
}

// DefaultConfig returns the default store configuration
func DefaultConfig() Config {
	return Config{
		PageSize:     DefaultPageSize,
		LegacyOffset: true,
	}
}

// Store runs the registry queries for one SQL dialect
type Store struct {
	dialect Dialect
	config  Config

	insertSQL string
	getSQL    string
	deleteSQL string
	pageSQL   string
}

const columns = "id, tipo, nome, pj, docto, ativo, bloqueado"

// New creates a store for the given dialect
func New(dialect Dialect, cfg Config) *Store {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}

	return &Store{
		dialect: dialect,
		config:  cfg,
		insertSQL: dialect.Rebind(`INSERT INTO cliente (tipo, nome, pj, docto, ativo, bloqueado)
			VALUES (?, ?, ?, ?, ?, ?) RETURNING ` + columns),
		getSQL:    dialect.Rebind(`SELECT ` + columns + ` FROM cliente WHERE id = ?`),
		deleteSQL: dialect.Rebind(`DELETE FROM cliente WHERE id = ?`),
		pageSQL:   dialect.Rebind(`SELECT ` + columns + ` FROM cliente ORDER BY id LIMIT ? OFFSET ?`),
	}
}

// Dialect returns the store's SQL dialect
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// PageSize returns the configured page size
func (s *Store) PageSize() int {
	return s.config.PageSize
}

// EnsureSchema creates the cliente table if it is missing
func (s *Store) EnsureSchema(ctx context.Context, q Querier) error {
	if _, err := q.ExecContext(ctx, s.dialect.Schema); err != nil {
		return classify("store.EnsureSchema", err, mdwerrors.CodeConnectionLost)
	}
	return nil
}

// Insert stores a new customer and returns it with its assigned id
func (s *Store) Insert(ctx context.Context, q Querier, c NewCustomer) (Customer, error) {
	row := q.QueryRowContext(ctx, s.insertSQL, c.Category, c.Name, c.Business, c.Document, c.Active, c.Blocked)

	out, err := scanCustomer(row)
	if err != nil {
		return Customer{}, classify("store.Insert", err, mdwerrors.CodeConstraintViolation)
	}
	return out, nil
}

// Get returns the customer with the given id, or a NOT_FOUND error
func (s *Store) Get(ctx context.Context, q Querier, id int32) (Customer, error) {
	out, err := scanCustomer(q.QueryRowContext(ctx, s.getSQL, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return Customer{}, mdwerrors.Newf("customer %d not found", id).
			WithCode(mdwerrors.CodeNotFound).
			WithOperation("store.Get")
	}
	if err != nil {
		return Customer{}, classify("store.Get", err, mdwerrors.CodeConnectionLost)
	}
	return out, nil
}

// Delete removes the customer with the given id. Deleting an id that does
// not exist is not an error.
func (s *Store) Delete(ctx context.Context, q Querier, id int32) error {
	if _, err := q.ExecContext(ctx, s.deleteSQL, id); err != nil {
		return classify("store.Delete", err, mdwerrors.CodeConnectionLost)
	}
	return nil
}

// Offset returns the row offset of a listing page
func (s *Store) Offset(page int) int {
	off := page * s.config.PageSize
	if s.config.LegacyOffset {
		off++
	}
	return off
}

// ScanPage returns up to PageSize customers ordered by id, starting at
// Offset(page). An empty slice means there is no more data.
func (s *Store) ScanPage(ctx context.Context, q Querier, page int) ([]Customer, error) {
	if page < 0 {
		return nil, mdwerrors.Newf("invalid page %d", page).
			WithCode(mdwerrors.CodeInvalidInput).
			WithOperation("store.ScanPage")
	}

	rows, err := q.QueryContext(ctx, s.pageSQL, s.config.PageSize, s.Offset(page))
	if err != nil {
		return nil, classify("store.ScanPage", err, mdwerrors.CodeConnectionLost)
	}
	defer rows.Close()

	out := make([]Customer, 0, s.config.PageSize)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, classify("store.ScanPage", err, mdwerrors.CodeConnectionLost)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("store.ScanPage", err, mdwerrors.CodeConnectionLost)
	}

	return out, nil
}

// Count returns the number of stored customers
func (s *Store) Count(ctx context.Context, q Querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM cliente`).Scan(&n); err != nil {
		return 0, classify("store.Count", err, mdwerrors.CodeConnectionLost)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row scanner) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Category, &c.Name, &c.Business, &c.Document, &c.Active, &c.Blocked)
	return c, err
}

// classify maps a driver error to a registry code. Connection and deadline
// failures are recognised for every operation; anything else gets fallback.
func classify(op string, err error, fallback mdwerrors.Code) error {
	code := fallback

	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		code = mdwerrors.CodeTimeout
	case stderrors.Is(err, context.Canceled),
		stderrors.Is(err, driver.ErrBadConn),
		stderrors.Is(err, sql.ErrConnDone),
		strings.Contains(err.Error(), "database is closed"):
		code = mdwerrors.CodeConnectionLost
	case isConstraintError(err):
		code = mdwerrors.CodeConstraintViolation
	}

	return mdwerrors.Wrap(err, "query failed").WithCode(code).WithOperation(op)
}

func isConstraintError(err error) bool {
	var liteErr sqlite3.Error
	if stderrors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrConstraint
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		// class 23: integrity constraint violation
		return strings.HasPrefix(pgErr.Code, "23")
	}

	return false
}
