// Package store opens the relational store shared by the consent, document
// and audit layers and hides placeholder differences between drivers.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hengadev/phiguard/internal/phierr"
	"github.com/hengadev/phiguard/internal/schema"
)

// Querier is satisfied by both *DB and *Tx so repositories can run inside
// or outside a transaction. Queries are written with '?' placeholders.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a connection pool together with its dialect.
type DB struct {
	sql     *sql.DB
	dialect schema.DatabaseType
}

// Open connects to the store and verifies the connection.
func Open(ctx context.Context, dialect schema.DatabaseType, dsn string) (*DB, error) {
	if !dialect.IsValid() {
		return nil, phierr.NewInvalidArgumentError("database driver", fmt.Sprintf("%q is not supported", dialect))
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, phierr.NewDatabaseError("open", err)
	}
	// Each connection to an in-memory sqlite database is a separate database.
	if dialect == schema.SQLite && strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, phierr.NewDatabaseError("ping", err)
	}
	return &DB{sql: db, dialect: dialect}, nil
}

// Wrap adopts an existing pool.
func Wrap(db *sql.DB, dialect schema.DatabaseType) *DB {
	return &DB{sql: db, dialect: dialect}
}

// Dialect returns the database type.
func (db *DB) Dialect() schema.DatabaseType {
	return db.dialect
}

// SQL returns the underlying pool.
func (db *DB) SQL() *sql.DB {
	return db.sql
}

// Close closes the pool.
func (db *DB) Close() error {
	return db.sql.Close()
}

// Migrate applies the schema.
func (db *DB) Migrate(ctx context.Context) error {
	return schema.Migrate(ctx, db.sql, db.dialect)
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.sql.ExecContext(ctx, Rebind(db.dialect, query), args...)
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.sql.QueryContext(ctx, Rebind(db.dialect, query), args...)
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.sql.QueryRowContext(ctx, Rebind(db.dialect, query), args...)
}

// Tx is a transaction that rebinds placeholders like DB.
type Tx struct {
	tx      *sql.Tx
	dialect schema.DatabaseType
}

func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return tx.tx.ExecContext(ctx, Rebind(tx.dialect, query), args...)
}

func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return tx.tx.QueryContext(ctx, Rebind(tx.dialect, query), args...)
}

func (tx *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return tx.tx.QueryRowContext(ctx, Rebind(tx.dialect, query), args...)
}

// WithTx runs fn inside a transaction. Any error from fn, or a panic, rolls
// the transaction back.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return phierr.NewDatabaseError("begin transaction", err)
	}
	tx := &Tx{tx: sqlTx, dialect: db.dialect}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return phierr.NewDatabaseError("commit transaction", err)
	}
	return nil
}

// Rebind rewrites '?' placeholders to '$n' for PostgreSQL. Question marks
// inside single-quoted literals are left alone.
func Rebind(dialect schema.DatabaseType, query string) string {
	if dialect != schema.PostgreSQL || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inLiteral := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inLiteral = !inLiteral
			b.WriteByte(c)
		case c == '?' && !inLiteral:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
