// Package sqlstore implements the repository interfaces on database/sql.
//
// Two drivers are supported:
//   - "sqlite"   → modernc.org/sqlite (pure Go, the default; ":memory:" for tests)
//   - "postgres" → github.com/jackc/pgx/v5/stdlib
//
// Queries are written once with "?" placeholders. The dialect rewrites them
// to "$1, $2, ..." for Postgres and supplies the DDL and the unique-violation
// check for each engine.
//
// UNITS OF WORK:
// Every exported method runs inside exactly one transaction (withTx). A
// challenge and its tags, objectives and hints, or a conversation and its
// first post, become visible together or not at all.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/challenge-hub/internal/metrics"
	"github.com/sakif/challenge-hub/internal/repository"
)

var (
	_ repository.UserRepository         = (*Store)(nil)
	_ repository.CatalogRepository      = (*Store)(nil)
	_ repository.ChallengeRepository    = (*Store)(nil)
	_ repository.ConversationRepository = (*Store)(nil)
	_ repository.SeedRepository         = (*Store)(nil)
)

// Config selects the engine and connection string.
type Config struct {
	Driver  string // "sqlite" (default) or "postgres"
	DSN     string // file path / ":memory:" for sqlite, URL or key=value for postgres
	Logger  *slog.Logger
	Metrics *metrics.Metrics // optional
}

// Store wraps a sql.DB connection pool and implements every repository.
type Store struct {
	conn    *sql.DB
	dialect *dialect
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Open connects, applies the schema, and reconciles the identifier counters.
//
// For sqlite the pool is limited to one connection: SQLite has a single
// writer, and an in-memory database exists only on the connection that
// created it.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	conn, err := sql.Open(d.driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: opening %s database: %w", d.name, err)
	}

	if d.singleWriter {
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(25)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: pinging %s database: %w", d.name, err)
	}

	for _, pragma := range d.pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlstore: %s: %w", pragma, err)
		}
	}

	s := &Store{
		conn:    conn,
		dialect: d,
		logger:  logger,
		metrics: cfg.Metrics,
	}

	if err := s.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: running migrations: %w", err)
	}

	if err := s.reconcileSequences(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: reconciling identifier counters: %w", err)
	}

	return s, nil
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// DB exposes the connection pool, for pool statistics.
func (s *Store) DB() *sql.DB {
	return s.conn
}

// txn is the handle passed to a unit of work. Its helpers rebind
// placeholders for the active dialect.
type txn struct {
	tx *sql.Tx
	s  *Store
}

func (t *txn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.s.dialect.rebind(query), args...)
}

func (t *txn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.s.dialect.rebind(query), args...)
}

func (t *txn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.s.dialect.rebind(query), args...)
}

// withTx runs fn in a transaction. It commits when fn returns nil and rolls
// back on error or panic.
func (s *Store) withTx(ctx context.Context, fn func(t *txn) error) (err error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&txn{tx: tx, s: s}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: committing transaction: %w", err)
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC()
}

// clampList applies default and maximum page sizes.
func clampList(opts repository.ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
