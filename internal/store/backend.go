// Package store is the relational persistence layer for folio: documents,
// sections and their dependency edges, providers and models, executions,
// section results and the job queue.
//
// Two dialects are supported behind one database/sql handle. SQLite
// (modernc.org/sqlite) is the default and serialises writers on a single
// connection; Postgres (lib/pq) is selected by a postgres:// URL and uses
// row-level locks with SKIP LOCKED for job claims.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/folio/pkg/types"
)

// Dialect identifies the SQL flavour behind a Store.
type Dialect int

// Supported dialects.
const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

func (d Dialect) String() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// timeLayout is the naive UTC text form every timestamp is stored in. It
// sorts lexically in both dialects.
const timeLayout = "2006-01-02 15:04:05.000000"

// Store is a handle on the folio database. It is safe for concurrent use.
type Store struct {
	db      *sql.DB
	dialect Dialect
	clock   *clock
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// Open connects to the database named by dsn and applies the schema.
//
// Accepted forms: postgres://..., postgresql://..., sqlite://<path>, or a
// bare file path (treated as SQLite). Parent directories of a SQLite file are
// created as needed.
func Open(ctx context.Context, dsn string) (*Store, error) {
	dialect, source, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	switch dialect {
	case DialectPostgres:
		db, err = sql.Open("postgres", source)
	default:
		if dir := filepath.Dir(source); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err = sql.Open("sqlite", "file:"+source+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
		if err == nil {
			// One connection serialises writers and makes the guarded claim
			// update exclusive.
			db.SetMaxOpenConns(1)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", dialect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", dialect, err)
	}

	s := &Store{db: db, dialect: dialect, clock: newClock(time.Now)}
	if err := s.applySchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func parseDSN(dsn string) (Dialect, string, error) {
	switch {
	case dsn == "":
		return 0, "", fmt.Errorf("database url is empty: %w", types.ErrValidation)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DialectPostgres, dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return DialectSQLite, strings.TrimPrefix(dsn, "sqlite://"), nil
	case strings.Contains(dsn, "://"):
		return 0, "", fmt.Errorf("unsupported database url scheme in %q: %w", dsn, types.ErrValidation)
	}
	return DialectSQLite, dsn, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect reports the SQL flavour in use.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
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

func (s *Store) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, q querier, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, q querier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, s.rebind(query), args...)
}

// withTx runs fn in a transaction, committing when fn returns nil.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// now returns the next store timestamp in its stored text form.
func (s *Store) now() (time.Time, string) {
	t := s.clock.Now()
	return t, t.Format(timeLayout)
}

// newID generates a UUID v7.
func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating UUID v7: %w", err)
	}
	return id.String(), nil
}

// clock hands out strictly increasing microsecond timestamps so that rows
// written in one process order by creation.
type clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func newClock(now func() time.Time) *clock {
	return &clock{now: now}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// translate maps driver constraint errors onto folio error kinds.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%s: already exists: %w", what, types.ErrConflict)
		case "23503":
			return fmt.Errorf("%s: referenced row: %w", what, types.ErrNotFound)
		case "23514":
			return fmt.Errorf("%s: %s: %w", what, pqErr.Message, types.ErrValidation)
		}
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%s: already exists: %w", what, types.ErrConflict)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%s: referenced row: %w", what, types.ErrNotFound)
	case strings.Contains(msg, "CHECK constraint failed"):
		return fmt.Errorf("%s: %v: %w", what, err, types.ErrValidation)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// notFound converts sql.ErrNoRows into ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, types.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}
