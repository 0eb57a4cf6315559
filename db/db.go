// ABOUTME: Database connection management and initialization
// ABOUTME: Opens the local SQLite file (WAL) or a hosted Postgres database behind one Store
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Options selects the backing store. Path is used for SQLite, URL for Postgres.
type Options struct {
	Driver string
	Path   string
	URL    string
}

// Store is the single shared resource of the application. All reads and
// writes go through it; it is safe for concurrent use.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects to the configured database and applies the schema.
func Open(opts Options, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch Dialect(strings.ToLower(opts.Driver)) {
	case DialectPostgres, "postgresql", "pg":
		return openPostgres(opts.URL, logger)
	case DialectSQLite, "sqlite3", "":
		return openSQLite(opts.Path, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

// OpenDatabase opens a SQLite database at path.
func OpenDatabase(path string) (*Store, error) {
	return openSQLite(path, zap.NewNop())
}

func openSQLite(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	// Configure connection pool for SQLite (avoid database locked errors)
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dialect: DialectSQLite, logger: logger}
	if err := InitSchema(db, DialectSQLite); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("opened database", zap.String("driver", string(DialectSQLite)), zap.String("path", path))
	return s, nil
}

func openPostgres(url string, logger *zap.Logger) (*Store, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required for postgres")
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", classify(err))
	}

	s := &Store{db: db, dialect: DialectPostgres, logger: logger}
	if err := InitSchema(db, DialectPostgres); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("opened database", zap.String("driver", string(DialectPostgres)))
	return s, nil
}

// DB exposes the underlying handle for tools that copy data between stores.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks connectivity. Failures are reported as ErrUnavailable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres. Queries in this package
// never contain a literal question mark.
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

// inTx runs fn inside a transaction, committing on success.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", classify(err))
	}
	return nil
}
