package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/neomorfeo/sellerhub/internal/domain"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// Compile-time check: Store implements domain.UnitOfWork.
var _ domain.UnitOfWork = (*Store)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx, so repositories can run
// inside or outside a unit of work.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store owns the database and hands out repositories bound to it.
type Store struct {
	db *sql.DB
}

// New opens a SQLite database, runs migrations, and returns a ready store.
func New(dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: ":memory:" databases are per-connection, and River
	// shares this handle.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	store, err := NewFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewFromDB wraps an existing database connection, runs migrations, and returns a ready store.
// Use this when the *sql.DB has been pre-configured (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*Store, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for use by other adapters (e.g., river).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Sellers returns the seller repository.
func (s *Store) Sellers() *SellerRepository {
	return &SellerRepository{q: s.db}
}

// Identity returns the administrator and role store.
func (s *Store) Identity() *IdentityStore {
	return &IdentityStore{q: s.db}
}

// Channels returns the zone, channel and stock location store.
func (s *Store) Channels() *ChannelStore {
	return &ChannelStore{q: s.db}
}

// Trail returns the provisioning record log.
func (s *Store) Trail() *ProvisioningLog {
	return &ProvisioningLog{q: s.db}
}

// Do runs fn with repositories bound to a single transaction and commits
// only if fn succeeds.
func (s *Store) Do(ctx context.Context, fn func(stores domain.Stores) error) error {
	return inTx(ctx, s.db, func(tx querier) error {
		return fn(domain.Stores{
			Sellers:  &SellerRepository{q: tx},
			Identity: &IdentityStore{q: tx},
		})
	})
}

// inTx runs fn in a transaction. When q is already a transaction fn joins it.
func inTx(ctx context.Context, q querier, fn func(tx querier) error) error {
	db, ok := q.(*sql.DB)
	if !ok {
		return fn(q)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

const timeFormat = "2006-01-02T15:04:05Z"

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// violatedColumn extracts "table.column" from a UNIQUE constraint error.
func violatedColumn(err error) string {
	_, after, found := strings.Cut(err.Error(), "UNIQUE constraint failed: ")
	if !found {
		return ""
	}
	col, _, _ := strings.Cut(after, " ")
	return strings.TrimRight(col, ",)")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
