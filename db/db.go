package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vpnda/potpilot/pkg/secret"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// DB represents the database connection
type DB struct {
	*sql.DB
	driver string
	sealer *secret.Sealer
}

type Option func(*DB)

// WithSealer encrypts OAuth tokens at rest
func WithSealer(s *secret.Sealer) Option {
	return func(db *DB) {
		db.sealer = s
	}
}

// New creates a new SQLite database connection
func New(dbPath string, opts ...Option) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return open(DriverSQLite, dbPath, opts...)
}

// NewPostgres creates a new connection pool to a PostgreSQL database
func NewPostgres(dsn string, opts ...Option) (*DB, error) {
	db, err := open(DriverPostgres, dsn, opts...)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// Open picks the driver by name. An empty driver means SQLite.
func Open(driver, dsn string, opts ...Option) (*DB, error) {
	switch driver {
	case "", DriverSQLite, "sqlite":
		return New(dsn, opts...)
	case DriverPostgres, "postgresql":
		return NewPostgres(dsn, opts...)
	}
	return nil, fmt.Errorf("unsupported database driver: %s", driver)
}

func open(driver, dsn string, opts ...Option) (*DB, error) {
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{DB: sqlDB, driver: driver}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Initialize creates the necessary tables if they don't exist
func (db *DB) Initialize() error {
	if err := db.createAutomationsTable(); err != nil {
		return err
	}
	if err := db.createLinkedAccountsTable(); err != nil {
		return err
	}
	if err := db.createPotsTable(); err != nil {
		return err
	}
	return db.createPendingApprovalsTable()
}

// rebind rewrites ? placeholders into $n for PostgreSQL
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ddl adapts column types that differ between drivers
func (db *DB) ddl(query string) string {
	if db.driver == DriverPostgres {
		return strings.ReplaceAll(query, "TIMESTAMP", "TIMESTAMPTZ")
	}
	return query
}

func (db *DB) exec(query string, args ...any) (sql.Result, error) {
	return db.Exec(db.rebind(query), args...)
}

func (db *DB) query(query string, args ...any) (*sql.Rows, error) {
	return db.Query(db.rebind(query), args...)
}

func (db *DB) queryRow(query string, args ...any) *sql.Row {
	return db.QueryRow(db.rebind(query), args...)
}

func (db *DB) seal(s string) (string, error) {
	if db.sealer == nil {
		return s, nil
	}
	return db.sealer.Seal(s)
}

func (db *DB) unseal(s string) (string, error) {
	if db.sealer == nil {
		return s, nil
	}
	return db.sealer.Open(s)
}

// ts normalises times before they are written so stored values compare
// correctly as text in SQLite.
func ts(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func nullTS(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: ts(*t), Valid: true}
}

func fromNullTS(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func expectOneRow(result sql.Result, what, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("no %s found with id: %s", what, id)
	}
	return nil
}
