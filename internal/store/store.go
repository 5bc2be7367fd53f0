package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported ledger drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

type Store struct {
	db     *sqlx.DB
	driver string
	now    func() time.Time
}

// NewStore opens the ledger database for the given driver
func NewStore(driver, databaseURL string) (*Store, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported ledger driver: %q", driver)
	}

	db, err := sqlx.Connect(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		// single writer keeps ids monotonic and avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	return NewStoreFromDB(db, driver), nil
}

// NewStoreFromDB wraps an already opened connection
func NewStoreFromDB(db *sqlx.DB, driver string) *Store {
	return &Store{db: db, driver: driver, now: time.Now}
}

// SetClock replaces the clock used to stamp created_at
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Ping checks the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the ledger tables if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if s.driver == DriverSQLite {
		schema = sqliteSchema
	}

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		id BIGSERIAL PRIMARY KEY,
		prescription_id TEXT,
		user_id TEXT,
		total_price NUMERIC(14,2) NOT NULL,
		payment_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
		change_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions (created_at);`,
	`CREATE TABLE IF NOT EXISTS saga_log (
		id BIGSERIAL PRIMARY KEY,
		prescription_id TEXT NOT NULL,
		status TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS discrepancies (
		id BIGSERIAL PRIMARY KEY,
		event_id TEXT NOT NULL UNIQUE,
		prescription_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		items TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		prescription_id TEXT,
		user_id TEXT,
		total_price TEXT NOT NULL,
		payment_amount TEXT NOT NULL DEFAULT '0',
		change_amount TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions (created_at);`,
	`CREATE TABLE IF NOT EXISTS saga_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		prescription_id TEXT NOT NULL,
		status TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS discrepancies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id TEXT NOT NULL UNIQUE,
		prescription_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		items TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);`,
}
