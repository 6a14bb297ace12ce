package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

// FileName is the name of the catalog database inside the data directory
const FileName = "imgflare.db"

// MemoryDSN opens a private in-memory database
const MemoryDSN = ":memory:"

//go:embed migrations/*.sql
var migrations embed.FS

// Open opens the sqlite catalog at filename, creating its parent directory.
// The handle is limited to a single connection so writes coming from
// concurrent batch workers serialize instead of failing with SQLITE_BUSY,
// and an in-memory database stays on one connection.
func Open(filename string) (*sql.DB, error) {
	dsn := filename
	if filename != MemoryDSN {
		if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
			return nil, fmt.Errorf("while creating data directory: %w", err)
		}
		dsn = filename + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("while opening database '%s': %w", filename, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Migrate brings the schema up to date. Running it on an up to date
// database is a no-op, so it is safe to call on every start.
func Migrate(ctx context.Context, db *sql.DB) (uint, error) {
	if err := db.PingContext(ctx); err != nil {
		return 0, fmt.Errorf("while connecting to database: %w", err)
	}
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return 0, fmt.Errorf("while loading migrations: %w", err)
	}
	defer src.Close()

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("while preparing migration driver: %w", err)
	}
	// m.Close would close db through the driver, so it is not called here
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("while preparing migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("while applying migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("while reading schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

// OpenAndMigrate opens the catalog and prepares its schema
func OpenAndMigrate(ctx context.Context, filename string) (*sql.DB, error) {
	db, err := Open(filename)
	if err != nil {
		return nil, err
	}
	if _, err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
