// Package persist stores subject hierarchy documents in SQLite. A document
// is the scene (data objects, display records, legacy nodes) plus the item
// tree as it was saved; loading hands both back unresolved.
package persist

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/subjecthierarchy/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrLocked is returned by Open when another process holds the document.
var ErrLocked = errors.New("document is locked by another process")

// DB is an open document database.
type DB struct {
	conn   *sql.DB
	lock   *flock.Flock
	path   string
	tracer trace.Tracer
}

// Option configures a DB.
type Option func(*DB)

// WithTracer records spans for saves and loads.
func WithTracer(t trace.Tracer) Option {
	return func(db *DB) {
		db.tracer = t
	}
}

// Open opens or creates the document database at path, takes the
// document lock and brings the schema up to date. An existing file is
// copied to path+".bak" before migrating.
func Open(path string, opts ...Option) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock document: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	db := &DB{lock: lock, path: path}
	for _, opt := range opts {
		opt(db)
	}

	if err := backup(path); err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)&_pragma=foreign_keys(1)"
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.conn = conn

	if err := migrateUp(conn); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug(log.CatDB, "database opened", "path", path)
	return db, nil
}

func migrateUp(conn *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(conn, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	// m.Close would close conn through the driver; only the source is
	// released here.
	defer func() { _ = src.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err == nil {
		log.Debug(log.CatDB, "schema ready", "version", version, "dirty", dirty)
	}
	return nil
}

// backup copies an existing database file next to itself.
func backup(path string) error {
	src, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open database for backup: %w", err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.OpenFile(path+".bak", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("failed to write backup: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

// Close closes the connection and releases the document lock.
func (db *DB) Close() error {
	var errs []error
	if db.conn != nil {
		errs = append(errs, db.conn.Close())
	}
	if db.lock != nil {
		errs = append(errs, db.lock.Unlock())
	}
	return errors.Join(errs...)
}

// Connection returns the underlying *sql.DB.
func (db *DB) Connection() *sql.DB {
	return db.conn
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}
