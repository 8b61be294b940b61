// Package sqlitestore is the SQLite relation store. Its schema matches the
// threat_model.db file written by earlier versions, so existing databases
// open in place.
package sqlitestore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/threatmap/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB is a store.Store backed by one SQLite file.
type DB struct {
	conn *sql.DB
}

var _ store.Store = (*DB)(nil)

// Open migrates the database at path to the latest schema and opens it.
func Open(path string) (*DB, error) {
	if err := Migrate(path); err != nil {
		return nil, err
	}
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=off")
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlitestore: ping: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Migrate applies pending migrations. An up-to-date database is not an error.
func Migrate(path string) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("sqlitestore: migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite3://"+path)
	if err != nil {
		return fmt.Errorf("sqlitestore: migration instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			slog.Warn("close migration source", slog.String("error", srcErr.Error()))
		}
		if dbErr != nil {
			slog.Warn("close migration database", slog.String("error", dbErr.Error()))
		}
	}()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("sqlitestore: migrate: %w", err)
	}
	version, _, _ := m.Version()
	slog.Info("applied store migrations", slog.Uint64("version", uint64(version)))
	return nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
