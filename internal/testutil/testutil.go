// Package testutil provides shared test helpers for setting up stores.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/starford/threatmap/internal/store/badgerstore"
	"github.com/starford/threatmap/internal/store/sqlitestore"
)

// TestDB creates a temporary SQLite store that is closed on cleanup.
func TestDB(t *testing.T) *sqlitestore.DB {
	t.Helper()
	db, err := sqlitestore.Open(filepath.Join(t.TempDir(), "threat_model.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestMemDB creates an in-memory Badger store that is closed on cleanup.
func TestMemDB(t *testing.T) *badgerstore.DB {
	t.Helper()
	db, err := badgerstore.OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
