package sqlitestore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/threatmap/internal/models"
	"github.com/starford/threatmap/internal/store"
	"github.com/starford/threatmap/internal/store/storetest"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "threat_model.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return db
}

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return testDB(t) })
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	defer db.Close()
	for _, table := range []string{"threats", "mitigations", "subdomains", "iterations"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestMigrateIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threat_model.db")
	if err := Migrate(path); err != nil {
		t.Fatalf("first Migrate: %v", err)
	}
	if err := Migrate(path); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

// A database created by earlier versions has the tables but no migration
// history, NULL columns and naive timestamps.
func TestOpenLegacyDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threat_model.db")
	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	_, err = raw.Exec(`
		CREATE TABLE threats (id TEXT PRIMARY KEY, name TEXT NOT NULL, description TEXT,
			severity TEXT, domain TEXT, created_date TEXT);
		CREATE TABLE mitigations (id TEXT PRIMARY KEY, threat_id TEXT, name TEXT NOT NULL,
			description TEXT, status TEXT, domain TEXT, created_date TEXT,
			FOREIGN KEY (threat_id) REFERENCES threats (id));
		INSERT INTO threats VALUES ('ADV001', 'Phishing', NULL, 'High', 'People', '2024-05-01T09:30:15.123456');
		INSERT INTO mitigations VALUES ('MIT001', 'ADV001', 'Training', NULL, 'Planned', NULL, '2024-05-02 08:00:00');
	`)
	raw.Close()
	if err != nil {
		t.Fatalf("seed legacy db: %v", err)
	}

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	th, err := db.GetThreat(ctx, "ADV001")
	if err != nil {
		t.Fatalf("GetThreat: %v", err)
	}
	if th.Description != "" || th.CreatedDate.Year() != 2024 {
		t.Errorf("threat = %+v", th)
	}
	all, err := db.ListAllMitigations(ctx)
	if err != nil {
		t.Fatalf("ListAllMitigations: %v", err)
	}
	if len(all) != 1 || all[0].ThreatName != "Phishing" || all[0].Status != models.StatusPlanned {
		t.Errorf("mitigations = %+v", all)
	}
}

func TestStoredTimestampsAreFixedWidth(t *testing.T) {
	db := testDB(t)
	defer db.Close()
	ctx := context.Background()
	if err := db.UpsertThreat(ctx, models.Threat{ID: "T1", Name: "x"}); err != nil {
		t.Fatal(err)
	}
	var created string
	if err := db.conn.QueryRow(`SELECT created_date FROM threats WHERE id = 'T1'`).Scan(&created); err != nil {
		t.Fatal(err)
	}
	if len(created) != len(models.TimestampLayout) {
		t.Errorf("created_date %q is not in the fixed-width layout", created)
	}
}
