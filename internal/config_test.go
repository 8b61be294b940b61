package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/threatmap/pkg/config"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
}

func TestStoreConfig_EmptyDriverDefaultsSQLite(t *testing.T) {
	cfg := StoreConfig{SQLitePath: "x.db"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty driver should default to sqlite: %v", err)
	}
	if cfg.Driver != StoreDriverSQLite {
		t.Errorf("driver = %q, want %q", cfg.Driver, StoreDriverSQLite)
	}
}

func TestStoreConfig_UnknownDriver(t *testing.T) {
	cfg := StoreConfig{Driver: "postgres", SQLitePath: "x.db"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown driver should fail validation")
	}
}

func TestStoreConfig_PathRequiredForDriver(t *testing.T) {
	cfg := StoreConfig{Driver: StoreDriverBadger, SQLitePath: "x.db"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("badger without badger_path should fail")
	}
	if !strings.Contains(err.Error(), "badger_path") {
		t.Errorf("unexpected error: %v", err)
	}

	cfg = StoreConfig{Driver: StoreDriverBadger, BadgerPath: "./data"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("badger with path should pass: %v", err)
	}
}

func TestFullConfig_CatalogValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Catalog.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch catalog error")
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("THREATMAP_TEST_PORT", "9090")
	content := `app:
  log_level: debug
  http:
    port: ${THREATMAP_TEST_PORT}
store:
  driver: badger
  badger_path: /tmp/threatmap
catalog:
  path: ./threats
  watch: false
  analysis_throttle: 500ms
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 {
		t.Errorf("port = %d", cfg.App.HTTP.Port)
	}
	if cfg.Store.Driver != StoreDriverBadger || cfg.Store.SQLitePath != "./threat_model.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Catalog.Watch || cfg.Catalog.AnalysisThrottle != 500*time.Millisecond {
		t.Errorf("catalog = %+v", cfg.Catalog)
	}
}
