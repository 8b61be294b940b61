package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func tempCatalog(t *testing.T) *Dir {
	t.Helper()
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	return d
}

func TestWriteAndRead(t *testing.T) {
	d := tempCatalog(t)
	content := []byte("threats: []\n")
	if err := d.Write("base.yaml", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := d.Read("base.yaml")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	d := tempCatalog(t)
	if err := d.Write("teams/red/c.yml", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := d.Read("teams/red/c.yml")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	d := tempCatalog(t)
	_ = d.Write("del.yaml", []byte("bye"))
	if err := d.Delete("del.yaml"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := d.Read("del.yaml"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestPathTraversal(t *testing.T) {
	d := tempCatalog(t)
	for _, p := range []string{"../escape.yaml", "a/../../escape.yaml", "/etc/passwd"} {
		if err := d.Write(p, []byte("x")); err == nil {
			t.Errorf("Write(%q) should fail", p)
		}
		if _, err := d.Read(p); err == nil {
			t.Errorf("Read(%q) should fail", p)
		}
	}
}

func TestList_OnlyCatalogFiles(t *testing.T) {
	d := tempCatalog(t)
	_ = d.Write("a.yaml", []byte("a"))
	_ = d.Write("sub/b.YML", []byte("b"))
	_ = d.Write("notes.md", []byte("c"))
	_ = os.WriteFile(filepath.Join(d.Root(), ".hidden.yaml"), []byte("d"), 0o644)

	metas, err := d.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	got := map[string]string{}
	for _, m := range metas {
		got[m.Path] = m.Checksum
	}
	if len(got) != 2 {
		t.Fatalf("listed %v, want a.yaml and sub/b.YML", got)
	}
	if got["a.yaml"] == "" || got[filepath.Join("sub", "b.YML")] == "" {
		t.Errorf("missing entries or checksums: %v", got)
	}
}

func TestNewDir_NotADirectory(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	_ = os.WriteFile(f, nil, 0o644)
	if _, err := NewDir(f); err == nil {
		t.Error("expected error for a file root")
	}
}
