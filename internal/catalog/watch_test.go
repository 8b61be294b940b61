package catalog

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/threatmap/internal/modelservice"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func threatExists(svc *modelservice.Service, id string) bool {
	_, err := svc.GetThreat(context.Background(), id)
	return err == nil
}

func TestWatcher_NewFileImported(t *testing.T) {
	d, svc, s := syncEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	go Watch(ctx, s, quietLogger(), func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(d.Root(), "new.yaml"), []byte(sample), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return threatExists(svc, "ADV001")
	}, "new file not imported by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "imported:new.yaml" {
				return true
			}
		}
		return false
	}, "expected imported:new.yaml callback")
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	d, _, s := syncEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	go Watch(ctx, s, quietLogger(), func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(d.Root(), "README.md"), []byte(sample), 0o644)
	time.Sleep(500 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 0 {
		t.Errorf("unexpected events %v", events)
	}
}

func TestWatcher_NewDirWatched(t *testing.T) {
	d, svc, s := syncEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, s, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(d.Root(), "team")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(subDir, "deep.yaml"), []byte(sample), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return threatExists(svc, "ADV001")
	}, "file in new subdir not imported by watcher")
}

func TestWatcher_DeleteRemovesThreats(t *testing.T) {
	d, svc, s := syncEnv(t)
	_ = os.WriteFile(filepath.Join(d.Root(), "del.yaml"), []byte(sample), 0o644)
	if _, err := s.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !threatExists(svc, "ADV001") {
		t.Fatal("precondition: threat should be imported")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, s, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(d.Root(), "del.yaml"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !threatExists(svc, "ADV001")
	}, "threat of deleted file still stored")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	d, svc, s := syncEnv(t)
	_ = os.WriteFile(filepath.Join(d.Root(), "old.yaml"), []byte(sample), 0o644)
	if _, err := s.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, s, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(d.Root(), "old.yaml"), filepath.Join(d.Root(), "renamed.yaml"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		paths := s.trackedPaths()
		return len(paths) == 1 && paths[0] == "renamed.yaml" && threatExists(svc, "ADV001")
	}, "rename reconciliation failed: renamed file should own the threat")
}
