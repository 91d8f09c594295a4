package repo

import (
	"os"
	"path/filepath"
	"testing"

	"dvs-go/internal/config"
	"dvs-go/internal/dvs"
)

func TestInitAndFind(t *testing.T) {
	root := t.TempDir()

	r, err := Init(root, config.NewConfig(".dvs/objects"))
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if _, err := os.Stat(r.ConfigPath()); err != nil {
		t.Errorf("config file not written: %v", err)
	}
	for _, dir := range []string{r.RefsDir(), r.ReflogDir(), r.SnapshotsDir(), r.LogDir()} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("directory %s not created: %v", dir, err)
		}
	}

	// Find from a nested directory walks up to the root.
	nested := filepath.Join(root, "data", "raw")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("creating nested dir: %v", err)
	}
	found, err := Find(nested)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if found != r.Root {
		t.Errorf("Find() = %q, want %q", found, r.Root)
	}
}

func TestFind_NotInitialized(t *testing.T) {
	_, err := Find(t.TempDir())
	if err == nil {
		t.Fatal("Find() expected error outside a repository")
	}
	if dvs.KindOf(err) != dvs.KindNotInitialized {
		t.Errorf("error kind = %v, want NotInitialized", dvs.KindOf(err))
	}
}

func TestInit_Rerun(t *testing.T) {
	root := t.TempDir()
	cfg := config.NewConfig(".dvs/objects")

	if _, err := Init(root, cfg); err != nil {
		t.Fatalf("first Init() error = %v", err)
	}

	// Identical settings: idempotent.
	if _, err := Init(root, config.NewConfig(".dvs/objects")); err != nil {
		t.Errorf("re-Init() with same settings error = %v", err)
	}

	// Different settings: refused.
	other := config.NewConfig("/srv/other-store")
	if _, err := Init(root, other); err == nil {
		t.Error("re-Init() with different settings expected error")
	}
}

func TestOpen(t *testing.T) {
	root := t.TempDir()
	cfg := config.NewConfig(".dvs/objects")
	cfg.Storage.Permissions = "640"
	if _, err := Init(root, cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	r, err := Open(root)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if r.Config.Storage.Permissions != "640" {
		t.Errorf("Permissions = %q, want 640", r.Config.Storage.Permissions)
	}
}

func TestOpen_CorruptConfig(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, config.Filename), []byte("{{{{"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	_, err := Open(root)
	if err == nil {
		t.Fatal("Open() expected error for corrupt config")
	}
	if dvs.KindOf(err) != dvs.KindParseError {
		t.Errorf("error kind = %v, want ParseError", dvs.KindOf(err))
	}
}

func TestFileLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".dvs", "lock")

	l1 := NewFileLock(path)
	if err := l1.Acquire(); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	l2 := NewFileLock(path)
	if err := l2.Acquire(); err == nil {
		t.Error("second Acquire() expected error while lock held")
	}

	if err := l1.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lock file still present after Release()")
	}

	if err := l2.Acquire(); err != nil {
		t.Errorf("Acquire() after release error = %v", err)
	}
	if err := l2.Release(); err != nil {
		t.Errorf("Release() error = %v", err)
	}
	// Double release is a no-op.
	if err := l2.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
}
