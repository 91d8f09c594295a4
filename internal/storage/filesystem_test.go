package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dvs-go/internal/oid"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestNewFileSystemBackend(t *testing.T) {
	t.Run("creates root directory", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "objects")

		b, err := NewFileSystemBackend(root, 0o664, "")
		if err != nil {
			t.Fatalf("NewFileSystemBackend() error = %v", err)
		}

		info, err := os.Stat(root)
		if err != nil {
			t.Fatalf("root not created: %v", err)
		}
		if !info.IsDir() {
			t.Errorf("root is not a directory")
		}
		if b.Root() != root {
			t.Errorf("Root() = %q, want %q", b.Root(), root)
		}
	})

	t.Run("unknown group", func(t *testing.T) {
		_, err := NewFileSystemBackend(t.TempDir(), 0o664, "no-such-group-dvs")
		if err == nil {
			t.Error("NewFileSystemBackend() expected error for unknown group")
		}
	})
}

func TestFileSystemBackend_StoreAndExists(t *testing.T) {
	tmpDir := t.TempDir()
	b, err := NewFileSystemBackend(filepath.Join(tmpDir, "objects"), 0o664, "")
	if err != nil {
		t.Fatalf("NewFileSystemBackend() error = %v", err)
	}

	content := "hello world"
	src := writeTemp(t, tmpDir, "data.csv", content)
	id, err := oid.SumFile(oid.Blake3, src)
	if err != nil {
		t.Fatalf("SumFile() error = %v", err)
	}

	if b.Exists(id) {
		t.Error("Exists() = true before Store()")
	}

	if err := b.Store(id, src); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	if !b.Exists(id) {
		t.Error("Exists() = false after Store()")
	}

	// Objects live under <algo>/<hex[:2]>/<hex[2:]>.
	wantPath := filepath.Join(b.Root(), id.Algo.String(), id.Hex[:2], id.Hex[2:])
	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("object not at sharded path: %v", err)
	}
	if string(data) != content {
		t.Errorf("object content = %q, want %q", string(data), content)
	}
}

func TestFileSystemBackend_StoreIdempotent(t *testing.T) {
	tmpDir := t.TempDir()
	b, err := NewFileSystemBackend(filepath.Join(tmpDir, "objects"), 0o664, "")
	if err != nil {
		t.Fatalf("NewFileSystemBackend() error = %v", err)
	}

	src := writeTemp(t, tmpDir, "data.csv", "hello world")
	id, err := oid.SumFile(oid.Blake3, src)
	if err != nil {
		t.Fatalf("SumFile() error = %v", err)
	}

	if err := b.Store(id, src); err != nil {
		t.Fatalf("first Store() error = %v", err)
	}
	objPath := b.ObjectPath(id)
	before, err := os.Stat(objPath)
	if err != nil {
		t.Fatalf("stat object: %v", err)
	}

	if err := b.Store(id, src); err != nil {
		t.Fatalf("second Store() error = %v", err)
	}
	after, err := os.Stat(objPath)
	if err != nil {
		t.Fatalf("stat object: %v", err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("second Store() rewrote an existing object")
	}
}

func TestFileSystemBackend_Permissions(t *testing.T) {
	tmpDir := t.TempDir()
	b, err := NewFileSystemBackend(filepath.Join(tmpDir, "objects"), 0o640, "")
	if err != nil {
		t.Fatalf("NewFileSystemBackend() error = %v", err)
	}

	src := writeTemp(t, tmpDir, "data.csv", "restricted")
	id, err := oid.SumFile(oid.Blake3, src)
	if err != nil {
		t.Fatalf("SumFile() error = %v", err)
	}
	if err := b.Store(id, src); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	info, err := os.Stat(b.ObjectPath(id))
	if err != nil {
		t.Fatalf("stat object: %v", err)
	}
	if got := info.Mode().Perm(); got != 0o640 {
		t.Errorf("object mode = %o, want %o", got, 0o640)
	}
}

func TestFileSystemBackend_Retrieve(t *testing.T) {
	tmpDir := t.TempDir()
	b, err := NewFileSystemBackend(filepath.Join(tmpDir, "objects"), 0o664, "")
	if err != nil {
		t.Fatalf("NewFileSystemBackend() error = %v", err)
	}

	t.Run("retrieve existing object", func(t *testing.T) {
		content := "hello world"
		src := writeTemp(t, tmpDir, "data.csv", content)
		id, err := oid.SumFile(oid.Blake3, src)
		if err != nil {
			t.Fatalf("SumFile() error = %v", err)
		}
		if err := b.Store(id, src); err != nil {
			t.Fatalf("Store() error = %v", err)
		}

		target := filepath.Join(tmpDir, "out", "data.csv")
		found, err := b.Retrieve(id, target)
		if err != nil {
			t.Fatalf("Retrieve() error = %v", err)
		}
		if !found {
			t.Fatal("Retrieve() found = false for stored object")
		}

		data, err := os.ReadFile(target)
		if err != nil {
			t.Fatalf("reading target: %v", err)
		}
		if string(data) != content {
			t.Errorf("target content = %q, want %q", string(data), content)
		}
	})

	t.Run("object not found", func(t *testing.T) {
		id := oid.New(oid.Blake3, strings.Repeat("ab", 32))
		found, err := b.Retrieve(id, filepath.Join(tmpDir, "missing.csv"))
		if err != nil {
			t.Fatalf("Retrieve() error = %v", err)
		}
		if found {
			t.Error("Retrieve() found = true for absent object")
		}
		if _, err := os.Stat(filepath.Join(tmpDir, "missing.csv")); !os.IsNotExist(err) {
			t.Error("Retrieve() created a target file for absent object")
		}
	})
}

func TestFileSystemBackend_ReadAndStoreBytes(t *testing.T) {
	b, err := NewFileSystemBackend(filepath.Join(t.TempDir(), "objects"), 0o664, "")
	if err != nil {
		t.Fatalf("NewFileSystemBackend() error = %v", err)
	}

	content := []byte(`{"version":1}`)
	id := sumOID(t, content)

	data, err := b.Read(id)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if data != nil {
		t.Errorf("Read() = %q before store, want nil", data)
	}

	if err := b.StoreBytes(id, content); err != nil {
		t.Fatalf("StoreBytes() error = %v", err)
	}

	data, err = b.Read(id)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(data) != string(content) {
		t.Errorf("Read() = %q, want %q", data, content)
	}
}

func TestFileSystemBackend_Remove(t *testing.T) {
	b, err := NewFileSystemBackend(filepath.Join(t.TempDir(), "objects"), 0o664, "")
	if err != nil {
		t.Fatalf("NewFileSystemBackend() error = %v", err)
	}

	content := []byte("transient")
	id := sumOID(t, content)
	if err := b.StoreBytes(id, content); err != nil {
		t.Fatalf("StoreBytes() error = %v", err)
	}

	if err := b.Remove(id); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if b.Exists(id) {
		t.Error("Exists() = true after Remove()")
	}

	// Removing again is a no-op.
	if err := b.Remove(id); err != nil {
		t.Errorf("second Remove() error = %v", err)
	}
}

func TestFileSystemBackend_NoTempFilesLeft(t *testing.T) {
	tmpDir := t.TempDir()
	b, err := NewFileSystemBackend(filepath.Join(tmpDir, "objects"), 0o664, "")
	if err != nil {
		t.Fatalf("NewFileSystemBackend() error = %v", err)
	}

	src := writeTemp(t, tmpDir, "data.csv", "hello world")
	id, err := oid.SumFile(oid.Blake3, src)
	if err != nil {
		t.Fatalf("SumFile() error = %v", err)
	}
	if err := b.Store(id, src); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	shardDir := filepath.Dir(b.ObjectPath(id))
	entries, err := os.ReadDir(shardDir)
	if err != nil {
		t.Fatalf("reading shard dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", entry.Name())
		}
	}
}
