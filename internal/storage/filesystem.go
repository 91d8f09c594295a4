// Package storage provides content-addressed object storage backends.
package storage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"

	"dvs-go/internal/dvs"
	"dvs-go/internal/oid"
)

// FileSystemBackend stores objects as files under a directory tree
// sharded by digest prefix:
//
//	<root>/
//	  <algo>/
//	    <hex[:2]>/
//	      <hex[2:]>    (object content, named by digest)
//
// An object's presence on disk is the source of truth for Exists.
type FileSystemBackend struct {
	root     string
	filePerm fs.FileMode
	dirPerm  fs.FileMode
	gid      int // -1 when no group override is configured
}

// NewFileSystemBackend creates a backend rooted at the given path,
// creating the root if necessary. filePerm applies to stored objects;
// group, when non-empty, names a system group that stored objects are
// chowned to.
func NewFileSystemBackend(root string, filePerm fs.FileMode, group string) (*FileSystemBackend, error) {
	dirPerm := filePerm | 0o100
	if filePerm&0o040 != 0 {
		dirPerm |= 0o010
	}
	if filePerm&0o004 != 0 {
		dirPerm |= 0o001
	}

	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}

	gid := -1
	if group != "" {
		g, err := user.LookupGroup(group)
		if err != nil {
			return nil, fmt.Errorf("looking up group %q: %w", group, err)
		}
		gid, err = strconv.Atoi(g.Gid)
		if err != nil {
			return nil, fmt.Errorf("parsing gid for group %q: %w", group, err)
		}
	}

	return &FileSystemBackend{
		root:     root,
		filePerm: filePerm,
		dirPerm:  dirPerm,
		gid:      gid,
	}, nil
}

// Root returns the backend's root directory.
func (b *FileSystemBackend) Root() string {
	return b.root
}

// ObjectPath returns the on-disk path for an object id.
func (b *FileSystemBackend) ObjectPath(id oid.OID) string {
	return filepath.Join(b.root, filepath.FromSlash(id.Subpath()))
}

// Exists reports whether the object is stored.
func (b *FileSystemBackend) Exists(id oid.OID) bool {
	info, err := os.Stat(b.ObjectPath(id))
	return err == nil && info.Mode().IsRegular()
}

// Read returns the full content of an object, or (nil, nil) if the
// object is absent.
func (b *FileSystemBackend) Read(id oid.OID) ([]byte, error) {
	data, err := os.ReadFile(b.ObjectPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading object %s: %w", id, err)
	}
	return data, nil
}

// Store copies the file at sourcePath into storage under id. Storing
// an id that already exists is a no-op.
func (b *FileSystemBackend) Store(id oid.OID, sourcePath string) error {
	destPath := b.ObjectPath(id)
	if _, err := os.Stat(destPath); err == nil {
		return nil
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("opening source %s: %w", sourcePath, err)
	}
	defer src.Close()

	return b.writeObject(destPath, src)
}

// StoreBytes stores raw content under id.
func (b *FileSystemBackend) StoreBytes(id oid.OID, content []byte) error {
	destPath := b.ObjectPath(id)
	if _, err := os.Stat(destPath); err == nil {
		return nil
	}

	tmp, err := b.stageObject(destPath)
	if err != nil {
		return err
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing object: %w", err)
	}
	return b.commitObject(tmp, destPath)
}

// Retrieve copies the object to targetPath, creating parent
// directories as needed. Returns (false, nil) if the object is absent.
func (b *FileSystemBackend) Retrieve(id oid.OID, targetPath string) (bool, error) {
	src, err := os.Open(b.ObjectPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("opening object %s: %w", id, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return false, fmt.Errorf("creating target directory: %w", err)
	}

	// Same temp-file-then-rename discipline as Store so a failed copy
	// never leaves a truncated working file behind.
	tmp, err := os.CreateTemp(filepath.Dir(targetPath), ".tmp-*")
	if err != nil {
		return false, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return false, fmt.Errorf("copying object %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("setting file mode: %w", err)
	}
	if err := os.Rename(tmpPath, targetPath); err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("renaming into place: %w", err)
	}
	return true, nil
}

// Remove deletes a stored object. Removing an absent object is a
// no-op. Only rollback paths call this; normal operation never
// deletes stored content.
func (b *FileSystemBackend) Remove(id oid.OID) error {
	if err := os.Remove(b.ObjectPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing object %s: %w", id, err)
	}
	return nil
}

// writeObject writes r to destPath atomically via a temp file in the
// shard directory.
func (b *FileSystemBackend) writeObject(destPath string, r io.Reader) error {
	tmp, err := b.stageObject(destPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing object: %w", err)
	}
	return b.commitObject(tmp, destPath)
}

func (b *FileSystemBackend) stageObject(destPath string) (*os.File, error) {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, b.dirPerm); err != nil {
		return nil, fmt.Errorf("creating shard directory: %w", err)
	}
	// Temp file in the shard directory so the final rename is atomic.
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	return tmp, nil
}

func (b *FileSystemBackend) commitObject(tmp *os.File, destPath string) error {
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, b.filePerm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting object mode: %w", err)
	}
	if b.gid >= 0 {
		if err := os.Chown(tmpPath, -1, b.gid); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("setting object group: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming object into place: %w", err)
	}
	return nil
}

// Compile-time check that FileSystemBackend implements dvs.StorageBackend
var _ dvs.StorageBackend = (*FileSystemBackend)(nil)
