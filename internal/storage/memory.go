package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"dvs-go/internal/dvs"
	"dvs-go/internal/oid"
)

// MemoryBackend is an in-memory implementation of dvs.StorageBackend.
// It keeps all objects in a map, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryBackend struct {
	objects map[string][]byte // id.String() -> content
	mu      sync.RWMutex
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		objects: make(map[string][]byte),
	}
}

// Exists reports whether the object is stored.
func (m *MemoryBackend) Exists(id oid.OID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.objects[id.String()]
	return ok
}

// Read returns the object content, or (nil, nil) if absent.
func (m *MemoryBackend) Read(id oid.OID) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[id.String()]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Store reads the file at sourcePath into memory under id.
// Storing an existing id is a no-op.
func (m *MemoryBackend) Store(id oid.OID, sourcePath string) error {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("reading source %s: %w", sourcePath, err)
	}
	return m.StoreBytes(id, data)
}

// StoreBytes stores raw content under id.
func (m *MemoryBackend) StoreBytes(id oid.OID, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[id.String()]; ok {
		return nil
	}
	data := make([]byte, len(content))
	copy(data, content)
	m.objects[id.String()] = data
	return nil
}

// Retrieve writes the object to targetPath. Returns (false, nil) if
// the object is absent.
func (m *MemoryBackend) Retrieve(id oid.OID, targetPath string) (bool, error) {
	m.mu.RLock()
	data, ok := m.objects[id.String()]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return false, fmt.Errorf("creating target directory: %w", err)
	}
	if err := os.WriteFile(targetPath, data, 0o644); err != nil {
		return false, fmt.Errorf("writing %s: %w", targetPath, err)
	}
	return true, nil
}

// Remove deletes an object. Removing an absent object is a no-op.
func (m *MemoryBackend) Remove(id oid.OID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, id.String())
	return nil
}

// Len returns the number of stored objects.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.objects)
}

// Compile-time check that MemoryBackend implements dvs.StorageBackend
var _ dvs.StorageBackend = (*MemoryBackend)(nil)
