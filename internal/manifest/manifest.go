// Package manifest maintains the repository lock file: an ordered
// index of every tracked path and the object it currently points at.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/renameio"

	"dvs-go/internal/oid"
)

// Filename is the manifest file, written at the repository root.
const Filename = "dvs.lock"

// Version is the current manifest schema version.
const Version = 1

// Entry records one tracked path.
type Entry struct {
	Path  string  `json:"path"`
	OID   oid.OID `json:"oid"`
	Bytes uint64  `json:"bytes"`
}

// Manifest is the ordered set of tracked paths. Entries keep first-add
// order; re-adding a path updates its entry in place.
type Manifest struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`

	index map[string]int // path -> position in Entries
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{
		Version: Version,
		index:   make(map[string]int),
	}
}

// Load reads a manifest file. A missing file is an error satisfying
// os.IsNotExist; callers that want start-from-empty semantics must
// check for that case explicitly. Any other failure, including corrupt
// content, is a hard error: silently starting from an empty manifest
// would untrack every file on the next save.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if m.Version != Version {
		return nil, fmt.Errorf("parsing manifest %s: unsupported version %d", path, m.Version)
	}

	m.index = make(map[string]int, len(m.Entries))
	for i, e := range m.Entries {
		if _, dup := m.index[e.Path]; dup {
			return nil, fmt.Errorf("parsing manifest %s: duplicate path %q", path, e.Path)
		}
		m.index[e.Path] = i
	}
	return &m, nil
}

// LoadOrNew loads the manifest at path, returning an empty manifest
// only when the file does not exist.
func LoadOrNew(path string) (*Manifest, error) {
	m, err := Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, err
	}
	return m, nil
}

// Get returns the entry for a path, if tracked.
func (m *Manifest) Get(path string) (Entry, bool) {
	i, ok := m.index[path]
	if !ok {
		return Entry{}, false
	}
	return m.Entries[i], true
}

// Len returns the number of tracked paths.
func (m *Manifest) Len() int {
	return len(m.Entries)
}

// Paths returns the tracked paths in manifest order.
func (m *Manifest) Paths() []string {
	paths := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		paths[i] = e.Path
	}
	return paths
}

// Upsert adds or updates the entry for e.Path and reports whether the
// manifest changed. Re-adding identical content is a no-op.
func (m *Manifest) Upsert(e Entry) bool {
	if i, ok := m.index[e.Path]; ok {
		if m.Entries[i] == e {
			return false
		}
		m.Entries[i] = e
		return true
	}
	if m.index == nil {
		m.index = make(map[string]int)
	}
	m.index[e.Path] = len(m.Entries)
	m.Entries = append(m.Entries, e)
	return true
}

// Remove deletes the entry for a path, preserving the order of the
// remaining entries. Returns false if the path was not tracked.
func (m *Manifest) Remove(path string) bool {
	i, ok := m.index[path]
	if !ok {
		return false
	}
	m.Entries = append(m.Entries[:i], m.Entries[i+1:]...)
	delete(m.index, path)
	for j := i; j < len(m.Entries); j++ {
		m.index[m.Entries[j].Path] = j
	}
	return true
}

// Save writes the manifest atomically.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	data = append(data, '\n')

	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return nil
}
