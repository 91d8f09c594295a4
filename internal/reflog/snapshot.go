package reflog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"dvs-go/internal/oid"
)

// SnapshotStore persists workspace states content-addressed by their
// state id. Snapshots are immutable: saving an existing state is a
// no-op, and nothing ever deletes one.
type SnapshotStore struct {
	dir  string
	algo oid.Algo
}

// NewSnapshotStore creates a store in dir, creating it if necessary.
func NewSnapshotStore(dir string, algo oid.Algo) (*SnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	return &SnapshotStore{dir: dir, algo: algo}, nil
}

// Save persists the state and returns its id.
func (s *SnapshotStore) Save(state *WorkspaceState) (oid.OID, error) {
	data, err := state.Canonical()
	if err != nil {
		return oid.OID{}, err
	}
	id, err := oid.SumBytes(s.algo, data)
	if err != nil {
		return oid.OID{}, err
	}

	path := filepath.Join(s.dir, snapshotName(id))
	if _, err := os.Stat(path); err == nil {
		return id, nil
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return oid.OID{}, fmt.Errorf("writing snapshot %s: %w", id, err)
	}
	return id, nil
}

// Exists reports whether a snapshot is stored for id.
func (s *SnapshotStore) Exists(id oid.OID) bool {
	info, err := os.Stat(filepath.Join(s.dir, snapshotName(id)))
	return err == nil && info.Mode().IsRegular()
}

// Load reads the snapshot for id.
func (s *SnapshotStore) Load(id oid.OID) (*WorkspaceState, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, snapshotName(id)))
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", id, err)
	}

	var state WorkspaceState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", id, err)
	}
	return &state, nil
}
