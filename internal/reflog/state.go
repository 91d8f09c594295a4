// Package reflog records the history of workspace states: every
// mutating operation captures a snapshot of what is tracked and
// appends a log entry linking the previous state to the new one.
package reflog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"dvs-go/internal/manifest"
	"dvs-go/internal/meta"
	"dvs-go/internal/oid"
)

// StateVersion is the current workspace state schema version.
const StateVersion = 1

// TrackedFile is one tracked path inside a workspace state: its
// repository-relative path and the sidecar record describing it.
type TrackedFile struct {
	Path   string      `json:"path"`
	Record meta.Record `json:"record"`
}

// WorkspaceState is a point-in-time description of everything tracked:
// the manifest plus every metadata sidecar, sorted by path. Two
// workspaces with identical tracked content produce identical states
// and therefore identical state ids.
type WorkspaceState struct {
	Version  int              `json:"version"`
	Manifest []manifest.Entry `json:"manifest"`
	Files    []TrackedFile    `json:"files"`
}

// Canonical returns the canonical JSON encoding of the state. Entries
// are path-sorted and map keys serialize in sorted order, so equal
// states always encode to equal bytes.
func (s *WorkspaceState) Canonical() ([]byte, error) {
	sort.Slice(s.Manifest, func(i, j int) bool { return s.Manifest[i].Path < s.Manifest[j].Path })
	sort.Slice(s.Files, func(i, j int) bool { return s.Files[i].Path < s.Files[j].Path })

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding workspace state: %w", err)
	}
	return data, nil
}

// ID returns the content address of the state under the given
// algorithm.
func (s *WorkspaceState) ID(algo oid.Algo) (oid.OID, error) {
	data, err := s.Canonical()
	if err != nil {
		return oid.OID{}, err
	}
	return oid.SumBytes(algo, data)
}

// Capture builds the workspace state for a repository root: the
// manifest at manifestPath plus every sidecar under root. Internal
// directories are skipped.
func Capture(root, manifestPath string) (*WorkspaceState, error) {
	m, err := manifest.LoadOrNew(manifestPath)
	if err != nil {
		return nil, err
	}

	state := &WorkspaceState{
		Version:  StateVersion,
		Manifest: m.Entries,
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (name == ".dvs" || name == ".git") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !meta.IsSidecar(d.Name()) {
			return nil
		}

		record, err := meta.Load(path)
		if err != nil {
			return err
		}
		dataPath, _ := meta.DataPath(path)
		rel, err := filepath.Rel(root, dataPath)
		if err != nil {
			return err
		}
		state.Files = append(state.Files, TrackedFile{
			Path:   filepath.ToSlash(rel),
			Record: *record,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("capturing workspace state: %w", err)
	}

	return state, nil
}

// snapshotName maps a state id to a filename. Colons are not portable
// in filenames, so the separator becomes a dash.
func snapshotName(id oid.OID) string {
	return strings.ReplaceAll(id.String(), ":", "-")
}
