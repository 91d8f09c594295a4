package dvs

import (
	"fmt"
	"os"
	"path/filepath"

	"dvs-go/internal/manifest"
	"dvs-go/internal/meta"
	"dvs-go/internal/oid"
	"dvs-go/internal/reflog"
)

// Rollback restores the workspace to an earlier recorded state:
// sidecars and the manifest are rewritten to match the snapshot, files
// tracked since then lose their sidecars, and working copies are
// restored from storage where they are missing or diverged. A zero
// target means the state before the current one.
func (s *Service) Rollback(target oid.OID, message string) ([]GetResult, error) {
	head, ok, err := s.log.Head()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no recorded states to roll back to")
	}

	if target.IsZero() {
		target, err = s.previousState(head)
		if err != nil {
			return nil, err
		}
	}

	state, err := s.snapshots.Load(target)
	if err != nil {
		return nil, err
	}

	current, preID, err := s.captureState()
	if err != nil {
		return nil, err
	}

	// Paths tracked now but absent from the target state lose their
	// sidecars. Working copies stay; only tracking is rewound.
	wanted := make(map[string]bool, len(state.Files))
	for _, f := range state.Files {
		wanted[f.Path] = true
	}
	for _, f := range current.Files {
		if wanted[f.Path] {
			continue
		}
		abs := filepath.Join(s.cfg.Root, filepath.FromSlash(f.Path))
		if sidecarPath, _, ok := meta.FindSidecar(abs); ok {
			if err := os.Remove(sidecarPath); err != nil {
				return nil, NewError(KindMetadataError, f.Path, err)
			}
		}
	}

	// Rewrite sidecars and restore working copies for the target set.
	results := make([]GetResult, 0, len(state.Files))
	m := manifest.New()
	for _, e := range state.Manifest {
		m.Upsert(e)
	}
	for _, f := range state.Files {
		abs := filepath.Join(s.cfg.Root, filepath.FromSlash(f.Path))

		// Drop a sidecar in the other format so the restored one is
		// authoritative.
		if sidecarPath, format, ok := meta.FindSidecar(abs); ok && format != s.cfg.MetadataFormat {
			if err := os.Remove(sidecarPath); err != nil {
				return nil, NewError(KindMetadataError, f.Path, err)
			}
		}
		record := f.Record
		if err := record.Save(meta.SidecarPath(abs, s.cfg.MetadataFormat), s.cfg.MetadataFormat, s.cfg.SidecarMode); err != nil {
			return nil, NewError(KindMetadataError, f.Path, err)
		}

		results = append(results, s.getOne(abs))
	}

	if err := m.Save(s.cfg.ManifestPath); err != nil {
		return results, NewError(KindIOError, s.cfg.ManifestPath, err)
	}

	_, postID, err := s.captureState()
	if err != nil {
		return results, err
	}
	if postID != preID {
		var paths []string
		for _, r := range results {
			if r.Err == nil {
				paths = append(paths, r.Path)
			}
		}
		if err := s.log.Record(reflog.OpRollback, s.cfg.Actor, message, preID, postID, paths, s.clock.Now()); err != nil {
			return results, err
		}
		s.logger.Info("rolled back", "state", postID.String(), "files", len(paths))
	}

	return results, nil
}

// previousState finds the state recorded immediately before head.
func (s *Service) previousState(head oid.OID) (oid.OID, error) {
	entries, err := s.log.ReadAll()
	if err != nil {
		return oid.OID{}, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].NewState == head {
			if entries[i].OldState.IsZero() {
				break
			}
			return entries[i].OldState, nil
		}
	}
	return oid.OID{}, fmt.Errorf("no earlier state to roll back to")
}
