package dvs

import (
	"fmt"
	"os"
	"path/filepath"

	"dvs-go/internal/meta"
	"dvs-go/internal/oid"
	"dvs-go/internal/reflog"
)

// Get restores tracked files from storage into the working tree. Files
// whose working copy already matches their sidecar are left alone.
// Every restored file is verified by re-hashing; a corrupt object is
// removed again rather than left masquerading as the real content.
func (s *Service) Get(patterns []string) ([]GetResult, error) {
	_, preID, err := s.captureState()
	if err != nil {
		return nil, err
	}

	candidates, err := s.resolver.ExpandTracked(patterns)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, NewError(KindNoFilesMatched, "", fmt.Errorf("no files matched %v", patterns))
	}

	results := make([]GetResult, 0, len(candidates))
	var restoredPaths []string
	for _, candidate := range candidates {
		res := s.getOne(candidate)
		if res.Err == nil && res.Outcome == Copied {
			restoredPaths = append(restoredPaths, res.Path)
		}
		if res.Err != nil {
			s.logger.Warn("get failed", "path", res.Path, "kind", string(res.Err.Kind), "error", res.Err.Error())
		}
		results = append(results, res)
	}

	// Restoring working copies does not alter tracked metadata, so a
	// get normally records nothing. State can still move when a get
	// repairs metadata written by an interrupted operation.
	_, postID, err := s.captureState()
	if err != nil {
		return results, err
	}
	if postID != preID {
		if err := s.log.Record(reflog.OpGet, s.cfg.Actor, "", preID, postID, restoredPaths, s.clock.Now()); err != nil {
			return results, err
		}
	}
	if len(restoredPaths) > 0 {
		s.logger.Info("files restored", "count", len(restoredPaths))
	}

	return results, nil
}

func (s *Service) getOne(path string) GetResult {
	res := GetResult{Path: s.displayPath(path)}

	abs, err := filepath.Abs(path)
	if err != nil {
		res.Err = NewError(KindPathError, path, err)
		return res
	}

	sidecarPath, _, ok := meta.FindSidecar(abs)
	if !ok {
		res.Err = NewError(KindNotTracked, res.Path,
			fmt.Errorf("no metadata found for %s", res.Path)).
			WithHint("track the file first with \"dvs add\"")
		return res
	}

	record, err := meta.Load(sidecarPath)
	if err != nil {
		res.Err = NewError(KindMetadataError, res.Path, err)
		return res
	}
	id := record.OID()
	res.OID = id
	res.Size = record.Size

	// An up-to-date working copy needs nothing.
	if info, err := os.Stat(abs); err == nil && info.Mode().IsRegular() {
		current, err := oid.SumFile(id.Algo, abs)
		if err != nil {
			res.Err = NewError(KindHashError, res.Path, err)
			return res
		}
		if current == id {
			res.Outcome = Present
			return res
		}
	}

	if !s.storage.Exists(id) {
		res.Err = NewError(KindStorageMissing, res.Path,
			fmt.Errorf("object %s is not in storage", id))
		return res
	}

	found, err := s.storage.Retrieve(id, abs)
	if err != nil {
		res.Err = NewError(KindStorageError, res.Path, err)
		return res
	}
	if !found {
		res.Err = NewError(KindStorageMissing, res.Path,
			fmt.Errorf("object %s is not in storage", id))
		return res
	}

	// Verify what was written. A mismatch means the stored object is
	// corrupt; remove the bad copy so the failure is visible.
	written, err := oid.SumFile(id.Algo, abs)
	if err != nil {
		res.Err = NewError(KindHashError, res.Path, err)
		return res
	}
	if written != id {
		os.Remove(abs)
		res.Err = NewError(KindHashMismatch, res.Path,
			fmt.Errorf("retrieved content hashes to %s, expected %s", written, id))
		return res
	}

	res.Outcome = Copied
	return res
}
