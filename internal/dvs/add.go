package dvs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"dvs-go/internal/manifest"
	"dvs-go/internal/meta"
	"dvs-go/internal/reflog"
)

// Add brings files under version control: each candidate is hashed,
// copied into storage, described by a metadata sidecar and indexed in
// the manifest. Failures are per-file where possible; only errors that
// make the whole batch meaningless (corrupt manifest, no matches,
// malformed pattern) abort it.
func (s *Service) Add(patterns []string, message string) ([]AddResult, error) {
	_, preID, err := s.captureState()
	if err != nil {
		return nil, err
	}

	candidates, err := s.resolver.Expand(patterns)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, NewError(KindNoFilesMatched, "", fmt.Errorf("no files matched %v", patterns))
	}

	m, err := manifest.LoadOrNew(s.cfg.ManifestPath)
	if err != nil {
		return nil, NewError(KindParseError, s.cfg.ManifestPath, err)
	}

	results := make([]AddResult, 0, len(candidates))
	var changedPaths []string
	manifestChanged := false

	for _, candidate := range candidates {
		res := s.addOne(candidate, message)
		if res.Err == nil {
			if m.Upsert(manifest.Entry{Path: res.Path, OID: res.OID, Bytes: res.Size}) {
				manifestChanged = true
			}
			if res.Outcome == Copied {
				changedPaths = append(changedPaths, res.Path)
			}
		} else {
			s.logger.Warn("add failed", "path", res.Path, "kind", string(res.Err.Kind), "error", res.Err.Error())
		}
		results = append(results, res)
	}

	if manifestChanged {
		if err := m.Save(s.cfg.ManifestPath); err != nil {
			return results, NewError(KindIOError, s.cfg.ManifestPath, err)
		}
	}

	_, postID, err := s.captureState()
	if err != nil {
		return results, err
	}
	if postID != preID {
		if err := s.log.Record(reflog.OpAdd, s.cfg.Actor, message, preID, postID, changedPaths, s.clock.Now()); err != nil {
			return results, err
		}
		s.logger.Info("add recorded", "files", len(changedPaths), "state", postID.String())
	}

	return results, nil
}

// addOne runs the per-file add procedure. All failures come back in
// the result so sibling files proceed.
func (s *Service) addOne(path, message string) AddResult {
	res := AddResult{Path: s.displayPath(path)}

	rp, err := s.resolver.Resolve(path)
	if err != nil {
		res.Err = asError(err, path)
		return res
	}
	res.Path = rp.Rel

	// A file keeps the algorithm it was first tracked under so its
	// digest history stays comparable.
	algo := s.cfg.Algo
	var prior *meta.Record
	sidecarPath, format, hadSidecar := meta.FindSidecar(rp.Abs)
	if hadSidecar {
		prior, err = meta.Load(sidecarPath)
		if err != nil {
			res.Err = NewError(KindMetadataError, rp.Rel, err)
			return res
		}
		if !s.cfg.ForceAlgo {
			algo = prior.Algo
		}
	} else {
		format = s.cfg.MetadataFormat
		sidecarPath = meta.SidecarPath(rp.Abs, format)
	}

	record, err := meta.FromFile(rp.Canonical, algo, s.cfg.ExtraDigests, s.cfg.Actor, message, s.clock.Now())
	if err != nil {
		res.Err = NewError(KindHashError, rp.Rel, err)
		return res
	}
	id := record.OID()
	res.OID = id
	res.Size = record.Size

	// Unchanged content with an intact sidecar needs no writes at all,
	// whether or not the object is still in storage. A vanished object
	// surfaces on get, not here.
	if prior != nil && prior.Equal(record) {
		res.Outcome = Present
		return res
	}

	if !s.storage.Exists(id) {
		if err := s.storage.Store(id, rp.Canonical); err != nil {
			res.Err = NewError(KindStorageError, rp.Rel, err)
			return res
		}
	}

	if err := record.Save(sidecarPath, format, s.cfg.SidecarMode); err != nil {
		if !hadSidecar {
			if rmErr := os.Remove(sidecarPath); rmErr != nil && !os.IsNotExist(rmErr) {
				s.logger.Warn("sidecar rollback failed", "path", rp.Rel, "error", rmErr.Error())
			}
		}
		res.Err = NewError(KindMetadataError, rp.Rel, err)
		return res
	}

	res.Outcome = Copied
	return res
}

// displayPath best-effort rewrites an input path relative to the root
// for results that fail before resolution.
func (s *Service) displayPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(s.cfg.Root, abs)
	if err != nil || rel == ".." || filepath.IsAbs(rel) {
		return path
	}
	return filepath.ToSlash(rel)
}

// asError coerces any error into a *Error, defaulting to PathError.
func asError(err error, path string) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(KindPathError, path, err)
}
