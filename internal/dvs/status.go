package dvs

import (
	"os"
	"path/filepath"

	"dvs-go/internal/manifest"
	"dvs-go/internal/meta"
	"dvs-go/internal/oid"
)

// Status classifies files against their tracked metadata. With no
// patterns it reports every manifest entry; with patterns it reports
// each match, including untracked ones.
func (s *Service) Status(patterns []string) ([]FileStatus, error) {
	var candidates []string

	if len(patterns) == 0 {
		m, err := manifest.LoadOrNew(s.cfg.ManifestPath)
		if err != nil {
			return nil, NewError(KindParseError, s.cfg.ManifestPath, err)
		}
		for _, p := range m.Paths() {
			candidates = append(candidates, filepath.Join(s.cfg.Root, filepath.FromSlash(p)))
		}
	} else {
		var err error
		candidates, err = s.resolver.ExpandTracked(patterns)
		if err != nil {
			return nil, err
		}
	}

	statuses := make([]FileStatus, 0, len(candidates))
	for _, candidate := range candidates {
		st, err := s.StatusFor(candidate)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// StatusFor classifies a single file.
func (s *Service) StatusFor(path string) (FileStatus, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return FileStatus{}, NewError(KindPathError, path, err)
	}
	st := FileStatus{Path: s.displayPath(abs)}

	sidecarPath, _, tracked := meta.FindSidecar(abs)
	if !tracked {
		st.Status = Untracked
		return st, nil
	}

	record, err := meta.Load(sidecarPath)
	if err != nil {
		return FileStatus{}, NewError(KindMetadataError, st.Path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			st.Status = Absent
			return st, nil
		}
		return FileStatus{}, NewError(KindPathError, st.Path, err)
	}
	if !info.Mode().IsRegular() {
		st.Status = Unsynced
		return st, nil
	}

	id := record.OID()
	current, err := oid.SumFile(id.Algo, abs)
	if err != nil {
		return FileStatus{}, NewError(KindHashError, st.Path, err)
	}
	if current == id && uint64(info.Size()) == record.Size {
		st.Status = Current
	} else {
		st.Status = Unsynced
	}
	return st, nil
}
