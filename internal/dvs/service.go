package dvs

import (
	"io/fs"

	"dvs-go/internal/meta"
	"dvs-go/internal/oid"
	"dvs-go/internal/reflog"
)

// ServiceConfig carries the repository-level settings the engine needs.
type ServiceConfig struct {
	// Root is the canonical repository root.
	Root string

	// ManifestPath is the manifest file location.
	ManifestPath string

	// Algo is the default hash algorithm for newly tracked files.
	Algo oid.Algo

	// ForceAlgo applies Algo even to files whose sidecar records a
	// different algorithm. Without it a tracked file keeps the
	// algorithm it was first added under.
	ForceAlgo bool

	// ExtraDigests are additional algorithms recorded in each sidecar.
	ExtraDigests []oid.Algo

	// MetadataFormat is the serialization for new sidecars.
	MetadataFormat meta.Format

	// SidecarMode is the file mode for new sidecars.
	SidecarMode fs.FileMode

	// Actor is recorded as provenance on sidecars and reflog entries.
	Actor string
}

// Service is the orchestration layer that coordinates storage,
// metadata, the manifest and the reflog to perform the high-level
// operations needed by the CLI.
type Service struct {
	cfg       ServiceConfig
	storage   StorageBackend
	resolver  PathResolver
	snapshots *reflog.SnapshotStore
	log       *reflog.Reflog
	logger    Logger
	clock     Clock
}

// NewService creates a Service with the provided dependencies.
func NewService(cfg ServiceConfig, storage StorageBackend, resolver PathResolver, snapshots *reflog.SnapshotStore, log *reflog.Reflog, logger Logger, clock Clock) *Service {
	if cfg.SidecarMode == 0 {
		cfg.SidecarMode = 0o644
	}
	return &Service{
		cfg:       cfg,
		storage:   storage,
		resolver:  resolver,
		snapshots: snapshots,
		log:       log,
		logger:    logger,
		clock:     clock,
	}
}

// captureState snapshots the current workspace state and returns its
// persisted id.
func (s *Service) captureState() (*reflog.WorkspaceState, oid.OID, error) {
	state, err := reflog.Capture(s.cfg.Root, s.cfg.ManifestPath)
	if err != nil {
		return nil, oid.OID{}, err
	}
	id, err := s.snapshots.Save(state)
	if err != nil {
		return nil, oid.OID{}, err
	}
	return state, id, nil
}
