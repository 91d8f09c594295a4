package storage

import (
	"fmt"
	"path/filepath"

	"dvs-go/internal/config"
	"dvs-go/internal/dvs"
)

// NewBackendFromConfig creates a StorageBackend based on the storage
// config type. Relative filesystem roots are resolved against repoRoot.
func NewBackendFromConfig(cfg config.StorageConfig, repoRoot string) (dvs.StorageBackend, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryBackend(), nil
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem storage requires root to be set")
		}
		root := cfg.Root
		if !filepath.IsAbs(root) {
			root = filepath.Join(repoRoot, root)
		}
		mode, err := cfg.FileMode()
		if err != nil {
			return nil, err
		}
		return NewFileSystemBackend(root, mode, cfg.Group)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
