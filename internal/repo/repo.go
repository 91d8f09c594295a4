// Package repo locates and initializes repositories: the directory
// tree rooted at a dvs.yaml configuration file.
package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"dvs-go/internal/config"
	"dvs-go/internal/dvs"
	"dvs-go/internal/manifest"
)

// Repo is an opened repository: its root directory and configuration.
type Repo struct {
	// Root is the absolute repository root (the directory holding
	// dvs.yaml).
	Root string

	// Config is the parsed repository configuration.
	Config *config.Config
}

// Find walks upward from start looking for a directory containing the
// configuration file. Fails with NotInitialized when the filesystem
// root is reached without finding one.
func Find(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", start, err)
	}

	for {
		candidate := filepath.Join(dir, config.Filename)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			// Canonicalize so every downstream path comparison is
			// anchored at the symlink-free root.
			canonical, err := filepath.EvalSymlinks(dir)
			if err != nil {
				return "", fmt.Errorf("resolving repository root %s: %w", dir, err)
			}
			return canonical, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", dvs.NewError(dvs.KindNotInitialized, start,
				fmt.Errorf("no %s found in %s or any parent directory", config.Filename, start)).
				WithHint("run \"dvs init\" to initialize a repository")
		}
		dir = parent
	}
}

// Open finds and opens the repository containing start.
func Open(start string) (*Repo, error) {
	root, err := Find(start)
	if err != nil {
		return nil, err
	}

	cfg, err := config.ReadFromFile(filepath.Join(root, config.Filename))
	if err != nil {
		return nil, dvs.NewError(dvs.KindParseError, filepath.Join(root, config.Filename), err)
	}

	return &Repo{Root: root, Config: cfg}, nil
}

// Init initializes a repository at root with the given configuration.
// Re-running init with an identical configuration is a no-op;
// re-running with different settings is an error so an established
// repository cannot be silently repointed at a different store.
func Init(root string, cfg *config.Config) (*Repo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", absRoot, err)
	}
	if canonical, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = canonical
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configPath := filepath.Join(absRoot, config.Filename)
	if existing, err := config.ReadFromFile(configPath); err == nil {
		if !sameConfig(existing, cfg) {
			return nil, fmt.Errorf("repository already initialized at %s with different settings", absRoot)
		}
		return openInitialized(absRoot, existing)
	} else if _, statErr := os.Stat(configPath); statErr == nil {
		// The file exists but does not parse.
		return nil, dvs.NewError(dvs.KindParseError, configPath, err)
	}

	if err := config.WriteToFile(configPath, cfg); err != nil {
		return nil, err
	}
	return openInitialized(absRoot, cfg)
}

func openInitialized(root string, cfg *config.Config) (*Repo, error) {
	r := &Repo{Root: root, Config: cfg}
	for _, dir := range []string{r.RefsDir(), r.ReflogDir(), r.SnapshotsDir(), r.LogDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return r, nil
}

// sameConfig compares configurations by their serialized form.
func sameConfig(a, b *config.Config) bool {
	da, err := yaml.Marshal(a)
	if err != nil {
		return false
	}
	db, err := yaml.Marshal(b)
	if err != nil {
		return false
	}
	return string(da) == string(db)
}

// ConfigPath returns the repository configuration file path.
func (r *Repo) ConfigPath() string {
	return filepath.Join(r.Root, config.Filename)
}

// ManifestPath returns the repository manifest file path.
func (r *Repo) ManifestPath() string {
	return filepath.Join(r.Root, manifest.Filename)
}

// IgnorePath returns the ignore file path.
func (r *Repo) IgnorePath() string {
	return filepath.Join(r.Root, ".dvsignore")
}

// DVSDir returns the internal state directory.
func (r *Repo) DVSDir() string {
	return filepath.Join(r.Root, ".dvs")
}

// RefsDir returns the directory holding refs.
func (r *Repo) RefsDir() string {
	return filepath.Join(r.DVSDir(), "refs")
}

// HeadPath returns the HEAD ref file: the id of the current workspace
// state.
func (r *Repo) HeadPath() string {
	return filepath.Join(r.RefsDir(), "HEAD")
}

// ReflogDir returns the directory holding reflogs.
func (r *Repo) ReflogDir() string {
	return filepath.Join(r.DVSDir(), "logs", "refs")
}

// ReflogPath returns the HEAD reflog file.
func (r *Repo) ReflogPath() string {
	return filepath.Join(r.ReflogDir(), "HEAD")
}

// SnapshotsDir returns the directory holding workspace state snapshots.
func (r *Repo) SnapshotsDir() string {
	return filepath.Join(r.DVSDir(), "state", "snapshots")
}

// LogDir returns the directory for application log files.
func (r *Repo) LogDir() string {
	return filepath.Join(r.DVSDir(), "log")
}

// LockPath returns the repository lock file.
func (r *Repo) LockPath() string {
	return filepath.Join(r.DVSDir(), "lock")
}
