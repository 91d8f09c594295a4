// Package config reads and writes the repository configuration file.
package config

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"dvs-go/internal/meta"
	"dvs-go/internal/oid"
)

// Filename is the repository configuration file, written at the
// repository root by init. Its presence marks the repository root.
const Filename = "dvs.yaml"

// Config represents the repository configuration.
type Config struct {
	// Storage selects and parameterizes the object storage backend.
	Storage StorageConfig `yaml:"storage"`

	// HashAlgo is the default content hash algorithm for new files.
	HashAlgo oid.Algo `yaml:"hash_algo"`

	// ExtraDigests lists additional algorithms recorded alongside the
	// primary digest in each metadata sidecar.
	ExtraDigests []oid.Algo `yaml:"extra_digests,omitempty"`

	// MetadataFormat selects the sidecar serialization for new sidecars.
	MetadataFormat meta.Format `yaml:"metadata_format"`

	// Ignore lists glob patterns excluded from expansion, in addition
	// to patterns from the ignore file.
	Ignore []string `yaml:"ignore,omitempty"`
}

// StorageConfig parameterizes a storage backend.
// The Type field determines which other fields are relevant.
type StorageConfig struct {
	Type string `yaml:"type"` // "filesystem" or "memory"

	// Filesystem-specific fields (only used when Type == "filesystem")
	Root        string `yaml:"root,omitempty"`
	Permissions string `yaml:"permissions,omitempty"` // octal, e.g. "664"
	Group       string `yaml:"group,omitempty"`
}

// DefaultPermissions is the octal mode applied to stored objects when
// the configuration does not override it.
const DefaultPermissions = "664"

// NewConfig creates a Config with defaults for a filesystem backend
// rooted at storageRoot.
func NewConfig(storageRoot string) *Config {
	return &Config{
		Storage: StorageConfig{
			Type:        "filesystem",
			Root:        storageRoot,
			Permissions: DefaultPermissions,
		},
		HashAlgo:       oid.Blake3,
		MetadataFormat: meta.JSON,
	}
}

// FileMode parses the configured octal permission string.
func (s StorageConfig) FileMode() (fs.FileMode, error) {
	perms := s.Permissions
	if perms == "" {
		perms = DefaultPermissions
	}
	mode, err := strconv.ParseUint(strings.TrimPrefix(perms, "0o"), 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid permissions %q: %w", s.Permissions, err)
	}
	if mode > 0o777 {
		return 0, fmt.Errorf("invalid permissions %q: mode out of range", s.Permissions)
	}
	return fs.FileMode(mode), nil
}

// Validate checks the configuration for internally consistent values.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "filesystem":
		if c.Storage.Root == "" {
			return fmt.Errorf("filesystem storage requires root to be set")
		}
		if _, err := c.Storage.FileMode(); err != nil {
			return err
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage type: %q", c.Storage.Type)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// WriteToFile writes a Config to the specified file path, creating
// parent directories as needed.
func WriteToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}
