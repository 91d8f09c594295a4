// Package meta implements the per-file metadata sidecar: one record
// next to each tracked file describing its currently tracked content.
package meta

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/renameio"
	"gopkg.in/yaml.v3"

	"dvs-go/internal/oid"
)

// Format selects the sidecar serialization. Both formats are
// interchangeable; the choice is repository configuration, not encoded
// in the sidecar content.
type Format int

const (
	// JSON sidecars use the ".dvs" suffix.
	JSON Format = iota
	// TOML sidecars use the ".dvs.toml" suffix.
	TOML
)

// Suffixes ordered by discovery preference: the default format first.
var formatSuffixes = []struct {
	format Format
	suffix string
}{
	{JSON, ".dvs"},
	{TOML, ".dvs.toml"},
}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return JSON, nil
	case "toml":
		return TOML, nil
	default:
		return 0, fmt.Errorf("unknown metadata format: %q", s)
	}
}

func (f Format) String() string {
	switch f {
	case JSON:
		return "json"
	case TOML:
		return "toml"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Suffix returns the sidecar filename suffix for the format.
func (f Format) Suffix() string {
	if f == TOML {
		return ".dvs.toml"
	}
	return ".dvs"
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(text []byte) error {
	parsed, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// MarshalYAML serializes the format name.
func (f Format) MarshalYAML() (any, error) {
	return f.String(), nil
}

// UnmarshalYAML parses the format name from a YAML scalar.
func (f *Format) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	return f.UnmarshalText([]byte(name))
}

// Record is the sidecar content for one tracked file.
//
// Digests may carry more than one concurrently computed hash, keyed by
// algorithm name; Algo names the primary one (the file's OID). Author,
// time and message are provenance, not identity: Equal ignores them.
type Record struct {
	Digests   map[string]string `json:"digests" toml:"digests"`
	Size      uint64            `json:"size" toml:"size"`
	CreatedBy string            `json:"created_by" toml:"created_by"`
	AddTime   string            `json:"add_time" toml:"add_time"`
	Message   string            `json:"message,omitempty" toml:"message,omitempty"`
	Algo      oid.Algo          `json:"hash_algo" toml:"hash_algo"`
}

// FromFile reads path once, computing size and a digest per algorithm.
// primary must be among algos. Fails if path is not a regular file.
func FromFile(path string, primary oid.Algo, extras []oid.Algo, createdBy, message string, now time.Time) (*Record, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}

	algos := []oid.Algo{primary}
	for _, a := range extras {
		if a != primary {
			algos = append(algos, a)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	digests, size, err := oid.DigestSet(f, algos...)
	if err != nil {
		return nil, err
	}

	return &Record{
		Digests:   digests,
		Size:      size,
		CreatedBy: createdBy,
		AddTime:   now.UTC().Format(time.RFC3339),
		Message:   message,
		Algo:      primary,
	}, nil
}

// OID returns the record's primary object identifier.
func (r *Record) OID() oid.OID {
	return oid.New(r.Algo, r.Digests[r.Algo.String()])
}

// Equal reports whether two records describe the same content: sizes
// match and every algorithm the records have in common agrees, with at
// least one algorithm in common. Provenance fields never participate.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.Size != other.Size {
		return false
	}
	common := 0
	for algo, digest := range r.Digests {
		otherDigest, ok := other.Digests[algo]
		if !ok {
			continue
		}
		if digest != otherDigest {
			return false
		}
		common++
	}
	return common > 0
}

// SidecarPath returns the sidecar path for a data file under a format.
func SidecarPath(dataPath string, f Format) string {
	return dataPath + f.Suffix()
}

// DataPath maps a sidecar path back to its data file. The second
// return is false if the path is not a sidecar.
func DataPath(sidecarPath string) (string, bool) {
	// Longest suffix first so ".dvs.toml" is not misread as ".dvs".
	if strings.HasSuffix(sidecarPath, TOML.Suffix()) {
		return strings.TrimSuffix(sidecarPath, TOML.Suffix()), true
	}
	if strings.HasSuffix(sidecarPath, JSON.Suffix()) {
		return strings.TrimSuffix(sidecarPath, JSON.Suffix()), true
	}
	return "", false
}

// IsSidecar reports whether a path names a metadata sidecar.
func IsSidecar(path string) bool {
	_, ok := DataPath(path)
	return ok
}

// FindSidecar locates an existing sidecar for a data file in either
// format, preferring the default (JSON) when both exist.
func FindSidecar(dataPath string) (path string, f Format, ok bool) {
	for _, candidate := range formatSuffixes {
		path := dataPath + candidate.suffix
		if isRegularFile(path) {
			return path, candidate.format, true
		}
	}
	return "", 0, false
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Load reads a sidecar, inferring the format from its suffix.
func Load(path string) (*Record, error) {
	format := JSON
	if strings.HasSuffix(path, TOML.Suffix()) {
		format = TOML
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sidecar %s: %w", path, err)
	}

	var record Record
	switch format {
	case TOML:
		err = toml.Unmarshal(data, &record)
	default:
		err = json.Unmarshal(data, &record)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing sidecar %s: %w", path, err)
	}
	return &record, nil
}

// Save writes the record atomically in the given format. perm applies
// to newly created sidecars.
func (r *Record) Save(path string, f Format, perm fs.FileMode) error {
	var data []byte
	var err error
	switch f {
	case TOML:
		data, err = toml.Marshal(r)
	default:
		data, err = json.MarshalIndent(r, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("encoding sidecar: %w", err)
	}

	if err := renameio.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("writing sidecar %s: %w", path, err)
	}
	return nil
}
