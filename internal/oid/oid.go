// Package oid defines object identifiers: a hash algorithm paired with
// a hex digest. OIDs are the keys of the content-addressable store and
// of workspace snapshots.
package oid

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Algo is a content-hash algorithm. The set is closed and versioned:
// OIDs must stay self-describing and comparable across repository
// versions, so new algorithms are appended, never redefined.
type Algo int

const (
	// Blake3 is the default algorithm (256-bit, cryptographic).
	Blake3 Algo = iota
	// SHA256 (256-bit, cryptographic).
	SHA256
	// XXH3 is a fast non-cryptographic 64-bit hash. It carries no
	// collision-resistance guarantee and is only suitable where speed
	// matters more than adversarial safety.
	XXH3
	// MD5 (128-bit) is retained for repositories tracked before the
	// Blake3 default existed. Legacy only.
	MD5
)

var algoNames = map[Algo]string{
	Blake3: "blake3",
	SHA256: "sha256",
	XXH3:   "xxh3",
	MD5:    "md5",
}

// Algos lists every supported algorithm.
func Algos() []Algo {
	return []Algo{Blake3, SHA256, XXH3, MD5}
}

// ParseAlgo parses an algorithm name (case-insensitive).
func ParseAlgo(s string) (Algo, error) {
	for a, name := range algoNames {
		if strings.EqualFold(s, name) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown hash algorithm: %q", s)
}

func (a Algo) String() string {
	if name, ok := algoNames[a]; ok {
		return name
	}
	return fmt.Sprintf("algo(%d)", int(a))
}

// HexLen returns the expected hex-digest length for the algorithm.
func (a Algo) HexLen() int {
	switch a {
	case Blake3, SHA256:
		return 64
	case XXH3:
		return 16
	case MD5:
		return 32
	default:
		return 0
	}
}

// MarshalText implements encoding.TextMarshaler so Algo serializes as
// its name in JSON, TOML and YAML alike.
func (a Algo) MarshalText() ([]byte, error) {
	name, ok := algoNames[a]
	if !ok {
		return nil, fmt.Errorf("unknown hash algorithm: %d", int(a))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Algo) UnmarshalText(text []byte) error {
	parsed, err := ParseAlgo(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalYAML serializes the algorithm name. The yaml package does not
// consult encoding.TextUnmarshaler, so the YAML methods exist alongside
// the text ones.
func (a Algo) MarshalYAML() (any, error) {
	return a.String(), nil
}

// UnmarshalYAML parses the algorithm name from a YAML scalar.
func (a *Algo) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	return a.UnmarshalText([]byte(name))
}

// OID identifies content by (algorithm, digest). Two OIDs are equal
// only if both parts match; the same bytes hashed under two algorithms
// yield two distinct OIDs.
//
// Wire format: "algo:hex", e.g. "blake3:ab12...".
type OID struct {
	Algo Algo
	Hex  string
}

// New builds an OID from an algorithm and a hex digest.
func New(algo Algo, hex string) OID {
	return OID{Algo: algo, Hex: hex}
}

// Parse parses the "algo:hex" wire format, validating digest length
// and charset.
func Parse(s string) (OID, error) {
	algoPart, hexPart, found := strings.Cut(s, ":")
	if !found {
		return OID{}, fmt.Errorf("invalid OID %q: expected algo:hex", s)
	}
	algo, err := ParseAlgo(algoPart)
	if err != nil {
		return OID{}, fmt.Errorf("invalid OID %q: %w", s, err)
	}
	if len(hexPart) != algo.HexLen() {
		return OID{}, fmt.Errorf("invalid OID %q: %s digest must be %d hex chars, got %d",
			s, algo, algo.HexLen(), len(hexPart))
	}
	for _, c := range hexPart {
		if !isHexDigit(c) {
			return OID{}, fmt.Errorf("invalid OID %q: non-hex digest", s)
		}
	}
	return OID{Algo: algo, Hex: hexPart}, nil
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func (o OID) String() string {
	return o.Algo.String() + ":" + o.Hex
}

// IsZero reports whether the OID is the zero value (no digest).
func (o OID) IsZero() bool {
	return o.Hex == ""
}

// Shard splits the digest into a two-character directory prefix and
// the remainder, bounding directory fan-out in the storage tree.
func (o OID) Shard() (prefix, suffix string) {
	n := 2
	if len(o.Hex) < n {
		n = len(o.Hex)
	}
	return o.Hex[:n], o.Hex[n:]
}

// Subpath returns the storage-relative path "algo/prefix/suffix".
func (o OID) Subpath() string {
	prefix, suffix := o.Shard()
	return o.Algo.String() + "/" + prefix + "/" + suffix
}

// MarshalText serializes the OID in its wire format. The zero OID
// serializes as the empty string so optional fields round-trip.
func (o OID) MarshalText() ([]byte, error) {
	if o.IsZero() {
		return nil, nil
	}
	return []byte(o.String()), nil
}

// UnmarshalText parses the wire format.
func (o *OID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*o = OID{}
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}
