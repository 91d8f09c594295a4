package oid

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/zeebo/blake3"
	"github.com/zeebo/xxh3"
)

// newHasher returns a streaming hasher for the algorithm. Streaming
// and whole-buffer hashing produce identical digests.
func newHasher(a Algo) (hash.Hash, error) {
	switch a {
	case Blake3:
		return blake3.New(), nil
	case SHA256:
		return sha256.New(), nil
	case XXH3:
		return xxh3.New(), nil
	case MD5:
		return md5.New(), nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm: %d", int(a))
	}
}

// Sum computes the hex digest of everything read from r.
func Sum(a Algo, r io.Reader) (string, error) {
	h, err := newHasher(a)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumBytes hashes an in-memory buffer and returns its OID under the
// algorithm.
func SumBytes(a Algo, data []byte) (OID, error) {
	h, err := newHasher(a)
	if err != nil {
		return OID{}, err
	}
	h.Write(data)
	return New(a, hex.EncodeToString(h.Sum(nil))), nil
}

// SumFile streams a file and returns its OID under the algorithm.
func SumFile(a Algo, path string) (OID, error) {
	f, err := os.Open(path)
	if err != nil {
		return OID{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer f.Close()

	hexDigest, err := Sum(a, f)
	if err != nil {
		return OID{}, err
	}
	return New(a, hexDigest), nil
}

// DigestSet streams r once and computes a digest per requested
// algorithm, returning the digests keyed by algorithm name alongside
// the byte count consumed.
func DigestSet(r io.Reader, algos ...Algo) (map[string]string, uint64, error) {
	hashers := make([]hash.Hash, len(algos))
	writers := make([]io.Writer, len(algos))
	for i, a := range algos {
		h, err := newHasher(a)
		if err != nil {
			return nil, 0, err
		}
		hashers[i] = h
		writers[i] = h
	}

	n, err := io.Copy(io.MultiWriter(writers...), r)
	if err != nil {
		return nil, 0, fmt.Errorf("hashing content: %w", err)
	}

	digests := make(map[string]string, len(algos))
	for i, a := range algos {
		digests[a.String()] = hex.EncodeToString(hashers[i].Sum(nil))
	}
	return digests, uint64(n), nil
}
