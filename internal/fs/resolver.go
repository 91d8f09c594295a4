// Package fs validates candidate paths against a repository root and
// expands glob patterns into concrete files.
package fs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"dvs-go/internal/config"
	"dvs-go/internal/dvs"
	"dvs-go/internal/manifest"
	"dvs-go/internal/meta"
)

// Resolver is the filesystem implementation of dvs.PathResolver. All
// validation is anchored at the canonical repository root: a path is
// acceptable only if its fully resolved form stays under that root.
type Resolver struct {
	// root is the repository root with symlinks resolved.
	root string

	ignore *IgnoreMatcher
}

// NewResolver creates a resolver anchored at root. extraPatterns are
// ignore patterns from configuration, applied on top of the repository
// ignore file and the built-in exclusions.
func NewResolver(root string, extraPatterns []string) (*Resolver, error) {
	canonical, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("resolving repository root %s: %w", root, err)
	}

	filePatterns, err := ParseIgnoreFile(filepath.Join(canonical, IgnoreFilename))
	if err != nil {
		return nil, err
	}

	var patterns []string
	patterns = append(patterns, extraPatterns...)
	patterns = append(patterns, filePatterns...)

	return &Resolver{
		root:   canonical,
		ignore: NewIgnoreMatcher(patterns),
	}, nil
}

// Root returns the canonical repository root.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve validates one candidate path per the add/get contract.
func (r *Resolver) Resolve(path string) (*dvs.ResolvedPath, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, dvs.NewError(dvs.KindPathError, path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// A dangling symlink stats as missing but lstats fine.
			if _, lerr := os.Lstat(abs); lerr == nil {
				return nil, dvs.NewError(dvs.KindBrokenSymlink, path,
					fmt.Errorf("symlink target does not exist"))
			}
			return nil, dvs.NewError(dvs.KindFileNotFound, path, err)
		}
		return nil, dvs.NewError(dvs.KindPathError, path, err)
	}
	if info.IsDir() {
		return nil, dvs.NewError(dvs.KindIsDirectory, path,
			fmt.Errorf("%s is a directory", path)).
			WithHint("use a glob such as %s to match files inside it", filepath.Join(path, "*"))
	}

	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, dvs.NewError(dvs.KindBrokenSymlink, path, err)
		}
		return nil, dvs.NewError(dvs.KindPathError, path, err)
	}

	rel, err := filepath.Rel(r.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, dvs.NewError(dvs.KindFileOutsideRepo, path,
			fmt.Errorf("%s is outside the repository rooted at %s", abs, r.root))
	}

	// The path itself may be inside the root while its resolved target
	// escapes through a symlink. Never follow content out of the tree.
	if !within(r.root, canonical) {
		return nil, dvs.NewError(dvs.KindPathTraversal, path,
			fmt.Errorf("%s resolves to %s, outside the repository", path, canonical))
	}

	return &dvs.ResolvedPath{
		Rel:       filepath.ToSlash(rel),
		Abs:       abs,
		Canonical: canonical,
	}, nil
}

// within reports whether target is root or lies under it.
func within(root, target string) bool {
	if target == root {
		return true
	}
	return strings.HasPrefix(target, root+string(filepath.Separator))
}

// Expand turns paths and glob patterns into absolute file paths.
// Glob matches skip directories, ignored paths and internal files;
// literal paths pass through untouched so per-file validation can
// report precise errors for them.
func (r *Resolver) Expand(patterns []string) ([]string, error) {
	return r.expand(patterns, false)
}

// ExpandTracked is like Expand but a pattern also matches files known
// only through their metadata sidecar, so tracked files whose working
// copy is absent still expand.
func (r *Resolver) ExpandTracked(patterns []string) ([]string, error) {
	return r.expand(patterns, true)
}

func (r *Resolver) expand(patterns []string, tracked bool) ([]string, error) {
	var out []string
	seen := make(map[string]bool)

	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}

	for _, pattern := range patterns {
		abs, err := filepath.Abs(pattern)
		if err != nil {
			return nil, dvs.NewError(dvs.KindPathError, pattern, err)
		}

		if !isGlob(pattern) {
			add(abs)
			continue
		}

		matches, err := r.globFiles(abs)
		if err != nil {
			return nil, dvs.NewError(dvs.KindInvalidPattern, pattern, err)
		}
		for _, m := range matches {
			add(m)
		}

		if tracked {
			// Sidecars match on behalf of their data files.
			for _, suffix := range []string{meta.JSON.Suffix(), meta.TOML.Suffix()} {
				sidecars, err := filepath.Glob(abs + suffix)
				if err != nil {
					return nil, dvs.NewError(dvs.KindInvalidPattern, pattern, err)
				}
				for _, s := range sidecars {
					if data, ok := meta.DataPath(s); ok {
						add(data)
					}
				}
			}
		}
	}

	return out, nil
}

// globFiles runs one glob and filters the matches to plain candidate
// files inside the repository.
func (r *Resolver) globFiles(absPattern string) ([]string, error) {
	matches, err := filepath.Glob(absPattern)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if r.Excluded(m) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Excluded reports whether a path is internal bookkeeping or matches
// an ignore pattern. Literal user paths are never excluded; this
// applies to glob expansion and directory walks.
func (r *Resolver) Excluded(path string) bool {
	rel, err := filepath.Rel(r.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return true
	}
	base := filepath.Base(path)
	switch base {
	case config.Filename, manifest.Filename, IgnoreFilename:
		return true
	}
	if meta.IsSidecar(base) {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == ".dvs" || part == ".git" {
			return true
		}
	}
	return r.ignore.Match(rel)
}

// isGlob reports whether a pattern contains glob metacharacters.
func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// Compile-time check that Resolver implements dvs.PathResolver
var _ dvs.PathResolver = (*Resolver)(nil)
