package dvs

// ResolvedPath is a candidate file that passed validation: it exists,
// is a regular file, and its fully resolved form stays inside the
// repository root.
type ResolvedPath struct {
	// Rel is the repository-relative path of the candidate as given
	// (before symlink resolution), using forward slashes.
	Rel string

	// Abs is the absolute candidate path as given.
	Abs string

	// Canonical is the absolute path with all symlinks, "." and ".."
	// resolved. Hashing and storage operate on this form so a symlink
	// and its target always hash identically.
	Canonical string
}

// PathResolver validates candidate paths against the repository root
// and expands glob patterns. Implementations apply ignore rules during
// expansion.
type PathResolver interface {
	// Resolve validates one candidate path. Failures are *Error values
	// with kinds FileNotFound, IsDirectory, FileOutsideRepo,
	// BrokenSymlink, PathError or PathTraversal.
	Resolve(path string) (*ResolvedPath, error)

	// Expand turns paths and glob patterns into concrete absolute file
	// paths, applying ignore rules. A malformed pattern fails with
	// InvalidPattern. Literal non-existent paths are passed through so
	// per-file validation can report FileNotFound individually.
	Expand(patterns []string) ([]string, error)

	// ExpandTracked is like Expand but matches tracked files: a
	// pattern matches if a metadata sidecar exists for the file, even
	// when the working copy itself is absent.
	ExpandTracked(patterns []string) ([]string, error)
}
