package dvs

import (
	"errors"
	"fmt"
)

// Kind classifies per-file and repository-level failures so callers
// can branch on the category while still surfacing the hint text at
// the boundary.
type Kind string

const (
	// KindNotInitialized means no repository was found (missing dvs.yaml).
	KindNotInitialized Kind = "not_initialized"
	// KindNoFilesMatched means expansion of every input produced nothing.
	KindNoFilesMatched Kind = "no_files_matched"
	// KindInvalidPattern means a glob pattern failed to parse.
	KindInvalidPattern  Kind = "invalid_pattern"
	KindFileNotFound    Kind = "file_not_found"
	KindIsDirectory     Kind = "is_directory"
	KindFileOutsideRepo Kind = "file_outside_repo"
	KindBrokenSymlink   Kind = "broken_symlink"
	KindPathError       Kind = "path_error"
	// KindPathTraversal is security-relevant: a resolved path escaped
	// the repository root. It must never be downgraded to a softer kind.
	KindPathTraversal  Kind = "path_traversal"
	KindIOError        Kind = "io_error"
	KindHashError      Kind = "hash_error"
	KindStorageError   Kind = "storage_error"
	KindMetadataError  Kind = "metadata_error"
	KindParseError     Kind = "parse_error"
	KindNotTracked     Kind = "not_tracked"
	KindStorageMissing Kind = "storage_missing"
	KindHashMismatch   Kind = "hash_mismatch"
)

// Error is a structured failure: a kind for branching, the offending
// path, an optional human-readable hint, and the wrapped cause.
type Error struct {
	Kind Kind
	Path string
	Hint string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error with a kind and path.
func NewError(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// WithHint attaches a human-readable hint, returning the same error.
func (e *Error) WithHint(format string, args ...any) *Error {
	e.Hint = fmt.Sprintf(format, args...)
	return e
}

// KindOf extracts the Kind from anywhere in an error chain, returning
// "" when no *Error is present.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
