package dvs

import "dvs-go/internal/oid"

// Outcome is the success state of a per-file add or get.
type Outcome string

const (
	// Copied means content was written to (add) or from (get) storage.
	Copied Outcome = "copied"
	// Present means the file was already in sync; nothing was written.
	Present Outcome = "present"
)

// AddResult is the per-file outcome of an add transaction. Exactly one
// of Outcome or Err is meaningful: a failed file carries its error
// here instead of aborting sibling files.
type AddResult struct {
	// Path is repository-relative; for files that failed before a
	// relative path could be computed it holds the input path.
	Path    string
	Outcome Outcome
	OID     oid.OID
	Size    uint64
	Err     *Error
}

// GetResult is the per-file outcome of a get.
type GetResult struct {
	Path    string
	Outcome Outcome
	OID     oid.OID
	Size    uint64
	Err     *Error
}

// Status classifies one tracked path against its sidecar.
type Status string

const (
	// Untracked: no metadata sidecar exists for the path.
	Untracked Status = "untracked"
	// Current: the working file matches the sidecar.
	Current Status = "current"
	// Absent: sidecar exists but the working file is missing.
	Absent Status = "absent"
	// Unsynced: the working file exists but differs from the sidecar.
	Unsynced Status = "unsynced"
)

// FileStatus pairs a repository-relative path with its classification.
type FileStatus struct {
	Path   string
	Status Status
}
