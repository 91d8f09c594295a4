package dvs

import "dvs-go/internal/oid"

// StorageBackend is a content-addressable byte store keyed by OID.
// Object paths derive deterministically from (algorithm, digest), so
// writing the same OID twice is idempotent. Callers check Exists
// before Store to skip redundant copies, but Store must still be
// correct (not merely fast) when called on a present OID.
type StorageBackend interface {
	// Exists reports whether an object is present.
	Exists(id oid.OID) bool

	// Read returns the object's bytes, or (nil, nil) if the object is
	// absent. Absence is not an error.
	Read(id oid.OID) ([]byte, error)

	// Store copies the file at sourcePath into the backend.
	Store(id oid.OID, sourcePath string) error

	// StoreBytes writes an in-memory buffer into the backend. Used by
	// transaction rollback to restore a prior object.
	StoreBytes(id oid.OID, content []byte) error

	// Retrieve copies the object's content to targetPath.
	// Returns (false, nil) if the object is absent.
	Retrieve(id oid.OID, targetPath string) (bool, error)

	// Remove deletes an object, best-effort. It exists solely for
	// transaction rollback; reclaiming unreferenced objects is a
	// separate maintenance concern, not part of this engine.
	Remove(id oid.OID) error
}
