package testutil

import (
	"fmt"

	"dvs-go/internal/dvs"
	"dvs-go/internal/oid"
)

// FailingStorage wraps a real backend and fails the configured
// operations, for exercising error paths.
type FailingStorage struct {
	Backend dvs.StorageBackend

	FailStore    bool
	FailRetrieve bool
	FailRead     bool
}

func (f *FailingStorage) Exists(id oid.OID) bool {
	return f.Backend.Exists(id)
}

func (f *FailingStorage) Read(id oid.OID) ([]byte, error) {
	if f.FailRead {
		return nil, fmt.Errorf("injected read failure")
	}
	return f.Backend.Read(id)
}

func (f *FailingStorage) Store(id oid.OID, sourcePath string) error {
	if f.FailStore {
		return fmt.Errorf("injected store failure")
	}
	return f.Backend.Store(id, sourcePath)
}

func (f *FailingStorage) StoreBytes(id oid.OID, content []byte) error {
	if f.FailStore {
		return fmt.Errorf("injected store failure")
	}
	return f.Backend.StoreBytes(id, content)
}

func (f *FailingStorage) Retrieve(id oid.OID, targetPath string) (bool, error) {
	if f.FailRetrieve {
		return false, fmt.Errorf("injected retrieve failure")
	}
	return f.Backend.Retrieve(id, targetPath)
}

func (f *FailingStorage) Remove(id oid.OID) error {
	return f.Backend.Remove(id)
}

// Compile-time check that FailingStorage implements dvs.StorageBackend
var _ dvs.StorageBackend = (*FailingStorage)(nil)
