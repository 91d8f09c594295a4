package dvs

import (
	"dvs-go/internal/oid"
	"dvs-go/internal/reflog"
)

// Log returns the most recent n reflog entries, newest first. n <= 0
// returns the whole history.
func (s *Service) Log(n int) ([]reflog.Entry, error) {
	return s.log.Recent(n)
}

// Head returns the current workspace state id. ok is false when no
// operation has ever been recorded.
func (s *Service) Head() (oid.OID, bool, error) {
	return s.log.Head()
}

// RecordInit snapshots the current workspace and records the init
// operation. Re-running init on an already recorded repository is a
// no-op.
func (s *Service) RecordInit() error {
	if _, ok, err := s.log.Head(); err != nil {
		return err
	} else if ok {
		return nil
	}

	_, id, err := s.captureState()
	if err != nil {
		return err
	}
	return s.log.Record(reflog.OpInit, s.cfg.Actor, "", oid.OID{}, id, nil, s.clock.Now())
}
