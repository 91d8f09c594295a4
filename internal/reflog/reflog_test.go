package reflog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"dvs-go/internal/manifest"
	"dvs-go/internal/meta"
	"dvs-go/internal/oid"
)

func testState(paths ...string) *WorkspaceState {
	s := &WorkspaceState{Version: StateVersion}
	for _, p := range paths {
		digest, _ := oid.SumBytes(oid.Blake3, []byte(p))
		s.Manifest = append(s.Manifest, manifest.Entry{Path: p, OID: digest, Bytes: 1})
		s.Files = append(s.Files, TrackedFile{
			Path: p,
			Record: meta.Record{
				Digests: map[string]string{"blake3": digest.Hex},
				Size:    1,
				Algo:    oid.Blake3,
			},
		})
	}
	return s
}

func TestWorkspaceState_ID(t *testing.T) {
	t.Run("deterministic across entry order", func(t *testing.T) {
		a := testState("x.csv", "y.csv")
		b := testState("y.csv", "x.csv")

		idA, err := a.ID(oid.Blake3)
		if err != nil {
			t.Fatalf("ID() error = %v", err)
		}
		idB, err := b.ID(oid.Blake3)
		if err != nil {
			t.Fatalf("ID() error = %v", err)
		}
		if idA != idB {
			t.Errorf("same content, different ids: %s vs %s", idA, idB)
		}
	})

	t.Run("provenance changes the id", func(t *testing.T) {
		a := testState("x.csv")
		b := testState("x.csv")
		b.Files[0].Record.Message = "re-added"

		idA, _ := a.ID(oid.Blake3)
		idB, _ := b.ID(oid.Blake3)
		if idA == idB {
			t.Error("states with different records share an id")
		}
	})
}

func TestCapture(t *testing.T) {
	root := t.TempDir()
	manifestPath := filepath.Join(root, manifest.Filename)

	id, err := oid.SumBytes(oid.Blake3, []byte("a"))
	if err != nil {
		t.Fatalf("SumBytes() error = %v", err)
	}

	m := manifest.New()
	m.Upsert(manifest.Entry{Path: "data/a.csv", OID: id, Bytes: 1})
	if err := m.Save(manifestPath); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rec := &meta.Record{
		Digests: map[string]string{"blake3": id.Hex},
		Size:    1,
		Algo:    oid.Blake3,
	}
	sidecar := filepath.Join(root, "data", "a.csv.dvs")
	if err := os.MkdirAll(filepath.Dir(sidecar), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := rec.Save(sidecar, meta.JSON, 0o644); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Internal directories never contribute to the state.
	hidden := filepath.Join(root, ".dvs", "ghost.csv.dvs")
	if err := os.MkdirAll(filepath.Dir(hidden), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := rec.Save(hidden, meta.JSON, 0o644); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	state, err := Capture(root, manifestPath)
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	if len(state.Manifest) != 1 || state.Manifest[0].Path != "data/a.csv" {
		t.Errorf("Manifest = %+v", state.Manifest)
	}
	if len(state.Files) != 1 || state.Files[0].Path != "data/a.csv" {
		t.Errorf("Files = %+v", state.Files)
	}
}

func TestCapture_EmptyWorkspace(t *testing.T) {
	root := t.TempDir()

	state, err := Capture(root, filepath.Join(root, manifest.Filename))
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if len(state.Files) != 0 || len(state.Manifest) != 0 {
		t.Errorf("empty workspace state = %+v", state)
	}

	// The empty state still has a stable id.
	id1, err := state.ID(oid.Blake3)
	if err != nil {
		t.Fatalf("ID() error = %v", err)
	}
	id2, _ := (&WorkspaceState{Version: StateVersion}).ID(oid.Blake3)
	if id1 != id2 {
		t.Errorf("empty state ids differ: %s vs %s", id1, id2)
	}
}

func TestSnapshotStore(t *testing.T) {
	store, err := NewSnapshotStore(filepath.Join(t.TempDir(), "snapshots"), oid.Blake3)
	if err != nil {
		t.Fatalf("NewSnapshotStore() error = %v", err)
	}

	state := testState("data/a.csv")
	id, err := store.Save(state)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !store.Exists(id) {
		t.Error("Exists() = false after Save()")
	}

	// Saving the same state again returns the same id.
	again, err := store.Save(testState("data/a.csv"))
	if err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	if again != id {
		t.Errorf("Save() id = %s, want %s", again, id)
	}

	loaded, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	loadedID, err := loaded.ID(oid.Blake3)
	if err != nil {
		t.Fatalf("ID() error = %v", err)
	}
	if loadedID != id {
		t.Errorf("round-tripped state id = %s, want %s", loadedID, id)
	}
}

func TestSnapshotStore_LoadMissing(t *testing.T) {
	store, err := NewSnapshotStore(t.TempDir(), oid.Blake3)
	if err != nil {
		t.Fatalf("NewSnapshotStore() error = %v", err)
	}
	missing, err := oid.SumBytes(oid.Blake3, []byte("no such state"))
	if err != nil {
		t.Fatalf("SumBytes() error = %v", err)
	}
	if _, err := store.Load(missing); err == nil {
		t.Error("Load() expected error for missing snapshot")
	}
}

func TestReflog_RecordAndRead(t *testing.T) {
	dir := t.TempDir()
	r := New(filepath.Join(dir, "logs", "refs", "HEAD"), filepath.Join(dir, "refs", "HEAD"))

	if _, ok, err := r.Head(); err != nil || ok {
		t.Fatalf("Head() on empty repo = ok %v, err %v", ok, err)
	}

	s1, _ := testState("a.csv").ID(oid.Blake3)
	s2, _ := testState("a.csv", "b.csv").ID(oid.Blake3)
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	if err := r.Record(OpInit, "researcher", "", oid.OID{}, s1, nil, now); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := r.Record(OpAdd, "researcher", "import b", s1, s2, []string{"b.csv"}, now.Add(time.Hour)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	head, ok, err := r.Head()
	if err != nil || !ok {
		t.Fatalf("Head() = ok %v, err %v", ok, err)
	}
	if head != s2 {
		t.Errorf("Head() = %s, want %s", head, s2)
	}

	entries, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ReadAll() len = %d, want 2", len(entries))
	}
	if entries[0].Op != OpInit || !entries[0].OldState.IsZero() {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Op != OpAdd || entries[1].OldState != s1 || entries[1].NewState != s2 {
		t.Errorf("second entry = %+v", entries[1])
	}
	if len(entries[1].Paths) != 1 || entries[1].Paths[0] != "b.csv" {
		t.Errorf("Paths = %v", entries[1].Paths)
	}

	recent, err := r.Recent(1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 1 || recent[0].Op != OpAdd {
		t.Errorf("Recent(1) = %+v, want the add entry", recent)
	}
}

func TestReflog_AppendOnly(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "HEAD.log")
	r := New(logPath, filepath.Join(dir, "HEAD"))

	s1, _ := testState("a.csv").ID(oid.Blake3)
	now := time.Now()
	if err := r.Record(OpAdd, "a", "", oid.OID{}, s1, nil, now); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	before, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}

	s2, _ := testState("b.csv").ID(oid.Blake3)
	if err := r.Record(OpAdd, "a", "", s1, s2, nil, now); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	after, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if len(after) <= len(before) || string(after[:len(before)]) != string(before) {
		t.Error("log was rewritten instead of appended")
	}
}
