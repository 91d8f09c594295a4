package reflog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio"

	"dvs-go/internal/oid"
)

// Op names the operation that produced a reflog entry.
type Op string

const (
	OpInit     Op = "init"
	OpAdd      Op = "add"
	OpGet      Op = "get"
	OpRollback Op = "rollback"
)

// Entry is one line of the reflog. OldState is zero for the first
// entry of a repository.
type Entry struct {
	Time     string   `json:"ts"`
	Actor    string   `json:"actor"`
	Op       Op       `json:"op"`
	Message  string   `json:"message,omitempty"`
	OldState oid.OID  `json:"old_state,omitempty"`
	NewState oid.OID  `json:"new_state"`
	Paths    []string `json:"paths,omitempty"`
}

// Reflog is the append-only operation log plus the HEAD ref naming the
// current workspace state. Entries are JSON lines, oldest first.
type Reflog struct {
	logPath  string
	headPath string
}

// New creates a reflog backed by the given log and head files.
func New(logPath, headPath string) *Reflog {
	return &Reflog{logPath: logPath, headPath: headPath}
}

// Head returns the current state id. ok is false when no operation has
// ever been recorded.
func (r *Reflog) Head() (id oid.OID, ok bool, err error) {
	data, err := os.ReadFile(r.headPath)
	if err != nil {
		if os.IsNotExist(err) {
			return oid.OID{}, false, nil
		}
		return oid.OID{}, false, fmt.Errorf("reading HEAD: %w", err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return oid.OID{}, false, nil
	}
	id, err = oid.Parse(text)
	if err != nil {
		return oid.OID{}, false, fmt.Errorf("parsing HEAD: %w", err)
	}
	return id, true, nil
}

// UpdateHead points HEAD at a state id.
func (r *Reflog) UpdateHead(id oid.OID) error {
	if err := os.MkdirAll(filepath.Dir(r.headPath), 0o755); err != nil {
		return fmt.Errorf("creating refs directory: %w", err)
	}
	if err := renameio.WriteFile(r.headPath, []byte(id.String()+"\n"), 0o644); err != nil {
		return fmt.Errorf("updating HEAD: %w", err)
	}
	return nil
}

// Append writes one entry to the log. The log itself is append-only;
// it never rewrites earlier lines.
func (r *Reflog) Append(e Entry) error {
	if err := os.MkdirAll(filepath.Dir(r.logPath), 0o755); err != nil {
		return fmt.Errorf("creating reflog directory: %w", err)
	}

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding reflog entry: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(r.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening reflog: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("appending reflog entry: %w", err)
	}
	return f.Sync()
}

// Record appends an entry for an operation and moves HEAD to the new
// state, in that order, so a crash between the two leaves the entry
// recoverable from the log.
func (r *Reflog) Record(op Op, actor, message string, from, to oid.OID, paths []string, now time.Time) error {
	e := Entry{
		Time:     now.UTC().Format(time.RFC3339),
		Actor:    actor,
		Op:       op,
		Message:  message,
		OldState: from,
		NewState: to,
		Paths:    paths,
	}
	if err := r.Append(e); err != nil {
		return err
	}
	return r.UpdateHead(to)
}

// ReadAll returns every entry, oldest first. A missing log is an empty
// history, not an error.
func (r *Reflog) ReadAll() ([]Entry, error) {
	f, err := os.Open(r.logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening reflog: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, fmt.Errorf("parsing reflog entry %q: %w", line, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading reflog: %w", err)
	}
	return entries, nil
}

// Recent returns the most recent n entries, newest first. n <= 0
// returns the whole history.
func (r *Reflog) Recent(n int) ([]Entry, error) {
	all, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	if n > 0 && n < len(all) {
		all = all[:n]
	}
	return all, nil
}
