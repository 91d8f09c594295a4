// Package watch monitors a repository's working tree and reports
// tracked files drifting out of sync with their metadata.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"dvs-go/internal/dvs"
	dvsfs "dvs-go/internal/fs"
	"dvs-go/internal/meta"
)

// Event is one observed status change of a tracked file.
type Event struct {
	Path   string
	Status dvs.Status
}

// Watcher follows filesystem notifications below the repository root.
// Directories created while watching are picked up, so a watch started
// on an empty repository still sees files added in new subtrees.
type Watcher struct {
	root     string
	resolver *dvsfs.Resolver
	service  *dvs.Service
	logger   dvs.Logger
}

// New creates a watcher for the repository rooted at resolver.Root().
func New(resolver *dvsfs.Resolver, service *dvs.Service, logger dvs.Logger) *Watcher {
	return &Watcher{
		root:     resolver.Root(),
		resolver: resolver,
		service:  service,
		logger:   logger,
	}
}

// Run watches until ctx is cancelled, sending one Event per observed
// change of a tracked file. The events channel is closed on return.
func (w *Watcher) Run(ctx context.Context, events chan<- Event) error {
	defer close(events)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.root); err != nil {
		return err
	}
	w.logger.Info("watching repository", "root", w.root)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, fsw, ev, events)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err.Error())
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fsw *fsnotify.Watcher, ev fsnotify.Event, events chan<- Event) {
	if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
		if ev.Op.Has(fsnotify.Create) && !w.excludedDir(ev.Name) {
			if err := w.addTree(fsw, ev.Name); err != nil {
				w.logger.Warn("watching new directory failed", "path", ev.Name, "error", err.Error())
			}
		}
		return
	}

	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) &&
		!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return
	}

	// Sidecar edits report on behalf of their data file.
	path := ev.Name
	if data, ok := meta.DataPath(path); ok {
		path = data
	} else if w.resolver.Excluded(path) {
		return
	}

	st, err := w.service.StatusFor(path)
	if err != nil {
		w.logger.Warn("status check failed", "path", path, "error", err.Error())
		return
	}
	if st.Status == dvs.Untracked {
		return
	}

	w.logger.Debug("file changed", "path", st.Path, "status", string(st.Status))
	select {
	case events <- Event{Path: st.Path, Status: st.Status}:
	case <-ctx.Done():
	}
}

// addTree registers path and every directory below it.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && w.excludedDir(p) {
			return filepath.SkipDir
		}
		if err := fsw.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) excludedDir(path string) bool {
	base := filepath.Base(path)
	return base == ".dvs" || base == ".git"
}
