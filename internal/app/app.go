// Package app is the application layer between the CLI and the
// engine. It locates the repository, constructs all dependencies from
// configuration, and serializes mutating operations behind the
// repository lock.
package app

import (
	"context"
	"fmt"
	"os"

	"dvs-go/internal/config"
	"dvs-go/internal/dvs"
	"dvs-go/internal/fs"
	"dvs-go/internal/oid"
	"dvs-go/internal/reflog"
	"dvs-go/internal/repo"
	"dvs-go/internal/storage"
	"dvs-go/internal/watch"
)

// App wires a repository's engine together for one CLI invocation.
// The caller must call Close when done.
type App struct {
	repo     *repo.Repo
	cfg      dvs.ServiceConfig
	storage  dvs.StorageBackend
	resolver *fs.Resolver
	service  *dvs.Service
	logger   dvs.Logger
	logFile  *os.File
}

// New opens the repository containing startDir and wires an App for
// it. operation identifies the CLI command being run (e.g. "add").
func New(startDir, operation string) (*App, error) {
	r, err := repo.Open(startDir)
	if err != nil {
		return nil, err
	}
	return wire(r, operation)
}

// Init initializes a repository at dir and wires an App for it,
// recording the initial workspace state.
func Init(dir string, cfg *config.Config, operation string) (*App, error) {
	r, err := repo.Init(dir, cfg)
	if err != nil {
		return nil, err
	}

	a, err := wire(r, operation)
	if err != nil {
		return nil, err
	}
	if err := a.withLock(a.service.RecordInit); err != nil {
		a.Close()
		return nil, err
	}
	a.logger.Info("repository initialized", "root", r.Root)
	return a, nil
}

func wire(r *repo.Repo, operation string) (*App, error) {
	slogger, logFile, err := newLogger(r.LogDir(), operation)
	if err != nil {
		return nil, err
	}
	// Every log line of an invocation carries the same run id, so
	// interleaved invocations can be told apart in the shared log file.
	runID := dvs.UUIDGenerator{}.New()
	logger := &slogAdapter{l: slogger.With("run", runID)}

	backend, err := storage.NewBackendFromConfig(r.Config.Storage, r.Root)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating storage backend: %w", err)
	}

	resolver, err := fs.NewResolver(r.Root, r.Config.Ignore)
	if err != nil {
		logFile.Close()
		return nil, err
	}

	snapshots, err := reflog.NewSnapshotStore(r.SnapshotsDir(), r.Config.HashAlgo)
	if err != nil {
		logFile.Close()
		return nil, err
	}
	rlog := reflog.New(r.ReflogPath(), r.HeadPath())

	mode, err := r.Config.Storage.FileMode()
	if err != nil {
		logFile.Close()
		return nil, err
	}

	cfg := dvs.ServiceConfig{
		Root:           resolver.Root(),
		ManifestPath:   r.ManifestPath(),
		Algo:           r.Config.HashAlgo,
		ExtraDigests:   r.Config.ExtraDigests,
		MetadataFormat: r.Config.MetadataFormat,
		SidecarMode:    mode,
		Actor:          DefaultActor(),
	}

	return &App{
		repo:     r,
		cfg:      cfg,
		storage:  backend,
		resolver: resolver,
		service:  dvs.NewService(cfg, backend, resolver, snapshots, rlog, logger, dvs.RealClock{}),
		logger:   logger,
		logFile:  logFile,
	}, nil
}

// Close releases resources held by the App.
func (a *App) Close() error {
	if a.logFile != nil {
		return a.logFile.Close()
	}
	return nil
}

// Repo returns the opened repository.
func (a *App) Repo() *repo.Repo {
	return a.repo
}

// withLock runs fn holding the repository lock, so concurrent CLI
// invocations cannot interleave mutations.
func (a *App) withLock(fn func() error) error {
	l := repo.NewFileLock(a.repo.LockPath())
	if err := l.Acquire(); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}

// Add tracks files. algoOverride, when non-empty, forces that
// algorithm even for files tracked under another one.
func (a *App) Add(patterns []string, message, algoOverride string) ([]dvs.AddResult, error) {
	svc := a.service
	if algoOverride != "" {
		algo, err := oid.ParseAlgo(algoOverride)
		if err != nil {
			return nil, err
		}
		svc, err = a.serviceWith(algo)
		if err != nil {
			return nil, err
		}
	}

	var results []dvs.AddResult
	err := a.withLock(func() error {
		var addErr error
		results, addErr = svc.Add(patterns, message)
		return addErr
	})
	return results, err
}

// serviceWith rebuilds the engine with a forced algorithm.
func (a *App) serviceWith(algo oid.Algo) (*dvs.Service, error) {
	snapshots, err := reflog.NewSnapshotStore(a.repo.SnapshotsDir(), a.repo.Config.HashAlgo)
	if err != nil {
		return nil, err
	}
	cfg := a.cfg
	cfg.Algo = algo
	cfg.ForceAlgo = true
	rlog := reflog.New(a.repo.ReflogPath(), a.repo.HeadPath())
	return dvs.NewService(cfg, a.storage, a.resolver, snapshots, rlog, a.logger, dvs.RealClock{}), nil
}

// Get restores files from storage.
func (a *App) Get(patterns []string) ([]dvs.GetResult, error) {
	var results []dvs.GetResult
	err := a.withLock(func() error {
		var getErr error
		results, getErr = a.service.Get(patterns)
		return getErr
	})
	return results, err
}

// Status classifies files against their tracked metadata.
func (a *App) Status(patterns []string) ([]dvs.FileStatus, error) {
	return a.service.Status(patterns)
}

// Log returns recent reflog entries, newest first.
func (a *App) Log(n int) ([]reflog.Entry, error) {
	return a.service.Log(n)
}

// Rollback restores an earlier workspace state. An empty target means
// the state before the current one.
func (a *App) Rollback(target, message string) ([]dvs.GetResult, error) {
	var id oid.OID
	if target != "" {
		var err error
		id, err = oid.Parse(target)
		if err != nil {
			return nil, err
		}
	}

	var results []dvs.GetResult
	err := a.withLock(func() error {
		var rbErr error
		results, rbErr = a.service.Rollback(id, message)
		return rbErr
	})
	return results, err
}

// Watch monitors the working tree until ctx is cancelled, sending one
// event per observed change of a tracked file.
func (a *App) Watch(ctx context.Context, events chan<- watch.Event) error {
	w := watch.New(a.resolver, a.service, a.logger)
	return w.Run(ctx, events)
}
