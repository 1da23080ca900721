package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sydlexius/driftwood/internal/event"
	"github.com/sydlexius/driftwood/internal/library"
)

// LibraryLister retrieves the list of configured libraries.
type LibraryLister interface {
	List(ctx context.Context) ([]library.Library, error)
}

// Service watches library directory trees and triggers a scan, debounced,
// whenever files appear, change, or disappear. fsnotify does not recurse,
// so the watch set is rebuilt periodically to pick up new show and season
// folders.
type Service struct {
	scanFn        func(ctx context.Context) error
	libraries     LibraryLister
	bus           *event.Bus
	logger        *slog.Logger
	debounce      time.Duration
	refreshPeriod time.Duration

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	watching map[string]bool
}

// NewService creates a filesystem watcher service.
func NewService(scanFn func(ctx context.Context) error, libraries LibraryLister, bus *event.Bus, logger *slog.Logger) *Service {
	return &Service{
		scanFn:        scanFn,
		libraries:     libraries,
		bus:           bus,
		logger:        logger.With(slog.String("component", "fs-watcher")),
		debounce:      2 * time.Second,
		refreshPeriod: 5 * time.Minute,
		watching:      make(map[string]bool),
	}
}

// SetDebounce overrides the default debounce interval (for testing).
func (s *Service) SetDebounce(d time.Duration) {
	s.debounce = d
}

// Start blocks until ctx is cancelled, dispatching debounced scans as
// filesystem changes arrive.
func (s *Service) Start(ctx context.Context) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Error("fsnotify unavailable, watcher disabled", "error", err)
		return
	}
	defer w.Close() //nolint:errcheck

	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()
	s.refreshWatchPaths(ctx)
	s.logger.Info("filesystem watcher started")

	refreshTicker := time.NewTicker(s.refreshPeriod)
	defer refreshTicker.Stop()

	// Coalesces bursts of events into one scan.
	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	scanPending := false

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("filesystem watcher stopping")
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !relevant(ev) {
				continue
			}
			s.logger.Debug("filesystem change", "path", ev.Name, "op", ev.Op.String())
			scanPending = true
			debounceTimer.Reset(s.debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Error("fsnotify error", "error", err)

		case <-debounceTimer.C:
			if !scanPending {
				continue
			}
			scanPending = false
			s.bus.Publish(event.LibraryChanged, nil)
			if err := s.scanFn(ctx); err != nil {
				s.logger.Error("triggered scan failed to start", "error", err)
			}
			// New folders may have appeared with the change.
			s.refreshWatchPaths(ctx)

		case <-refreshTicker.C:
			s.refreshWatchPaths(ctx)
		}
	}
}

// relevant filters noise: only creations, removals, renames, and writes
// matter, and dotfiles never do.
func relevant(ev fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return false
	}
	return ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0
}

// refreshWatchPaths walks every library root and watches each directory
// found. Paths already watched are kept; stale ones are dropped when the
// underlying directory vanishes (fsnotify removes those itself).
func (s *Service) refreshWatchPaths(ctx context.Context) {
	libs, err := s.libraries.List(ctx)
	if err != nil {
		s.logger.Error("listing libraries for watch refresh", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return
	}
	for _, lib := range libs {
		root := lib.Path
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil //nolint:nilerr
			}
			if !d.IsDir() {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return fs.SkipDir
			}
			if s.watching[path] {
				return nil
			}
			if err := s.watcher.Add(path); err != nil {
				s.logger.Warn("watching directory failed", "path", path, "error", err)
				return nil
			}
			s.watching[path] = true
			return nil
		})
		if err != nil {
			s.logger.Warn("walking library for watch refresh", "path", root, "error", err)
		}
	}
}
