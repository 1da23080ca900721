package scanner

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/sydlexius/driftwood/internal/event"
	"github.com/sydlexius/driftwood/internal/library"
	"github.com/sydlexius/driftwood/internal/show"
	"github.com/sydlexius/driftwood/internal/task"
)

// Service runs library scans as tracked background tasks. A scan walks the
// configured library roots, resolves each media file to show/season/episode
// identity, reconciles the catalog, and flags files that vanished from disk.
type Service struct {
	shows     *show.Service
	libraries *library.Service
	store     *Store
	sched     *task.Scheduler
	cancels   *task.CancelRegistry
	bus       *event.Bus
	logger    *slog.Logger
}

// NewService creates a scanner service.
func NewService(db *sql.DB, shows *show.Service, libraries *library.Service, sched *task.Scheduler, cancels *task.CancelRegistry, bus *event.Bus, logger *slog.Logger) *Service {
	return &Service{
		shows:     shows,
		libraries: libraries,
		store:     NewStore(db),
		sched:     sched,
		cancels:   cancels,
		bus:       bus,
		logger:    logger.With(slog.String("component", "scanner")),
	}
}

// Store exposes the scan history store.
func (s *Service) Store() *Store {
	return s.store
}

// StartScan admits a scan over every configured library. It fails before
// admission when no library is configured.
func (s *Service) StartScan(ctx context.Context) (*task.Tracker, error) {
	libs, err := s.libraries.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading libraries: %w", err)
	}
	if len(libs) == 0 {
		return nil, fmt.Errorf("no library configured")
	}
	return s.admit("library", libs), nil
}

// StartLibraryScan admits a scan over a single library.
func (s *Service) StartLibraryScan(ctx context.Context, libraryID string) (*task.Tracker, error) {
	lib, err := s.libraries.GetByID(ctx, libraryID)
	if err != nil {
		return nil, fmt.Errorf("loading library: %w", err)
	}
	if lib == nil {
		return nil, fmt.Errorf("library not found: %s", libraryID)
	}
	return s.admit("single_library", []library.Library{*lib}), nil
}

func (s *Service) admit(scanType string, libs []library.Library) *task.Tracker {
	return s.sched.Admit(task.TypeScan, 0, func(ctx context.Context, tr *task.Tracker) error {
		return s.run(ctx, tr, scanType, libs)
	})
}

// parsedItem pairs a discovered file with its resolved identity.
type parsedItem struct {
	file   DiscoveredFile
	parsed *ParsedFile
	lib    *library.Library
}

func (s *Service) run(ctx context.Context, tr *task.Tracker, scanType string, libs []library.Library) error {
	scanID, err := s.store.Begin(ctx, scanType)
	if err != nil {
		return err
	}
	tr.UpdateScan(func(sp *task.ScanProgress) {
		sp.ScanID = scanID
		sp.Phase = PhaseDiscovering
	})
	s.logger.Info("scan started", "scan_id", scanID, "libraries", len(libs))

	rec := &ScanRecord{ID: scanID, ScanType: scanType}
	finish := func(status string, errs []string) {
		rec.Status = status
		rec.Errors = errs
		snap := tr.Snapshot()
		rec.FilesScanned = snap.Processed
		if snap.Scan != nil {
			rec.FilesAdded = snap.Scan.FilesAdded
			rec.FilesUpdated = snap.Scan.FilesUpdated
			rec.FilesDeleted = snap.Scan.FilesDeleted
		}
		if err := s.store.Finish(context.WithoutCancel(ctx), rec); err != nil {
			s.logger.Error("recording scan result failed", "scan_id", scanID, "error", err)
		}
	}

	// Phase 1: discovery. Indeterminate progress until the walk finishes.
	// seen holds every discovered path: cleanup flags only files absent
	// from disk, so a parse or save failure must not mark its file missing.
	var discovered []DiscoveredFile
	fileLib := make(map[string]*library.Library)
	seen := make(map[string]bool)
	for i := range libs {
		lib := &libs[i]
		files, err := WalkMedia(lib.Path)
		if err != nil {
			finish(ScanFailed, []string{err.Error()})
			return fmt.Errorf("walking %s: %w", lib.Path, err)
		}
		for _, f := range files {
			discovered = append(discovered, f)
			fileLib[f.Path] = lib
			seen[f.Path] = true
		}
	}
	tr.SetTotal(len(discovered))

	// Phase 2: parsing. Unparseable paths are per-item failures, not fatal.
	tr.UpdateScan(func(sp *task.ScanProgress) { sp.Phase = PhaseParsing })
	var items []parsedItem
	for _, f := range discovered {
		if s.cancels.IsCancelled(tr.ID()) {
			return s.cancelled(tr, finish)
		}
		lib := fileLib[f.Path]
		tr.SetCurrentItem(f.Path)
		parsed, err := Recognize(lib.Path, f.Path)
		if err != nil {
			tr.IncrementFailed(f.Path, err.Error())
			continue
		}
		items = append(items, parsedItem{file: f, parsed: parsed, lib: lib})
	}

	// Phase 3: saving. Identity-keyed upserts; each item succeeds or fails
	// on its own.
	tr.UpdateScan(func(sp *task.ScanProgress) { sp.Phase = PhaseSaving })
	for _, it := range items {
		if s.cancels.IsCancelled(tr.ID()) {
			return s.cancelled(tr, finish)
		}
		tr.SetCurrentItem(it.file.Path)
		created, changed, err := s.saveItem(ctx, it)
		if err != nil {
			tr.IncrementFailed(it.file.Path, err.Error())
			continue
		}
		if created {
			tr.UpdateScan(func(sp *task.ScanProgress) { sp.FilesAdded++ })
		} else if changed {
			tr.UpdateScan(func(sp *task.ScanProgress) { sp.FilesUpdated++ })
		}
		tr.IncrementSuccess(it.file.Path)
	}

	// Phase 4: cleanup. Files no longer on disk are flagged, never deleted.
	if s.cancels.IsCancelled(tr.ID()) {
		return s.cancelled(tr, finish)
	}
	tr.UpdateScan(func(sp *task.ScanProgress) { sp.Phase = PhaseCleanup })
	for i := range libs {
		if err := s.flagMissing(ctx, tr, libs[i].Path, seen); err != nil {
			finish(ScanFailed, append(snapshotErrors(tr), err.Error()))
			return err
		}
	}

	tr.UpdateScan(func(sp *task.ScanProgress) { sp.Phase = PhaseComplete })
	finish(ScanCompleted, snapshotErrors(tr))
	tr.Complete()

	snap := tr.Snapshot()
	s.bus.Publish(event.ScanCompleted, map[string]any{
		"scan_id":       scanID,
		"files_scanned": snap.Processed,
		"files_added":   rec.FilesAdded,
		"files_updated": rec.FilesUpdated,
		"files_deleted": rec.FilesDeleted,
	})
	s.logger.Info("scan completed", "scan_id", scanID,
		"scanned", snap.Processed, "added", rec.FilesAdded,
		"updated", rec.FilesUpdated, "flagged_missing", rec.FilesDeleted)
	return nil
}

func (s *Service) cancelled(tr *task.Tracker, finish func(string, []string)) error {
	finish(ScanFailed, append(snapshotErrors(tr), "scan cancelled"))
	tr.Cancel()
	return nil
}

// saveItem upserts one parsed file through the catalog's identity-keyed
// contracts. It reports whether the file row was created and whether an
// existing row changed.
func (s *Service) saveItem(ctx context.Context, it parsedItem) (created, changed bool, err error) {
	identity := show.ShowIdentity{
		FolderName: it.parsed.ShowFolder,
		Title:      it.parsed.ShowTitle,
		Year:       it.parsed.Year,
		Path:       filepath.Join(it.lib.Path, it.parsed.ShowFolder),
		LibraryID:  it.lib.ID,
	}
	sh, _, err := s.shows.FindOrCreateShow(ctx, identity)
	if err != nil {
		return false, false, err
	}
	season, _, err := s.shows.FindOrCreateSeason(ctx, sh.ID, it.parsed.Season)
	if err != nil {
		return false, false, err
	}
	ep, _, err := s.shows.UpsertEpisode(ctx, season.ID, it.parsed.Episode, it.parsed.EpisodeTitle)
	if err != nil {
		return false, false, err
	}
	_, created, changed, err = s.shows.UpsertFile(ctx, ep.ID, it.file.Path, it.file.Size, it.file.ModTime)
	return created, changed, err
}

// flagMissing marks previously known files under root that the current
// walk did not find.
func (s *Service) flagMissing(ctx context.Context, tr *task.Tracker, root string, seen map[string]bool) error {
	known, err := s.shows.ListFileRefsUnder(ctx, root)
	if err != nil {
		return err
	}
	for _, ref := range known {
		if !ref.ExistsOnDisk || seen[ref.Path] {
			continue
		}
		if err := s.shows.MarkFileMissing(ctx, ref.ID); err != nil {
			return err
		}
		tr.UpdateScan(func(sp *task.ScanProgress) { sp.FilesDeleted++ })
		s.bus.Publish(event.FileMissing, map[string]any{"file_id": ref.ID, "path": ref.Path})
	}
	return nil
}

func snapshotErrors(tr *task.Tracker) []string {
	snap := tr.Snapshot()
	out := make([]string, 0, len(snap.Errors))
	for _, e := range snap.Errors {
		out = append(out, fmt.Sprintf("%s: %s", e.Item, e.Error))
	}
	return out
}
