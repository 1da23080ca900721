package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sydlexius/driftwood/internal/event"
	"github.com/sydlexius/driftwood/internal/show"
	"github.com/sydlexius/driftwood/internal/task"
)

// Service runs media analysis as tracked background tasks.
type Service struct {
	shows    *show.Service
	analyzer Analyzer
	sched    *task.Scheduler
	cancels  *task.CancelRegistry
	bus      *event.Bus
	logger   *slog.Logger
}

// NewService creates an analysis service.
func NewService(shows *show.Service, analyzer Analyzer, sched *task.Scheduler, cancels *task.CancelRegistry, bus *event.Bus, logger *slog.Logger) *Service {
	return &Service{
		shows:    shows,
		analyzer: analyzer,
		sched:    sched,
		cancels:  cancels,
		bus:      bus,
		logger:   logger.With(slog.String("component", "analysis")),
	}
}

// AnalyzeFile admits a task probing a single file. The file must exist in
// the catalog and on disk; the analyzer binary must be available.
func (s *Service) AnalyzeFile(ctx context.Context, fileID string) (*task.Tracker, error) {
	if err := s.analyzer.Available(); err != nil {
		return nil, err
	}
	mf, err := s.shows.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if mf == nil {
		return nil, fmt.Errorf("file not found: %s", fileID)
	}
	if !mf.ExistsOnDisk {
		return nil, fmt.Errorf("file is not on disk: %s", mf.Path)
	}

	return s.sched.Admit(task.TypeAnalyzeFile, 1, func(ctx context.Context, tr *task.Tracker) error {
		s.analyzeOne(ctx, tr, mf.ID, mf.Path)
		tr.Complete()
		return nil
	}), nil
}

// AnalyzeAll admits a bulk task probing every file present on disk.
func (s *Service) AnalyzeAll(ctx context.Context) (*task.Tracker, error) {
	if err := s.analyzer.Available(); err != nil {
		return nil, err
	}
	files, err := s.shows.ListFilesPresent(ctx)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to analyze")
	}

	return s.sched.Admit(task.TypeAnalyzeBulk, len(files), func(ctx context.Context, tr *task.Tracker) error {
		for _, mf := range files {
			if s.cancels.IsCancelled(tr.ID()) {
				tr.Cancel()
				return nil
			}
			s.analyzeOne(ctx, tr, mf.ID, mf.Path)
		}
		tr.Complete()

		snap := tr.Snapshot()
		s.logger.Info("bulk analysis finished", "succeeded", snap.Succeeded, "failed", snap.Failed)
		s.bus.Publish(event.AnalysisDone, map[string]any{
			"task_id":   tr.ID(),
			"succeeded": snap.Succeeded,
			"failed":    snap.Failed,
		})
		return nil
	}), nil
}

// analyzeOne probes a single file and records the outcome on the tracker.
func (s *Service) analyzeOne(ctx context.Context, tr *task.Tracker, fileID, path string) {
	tr.SetCurrentItem(path)
	info, err := s.analyzer.Analyze(ctx, path)
	if err != nil {
		tr.IncrementFailed(path, err.Error())
		return
	}
	if err := s.shows.SetFileAnalysis(ctx, fileID, info); err != nil {
		tr.IncrementFailed(path, err.Error())
		return
	}
	tr.IncrementSuccess(path)
}
