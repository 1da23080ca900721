package analysis

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sydlexius/driftwood/internal/database"
	"github.com/sydlexius/driftwood/internal/event"
	"github.com/sydlexius/driftwood/internal/show"
	"github.com/sydlexius/driftwood/internal/task"
)

// fakeAnalyzer returns canned results keyed by path.
type fakeAnalyzer struct {
	results     map[string]show.AnalysisInfo
	unavailable bool
}

func (f *fakeAnalyzer) Available() error {
	if f.unavailable {
		return errors.New("ffprobe not found")
	}
	return nil
}

func (f *fakeAnalyzer) Analyze(_ context.Context, path string) (show.AnalysisInfo, error) {
	info, ok := f.results[path]
	if !ok {
		return show.AnalysisInfo{}, errors.New("probe failed")
	}
	return info, nil
}

func setupAnalysis(t *testing.T, analyzer Analyzer) (*Service, *show.Service, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := event.NewBus(logger, 64)
	go bus.Start()
	t.Cleanup(bus.Stop)

	registry := task.NewRegistry(time.Minute)
	cancels := task.NewCancelRegistry()
	sched := task.NewScheduler(context.Background(), registry, cancels, 2, logger)

	shows := show.NewService(db)
	return NewService(shows, analyzer, sched, cancels, bus, logger), shows, db
}

func addFile(t *testing.T, shows *show.Service, path string) string {
	t.Helper()
	ctx := context.Background()
	sh, _, err := shows.FindOrCreateShow(ctx, show.ShowIdentity{FolderName: "Show A", Title: "Show A"})
	if err != nil {
		t.Fatalf("show fixture: %v", err)
	}
	season, _, err := shows.FindOrCreateSeason(ctx, sh.ID, 1)
	if err != nil {
		t.Fatalf("season fixture: %v", err)
	}
	ep, _, err := shows.UpsertEpisode(ctx, season.ID, len(path)%100, nil)
	if err != nil {
		t.Fatalf("episode fixture: %v", err)
	}
	mf, _, _, err := shows.UpsertFile(ctx, ep.ID, path, 100, time.Now())
	if err != nil {
		t.Fatalf("file fixture: %v", err)
	}
	return mf.ID
}

func waitTerminal(t *testing.T, tr *task.Tracker) task.Progress {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !tr.Snapshot().Status.Terminal() {
		if time.Now().After(deadline) {
			t.Fatalf("task never finished: %+v", tr.Snapshot())
		}
		time.Sleep(time.Millisecond)
	}
	return tr.Snapshot()
}

func TestAnalyzeFile(t *testing.T) {
	fake := &fakeAnalyzer{results: map[string]show.AnalysisInfo{
		"/tv/a.mkv": {VideoCodec: "h264", AudioCodec: "aac", Resolution: "1920x1080", Duration: 1320.5},
	}}
	svc, shows, _ := setupAnalysis(t, fake)
	fileID := addFile(t, shows, "/tv/a.mkv")

	tr, err := svc.AnalyzeFile(context.Background(), fileID)
	if err != nil {
		t.Fatalf("AnalyzeFile: %v", err)
	}
	snap := waitTerminal(t, tr)
	if snap.Status != task.StatusCompleted || snap.Succeeded != 1 {
		t.Fatalf("snapshot = %+v, want one success", snap)
	}

	mf, err := shows.GetFile(context.Background(), fileID)
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if mf.VideoCodec != "h264" {
		t.Errorf("VideoCodec = %q, want h264", mf.VideoCodec)
	}
	if mf.Resolution != "1920x1080" {
		t.Errorf("Resolution = %q, want 1920x1080", mf.Resolution)
	}
	if mf.AnalyzedAt == nil {
		t.Error("AnalyzedAt not set")
	}
}

func TestAnalyzeFileUnknownID(t *testing.T) {
	svc, _, _ := setupAnalysis(t, &fakeAnalyzer{})
	if _, err := svc.AnalyzeFile(context.Background(), "nope"); err == nil {
		t.Error("unknown file must fail before admission")
	}
}

func TestAnalyzerUnavailableIsSetupError(t *testing.T) {
	svc, shows, _ := setupAnalysis(t, &fakeAnalyzer{unavailable: true})
	fileID := addFile(t, shows, "/tv/a.mkv")

	if _, err := svc.AnalyzeFile(context.Background(), fileID); err == nil {
		t.Error("missing analyzer must fail before admission")
	}
	if _, err := svc.AnalyzeAll(context.Background()); err == nil {
		t.Error("missing analyzer must fail bulk admission")
	}
}

func TestAnalyzeAllPartialSuccess(t *testing.T) {
	fake := &fakeAnalyzer{results: map[string]show.AnalysisInfo{
		"/tv/a.mkv": {VideoCodec: "h264"},
		// /tv/b.mkv missing: probe fails for it
	}}
	svc, shows, _ := setupAnalysis(t, fake)
	addFile(t, shows, "/tv/a.mkv")
	addFile(t, shows, "/tv/b.mkv")

	tr, err := svc.AnalyzeAll(context.Background())
	if err != nil {
		t.Fatalf("AnalyzeAll: %v", err)
	}
	snap := waitTerminal(t, tr)
	if snap.Status != task.StatusCompleted {
		t.Fatalf("status = %q, per-item failures must not fail the task", snap.Status)
	}
	if snap.Succeeded != 1 || snap.Failed != 1 {
		t.Errorf("succeeded/failed = %d/%d, want 1/1", snap.Succeeded, snap.Failed)
	}
	if len(snap.Errors) != 1 || snap.Errors[0].Item != "/tv/b.mkv" {
		t.Errorf("errors = %+v, want one entry for /tv/b.mkv", snap.Errors)
	}
}

func TestAnalyzeAllEmptyCatalog(t *testing.T) {
	svc, _, _ := setupAnalysis(t, &fakeAnalyzer{})
	if _, err := svc.AnalyzeAll(context.Background()); err == nil {
		t.Error("empty catalog must fail before admission")
	}
}
