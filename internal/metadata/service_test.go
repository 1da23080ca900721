package metadata

import (
	"context"
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

type fakeProvider struct {
	matches  map[string]*ShowMatch
	episodes map[string][]EpisodeInfo
	searches int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Search(_ context.Context, title string, _ *int) (*ShowMatch, error) {
	f.searches++
	m, ok := f.matches[title]
	if !ok {
		return nil, nil
	}
	return m, nil
}

func (f *fakeProvider) Episodes(_ context.Context, remoteID string) ([]EpisodeInfo, error) {
	eps, ok := f.episodes[remoteID]
	if !ok {
		return nil, errors.New("unknown remote id")
	}
	return eps, nil
}

func setupMetadata(t *testing.T, provider Provider) (*Service, *show.Service) {
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
	// High pacing rate keeps tests fast.
	return NewService(shows, provider, 1000, sched, cancels, bus, logger), shows
}

func addShowWithEpisode(t *testing.T, shows *show.Service, title string, season, episode int) *show.Show {
	t.Helper()
	ctx := context.Background()
	sh, _, err := shows.FindOrCreateShow(ctx, show.ShowIdentity{FolderName: title, Title: title})
	if err != nil {
		t.Fatalf("show fixture: %v", err)
	}
	se, _, err := shows.FindOrCreateSeason(ctx, sh.ID, season)
	if err != nil {
		t.Fatalf("season fixture: %v", err)
	}
	if _, _, err := shows.UpsertEpisode(ctx, se.ID, episode, nil); err != nil {
		t.Fatalf("episode fixture: %v", err)
	}
	return sh
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

func TestImportShowMatchesAndSyncs(t *testing.T) {
	air := time.Date(2001, 9, 20, 0, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		matches: map[string]*ShowMatch{"Show A": {RemoteID: "tmdb-1", Title: "Show A"}},
		episodes: map[string][]EpisodeInfo{
			"tmdb-1": {{Season: 1, Episode: 1, Title: "Pilot", AirDate: &air}},
		},
	}
	svc, shows := setupMetadata(t, provider)
	sh := addShowWithEpisode(t, shows, "Show A", 1, 1)

	tr, err := svc.ImportShow(context.Background(), sh.ID)
	if err != nil {
		t.Fatalf("ImportShow: %v", err)
	}
	snap := waitTerminal(t, tr)
	if snap.Status != task.StatusCompleted {
		t.Fatalf("status = %q: %+v", snap.Status, snap.Errors)
	}

	got, _ := shows.GetShow(context.Background(), sh.ID)
	if got.TMDBID != "tmdb-1" {
		t.Errorf("TMDBID = %q, want tmdb-1", got.TMDBID)
	}

	seasons, _ := shows.ListSeasons(context.Background(), sh.ID)
	eps, _ := shows.ListEpisodes(context.Background(), seasons[0].ID)
	if eps[0].Title == nil || *eps[0].Title != "Pilot" {
		t.Errorf("title = %v, want Pilot", eps[0].Title)
	}
	if eps[0].SyncedAt == nil || eps[0].AirDate == nil || !eps[0].AirDate.Equal(air) {
		t.Errorf("sync fields = %v/%v, want synced with air date", eps[0].SyncedAt, eps[0].AirDate)
	}
}

func TestImportShowUnknownID(t *testing.T) {
	svc, _ := setupMetadata(t, &fakeProvider{})
	if _, err := svc.ImportShow(context.Background(), "no-such-show"); err == nil {
		t.Fatal("expected error for unknown show id")
	}
}

func TestRefreshKeepsLocalTitle(t *testing.T) {
	provider := &fakeProvider{
		episodes: map[string][]EpisodeInfo{
			"tmdb-1": {{Season: 1, Episode: 1, Title: "Remote Title"}},
		},
	}
	svc, shows := setupMetadata(t, provider)
	ctx := context.Background()

	sh := addShowWithEpisode(t, shows, "Show A", 1, 1)
	if err := shows.SetShowTMDBID(ctx, sh.ID, "tmdb-1"); err != nil {
		t.Fatalf("SetShowTMDBID: %v", err)
	}
	seasons, _ := shows.ListSeasons(ctx, sh.ID)
	eps, _ := shows.ListEpisodes(ctx, seasons[0].ID)
	local := "Local Title"
	if err := shows.UpdateEpisodeTitle(ctx, eps[0].ID, &local); err != nil {
		t.Fatalf("UpdateEpisodeTitle: %v", err)
	}

	tr, err := svc.BulkRefresh(ctx)
	if err != nil {
		t.Fatalf("BulkRefresh: %v", err)
	}
	waitTerminal(t, tr)

	eps, _ = shows.ListEpisodes(ctx, seasons[0].ID)
	if eps[0].Title == nil || *eps[0].Title != "Local Title" {
		t.Errorf("title = %v, remote refresh must not overwrite it", eps[0].Title)
	}
	if eps[0].SyncedAt == nil {
		t.Error("episode not marked synced")
	}
}

func TestBulkMatchSkipsMatchedShows(t *testing.T) {
	provider := &fakeProvider{
		matches: map[string]*ShowMatch{
			"Show A": {RemoteID: "tmdb-1"},
			"Show B": {RemoteID: "tmdb-2"},
		},
	}
	svc, shows := setupMetadata(t, provider)
	ctx := context.Background()

	addShowWithEpisode(t, shows, "Show A", 1, 1)
	matched := addShowWithEpisode(t, shows, "Show B", 1, 1)
	if err := shows.SetShowTMDBID(ctx, matched.ID, "tmdb-2"); err != nil {
		t.Fatalf("SetShowTMDBID: %v", err)
	}

	tr, err := svc.BulkMatch(ctx)
	if err != nil {
		t.Fatalf("BulkMatch: %v", err)
	}
	snap := waitTerminal(t, tr)
	if snap.Total != 1 || snap.Succeeded != 1 {
		t.Errorf("total/succeeded = %d/%d, want 1/1 (only the unmatched show)", snap.Total, snap.Succeeded)
	}
	if provider.searches != 1 {
		t.Errorf("provider searched %d times, want 1", provider.searches)
	}
}

func TestBulkMatchNoMatchIsPerItemError(t *testing.T) {
	provider := &fakeProvider{matches: map[string]*ShowMatch{}}
	svc, shows := setupMetadata(t, provider)

	addShowWithEpisode(t, shows, "Obscure Show", 1, 1)

	tr, err := svc.BulkMatch(context.Background())
	if err != nil {
		t.Fatalf("BulkMatch: %v", err)
	}
	snap := waitTerminal(t, tr)
	if snap.Status != task.StatusCompleted {
		t.Fatalf("status = %q, a failed match must not fail the task", snap.Status)
	}
	if snap.Failed != 1 || len(snap.Errors) != 1 {
		t.Errorf("failed = %d errors = %+v, want one recorded miss", snap.Failed, snap.Errors)
	}
}

func TestFullySynced(t *testing.T) {
	svc, shows := setupMetadata(t, &fakeProvider{})
	ctx := context.Background()

	// A show with no seasons counts as synced.
	bare, _, err := shows.FindOrCreateShow(ctx, show.ShowIdentity{FolderName: "Bare", Title: "Bare"})
	if err != nil {
		t.Fatalf("show fixture: %v", err)
	}
	synced, err := svc.FullySynced(ctx, bare.ID)
	if err != nil || !synced {
		t.Errorf("FullySynced(no seasons) = %v (%v), want true", synced, err)
	}

	sh := addShowWithEpisode(t, shows, "Show A", 1, 1)
	synced, err = svc.FullySynced(ctx, sh.ID)
	if err != nil || synced {
		t.Errorf("FullySynced(unsynced episode) = %v (%v), want false", synced, err)
	}

	seasons, _ := shows.ListSeasons(ctx, sh.ID)
	eps, _ := shows.ListEpisodes(ctx, seasons[0].ID)
	if err := shows.MarkEpisodeSynced(ctx, eps[0].ID, nil); err != nil {
		t.Fatalf("MarkEpisodeSynced: %v", err)
	}
	synced, err = svc.FullySynced(ctx, sh.ID)
	if err != nil || !synced {
		t.Errorf("FullySynced(all synced) = %v (%v), want true", synced, err)
	}
}

func TestRefreshMissingSkipsSyncedShows(t *testing.T) {
	provider := &fakeProvider{
		episodes: map[string][]EpisodeInfo{
			"tmdb-1": {{Season: 1, Episode: 1, Title: "Ep"}},
			"tmdb-2": {{Season: 1, Episode: 1, Title: "Ep"}},
		},
	}
	svc, shows := setupMetadata(t, provider)
	ctx := context.Background()

	stale := addShowWithEpisode(t, shows, "Stale", 1, 1)
	_ = shows.SetShowTMDBID(ctx, stale.ID, "tmdb-1")

	fresh := addShowWithEpisode(t, shows, "Fresh", 1, 1)
	_ = shows.SetShowTMDBID(ctx, fresh.ID, "tmdb-2")
	seasons, _ := shows.ListSeasons(ctx, fresh.ID)
	eps, _ := shows.ListEpisodes(ctx, seasons[0].ID)
	_ = shows.MarkEpisodeSynced(ctx, eps[0].ID, nil)

	tr, err := svc.RefreshMissing(ctx)
	if err != nil {
		t.Fatalf("RefreshMissing: %v", err)
	}
	snap := waitTerminal(t, tr)
	if snap.Total != 1 || snap.Succeeded != 1 {
		t.Errorf("total/succeeded = %d/%d, want only the stale show", snap.Total, snap.Succeeded)
	}
}
