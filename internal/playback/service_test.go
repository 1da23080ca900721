package playback

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/sydlexius/driftwood/internal/database"
	"github.com/sydlexius/driftwood/internal/show"
)

func setupTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	shows := show.NewService(db)
	sh, _, err := shows.FindOrCreateShow(ctx, show.ShowIdentity{FolderName: "Show A", Title: "Show A"})
	if err != nil {
		t.Fatalf("creating show fixture: %v", err)
	}
	season, _, err := shows.FindOrCreateSeason(ctx, sh.ID, 1)
	if err != nil {
		t.Fatalf("creating season fixture: %v", err)
	}
	ep, _, err := shows.UpsertEpisode(ctx, season.ID, 1, nil)
	if err != nil {
		t.Fatalf("creating episode fixture: %v", err)
	}
	mf, _, _, err := shows.UpsertFile(ctx, ep.ID, "/tv/Show A/Season 01/e01.mkv", 1024, time.Now())
	if err != nil {
		t.Fatalf("creating file fixture: %v", err)
	}
	return db, mf.ID
}

func TestRecordAndList(t *testing.T) {
	db, fileID := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	first := &Test{FileID: fileID, Player: "vlc", Result: ResultFail, Notes: "stutter at 12:30",
		TestedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	if err := svc.Record(ctx, first); err != nil {
		t.Fatalf("Record: %v", err)
	}
	second := &Test{FileID: fileID, Player: "mpv", Result: ResultPass,
		TestedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	if err := svc.Record(ctx, second); err != nil {
		t.Fatalf("Record: %v", err)
	}

	tests, err := svc.ListByFile(ctx, fileID)
	if err != nil {
		t.Fatalf("ListByFile: %v", err)
	}
	if len(tests) != 2 {
		t.Fatalf("got %d tests, want 2", len(tests))
	}
	if tests[0].Player != "mpv" {
		t.Errorf("newest first: got %q, want mpv", tests[0].Player)
	}

	latest, err := svc.Latest(ctx, fileID)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest == nil || latest.Result != ResultPass {
		t.Errorf("Latest = %+v, want the passing mpv test", latest)
	}
}

func TestRecordValidation(t *testing.T) {
	db, fileID := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	cases := []struct {
		name string
		pt   Test
	}{
		{"missing file", Test{Player: "vlc", Result: ResultPass}},
		{"missing player", Test{FileID: fileID, Result: ResultPass}},
		{"bad result", Test{FileID: fileID, Player: "vlc", Result: "maybe"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pt := tc.pt
			if err := svc.Record(ctx, &pt); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLatestEmpty(t *testing.T) {
	db, fileID := setupTestDB(t)
	svc := NewService(db)

	latest, err := svc.Latest(context.Background(), fileID)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest != nil {
		t.Errorf("Latest = %+v, want nil for untested file", latest)
	}
}

func TestDelete(t *testing.T) {
	db, fileID := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	pt := &Test{FileID: fileID, Player: "vlc", Result: ResultPass}
	if err := svc.Record(ctx, pt); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := svc.Delete(ctx, pt.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, pt.ID); err == nil {
		t.Error("deleting twice should fail")
	}
}
