package backup

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/sydlexius/driftwood/internal/database"
)

func newTestService(t *testing.T, keep int) (*Service, string) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	dir := filepath.Join(t.TempDir(), "backups")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(db, dir, keep, logger), dir
}

func TestSnapshotAndList(t *testing.T) {
	svc, dir := newTestService(t, 5)
	ctx := context.Background()

	snap, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Size == 0 {
		t.Error("expected non-empty snapshot")
	}
	if _, err := os.Stat(filepath.Join(dir, snap.Filename)); err != nil {
		t.Errorf("snapshot file missing: %v", err)
	}

	snaps, err := svc.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Filename != snap.Filename {
		t.Errorf("List = %+v, want one entry %s", snaps, snap.Filename)
	}
}

func TestListMissingDirectory(t *testing.T) {
	svc, _ := newTestService(t, 5)
	snaps, err := svc.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snaps) != 0 {
		t.Errorf("expected no snapshots, got %d", len(snaps))
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	svc, dir := newTestService(t, 2)

	// Fabricate datestamped files so creation times differ
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatal(err)
	}
	names := []string{
		"driftwood-20260101-000000.db",
		"driftwood-20260102-000000.db",
		"driftwood-20260103-000000.db",
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	if err := svc.Prune(); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	snaps, err := svc.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots after prune, got %d", len(snaps))
	}
	if snaps[0].Filename != names[2] || snaps[1].Filename != names[1] {
		t.Errorf("prune kept wrong snapshots: %+v", snaps)
	}
}

func TestDeleteRejectsBadNames(t *testing.T) {
	svc, _ := newTestService(t, 5)
	for _, name := range []string{"../etc/passwd", "other.db", "driftwood-2026.db"} {
		if err := svc.Delete(name); err == nil {
			t.Errorf("Delete(%q) succeeded, want error", name)
		}
	}
}
