package maintenance

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/sydlexius/driftwood/internal/database"
	"github.com/sydlexius/driftwood/internal/settings"
)

func newTestService(t *testing.T) (*Service, *settings.Service) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	set := settings.NewService(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(db, "/nonexistent/driftwood.db", set, logger), set
}

func TestStatusDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	st, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.ScheduleEnabled {
		t.Error("expected schedule enabled by default")
	}
	if st.ScheduleInterval != 24 {
		t.Errorf("ScheduleInterval = %d, want 24", st.ScheduleInterval)
	}
	if st.LastOptimizeAt != "" {
		t.Errorf("LastOptimizeAt = %q, want empty before first run", st.LastOptimizeAt)
	}
	if st.PageCount == 0 || st.PageSize == 0 {
		t.Errorf("expected non-zero page stats, got count=%d size=%d", st.PageCount, st.PageSize)
	}
}

func TestOptimizeRecordsTimestamp(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Optimize(ctx); err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	st, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.LastOptimizeAt == "" {
		t.Error("expected LastOptimizeAt set after Optimize")
	}
}

func TestStatusReflectsScheduleSettings(t *testing.T) {
	svc, set := newTestService(t)
	ctx := context.Background()

	if err := set.Set(ctx, KeyEnabled, "false"); err != nil {
		t.Fatal(err)
	}
	if err := set.SetInt(ctx, KeyIntervalHours, 6); err != nil {
		t.Fatal(err)
	}

	st, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.ScheduleEnabled {
		t.Error("expected schedule disabled")
	}
	if st.ScheduleInterval != 6 {
		t.Errorf("ScheduleInterval = %d, want 6", st.ScheduleInterval)
	}
}

func TestVacuum(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.Vacuum(context.Background()); err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
}
