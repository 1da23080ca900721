package settings

import (
	"context"
	"database/sql"
	"testing"

	"github.com/sydlexius/driftwood/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSetGet(t *testing.T) {
	svc := NewService(setupTestDB(t))
	ctx := context.Background()

	if got := svc.Get(ctx, "missing", "fallback"); got != "fallback" {
		t.Errorf("Get missing = %q, want fallback", got)
	}

	if err := svc.Set(ctx, KeyLogLevel, "debug"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := svc.Get(ctx, KeyLogLevel, ""); got != "debug" {
		t.Errorf("Get = %q, want debug", got)
	}

	// Overwrite
	if err := svc.Set(ctx, KeyLogLevel, "warn"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if got := svc.Get(ctx, KeyLogLevel, ""); got != "warn" {
		t.Errorf("Get after overwrite = %q, want warn", got)
	}
}

func TestGetInt(t *testing.T) {
	svc := NewService(setupTestDB(t))
	ctx := context.Background()

	if got := svc.GetInt(ctx, KeyTaskCeiling, 2); got != 2 {
		t.Errorf("GetInt fallback = %d, want 2", got)
	}
	if err := svc.SetInt(ctx, KeyTaskCeiling, 5); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	if got := svc.GetInt(ctx, KeyTaskCeiling, 2); got != 5 {
		t.Errorf("GetInt = %d, want 5", got)
	}

	// Invalid stored value falls back
	if err := svc.Set(ctx, KeyTaskCeiling, "bogus"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := svc.GetInt(ctx, KeyTaskCeiling, 2); got != 2 {
		t.Errorf("GetInt invalid = %d, want fallback 2", got)
	}
}

func TestGetBool(t *testing.T) {
	svc := NewService(setupTestDB(t))
	ctx := context.Background()

	if !svc.GetBool(ctx, KeyScanOnStart, true) {
		t.Error("GetBool fallback = false, want true")
	}
	if err := svc.Set(ctx, KeyScanOnStart, "false"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if svc.GetBool(ctx, KeyScanOnStart, true) {
		t.Error("GetBool = true, want false")
	}
}

func TestDelete(t *testing.T) {
	svc := NewService(setupTestDB(t))
	ctx := context.Background()

	if err := svc.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := svc.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := svc.Get(ctx, "k", "gone"); got != "gone" {
		t.Errorf("Get after delete = %q, want gone", got)
	}
	// Deleting again is not an error
	if err := svc.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}
