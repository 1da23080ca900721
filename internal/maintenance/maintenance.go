// Package maintenance keeps the SQLite file healthy: query planner
// statistics, WAL checkpoints, and optional scheduled runs.
package maintenance

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sydlexius/driftwood/internal/settings"
)

// Setting keys owned by this package.
const (
	KeyEnabled       = "db_maintenance.enabled"
	KeyIntervalHours = "db_maintenance.interval_hours"
	keyLastOptimize  = "db_maintenance.last_optimize_at"
)

// Status reports database size and maintenance schedule state.
type Status struct {
	DBFileSize       int64  `json:"db_file_size"`
	WALFileSize      int64  `json:"wal_file_size"`
	PageCount        int64  `json:"page_count"`
	PageSize         int64  `json:"page_size"`
	LastOptimizeAt   string `json:"last_optimize_at,omitempty"`
	ScheduleEnabled  bool   `json:"schedule_enabled"`
	ScheduleInterval int    `json:"schedule_interval_hours"`
}

// Service runs database maintenance operations.
type Service struct {
	db       *sql.DB
	dbPath   string
	settings *settings.Service
	logger   *slog.Logger
}

// NewService creates a maintenance service. dbPath points at the SQLite
// file and is used only for size reporting.
func NewService(db *sql.DB, dbPath string, set *settings.Service, logger *slog.Logger) *Service {
	return &Service{
		db:       db,
		dbPath:   dbPath,
		settings: set,
		logger:   logger.With(slog.String("component", "maintenance")),
	}
}

// Status returns current file sizes, page stats, and schedule settings.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	st := &Status{}

	if info, err := os.Stat(s.dbPath); err == nil {
		st.DBFileSize = info.Size()
	}
	if info, err := os.Stat(s.dbPath + "-wal"); err == nil {
		st.WALFileSize = info.Size()
	}

	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&st.PageCount); err != nil {
		s.logger.Warn("reading page_count", "error", err)
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&st.PageSize); err != nil {
		s.logger.Warn("reading page_size", "error", err)
	}

	st.LastOptimizeAt = s.settings.Get(ctx, keyLastOptimize, "")
	st.ScheduleEnabled = s.settings.GetBool(ctx, KeyEnabled, true)
	st.ScheduleInterval = s.settings.GetInt(ctx, KeyIntervalHours, 24)

	return st, nil
}

// Optimize refreshes planner statistics and truncates the WAL, then
// records the run timestamp.
func (s *Service) Optimize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("PRAGMA optimize: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("WAL checkpoint: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if err := s.settings.Set(ctx, keyLastOptimize, now); err != nil {
		s.logger.Warn("recording optimize timestamp", "error", err)
	}

	s.logger.Info("optimize complete")
	return nil
}

// Vacuum rebuilds the database file, reclaiming free pages.
func (s *Service) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("VACUUM: %w", err)
	}
	s.logger.Info("vacuum complete")
	return nil
}

// StartScheduler runs Optimize on a fixed interval until the context is
// cancelled.
func (s *Service) StartScheduler(ctx context.Context, interval time.Duration) {
	s.logger.Info("maintenance scheduler started", slog.String("interval", interval.String()))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("maintenance scheduler stopped")
			return
		case <-ticker.C:
			if err := s.Optimize(ctx); err != nil {
				s.logger.Error("scheduled optimize failed", slog.Any("error", err))
			}
		}
	}
}
