package backup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// snapshotPattern matches snapshot filenames: driftwood-YYYYMMDD-HHMMSS.db
var snapshotPattern = regexp.MustCompile(`^driftwood-\d{8}-\d{6}\.db$`)

// Snapshot describes one backup file on disk.
type Snapshot struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Service snapshots the SQLite database with VACUUM INTO and prunes old
// snapshots past a keep count.
type Service struct {
	db     *sql.DB
	dir    string
	keep   int
	logger *slog.Logger
}

// NewService creates a backup service. keep is the number of snapshots
// retained by Prune; values below 1 keep one.
func NewService(db *sql.DB, dir string, keep int, logger *slog.Logger) *Service {
	if keep < 1 {
		keep = 1
	}
	return &Service{
		db:     db,
		dir:    dir,
		keep:   keep,
		logger: logger.With(slog.String("component", "backup")),
	}
}

// Snapshot writes a consistent copy of the database into the backup
// directory. Safe while the application is serving writes.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	now := time.Now().UTC()
	filename := fmt.Sprintf("driftwood-%s.db", now.Format("20060102-150405"))
	dest := filepath.Join(s.dir, filename)

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return nil, fmt.Errorf("VACUUM INTO: %w", err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}

	s.logger.Info("snapshot written",
		slog.String("filename", filename),
		slog.Int64("size", info.Size()))

	return &Snapshot{Filename: filename, Size: info.Size(), CreatedAt: now}, nil
}

// List returns snapshots newest first. A missing backup directory is an
// empty list, not an error.
func (s *Service) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var snaps []Snapshot
	for _, entry := range entries {
		if entry.IsDir() || !snapshotPattern.MatchString(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(entry.Name(), "driftwood-"), ".db")
		created, err := time.Parse("20060102-150405", stamp)
		if err != nil {
			created = info.ModTime().UTC()
		}
		snaps = append(snaps, Snapshot{
			Filename:  entry.Name(),
			Size:      info.Size(),
			CreatedAt: created,
		})
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
	})
	return snaps, nil
}

// Delete removes one snapshot by filename. The name must match the
// snapshot pattern, which also rules out path traversal.
func (s *Service) Delete(filename string) error {
	if !snapshotPattern.MatchString(filename) {
		return fmt.Errorf("invalid snapshot filename")
	}
	if err := os.Remove(filepath.Join(s.dir, filename)); err != nil {
		return fmt.Errorf("removing snapshot: %w", err)
	}
	s.logger.Info("snapshot deleted", slog.String("filename", filename))
	return nil
}

// Prune deletes snapshots beyond the keep count, oldest first.
func (s *Service) Prune() error {
	snaps, err := s.List()
	if err != nil {
		return err
	}
	for _, snap := range snaps[min(s.keep, len(snaps)):] {
		if err := os.Remove(filepath.Join(s.dir, snap.Filename)); err != nil {
			s.logger.Warn("pruning snapshot",
				slog.String("filename", snap.Filename), slog.Any("error", err))
			continue
		}
		s.logger.Info("pruned snapshot", slog.String("filename", snap.Filename))
	}
	return nil
}

// StartScheduler snapshots and prunes on a fixed interval until the
// context is cancelled.
func (s *Service) StartScheduler(ctx context.Context, interval time.Duration) {
	s.logger.Info("backup scheduler started", slog.String("interval", interval.String()))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("backup scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.Snapshot(ctx); err != nil {
				s.logger.Error("scheduled snapshot failed", slog.Any("error", err))
				continue
			}
			if err := s.Prune(); err != nil {
				s.logger.Error("pruning snapshots", slog.Any("error", err))
			}
		}
	}
}
