package playback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service provides playback-test log operations.
type Service struct {
	db *sql.DB
}

// NewService creates a playback service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Record inserts a playback test result.
func (s *Service) Record(ctx context.Context, pt *Test) error {
	if pt.FileID == "" {
		return fmt.Errorf("playback test requires a file id")
	}
	if pt.Player == "" {
		return fmt.Errorf("playback test requires a player name")
	}
	if pt.Result != ResultPass && pt.Result != ResultFail {
		return fmt.Errorf("playback result must be %q or %q", ResultPass, ResultFail)
	}

	if pt.ID == "" {
		pt.ID = uuid.New().String()
	}
	if pt.TestedAt.IsZero() {
		pt.TestedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO playback_tests (id, file_id, player, result, notes, tested_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, pt.ID, pt.FileID, pt.Player, pt.Result, pt.Notes, pt.TestedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording playback test: %w", err)
	}
	return nil
}

// ListByFile returns a file's playback tests, newest first.
func (s *Service) ListByFile(ctx context.Context, fileID string) ([]Test, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_id, player, result, notes, tested_at
		FROM playback_tests WHERE file_id = ? ORDER BY tested_at DESC
	`, fileID)
	if err != nil {
		return nil, fmt.Errorf("listing playback tests: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var tests []Test
	for rows.Next() {
		var pt Test
		var testedAt string
		if err := rows.Scan(&pt.ID, &pt.FileID, &pt.Player, &pt.Result, &pt.Notes, &testedAt); err != nil {
			return nil, fmt.Errorf("scanning playback row: %w", err)
		}
		pt.TestedAt, _ = time.Parse(time.RFC3339, testedAt)
		tests = append(tests, pt)
	}
	return tests, rows.Err()
}

// Latest returns the most recent test for a file, or nil when none exist.
func (s *Service) Latest(ctx context.Context, fileID string) (*Test, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, file_id, player, result, notes, tested_at
		FROM playback_tests WHERE file_id = ? ORDER BY tested_at DESC LIMIT 1
	`, fileID)

	var pt Test
	var testedAt string
	err := row.Scan(&pt.ID, &pt.FileID, &pt.Player, &pt.Result, &pt.Notes, &testedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest playback test: %w", err)
	}
	pt.TestedAt, _ = time.Parse(time.RFC3339, testedAt)
	return &pt, nil
}

// Delete removes a playback test entry.
func (s *Service) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM playback_tests WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting playback test: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("playback test not found: %s", id)
	}
	return nil
}
