package issue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const issueColumns = `id, show_id, episode_id, file_id, category, summary, detail,
	status, created_at, updated_at, resolved_at`

// Service provides issue data operations.
type Service struct {
	db *sql.DB
}

// NewService creates an issue service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Create inserts a new open issue.
func (s *Service) Create(ctx context.Context, is *Issue) error {
	if is.Summary == "" {
		return fmt.Errorf("issue summary is required")
	}
	if is.Category == "" {
		is.Category = CategoryOther
	}
	if is.ShowID == "" && is.EpisodeID == "" && is.FileID == "" {
		return fmt.Errorf("issue must reference a show, episode or file")
	}

	if is.ID == "" {
		is.ID = uuid.New().String()
	}
	is.Status = StatusOpen
	now := time.Now().UTC()
	is.CreatedAt = now
	is.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO issues (id, show_id, episode_id, file_id, category, summary, detail,
			status, created_at, updated_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`,
		is.ID, nullable(is.ShowID), nullable(is.EpisodeID), nullable(is.FileID),
		is.Category, is.Summary, is.Detail, is.Status,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating issue: %w", err)
	}
	return nil
}

// GetByID retrieves an issue by primary key.
func (s *Service) GetByID(ctx context.Context, id string) (*Issue, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id)
	is, err := scanIssue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("issue not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting issue: %w", err)
	}
	return is, nil
}

// List returns issues, optionally filtered by status, newest first.
func (s *Service) List(ctx context.Context, status string) ([]Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var issues []Issue
	for rows.Next() {
		is, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning issue row: %w", err)
		}
		issues = append(issues, *is)
	}
	return issues, rows.Err()
}

// Resolve marks an issue resolved. Resolving twice is a no-op.
func (s *Service) Resolve(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, `
		UPDATE issues SET status = ?, resolved_at = ?, updated_at = ?
		WHERE id = ? AND status != ?
	`, StatusResolved, now, now, id, StatusResolved)
	if err != nil {
		return fmt.Errorf("resolving issue: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		// Either missing or already resolved; distinguish for the caller.
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes an issue.
func (s *Service) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM issues WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting issue: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("issue not found: %s", id)
	}
	return nil
}

// CountOpen returns the number of open issues, for dashboards.
func (s *Service) CountOpen(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM issues WHERE status = ?`, StatusOpen).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting open issues: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (*Issue, error) {
	var is Issue
	var showID, episodeID, fileID, resolvedAt sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&is.ID, &showID, &episodeID, &fileID, &is.Category, &is.Summary,
		&is.Detail, &is.Status, &createdAt, &updatedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	is.ShowID = showID.String
	is.EpisodeID = episodeID.String
	is.FileID = fileID.String
	is.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	is.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if resolvedAt.Valid && resolvedAt.String != "" {
		if t, err := time.Parse(time.RFC3339, resolvedAt.String); err == nil {
			is.ResolvedAt = &t
		}
	}
	return &is, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
