package scanner

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store persists scan run summaries.
type Store struct {
	db *sql.DB
}

// NewStore creates a scan store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Begin inserts a running scan record and returns its id.
func (s *Store) Begin(ctx context.Context, scanType string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scans (id, scan_type, status, started_at)
		VALUES (?, ?, ?, ?)
	`, id, scanType, ScanRunning, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("recording scan start: %w", err)
	}
	return id, nil
}

// Finish writes the terminal status and counters for a scan, once.
func (s *Store) Finish(ctx context.Context, rec *ScanRecord) error {
	errsJSON, err := json.Marshal(rec.Errors)
	if err != nil {
		return fmt.Errorf("encoding scan errors: %w", err)
	}
	completedAt := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		UPDATE scans
		SET status = ?, completed_at = ?, files_scanned = ?, files_added = ?,
		    files_updated = ?, files_deleted = ?, errors = ?
		WHERE id = ? AND completed_at IS NULL
	`, rec.Status, completedAt.Format(time.RFC3339), rec.FilesScanned, rec.FilesAdded,
		rec.FilesUpdated, rec.FilesDeleted, string(errsJSON), rec.ID)
	if err != nil {
		return fmt.Errorf("recording scan result: %w", err)
	}
	return nil
}

const scanColumns = `id, scan_type, status, started_at, completed_at,
	files_scanned, files_added, files_updated, files_deleted, errors`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*ScanRecord, error) {
	var rec ScanRecord
	var startedAt string
	var completedAt sql.NullString
	var errsJSON string
	err := row.Scan(&rec.ID, &rec.ScanType, &rec.Status, &startedAt, &completedAt,
		&rec.FilesScanned, &rec.FilesAdded, &rec.FilesUpdated, &rec.FilesDeleted, &errsJSON)
	if err != nil {
		return nil, err
	}
	rec.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	if completedAt.Valid {
		at, err := time.Parse(time.RFC3339, completedAt.String)
		if err == nil {
			rec.CompletedAt = &at
		}
	}
	if err := json.Unmarshal([]byte(errsJSON), &rec.Errors); err != nil {
		rec.Errors = nil
	}
	return &rec, nil
}

// Get returns one scan record, or nil when not found.
func (s *Store) Get(ctx context.Context, id string) (*ScanRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting scan: %w", err)
	}
	return rec, nil
}

// List returns scan records, newest first, up to limit.
func (s *Store) List(ctx context.Context, limit int) ([]ScanRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+scanColumns+` FROM scans ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var recs []ScanRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning scan row: %w", err)
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}
