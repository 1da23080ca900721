// Package settings provides typed access to the persisted key/value settings
// table. Values are stored as strings; callers use the typed helpers.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Well-known setting keys.
const (
	KeyTaskCeiling      = "tasks.max_concurrent"
	KeyLogLevel         = "logging.level"
	KeyLogFormat        = "logging.format"
	KeyScanOnStart      = "scanner.scan_on_start"
	KeyWatcherEnabled   = "scanner.fs_watch"
	KeyMetadataInterval = "metadata.refresh_interval_hours"
)

// Service reads and writes application settings.
type Service struct {
	db *sql.DB
}

// NewService creates a settings service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Get returns the raw string value for key, or fallback if unset.
func (s *Service) Get(ctx context.Context, key, fallback string) string {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if err != nil || v == "" {
		return fallback
	}
	return v
}

// GetInt returns the integer value for key, or fallback if unset or invalid.
func (s *Service) GetInt(ctx context.Context, key string, fallback int) int {
	v := s.Get(ctx, key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// GetBool returns the boolean value for key, or fallback if unset.
func (s *Service) GetBool(ctx context.Context, key string, fallback bool) bool {
	v := s.Get(ctx, key, "")
	if v == "" {
		return fallback
	}
	return v == "true" || v == "1"
}

// Set stores a value, replacing any existing one.
func (s *Service) Set(ctx context.Context, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, now)
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// SetInt stores an integer value.
func (s *Service) SetInt(ctx context.Context, key string, value int) error {
	return s.Set(ctx, key, strconv.Itoa(value))
}

// Delete removes a setting. Missing keys are not an error.
func (s *Service) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}
