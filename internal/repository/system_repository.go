package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fibratrack/fibratrack-backend/internal/apperrors"
)

// SystemRepository provides data access methods for the system_setting table,
// a key/value store used for operational state such as the sealed official
// source token and the last reconciliation timestamp.
type SystemRepository struct {
	db *sql.DB
}

// NewSystemRepository creates a new SystemRepository with the provided database connection.
func NewSystemRepository(db *sql.DB) *SystemRepository {
	return &SystemRepository{db: db}
}

// GetSetting returns the value stored under key. Returns
// apperrors.ErrSettingNotFound when the key does not exist.
func (r *SystemRepository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM system_setting WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.ErrSettingNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query system_setting: %w", err)
	}
	return value, nil
}

// SetSetting upserts the value stored under key, stamped with the caller's
// clock reading.
func (r *SystemRepository) SetSetting(ctx context.Context, key, value string, now time.Time) error {
	query := `
		INSERT INTO system_setting (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query, key, value, now.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to set system setting: %w", err)
	}

	return nil
}
