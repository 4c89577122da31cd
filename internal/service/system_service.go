package service

import (
	"context"
	"database/sql"

	"github.com/fibratrack/fibratrack-backend/internal/database"
	"github.com/fibratrack/fibratrack-backend/internal/version"
)

// SystemService handles system-related operations
type SystemService struct {
	db *sql.DB
}

// NewSystemService creates a new SystemService
func NewSystemService(db *sql.DB) *SystemService {
	return &SystemService{
		db: db,
	}
}

// CheckHealth checks the health of the system
func (s *SystemService) CheckHealth() error {
	return database.HealthCheck(s.db)
}

// VersionInfo carries the application version and the applied schema version.
type VersionInfo struct {
	AppVersion string
	DbVersion  int64
}

// CheckVersion reports the build version and the latest applied migration.
func (s *SystemService) CheckVersion(ctx context.Context) (VersionInfo, error) {
	info := VersionInfo{AppVersion: version.Version}

	err := s.db.QueryRowContext(ctx,
		"SELECT version_id FROM goose_db_version ORDER BY id DESC LIMIT 1",
	).Scan(&info.DbVersion)
	if err != nil {
		return info, err
	}

	return info, nil
}
