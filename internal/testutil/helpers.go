package testutil

import (
	"database/sql"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fibratrack/fibratrack-backend/internal/repository"
	"github.com/fibratrack/fibratrack-backend/internal/service"
)

// TestClock is the pinned instant used by the services built here. Tests that
// care about time read it back through service.FixedClock.
var TestClock = service.FixedClock{Now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}

// NewTestRecalcService creates a RecalcService backed by the given database,
// with the security repository as price/yield catalog and a fixed clock.
func NewTestRecalcService(t *testing.T, db *sql.DB) *service.RecalcService {
	t.Helper()

	portfolioRepo := repository.NewPortfolioRepository(db)
	securityRepo := repository.NewSecurityRepository(db)

	return service.NewRecalcService(portfolioRepo, securityRepo, TestClock)
}

// NewTestRecalcServiceWithCatalog creates a RecalcService over a caller-built
// catalog, for exercising price-resolution behavior.
func NewTestRecalcServiceWithCatalog(t *testing.T, db *sql.DB, catalog service.SecurityCatalog) *service.RecalcService {
	t.Helper()

	return service.NewRecalcService(repository.NewPortfolioRepository(db), catalog, TestClock)
}

// NewTestReconcileService creates a ReconcileService with the given official
// source stub and a recording scheduler. Returns the scheduler so tests can
// assert on enqueued recalculations.
func NewTestReconcileService(t *testing.T, db *sql.DB, source service.OfficialDistributionSource) (*service.ReconcileService, *MockScheduler) {
	t.Helper()

	distributionRepo := repository.NewDistributionRepository(db)
	portfolioRepo := repository.NewPortfolioRepository(db)
	securityRepo := repository.NewSecurityRepository(db)
	scheduler := &MockScheduler{}

	svc := service.NewReconcileService(
		distributionRepo,
		portfolioRepo,
		source,
		securityRepo,
		scheduler,
		TestClock,
	)
	return svc, scheduler
}

// NewTestCatalogService creates a CatalogService with a recording scheduler.
// Returns the scheduler so tests can assert on the price-update fan-out.
func NewTestCatalogService(t *testing.T, db *sql.DB) (*service.CatalogService, *MockScheduler) {
	t.Helper()

	securityRepo := repository.NewSecurityRepository(db)
	portfolioRepo := repository.NewPortfolioRepository(db)
	scheduler := &MockScheduler{}

	svc := service.NewCatalogService(securityRepo, portfolioRepo, scheduler, TestClock)
	return svc, scheduler
}

// NewTestImportService creates an ImportService with a recording scheduler.
func NewTestImportService(t *testing.T, db *sql.DB) (*service.ImportService, *MockScheduler) {
	t.Helper()

	distributionRepo := repository.NewDistributionRepository(db)
	portfolioRepo := repository.NewPortfolioRepository(db)
	scheduler := &MockScheduler{}

	svc := service.NewImportService(distributionRepo, portfolioRepo, scheduler, TestClock)
	return svc, scheduler
}

func NewTestSystemService(t *testing.T, db *sql.DB) *service.SystemService {
	t.Helper()

	return service.NewSystemService(db)
}

// MakeID generates a UUID string for use in tests.
//
// Example usage:
//
//	id := testutil.MakeID()
//	// Returns: "550e8400-e29b-41d4-a716-446655440000"
func MakeID() string {
	return uuid.New().String()
}

// MakeTicker generates a FIBRA-style ticker for testing.
//
// Example usage:
//
//	ticker := testutil.MakeTicker()
//	// Returns: "FIBA1B2C11"
func MakeTicker() string {
	return "FIB" + randomAlphanumeric(4) + "11"
}

// randomAlphanumeric generates a random alphanumeric string of specified length.
func randomAlphanumeric(length int) string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		//nolint:gosec // G404: Using math/rand for test data generation is acceptable
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
