package apperrors

import "errors"

// Domain entity errors represent missing or invalid entities in the system.
// These errors indicate that a requested resource does not exist.
var (
	// ErrSecurityNotFound indicates that no security exists for the given ticker.
	ErrSecurityNotFound = errors.New("security not found")

	// ErrPriceNotFound indicates that no last-traded price is recorded for a ticker.
	ErrPriceNotFound = errors.New("last price not found")

	// ErrMetricsNotFound indicates that no metrics snapshot has been computed for the investor.
	ErrMetricsNotFound = errors.New("portfolio metrics not found")

	// ErrJobRunNotFound indicates that no job run exists for the idempotency key.
	ErrJobRunNotFound = errors.New("job run not found")

	// ErrSettingNotFound indicates that a system setting key has no value.
	ErrSettingNotFound = errors.New("system setting not found")
)

// Contract errors signal misuse or unsupported capabilities of the port
// contracts consumed by the engine.
var (
	// ErrNoOpenTransaction indicates a write or commit was attempted on a
	// transaction handle that is not open. This is a programming error.
	ErrNoOpenTransaction = errors.New("no open transaction")

	// ErrBatchUnsupported signals that a price catalog does not implement batch
	// lookups. Distinct from a transient batch failure: callers fall back to
	// per-ticker lookups only on this error.
	ErrBatchUnsupported = errors.New("batch price lookup unsupported")

	// ErrQueueFull indicates the recalculation queue cannot accept more work.
	ErrQueueFull = errors.New("recalculation queue full")
)

// Operation failure errors represent system-level failures when retrieving or
// processing data.
var (
	ErrFailedToRetrievePositions = errors.New("failed to retrieve positions")
	ErrFailedToRetrieveMetrics   = errors.New("failed to retrieve portfolio metrics")
)
