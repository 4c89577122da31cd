package model

import "time"

// JobStatus is the lifecycle state of one recalculation job run.
type JobStatus string

const (
	JobRunning JobStatus = "Running"
	JobSuccess JobStatus = "Success"
	JobSkipped JobStatus = "Skipped"
	JobFailed  JobStatus = "Failed"
)

// RecalcReason identifies what triggered a portfolio recalculation. The reason
// is part of the once-per-day idempotency key; ReasonUpload always re-runs
// because a user-initiated replace must reflect immediately.
type RecalcReason string

const (
	ReasonUpload   RecalcReason = "upload"
	ReasonPrice    RecalcReason = "price"
	ReasonDividend RecalcReason = "dividend"
	ReasonSchedule RecalcReason = "schedule"
)

// JobRunRecord is the idempotency/audit record for one recalculation run,
// keyed by (UserID, Reason, ExecutionDate).
type JobRunRecord struct {
	ID                 string
	UserID             string
	Reason             RecalcReason
	ExecutionDate      time.Time // UTC calendar date, midnight
	Status             JobStatus
	PositionsProcessed int
	Duration           time.Duration
	ErrorMessage       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// JobDeadLetterRecord is the terminal-failure audit entry for a recalculation
// job. Append-only; the engine never reads it back.
type JobDeadLetterRecord struct {
	ID           string
	JobID        string
	UserID       string
	Reason       RecalcReason
	ErrorType    string
	ErrorMessage string
	Stack        string
	FailedAt     time.Time
}

// RecalcOutcome reports how a recalculation invocation ended.
type RecalcOutcome string

const (
	RecalcSuccess RecalcOutcome = "Success"
	RecalcSkipped RecalcOutcome = "Skipped"
	RecalcFailed  RecalcOutcome = "Failed"
)
