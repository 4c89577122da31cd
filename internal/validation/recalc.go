package validation

import (
	"fmt"

	"github.com/fibratrack/fibratrack-backend/internal/model"
)

// ErrInvalidReason is returned for unknown recalculation reasons.
var ErrInvalidReason = fmt.Errorf("invalid recalculation reason")

// ValidateRecalcReason checks that a reason string is one of the known
// recalculation triggers.
func ValidateRecalcReason(reason string) error {
	switch model.RecalcReason(reason) {
	case model.ReasonUpload, model.ReasonPrice, model.ReasonDividend, model.ReasonSchedule:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidReason, reason)
	}
}
