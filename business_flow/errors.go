// Package businessflow contains the core business logic for pricing and experimentation
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Not-found errors
	ErrSiteNotFound       = errors.New("site not found")
	ErrUnitNotFound       = errors.New("unit not found")
	ErrAdjustmentNotFound = errors.New("adjustment not found")
	ErrExperimentNotFound = errors.New("experiment not found")

	// Price validation errors
	ErrInvalidTrigger        = errors.New("invalid adjustment trigger")
	ErrTriggerDetailsMissing = errors.New("trigger details are missing or do not match the trigger")
	ErrNonPositivePrice      = errors.New("resulting price must be greater than zero")
	ErrUnitNotAvailable      = errors.New("unit is not available for pricing")
	ErrTargetPriceRequired   = errors.New("target price is required for manual adjustments")

	// Revert errors
	ErrAlreadyReverted    = errors.New("adjustment is already reverted")
	ErrRevertWindowPassed = errors.New("adjustment is outside the revert window")

	// Experiment validation errors
	ErrVariantCountOutOfRange     = errors.New("experiment must have between 2 and 4 variants")
	ErrVariantWeightSumInvalid    = errors.New("variant weights must sum to 100")
	ErrVariantWeightOutOfRange    = errors.New("variant weight must be between 0 and 100")
	ErrVariantModifierOutOfRange  = errors.New("variant price modifier must be between -50 and 50")
	ErrVariantModifierTypeInvalid = errors.New("variant modifier type must be percentage or fixed")
	ErrVariantNameRequired        = errors.New("variant name is required and must be unique")
	ErrTrafficPercentageInvalid   = errors.New("traffic percentage must be between 0 and 100")
	ErrConfidenceLevelInvalid     = errors.New("confidence level must be 90, 95 or 99")
	ErrDurationInvalid            = errors.New("duration must be at least 1 day")
	ErrMinSampleSizeInvalid       = errors.New("minimum sample size must be at least 1")
	ErrVisitorKeyRequired         = errors.New("visitor key is required")

	// Experiment state errors
	ErrInvalidStateTransition = errors.New("invalid experiment state transition")
	ErrExperimentNotRunning   = errors.New("experiment is not running")

	// Analysis errors
	ErrNoUnitsInCategory      = errors.New("no available units in category")
	ErrNoCompetitorData       = errors.New("no recent competitor prices in category")
	ErrInvalidForecastHorizon = errors.New("forecast horizon must be between 1 and 24 months")
	ErrInvalidBaseScore       = errors.New("base demand score must be between 0 and 100")

	// Filter errors
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
	ErrInvalidTimestamp      = errors.New("timestamp must be RFC3339")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// validationSentinels groups the errors rejected before any mutation
var validationSentinels = []error{
	ErrInvalidTrigger,
	ErrTriggerDetailsMissing,
	ErrNonPositivePrice,
	ErrUnitNotAvailable,
	ErrTargetPriceRequired,
	ErrAlreadyReverted,
	ErrRevertWindowPassed,
	ErrVariantCountOutOfRange,
	ErrVariantWeightSumInvalid,
	ErrVariantWeightOutOfRange,
	ErrVariantModifierOutOfRange,
	ErrVariantModifierTypeInvalid,
	ErrVariantNameRequired,
	ErrTrafficPercentageInvalid,
	ErrConfidenceLevelInvalid,
	ErrDurationInvalid,
	ErrMinSampleSizeInvalid,
	ErrVisitorKeyRequired,
	ErrInvalidForecastHorizon,
	ErrInvalidBaseScore,
	ErrStartDateAfterEndDate,
	ErrInvalidTimestamp,
}

// IsValidationError reports whether err belongs to the validation taxonomy
func IsValidationError(err error) bool {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// IsNotFoundError reports whether err belongs to the not-found taxonomy
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrSiteNotFound) ||
		errors.Is(err, ErrUnitNotFound) ||
		errors.Is(err, ErrAdjustmentNotFound) ||
		errors.Is(err, ErrExperimentNotFound)
}

// IsConflictError reports whether err belongs to the conflict taxonomy
func IsConflictError(err error) bool {
	return errors.Is(err, ErrInvalidStateTransition) ||
		errors.Is(err, ErrExperimentNotRunning) ||
		errors.Is(err, ErrAlreadyReverted) ||
		errors.Is(err, ErrRevertWindowPassed)
}

func IsUnitNotFound(err error) bool {
	return errors.Is(err, ErrUnitNotFound)
}

func IsSiteNotFound(err error) bool {
	return errors.Is(err, ErrSiteNotFound)
}

func IsExperimentNotFound(err error) bool {
	return errors.Is(err, ErrExperimentNotFound)
}

func IsAdjustmentNotFound(err error) bool {
	return errors.Is(err, ErrAdjustmentNotFound)
}

func IsAlreadyReverted(err error) bool {
	return errors.Is(err, ErrAlreadyReverted)
}

func IsRevertWindowPassed(err error) bool {
	return errors.Is(err, ErrRevertWindowPassed)
}

func IsInvalidStateTransition(err error) bool {
	return errors.Is(err, ErrInvalidStateTransition)
}

func IsExperimentNotRunning(err error) bool {
	return errors.Is(err, ErrExperimentNotRunning)
}

func IsNoCompetitorData(err error) bool {
	return errors.Is(err, ErrNoCompetitorData)
}

func IsNoUnitsInCategory(err error) bool {
	return errors.Is(err, ErrNoUnitsInCategory)
}
