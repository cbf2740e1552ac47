package schedule

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrRuleNotFound       = errors.New("recurrence rule not found")
	ErrOccurrenceNotFound = errors.New("occurrence not found")
	ErrVersionConflict    = errors.New("version conflict")

	// ErrNoOccurrences is a validation error: the rule's weekday/date
	// window produces zero slots, so the caller must be told instead of
	// silently storing an empty series.
	ErrNoOccurrences = fmt.Errorf("%w: rule produces no occurrences", ErrValidation)
)
