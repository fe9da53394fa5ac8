package crm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrStorageUnavailable is returned when the durable store cannot be
	// read or written.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrNotFound is returned when an edit or delete references a missing id.
	ErrNotFound = errors.New("not found")
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrSimulatedTransient matches every *TransientError.
	ErrSimulatedTransient = errors.New("simulated transient failure")
	// ErrPartialConversion matches every *PartialConversionError.
	ErrPartialConversion = errors.New("partial conversion")
)

// ValidationError reports per-field problems. Nothing is written when it is
// returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TransientError is the simulated remote failure on the save path.
// Committed is true when the local write had already happened and was kept,
// so a caller that retries is re-applying an edit that is already stored.
type TransientError struct {
	Op        string
	Committed bool
}

func (e *TransientError) Error() string {
	if e.Committed {
		return fmt.Sprintf("%s: simulated network error - please try again (local write kept)", e.Op)
	}
	return fmt.Sprintf("%s: simulated network error - please try again", e.Op)
}

func (e *TransientError) Is(target error) bool {
	return target == ErrSimulatedTransient
}

// PartialConversionError means the opportunity was appended but the lead
// could not be removed and the append could not be undone: both records now
// exist.
type PartialConversionError struct {
	LeadID int
	Cause  error
}

func (e *PartialConversionError) Error() string {
	return fmt.Sprintf("lead %d converted to opportunity but lead was not removed: %v", e.LeadID, e.Cause)
}

func (e *PartialConversionError) Is(target error) bool {
	return target == ErrPartialConversion
}

func (e *PartialConversionError) Unwrap() error {
	return e.Cause
}
