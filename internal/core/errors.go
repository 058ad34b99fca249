package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrWeekNotEnded = errors.New("week has not ended")
)

// ValidationError reports bad input. Nothing was written.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %v", e.Err)
	}
	return fmt.Sprintf("validation: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid is a shorthand for building a *ValidationError.
func Invalid(field string, format string, args ...any) error {
	return &ValidationError{Field: field, Err: fmt.Errorf(format, args...)}
}

// StorageError wraps a failure of the underlying store. The operation
// that failed was rolled back.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NoTargetWeekError is returned when closing a week whose successor does
// not exist yet. The rollover flag stays unset so the close can be retried
// once the next paycheck creates the week.
type NoTargetWeekError struct {
	WeekNumber int64
	TargetWeek int64
}

func (e *NoTargetWeekError) Error() string {
	return fmt.Sprintf("cannot close week %d: target week %d does not exist", e.WeekNumber, e.TargetWeek)
}

// ConsistencyError lists the ledger defects found by an audit.
type ConsistencyError struct {
	Entity EntityType
	ID     int64
	Issues []string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s %d inconsistent: %s", e.Entity, e.ID, strings.Join(e.Issues, "; "))
}
