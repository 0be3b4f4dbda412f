package lettrage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("lettrage: not found")
	ErrAlreadyExists = errors.New("lettrage: already exists")
	ErrInvalidInput  = errors.New("lettrage: invalid input")
	ErrInvalidRange  = errors.New("lettrage: invalid date range")

	// Line errors
	ErrLineNotFound = errors.New("lettrage: ledger line not found")

	// Match errors
	ErrMatchNotFound     = errors.New("lettrage: match not found")
	ErrStaleMatch        = errors.New("lettrage: stale match")
	ErrInvalidTransition = errors.New("lettrage: invalid match status transition")

	// Strategy errors
	ErrStrategyNotFound = errors.New("lettrage: matching strategy not found")

	// Store errors
	ErrStoreNotReady     = errors.New("lettrage: store not ready")
	ErrStoreClosed       = errors.New("lettrage: store is closed")
	ErrTransactionFailed = errors.New("lettrage: transaction failed")
	ErrMigrationFailed   = errors.New("lettrage: migration failed")
)

// StaleMatchError reports an approval that lost a race: a member line was
// lettered after the suggestion was produced, or the suggestion itself was
// already approved. Nothing was written. Callers should re-run matching
// instead of retrying the same match.
type StaleMatchError struct {
	MatchID string
	LineIDs []string
	// Codes maps each already-lettered member line to its lettrage code.
	Codes map[string]string
	// AlreadyApproved is set when the match itself had been approved before.
	AlreadyApproved bool
}

func (e *StaleMatchError) Error() string {
	if e.AlreadyApproved {
		return fmt.Sprintf("lettrage: stale match %s: already approved", e.MatchID)
	}

	lettered := make([]string, 0, len(e.Codes))
	for lineID, code := range e.Codes {
		lettered = append(lettered, lineID+"="+code)
	}
	sort.Strings(lettered)

	return fmt.Sprintf("lettrage: stale match %s: lines already lettered: %s",
		e.MatchID, strings.Join(lettered, ", "))
}

// Is makes errors.Is(err, ErrStaleMatch) hold for every StaleMatchError.
func (e *StaleMatchError) Is(target error) bool {
	return target == ErrStaleMatch
}

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("lettrage: validation failed for %s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrInvalidInput) hold for validation failures.
func (e ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "lettrage: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("lettrage: %d errors occurred (first: %v)", len(e.Errors), e.Errors[0])
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error {
	return e.Errors
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrLineNotFound) ||
		errors.Is(err, ErrMatchNotFound) ||
		errors.Is(err, ErrStrategyNotFound)
}

// IsStale returns true if an approval failed because of concurrent lettering.
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleMatch)
}

// IsRetryable returns true if the error is temporary and the operation can be
// retried as is. A stale match is not retryable: matching must run again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}
