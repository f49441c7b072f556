package domain

import (
	"errors"
	"fmt"
)

// DomainError marks an invalid numeric input to a closed-form computation
// (zero volatility, negative strike, zero variance where division is
// required). It is always surfaced to the caller; computations never swallow
// it into zeroed results.
type DomainError struct {
	Op     string
	Reason string
}

// NewDomainError builds a DomainError for the given operation.
func NewDomainError(op, reason string) *DomainError {
	return &DomainError{Op: op, Reason: reason}
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// IsDomainError reports whether err is (or wraps) a DomainError.
func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// InsufficientDataError marks a statistical operation invoked with fewer
// observations than it minimally requires. This is distinct from a valid
// empty result (an empty chain analysis, a no-op rebalance plan), which is
// returned normally.
type InsufficientDataError struct {
	Op   string
	Need int
	Got  int
}

// NewInsufficientDataError builds an InsufficientDataError.
func NewInsufficientDataError(op string, need, got int) *InsufficientDataError {
	return &InsufficientDataError{Op: op, Need: need, Got: got}
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: need at least %d data points, got %d", e.Op, e.Need, e.Got)
}

// IsInsufficientData reports whether err is (or wraps) an
// InsufficientDataError.
func IsInsufficientData(err error) bool {
	var ie *InsufficientDataError
	return errors.As(err, &ie)
}
