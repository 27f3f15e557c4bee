package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField marks correlation or catalog data that lacks a required field.
	ErrMissingField = errors.New("missing field")
	// ErrInsufficientHistory marks a window that does not fit the available series.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrFit marks degenerate training data the classifier cannot be fit on.
	ErrFit = errors.New("fit failed")
	// ErrInvalidRequest marks caller input that fails validation.
	ErrInvalidRequest = errors.New("invalid request")
)

// MissingFieldError names the field absent from the correlation matrix or timeline.
type MissingFieldError struct {
	Field string
	Where string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field %s in %s", e.Field, e.Where)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }

// InsufficientHistoryError reports the window parameters that could not be satisfied.
type InsufficientHistoryError struct {
	Offset  int
	Horizon int
	Length  int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history: start offset %d days with horizon %d over %d entries", e.Offset, e.Horizon, e.Length)
}

func (e *InsufficientHistoryError) Is(target error) bool { return target == ErrInsufficientHistory }

// FitError wraps a classifier or scaler failure on the training subset.
type FitError struct {
	Reason string
	Err    error
}

func (e *FitError) Error() string {
	if e.Err == nil {
		return "fit failed: " + e.Reason
	}
	return fmt.Sprintf("fit failed: %s: %v", e.Reason, e.Err)
}

func (e *FitError) Unwrap() error { return e.Err }

func (e *FitError) Is(target error) bool { return target == ErrFit }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
