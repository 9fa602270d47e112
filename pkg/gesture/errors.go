package gesture

import (
	"errors"
	"fmt"
)

// Sentinel errors for the gesture package.
var (
	// ErrClassifier is wrapped by every ClassifierError.
	ErrClassifier = errors.New("gesture: classifier failed")

	// ErrNoClasses is returned when model metadata lists no labels.
	ErrNoClasses = errors.New("gesture: metadata has no classes")

	// ErrInvalidMetadata is returned when model metadata is inconsistent.
	ErrInvalidMetadata = errors.New("gesture: invalid metadata")

	// ErrClosed is returned when predicting on a closed adapter.
	ErrClosed = errors.New("gesture: adapter closed")
)

// ClassifierError is an internal classifier fault caught at the adapter
// boundary. Backend and Err are for logs; clients only ever see a generic
// message.
type ClassifierError struct {
	Backend string
	Err     error
	Panic   bool
}

// Error implements the error interface.
func (e *ClassifierError) Error() string {
	if e.Panic {
		return fmt.Sprintf("gesture [%s]: classifier panic: %v", e.Backend, e.Err)
	}
	return fmt.Sprintf("gesture [%s]: %v", e.Backend, e.Err)
}

// Unwrap returns the underlying error.
func (e *ClassifierError) Unwrap() error {
	return e.Err
}

// Is reports ErrClassifier as a match for every ClassifierError.
func (e *ClassifierError) Is(target error) bool {
	return target == ErrClassifier
}

// IsClassifierError reports whether err came from a classifier fault.
func IsClassifierError(err error) bool {
	return errors.Is(err, ErrClassifier)
}
