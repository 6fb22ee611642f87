package landmark

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the detection backends.
var (
	// ErrModelNotFound is returned when a model file is missing at startup.
	ErrModelNotFound = errors.New("landmark: model not found")

	// ErrWorkerClosed is returned when the detector has been closed or its
	// worker process exited.
	ErrWorkerClosed = errors.New("landmark: worker closed")

	// ErrInvalidThreshold is returned for confidence values outside 0-1.
	ErrInvalidThreshold = errors.New("landmark: confidence threshold must be between 0 and 1")
)

// BackendError wraps an error with the name of the backend that produced it.
type BackendError struct {
	Backend string
	Err     error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("landmark [%s]: %v", e.Backend, e.Err)
}

// Unwrap returns the underlying error.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// WrapError wraps err with backend context. A nil err stays nil.
func WrapError(backend string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Backend: backend, Err: err}
}
