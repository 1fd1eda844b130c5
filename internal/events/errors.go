package events

import (
	"errors"
	"fmt"
)

// ResourceExhaustedError is returned by Register when every slot of the
// window is retained, or the window is full and not circular.
type ResourceExhaustedError struct {
	Retained int
	Capacity int
}

// Error implements the error interface.
func (e *ResourceExhaustedError) Error() string {
	return fmt.Sprintf("event window is full (retained=%d, capacity=%d)", e.Retained, e.Capacity)
}

// IsResourceExhausted returns true if the error is a ResourceExhaustedError.
// Uses errors.As to handle wrapped errors.
func IsResourceExhausted(err error) bool {
	var re *ResourceExhaustedError
	return errors.As(err, &re)
}
