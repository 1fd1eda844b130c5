package interp

import (
	"errors"
	"fmt"

	"github.com/roach88/kforge/internal/ir"
)

// TrapError reports a runtime fault: out-of-bounds access, division by
// zero, a failed guard or a malformed value.
type TrapError struct {
	Node    ir.NodeID
	Op      ir.Op
	Message string
}

// Error implements the error interface.
func (e *TrapError) Error() string {
	return fmt.Sprintf("trap at %s (%s): %s", e.Node, e.Op, e.Message)
}

// IsTrap returns true if the error is a TrapError.
// Uses errors.As to handle wrapped errors.
func IsTrap(err error) bool {
	var te *TrapError
	return errors.As(err, &te)
}

func trap(n *ir.Node, format string, args ...any) *TrapError {
	return &TrapError{Node: n.ID(), Op: n.Op(), Message: fmt.Sprintf(format, args...)}
}

// StepLimitError is returned when execution exceeds the step limit.
type StepLimitError struct {
	Graph string
	Limit int
}

// Error implements the error interface.
func (e *StepLimitError) Error() string {
	return fmt.Sprintf("%s exceeded %d interpreter steps", e.Graph, e.Limit)
}

// IsStepLimit returns true if the error is a StepLimitError.
func IsStepLimit(err error) bool {
	var se *StepLimitError
	return errors.As(err, &se)
}
