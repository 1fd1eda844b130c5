package backend

import (
	"errors"
	"fmt"

	"github.com/roach88/kforge/internal/ir"
)

// ErrUnregisteredBlock is returned when branching to a block name that was
// never registered in the current scope chain.
var ErrUnregisteredBlock = errors.New("branch to unregistered block")

// UnimplementedError reports an operation a backend cannot lower. It is
// fatal for the compilation.
type UnimplementedError struct {
	// Backend names the emitter.
	Backend string

	// Op is the operation that could not be lowered.
	Op ir.Op

	// Node is the offending node, or ir.NoNode.
	Node ir.NodeID

	// Message adds detail when the op alone is not enough.
	Message string
}

// Error implements the error interface.
func (e *UnimplementedError) Error() string {
	msg := fmt.Sprintf("%s: cannot lower %s", e.Backend, e.Op)
	if e.Node.IsValid() {
		msg += " at " + e.Node.String()
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Unimplemented builds an UnimplementedError for n.
func Unimplemented(backend string, n *ir.Node, format string, args ...any) *UnimplementedError {
	e := &UnimplementedError{Backend: backend, Message: fmt.Sprintf(format, args...)}
	if n != nil {
		e.Op = n.Op()
		e.Node = n.ID()
	}
	return e
}

// IsUnimplemented returns true if the error is an UnimplementedError.
// Uses errors.As to handle wrapped errors.
func IsUnimplemented(err error) bool {
	var ue *UnimplementedError
	return errors.As(err, &ue)
}
