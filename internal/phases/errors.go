package phases

import (
	"errors"
	"fmt"

	"github.com/roach88/kforge/internal/ir"
)

// UnimplementedError reports a construct a pass cannot handle. It is fatal
// for the compilation.
type UnimplementedError struct {
	// Pass names the pass that gave up.
	Pass string

	// Node is the offending node, or ir.NoNode.
	Node ir.NodeID

	// Op is the offending operation.
	Op ir.Op

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *UnimplementedError) Error() string {
	if e.Node.IsValid() {
		return fmt.Sprintf("%s: unimplemented %s at %s: %s", e.Pass, e.Op, e.Node, e.Message)
	}
	return fmt.Sprintf("%s: unimplemented: %s", e.Pass, e.Message)
}

func unimplemented(pass string, n *ir.Node, format string, args ...any) *UnimplementedError {
	e := &UnimplementedError{Pass: pass, Message: fmt.Sprintf(format, args...)}
	if n != nil {
		e.Node = n.ID()
		e.Op = n.Op()
	}
	return e
}

// IsUnimplemented returns true if the error is an UnimplementedError.
// Uses errors.As to handle wrapped errors.
func IsUnimplemented(err error) bool {
	var ue *UnimplementedError
	return errors.As(err, &ue)
}

// BudgetExceededError is returned when duplicating a loop would grow the
// graph past Options.MaxGraphSize.
type BudgetExceededError struct {
	Loop      ir.NodeID // LoopBegin of the rejected loop
	Required  int       // nodes the transformation would add
	Remaining int       // nodes left under the limit
	Limit     int
}

// Error implements the error interface.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("loop %s exceeds node budget: %d nodes required > %d remaining (limit %d)",
		e.Loop, e.Required, e.Remaining, e.Limit)
}

// IsBudgetExceeded returns true if the error is a BudgetExceededError.
// Uses errors.As to handle wrapped errors.
func IsBudgetExceeded(err error) bool {
	var be *BudgetExceededError
	return errors.As(err, &be)
}
