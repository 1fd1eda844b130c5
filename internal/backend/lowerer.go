package backend

import (
	"github.com/roach88/kforge/internal/ir"
)

// Operand is the backend handle of a value. Resident operands name
// storage (a variable) that must be read before the value can be used.
type Operand struct {
	Handle   string
	Kind     ir.Kind
	Resident bool
}

// IsZero reports whether o is the empty operand of a void statement.
func (o Operand) IsZero() bool { return o.Handle == "" }

// Function describes the function being lowered.
type Function struct {
	Graph *ir.Graph

	// Kernel is true for the entry point.
	Kernel bool

	// ThreadConfig is the required work-group shape, nil when the graph
	// carries no ThreadConfig marker.
	ThreadConfig *[3]int
}

// Lowerer receives a function from the walker in program order.
//
// Values, statements and copies return operands the walker memoizes in the
// current block scope. If, Else and EndIf bracket a two-way region. Loop
// opens a loop whose header code follows; LoopCondition leaves the loop
// when cond is false; EndLoop closes the back edge.
type Lowerer interface {
	// Begin opens the function and returns one operand per g.Params entry.
	Begin(fn Function) ([]Operand, error)
	DeclarePhi(phi *ir.Node) (Operand, error)
	Value(n *ir.Node, in []Operand) (Operand, error)
	Statement(n *ir.Node, in []Operand) (Operand, error)
	Copy(v Operand) (Operand, error)
	Move(dst, src Operand) error

	If(cond Operand) error
	Else() error
	EndIf() error

	Loop(begin *ir.Node, unroll int) error
	LoopCondition(cond Operand) error
	EndLoop() error

	// Return ends control flow; v is nil for void returns.
	Return(v *Operand) error
	End() error
}

// Options control lowering choices shared by the backends.
type Options struct {
	// ReturnLabel routes every return through one canonical return block
	// registered when the function begins.
	ReturnLabel bool

	// ImplicitContext prefixes every direct call with the kernel context
	// and heap pointer pair.
	ImplicitContext bool
}

// Module is the emitted code of an entry point and its callees.
type Module struct {
	Backend    string
	EntryPoint string
	// Functions lists the emitted functions, entry point first.
	Functions []string
	Source    []byte
}
