package ir

import (
	"fmt"
	"strings"
)

// NodeID addresses a node in its graph's arena. The zero value means "no
// node".
type NodeID int32

// NoNode is the invalid node id.
const NoNode NodeID = 0

// IsValid reports whether id refers to an arena slot.
func (id NodeID) IsValid() bool { return id > 0 }

func (id NodeID) String() string { return fmt.Sprintf("n%d", id) }

// Node is one vertex of a Graph.
//
// Edges are unexported and only change through Graph methods, which keep
// the reverse-use index and predecessor links consistent. Payload fields
// are plain data and may be set directly.
//
// Input layout by op:
//
//	Return        [value?]
//	If, Guard     [cond]
//	Load          [array, index]
//	Store         [array, index, value]
//	LoadField     [object]
//	Call          [args...]
//	AtomicInteger [init]
//	AtomicAdd     [counter, delta]
//	VectorStore   [vector, value]
//	Phi           [value per merge end], anchored to its merge
//	binary ops    [x, y]
//	Conditional   [cond, a, b]
//	Math          [args...]
//	others        [operand]
type Node struct {
	id NodeID
	op Op

	inputs []NodeID
	anchor NodeID
	next   NodeID
	succs  [2]NodeID
	ends   []NodeID
	target NodeID
	pred   NodeID
	uses   []NodeID
	dead   bool

	// Kind is the kind of the value the node produces (KindVoid for
	// statements, KindObject for array and object references).
	Kind Kind
	// Elem is the element kind of array references and array accesses.
	Elem Kind
	// Value is the literal of a Const node.
	Value Value
	// Index is the parameter index, dimension or vector lane.
	Index int
	// Name is the call target, field name, parameter name or intrinsic.
	Name string
	// TypeName is the declared type of object parameters.
	TypeName string
	// Space classifies array references and barriers.
	Space MemorySpace
	Math  MathOp
	// Dims carries thread-configuration group sizes.
	Dims [3]int
	// Factor is the pragma unroll factor.
	Factor int
	// NeedsLoad marks vector values that must be loaded from their backing
	// parameter before use.
	NeedsLoad bool
	// Final marks fields loaded from immutable storage.
	Final bool
}

func (n *Node) ID() NodeID { return n.id }
func (n *Node) Op() Op     { return n.op }

// Inputs returns the data inputs. The slice must not be modified.
func (n *Node) Inputs() []NodeID { return n.inputs }

// Input returns input i or NoNode when out of range.
func (n *Node) Input(i int) NodeID {
	if i < 0 || i >= len(n.inputs) {
		return NoNode
	}
	return n.inputs[i]
}

// Anchor returns the merge or loop this node is associated with.
func (n *Node) Anchor() NodeID { return n.anchor }

// Next returns the control successor of a fixed node.
func (n *Node) Next() NodeID { return n.next }

// Succ returns the true (0) or false (1) successor of an If.
func (n *Node) Succ(i int) NodeID { return n.succs[i] }

// Ends returns the incoming ends of a Merge or LoopBegin. For a LoopBegin,
// Ends()[0] is the forward end and the rest are loop ends.
func (n *Node) Ends() []NodeID { return n.ends }

// Target returns the Merge or LoopBegin an End or LoopEnd flows into.
func (n *Node) Target() NodeID { return n.target }

// Pred returns the control predecessor, NoNode for merges and Start.
func (n *Node) Pred() NodeID { return n.pred }

// IsDead reports whether the node was deleted from its graph.
func (n *Node) IsDead() bool { return n.dead }

// IsConst reports whether n is a constant node.
func (n *Node) IsConst() bool { return n.op == OpConst }

// String renders a compact description used in logs and errors.
func (n *Node) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%s", n.id, n.op)
	switch n.op {
	case OpConst:
		fmt.Fprintf(&b, "(%s:%s)", n.Value, n.Kind)
	case OpParam, OpCall, OpLoadField:
		fmt.Fprintf(&b, "(%s)", n.Name)
	}
	if len(n.inputs) > 0 {
		b.WriteString(" ")
		for i, in := range n.inputs {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "%d", in)
		}
	}
	return b.String()
}

// ParamInfo describes one declared kernel parameter.
type ParamInfo struct {
	Name     string
	Kind     Kind
	Elem     Kind
	TypeName string
	Space    MemorySpace
}

// IsArray reports whether the parameter is an array reference.
func (p ParamInfo) IsArray() bool {
	return p.Kind == KindObject && p.Elem != KindIllegal && p.TypeName == ""
}
