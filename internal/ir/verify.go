package ir

import (
	"errors"
	"fmt"
)

// MalformedError reports a structural violation found by Verify.
type MalformedError struct {
	Node    NodeID
	Op      Op
	Message string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed graph at %s (%s): %s", e.Node, e.Op, e.Message)
}

// IsMalformed reports whether err is a MalformedError.
func IsMalformed(err error) bool {
	var me *MalformedError
	return errors.As(err, &me)
}

// Verify checks that the graph is well formed: no dangling edges, every
// end registered with its merge, phi arity equal to merge arity, and loops
// with one forward end and at least one loop end.
func Verify(g *Graph) error {
	fail := func(n *Node, format string, args ...any) error {
		return &MalformedError{Node: n.id, Op: n.op, Message: fmt.Sprintf(format, args...)}
	}
	if g.Start() == nil || g.Start().dead {
		return &MalformedError{Op: OpStart, Message: "graph has no start node"}
	}
	for _, n := range g.Nodes() {
		for i, in := range n.inputs {
			if in.IsValid() && g.Node(in) == nil {
				return fail(n, "input %d references dead node %s", i, in)
			}
		}
		if n.anchor.IsValid() && g.Node(n.anchor) == nil {
			return fail(n, "anchor references dead node %s", n.anchor)
		}
		if n.op == OpPhi {
			m := g.Node(n.anchor)
			if m == nil || (m.op != OpMerge && m.op != OpLoopBegin) {
				return fail(n, "phi is not anchored to a merge")
			}
			if len(n.inputs) != len(m.ends) {
				return fail(n, "phi has %d inputs for %d merge ends", len(n.inputs), len(m.ends))
			}
		}
	}
	for _, n := range g.Reachable() {
		switch n.op {
		case OpIf:
			for i, s := range n.succs {
				sn := g.Node(s)
				if sn == nil {
					return fail(n, "missing successor %d", i)
				}
				if ex := exitThrough(g, s); sn.op != OpBegin && (ex == nil || ex.op != OpLoopExit) {
					return fail(n, "successor %d is %s, want begin or loop_exit", i, sn.op)
				}
				if sn.pred != n.id {
					return fail(sn, "predecessor link does not point back to %s", n.id)
				}
			}
		case OpEnd, OpLoopEnd:
			m := g.Node(n.target)
			if m == nil {
				return fail(n, "end does not flow into a merge")
			}
			registered := false
			for _, e := range m.ends {
				if e == n.id {
					registered = true
				}
			}
			if !registered {
				return fail(n, "end is not registered with %s", m.id)
			}
			if n.op == OpLoopEnd && m.op != OpLoopBegin {
				return fail(n, "loop end targets %s", m.op)
			}
		case OpReturn:
		default:
			next := g.Node(n.next)
			if next == nil {
				return fail(n, "fixed node has no successor")
			}
			if next.pred != n.id {
				return fail(next, "predecessor link does not point back to %s", n.id)
			}
		}
		switch n.op {
		case OpMerge:
			if len(n.ends) == 0 {
				return fail(n, "merge has no ends")
			}
		case OpLoopBegin:
			if len(n.ends) < 2 {
				return fail(n, "loop has %d ends, want a forward end and a loop end", len(n.ends))
			}
			if f := g.Node(n.ends[0]); f == nil || f.op != OpEnd {
				return fail(n, "loop forward end is missing")
			}
			for _, e := range n.ends[1:] {
				if le := g.Node(e); le == nil || le.op != OpLoopEnd {
					return fail(n, "loop back edge %s is not a loop end", e)
				}
			}
		case OpLoopExit, OpPragmaUnroll:
			if l := g.Node(n.anchor); l == nil || l.op != OpLoopBegin {
				return fail(n, "not anchored to a loop")
			}
		}
	}
	return nil
}
