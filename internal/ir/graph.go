package ir

import (
	"fmt"
	"slices"
)

// Graph is an arena of nodes with a single Start node.
//
// A Graph is not safe for concurrent use; one compilation owns it.
type Graph struct {
	// Name is the kernel or function name; it becomes the entry point.
	Name string
	// Params is the declared signature. It outlives parameter nodes that
	// specialization deletes.
	Params []ParamInfo

	nodes  []*Node
	start  NodeID
	live   int
	consts map[Value]NodeID
}

// New creates a graph holding only its Start node.
func New(name string) *Graph {
	g := &Graph{
		Name:   name,
		nodes:  []*Node{nil},
		consts: make(map[Value]NodeID),
	}
	g.start = g.Add(OpStart, KindVoid).id
	return g
}

// Start returns the entry node.
func (g *Graph) Start() *Node { return g.nodes[g.start] }

// Node returns the live node with the given id, or nil.
func (g *Graph) Node(id NodeID) *Node {
	if !id.IsValid() || int(id) >= len(g.nodes) {
		return nil
	}
	n := g.nodes[id]
	if n == nil || n.dead {
		return nil
	}
	return n
}

// Nodes returns all live nodes in id order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, g.live)
	for _, n := range g.nodes[1:] {
		if n != nil && !n.dead {
			out = append(out, n)
		}
	}
	return out
}

// NodesOf returns the live nodes with the given op, in id order.
func (g *Graph) NodesOf(op Op) []*Node {
	var out []*Node
	for _, n := range g.nodes[1:] {
		if n != nil && !n.dead && n.op == op {
			out = append(out, n)
		}
	}
	return out
}

// NodeCount returns the number of live nodes.
func (g *Graph) NodeCount() int { return g.live }

// Mark returns the id the next added node will get. Combined with
// NodesSince it tells whether a sweep produced new nodes.
func (g *Graph) Mark() NodeID { return NodeID(len(g.nodes)) }

// NodesSince counts live nodes created at or after mark.
func (g *Graph) NodesSince(mark NodeID) int {
	count := 0
	for id := int(mark); id < len(g.nodes); id++ {
		if n := g.nodes[id]; n != nil && !n.dead {
			count++
		}
	}
	return count
}

// Add appends a new node.
func (g *Graph) Add(op Op, kind Kind, inputs ...NodeID) *Node {
	n := &Node{id: NodeID(len(g.nodes)), op: op, Kind: kind}
	g.nodes = append(g.nodes, n)
	g.live++
	for _, in := range inputs {
		g.AppendInput(n, in)
	}
	return n
}

// Const returns the unique constant node for v, creating it if needed.
func (g *Graph) Const(v Value) *Node {
	if id, ok := g.consts[v]; ok {
		if n := g.Node(id); n != nil {
			return n
		}
	}
	n := g.Add(OpConst, v.Kind())
	n.Value = v
	g.consts[v] = n.id
	return n
}

// IntConst is shorthand for Const(IntValue(KindInt, v)).
func (g *Graph) IntConst(v int64) *Node { return g.Const(IntValue(KindInt, v)) }

// AppendInput adds a data input to n.
func (g *Graph) AppendInput(n *Node, in NodeID) {
	n.inputs = append(n.inputs, in)
	g.addUse(in, n.id)
}

// SetInput replaces input i of n.
func (g *Graph) SetInput(n *Node, i int, in NodeID) {
	g.removeUse(n.inputs[i], n.id)
	n.inputs[i] = in
	g.addUse(in, n.id)
}

// RemoveInput deletes input i of n, shifting later inputs down.
func (g *Graph) RemoveInput(n *Node, i int) {
	g.removeUse(n.inputs[i], n.id)
	n.inputs = slices.Delete(n.inputs, i, i+1)
}

// SetAnchor associates n with a merge or loop.
func (g *Graph) SetAnchor(n *Node, anchor NodeID) {
	g.removeUse(n.anchor, n.id)
	n.anchor = anchor
	g.addUse(anchor, n.id)
}

func (g *Graph) addUse(of, user NodeID) {
	if n := g.Node(of); n != nil {
		n.uses = append(n.uses, user)
	}
}

func (g *Graph) removeUse(of, user NodeID) {
	n := g.Node(of)
	if n == nil {
		return
	}
	if i := slices.Index(n.uses, user); i >= 0 {
		n.uses = slices.Delete(n.uses, i, i+1)
	}
}

// Usages returns the distinct live nodes that reference id as an input or
// anchor, in first-use order.
func (g *Graph) Usages(id NodeID) []*Node {
	n := g.Node(id)
	if n == nil {
		return nil
	}
	out := make([]*Node, 0, len(n.uses))
	seen := make(map[NodeID]bool, len(n.uses))
	for _, u := range n.uses {
		if seen[u] {
			continue
		}
		seen[u] = true
		if un := g.Node(u); un != nil {
			out = append(out, un)
		}
	}
	return out
}

// HasUsages reports whether any node references id.
func (g *Graph) HasUsages(id NodeID) bool {
	n := g.Node(id)
	return n != nil && len(n.uses) > 0
}

// ReplaceAtUsages redirects every reference to old so it points at repl.
func (g *Graph) ReplaceAtUsages(old, repl NodeID) {
	g.ReplaceAtUsagesIf(old, repl, nil)
}

// ReplaceAtUsagesIf redirects the references to old held by users for
// which keep returns true. A nil keep redirects all of them.
func (g *Graph) ReplaceAtUsagesIf(old, repl NodeID, keep func(user *Node) bool) {
	if old == repl {
		return
	}
	for _, u := range g.Usages(old) {
		if keep != nil && !keep(u) {
			continue
		}
		for i, in := range u.inputs {
			if in == old {
				g.SetInput(u, i, repl)
			}
		}
		if u.anchor == old {
			g.SetAnchor(u, repl)
		}
	}
}

// SetNext sets the control successor of n and the successor's predecessor.
func (g *Graph) SetNext(n *Node, next NodeID) {
	if old := g.Node(n.next); old != nil && old.pred == n.id {
		old.pred = NoNode
	}
	n.next = next
	if nn := g.Node(next); nn != nil {
		nn.pred = n.id
	}
}

// SetSucc sets the true (0) or false (1) successor of an If.
func (g *Graph) SetSucc(n *Node, i int, s NodeID) {
	if old := g.Node(n.succs[i]); old != nil && old.pred == n.id {
		old.pred = NoNode
	}
	n.succs[i] = s
	if sn := g.Node(s); sn != nil {
		sn.pred = n.id
	}
}

// AddEnd registers end as the last incoming edge of merge. Phi inputs are
// not touched; callers append the matching phi values.
func (g *Graph) AddEnd(merge *Node, end NodeID) {
	merge.ends = append(merge.ends, end)
	if e := g.Node(end); e != nil {
		e.target = merge.id
	}
}

// RemoveEnd unregisters end from merge and drops the corresponding input
// of every phi anchored at merge. It returns the removed index or -1.
func (g *Graph) RemoveEnd(merge *Node, end NodeID) int {
	idx := slices.Index(merge.ends, end)
	if idx < 0 {
		return -1
	}
	merge.ends = slices.Delete(merge.ends, idx, idx+1)
	for _, phi := range g.Phis(merge.id) {
		if idx < len(phi.inputs) {
			g.RemoveInput(phi, idx)
		}
	}
	if e := g.Node(end); e != nil && e.target == merge.id {
		e.target = NoNode
	}
	return idx
}

// Phis returns the phis anchored at a merge or loop begin.
func (g *Graph) Phis(merge NodeID) []*Node {
	var out []*Node
	for _, u := range g.Usages(merge) {
		if u.op == OpPhi && u.anchor == merge {
			out = append(out, u)
		}
	}
	return out
}

// ReplaceSuccessor rewires whichever control slot of pred points at old.
func (g *Graph) ReplaceSuccessor(pred, old, repl NodeID) {
	p := g.Node(pred)
	if p == nil {
		panic(fmt.Sprintf("ir: %s has no predecessor to rewire", old))
	}
	switch {
	case p.next == old:
		g.SetNext(p, repl)
	case p.succs[0] == old:
		g.SetSucc(p, 0, repl)
	case p.succs[1] == old:
		g.SetSucc(p, 1, repl)
	default:
		panic(fmt.Sprintf("ir: %s is not a successor of %s", old, pred))
	}
}

// InsertAfter links n directly after the fixed node at.
func (g *Graph) InsertAfter(at, n *Node) {
	next := at.next
	g.SetNext(at, n.id)
	g.SetNext(n, next)
}

// InsertBefore links n directly before the fixed node at, taking over the
// control slot that pointed at at.
func (g *Graph) InsertBefore(at, n *Node) {
	g.ReplaceSuccessor(at.pred, at.id, n.id)
	g.SetNext(n, at.id)
}

// ReplaceFixed puts repl into the control slot of old, moves all usages of
// old to repl and deletes old.
func (g *Graph) ReplaceFixed(old, repl *Node) {
	next := old.next
	g.SetNext(old, NoNode)
	g.ReplaceSuccessor(old.pred, old.id, repl.id)
	g.SetNext(repl, next)
	g.ReplaceAtUsages(old.id, repl.id)
	g.Delete(old)
}

// RemoveFixed unlinks a fixed node from the control chain and deletes it.
// The node must have no usages left.
func (g *Graph) RemoveFixed(n *Node) {
	next := n.next
	g.SetNext(n, NoNode)
	g.ReplaceSuccessor(n.pred, n.id, next)
	g.Delete(n)
}

// Delete removes n from the arena. It panics if n is still used.
func (g *Graph) Delete(n *Node) {
	if n.dead {
		return
	}
	if len(n.uses) > 0 {
		panic(fmt.Sprintf("ir: delete %s with %d usages", n, len(n.uses)))
	}
	g.kill(n)
}

// kill removes n regardless of usages. Callers must ensure users die too.
func (g *Graph) kill(n *Node) {
	for _, in := range n.inputs {
		g.removeUse(in, n.id)
	}
	g.removeUse(n.anchor, n.id)
	if nn := g.Node(n.next); nn != nil && nn.pred == n.id {
		nn.pred = NoNode
	}
	for _, s := range n.succs {
		if sn := g.Node(s); sn != nil && sn.pred == n.id {
			sn.pred = NoNode
		}
	}
	if n.op == OpConst {
		if id, ok := g.consts[n.Value]; ok && id == n.id {
			delete(g.consts, n.Value)
		}
	}
	n.inputs, n.uses, n.ends = nil, nil, nil
	n.next, n.succs, n.anchor, n.target, n.pred = NoNode, [2]NodeID{}, NoNode, NoNode, NoNode
	n.dead = true
	g.live--
}

// Successors returns the control successors of a fixed node.
func (g *Graph) Successors(n *Node) []NodeID {
	switch n.op {
	case OpIf:
		return []NodeID{n.succs[0], n.succs[1]}
	case OpEnd, OpLoopEnd:
		if n.target.IsValid() {
			return []NodeID{n.target}
		}
		return nil
	}
	if n.next.IsValid() {
		return []NodeID{n.next}
	}
	return nil
}

// Reachable returns the fixed nodes reachable from Start in depth-first
// control order.
func (g *Graph) Reachable() []*Node {
	seen := make(map[NodeID]bool)
	var order []*Node
	stack := []NodeID{g.start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := g.Node(id)
		if n == nil || seen[id] {
			continue
		}
		seen[id] = true
		order = append(order, n)
		succ := g.Successors(n)
		for i := len(succ) - 1; i >= 0; i-- {
			stack = append(stack, succ[i])
		}
	}
	return order
}

// Copy returns a deep copy of g. Node ids are preserved.
func (g *Graph) Copy() *Graph {
	c := &Graph{
		Name:   g.Name,
		Params: slices.Clone(g.Params),
		nodes:  make([]*Node, len(g.nodes)),
		start:  g.start,
		live:   g.live,
		consts: make(map[Value]NodeID, len(g.consts)),
	}
	for i, n := range g.nodes {
		if n == nil {
			continue
		}
		cp := *n
		cp.inputs = slices.Clone(n.inputs)
		cp.uses = slices.Clone(n.uses)
		cp.ends = slices.Clone(n.ends)
		c.nodes[i] = &cp
	}
	for v, id := range g.consts {
		c.consts[v] = id
	}
	return c
}
