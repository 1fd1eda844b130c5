package phases

import "github.com/roach88/kforge/internal/ir"

// NodeBudget enforces Options.MaxGraphSize for loop duplication.
//
// Unroll eligibility asks Check before touching the graph; Guarantee runs
// after the rewrite and catches estimates that were too optimistic.
type NodeBudget struct {
	limit int
}

// NewNodeBudget creates a budget with the given graph size limit.
func NewNodeBudget(limit int) *NodeBudget {
	return &NodeBudget{limit: limit}
}

// Limit returns the maximum graph size.
func (b *NodeBudget) Limit() int {
	return b.limit
}

// Remaining returns how many nodes g may still grow by.
func (b *NodeBudget) Remaining(g *ir.Graph) int {
	return b.limit - g.NodeCount()
}

// Check returns BudgetExceededError if adding required nodes to g would
// exceed the limit.
func (b *NodeBudget) Check(g *ir.Graph, loop ir.NodeID, required int) error {
	remaining := b.Remaining(g)
	if required > remaining {
		return &BudgetExceededError{
			Loop:      loop,
			Required:  required,
			Remaining: remaining,
			Limit:     b.limit,
		}
	}
	return nil
}

// Guarantee fails when g already exceeds the limit.
func (b *NodeBudget) Guarantee(g *ir.Graph, loop ir.NodeID) error {
	if g.NodeCount() > b.limit {
		return &BudgetExceededError{
			Loop:      loop,
			Required:  g.NodeCount(),
			Remaining: 0,
			Limit:     b.limit,
		}
	}
	return nil
}
