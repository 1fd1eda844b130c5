package backend

import (
	"github.com/roach88/kforge/internal/ir"
)

// Program tracks the callees reached from an entry point. Callees are
// registered on their first call and lowered after the entry point in
// registration order.
type Program struct {
	available map[string]*ir.Graph
	order     []*ir.Graph
	seen      map[string]bool
}

// NewProgram creates a program whose calls may target any of callees.
func NewProgram(entry *ir.Graph, callees []*ir.Graph) *Program {
	p := &Program{available: make(map[string]*ir.Graph, len(callees)), seen: map[string]bool{entry.Name: true}}
	for _, c := range callees {
		p.available[c.Name] = c
	}
	return p
}

// Resolve implements CallResolver and registers name on first use.
func (p *Program) Resolve(name string) (*ir.Graph, bool) {
	g, ok := p.available[name]
	if !ok {
		return nil, false
	}
	if !p.seen[name] {
		p.seen[name] = true
		p.order = append(p.order, g)
	}
	return g, true
}

// Lower walks entry and then every callee it reaches. newLowerer returns
// the lowerer for one function.
func (p *Program) Lower(backend string, entry Function, newLowerer func(Function) Lowerer) ([]string, error) {
	names := []string{entry.Graph.Name}
	if err := Walk(backend, entry, newLowerer(entry), p); err != nil {
		return nil, err
	}
	for i := 0; i < len(p.order); i++ {
		fn := Function{Graph: p.order[i]}
		if err := Walk(backend, fn, newLowerer(fn), p); err != nil {
			return nil, err
		}
		names = append(names, fn.Graph.Name)
	}
	return names, nil
}
