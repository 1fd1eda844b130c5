package phases

import (
	"fmt"

	"github.com/roach88/kforge/internal/device"
	"github.com/roach88/kforge/internal/ir"
)

// Pass is one graph transformation.
type Pass interface {
	Name() string
	Run(g *ir.Graph, pc *Context) error
}

// Pipeline is an ordered list of passes.
type Pipeline struct {
	passes []Pass
}

// NewPipeline creates a pipeline running passes in order.
func NewPipeline(passes ...Pass) *Pipeline {
	return &Pipeline{passes: passes}
}

// ForDevice returns the standard pipeline for a device class. Thread
// configuration is only scheduled for accelerators.
func ForDevice(class device.Class) *Pipeline {
	passes := []Pass{
		IntrinsicLowering{},
		AtomicSpecialization{},
		VectorMaterialization{},
		TaskSpecialization{},
		FullUnroll{},
		PartialUnroll{},
	}
	if class.IsAccelerator() {
		passes = append(passes, ThreadConfiguration{})
	}
	passes = append(passes, Canonicalization{}, DeadCode{})
	return NewPipeline(passes...)
}

// ForCallee returns the pipeline for device-side functions called from a
// kernel. Callees never carry thread configuration.
func ForCallee() *Pipeline {
	return NewPipeline(
		IntrinsicLowering{},
		AtomicSpecialization{},
		VectorMaterialization{},
		TaskSpecialization{},
		FullUnroll{},
		PartialUnroll{},
		Canonicalization{},
		DeadCode{},
	)
}

// Passes returns the pass names in order.
func (p *Pipeline) Passes() []string {
	names := make([]string, len(p.passes))
	for i, pass := range p.passes {
		names[i] = pass.Name()
	}
	return names
}

// Run applies every pass to g.
func (p *Pipeline) Run(g *ir.Graph, pc *Context) error {
	log := pc.logger()
	rep := pc.report()
	for _, pass := range p.passes {
		before := g.NodeCount()
		if err := pass.Run(g, pc); err != nil {
			return fmt.Errorf("%s: %w", pass.Name(), err)
		}
		if pc.Options.VerifyEachPass {
			if err := ir.Verify(g); err != nil {
				return fmt.Errorf("after %s: %w", pass.Name(), err)
			}
		}
		rep.Passes = append(rep.Passes, PassStat{Name: pass.Name(), NodesBefore: before, NodesAfter: g.NodeCount()})
		log.Debug("pass finished", "pass", pass.Name(), "graph", g.Name, "before", before, "after", g.NodeCount())
	}
	return nil
}

// Canonicalization runs ir.Canonicalize.
type Canonicalization struct{}

func (Canonicalization) Name() string { return "canonicalize" }

func (Canonicalization) Run(g *ir.Graph, _ *Context) error {
	ir.Canonicalize(g)
	return nil
}

// DeadCode runs ir.DeadCodeElimination.
type DeadCode struct{}

func (DeadCode) Name() string { return "dce" }

func (DeadCode) Run(g *ir.Graph, _ *Context) error {
	ir.DeadCodeElimination(g)
	return nil
}
