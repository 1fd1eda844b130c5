package phases

import "github.com/roach88/kforge/internal/ir"

type intrinsic struct {
	op    ir.Op
	space ir.MemorySpace
}

var intrinsics = map[string]intrinsic{
	"localBarrier":  {op: ir.OpBarrier, space: ir.SpaceLocal},
	"globalBarrier": {op: ir.OpBarrier, space: ir.SpaceGlobal},
	"getLocalId":    {op: ir.OpLocalID},
	"getGlobalId":   {op: ir.OpGlobalID},
	"getGroupSize":  {op: ir.OpGroupSize},
	"getGlobalSize": {op: ir.OpGlobalSize},
}

// IsIntrinsic reports whether calls to target are lowered by
// IntrinsicLowering.
func IsIntrinsic(target string) bool {
	_, ok := intrinsics[target]
	return ok
}

// IntrinsicLowering replaces calls to barrier and thread-identity
// intrinsics by the matching fixed nodes in the same control slot.
type IntrinsicLowering struct{}

func (IntrinsicLowering) Name() string { return "intrinsics" }

func (p IntrinsicLowering) Run(g *ir.Graph, pc *Context) error {
	for _, call := range g.NodesOf(ir.OpCall) {
		in, ok := intrinsics[call.Name]
		if !ok {
			continue
		}
		var repl *ir.Node
		if in.op == ir.OpBarrier {
			repl = g.Add(ir.OpBarrier, ir.KindVoid)
			repl.Space = in.space
		} else {
			dim := g.Node(call.Input(0))
			if dim == nil || !dim.IsConst() {
				return unimplemented(p.Name(), call, "%s requires a constant dimension", call.Name)
			}
			d := int(dim.Value.Int())
			if d < 0 || d > 2 {
				return unimplemented(p.Name(), call, "%s dimension %d out of range", call.Name, d)
			}
			repl = g.Add(in.op, ir.KindInt)
			repl.Index = d
		}
		g.ReplaceFixed(call, repl)
		pc.report().IntrinsicsLowered++
		pc.logger().Debug("lowered intrinsic", "target", call.Name, "node", repl.ID())
	}
	return nil
}
