package interp

import (
	"github.com/roach88/kforge/internal/ir"
)

// eval computes a data value. Fixed nodes and phis read their current
// value; floating nodes are recomputed from their inputs on every use.
func (f *frame) eval(id ir.NodeID) (value, error) {
	n := f.g.Node(id)
	if n == nil {
		return value{}, &TrapError{Node: id, Message: "use of missing node"}
	}
	if n.Op().IsFixed() || n.Op() == ir.OpPhi {
		v, ok := f.fixed[id]
		if !ok {
			return value{}, trap(n, "value used before definition")
		}
		return v, nil
	}

	switch n.Op() {
	case ir.OpParam:
		if n.Index < 0 || n.Index >= len(f.args) {
			return value{}, trap(n, "missing argument %d (%s)", n.Index, n.Name)
		}
		return f.args[n.Index], nil
	case ir.OpConst:
		return value{scalar: n.Value}, nil
	case ir.OpPi:
		return f.eval(n.Input(0))
	case ir.OpNot:
		x, err := f.eval(n.Input(0))
		if err != nil {
			return value{}, err
		}
		return value{scalar: ir.BoolValue(!x.scalar.Bool())}, nil
	case ir.OpConditional:
		c, err := f.eval(n.Input(0))
		if err != nil {
			return value{}, err
		}
		if c.scalar.Bool() {
			return f.eval(n.Input(1))
		}
		return f.eval(n.Input(2))
	case ir.OpConvert:
		x, err := f.eval(n.Input(0))
		if err != nil {
			return value{}, err
		}
		return value{scalar: x.scalar.Convert(n.Kind)}, nil
	case ir.OpMath:
		args := make([]ir.Value, len(n.Inputs()))
		for i, in := range n.Inputs() {
			x, err := f.eval(in)
			if err != nil {
				return value{}, err
			}
			args[i] = x.scalar
		}
		v, ok := ir.FoldMath(n.Math, n.Kind, args...)
		if !ok {
			return value{}, trap(n, "cannot evaluate %s on %s", n.Math, n.Kind)
		}
		return value{scalar: v}, nil
	case ir.OpArrayLength:
		a, err := f.eval(n.Input(0))
		if err != nil {
			return value{}, err
		}
		if a.array == nil {
			return value{}, trap(n, "length of non-array")
		}
		return value{scalar: ir.IntValue(ir.KindInt, int64(len(a.array.Data)))}, nil
	case ir.OpIsNull:
		a, err := f.eval(n.Input(0))
		if err != nil {
			return value{}, err
		}
		return value{scalar: ir.BoolValue(a.null)}, nil
	case ir.OpAtomicCounter:
		return f.eval(n.Input(0))
	case ir.OpVectorValue:
		return f.eval(n.Input(0))
	case ir.OpVectorElem, ir.OpVectorElemProxy:
		vec, err := f.eval(n.Input(0))
		if err != nil {
			return value{}, err
		}
		if vec.object == nil || n.Index < 0 || n.Index >= len(vec.object.Lanes) {
			return value{}, trap(n, "vector lane %d out of range", n.Index)
		}
		return value{scalar: vec.object.Lanes[n.Index]}, nil
	case ir.OpNewArray:
		if a, ok := f.arrays[id]; ok {
			return value{array: a}, nil
		}
		l, err := f.eval(n.Input(0))
		if err != nil {
			return value{}, err
		}
		a := ir.ZeroArray(n.Elem, int(l.scalar.Int()))
		f.arrays[id] = a
		return value{array: a}, nil
	}

	if n.Op().IsBinary() {
		x, err := f.eval(n.Input(0))
		if err != nil {
			return value{}, err
		}
		y, err := f.eval(n.Input(1))
		if err != nil {
			return value{}, err
		}
		v, ok := ir.Fold(n.Op(), n.Kind, x.scalar, y.scalar)
		if !ok {
			return value{}, trap(n, "cannot evaluate %s %s %s", x.scalar, n.Op(), y.scalar)
		}
		return value{scalar: v}, nil
	}
	return value{}, trap(n, "cannot evaluate")
}
