package interp

import (
	"gonum.org/v1/gonum/floats"

	"github.com/roach88/kforge/internal/ir"
)

// EqualArrays reports whether two arrays hold the same elements, comparing
// floating elements within tol.
func EqualArrays(a, b *ir.Array, tol float64) bool {
	if a.Elem != b.Elem || len(a.Data) != len(b.Data) {
		return false
	}
	if !a.Elem.IsFloat() {
		for i := range a.Data {
			if a.Data[i].Int() != b.Data[i].Int() {
				return false
			}
		}
		return true
	}
	return floats.EqualApprox(a.Floats(), b.Floats(), tol)
}

// CloneArgs deep-copies arrays, objects and atomics so the same inputs can
// drive several executions.
func CloneArgs(args []ir.Argument) []ir.Argument {
	out := make([]ir.Argument, len(args))
	for i, a := range args {
		out[i] = cloneArg(a)
	}
	return out
}

func cloneArg(a ir.Argument) ir.Argument {
	switch a := a.(type) {
	case *ir.Array:
		c := *a
		c.Data = append([]ir.Value(nil), a.Data...)
		return &c
	case *ir.Object:
		c := *a
		c.Lanes = append([]ir.Value(nil), a.Lanes...)
		c.Fields = make([]ir.Field, len(a.Fields))
		for i, f := range a.Fields {
			c.Fields[i] = f
			if f.Ref != nil {
				c.Fields[i].Ref = cloneArg(f.Ref)
			}
		}
		return &c
	case *ir.Atomic:
		c := *a
		return &c
	}
	return a
}
