package interp

import (
	"github.com/roach88/kforge/internal/ir"
)

// value is a runtime value: a scalar or a reference.
type value struct {
	scalar ir.Value
	array  *ir.Array
	object *ir.Object
	atomic *ir.Atomic
	null   bool
}

func fromArgument(a ir.Argument) value {
	switch a := a.(type) {
	case ir.Scalar:
		return value{scalar: a.Value}
	case *ir.Array:
		return value{array: a}
	case *ir.Object:
		return value{object: a}
	case *ir.Atomic:
		return value{atomic: a}
	}
	return value{null: true}
}

func (v value) isRef() bool {
	return v.array != nil || v.object != nil || v.atomic != nil || v.null
}
