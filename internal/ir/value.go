package ir

import (
	"fmt"
	"math"
	"strconv"
)

// Value is a scalar constant: a kind plus 64 raw bits. Values are
// comparable and are used as constant-table keys.
//
// Integer kinds hold the sign- or zero-extended value truncated to the
// kind's width. Floating kinds hold float64 bits, rounded to float32
// precision for half and float.
type Value struct {
	kind Kind
	bits uint64
}

// IntValue creates an integer (or bool) value, wrapping v to the width of k.
func IntValue(k Kind, v int64) Value {
	switch k {
	case KindBool:
		if v != 0 {
			v = 1
		}
	case KindByte:
		v = int64(int8(v))
	case KindShort:
		v = int64(int16(v))
	case KindChar:
		v = int64(uint16(v))
	case KindInt:
		v = int64(int32(v))
	}
	return Value{kind: k, bits: uint64(v)}
}

// FloatValue creates a floating-point value of kind k.
func FloatValue(k Kind, f float64) Value {
	if k == KindFloat || k == KindHalf {
		f = float64(float32(f))
	}
	return Value{kind: k, bits: math.Float64bits(f)}
}

// BoolValue creates a bool value.
func BoolValue(b bool) Value {
	if b {
		return Value{kind: KindBool, bits: 1}
	}
	return Value{kind: KindBool}
}

// Convert returns v reinterpreted numerically as kind k.
func (v Value) Convert(k Kind) Value {
	if k.IsFloat() {
		if v.kind.IsFloat() {
			return FloatValue(k, v.Float())
		}
		return FloatValue(k, float64(v.Int()))
	}
	if v.kind.IsFloat() {
		return IntValue(k, int64(v.Float()))
	}
	return IntValue(k, v.Int())
}

func (v Value) Kind() Kind { return v.kind }

// Int returns the integer payload. Floating values are truncated.
func (v Value) Int() int64 {
	if v.kind.IsFloat() {
		return int64(v.Float())
	}
	return int64(v.bits)
}

// Float returns the floating payload. Integer values are converted.
func (v Value) Float() float64 {
	if v.kind.IsFloat() {
		return math.Float64frombits(v.bits)
	}
	return float64(int64(v.bits))
}

func (v Value) Bool() bool { return v.bits != 0 }

// IsZero reports whether the value is the zero of its kind.
func (v Value) IsZero() bool {
	if v.kind.IsFloat() {
		return v.Float() == 0
	}
	return v.bits == 0
}

// String formats the value without a kind suffix.
func (v Value) String() string {
	switch {
	case v.kind == KindBool:
		return strconv.FormatBool(v.Bool())
	case v.kind.IsFloat():
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	default:
		return strconv.FormatInt(v.Int(), 10)
	}
}

// Fold evaluates op over constant operands. The second result is false
// when the operation cannot be folded (unknown op, integer division by
// zero).
func Fold(op Op, k Kind, x, y Value) (Value, bool) {
	switch op {
	case OpLess:
		if x.kind.IsFloat() {
			return BoolValue(x.Float() < y.Float()), true
		}
		return BoolValue(x.Int() < y.Int()), true
	case OpLessEq:
		if x.kind.IsFloat() {
			return BoolValue(x.Float() <= y.Float()), true
		}
		return BoolValue(x.Int() <= y.Int()), true
	case OpEquals:
		if x.kind.IsFloat() {
			return BoolValue(x.Float() == y.Float()), true
		}
		return BoolValue(x.Int() == y.Int()), true
	}
	if k.IsFloat() {
		a, b := x.Float(), y.Float()
		switch op {
		case OpAdd:
			return FloatValue(k, a+b), true
		case OpSub:
			return FloatValue(k, a-b), true
		case OpMul:
			return FloatValue(k, a*b), true
		case OpDiv:
			return FloatValue(k, a/b), true
		case OpRem:
			return FloatValue(k, math.Mod(a, b)), true
		}
		return Value{}, false
	}
	a, b := x.Int(), y.Int()
	switch op {
	case OpAdd:
		return IntValue(k, a+b), true
	case OpSub:
		return IntValue(k, a-b), true
	case OpMul:
		return IntValue(k, a*b), true
	case OpDiv:
		if b == 0 {
			return Value{}, false
		}
		return IntValue(k, a/b), true
	case OpRem:
		if b == 0 {
			return Value{}, false
		}
		return IntValue(k, a%b), true
	case OpAnd:
		return IntValue(k, a&b), true
	case OpOr:
		return IntValue(k, a|b), true
	case OpXor:
		return IntValue(k, a^b), true
	case OpShl:
		return IntValue(k, a<<uint(b&63)), true
	case OpShr:
		return IntValue(k, a>>uint(b&63)), true
	}
	return Value{}, false
}

// FoldMath evaluates a math intrinsic over constant operands.
func FoldMath(m MathOp, k Kind, args ...Value) (Value, bool) {
	f := func(i int) float64 { return args[i].Float() }
	var r float64
	switch m {
	case MathSqrt:
		r = math.Sqrt(f(0))
	case MathExp:
		r = math.Exp(f(0))
	case MathLog:
		r = math.Log(f(0))
	case MathFabs:
		r = math.Abs(f(0))
	case MathMin:
		if !k.IsFloat() {
			return IntValue(k, min(args[0].Int(), args[1].Int())), true
		}
		r = math.Min(f(0), f(1))
	case MathMax:
		if !k.IsFloat() {
			return IntValue(k, max(args[0].Int(), args[1].Int())), true
		}
		r = math.Max(f(0), f(1))
	case MathFma:
		r = math.FMA(f(0), f(1), f(2))
	default:
		return Value{}, false
	}
	if !k.IsFloat() {
		return Value{}, false
	}
	return FloatValue(k, r), true
}

// MathOp enumerates the math intrinsics carried by OpMath nodes.
type MathOp uint8

const (
	MathNone MathOp = iota
	MathSqrt
	MathExp
	MathLog
	MathFabs
	MathMin
	MathMax
	MathFma
)

var mathNames = [...]string{"none", "sqrt", "exp", "log", "fabs", "min", "max", "fma"}

func (m MathOp) String() string {
	if int(m) < len(mathNames) {
		return mathNames[m]
	}
	return fmt.Sprintf("math(%d)", m)
}

// Arity returns the number of operands the intrinsic takes.
func (m MathOp) Arity() int {
	switch m {
	case MathMin, MathMax:
		return 2
	case MathFma:
		return 3
	}
	return 1
}

// MathByName resolves a math intrinsic name.
func MathByName(name string) (MathOp, bool) {
	for i, n := range mathNames {
		if i > 0 && n == name {
			return MathOp(i), true
		}
	}
	return MathNone, false
}
