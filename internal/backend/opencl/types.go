package opencl

import (
	"math"
	"strconv"
	"strings"

	"github.com/roach88/kforge/internal/ir"
)

var scalarTypes = map[ir.Kind]string{
	ir.KindVoid:   "void",
	ir.KindBool:   "bool",
	ir.KindByte:   "char",
	ir.KindChar:   "ushort",
	ir.KindShort:  "short",
	ir.KindInt:    "int",
	ir.KindLong:   "long",
	ir.KindHalf:   "half",
	ir.KindFloat:  "float",
	ir.KindDouble: "double",
	ir.KindObject: "__global uchar *",
}

var prefixes = map[ir.Kind]string{
	ir.KindBool:   "z",
	ir.KindByte:   "b",
	ir.KindChar:   "c",
	ir.KindShort:  "s",
	ir.KindInt:    "i",
	ir.KindLong:   "l",
	ir.KindHalf:   "h",
	ir.KindFloat:  "f",
	ir.KindDouble: "d",
	ir.KindObject: "ul",
}

// typeName returns the OpenCL C spelling of k.
func typeName(k ir.Kind) (string, bool) {
	if k.IsVector() {
		base, ok := scalarTypes[k.Elem()]
		return base + strconv.Itoa(k.Lanes()), ok
	}
	t, ok := scalarTypes[k]
	return t, ok
}

func prefix(k ir.Kind) string {
	if k.IsVector() {
		return prefixes[k.Elem()] + strconv.Itoa(k.Lanes())
	}
	if p, ok := prefixes[k]; ok {
		return p
	}
	return "v"
}

// literal renders a constant.
func literal(v ir.Value) string {
	k := v.Kind()
	switch {
	case k == ir.KindBool:
		return strconv.FormatBool(v.Bool())
	case k == ir.KindLong:
		return strconv.FormatInt(v.Int(), 10) + "L"
	case k.IsFloat():
		f := v.Float()
		switch {
		case math.IsNaN(f):
			return "NAN"
		case math.IsInf(f, 1):
			return "INFINITY"
		case math.IsInf(f, -1):
			return "(-INFINITY)"
		}
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		switch k {
		case ir.KindFloat:
			return s + "F"
		case ir.KindHalf:
			return "(half) " + s
		}
		return s
	}
	return strconv.FormatInt(v.Int(), 10)
}

var binaryOps = map[ir.Op]string{
	ir.OpAdd:    "+",
	ir.OpSub:    "-",
	ir.OpMul:    "*",
	ir.OpDiv:    "/",
	ir.OpRem:    "%",
	ir.OpAnd:    "&",
	ir.OpOr:     "|",
	ir.OpXor:    "^",
	ir.OpShl:    "<<",
	ir.OpShr:    ">>",
	ir.OpLess:   "<",
	ir.OpLessEq: "<=",
	ir.OpEquals: "==",
}

// mathName returns the builtin for m on operands of kind k.
func mathName(m ir.MathOp, k ir.Kind) (string, bool) {
	float := k.IsFloat()
	switch m {
	case ir.MathSqrt, ir.MathExp, ir.MathLog, ir.MathFma:
		return m.String(), float
	case ir.MathFabs:
		if float {
			return "fabs", true
		}
		return "abs", true
	case ir.MathMin:
		if float {
			return "fmin", true
		}
		return "min", true
	case ir.MathMax:
		if float {
			return "fmax", true
		}
		return "max", true
	}
	return "", false
}

var threadBuiltins = map[ir.Op]string{
	ir.OpGlobalID:   "get_global_id",
	ir.OpLocalID:    "get_local_id",
	ir.OpGroupSize:  "get_local_size",
	ir.OpGlobalSize: "get_global_size",
}

// ident makes s usable as a C identifier.
func ident(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
