package spirv

import (
	"fmt"

	"github.com/roach88/kforge/internal/backend"
	"github.com/roach88/kforge/internal/ir"
)

type opcodes struct{ signed, unsigned, float, logical string }

var binaryOps = map[ir.Op]opcodes{
	ir.OpAdd:    {"OpIAdd", "OpIAdd", "OpFAdd", ""},
	ir.OpSub:    {"OpISub", "OpISub", "OpFSub", ""},
	ir.OpMul:    {"OpIMul", "OpIMul", "OpFMul", ""},
	ir.OpDiv:    {"OpSDiv", "OpUDiv", "OpFDiv", ""},
	ir.OpRem:    {"OpSRem", "OpUMod", "OpFRem", ""},
	ir.OpAnd:    {"OpBitwiseAnd", "OpBitwiseAnd", "", "OpLogicalAnd"},
	ir.OpOr:     {"OpBitwiseOr", "OpBitwiseOr", "", "OpLogicalOr"},
	ir.OpXor:    {"OpBitwiseXor", "OpBitwiseXor", "", "OpLogicalNotEqual"},
	ir.OpShl:    {"OpShiftLeftLogical", "OpShiftLeftLogical", "", ""},
	ir.OpShr:    {"OpShiftRightArithmetic", "OpShiftRightLogical", "", ""},
	ir.OpLess:   {"OpSLessThan", "OpULessThan", "OpFOrdLessThan", ""},
	ir.OpLessEq: {"OpSLessThanEqual", "OpULessThanEqual", "OpFOrdLessThanEqual", ""},
	ir.OpEquals: {"OpIEqual", "OpIEqual", "OpFOrdEqual", "OpLogicalEqual"},
}

func (o opcodes) pick(k ir.Kind) string {
	switch {
	case k == ir.KindBool:
		return o.logical
	case k.IsFloat():
		return o.float
	case k.IsSigned():
		return o.signed
	}
	return o.unsigned
}

// extName returns the OpenCL.std instruction for m on operands of kind k.
func extName(m ir.MathOp, k ir.Kind) (string, bool) {
	float := k.IsFloat()
	switch m {
	case ir.MathSqrt, ir.MathExp, ir.MathLog, ir.MathFma:
		return m.String(), float
	case ir.MathFabs:
		if float {
			return "fabs", true
		}
		return "s_abs", true
	case ir.MathMin:
		if float {
			return "fmin", true
		}
		return "s_min", true
	case ir.MathMax:
		if float {
			return "fmax", true
		}
		return "s_max", true
	}
	return "", false
}

func (f *function) Value(n *ir.Node, in []backend.Operand) (backend.Operand, error) {
	value := func(id string) (backend.Operand, error) {
		return backend.Operand{Handle: id, Kind: n.Kind}, nil
	}
	op := n.Op()
	if op == ir.OpConst {
		id, err := f.m.constant(n)
		if err != nil {
			return backend.Operand{}, err
		}
		return value(id)
	}
	switch op {
	case ir.OpAtomicCounter:
		return in[0], nil
	case ir.OpArrayLength:
		length, ok := f.lengths[in[0].Handle]
		if !ok {
			return backend.Operand{}, f.unimplemented(n, "length of %s is unknown", in[0].Handle)
		}
		return length, nil
	case ir.OpNewArray:
		return f.newArray(n)
	case ir.OpVectorValue:
		if !n.NeedsLoad {
			return in[0], nil
		}
		return f.vectorLoad(n, in[0])
	}

	t, err := f.typeOf(n, n.Kind)
	if err != nil {
		return backend.Operand{}, err
	}
	if codes, ok := binaryOps[op]; ok {
		code := codes.pick(in[0].Kind)
		if code == "" {
			return backend.Operand{}, f.unimplemented(n, "on %s", in[0].Kind)
		}
		args := f.loadAll(in)
		return value(f.inst("%s %s %s %s", code, t, args[0], args[1]))
	}
	switch op {
	case ir.OpNot:
		code := "OpNot"
		if n.Kind == ir.KindBool {
			code = "OpLogicalNot"
		}
		return value(f.inst("%s %s %s", code, t, f.load(in[0])))
	case ir.OpConditional:
		args := f.loadAll(in)
		return value(f.inst("OpSelect %s %s %s %s", t, args[0], args[1], args[2]))
	case ir.OpMath:
		name, ok := extName(n.Math, n.Kind)
		if !ok {
			return backend.Operand{}, f.unimplemented(n, "%s on %s", n.Math, n.Kind)
		}
		return value(f.inst("OpExtInst %s %s %s %s", t, f.m.ext, name, join(f.loadAll(in))))
	case ir.OpConvert:
		return f.convert(n, t, in[0])
	case ir.OpIsNull:
		long, _ := f.m.typeOf(ir.KindLong)
		u := f.inst("OpConvertPtrToU %s %s", long, f.load(in[0]))
		return value(f.inst("OpIEqual %s %s %s", t, u, f.m.intConst(64, 0)))
	case ir.OpVectorElem:
		return value(f.inst("OpCompositeExtract %s %s %d", t, f.load(in[0]), n.Index))
	}
	return backend.Operand{}, f.unimplemented(n, "")
}

func (f *function) convert(n *ir.Node, t string, in backend.Operand) (backend.Operand, error) {
	from, to := in.Kind, n.Kind
	x := f.load(in)
	var id string
	switch {
	case from == to:
		return in, nil
	case from == ir.KindBool && to.IsInteger():
		id = f.inst("OpSelect %s %s %s %s", t, x, f.m.intConst(to.Size()*8, 1), f.m.intConst(to.Size()*8, 0))
	case from.IsInteger() && to.IsFloat():
		code := "OpConvertSToF"
		if !from.IsSigned() {
			code = "OpConvertUToF"
		}
		id = f.inst("%s %s %s", code, t, x)
	case from.IsFloat() && to.IsInteger():
		id = f.inst("OpConvertFToS %s %s", t, x)
	case from.IsInteger() && to.IsInteger():
		if from.Size() == to.Size() {
			return backend.Operand{Handle: x, Kind: to}, nil
		}
		code := "OpSConvert"
		if !from.IsSigned() {
			code = "OpUConvert"
		}
		id = f.inst("%s %s %s", code, t, x)
	case from.IsFloat() && to.IsFloat() && !from.IsVector() && !to.IsVector():
		id = f.inst("OpFConvert %s %s", t, x)
	default:
		return backend.Operand{}, f.unimplemented(n, "conversion from %s to %s", from, to)
	}
	return backend.Operand{Handle: id, Kind: to}, nil
}

func (f *function) newArray(n *ir.Node) (backend.Operand, error) {
	length := f.g.Node(n.Input(0))
	if length == nil || !length.IsConst() || length.Value.Int() <= 0 {
		return backend.Operand{}, f.unimplemented(n, "array length must be a positive constant")
	}
	elem, err := f.typeOf(n, n.Elem)
	if err != nil {
		return backend.Operand{}, err
	}
	arr := f.m.array(elem, length.Value.Int())
	var id string
	storage := storageFunction
	if n.Space == ir.SpaceLocal {
		storage = storageWorkgroup
		id = f.m.global(f.m.pointer(storage, arr), storage)
	} else {
		id = f.variable(arr)
	}
	f.arrays[id] = array{storage: storage, elem: n.Elem, aggregate: true}
	f.lengths[id] = backend.Operand{Handle: f.m.intConst(32, length.Value.Int()), Kind: ir.KindInt}
	return backend.Operand{Handle: id, Kind: ir.KindObject}, nil
}

func (f *function) vectorLoad(n *ir.Node, base backend.Operand) (backend.Operand, error) {
	t, err := f.typeOf(n, n.Kind)
	if err != nil {
		return backend.Operand{}, err
	}
	loaded := f.inst("OpExtInst %s %s vloadn %s %s %d", t, f.m.ext, f.m.intConst(64, 0), f.load(base), n.Kind.Lanes())
	v := f.variable(t)
	f.op("OpStore %s %s", v, loaded)
	f.backing[v] = base.Handle
	return backend.Operand{Handle: v, Kind: n.Kind, Resident: true}, nil
}

// element returns a pointer to arr[idx].
func (f *function) element(n *ir.Node, arr, idx backend.Operand) (string, error) {
	a, ok := f.arrays[arr.Handle]
	if !ok {
		return "", f.unimplemented(n, "%s is not an array", arr.Handle)
	}
	elem, err := f.typeOf(n, a.elem)
	if err != nil {
		return "", err
	}
	ptr := f.m.pointer(a.storage, elem)
	i := f.load(idx)
	if a.aggregate {
		return f.inst("OpInBoundsAccessChain %s %s %s", ptr, arr.Handle, i), nil
	}
	return f.inst("OpInBoundsPtrAccessChain %s %s %s", ptr, f.load(arr), i), nil
}

func (f *function) Statement(n *ir.Node, in []backend.Operand) (backend.Operand, error) {
	switch n.Op() {
	case ir.OpLoad:
		ptr, err := f.element(n, in[0], in[1])
		if err != nil {
			return backend.Operand{}, err
		}
		t, err := f.typeOf(n, n.Kind)
		if err != nil {
			return backend.Operand{}, err
		}
		return backend.Operand{Handle: f.inst("OpLoad %s %s", t, ptr), Kind: n.Kind}, nil
	case ir.OpStore:
		ptr, err := f.element(n, in[0], in[1])
		if err != nil {
			return backend.Operand{}, err
		}
		f.op("OpStore %s %s", ptr, f.load(in[2]))
		return backend.Operand{}, nil
	case ir.OpBarrier:
		sem := semanticsGlobal
		if n.Space == ir.SpaceLocal {
			sem = semanticsLocal
		}
		scope := f.m.intConst(32, scopeWorkgroup)
		f.op("OpControlBarrier %s %s %s", scope, scope, f.m.intConst(32, int64(sem)))
		return backend.Operand{}, nil
	case ir.OpGlobalID, ir.OpLocalID, ir.OpGroupSize, ir.OpGlobalSize:
		return f.threadID(n)
	case ir.OpCall:
		return f.call(n, in)
	case ir.OpAtomicInteger:
		if !f.fn.Kernel {
			return backend.Operand{}, f.unimplemented(n, "atomic integers are only allocated by kernels")
		}
		i32, _ := f.m.typeOf(ir.KindInt)
		id := f.m.global(f.m.pointer(storageWorkgroup, i32), storageWorkgroup)
		f.op("OpStore %s %s", id, f.load(in[0]))
		f.pointers[id] = pointer{id: id, scope: scopeWorkgroup}
		return backend.Operand{Handle: id, Kind: ir.KindInt}, nil
	case ir.OpAtomicAdd:
		return f.atomicAdd(n, in)
	case ir.OpVectorStore:
		return backend.Operand{}, f.vectorStore(n, in)
	}
	return backend.Operand{}, f.unimplemented(n, "")
}

func (f *function) threadID(n *ir.Node) (backend.Operand, error) {
	v := f.m.builtin(n.Op())
	long, _ := f.m.typeOf(ir.KindLong)
	v3, _ := f.m.types.Lookup("v3x" + long)
	all := f.inst("OpLoad %s %s", v3, v)
	id := f.inst("OpCompositeExtract %s %s %d", long, all, n.Index)
	if n.Kind != ir.KindLong {
		t, err := f.typeOf(n, n.Kind)
		if err != nil {
			return backend.Operand{}, err
		}
		id = f.inst("OpUConvert %s %s", t, id)
	}
	return backend.Operand{Handle: id, Kind: n.Kind}, nil
}

func (f *function) call(n *ir.Node, in []backend.Operand) (backend.Operand, error) {
	t, err := f.typeOf(n, n.Kind)
	if err != nil {
		return backend.Operand{}, err
	}
	args := append([]string(nil), f.ctx...)
	for _, a := range in {
		args = append(args, f.load(a))
		if length, ok := f.lengths[a.Handle]; ok {
			args = append(args, f.load(length))
		}
	}
	callee := f.m.function(n.Name)
	line := fmt.Sprintf("OpFunctionCall %s %s", t, callee)
	if len(args) > 0 {
		line += " " + join(args)
	}
	id := f.inst("%s", line)
	if n.Kind == ir.KindVoid {
		return backend.Operand{}, nil
	}
	return backend.Operand{Handle: id, Kind: n.Kind}, nil
}

func (f *function) atomicAdd(n *ir.Node, in []backend.Operand) (backend.Operand, error) {
	p, ok := f.pointers[in[0].Handle]
	if !ok {
		if _, isArray := f.arrays[in[0].Handle]; !isArray {
			return backend.Operand{}, f.unimplemented(n, "counter %s has no address", in[0].Handle)
		}
		zero := backend.Operand{Handle: f.m.intConst(32, 0), Kind: ir.KindInt}
		ptr, err := f.element(n, in[0], zero)
		if err != nil {
			return backend.Operand{}, err
		}
		p = pointer{id: ptr, scope: scopeDevice}
	}
	t, err := f.typeOf(n, n.Kind)
	if err != nil {
		return backend.Operand{}, err
	}
	id := f.inst("OpAtomicIAdd %s %s %s %s %s", t, p.id, f.m.intConst(32, int64(p.scope)), f.m.intConst(32, 0), f.load(in[1]))
	return backend.Operand{Handle: id, Kind: n.Kind}, nil
}

func (f *function) vectorStore(n *ir.Node, in []backend.Operand) error {
	vec := in[0]
	if !vec.Resident {
		return f.unimplemented(n, "vector %s has no storage", vec.Handle)
	}
	t := f.varTypes[vec.Handle]
	updated := f.inst("OpCompositeInsert %s %s %s %d", t, f.load(in[1]), f.load(vec), n.Index)
	f.op("OpStore %s %s", vec.Handle, updated)
	if base, ok := f.backing[vec.Handle]; ok {
		void, _ := f.m.typeOf(ir.KindVoid)
		f.inst("OpExtInst %s %s vstoren %s %s %s", void, f.m.ext, updated, f.m.intConst(64, 0),
			f.load(backend.Operand{Handle: base, Resident: true}))
	}
	return nil
}
