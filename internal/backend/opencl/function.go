package opencl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/kforge/internal/backend"
	"github.com/roach88/kforge/internal/ir"
)

// function lowers one graph into OpenCL LIR and renders it on End.
type function struct {
	fn   backend.Function
	g    *ir.Graph
	opts backend.Options

	body  []inst
	decls *backend.Table[string, string]

	// lengths maps array operands to the expression of their length.
	lengths map[string]string
	// pointers maps counter operands to the address atomics operate on.
	pointers map[string]string
	// backing maps loaded vector temps to the parameter they came from.
	backing map[string]string

	signature string
	text      string
}

func newFunction(fn backend.Function, opts backend.Options) *function {
	return &function{
		fn:       fn,
		g:        fn.Graph,
		opts:     opts,
		decls:    backend.NewTable[string, string](nil),
		lengths:  map[string]string{},
		pointers: map[string]string{},
		backing:  map[string]string{},
	}
}

func (f *function) unimplemented(n *ir.Node, format string, args ...any) error {
	return backend.Unimplemented(Name, n, format, args...)
}

// temp declares a fresh variable for node id.
func (f *function) temp(n *ir.Node, k ir.Kind) (string, error) {
	t, ok := typeName(k)
	if !ok {
		return "", f.unimplemented(n, "no OpenCL type for %s", k)
	}
	name := fmt.Sprintf("%s_%d", prefix(k), n.ID())
	f.decls.Put(name, t+" "+name+";")
	return name, nil
}

func (f *function) emit(i inst) { f.body = append(f.body, i) }

func (f *function) Begin(fn backend.Function) ([]backend.Operand, error) {
	var params []string
	if f.opts.ImplicitContext {
		params = append(params, "__global long *_kernel_context", "__global uchar *_heap_base")
	}
	ops := make([]backend.Operand, len(f.g.Params))
	for i, p := range f.g.Params {
		name := ident(p.Name)
		switch {
		case p.IsArray():
			elem, ok := typeName(p.Elem)
			if !ok {
				return nil, &backend.UnimplementedError{Backend: Name, Op: ir.OpParam, Message: "array of " + p.Elem.String()}
			}
			params = append(params, "__global "+elem+" *"+name, "const int "+name+"_length")
			f.lengths[name] = name + "_length"
			f.pointers[name] = "&" + name + "[0]"
			ops[i] = backend.Operand{Handle: name, Kind: ir.KindObject}
		case p.Kind == ir.KindObject:
			vec, isVector := ir.KindByName(p.TypeName)
			switch {
			case isVector && vec.IsVector() && fn.Kernel:
				elem, _ := typeName(vec.Elem())
				params = append(params, "__global "+elem+" *"+name)
				ops[i] = backend.Operand{Handle: name, Kind: ir.KindObject}
			case isVector && vec.IsVector():
				t, _ := typeName(vec)
				params = append(params, t+" "+name)
				ops[i] = backend.Operand{Handle: name, Kind: vec}
			default:
				params = append(params, "__global uchar *"+name)
				ops[i] = backend.Operand{Handle: name, Kind: ir.KindObject}
			}
		default:
			t, ok := typeName(p.Kind)
			if !ok {
				return nil, &backend.UnimplementedError{Backend: Name, Op: ir.OpParam, Message: "parameter of kind " + p.Kind.String()}
			}
			params = append(params, "const "+t+" "+name)
			ops[i] = backend.Operand{Handle: name, Kind: p.Kind}
		}
	}

	var head string
	if fn.Kernel {
		head = "__kernel "
		if tc := fn.ThreadConfig; tc != nil {
			head += fmt.Sprintf("__attribute__((reqd_work_group_size(%d, %d, %d))) ", tc[0], tc[1], tc[2])
		}
		head += "void"
	} else {
		ret := "void"
		for _, r := range f.g.NodesOf(ir.OpReturn) {
			if r.Input(0).IsValid() {
				t, ok := typeName(r.Kind)
				if !ok {
					return nil, f.unimplemented(r, "no OpenCL type for %s", r.Kind)
				}
				ret = t
			}
		}
		head = ret
	}
	f.signature = fmt.Sprintf("%s %s(%s)", head, ident(f.g.Name), strings.Join(params, ", "))
	return ops, nil
}

func (f *function) DeclarePhi(phi *ir.Node) (backend.Operand, error) {
	name, err := f.temp(phi, phi.Kind)
	if err != nil {
		return backend.Operand{}, err
	}
	return backend.Operand{Handle: name, Kind: phi.Kind}, nil
}

func (f *function) assign(n *ir.Node, k ir.Kind, expr string, in ...backend.Operand) (backend.Operand, error) {
	name, err := f.temp(n, k)
	if err != nil {
		return backend.Operand{}, err
	}
	f.emit(assign{dst: name, expr: expr, args: handles(in)})
	return backend.Operand{Handle: name, Kind: k}, nil
}

func handles(ops []backend.Operand) []string {
	out := make([]string, len(ops))
	for i, o := range ops {
		out[i] = o.Handle
	}
	return out
}

func (f *function) Value(n *ir.Node, in []backend.Operand) (backend.Operand, error) {
	switch op := n.Op(); {
	case op == ir.OpConst:
		return backend.Operand{Handle: literal(n.Value), Kind: n.Kind}, nil
	case binaryOps[op] != "":
		return f.assign(n, n.Kind, in[0].Handle+" "+binaryOps[op]+" "+in[1].Handle, in...)
	case op == ir.OpNot:
		if n.Kind == ir.KindBool {
			return f.assign(n, n.Kind, "!"+in[0].Handle, in...)
		}
		return f.assign(n, n.Kind, "~"+in[0].Handle, in...)
	case op == ir.OpConditional:
		return f.assign(n, n.Kind, in[0].Handle+" ? "+in[1].Handle+" : "+in[2].Handle, in...)
	case op == ir.OpMath:
		name, ok := mathName(n.Math, n.Kind)
		if !ok {
			return backend.Operand{}, f.unimplemented(n, "%s on %s", n.Math, n.Kind)
		}
		return f.assign(n, n.Kind, name+"("+strings.Join(handles(in), ", ")+")", in...)
	case op == ir.OpConvert:
		t, ok := typeName(n.Kind)
		if !ok {
			return backend.Operand{}, f.unimplemented(n, "no OpenCL type for %s", n.Kind)
		}
		if n.Kind.IsVector() {
			return f.assign(n, n.Kind, "convert_"+t+"("+in[0].Handle+")", in...)
		}
		return f.assign(n, n.Kind, "("+t+") "+in[0].Handle, in...)
	case op == ir.OpArrayLength:
		length, ok := f.lengths[in[0].Handle]
		if !ok {
			return backend.Operand{}, f.unimplemented(n, "length of %s is unknown", in[0].Handle)
		}
		return backend.Operand{Handle: length, Kind: ir.KindInt}, nil
	case op == ir.OpIsNull:
		return f.assign(n, ir.KindBool, in[0].Handle+" == NULL", in...)
	case op == ir.OpAtomicCounter:
		return in[0], nil
	case op == ir.OpVectorValue:
		if !n.NeedsLoad {
			return in[0], nil
		}
		v, err := f.assign(n, n.Kind, fmt.Sprintf("vload%d(0, %s)", n.Kind.Lanes(), in[0].Handle), in...)
		if err == nil {
			f.backing[v.Handle] = in[0].Handle
		}
		return v, err
	case op == ir.OpVectorElem:
		return f.assign(n, n.Kind, in[0].Handle+".s"+strconv.FormatInt(int64(n.Index), 16), in...)
	case op == ir.OpNewArray:
		return f.newArray(n)
	}
	return backend.Operand{}, f.unimplemented(n, "")
}

func (f *function) newArray(n *ir.Node) (backend.Operand, error) {
	length := f.g.Node(n.Input(0))
	if length == nil || !length.IsConst() || length.Value.Int() <= 0 {
		return backend.Operand{}, f.unimplemented(n, "array length must be a positive constant")
	}
	elem, ok := typeName(n.Elem)
	if !ok {
		return backend.Operand{}, f.unimplemented(n, "array of %s", n.Elem)
	}
	name := fmt.Sprintf("arr_%d", n.ID())
	qual := ""
	if n.Space == ir.SpaceLocal {
		qual = "__local "
	}
	size := strconv.FormatInt(length.Value.Int(), 10)
	f.decls.Put(name, qual+elem+" "+name+"["+size+"];")
	f.lengths[name] = size
	f.pointers[name] = "&" + name + "[0]"
	return backend.Operand{Handle: name, Kind: ir.KindObject}, nil
}

func (f *function) Statement(n *ir.Node, in []backend.Operand) (backend.Operand, error) {
	switch n.Op() {
	case ir.OpLoad:
		return f.assign(n, n.Kind, in[0].Handle+"["+in[1].Handle+"]", in...)
	case ir.OpStore:
		f.emit(stmt{expr: in[0].Handle + "[" + in[1].Handle + "] = " + in[2].Handle, args: handles(in)})
		return backend.Operand{}, nil
	case ir.OpBarrier:
		fence := "CLK_GLOBAL_MEM_FENCE"
		if n.Space == ir.SpaceLocal {
			fence = "CLK_LOCAL_MEM_FENCE"
		}
		f.emit(stmt{expr: "barrier(" + fence + ")"})
		return backend.Operand{}, nil
	case ir.OpGlobalID, ir.OpLocalID, ir.OpGroupSize, ir.OpGlobalSize:
		return f.assign(n, n.Kind, fmt.Sprintf("(int) %s(%d)", threadBuiltins[n.Op()], n.Index))
	case ir.OpCall:
		return f.call(n, in)
	case ir.OpAtomicInteger:
		if !f.fn.Kernel {
			return backend.Operand{}, f.unimplemented(n, "atomic integers are only allocated by kernels")
		}
		name := fmt.Sprintf("a_%d", n.ID())
		f.decls.Put(name, "volatile __local int "+name+";")
		f.pointers[name] = "&" + name
		f.emit(assign{dst: name, expr: in[0].Handle, args: handles(in)})
		return backend.Operand{Handle: name, Kind: ir.KindInt}, nil
	case ir.OpAtomicAdd:
		ptr, ok := f.pointers[in[0].Handle]
		if !ok {
			return backend.Operand{}, f.unimplemented(n, "counter %s has no address", in[0].Handle)
		}
		return f.assign(n, n.Kind, "atomic_add("+ptr+", "+in[1].Handle+")", in...)
	case ir.OpVectorStore:
		vec := in[0].Handle
		f.emit(stmt{expr: vec + ".s" + strconv.FormatInt(int64(n.Index), 16) + " = " + in[1].Handle, args: handles(in)})
		if p, ok := f.backing[vec]; ok {
			f.emit(stmt{expr: fmt.Sprintf("vstore%d(%s, 0, %s)", in[0].Kind.Lanes(), vec, p), args: []string{vec}})
		}
		return backend.Operand{}, nil
	}
	return backend.Operand{}, f.unimplemented(n, "")
}

func (f *function) call(n *ir.Node, in []backend.Operand) (backend.Operand, error) {
	var args []string
	if f.opts.ImplicitContext {
		args = append(args, "_kernel_context", "_heap_base")
	}
	for _, a := range in {
		args = append(args, a.Handle)
		if length, ok := f.lengths[a.Handle]; ok {
			args = append(args, length)
		}
	}
	expr := ident(n.Name) + "(" + strings.Join(args, ", ") + ")"
	if n.Kind == ir.KindVoid {
		f.emit(stmt{expr: expr, args: handles(in)})
		return backend.Operand{}, nil
	}
	return f.assign(n, n.Kind, expr, in...)
}

func (f *function) Copy(v backend.Operand) (backend.Operand, error) {
	t, ok := typeName(v.Kind)
	if !ok {
		return backend.Operand{}, &backend.UnimplementedError{Backend: Name, Op: ir.OpPhi, Message: "copy of " + v.Kind.String()}
	}
	name := fmt.Sprintf("%s_copy%d", prefix(v.Kind), f.decls.Len())
	f.decls.Put(name, t+" "+name+";")
	f.emit(assign{dst: name, expr: v.Handle, args: []string{v.Handle}})
	return backend.Operand{Handle: name, Kind: v.Kind}, nil
}

func (f *function) Move(dst, src backend.Operand) error {
	f.emit(assign{dst: dst.Handle, expr: src.Handle, args: []string{src.Handle}})
	return nil
}

func (f *function) If(cond backend.Operand) error {
	f.emit(open{head: "if (" + cond.Handle + ")", args: []string{cond.Handle}})
	return nil
}

func (f *function) Else() error {
	f.emit(elseInst{})
	return nil
}

func (f *function) EndIf() error {
	if len(f.body) > 0 {
		if _, empty := f.body[len(f.body)-1].(elseInst); empty {
			f.body[len(f.body)-1] = closeInst{}
			return nil
		}
	}
	f.emit(closeInst{})
	return nil
}

func (f *function) Loop(_ *ir.Node, unroll int) error {
	if unroll > 0 {
		f.emit(raw{text: "#pragma unroll " + strconv.Itoa(unroll)})
	}
	f.emit(open{head: "for (;;)"})
	return nil
}

func (f *function) LoopCondition(cond backend.Operand) error {
	f.emit(raw{text: "if (!" + cond.Handle + ") break;", args: []string{cond.Handle}})
	return nil
}

func (f *function) EndLoop() error {
	f.emit(closeInst{})
	return nil
}

func (f *function) Return(v *backend.Operand) error {
	if v == nil || f.fn.Kernel {
		f.emit(raw{text: "return;"})
		return nil
	}
	f.emit(raw{text: "return " + v.Handle + ";", args: []string{v.Handle}})
	return nil
}

func (f *function) End() error {
	referenced := map[string]bool{}
	for _, i := range f.body {
		referenced[i.def()] = true
		for _, u := range i.uses() {
			referenced[u] = true
		}
	}
	w := &writer{}
	w.line(f.signature + " {")
	w.depth++
	declared := 0
	for _, name := range f.decls.Keys() {
		if !referenced[name] {
			continue
		}
		d, _ := f.decls.Lookup(name)
		w.line(d)
		declared++
	}
	if declared > 0 && len(f.body) > 0 {
		w.b.WriteByte('\n')
	}
	for _, i := range f.body {
		i.emit(w)
	}
	w.depth--
	w.line("}")
	f.text = w.b.String()
	return nil
}
