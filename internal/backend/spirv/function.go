package spirv

import (
	"fmt"
	"strings"

	"github.com/roach88/kforge/internal/backend"
	"github.com/roach88/kforge/internal/ir"
)

// array describes how elements of an array operand are addressed.
type array struct {
	storage string
	elem    ir.Kind
	// aggregate arrays are variables of array type; the others are
	// pointers to their first element.
	aggregate bool
}

// function lowers one graph into SPIR-V instructions.
type function struct {
	m    *module
	fn   backend.Function
	g    *ir.Graph
	opts backend.Options

	id      string
	header  []string
	entry   string
	vars    []string
	body    []string
	lines   []string
	retType string
	retVar  string
	ctx     []string

	blocks     *backend.BlockTable[string]
	ifs        []bool
	terminated bool

	// varTypes maps resident operands to the type their variable holds.
	varTypes map[string]string
	arrays   map[string]array
	lengths  map[string]backend.Operand
	pointers map[string]pointer
	backing  map[string]string
}

// pointer is the address of an atomic counter.
type pointer struct {
	id    string
	scope int
}

func newFunction(m *module, fn backend.Function, opts backend.Options) *function {
	return &function{
		m:        m,
		fn:       fn,
		g:        fn.Graph,
		opts:     opts,
		blocks:   backend.NewBlockTable[string](),
		varTypes: map[string]string{},
		arrays:   map[string]array{},
		lengths:  map[string]backend.Operand{},
		pointers: map[string]pointer{},
		backing:  map[string]string{},
	}
}

func (f *function) unimplemented(n *ir.Node, format string, args ...any) error {
	return backend.Unimplemented(Name, n, format, args...)
}

func (f *function) typeOf(n *ir.Node, k ir.Kind) (string, error) {
	t, ok := f.m.typeOf(k)
	if !ok {
		return "", f.unimplemented(n, "no SPIR-V type for %s", k)
	}
	return t, nil
}

// inst emits a result-producing instruction and returns its id.
func (f *function) inst(format string, args ...any) string {
	id := f.m.id()
	f.body = append(f.body, id+" = "+fmt.Sprintf(format, args...))
	return id
}

func (f *function) op(format string, args ...any) {
	f.body = append(f.body, fmt.Sprintf(format, args...))
}

func (f *function) terminate(format string, args ...any) {
	f.op(format, args...)
	f.terminated = true
}

func (f *function) label(id string) {
	f.body = append(f.body, id+" = OpLabel")
	f.terminated = false
}

// variable allocates a Function-storage variable in the entry block.
func (f *function) variable(t string) string {
	id := f.m.id()
	f.vars = append(f.vars, fmt.Sprintf("%s = OpVariable %s %s", id, f.m.pointer(storageFunction, t), storageFunction))
	f.varTypes[id] = t
	return id
}

// load reads a resident operand; other operands are already values.
func (f *function) load(o backend.Operand) string {
	if !o.Resident {
		return o.Handle
	}
	return f.inst("OpLoad %s %s", f.varTypes[o.Handle], o.Handle)
}

func (f *function) loadAll(in []backend.Operand) []string {
	out := make([]string, len(in))
	for i, o := range in {
		out[i] = f.load(o)
	}
	return out
}

func (f *function) Begin(fn backend.Function) ([]backend.Operand, error) {
	f.fn = fn
	f.id = f.m.function(f.g.Name)
	f.m.debug = append(f.m.debug, fmt.Sprintf("OpName %s %q", f.id, f.g.Name))

	ret := ir.KindVoid
	if !fn.Kernel {
		for _, r := range f.g.NodesOf(ir.OpReturn) {
			if r.Input(0).IsValid() {
				ret = r.Kind
			}
		}
	}
	var err error
	if f.retType, err = f.typeOf(nil, ret); err != nil {
		return nil, err
	}

	type param struct {
		id, t, name string
	}
	var params []param
	add := func(t, name string) string {
		id := f.m.id()
		params = append(params, param{id: id, t: t, name: name})
		return id
	}
	if f.opts.ImplicitContext {
		long, _ := f.m.typeOf(ir.KindLong)
		char := f.m.intType(8)
		f.ctx = []string{
			add(f.m.pointer(storageCross, long), "_kernel_context"),
			add(f.m.pointer(storageCross, char), "_heap_base"),
		}
	}

	type stored struct{ param, variable string }
	var stores []stored
	backed := func(t, name string, k ir.Kind) backend.Operand {
		p := add(t, name)
		v := f.variable(t)
		stores = append(stores, stored{param: p, variable: v})
		return backend.Operand{Handle: v, Kind: k, Resident: true}
	}

	ops := make([]backend.Operand, len(f.g.Params))
	for i, p := range f.g.Params {
		switch {
		case p.IsArray():
			elem, err := f.typeOf(nil, p.Elem)
			if err != nil {
				return nil, err
			}
			ops[i] = backed(f.m.pointer(storageCross, elem), p.Name, ir.KindObject)
			f.arrays[ops[i].Handle] = array{storage: storageCross, elem: p.Elem}
			i32, _ := f.m.typeOf(ir.KindInt)
			f.lengths[ops[i].Handle] = backed(i32, p.Name+"_length", ir.KindInt)
		case p.Kind == ir.KindObject:
			vec, ok := ir.KindByName(p.TypeName)
			switch {
			case ok && vec.IsVector() && fn.Kernel:
				elem, _ := f.m.typeOf(vec.Elem())
				ops[i] = backed(f.m.pointer(storageCross, elem), p.Name, ir.KindObject)
			case ok && vec.IsVector():
				t, _ := f.m.typeOf(vec)
				ops[i] = backed(t, p.Name, vec)
			default:
				ops[i] = backed(f.m.pointer(storageCross, f.m.intType(8)), p.Name, ir.KindObject)
			}
		default:
			t, err := f.typeOf(nil, p.Kind)
			if err != nil {
				return nil, err
			}
			ops[i] = backed(t, p.Name, p.Kind)
		}
	}

	types := make([]string, len(params))
	for i, p := range params {
		types[i] = p.t
	}
	fnType := f.m.funcType(f.retType, types)
	f.header = append(f.header, fmt.Sprintf("%s = OpFunction %s None %s", f.id, f.retType, fnType))
	for _, p := range params {
		f.header = append(f.header, fmt.Sprintf("%s = OpFunctionParameter %s", p.id, p.t))
		f.m.debug = append(f.m.debug, fmt.Sprintf("OpName %s %q", p.id, p.name))
	}
	f.entry = f.m.id()
	for _, s := range stores {
		f.op("OpStore %s %s", s.variable, s.param)
	}

	if fn.Kernel {
		f.m.entryID = f.id
		f.m.entryName = f.g.Name
		f.m.localSize = fn.ThreadConfig
	}
	if f.opts.ReturnLabel {
		f.blocks.Register("return", f.m.id())
		if ret != ir.KindVoid {
			f.retVar = f.variable(f.retType)
		}
	}
	return ops, nil
}

func (f *function) DeclarePhi(phi *ir.Node) (backend.Operand, error) {
	t, err := f.typeOf(phi, phi.Kind)
	if err != nil {
		return backend.Operand{}, err
	}
	return backend.Operand{Handle: f.variable(t), Kind: phi.Kind, Resident: true}, nil
}

func (f *function) Copy(v backend.Operand) (backend.Operand, error) {
	return backend.Operand{Handle: f.load(v), Kind: v.Kind}, nil
}

func (f *function) Move(dst, src backend.Operand) error {
	f.op("OpStore %s %s", dst.Handle, f.load(src))
	return nil
}

func (f *function) If(cond backend.Operand) error {
	c := f.load(cond)
	f.blocks.Push()
	then, els, merge := f.m.id(), f.m.id(), f.m.id()
	f.blocks.Register("then", then)
	f.blocks.Register("else", els)
	f.blocks.Register("merge", merge)
	f.op("OpSelectionMerge %s None", merge)
	f.terminate("OpBranchConditional %s %s %s", c, then, els)
	f.label(then)
	f.ifs = append(f.ifs, false)
	return nil
}

func (f *function) Else() error {
	f.ifs[len(f.ifs)-1] = f.terminated
	if err := f.branch("merge"); err != nil {
		return err
	}
	els, err := f.blocks.Target("else")
	if err != nil {
		return err
	}
	f.label(els)
	return nil
}

func (f *function) EndIf() error {
	both := f.ifs[len(f.ifs)-1] && f.terminated
	f.ifs = f.ifs[:len(f.ifs)-1]
	if err := f.branch("merge"); err != nil {
		return err
	}
	merge, err := f.blocks.Target("merge")
	if err != nil {
		return err
	}
	f.blocks.Pop()
	f.label(merge)
	if both {
		f.terminate("OpUnreachable")
	}
	return nil
}

// branch closes the current block with a jump to a registered block
// unless it already ended.
func (f *function) branch(name string) error {
	if f.terminated {
		return nil
	}
	target, err := f.blocks.Target(name)
	if err != nil {
		return err
	}
	f.terminate("OpBranch %s", target)
	return nil
}

func (f *function) Loop(_ *ir.Node, unroll int) error {
	f.blocks.Push()
	header, cond, body, cont, merge := f.m.id(), f.m.id(), f.m.id(), f.m.id(), f.m.id()
	for name, id := range map[string]string{"header": header, "cond": cond, "body": body, "continue": cont, "merge": merge} {
		f.blocks.Register(name, id)
	}
	if err := f.branch("header"); err != nil {
		return err
	}
	control := "None"
	if unroll > 0 {
		control = "Unroll"
	}
	f.label(header)
	f.op("OpLoopMerge %s %s %s", merge, cont, control)
	f.terminate("OpBranch %s", cond)
	f.label(cond)
	return nil
}

func (f *function) LoopCondition(cond backend.Operand) error {
	c := f.load(cond)
	body, err := f.blocks.Target("body")
	if err != nil {
		return err
	}
	merge, err := f.blocks.Target("merge")
	if err != nil {
		return err
	}
	f.terminate("OpBranchConditional %s %s %s", c, body, merge)
	f.label(body)
	return nil
}

func (f *function) EndLoop() error {
	if err := f.branch("continue"); err != nil {
		return err
	}
	cont, err := f.blocks.Target("continue")
	if err != nil {
		return err
	}
	f.label(cont)
	if err := f.branch("header"); err != nil {
		return err
	}
	merge, err := f.blocks.Target("merge")
	if err != nil {
		return err
	}
	f.blocks.Pop()
	f.label(merge)
	return nil
}

func (f *function) Return(v *backend.Operand) error {
	if f.opts.ReturnLabel {
		if v != nil && f.retVar != "" {
			f.op("OpStore %s %s", f.retVar, f.load(*v))
		}
		return f.branch("return")
	}
	if v == nil || f.fn.Kernel {
		f.terminate("OpReturn")
		return nil
	}
	f.terminate("OpReturnValue %s", f.load(*v))
	return nil
}

func (f *function) End() error {
	if f.opts.ReturnLabel {
		ret, err := f.blocks.Target("return")
		if err != nil {
			return err
		}
		f.label(ret)
		if f.retVar != "" {
			f.terminate("OpReturnValue %s", f.load(backend.Operand{Handle: f.retVar, Resident: true}))
		} else {
			f.terminate("OpReturn")
		}
	}
	f.lines = append(f.lines, f.header...)
	f.lines = append(f.lines, f.entry+" = OpLabel")
	f.lines = append(f.lines, f.vars...)
	f.lines = append(f.lines, f.body...)
	f.lines = append(f.lines, "OpFunctionEnd")
	return nil
}

func join(ids []string) string { return strings.Join(ids, " ") }
