// Package spirv emits SPIR-V textual assembly from a transformed kernel
// graph. Ids are numeric and shared by the whole module.
package spirv

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/kforge/internal/backend"
	"github.com/roach88/kforge/internal/ir"
)

// Name identifies the backend in errors and module metadata.
const Name = "spirv"

// Storage classes used by the emitter.
const (
	storageFunction  = "Function"
	storageCross     = "CrossWorkgroup"
	storageWorkgroup = "Workgroup"
	storageInput     = "Input"
)

// Memory scopes and barrier semantics (SequentiallyConsistent plus the
// fenced storage).
const (
	scopeDevice     = 1
	scopeWorkgroup  = 2
	semanticsLocal  = 0x110
	semanticsGlobal = 0x210
)

// module holds the sections shared by every function of one program.
type module struct {
	next int
	ext  string

	caps        *backend.Table[string, struct{}]
	debug       []string
	decorations []string
	globals     []string

	types    *backend.Table[string, string]
	consts   *backend.Table[string, string]
	funcs    *backend.Table[string, string]
	builtins *backend.Table[string, string]

	entryID   string
	entryName string
	localSize *[3]int
}

func newModule() *module {
	m := &module{
		caps:     backend.NewTable[string, struct{}](nil),
		types:    backend.NewTable[string, string](nil),
		consts:   backend.NewTable[string, string](nil),
		funcs:    backend.NewTable[string, string](nil),
		builtins: backend.NewTable[string, string](nil),
	}
	for _, c := range []string{"Addresses", "Kernel", "Int64"} {
		m.caps.Put(c, struct{}{})
	}
	m.ext = m.id()
	return m
}

func (m *module) id() string {
	m.next++
	return "%" + strconv.Itoa(m.next)
}

// declare returns the id of key in tab, emitting decl into the globals on
// first use.
func (m *module) declare(tab *backend.Table[string, string], key string, decl func(id string) string) string {
	if id, ok := tab.Lookup(key); ok {
		return id
	}
	id := m.id()
	m.globals = append(m.globals, decl(id))
	tab.Put(key, id)
	return id
}

// typeOf returns the type id of a value kind.
func (m *module) typeOf(k ir.Kind) (string, bool) {
	switch {
	case k == ir.KindVoid:
		return m.declare(m.types, "void", func(id string) string { return id + " = OpTypeVoid" }), true
	case k == ir.KindBool:
		return m.declare(m.types, "bool", func(id string) string { return id + " = OpTypeBool" }), true
	case k.IsVector():
		elem, ok := m.typeOf(k.Elem())
		if !ok {
			return "", false
		}
		key := fmt.Sprintf("v%dx%s", k.Lanes(), elem)
		return m.declare(m.types, key, func(id string) string {
			return fmt.Sprintf("%s = OpTypeVector %s %d", id, elem, k.Lanes())
		}), true
	case k.IsInteger():
		return m.intType(k.Size() * 8), true
	case k.IsFloat():
		bits := k.Size() * 8
		if bits == 16 {
			m.caps.Put("Float16", struct{}{})
		}
		if bits == 64 {
			m.caps.Put("Float64", struct{}{})
		}
		return m.declare(m.types, "f"+strconv.Itoa(bits), func(id string) string {
			return fmt.Sprintf("%s = OpTypeFloat %d", id, bits)
		}), true
	}
	return "", false
}

func (m *module) intType(bits int) string {
	switch bits {
	case 8:
		m.caps.Put("Int8", struct{}{})
	case 16:
		m.caps.Put("Int16", struct{}{})
	}
	return m.declare(m.types, "i"+strconv.Itoa(bits), func(id string) string {
		return fmt.Sprintf("%s = OpTypeInt %d 0", id, bits)
	})
}

func (m *module) pointer(storage, elem string) string {
	return m.declare(m.types, "p."+storage+"."+elem, func(id string) string {
		return fmt.Sprintf("%s = OpTypePointer %s %s", id, storage, elem)
	})
}

func (m *module) array(elem string, length int64) string {
	n := m.intConst(32, length)
	return m.declare(m.types, "a."+elem+"."+n, func(id string) string {
		return fmt.Sprintf("%s = OpTypeArray %s %s", id, elem, n)
	})
}

func (m *module) funcType(ret string, params []string) string {
	sig := strings.Join(append([]string{ret}, params...), " ")
	return m.declare(m.types, "fn."+sig, func(id string) string {
		return id + " = OpTypeFunction " + sig
	})
}

func (m *module) intConst(bits int, v int64) string {
	t := m.intType(bits)
	lit := strconv.FormatUint(uint64(v)&(1<<bits-1), 10)
	return m.declare(m.consts, t+"."+lit, func(id string) string {
		return fmt.Sprintf("%s = OpConstant %s %s", id, t, lit)
	})
}

// constant returns the id of a literal.
func (m *module) constant(n *ir.Node) (string, error) {
	v := n.Value
	k := v.Kind()
	switch {
	case k == ir.KindBool:
		t, _ := m.typeOf(k)
		op := "OpConstantFalse"
		if v.Bool() {
			op = "OpConstantTrue"
		}
		return m.declare(m.consts, t+"."+op, func(id string) string { return id + " = " + op + " " + t }), nil
	case k.IsInteger():
		return m.intConst(k.Size()*8, v.Int()), nil
	case k.IsFloat():
		t, _ := m.typeOf(k)
		lit := strconv.FormatFloat(v.Float(), 'g', -1, 64)
		if strings.ContainsAny(lit, "NI") {
			return "", backend.Unimplemented(Name, n, "non-finite literal %s", lit)
		}
		return m.declare(m.consts, t+"."+lit, func(id string) string {
			return fmt.Sprintf("%s = OpConstant %s %s", id, t, lit)
		}), nil
	}
	return "", backend.Unimplemented(Name, n, "constant of kind %s", k)
}

// function returns the id reserved for a function name.
func (m *module) function(name string) string {
	if id, ok := m.funcs.Lookup(name); ok {
		return id
	}
	id := m.id()
	m.funcs.Put(name, id)
	return id
}

var builtinNames = map[ir.Op]string{
	ir.OpGlobalID:   "GlobalInvocationId",
	ir.OpLocalID:    "LocalInvocationId",
	ir.OpGroupSize:  "WorkgroupSize",
	ir.OpGlobalSize: "GlobalSize",
}

// builtin returns the Input variable of a work-item builtin.
func (m *module) builtin(op ir.Op) string {
	name := builtinNames[op]
	if id, ok := m.builtins.Lookup(name); ok {
		return id
	}
	vec, _ := m.typeOf(ir.KindLong)
	v3 := m.declare(m.types, "v3x"+vec, func(id string) string { return id + " = OpTypeVector " + vec + " 3" })
	ptr := m.pointer(storageInput, v3)
	id := m.id()
	m.globals = append(m.globals, fmt.Sprintf("%s = OpVariable %s %s", id, ptr, storageInput))
	m.decorations = append(m.decorations, fmt.Sprintf("OpDecorate %s BuiltIn %s", id, name))
	m.builtins.Put(name, id)
	return id
}

// global declares a module-level variable.
func (m *module) global(ptr, storage string) string {
	id := m.id()
	m.globals = append(m.globals, fmt.Sprintf("%s = OpVariable %s %s", id, ptr, storage))
	return id
}

func (m *module) assemble(functions []string) []byte {
	var b strings.Builder
	b.WriteString("; SPIR-V\n; Version: 1.2\n; Generator: kforge; 0\n")
	fmt.Fprintf(&b, "; Bound: %d\n; Schema: 0\n", m.next+1)
	for _, c := range m.caps.Keys() {
		b.WriteString("OpCapability " + c + "\n")
	}
	fmt.Fprintf(&b, "%s = OpExtInstImport \"OpenCL.std\"\n", m.ext)
	b.WriteString("OpMemoryModel Physical64 OpenCL\n")
	entry := fmt.Sprintf("OpEntryPoint Kernel %s %q", m.entryID, m.entryName)
	for _, name := range m.builtins.Keys() {
		id, _ := m.builtins.Lookup(name)
		entry += " " + id
	}
	b.WriteString(entry + "\n")
	if ls := m.localSize; ls != nil {
		fmt.Fprintf(&b, "OpExecutionMode %s LocalSize %d %d %d\n", m.entryID, ls[0], ls[1], ls[2])
	}
	for _, sec := range [][]string{m.debug, m.decorations, m.globals, functions} {
		for _, line := range sec {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return []byte(b.String())
}

// Emit lowers entry and every callee it reaches into one SPIR-V module.
func Emit(entry *ir.Graph, callees []*ir.Graph, opts backend.Options) (*backend.Module, error) {
	m := newModule()
	prog := backend.NewProgram(entry, callees)
	var fns []*function
	names, err := prog.Lower(Name, backend.Function{Graph: entry, Kernel: true}, func(fn backend.Function) backend.Lowerer {
		f := newFunction(m, fn, opts)
		fns = append(fns, f)
		return f
	})
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, f := range fns {
		lines = append(lines, f.lines...)
	}
	return &backend.Module{
		Backend:    Name,
		EntryPoint: entry.Name,
		Functions:  names,
		Source:     m.assemble(lines),
	}, nil
}
