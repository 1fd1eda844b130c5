// Package opencl emits OpenCL C source from a transformed kernel graph.
package opencl

import (
	"strings"

	"github.com/roach88/kforge/internal/backend"
	"github.com/roach88/kforge/internal/ir"
)

// Name identifies the backend in errors and module metadata.
const Name = "opencl"

// Emit lowers entry and every callee it reaches into one OpenCL program.
func Emit(entry *ir.Graph, callees []*ir.Graph, opts backend.Options) (*backend.Module, error) {
	prog := backend.NewProgram(entry, callees)
	var fns []*function
	names, err := prog.Lower(Name, backend.Function{Graph: entry, Kernel: true}, func(fn backend.Function) backend.Lowerer {
		f := newFunction(fn, opts)
		fns = append(fns, f)
		return f
	})
	if err != nil {
		return nil, err
	}

	var out strings.Builder
	for _, f := range fns[1:] {
		out.WriteString(f.signature)
		out.WriteString(";\n")
	}
	if len(fns) > 1 {
		out.WriteByte('\n')
	}
	for i, f := range fns {
		if i > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(f.text)
	}
	return &backend.Module{
		Backend:    Name,
		EntryPoint: ident(entry.Name),
		Functions:  names,
		Source:     []byte(out.String()),
	}, nil
}
