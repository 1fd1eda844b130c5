package opencl

import (
	"strings"
)

// inst is one OpenCL LIR instruction. Each lowers to exactly one source
// line.
type inst interface {
	def() string
	uses() []string
	emit(w *writer)
}

// assign is `dst = expr;`.
type assign struct {
	dst  string
	expr string
	args []string
}

func (a assign) def() string    { return a.dst }
func (a assign) uses() []string { return a.args }
func (a assign) emit(w *writer) { w.line(a.dst + " = " + a.expr + ";") }

// stmt is an expression evaluated for its side effect.
type stmt struct {
	expr string
	args []string
}

func (s stmt) def() string    { return "" }
func (s stmt) uses() []string { return s.args }
func (s stmt) emit(w *writer) { w.line(s.expr + ";") }

// open starts a braced block: `head {`.
type open struct {
	head string
	args []string
}

func (o open) def() string    { return "" }
func (o open) uses() []string { return o.args }
func (o open) emit(w *writer) {
	w.line(o.head + " {")
	w.depth++
}

// elseInst is `} else {`.
type elseInst struct{}

func (elseInst) def() string    { return "" }
func (elseInst) uses() []string { return nil }
func (elseInst) emit(w *writer) {
	w.depth--
	w.line("} else {")
	w.depth++
}

// closeInst ends a block.
type closeInst struct{}

func (closeInst) def() string    { return "" }
func (closeInst) uses() []string { return nil }
func (closeInst) emit(w *writer) {
	w.depth--
	w.line("}")
}

// raw is a control line such as `break;` or a pragma.
type raw struct {
	text string
	args []string
}

func (r raw) def() string    { return "" }
func (r raw) uses() []string { return r.args }
func (r raw) emit(w *writer) { w.line(r.text) }

type writer struct {
	b     strings.Builder
	depth int
}

func (w *writer) line(s string) {
	if strings.HasPrefix(s, "#") {
		w.b.WriteString(s)
		w.b.WriteByte('\n')
		return
	}
	for range w.depth {
		w.b.WriteString("  ")
	}
	w.b.WriteString(s)
	w.b.WriteByte('\n')
}
