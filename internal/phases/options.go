package phases

import (
	"io"
	"log/slog"

	"github.com/roach88/kforge/internal/device"
	"github.com/roach88/kforge/internal/ir"
)

// Options are resolved once from properties and never change during a run.
type Options struct {
	MaxGraphSize                int
	UnrollFactor                int
	PartialUnroll               bool
	FullUnroll                  bool
	MaxSpecializationIterations int
	ThreadConfig                [3]int
	VerifyEachPass              bool
}

// DefaultOptions returns the process defaults.
func DefaultOptions() Options {
	return Options{
		MaxGraphSize:                3000,
		UnrollFactor:                4,
		PartialUnroll:               true,
		FullUnroll:                  true,
		MaxSpecializationIterations: 10,
		ThreadConfig:                [3]int{64, 1, 1},
		VerifyEachPass:              true,
	}
}

// PassStat records one pass execution.
type PassStat struct {
	Name        string
	NodesBefore int
	NodesAfter  int
}

// Report collects statistics of one pipeline run.
type Report struct {
	Passes []PassStat

	// SpecializationIterations is the number of sweeps task specialization
	// performed; Converged is false when it stopped at the cap.
	SpecializationIterations int
	Converged                bool

	FullyUnrolled       int
	PartiallyUnrolled   int
	ThreadConfigs       int
	UnrollPragmas       int
	IntrinsicsLowered   int
	AtomicsSpecialized  int
	VectorsMaterialized int
}

// Context is the per-run state handed to every pass.
type Context struct {
	Device device.Class

	// Kernel is true when compiling an entry-point kernel rather than a
	// device-side callee.
	Kernel bool

	// Args are the actual arguments when known. Nil means unknown.
	Args []ir.Argument

	Options Options
	Report  *Report
	Logger  *slog.Logger
}

// NewContext creates a context with an empty report. A nil logger falls
// back to slog.Default.
func NewContext(class device.Class, kernel bool, args []ir.Argument, opts Options, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		Device:  class,
		Kernel:  kernel,
		Args:    args,
		Options: opts,
		Report:  &Report{},
		Logger:  logger,
	}
}

func (pc *Context) logger() *slog.Logger {
	if pc.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return pc.Logger
}

func (pc *Context) report() *Report {
	if pc.Report == nil {
		pc.Report = &Report{}
	}
	return pc.Report
}

func (pc *Context) budget() *NodeBudget {
	return NewNodeBudget(pc.Options.MaxGraphSize)
}
