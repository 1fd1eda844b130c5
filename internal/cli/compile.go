package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/kforge/internal/compiler"
	"github.com/roach88/kforge/internal/device/sim"
	"github.com/roach88/kforge/internal/loader"
	"github.com/roach88/kforge/internal/phases"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	TaskFlags
	Task   string // task record id
	Output string // output file path
}

// CompileOutput is the compile command's result.
type CompileOutput struct {
	RunID      string                  `json:"run_id"`
	Device     string                  `json:"device"`
	Backend    string                  `json:"backend"`
	KernelID   string                  `json:"kernel_id"`
	EntryPoint string                  `json:"entry_point"`
	Functions  []string                `json:"functions"`
	Digest     string                  `json:"digest"`
	Flags      string                  `json:"flags"`
	Global     []int                   `json:"global,omitempty"`
	Local      []int                   `json:"local,omitempty"`
	Coarseness []int                   `json:"coarseness,omitempty"`
	Report     *phases.Report          `json:"report"`
	Warnings   []compiler.CycleWarning `json:"warnings,omitempty"`
	Source     string                  `json:"source,omitempty"`
	Output     string                  `json:"output,omitempty"`
}

// Text renders the source, or a summary line when it went to a file.
func (o *CompileOutput) Text() string {
	if o.Output == "" {
		return o.Source
	}
	return fmt.Sprintf("✓ Compiled %s for %s (%s) to %s\n", o.EntryPoint, o.Device, o.Backend, o.Output)
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <graph.yaml>",
		Short: "Compile a graph document to kernel source",
		Long: `Compile a YAML graph document for the device its task resolves to.

The first document in the file is the kernel; the rest are device-side
callees. Properties come from --props files and -D overrides.

Examples:
  kforge compile addOne.yaml
  kforge compile addOne.yaml --device 1:0
  kforge compile addOne.yaml -D s0.t0.partial.unroll=false --domain 1024
  kforge compile addOne.yaml --domain 64,64 --local 16,16
  kforge compile addOne.yaml --format json --db kforge.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Task, "task", "t", "s0.t0", "task id (schedule.task)")
	opts.TaskFlags.register(cmd)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the kernel source to a file")

	return cmd
}

func runCompile(opts *CompileOptions, graphPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := opts.Logger(cmd.ErrOrStderr())

	graphs, err := loader.LoadGraphs(graphPath)
	if err != nil {
		return fail(formatter, err)
	}
	formatter.VerboseLog("Loaded %s with %d callee(s)", graphs.Entry.Name, len(graphs.Callees))

	task, err := opts.RootOptions.Task(opts.Task)
	if err != nil {
		return fail(formatter, err)
	}
	st, err := opts.OpenStore()
	if err != nil {
		return fail(formatter, err)
	}
	copts := []compiler.Option{compiler.WithLogger(logger)}
	if st != nil {
		defer st.Close()
		copts = append(copts, compiler.WithStore(st))
	}
	reg := sim.NewRegistry(sim.WithLogger(logger))
	c := compiler.New(reg, copts...)

	if err := opts.TaskFlags.apply(task, reg); err != nil {
		return fail(formatter, err)
	}

	res, err := c.Compile(context.Background(), compiler.Request{
		Graph:   graphs.Entry,
		Callees: graphs.Callees,
		Task:    task,
		Kernel:  true,
	})
	if err != nil {
		return fail(formatter, err)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(formatter.GetErrWriter(), "warning: %s\n", w.Message)
	}
	formatter.VerboseLog("Run %s: %d pass(es), %d partially unrolled, %d fully unrolled",
		res.RunID, len(res.Report.Passes), res.Report.PartiallyUnrolled, res.Report.FullyUnrolled)

	out := &CompileOutput{
		RunID:      res.RunID,
		Device:     res.Device.String(),
		Backend:    res.Backend,
		KernelID:   res.KernelID,
		EntryPoint: res.EntryPoint,
		Functions:  res.Functions,
		Digest:     res.Digest,
		Flags:      res.Flags,
		Report:     res.Report,
		Warnings:   res.Warnings,
		Source:     string(res.Source),
	}
	if task.IsParallel() {
		out.Global, out.Local = task.GlobalWork(), task.LocalWork()
		out.Coarseness = task.Coarseness()
	}
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, res.Source, 0o644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, ErrCodeWriteFailed, err)
		}
		out.Output = opts.Output
		out.Source = ""
	}
	return formatter.SuccessWithRun(res.RunID, out)
}

// parseDims parses "64" or "64,64" into work dimensions.
func parseDims(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	dims := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 1 {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid domain %q: want positive integers", s))
		}
		dims[i] = n
	}
	return dims, nil
}
