package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/kforge/internal/loader"
	"github.com/roach88/kforge/internal/meta"
	"github.com/roach88/kforge/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Defines are -D key=value property overrides.
	Defines []string
	// PropertyFiles are CUE, YAML or .properties files read before Defines.
	PropertyFiles []string
	// DB is the SQLite kernel store. Empty disables persistence.
	DB string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the kforge CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "kforge",
		Short: "kforge - kernel specializer",
		Long: `Specialize dataflow graphs into device kernels.

kforge resolves a task's device from its properties, runs the
transformation pipeline for that device class, emits OpenCL C or SPIR-V
and installs the result in the per-device kernel cache.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringArrayVarP(&opts.Defines, "define", "D", nil, "set a property (key=value)")
	cmd.PersistentFlags().StringArrayVarP(&opts.PropertyFiles, "props", "p", nil, "property file (.cue, .yaml, .properties)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "SQLite kernel store")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewCacheCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// Logger returns the diagnostic logger: Debug with --verbose, Warn
// otherwise.
func (o *RootOptions) Logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Properties merges the property files and -D defines.
func (o *RootOptions) Properties() (meta.Properties, error) {
	defines, err := meta.ParseDefines(o.Defines)
	if err != nil {
		return meta.Properties{}, WrapExitError(ExitCommandError, "invalid -D", err)
	}
	props, err := loader.LoadProperties(o.PropertyFiles, defines)
	if err != nil {
		return meta.Properties{}, WrapExitError(ExitCommandError, "failed to load properties", err)
	}
	return props, nil
}

// Task builds the task record id ("schedule.task") from Properties.
func (o *RootOptions) Task(id string) (*meta.Task, error) {
	scheduleID, taskID, err := splitTaskID(id)
	if err != nil {
		return nil, err
	}
	props, err := o.Properties()
	if err != nil {
		return nil, err
	}
	s, err := meta.NewSchedule(scheduleID, props)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid schedule properties", err)
	}
	t, err := meta.NewTask(s, taskID, props)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid task properties", err)
	}
	return t, nil
}

// OpenStore opens the --db store, or returns nil when none is set.
func (o *RootOptions) OpenStore() (*store.Store, error) {
	if o.DB == "" {
		return nil, nil
	}
	st, err := store.Open(o.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	return st, nil
}

func splitTaskID(id string) (string, string, error) {
	s, t, ok := strings.Cut(id, ".")
	if !ok || s == "" || t == "" {
		return "", "", NewExitError(ExitCommandError, fmt.Sprintf("invalid task id %q: want schedule.task", id))
	}
	return s, t, nil
}
