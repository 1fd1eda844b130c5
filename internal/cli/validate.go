package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/kforge/internal/compiler"
	"github.com/roach88/kforge/internal/loader"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Files  int                        `json:"files"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var taskID string
	cmd := &cobra.Command{
		Use:   "validate <graph.yaml>...",
		Short: "Validate graphs and properties without compiling",
		Long: `Validate graph documents and the task properties without running the
transformation pipeline.

Checks that each file decodes, that every graph verifies, that parameter
references are declared and that callee names are unique. Property files
and -D defines are checked against the known keys for --task.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, taskID, args, cmd)
		},
	}
	cmd.Flags().StringVarP(&taskID, "task", "t", "s0.t0", "task id (schedule.task)")

	return cmd
}

func runValidate(opts *RootOptions, taskID string, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	var errs []compiler.ValidationError
	task, err := opts.Task(taskID)
	if err != nil {
		errs = append(errs, asValidationError("properties", err))
	}

	for _, path := range paths {
		formatter.VerboseLog("Validating %s", path)
		graphs, err := loader.LoadGraphs(path)
		if err != nil {
			errs = append(errs, asValidationError(path, err))
			continue
		}
		for _, ve := range compiler.Validate(compiler.Request{
			Graph:   graphs.Entry,
			Callees: graphs.Callees,
			Task:    task,
			Kernel:  true,
		}) {
			if ve.Code == compiler.ErrNoTask {
				continue
			}
			ve.Field = path + ": " + ve.Field
			errs = append(errs, ve)
		}
	}

	if len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Files: len(paths)})
	}
	fmt.Fprintf(formatter.Writer, "✓ %d graph file(s) valid\n", len(paths))
	return nil
}

func asValidationError(field string, err error) compiler.ValidationError {
	msg := err.Error()
	var le *loader.LoadError
	if errors.As(err, &le) {
		msg = le.Message
	}
	return compiler.ValidationError{Field: field, Message: msg, Code: errorCode(err)}
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		fmt.Fprintf(formatter.Writer, "  [%s] %s: %s\n", e.Code, e.Field, e.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
