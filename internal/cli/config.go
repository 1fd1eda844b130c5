package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/kforge/internal/device/sim"
	"github.com/roach88/kforge/internal/meta"
)

// ConfigEntry is one resolved task setting.
type ConfigEntry struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

// ConfigOutput lists the resolved settings of a task.
type ConfigOutput struct {
	Task       string        `json:"task"`
	Device     string        `json:"device"`
	Manual     bool          `json:"manual"`
	Parallel   bool          `json:"parallel"`
	Vectorise  bool          `json:"vectorise"`
	CPUConfig  string        `json:"cpu_config,omitempty"`
	Domain     []int         `json:"domain,omitempty"`
	Global     []int         `json:"global,omitempty"`
	Local      []int         `json:"local,omitempty"`
	Coarseness []int         `json:"coarseness,omitempty"`
	Entries    []ConfigEntry `json:"entries"`
}

func (c *ConfigOutput) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "task %s on %s", c.Task, c.Device)
	if c.Manual {
		b.WriteString(" (manual)")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "  parallel=%t vectorise=%t\n", c.Parallel, c.Vectorise)
	if c.CPUConfig != "" {
		fmt.Fprintf(&b, "  cpu config %s\n", c.CPUConfig)
	}
	if c.Domain != nil {
		fmt.Fprintf(&b, "  domain %v global %v local %v coarseness %v\n", c.Domain, c.Global, c.Local, c.Coarseness)
	}
	for _, e := range c.Entries {
		fmt.Fprintf(&b, "  %-28s %-20s (%s)\n", e.Key, e.Value, e.Source)
	}
	return b.String()
}

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		taskID string
		flags  TaskFlags
	)
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the resolved settings of a task",
		Long: `Show every setting of a task after property resolution, with the level
it was resolved from (task, schedule or default).

Examples:
  kforge config -p kforge.cue
  kforge config --task s1.t2 -D s1.device=0:2
  kforge config --device 0:2 --domain 64,64 --local 8,8`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{
				Format:    rootOpts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   rootOpts.Verbose,
			}
			task, err := rootOpts.Task(taskID)
			if err != nil {
				return fail(f, err)
			}
			if err := flags.apply(task, sim.NewRegistry()); err != nil {
				return fail(f, err)
			}
			return f.Success(configOutput(task))
		},
	}
	cmd.Flags().StringVarP(&taskID, "task", "t", "s0.t0", "task id (schedule.task)")
	flags.register(cmd)
	return cmd
}

func configOutput(task *meta.Task) *ConfigOutput {
	out := &ConfigOutput{
		Task:      task.ID(),
		Device:    task.DeviceIndex().String(),
		Manual:    isManual(task),
		Parallel:  task.IsParallel(),
		Vectorise: task.Vectorise(),
	}
	if task.IsCPUConfigDefined() {
		out.CPUConfig = task.CPUConfig()
	}
	if task.HasDomain() {
		out.Domain = task.Domain()
		out.Global = task.GlobalWork()
		out.Local = task.LocalWork()
		out.Coarseness = task.Coarseness()
	}
	for _, e := range task.Entries() {
		out.Entries = append(out.Entries, ConfigEntry{Key: e.Suffix, Value: e.Value, Source: e.Source.String()})
	}
	return out
}
