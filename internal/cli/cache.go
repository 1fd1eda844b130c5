package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/kforge/internal/device"
	"github.com/roach88/kforge/internal/store"
)

// CacheEntry is one stored kernel as listed by the cache command.
type CacheEntry struct {
	Device     string `json:"device"`
	KernelID   string `json:"kernel_id"`
	EntryPoint string `json:"entry_point"`
	Backend    string `json:"backend"`
	Digest     string `json:"digest"`
	Size       int    `json:"size"`
	RunID      string `json:"run_id"`
}

// CacheList is the result of cache list.
type CacheList struct {
	Kernels []CacheEntry `json:"kernels"`
}

func (l *CacheList) Text() string {
	if len(l.Kernels) == 0 {
		return "No kernels stored.\n"
	}
	var b strings.Builder
	for _, k := range l.Kernels {
		fmt.Fprintf(&b, "%-5s %-8s %-24s %-24s %6dB %s\n", k.Device, k.Backend, k.KernelID, k.EntryPoint, k.Size, shortDigest(k.Digest))
	}
	return b.String()
}

// CacheReset is the result of cache reset.
type CacheReset struct {
	Device  string `json:"device,omitempty"`
	Removed int64  `json:"removed"`
}

func (r *CacheReset) Text() string {
	scope := "all devices"
	if r.Device != "" {
		scope = r.Device
	}
	return fmt.Sprintf("✓ Removed %d kernel(s) for %s\n", r.Removed, scope)
}

// NewCacheCommand creates the cache command group.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	var dev string
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or reset the persistent kernel store",
		Long: `Inspect or reset the kernels persisted in the --db store.

Examples:
  kforge cache list --db kforge.db
  kforge cache list --db kforge.db --device 0:1
  kforge cache reset --db kforge.db --device 0:0`,
	}
	cmd.PersistentFlags().StringVarP(&dev, "device", "d", "", "restrict to one device index")

	list := &cobra.Command{
		Use:           "list",
		Short:         "List stored kernels",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, dev, cmd, func(f *OutputFormatter, st *store.Store) error {
				kernels, err := st.ListKernels(context.Background(), dev)
				if err != nil {
					return fail(f, err)
				}
				out := &CacheList{Kernels: make([]CacheEntry, 0, len(kernels))}
				for _, k := range kernels {
					out.Kernels = append(out.Kernels, CacheEntry{
						Device:     k.Device,
						KernelID:   k.KernelID,
						EntryPoint: k.EntryPoint,
						Backend:    k.Backend,
						Digest:     k.Digest,
						Size:       len(k.Code),
						RunID:      k.RunID,
					})
				}
				return f.Success(out)
			})
		},
	}

	reset := &cobra.Command{
		Use:           "reset",
		Short:         "Remove stored kernels",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, dev, cmd, func(f *OutputFormatter, st *store.Store) error {
				n, err := st.DeleteKernels(context.Background(), dev)
				if err != nil {
					return fail(f, err)
				}
				return f.Success(&CacheReset{Device: dev, Removed: n})
			})
		},
	}

	cmd.AddCommand(list, reset)
	return cmd
}

func withStore(opts *RootOptions, dev string, cmd *cobra.Command, fn func(*OutputFormatter, *store.Store) error) error {
	f := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.DB == "" {
		return NewExitError(ExitCommandError, "cache commands need --db")
	}
	if dev != "" {
		if _, err := device.ParseIndex(dev); err != nil {
			return fail(f, err)
		}
	}
	st, err := opts.OpenStore()
	if err != nil {
		return fail(f, err)
	}
	defer st.Close()
	return fn(f, st)
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
