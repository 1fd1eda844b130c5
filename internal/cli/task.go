package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/kforge/internal/device"
	"github.com/roach88/kforge/internal/meta"
)

// TaskFlags are the per-invocation task overrides shared by compile and
// config.
type TaskFlags struct {
	Device         string // task device index override
	ScheduleDevice string // schedule device index override
	Domain         string // comma-separated iteration domain
	Global         string // explicit global work size
	Local          string // explicit local work size
}

func (f *TaskFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Device, "device", "d", "", "device index backend:device, overrides properties")
	cmd.Flags().StringVar(&f.ScheduleDevice, "schedule-device", "", "device index for every task of the schedule without its own override")
	cmd.Flags().StringVar(&f.Domain, "domain", "", "iteration domain, e.g. 1024 or 64,64")
	cmd.Flags().StringVar(&f.Global, "global", "", "global work size, must match the domain rank")
	cmd.Flags().StringVar(&f.Local, "local", "", "local work size, must match the domain rank")
}

// apply pins the devices and work sizes on task. The domain is set last so
// explicit global and local sizes are taken verbatim.
func (f *TaskFlags) apply(task *meta.Task, reg *device.Registry) error {
	if f.ScheduleDevice != "" {
		idx, err := device.ParseIndex(f.ScheduleDevice)
		if err != nil {
			return err
		}
		task.Schedule().SetDevice(idx)
	}
	if f.Device != "" {
		idx, err := device.ParseIndex(f.Device)
		if err != nil {
			return err
		}
		task.SetDevice(idx)
	}
	if f.Global != "" {
		dims, err := parseDims(f.Global)
		if err != nil {
			return err
		}
		if err := task.SetGlobalWork(dims); err != nil {
			return err
		}
	}
	if f.Local != "" {
		dims, err := parseDims(f.Local)
		if err != nil {
			return err
		}
		if err := task.SetLocalWork(dims); err != nil {
			return err
		}
	}
	if f.Domain == "" {
		return nil
	}
	dims, err := parseDims(f.Domain)
	if err != nil {
		return err
	}
	dev, _, err := task.ResolveDevice(reg)
	if err != nil {
		return err
	}
	return task.SetDomain(dims, dev.Info().Class)
}

// isManual reports whether the task's device came from a flag rather than
// properties.
func isManual(task *meta.Task) bool {
	return task.IsDeviceManuallySet() || task.Schedule().IsDeviceManuallySet()
}
