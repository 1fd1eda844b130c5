package compiler

import (
	"context"
	"fmt"

	"github.com/roach88/kforge/internal/device"
	"github.com/roach88/kforge/internal/ir"
	"github.com/roach88/kforge/internal/meta"
	"github.com/roach88/kforge/internal/store"
)

// Launch returns the grid a task runs with: its global and local work
// when the task is parallel, a single invocation otherwise.
func Launch(task *meta.Task) device.Launch {
	if !task.IsParallel() {
		return device.Launch{}
	}
	return device.Launch{Global: task.GlobalWork(), Local: task.LocalWork()}
}

// Execute submits a compiled kernel to its device and records the event
// as a task profile. With a store, the event is also persisted under the
// compilation's run id. Returns the event id.
func (c *Compiler) Execute(ctx context.Context, task *meta.Task, res *Result, args []ir.Argument) (int, error) {
	dev, err := c.registry.Lookup(res.Device)
	if err != nil {
		return -1, err
	}
	q, err := dev.NewQueue()
	if err != nil {
		return -1, fmt.Errorf("execute %s: %w", res.KernelID, err)
	}
	id, err := q.Submit(ctx, res.Code, args, Launch(task), nil)
	if err != nil {
		return -1, fmt.Errorf("execute %s: %w", res.KernelID, err)
	}
	task.AddProfile(res.Device, id)

	if c.store != nil {
		if e, ok := q.Events().Get(id); ok {
			err := c.store.WriteProfiles(ctx, []store.Profile{{
				RunID:      res.RunID,
				Device:     res.Device.String(),
				EventID:    e.ID,
				Descriptor: e.Descriptor.String(),
				Tag:        e.Tag,
				Start:      e.Start,
				Stop:       e.Stop,
			}})
			if err != nil {
				c.logger.Warn("persist profile failed", "run", res.RunID, "event", id, "error", err)
			}
		}
	}
	c.logger.Debug("kernel executed", "run", res.RunID, "task", res.KernelID, "event", id)
	return id, nil
}
