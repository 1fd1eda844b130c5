package sim

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/kforge/internal/device"
	"github.com/roach88/kforge/internal/events"
	"github.com/roach88/kforge/internal/interp"
	"github.com/roach88/kforge/internal/ir"
)

// Queue is an in-order command queue. Commands complete before Submit or
// Transfer returns, so wait lists only need to name registered events.
type Queue struct {
	dev *Device
}

// Events implements device.Queue.
func (q *Queue) Events() *events.Pool { return q.dev.pool }

func (q *Queue) checkWait(wait []int) error {
	for _, id := range wait {
		if _, _, ok := q.dev.pool.Timers(id); !ok {
			return fmt.Errorf("%s: wait on unknown event %d", q.dev.info.Name, id)
		}
	}
	return nil
}

// Submit implements device.Queue. A launch without a global size runs the
// kernel once and is recorded as a serial kernel.
func (q *Queue) Submit(ctx context.Context, code device.InstalledCode, args []ir.Argument, launch device.Launch, wait []int) (int, error) {
	c, ok := code.(*Code)
	if !ok || c.dev != q.dev {
		return -1, fmt.Errorf("%s: code for %s was not installed on this device", q.dev.info.Name, code.KernelID())
	}
	if !c.IsValid() {
		return -1, fmt.Errorf("%s: kernel %s has no executable graph", q.dev.info.Name, c.kernelID)
	}
	if err := q.checkWait(wait); err != nil {
		return -1, err
	}

	in := interp.New(c.prog.graph, interp.WithCallees(c.prog.callees...), interp.WithMaxSteps(q.dev.maxSteps))
	desc := events.DescSerialKernel
	start := q.dev.clock.Now()
	var stats interp.Stats
	var err error
	if len(launch.Global) == 0 {
		var res interp.Result
		res, err = in.Run(ctx, args)
		stats = res.Stats
	} else {
		desc = events.DescParallelKernel
		stats, err = in.RunGrid(ctx, args, launch.Global, launch.Local)
	}
	stop := q.dev.clock.Now()
	if err != nil {
		return -1, fmt.Errorf("%s: kernel %s: %w", q.dev.info.Name, c.entry, err)
	}

	id, err := q.dev.pool.Register(desc, c.entry, start, stop)
	if err != nil {
		return -1, fmt.Errorf("%s: %w", q.dev.info.Name, err)
	}
	q.dev.logger.Debug("submit",
		"device", q.dev.info.Name,
		"kernel", c.entry,
		"event", id,
		"global", launch.Global,
		"local", launch.Local,
		"steps", stats.Steps,
	)
	return id, nil
}

// Transfer implements device.Queue. HostToDevice copies data into buf;
// DeviceToHost copies the buffer contents back into data.
func (q *Queue) Transfer(ctx context.Context, buf device.Buffer, dir device.Direction, data *ir.Array, wait []int) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}
	b, ok := buf.(*Buffer)
	if !ok {
		return -1, fmt.Errorf("%s: foreign buffer", q.dev.info.Name)
	}
	if err := q.checkWait(wait); err != nil {
		return -1, err
	}
	need := int64(data.Len * data.Elem.Size())
	if need > b.size {
		return -1, fmt.Errorf("%s: transfer of %d bytes exceeds buffer of %d", q.dev.info.Name, need, b.size)
	}
	desc, ok := events.TransferDescriptor(data.Elem.String(), dir == device.HostToDevice)
	if !ok {
		return -1, fmt.Errorf("%s: cannot transfer %s arrays", q.dev.info.Name, data.Elem)
	}

	start := q.dev.clock.Now()
	switch dir {
	case device.HostToDevice:
		b.data = &ir.Array{Elem: data.Elem, Len: data.Len, Data: slices.Clone(data.Data)}
	case device.DeviceToHost:
		if b.data == nil {
			return -1, fmt.Errorf("%s: read from unwritten buffer", q.dev.info.Name)
		}
		copy(data.Data, b.data.Data)
	}
	stop := q.dev.clock.Now()

	id, err := q.dev.pool.Register(desc, "", start, stop)
	if err != nil {
		return -1, fmt.Errorf("%s: %w", q.dev.info.Name, err)
	}
	return id, nil
}
