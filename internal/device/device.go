package device

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/kforge/internal/events"
	"github.com/roach88/kforge/internal/ir"
)

// Class is the coarse device category.
type Class uint8

const (
	ClassUnknown Class = iota
	ClassCPU
	ClassGPU
	ClassFPGA
	ClassAccelerator
)

var classNames = [...]string{"unknown", "cpu", "gpu", "fpga", "accelerator"}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("class(%d)", c)
}

// IsAccelerator reports whether the class runs work-groups of threads.
func (c Class) IsAccelerator() bool {
	return c == ClassGPU || c == ClassFPGA || c == ClassAccelerator
}

// ClassByName resolves a class name case-insensitively.
func ClassByName(name string) (Class, bool) {
	for i, n := range classNames {
		if strings.EqualFold(n, name) {
			return Class(i), true
		}
	}
	return ClassUnknown, false
}

// Backend selects the code emitter for a device.
type Backend uint8

const (
	BackendOpenCL Backend = iota
	BackendSPIRV
)

func (b Backend) String() string {
	switch b {
	case BackendOpenCL:
		return "opencl"
	case BackendSPIRV:
		return "spirv"
	}
	return fmt.Sprintf("backend(%d)", b)
}

// BackendByName resolves "opencl" or "spirv".
func BackendByName(name string) (Backend, bool) {
	switch strings.ToLower(name) {
	case "opencl":
		return BackendOpenCL, true
	case "spirv":
		return BackendSPIRV, true
	}
	return 0, false
}

// Info describes a device.
type Info struct {
	Name    string
	Class   Class
	Backend Backend
	// GlobalMemory and LocalMemory are the memory bounds in bytes.
	GlobalMemory int64
	LocalMemory  int64
	MaxWorkGroup [3]int
}

// InstalledCode is the opaque handle of a kernel installed on a device.
type InstalledCode interface {
	KernelID() string
	EntryPoint() string
	IsValid() bool
}

// Installer installs emitted kernel source or binaries on a device.
type Installer interface {
	Install(ctx context.Context, kernelID, entryPoint string, code []byte) (InstalledCode, error)
}

// Releaser is implemented by installers that want back the handles a
// caller decided not to keep, such as the loser of a concurrent install.
type Releaser interface {
	Release(code InstalledCode)
}

// Buffer is device memory.
type Buffer interface {
	Size() int64
}

// Direction of a buffer transfer.
type Direction uint8

const (
	HostToDevice Direction = iota
	DeviceToHost
)

// Launch describes the grid of a kernel submission. Nil sizes run the
// kernel once.
type Launch struct {
	Global []int
	Local  []int
}

// Queue is a command queue. Every command returns the event-pool slot
// recording its timing; wait lists are slot ids of earlier commands.
type Queue interface {
	Submit(ctx context.Context, code InstalledCode, args []ir.Argument, launch Launch, wait []int) (int, error)
	Transfer(ctx context.Context, buf Buffer, dir Direction, data *ir.Array, wait []int) (int, error)
	Events() *events.Pool
}

// Context is the device-context collaborator.
type Context interface {
	Installer
	Info() Info
	Allocate(size int64) (Buffer, error)
	NewQueue() (Queue, error)
}

// GraphBinder is implemented by devices that execute the graph a kernel was
// emitted from rather than the emitted code. The compiler binds the
// transformed graph before installing.
type GraphBinder interface {
	BindGraph(kernelID string, g *ir.Graph, callees []*ir.Graph)
}
