package sim

import (
	"github.com/roach88/kforge/internal/device"
)

// Standard simulated devices.
var (
	GPU = device.Info{
		Name: "sim-gpu", Class: device.ClassGPU, Backend: device.BackendOpenCL,
		GlobalMemory: 1 << 30, LocalMemory: 48 << 10, MaxWorkGroup: [3]int{1024, 1024, 64},
	}
	CPU = device.Info{
		Name: "sim-cpu", Class: device.ClassCPU, Backend: device.BackendOpenCL,
		GlobalMemory: 1 << 32, LocalMemory: 32 << 10, MaxWorkGroup: [3]int{8192, 8192, 8192},
	}
	FPGA = device.Info{
		Name: "sim-fpga", Class: device.ClassFPGA, Backend: device.BackendOpenCL,
		GlobalMemory: 1 << 30, LocalMemory: 16 << 10, MaxWorkGroup: [3]int{256, 1, 1},
	}
	SPIRVGPU = device.Info{
		Name: "sim-spirv-gpu", Class: device.ClassGPU, Backend: device.BackendSPIRV,
		GlobalMemory: 1 << 30, LocalMemory: 48 << 10, MaxWorkGroup: [3]int{1024, 1024, 64},
	}
)

// NewRegistry registers the standard devices: backend 0 holds the OpenCL
// GPU (0:0), CPU (0:1) and FPGA (0:2); backend 1 holds the SPIR-V GPU (1:0).
func NewRegistry(opts ...Option) *device.Registry {
	reg := device.NewRegistry()
	reg.Register(0, New(GPU, opts...))
	reg.Register(0, New(CPU, opts...))
	reg.Register(0, New(FPGA, opts...))
	reg.Register(1, New(SPIRVGPU, opts...))
	return reg
}
