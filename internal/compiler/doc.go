// Package compiler drives one compilation: it resolves the task's device,
// rewrites the graph with the device's pass pipeline, emits backend code
// and installs it in the device's kernel cache.
//
// # Flow
//
//  1. Validate the request (Validate)
//  2. Resolve the device from the task metadata (meta.Task.ResolveDevice)
//  3. Run phases.ForDevice on a copy of the entry graph and
//     phases.ForCallee on copies of the callees
//  4. Emit OpenCL C or SPIR-V assembly depending on the device backend
//  5. Bind the transformed graphs on devices that execute graphs
//     (device.GraphBinder)
//  6. Install through the per-device cache; the first install of a
//     (task id, entry point) pair wins
//
// Every compilation gets a UUIDv7 run id that tags its log records and its
// persisted kernels.
//
// The request's graphs are never mutated.
package compiler
