// Package device defines the device-context collaborator that compiled
// kernels are handed to: installing code, allocating buffers, submitting
// kernels and transfers to a queue, and describing the device class that
// gates accelerator- and FPGA-specific passes.
//
// The core never talks to drivers itself. Package sim provides an
// in-process implementation backed by the reference interpreter.
package device
