// Package interp executes ir graphs directly. It is the semantic reference
// the transformation passes are tested against and the execution engine of
// the simulated device.
//
// Work-items of a grid run one after another on the calling goroutine, so
// barriers are no-ops and kernels that communicate through local memory
// across work-items are not modeled.
package interp
