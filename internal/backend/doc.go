// Package backend holds the emitter infrastructure shared by the code
// generators: lazily populated tables, a block table with a scope stack,
// and the structured walker that drives a backend Lowerer over a graph.
//
// The walker assumes the structured shape produced by ir.Builder and kept
// by the transformation passes: two-way If regions closed by a Merge and
// canonical loops whose header If exits through a LoopExit. Anything else
// is reported as an UnimplementedError.
package backend
