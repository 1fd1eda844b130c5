// Package phases implements the graph-transformation pipeline that turns a
// generic parallel-loop graph into one that is legal and efficient for a
// device class.
//
// Every pass implements Pass. Passes receive an immutable Options value and
// a per-run Context; they never read global state. After each pass the
// pipeline verifies the graph when Options.VerifyEachPass is set, so a pass
// that leaves a dangling edge fails the compilation at the pass that broke
// it rather than in the emitter.
//
// Standard order (see ForDevice):
//
//	intrinsics -> atomics -> vectors -> task specialization ->
//	full unroll -> partial unroll -> thread config -> canonicalize -> dce
package phases
