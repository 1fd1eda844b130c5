// Package harness runs kernel scenarios: a graph document compiled for
// one task, executed once on the simulated devices and checked against
// expected outputs, assertions and golden source files.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: addOne-gpu
//	description: "out[i] = in[i] + 1 on the simulated GPU"
//	graph: graphs/addOne.yaml
//	property_files:
//	  - props/gpu.cue
//	properties:
//	  s0.t0.device: "0:0"
//	domain: [7]
//	specialize: false
//	args:
//	  - {array: int, values: [3, 1, 4, 1, 5, 9, 2]}
//	  - {array: int, len: 7}
//	expect:
//	  - {arg: 1, values: [4, 2, 5, 2, 6, 10, 3]}
//	assertions:
//	  - {type: source_contains, text: "__kernel void addOne"}
//	  - {type: event_count, descriptor: parallel-kernel, count: 1}
//	  - {type: report, field: thread_configs, count: 1}
//	golden: true
//
// Paths are relative to the scenario file. Properties use the dotted keys
// of package meta; the task defaults to s0.t0.
//
// # Assertion Types
//
//   - source_contains / source_absent: text in the emitted kernel
//   - event_count: kernel events recorded with a descriptor
//   - report: a transformation report counter
//   - warning_count: recursive call-cycle warnings
//
// # Golden Files
//
// With golden set, the emitted source is compared against
// testdata/golden/<name>.golden using goldie. To regenerate:
//
//	go test ./internal/harness -update
//
// # Determinism
//
// Each run gets a fresh simulated registry with a deterministic clock
// and run ids of the form <name>-<n>, so event durations and persisted
// profiles are identical across runs.
package harness
