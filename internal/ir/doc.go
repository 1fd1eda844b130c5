// Package ir provides the graph model that every other kforge package
// operates on.
//
// A Graph is an arena of Nodes addressed by NodeID. Fixed nodes form the
// control-flow skeleton (Start, If, Merge, LoopBegin, ...) linked through
// successor edges; floating nodes (arithmetic, constants, phis) hang off it
// through data inputs. The reverse-use index is maintained incrementally by
// the Graph mutators, so all edge changes must go through Graph methods.
//
// ir imports nothing internal. Analysis helpers (loop detection, cloning,
// verification, canonicalization, dead-code elimination) live here so that
// passes and backends share one definition of graph shape.
package ir
