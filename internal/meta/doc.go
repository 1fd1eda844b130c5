// Package meta resolves per-task configuration.
//
// Configuration lives in an immutable Properties map of dotted keys. A
// schedule with id "s" reads keys "s.<suffix>" and a task "t" inside it
// reads "s.t.<suffix>". Every lookup walks task, then schedule, then the
// process default under the "kforge." prefix, then the built-in default,
// and stops at the first explicit value.
//
// All values are validated when a Schedule or Task is constructed; a
// malformed value is reported as a *ConfigError and never surfaces later.
package meta
