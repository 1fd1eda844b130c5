package harness

import (
	"github.com/roach88/kforge/internal/compiler"
	"github.com/roach88/kforge/internal/events"
	"github.com/roach88/kforge/internal/meta"
	"github.com/roach88/kforge/internal/phases"
)

// EventRecord is one kernel execution recorded by the device event pool.
type EventRecord struct {
	ID         int    `json:"id"`
	Descriptor string `json:"descriptor"`
	Duration   int64  `json:"duration"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expected output and assertion matched.
	Pass bool `json:"pass"`

	RunID      string `json:"run_id"`
	Device     string `json:"device"`
	Backend    string `json:"backend"`
	EntryPoint string `json:"entry_point"`

	// Source is the emitted kernel text compared by golden tests.
	Source string `json:"source"`

	// Outputs holds the final contents of every array argument, by index.
	Outputs map[int][]float64 `json:"outputs,omitempty"`

	Events []EventRecord `json:"events"`
	// Summary aggregates every event on the device pool, and Profiles the
	// event ids the task recorded per device.
	Summary  []events.Stat  `json:"-"`
	Profiles []meta.Profile `json:"-"`
	// DumpEvents and PrintProfiles carry the task's events.dump and
	// profiles.print settings for the caller that prints the result.
	DumpEvents    bool `json:"-"`
	PrintProfiles bool `json:"-"`

	Warnings []compiler.CycleWarning `json:"warnings,omitempty"`
	Report   *phases.Report          `json:"-"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Outputs: make(map[int][]float64),
		Events:  []EventRecord{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
