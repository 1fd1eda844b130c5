package harness

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/roach88/kforge/internal/phases"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Source   string // Emitted source for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Source != "" {
		fmt.Fprintf(&buf, "\nEmitted source:\n")
		for i, line := range strings.Split(strings.TrimRight(e.Source, "\n"), "\n") {
			fmt.Fprintf(&buf, "  %3d %s\n", i+1, line)
		}
	}

	return buf.String()
}

// reportFields maps assertion field names to report counters.
var reportFields = map[string]func(*phases.Report) int{
	"specialization_iterations": func(r *phases.Report) int { return r.SpecializationIterations },
	"fully_unrolled":            func(r *phases.Report) int { return r.FullyUnrolled },
	"partially_unrolled":        func(r *phases.Report) int { return r.PartiallyUnrolled },
	"thread_configs":            func(r *phases.Report) int { return r.ThreadConfigs },
	"unroll_pragmas":            func(r *phases.Report) int { return r.UnrollPragmas },
	"intrinsics_lowered":        func(r *phases.Report) int { return r.IntrinsicsLowered },
	"atomics_specialized":       func(r *phases.Report) int { return r.AtomicsSpecialized },
	"vectors_materialized":      func(r *phases.Report) int { return r.VectorsMaterialized },
}

func assertSource(result *Result, a Assertion) error {
	found := strings.Contains(result.Source, a.Text)
	if found == (a.Type == AssertSourceContains) {
		return nil
	}
	expected, actual := "source contains "+quote(a.Text), "not found"
	if a.Type == AssertSourceAbsent {
		expected, actual = "source without "+quote(a.Text), "found"
	}
	return &AssertionError{Type: a.Type, Expected: expected, Actual: actual, Source: result.Source}
}

func assertEventCount(result *Result, a Assertion) error {
	count := 0
	for _, e := range result.Events {
		if e.Descriptor == a.Descriptor {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertEventCount,
		Expected: fmt.Sprintf("%d %s event(s)", a.Count, a.Descriptor),
		Actual:   fmt.Sprintf("%d", count),
	}
}

func assertReport(result *Result, a Assertion) error {
	if result.Report == nil {
		return &AssertionError{Type: AssertReport, Expected: a.Field, Actual: "no report"}
	}
	got := reportFields[a.Field](result.Report)
	if got == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertReport,
		Expected: fmt.Sprintf("%s = %d", a.Field, a.Count),
		Actual:   fmt.Sprintf("%s = %d", a.Field, got),
	}
}

func assertWarningCount(result *Result, a Assertion) error {
	if len(result.Warnings) == a.Count {
		return nil
	}
	msgs := make([]string, len(result.Warnings))
	for i, w := range result.Warnings {
		msgs[i] = w.Message
	}
	return &AssertionError{
		Type:     AssertWarningCount,
		Expected: fmt.Sprintf("%d warning(s)", a.Count),
		Actual:   fmt.Sprintf("%d %v", len(result.Warnings), msgs),
	}
}

// compareOutput checks an array argument against its expected contents
// and returns a failure message, or "" when they match.
func compareOutput(e OutputExpect, got []float64) string {
	if len(got) != len(e.Values) {
		return fmt.Sprintf("arg %d: expected %d elements, got %d", e.Arg, len(e.Values), len(got))
	}
	if floats.EqualApprox(got, e.Values, e.Tolerance) {
		return ""
	}
	for i := range got {
		if !scalar.EqualWithinAbs(got[i], e.Values[i], e.Tolerance) {
			return fmt.Sprintf("arg %d: element %d: expected %g, got %g (full: %v)", e.Arg, i, e.Values[i], got[i], got)
		}
	}
	return fmt.Sprintf("arg %d: expected %v, got %v", e.Arg, e.Values, got)
}

func quote(s string) string { return fmt.Sprintf("%q", s) }

// EvaluateAssertions runs all assertions against a scenario result.
// Returns a list of error messages (empty if all assertions pass).
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertSourceContains, AssertSourceAbsent:
			err = assertSource(result, a)
		case AssertEventCount:
			err = assertEventCount(result, a)
		case AssertReport:
			err = assertReport(result, a)
		case AssertWarningCount:
			err = assertWarningCount(result, a)
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}
		if err != nil {
			errors = append(errors, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}

	return errors
}
