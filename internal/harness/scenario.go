package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/roach88/kforge/internal/ir"
)

// Scenario defines a kernel scenario: a graph compiled for one task and
// run once on a simulated device.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Graph is the YAML graph file, relative to the scenario file.
	Graph string `yaml:"graph"`

	// PropertyFiles are CUE, YAML or .properties files merged in order.
	PropertyFiles []string `yaml:"property_files,omitempty"`

	// Properties are applied after PropertyFiles.
	Properties map[string]string `yaml:"properties,omitempty"`

	// Schedule and Task name the task record. Default s0.t0.
	Schedule string `yaml:"schedule,omitempty"`
	Task     string `yaml:"task,omitempty"`

	// Domain is the iteration space of a parallel launch. Empty runs the
	// kernel once.
	Domain []int `yaml:"domain,omitempty"`

	// Specialize hands the arguments to the compiler as known values.
	Specialize bool `yaml:"specialize,omitempty"`

	Args []ArgSpec `yaml:"args,omitempty"`

	// Expect lists array arguments and their contents after execution.
	Expect []OutputExpect `yaml:"expect,omitempty"`

	Assertions []Assertion `yaml:"assertions,omitempty"`

	// Golden compares the emitted source with testdata/golden/<Name>.golden.
	Golden bool `yaml:"golden,omitempty"`
}

// ArgSpec describes one kernel argument. Exactly one of Array and Scalar
// names the element or scalar kind.
type ArgSpec struct {
	// Array is the element kind of an array argument.
	Array string `yaml:"array,omitempty"`
	// Scalar is the kind of a scalar argument.
	Scalar string `yaml:"scalar,omitempty"`

	// Values are the array elements. When empty, the array holds Len
	// zeros.
	Values []float64 `yaml:"values,omitempty"`
	Len    int       `yaml:"len,omitempty"`

	// Value is the scalar payload.
	Value float64 `yaml:"value,omitempty"`
}

// OutputExpect is the expected content of array argument Arg.
type OutputExpect struct {
	Arg    int       `yaml:"arg"`
	Values []float64 `yaml:"values"`
	// Tolerance is the absolute tolerance for float comparison.
	Tolerance float64 `yaml:"tolerance,omitempty"`
}

// Assertion validates the compilation artifact or the execution record.
type Assertion struct {
	// Type specifies the assertion type:
	// - "source_contains": Text appears in the emitted source
	// - "source_absent": Text does not appear in the emitted source
	// - "event_count": Exactly Count events with Descriptor were recorded
	// - "report": Report counter Field equals Count
	// - "warning_count": Exactly Count call-cycle warnings
	Type string `yaml:"type"`

	Text       string `yaml:"text,omitempty"`
	Descriptor string `yaml:"descriptor,omitempty"`
	Field      string `yaml:"field,omitempty"`
	Count      int    `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertSourceContains = "source_contains"
	AssertSourceAbsent   = "source_absent"
	AssertEventCount     = "event_count"
	AssertReport         = "report"
	AssertWarningCount   = "warning_count"
)

// LoadScenario reads and parses a scenario YAML file. Graph and property
// file paths are resolved relative to the scenario's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	scenario.Graph = resolve(base, scenario.Graph)
	for i, p := range scenario.PropertyFiles {
		scenario.PropertyFiles[i] = resolve(base, p)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// FindScenarios returns the scenario files under dir whose path relative
// to dir matches filter, in lexical order. An empty filter matches every
// .yaml file.
func FindScenarios(dir, filter string) ([]string, error) {
	if filter == "" {
		filter = "**/*.yaml"
	}
	if !doublestar.ValidatePattern(filter) {
		return nil, fmt.Errorf("invalid filter pattern %q", filter)
	}
	matches, err := doublestar.Glob(os.DirFS(dir), filter)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(matches)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, filepath.Join(dir, filepath.FromSlash(m)))
	}
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Graph == "" {
		return fmt.Errorf("graph is required")
	}
	if _, err := os.Stat(s.Graph); os.IsNotExist(err) {
		return fmt.Errorf("graph file not found: %s", s.Graph)
	}
	for _, p := range s.PropertyFiles {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("property file not found: %s", p)
		}
	}
	for i, d := range s.Domain {
		if d < 1 {
			return fmt.Errorf("domain[%d]: must be positive", i)
		}
	}
	if len(s.Domain) > 3 {
		return fmt.Errorf("domain has %d dimensions, at most 3", len(s.Domain))
	}

	for i, a := range s.Args {
		if err := validateArg(i, a); err != nil {
			return err
		}
	}

	for i, e := range s.Expect {
		if e.Arg < 0 || e.Arg >= len(s.Args) {
			return fmt.Errorf("expect[%d]: arg %d out of range", i, e.Arg)
		}
		if s.Args[e.Arg].Array == "" {
			return fmt.Errorf("expect[%d]: arg %d is not an array", i, e.Arg)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	if len(s.Expect) == 0 && len(s.Assertions) == 0 && !s.Golden {
		return fmt.Errorf("scenario checks nothing: add expect, assertions or golden")
	}
	return nil
}

func validateArg(i int, a ArgSpec) error {
	switch {
	case a.Array != "" && a.Scalar != "":
		return fmt.Errorf("args[%d]: array and scalar are exclusive", i)
	case a.Array != "":
		if _, ok := ir.KindByName(a.Array); !ok {
			return fmt.Errorf("args[%d]: unknown element kind %q", i, a.Array)
		}
		if a.Len < 0 {
			return fmt.Errorf("args[%d]: len must be non-negative", i)
		}
	case a.Scalar != "":
		if _, ok := ir.KindByName(a.Scalar); !ok {
			return fmt.Errorf("args[%d]: unknown kind %q", i, a.Scalar)
		}
	default:
		return fmt.Errorf("args[%d]: array or scalar is required", i)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertSourceContains, AssertSourceAbsent:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for %s", index, a.Type)
		}
	case AssertEventCount:
		if a.Descriptor == "" {
			return fmt.Errorf("assertions[%d]: descriptor is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertReport:
		if _, ok := reportFields[a.Field]; !ok {
			return fmt.Errorf("assertions[%d]: unknown report field %q", index, a.Field)
		}
	case AssertWarningCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for warning_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
