package meta

import (
	"strconv"
	"strings"

	"github.com/roach88/kforge/internal/device"
)

// Property suffixes.
const (
	KeyDevice          = "device"
	KeyLocalWork       = "local.workgroup.size"
	KeyGlobalWork      = "global.workgroup.size"
	KeyCompilerFlags   = "compiler.flags"
	KeyCoarseness      = "coarseness"
	KeyParallelise     = "parallelise"
	KeyVectorise       = "vectorise"
	KeyDebug           = "debug"
	KeyEventsDump      = "events.dump"
	KeyProfilesPrint   = "profiles.print"
	KeyBlockX          = "block.x"
	KeyBlock2DX        = "block2d.x"
	KeyBlock2DY        = "block2d.y"
	KeyCPUConfig       = "cpu.config"
	KeyEventsCircular  = "events.circular"
	KeyEventsWindow    = "events.window"
	KeyUnrollFactor    = "unroll.factor"
	KeyMaxGraphSize    = "max.graph.size"
	KeyPartialUnroll   = "partial.unroll"
	KeyFullUnroll      = "full.unroll"
	KeySpecializeIters = "specialize.iterations"
	KeyThreadConfig    = "threadconfig"
	KeyVerify          = "verify"
)

type setting struct {
	suffix string
	def    string
	check  func(string) string
}

// settings lists every recognized suffix with its built-in default. Keys
// outside this table are ignored.
var settings = []setting{
	{KeyDevice, "", checkDevice},
	{KeyLocalWork, "", checkDims},
	{KeyGlobalWork, "", checkDims},
	{KeyCompilerFlags, "-w", checkFlags},
	{KeyCoarseness, "", checkDims},
	{KeyParallelise, "true", checkBool},
	{KeyVectorise, "true", checkBool},
	{KeyDebug, "false", checkBool},
	{KeyEventsDump, "true", checkBool},
	{KeyProfilesPrint, "false", checkBool},
	{KeyBlockX, "256", checkPositive},
	{KeyBlock2DX, "4", checkPositive},
	{KeyBlock2DY, "4", checkPositive},
	{KeyCPUConfig, "", nil},
	{KeyEventsCircular, "true", checkBool},
	{KeyEventsWindow, "1024", checkPositive},
	{KeyUnrollFactor, "4", checkPositive},
	{KeyMaxGraphSize, "3000", checkPositive},
	{KeyPartialUnroll, "true", checkBool},
	{KeyFullUnroll, "true", checkBool},
	{KeySpecializeIters, "10", checkPositive},
	{KeyThreadConfig, "64,1,1", checkDims},
	{KeyVerify, "true", checkBool},
}

// AllowedCompilerFlags is the OpenCL build-option allow-list.
var AllowedCompilerFlags = []string{
	"-cl-single-precision-constant",
	"-cl-denorms-are-zero",
	"-cl-opt-disable",
	"-cl-strict-aliasing",
	"-cl-mad-enable",
	"-cl-no-signed-zeros",
	"-cl-unsafe-math-optimizations",
	"-cl-finite-math-only",
	"-cl-fast-relaxed-math",
	"-w",
	"-cl-std=CL2.0",
}

// The check functions return an empty reason for a valid value.

func checkBool(s string) string {
	if _, err := strconv.ParseBool(s); err != nil {
		return "not a boolean"
	}
	return ""
}

func checkPositive(s string) string {
	n, err := strconv.Atoi(s)
	if err != nil {
		return "not an integer"
	}
	if n <= 0 {
		return "must be positive"
	}
	return ""
}

func checkDims(s string) string {
	if s == "" {
		return ""
	}
	dims, err := parseDims(s)
	if err != nil {
		return err.Error()
	}
	if len(dims) > 3 {
		return "more than 3 dimensions"
	}
	return ""
}

func checkDevice(s string) string {
	if s == "" {
		return ""
	}
	if _, err := device.ParseIndex(s); err != nil {
		return "want backend:device"
	}
	return ""
}

func checkFlags(s string) string {
	for _, f := range strings.Fields(s) {
		if !isAllowedFlag(f) {
			return "unsupported compiler flag " + f
		}
	}
	return ""
}

func isAllowedFlag(f string) bool {
	for _, a := range AllowedCompilerFlags {
		if f == a {
			return true
		}
	}
	return false
}

type dimsError string

func (e dimsError) Error() string { return string(e) }

// parseDims parses a comma-separated list of positive integers.
func parseDims(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, dimsError("not a list of integers")
		}
		if n <= 0 {
			return nil, dimsError("sizes must be positive")
		}
		out = append(out, n)
	}
	return out, nil
}
