package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addOneGraph = "testdata/addOne.yaml"

func TestCompileCommand_CPUGolden(t *testing.T) {
	out, _, err := execute(t, "compile", addOneGraph,
		"-D", "s0.t0.device=0:1", "-D", "s0.t0.partial.unroll=false")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "compile-addOne-cpu", []byte(out))
}

func TestCompileCommand_DeviceFlagOverridesProperties(t *testing.T) {
	out, _, err := execute(t, "compile", addOneGraph, "-D", "s0.t0.device=0:1", "--device", "1:0")
	require.NoError(t, err)
	assert.Contains(t, out, "OpEntryPoint")
}

func TestCompileCommand_ParallelDomain(t *testing.T) {
	out, _, err := execute(t, "compile", addOneGraph, "--domain", "64", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		RunID  string        `json:"run_id"`
		Data   CompileOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, resp.RunID, resp.Data.RunID)
	assert.Equal(t, "0:0", resp.Data.Device)
	assert.Equal(t, "opencl", resp.Data.Backend)
	assert.Equal(t, "addOne", resp.Data.EntryPoint)
	assert.Equal(t, []int{64}, resp.Data.Global)
	assert.NotEmpty(t, resp.Data.Local)
	assert.NotEmpty(t, resp.Data.Digest)
	assert.Contains(t, resp.Data.Source, "__kernel __attribute__((reqd_work_group_size(64, 1, 1))) void addOne(")
	require.NotNil(t, resp.Data.Report)
}

func TestCompileCommand_ExplicitWorkSizes(t *testing.T) {
	out, _, err := execute(t, "compile", addOneGraph, "--domain", "64", "--global", "128", "--local", "32",
		"-D", "s0.t0.coarseness=2", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data CompileOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []int{128}, resp.Data.Global)
	assert.Equal(t, []int{32}, resp.Data.Local)
	assert.Equal(t, []int{2}, resp.Data.Coarseness)
}

func TestCompileCommand_OutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "addOne.cl")
	out, _, err := execute(t, "compile", addOneGraph, "-D", "s0.t0.device=0:1", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Compiled addOne for 0:1 (opencl) to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "__kernel void addOne(")
}

func TestCompileCommand_PropertyFile(t *testing.T) {
	props := filepath.Join(t.TempDir(), "kforge.properties")
	require.NoError(t, os.WriteFile(props, []byte("s0.device=0:2\n"), 0o644))

	out, _, err := execute(t, "compile", addOneGraph, "-p", props, "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"device": "0:2"`)
}

func TestCompileCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"missing graph", []string{"compile", "testdata/missing.yaml"}, "E005"},
		{"unknown device", []string{"compile", addOneGraph, "--device", "4:0"}, ErrCodeDevice},
		{"bad flag", []string{"compile", addOneGraph, "-D", "s0.t0.compiler.flags=-O3"}, ""},
		{"bad domain", []string{"compile", addOneGraph, "--domain", "0"}, ""},
		{"bad task id", []string{"compile", addOneGraph, "--task", "t0"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			if tt.code != "" {
				assert.Contains(t, out, "Error ["+tt.code+"]")
			}
		})
	}
}

func TestCompileCommand_MissingArgs(t *testing.T) {
	_, _, err := execute(t, "compile")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestParseDims(t *testing.T) {
	dims, err := parseDims("64, 32")
	require.NoError(t, err)
	assert.Equal(t, []int{64, 32}, dims)

	for _, bad := range []string{"", "a", "64,-1", "0"} {
		_, err := parseDims(bad)
		assert.Error(t, err, bad)
	}
}
