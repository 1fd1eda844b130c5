package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	scenariosDir = "../harness/testdata/scenarios"
	goldenDir    = "../harness/testdata/golden"
)

// writeScenario writes a scenario over testdata/addOne.yaml into dir.
func writeScenario(t *testing.T, dir, name string, want []int) {
	t.Helper()
	graph, err := filepath.Abs(addOneGraph)
	require.NoError(t, err)
	body := fmt.Sprintf(`name: %s
description: "addOne on the CPU"
graph: %s
properties:
  s0.t0.device: "0:1"
args:
  - {array: int, values: [1, 2, 3]}
  - {array: int, len: 3}
expect:
  - {arg: 1, values: %v}
`, name, graph, jsonInts(want))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(body), 0o644))
}

func jsonInts(v []int) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestRunCommand_AllScenariosPass(t *testing.T) {
	out, _, err := execute(t, "run", scenariosDir, "--golden-dir", goldenDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ addOne-cpu")
	assert.Contains(t, out, "✓ saxpy-spirv")
	assert.Contains(t, out, "serial-kernel")
	assert.Contains(t, out, "Summary: 4 passed, 0 failed, 4 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestRunCommand_Filter(t *testing.T) {
	out, _, err := execute(t, "run", scenariosDir, "--golden-dir", goldenDir, "--filter", "addOne-*.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Summary: 3 passed, 0 failed, 3 total")
	assert.NotContains(t, out, "saxpy")
}

func TestRunCommand_InvalidFilter(t *testing.T) {
	_, _, err := execute(t, "run", scenariosDir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCommand_JSON(t *testing.T) {
	out, _, err := execute(t, "run", scenariosDir, "--golden-dir", goldenDir, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 4, resp.Data.Total)
	assert.Equal(t, 4, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 4)
	assert.Equal(t, "addOne-cpu", resp.Data.Scenarios[0].Name)
	assert.Equal(t, "addOne-cpu-1", resp.Data.Scenarios[0].RunID)
	assert.Equal(t, "0:1", resp.Data.Scenarios[0].Device)
}

func TestRunCommand_UpdateGolden(t *testing.T) {
	dir := t.TempDir()
	out, _, err := execute(t, "run", scenariosDir, "--golden-dir", dir, "--filter", "addOne-cpu.yaml", "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ addOne-cpu (golden updated)")

	got, err := os.ReadFile(filepath.Join(dir, "addOne-cpu.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(goldenDir, "addOne-cpu.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestRunCommand_MissingGolden(t *testing.T) {
	out, _, err := execute(t, "run", scenariosDir, "--golden-dir", t.TempDir(), "--filter", "addOne-cpu.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ addOne-cpu")
	assert.Contains(t, out, "failed to read golden file")
}

func TestRunCommand_GoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "addOne-cpu.golden"), []byte("stale"), 0o644))

	out, _, err := execute(t, "run", scenariosDir, "--golden-dir", dir, "--filter", "addOne-cpu.yaml")
	require.Error(t, err)
	assert.Contains(t, out, "does not match golden file")
}

func TestRunCommand_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "good", []int{2, 3, 4})
	writeScenario(t, dir, "wrong", []int{0, 0, 0})

	out, _, err := execute(t, "run", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ good")
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "Summary: 1 passed, 1 failed, 2 total")
}

func TestRunCommand_FailingScenarioJSON(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "wrong", []int{0, 0, 0})

	out, _, err := execute(t, "run", dir, "--format", "json")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_SCENARIO_FAILED", resp.Error.Code)
}

func TestRunCommand_LoadError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\nbogus: 1\n"), 0o644))

	out, _, err := execute(t, "run", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestRunCommand_EmptyDir(t *testing.T) {
	out, _, err := execute(t, "run", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestRunCommand_MissingDir(t *testing.T) {
	_, _, err := execute(t, "run", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}
