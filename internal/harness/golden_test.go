package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_AddOneCPU(t *testing.T) {
	// Regenerate with:
	//   go test ./internal/harness -run TestRunWithGolden_AddOneCPU -update
	result, err := RunWithGolden(t, loadScenario(t, "addOne-cpu"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestAssertGolden_ReusesResult(t *testing.T) {
	result, err := Run(loadScenario(t, "addOne-cpu"))
	require.NoError(t, err)
	AssertGolden(t, "addOne-cpu", result)
}
