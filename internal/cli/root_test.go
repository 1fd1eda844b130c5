package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "kforge", cmd.Use)
	assert.Contains(t, cmd.Long, "kernel cache")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"compile", "validate", "run", "cache", "config"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err, "Command %s should exist", name)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	define := cmd.PersistentFlags().Lookup("define")
	require.NotNil(t, define)
	assert.Equal(t, "D", define.Shorthand)

	props := cmd.PersistentFlags().Lookup("props")
	require.NotNil(t, props)
	assert.Equal(t, "p", props.Shorthand)

	require.NotNil(t, cmd.PersistentFlags().Lookup("db"))
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "config", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestSplitTaskID(t *testing.T) {
	s, task, err := splitTaskID("s1.t2")
	require.NoError(t, err)
	assert.Equal(t, "s1", s)
	assert.Equal(t, "t2", task)

	for _, bad := range []string{"s1", ".t2", "s1.", ""} {
		_, _, err := splitTaskID(bad)
		assert.Error(t, err, bad)
		assert.Equal(t, ExitCommandError, GetExitCode(err), bad)
	}
}

func TestRootOptions_Properties(t *testing.T) {
	opts := &RootOptions{Defines: []string{"s0.t0.block.x=64", "kforge.debug=true"}}
	props, err := opts.Properties()
	require.NoError(t, err)
	v, ok := props.Get("s0.t0.block.x")
	assert.True(t, ok)
	assert.Equal(t, "64", v)

	opts.Defines = []string{"no-equals"}
	_, err = opts.Properties()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootOptions_OpenStore(t *testing.T) {
	st, err := (&RootOptions{}).OpenStore()
	require.NoError(t, err)
	assert.Nil(t, st)

	st, err = (&RootOptions{DB: ":memory:"}).OpenStore()
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.NoError(t, st.Close())
}
