package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "tplscope", cmd.Use)
	assert.Contains(t, cmd.Long, "placeholders")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "test", "inspect", "decode", "validate"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	configFlag := runCmd.Flags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
	assert.Equal(t, "", configFlag.DefValue)
}

func TestInspectCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	inspectCmd, _, err := cmd.Find([]string{"inspect"})
	require.NoError(t, err)

	for _, name := range []string{"db", "batch", "summary", "limit"} {
		assert.NotNil(t, inspectCmd.Flags().Lookup(name), "flag %s", name)
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := executeCommand(t, "--format", "xml", "decode", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}
