package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "loginsight", cmd.Use)
	assert.Contains(t, cmd.Long, "LOGINSIGHT_")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"url", "events", "aggregate", "ingest", "history"}

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

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	journalFlag := cmd.PersistentFlags().Lookup("journal")
	require.NotNil(t, journalFlag)
	assert.Equal(t, "", journalFlag.DefValue)
}

func TestSubcommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flag    string
		short   string
		def     string
	}{
		{"url", "absolute", "a", "false"},
		{"events", "limit", "n", "0"},
		{"aggregate", "limit", "n", "0"},
		{"ingest", "gzip", "z", "false"},
		{"history", "count", "n", "20"},
	}

	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.flag, func(t *testing.T) {
			sub, _, err := NewRootCommand().Find([]string{tt.command})
			require.NoError(t, err)

			f := sub.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.short, f.Shorthand)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	res := execute(t, nil, "--format", "invalid", "history")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "invalid format")
}

func TestRootOptions_Getenv(t *testing.T) {
	opts := &RootOptions{getenv: func(k string) string { return "v:" + k }}
	assert.Equal(t, "v:LOGINSIGHT_HOST", opts.Getenv("LOGINSIGHT_HOST"))
}
