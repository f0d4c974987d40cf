package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"process", "extract", "serve", "aliases"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "quote-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestProcessCommand_Flags(t *testing.T) {
	for _, name := range []string{"output", "format", "no-consolidate"} {
		assert.NotNil(t, processCmd.Flags().Lookup(name), "process should have --%s flag", name)
	}
	assert.Equal(t, "o", processCmd.Flags().Lookup("output").Shorthand)
	assert.Equal(t, "false", processCmd.Flags().Lookup("no-consolidate").DefValue)
}

func TestExtractCommand_Flags(t *testing.T) {
	require.NotNil(t, extractCmd.Flags().Lookup("json"))
	require.NotNil(t, extractCmd.Flags().Lookup("filter"))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestProcessCommand_RequiresFiles(t *testing.T) {
	assert.Error(t, processCmd.Args(processCmd, nil))
	assert.NoError(t, processCmd.Args(processCmd, []string{"a.csv"}))
}
