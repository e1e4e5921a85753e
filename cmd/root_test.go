package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"resolve", "serve", "version"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "orgmetrics", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestResolveCommand_Flags(t *testing.T) {
	mode := resolveCmd.Flags().Lookup("mode")
	require.NotNil(t, mode, "resolve command should have --mode flag")
	assert.Equal(t, "", mode.DefValue)

	timeout := resolveCmd.Flags().Lookup("timeout")
	require.NotNil(t, timeout, "resolve command should have --timeout flag")
	assert.Equal(t, "0s", timeout.DefValue)

	require.NotNil(t, resolveCmd.Flags().Lookup("compact"))
}

func TestResolveCommand_RequiresReference(t *testing.T) {
	assert.Error(t, resolveCmd.Args(resolveCmd, nil))
	assert.Error(t, resolveCmd.Args(resolveCmd, []string{"a", "b"}))
	assert.NoError(t, resolveCmd.Args(resolveCmd, []string{"acme"}))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestVersionCommand_PrintsVersion(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, version+"\n", out.String())
}
