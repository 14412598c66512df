package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"serve", "migrate", "reconcile", "compare", "volume"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "hypolab", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestReconcileCommand_Flags(t *testing.T) {
	for _, name := range []string{"owner", "file", "dry-run", "sheet"} {
		assert.NotNil(t, reconcileCmd.Flags().Lookup(name), "reconcile should have --%s flag", name)
	}
	assert.Equal(t, "false", reconcileCmd.Flags().Lookup("dry-run").DefValue)
}

func TestCompareCommand_Flags(t *testing.T) {
	for _, name := range []string{"owner", "a", "b", "metric", "alpha", "mde", "min-exposure", "method", "format"} {
		assert.NotNil(t, compareCmd.Flags().Lookup(name), "compare should have --%s flag", name)
	}
	assert.Equal(t, formatJSON, compareCmd.Flags().Lookup("format").DefValue)
}

func TestVolumeCommand_Flags(t *testing.T) {
	for _, name := range []string{"owner", "unit", "minimum", "format"} {
		assert.NotNil(t, volumeCmd.Flags().Lookup(name), "volume should have --%s flag", name)
	}
}
