package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionFlag(t *testing.T) {
	var err error
	output := captureOutput(t, func() {
		err = RunWithArgs("0.1.0-test", []string{"--version"})
	})

	assert.NoError(t, err)
	assert.Contains(t, output, "calwatch 0.1.0-test")
}

func TestVersionOutputFormat(t *testing.T) {
	output := captureOutput(t, func() {
		_ = RunWithArgs("1.2.3", []string{"--version"})
	})

	assert.Equal(t, "calwatch 1.2.3", strings.TrimSpace(output))
}

func TestAllSubcommandsRegistered(t *testing.T) {
	parser, _, _ := buildParser("test")

	for _, name := range []string{"sync", "view", "changes", "status", "serve", "watch", "purge"} {
		assert.NotNil(t, parser.Find(name), "subcommand %s should be registered", name)
	}
}

func TestUnknownSubcommandErrors(t *testing.T) {
	parser, _, _ := buildParser("test")
	_, err := parser.ParseArgs([]string{"frobnicate"})
	require.Error(t, err)
}

func TestGlobalFlagsShared(t *testing.T) {
	_, globals, cmds := buildParser("test")

	assert.Same(t, globals, cmds.Sync.globals)
	assert.Same(t, globals, cmds.View.globals)
	assert.Same(t, globals, cmds.Purge.globals)
}
