package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestVersionCommand(t *testing.T) {
	isolate(t)

	stdout, _, err := executeCommand("", "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", stdout)
}

func TestVersionCommandJSON(t *testing.T) {
	isolate(t)

	stdout, _, err := executeCommand("", "version", "--output", "json")
	require.NoError(t, err)
	assert.Equal(t, "dev", gjson.Get(stdout, "version").String())
	assert.Equal(t, "unknown", gjson.Get(stdout, "commit").String())
	assert.Contains(t, gjson.Get(stdout, "go_version").String(), "go")
}

func TestVersionCommandYAML(t *testing.T) {
	isolate(t)

	stdout, _, err := executeCommand("", "version", "--output", "yaml")
	require.NoError(t, err)
	assert.Contains(t, stdout, "version: dev")
	assert.Contains(t, stdout, "built_by: unknown")
}

func TestBuildVariables(t *testing.T) {
	// Test that build variables have sensible defaults
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, Commit)
	assert.NotEmpty(t, Date)
	assert.NotEmpty(t, GoVersion)
	assert.Contains(t, GoVersion, "go")
}
