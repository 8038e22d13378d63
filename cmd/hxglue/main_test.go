package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		_ = formatCmd.Flags().Set("tz", "")
		_ = scriptCmd.Flags().Set("no-helpers", "false")
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestScriptCommand(t *testing.T) {
	out, err := execute(t, "script")
	require.NoError(t, err)
	assert.Contains(t, out, `document.addEventListener("htmx:beforeSwap"`)
	assert.Contains(t, out, "function formFormatTime(t)")
}

func TestScriptCommand_NoHelpers(t *testing.T) {
	out, err := execute(t, "script", "--no-helpers")
	require.NoError(t, err)
	assert.Contains(t, out, "htmx:beforeSwap")
	assert.NotContains(t, out, "dayjs")
}

func TestFormatCommand(t *testing.T) {
	out, err := execute(t, "format", "1709579100000", "--tz", "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, "Mon, Mar 04 2:05 PM\n2024-03-04T14:05\n", out)
}

func TestFormatCommand_Invalid(t *testing.T) {
	_, err := execute(t, "format", "yesterday-ish", "--tz", "UTC")
	require.Error(t, err)
}

func TestFormatCommand_BadZone(t *testing.T) {
	_, err := execute(t, "format", "2024-03-04", "--tz", "Nowhere/Land")
	require.Error(t, err)
}

func TestServe_BadConfig(t *testing.T) {
	_, err := execute(t, "serve", "--config", t.TempDir()+"/missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
	configPath = ""
}
