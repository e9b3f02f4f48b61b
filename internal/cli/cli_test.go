package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDocument = `
states:
  X:
    name: Example
    initial: 0.1
    category: capability
parameters:
  k:
    value: 0.5
equations:
  X:
    target_expr: "0.5"
    rate_expr: "p.k * (X_target - X)"
scenarios:
  fast:
    param_overrides:
      k: 2.0
simulation:
  t_end: 20
  steps: 101
kpis:
  health:
    name: Health
    formula: X
    good_threshold: 0.45
    warning_threshold: 0.3
    higher_is_better: true
`

func writeSampleModel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stockflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleDocument), 0o644))
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLoadSettings_Defaults(t *testing.T) {
	settings, err := LoadSettings("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultModelPath, settings.ModelPath)
	assert.Equal(t, DefaultStorePath, settings.StorePath)
	assert.Equal(t, DefaultPort, settings.Port)
	assert.False(t, settings.Watch)
}

func TestLoadSettings_SettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9000\nmodel_path: other.yaml\n"), 0o644))

	settings, err := LoadSettings(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 9000, settings.Port)
	assert.Equal(t, "other.yaml", settings.ModelPath)
	assert.Equal(t, DefaultStorePath, settings.StorePath)
}

func TestLoadSettings_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9000\n"), 0o644))
	t.Setenv("STOCKFLOW_PORT", "9001")

	settings, err := LoadSettings(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 9001, settings.Port)
}

func TestLoadSettings_FlagsWinWhenChanged(t *testing.T) {
	t.Setenv("STOCKFLOW_PORT", "9001")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 0, "")
	flags.String("model", "", "")
	require.NoError(t, flags.Parse([]string{"--port", "7000", "--model", "custom.yaml"}))

	settings, err := LoadSettings("", flags)
	require.NoError(t, err)

	assert.Equal(t, 7000, settings.Port)
	assert.Equal(t, "custom.yaml", settings.ModelPath)
}

func TestLoadSettings_UnchangedFlagsIgnored(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 0, "")
	require.NoError(t, flags.Parse(nil))

	settings, err := LoadSettings("", flags)
	require.NoError(t, err)

	// The flag default of 0 must not clobber the configured default.
	assert.Equal(t, DefaultPort, settings.Port)
}

func TestSimulateCommand_RendersTables(t *testing.T) {
	path := writeSampleModel(t)

	out, err := runCommand(t, "simulate", "--model", path)
	require.NoError(t, err)

	assert.Contains(t, out, "State")
	assert.Contains(t, out, "X")
	assert.Contains(t, out, "KPI")
	assert.Contains(t, out, "health")
	assert.Contains(t, out, "good")
}

func TestSimulateCommand_JSON(t *testing.T) {
	path := writeSampleModel(t)

	out, err := runCommand(t, "simulate", "--model", path, "--scenario", "fast", "--json")
	require.NoError(t, err)

	assert.Contains(t, out, `"scenario": "fast"`)
	assert.Contains(t, out, `"kpis"`)
}

func TestSimulateCommand_UnknownScenario(t *testing.T) {
	path := writeSampleModel(t)

	_, err := runCommand(t, "simulate", "--model", path, "--scenario", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown scenario")
}

func TestSimulateCommand_AllScenarios(t *testing.T) {
	path := writeSampleModel(t)

	out, err := runCommand(t, "simulate", "--model", path, "--all")
	require.NoError(t, err)

	assert.Contains(t, out, "Scenario: fast")
}

func TestValidateCommand(t *testing.T) {
	path := writeSampleModel(t)

	out, err := runCommand(t, "validate", "--model", path)
	require.NoError(t, err)

	assert.Contains(t, out, "is valid")
	assert.Contains(t, out, "1 states")
}

func TestValidateCommand_MissingModel(t *testing.T) {
	_, err := runCommand(t, "validate", "--model", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model document not found")
}

func TestValidateCommand_WithDraft(t *testing.T) {
	path := writeSampleModel(t)

	draftPath := filepath.Join(t.TempDir(), "draft.json")
	draft := `{"draft_id":"d1","description":"tune","changes":[{"op":"update_parameter","symbol":"k","data":{"value":0.9}}]}`
	require.NoError(t, os.WriteFile(draftPath, []byte(draft), 0o644))

	out, err := runCommand(t, "validate", "--model", path, draftPath)
	require.NoError(t, err)

	assert.Contains(t, out, "draft merged: 1 applied, 0 skipped")
}

func TestValidateCommand_DraftBreaksModel(t *testing.T) {
	path := writeSampleModel(t)

	draftPath := filepath.Join(t.TempDir(), "draft.json")
	draft := `{"draft_id":"d1","changes":[{"op":"remove_equation","symbol":"X"}]}`
	require.NoError(t, os.WriteFile(draftPath, []byte(draft), 0o644))

	_, err := runCommand(t, "validate", "--model", path, draftPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid model")
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)

	assert.Contains(t, out, "stockflow")
	assert.Contains(t, out, Version)
}
