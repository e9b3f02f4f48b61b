package config

import (
	"os"
	"path/filepath"
	"testing"

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
    min: 0
    max: 2
relations:
  - id: rel.self
    source: X
    target: X
    coefficient: 1
equations:
  X:
    target_expr: "0.5"
    rate_expr: "p.k * (X_target - X)"
scenarios:
  fast:
    description: faster convergence
    param_overrides:
      k: 2.0
simulation:
  t_start: 0
  t_end: 20
  steps: 201
  method: rk4
kpis:
  health:
    name: Health
    formula: X
    good_threshold: 0.45
    warning_threshold: 0.3
    higher_is_better: true
`

func writeDocument(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadModel_YAML(t *testing.T) {
	path := writeDocument(t, "stockflow.yaml", sampleDocument)

	m, err := LoadModel(path)
	require.NoError(t, err)

	require.Contains(t, m.States, "X")
	assert.Equal(t, "Example", m.States["X"].Name)
	assert.Equal(t, 0.1, m.States["X"].Initial)

	require.Contains(t, m.Parameters, "k")
	assert.Equal(t, 0.5, m.Parameters["k"].Value)
	require.NotNil(t, m.Parameters["k"].Max)
	assert.Equal(t, 2.0, *m.Parameters["k"].Max)

	require.Len(t, m.Relations, 1)
	assert.Equal(t, "rel.self", m.Relations[0].ID)

	assert.Equal(t, "p.k * (X_target - X)", m.Equations["X"].RateExpr)
	assert.Equal(t, 2.0, m.Scenarios["fast"].ParamOverrides["k"])
	assert.Equal(t, 201, m.Simulation.Steps)
	assert.Equal(t, "Health", m.KPIs["health"].Name)
}

func TestLoadModel_EnvOverride(t *testing.T) {
	path := writeDocument(t, "stockflow.yaml", sampleDocument)

	t.Setenv("STOCKFLOW_SIMULATION_STEPS", "99")
	t.Setenv("STOCKFLOW_SIMULATION_T_END", "10")

	m, err := LoadModel(path)
	require.NoError(t, err)
	assert.Equal(t, 99, m.Simulation.Steps)
	assert.Equal(t, 10.0, m.Simulation.TEnd)
}

func TestLoadModel_InvalidDocument(t *testing.T) {
	path := writeDocument(t, "stockflow.yaml", `
states:
  X:
    name: Example
    initial: 0.1
equations: {}
`)

	_, err := LoadModel(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state X has no equation")
}

func TestLoadModel_MissingFile(t *testing.T) {
	_, err := LoadModel(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestSaveModel_RoundTrip(t *testing.T) {
	path := writeDocument(t, "stockflow.yaml", sampleDocument)
	m, err := LoadModel(path)
	require.NoError(t, err)

	m.Parameters["k"].Value = 0.75
	out := filepath.Join(filepath.Dir(path), "out.yaml")
	require.NoError(t, err)
	require.NoError(t, SaveModel(out, m))

	reloaded, err := LoadModel(out)
	require.NoError(t, err)
	assert.Equal(t, 0.75, reloaded.Parameters["k"].Value)
	assert.Equal(t, m.Equations["X"].RateExpr, reloaded.Equations["X"].RateExpr)
}

func TestSaveModel_JSON(t *testing.T) {
	path := writeDocument(t, "stockflow.yaml", sampleDocument)
	m, err := LoadModel(path)
	require.NoError(t, err)

	out := filepath.Join(filepath.Dir(path), "out.json")
	require.NoError(t, SaveModel(out, m))

	reloaded, err := LoadModel(out)
	require.NoError(t, err)
	assert.Equal(t, 0.5, reloaded.Parameters["k"].Value)
}

func TestFindModelFile(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, FindModelFile(dir))

	path := filepath.Join(dir, ModelFileNameAlt)
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	assert.Equal(t, path, FindModelFile(dir))
}
