package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlab/stockflow/internal/factory"
	"github.com/driftlab/stockflow/internal/store"
)

const testDocument = `
states:
  X:
    name: Example
    initial: 0.1
    category: capability
  Y:
    name: Other
    initial: 0.2
    category: risk
parameters:
  k:
    value: 0.5
relations:
  - id: rel.X_to_Y
    source: X
    target: Y
    coefficient: -0.4
equations:
  X:
    target_expr: "0.5"
    rate_expr: "p.k * (X_target - X)"
  Y:
    target_expr: "0.3"
    rate_expr: "0.5 * (Y_target - Y)"
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
insight_rules:
  - type: positive
    title: Converged
    condition: "X > 0.4"
    template: "X reached {X}"
    impact: high
`

type testEnv struct {
	server    *Server
	handler   http.Handler
	modelPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	modelPath := filepath.Join(dir, "stockflow.yaml")
	require.NoError(t, os.WriteFile(modelPath, []byte(testDocument), 0o644))

	f := factory.New(modelPath, nil)
	require.NoError(t, f.Init())

	st, err := store.Open(filepath.Join(dir, "drafts.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	srv := New(Config{Factory: f, Store: st})
	return &testEnv{server: srv, handler: srv.Routes(), modelPath: modelPath}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeInto[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestDraftLifecycle(t *testing.T) {
	env := newTestEnv(t)

	// Create a draft with one change.
	rec := env.do(t, http.MethodPost, "/api/drafts/", map[string]any{
		"description": "tune k",
		"changes": []map[string]any{
			{"op": "update_parameter", "symbol": "k", "data": map[string]any{"value": 0.8}},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeInto[map[string]any](t, rec)
	draftID, _ := created["draft_id"].(string)
	require.NotEmpty(t, draftID)
	assert.Equal(t, float64(1), created["version"])

	// It shows up in the listing.
	rec = env.do(t, http.MethodGet, "/api/drafts/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeInto[[]map[string]any](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, draftID, list[0]["draft_id"])
	assert.Equal(t, float64(1), list[0]["num_changes"])

	// Add a second change.
	rec = env.do(t, http.MethodPost, "/api/drafts/"+draftID+"/changes", map[string]any{
		"op": "remove_scenario", "symbol": "fast",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	added := decodeInto[map[string]any](t, rec)
	assert.Equal(t, float64(2), added["num_changes"])

	// Remove it again by index.
	rec = env.do(t, http.MethodDelete, "/api/drafts/"+draftID+"/changes/1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Validate.
	rec = env.do(t, http.MethodPost, "/api/drafts/"+draftID+"/validate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	validated := decodeInto[mergeResponse](t, rec)
	assert.True(t, validated.Success)
	assert.Equal(t, 1, validated.AppliedChanges)
	assert.Equal(t, 0, validated.SkippedChanges)
	require.NotNil(t, validated.EffectiveModel)
	assert.Equal(t, 0.8, validated.EffectiveModel.Parameters["k"].Value)

	// Apply with commit: the document on disk picks up the change.
	rec = env.do(t, http.MethodPost, "/api/drafts/"+draftID+"/apply?commit=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	applied := decodeInto[mergeResponse](t, rec)
	assert.True(t, applied.Success)
	assert.Contains(t, applied.Warnings, "changes committed to model document")

	assert.Equal(t, 0.8, env.server.factory.Current().Model.Parameters["k"].Value)
	onDisk, err := os.ReadFile(env.modelPath)
	require.NoError(t, err)
	assert.Contains(t, string(onDisk), "0.8")

	// Delete the draft.
	rec = env.do(t, http.MethodDelete, "/api/drafts/"+draftID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/drafts/"+draftID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateDraftVersionConflict(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/drafts/", map[string]any{"description": "contended"})
	created := decodeInto[map[string]any](t, rec)
	draftID := created["draft_id"].(string)

	desc := "first writer"
	rec = env.do(t, http.MethodPut, "/api/drafts/"+draftID, map[string]any{
		"description": desc, "version": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// A second writer still holding version 1 is rejected.
	rec = env.do(t, http.MethodPut, "/api/drafts/"+draftID, map[string]any{
		"description": "second writer", "version": 1,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestValidateDraft_BrokenEquationFailsCompilation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/drafts/", map[string]any{
		"description": "break Y",
		"changes": []map[string]any{
			{"op": "update_equation", "symbol": "Y", "data": map[string]any{"rate_expr": "Z + 1"}},
		},
	})
	draftID := decodeInto[map[string]any](t, rec)["draft_id"].(string)

	rec = env.do(t, http.MethodPost, "/api/drafts/"+draftID+"/validate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeInto[mergeResponse](t, rec)
	assert.False(t, resp.Success)
	assert.Nil(t, resp.EffectiveModel)
	require.NotEmpty(t, resp.Errors)
	assert.Contains(t, resp.Errors[0], "unknown state variable: Z")

	// An unsuccessful apply must not change the document.
	before, err := os.ReadFile(env.modelPath)
	require.NoError(t, err)
	rec = env.do(t, http.MethodPost, "/api/drafts/"+draftID+"/apply?commit=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	after, err := os.ReadFile(env.modelPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestValidateEquationEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/validate-equation", map[string]any{
		"equations": map[string]string{
			"X":   "p.k * (X_target - X)",
			"bad": "import os",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	results := decodeInto[map[string]map[string]any](t, rec)

	assert.Equal(t, true, results["X"]["valid"])
	assert.Equal(t, false, results["bad"]["valid"])
}

func TestSimulateEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/simulate", map[string]any{"scenario": "fast"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeInto[map[string]any](t, rec)

	result := resp["result"].(map[string]any)
	states := result["states"].(map[string]any)
	assert.Contains(t, states, "X")
	assert.Contains(t, states, "Y")

	kpis := resp["kpis"].(map[string]any)
	health := kpis["health"].(map[string]any)
	assert.Equal(t, "good", health["status"])

	insights := resp["insights"].([]any)
	require.Len(t, insights, 1)
	first := insights[0].(map[string]any)
	assert.Equal(t, "Converged", first["title"])
	assert.Contains(t, first["description"], "X reached 0.50")
}

func TestSimulateEndpoint_UnknownScenario(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/simulate", map[string]any{"scenario": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGraphEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/graph", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeInto[map[string][]map[string]any](t, rec)
	assert.Len(t, resp["nodes"], 2)
	require.Len(t, resp["edges"], 1)
	assert.Equal(t, "negative", resp["edges"][0]["type"])

	rec = env.do(t, http.MethodGet, "/api/graph?focus=X", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/graph?focus=Q", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestModelAndScenarioEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/model", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decodeInto[map[string]any](t, rec)
	assert.Contains(t, m["states"], "X")

	rec = env.do(t, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	scenarios := decodeInto[map[string]any](t, rec)
	assert.Contains(t, scenarios, "fast")
}

func TestAIPatchWithoutGenerator(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/ai/patch", map[string]any{"prompt": "add a state"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeInto[map[string]any](t, rec)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, float64(0), resp["num_drafts"])
}

func TestCreateDraft_UnknownOpRejected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/drafts/", map[string]any{
		"changes": []map[string]any{{"op": "rename_state", "symbol": "X"}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeInto[map[string]any](t, rec)
	assert.Contains(t, fmt.Sprint(resp["error"]), "unknown operation")
}
