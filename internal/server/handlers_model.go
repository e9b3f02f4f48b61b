package server

import (
	"net/http"

	"github.com/driftlab/stockflow/internal/ai"
	"github.com/driftlab/stockflow/internal/graph"
	"github.com/driftlab/stockflow/internal/patch"
	"github.com/driftlab/stockflow/internal/sim"
	"github.com/driftlab/stockflow/pkg/dsl"
)

type validateEquationRequest struct {
	Equations map[string]string `json:"equations"`
}

func (s *Server) handleValidateEquation(w http.ResponseWriter, r *http.Request) {
	var req validateEquationRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	m := s.factory.Current().Model
	symbols := m.StateSymbols()
	params := m.ParameterNames()

	results := make(map[string]dsl.ValidationResult, len(req.Equations))
	for symbol, expression := range req.Equations {
		universe := symbols
		// Rate expressions for a known state may reference its own target.
		if _, ok := m.States[symbol]; ok {
			universe = append(append([]string{}, symbols...), symbol+"_target")
		}
		results[symbol] = dsl.NewValidator(universe, params).Validate(expression)
	}
	s.respondJSON(w, http.StatusOK, results)
}

type simulateRequest struct {
	Scenario         string             `json:"scenario"`
	ParamOverrides   map[string]float64 `json:"param_overrides"`
	InitialOverrides map[string]float64 `json:"initial_overrides"`
}

type simulateResponse struct {
	Result   *sim.Result               `json:"result"`
	KPIs     map[string]*sim.KPIResult `json:"kpis"`
	Insights []sim.Insight             `json:"insights"`
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	system := s.factory.Current().System
	result, err := system.Simulate(sim.Options{
		Scenario:         req.Scenario,
		ParamOverrides:   req.ParamOverrides,
		InitialOverrides: req.InitialOverrides,
	})
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, simulateResponse{
		Result:   result,
		KPIs:     system.EvaluateKPIs(result),
		Insights: system.GenerateInsights(result),
	})
}

type graphResponse struct {
	Nodes []*graph.Node `json:"nodes"`
	Edges []*graph.Edge `json:"edges"`
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	g := s.factory.Current().Graph

	if focus := r.URL.Query().Get("focus"); focus != "" {
		if _, ok := g.Node(focus); !ok {
			s.respondError(w, http.StatusNotFound, "unknown state: "+focus)
			return
		}
		g = g.Subgraph(focus)
	}
	s.respondJSON(w, http.StatusOK, graphResponse{Nodes: g.Nodes(), Edges: g.Edges()})
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.factory.Current().Model)
}

func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.factory.Current().Model.Scenarios)
}

type aiPatchResponse struct {
	Draft   *patch.Draft   `json:"draft"`
	Changes []patch.Change `json:"changes"`
	Version int64          `json:"version"`
}

// handleAIPatch generates changes from a prompt and stores them as a new
// draft. The draft then flows through the same validate/apply path as any
// other, so nothing the model produced reaches the base model unchecked.
func (s *Server) handleAIPatch(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		s.respondError(w, http.StatusServiceUnavailable, "ai patch generation is not configured")
		return
	}

	var req ai.Request
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Prompt == "" {
		s.respondError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	changes, err := s.generator.GeneratePatch(r.Context(), req, s.factory.Current().Model)
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	draft := patch.NewDraft("ai: "+req.Prompt, "")
	draft.Metadata["generated_by"] = "ai"
	for _, change := range changes {
		draft.AddChange(change)
	}

	if err := s.store.Create(r.Context(), draft); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, aiPatchResponse{Draft: draft, Changes: changes, Version: 1})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	drafts, err := s.store.List(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	payload := map[string]any{
		"status":     "ok",
		"num_drafts": len(drafts),
		"model_path": s.factory.Path(),
	}
	if s.generator != nil {
		payload["ai_available"] = s.generator.Healthy(r.Context())
	}
	s.respondJSON(w, http.StatusOK, payload)
}
