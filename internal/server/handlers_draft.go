package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/driftlab/stockflow/internal/model"
	"github.com/driftlab/stockflow/internal/patch"
	"github.com/driftlab/stockflow/internal/sim"
	"github.com/driftlab/stockflow/internal/store"
)

type createDraftRequest struct {
	Description    string         `json:"description"`
	BasedOnVersion string         `json:"based_on_version"`
	Changes        []patch.Change `json:"changes"`
}

type updateDraftRequest struct {
	Description *string         `json:"description"`
	Changes     *[]patch.Change `json:"changes"`
	Metadata    map[string]any  `json:"metadata"`
	Version     int64           `json:"version"`
}

type draftResponse struct {
	*patch.Draft
	Version int64 `json:"version"`
}

type draftSummary struct {
	DraftID     string `json:"draft_id"`
	CreatedAt   string `json:"created_at"`
	Description string `json:"description"`
	NumChanges  int    `json:"num_changes"`
	Version     int64  `json:"version"`
}

// mergeResponse is the outcome of validating or applying a draft. Counts
// summarize the change-level outcomes; the skipped list carries the reasons.
type mergeResponse struct {
	Success        bool                  `json:"success"`
	EffectiveModel *model.Model          `json:"effective_model,omitempty"`
	Errors         []string              `json:"errors"`
	Warnings       []string              `json:"warnings"`
	AppliedChanges int                   `json:"applied_changes"`
	SkippedChanges int                   `json:"skipped_changes"`
	Skipped        []patch.SkippedChange `json:"skipped,omitempty"`
}

func (s *Server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var req createDraftRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	draft := patch.NewDraft(req.Description, req.BasedOnVersion)
	for _, change := range req.Changes {
		if !change.Op.Valid() {
			s.respondError(w, http.StatusBadRequest, "unknown operation: "+string(change.Op))
			return
		}
		draft.AddChange(change)
	}

	if err := s.store.Create(r.Context(), draft); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, draftResponse{Draft: draft, Version: 1})
}

func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := s.store.List(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	summaries := make([]draftSummary, 0, len(drafts))
	for _, stored := range drafts {
		summaries = append(summaries, draftSummary{
			DraftID:     stored.Draft.DraftID,
			CreatedAt:   stored.Draft.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			Description: stored.Draft.Description,
			NumChanges:  len(stored.Draft.Changes),
			Version:     stored.Version,
		})
	}
	s.respondJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	stored, err := s.store.Get(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, draftResponse{Draft: stored.Draft, Version: stored.Version})
}

func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	var req updateDraftRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	stored, err := s.store.Get(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	draft := stored.Draft

	if req.Description != nil {
		draft.Description = *req.Description
	}
	if req.Changes != nil {
		for _, change := range *req.Changes {
			if !change.Op.Valid() {
				s.respondError(w, http.StatusBadRequest, "unknown operation: "+string(change.Op))
				return
			}
		}
		draft.Changes = *req.Changes
	}
	for key, val := range req.Metadata {
		if draft.Metadata == nil {
			draft.Metadata = map[string]any{}
		}
		draft.Metadata[key] = val
	}

	expected := req.Version
	if expected == 0 {
		expected = stored.Version
	}
	if err := s.store.Update(r.Context(), draft, expected); err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, draftResponse{Draft: draft, Version: expected + 1})
}

func (s *Server) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	draftID := chi.URLParam(r, "draftID")
	if err := s.store.Delete(r.Context(), draftID); err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "draft " + draftID + " deleted"})
}

func (s *Server) handleAddChange(w http.ResponseWriter, r *http.Request) {
	var change patch.Change
	if err := decodeBody(r, &change); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !change.Op.Valid() {
		s.respondError(w, http.StatusBadRequest, "unknown operation: "+string(change.Op))
		return
	}

	stored, err := s.store.Get(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	stored.Draft.AddChange(change)
	if err := s.store.Update(r.Context(), stored.Draft, stored.Version); err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"message":     "change added",
		"num_changes": len(stored.Draft.Changes),
	})
}

func (s *Server) handleRemoveChange(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid change index")
		return
	}

	stored, err := s.store.Get(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	if err := stored.Draft.RemoveChange(index); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.Update(r.Context(), stored.Draft, stored.Version); err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"message":     "change removed",
		"num_changes": len(stored.Draft.Changes),
	})
}

func (s *Server) handleValidateDraft(w http.ResponseWriter, r *http.Request) {
	stored, err := s.store.Get(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	resp := s.validateAgainstBase(stored.Draft)
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleApplyDraft(w http.ResponseWriter, r *http.Request) {
	commit := r.URL.Query().Get("commit") == "true"

	stored, err := s.store.Get(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	resp := s.validateAgainstBase(stored.Draft)
	if !resp.Success {
		s.respondJSON(w, http.StatusOK, resp)
		return
	}

	if commit {
		if err := s.factory.Commit(resp.EffectiveModel); err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Warnings = append(resp.Warnings, "changes committed to model document")
		s.logger.Info("draft committed", slog.String("draft", stored.Draft.DraftID))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// validateAgainstBase merges the draft onto the current snapshot's model and,
// when the merge holds up structurally, compiles the effective model so
// broken equations surface before anyone simulates with them.
func (s *Server) validateAgainstBase(draft *patch.Draft) mergeResponse {
	base := s.factory.Current().Model
	result := patch.NewMerger(base, s.logger).Merge(draft)

	resp := mergeResponse{
		Success:        result.Success,
		Errors:         result.Errors,
		Warnings:       result.Warnings,
		AppliedChanges: len(result.AppliedChanges),
		SkippedChanges: len(result.SkippedChanges),
		Skipped:        result.SkippedChanges,
	}
	if !result.Success {
		return resp
	}

	if _, err := sim.CompileModel(result.EffectiveModel, s.logger); err != nil {
		var ce *sim.CompileError
		if errors.As(err, &ce) {
			resp.Errors = append(resp.Errors, ce.Problems...)
		} else {
			resp.Errors = append(resp.Errors, err.Error())
		}
		resp.Success = false
		return resp
	}

	resp.EffectiveModel = result.EffectiveModel
	return resp
}

func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrVersionConflict):
		s.respondError(w, http.StatusConflict, err.Error())
	default:
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}
