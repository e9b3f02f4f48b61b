package patch

import (
	"fmt"
	"log/slog"

	"github.com/driftlab/stockflow/internal/model"
)

// SkippedChange pairs a change that failed its precondition with the reason
// it was skipped.
type SkippedChange struct {
	Change Change `json:"change"`
	Error  string `json:"error"`
}

// MergeResult reports the outcome of overlaying a draft onto a base model.
// Per-change failures land in SkippedChanges; Errors holds the structural
// validation failures that decide Success.
type MergeResult struct {
	Success        bool            `json:"success"`
	EffectiveModel *model.Model    `json:"effective_model,omitempty"`
	Errors         []string        `json:"errors"`
	Warnings       []string        `json:"warnings"`
	AppliedChanges []Change        `json:"applied_changes"`
	SkippedChanges []SkippedChange `json:"skipped_changes"`
}

// Merger applies drafts to an immutable base model.
type Merger struct {
	base   *model.Model
	logger *slog.Logger
}

// NewMerger creates a merger over the given base model. The base is treated
// as read-only; every merge works on a deep copy.
func NewMerger(base *model.Model, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Merger{base: base, logger: logger}
}

// Merge applies the draft's changes in order to a clone of the base model,
// then runs whole-model structural validation. A change whose precondition
// fails is skipped and recorded; it never aborts the batch. The merge
// succeeds only when the final model passes structural validation.
func (m *Merger) Merge(draft *Draft) *MergeResult {
	result := &MergeResult{
		Errors:         []string{},
		Warnings:       []string{},
		AppliedChanges: []Change{},
		SkippedChanges: []SkippedChange{},
	}

	effective := m.base.Clone()

	for _, change := range draft.Changes {
		if err := m.applyChange(effective, change, result); err != nil {
			m.logger.Debug("change skipped",
				slog.String("draft", draft.DraftID),
				slog.String("op", string(change.Op)),
				slog.String("subject", change.subject()),
				slog.String("error", err.Error()))
			result.SkippedChanges = append(result.SkippedChanges, SkippedChange{
				Change: change,
				Error:  fmt.Sprintf("failed to apply %s on %s: %v", change.Op, change.subject(), err),
			})
			continue
		}
		result.AppliedChanges = append(result.AppliedChanges, change)
	}

	result.Errors = append(result.Errors, effective.Validate()...)

	if len(result.Errors) == 0 {
		result.Success = true
		result.EffectiveModel = effective
	}

	return result
}

// applyChange dispatches one change to its typed handler. Failures are
// returned as values; nothing panics across this boundary.
func (m *Merger) applyChange(mdl *model.Model, change Change, result *MergeResult) error {
	switch change.Op {
	case OpAddState:
		return m.addState(mdl, change)
	case OpUpdateState:
		return m.updateState(mdl, change)
	case OpRemoveState:
		return m.removeState(mdl, change, result)
	case OpAddRelation:
		return m.addRelation(mdl, change)
	case OpUpdateRelation:
		return m.updateRelation(mdl, change)
	case OpRemoveRelation:
		return m.removeRelation(mdl, change)
	case OpAddParameter:
		return m.addParameter(mdl, change)
	case OpUpdateParameter:
		return m.updateParameter(mdl, change)
	case OpRemoveParameter:
		return m.removeParameter(mdl, change)
	case OpAddEquation:
		return m.addEquation(mdl, change)
	case OpUpdateEquation:
		return m.updateEquation(mdl, change)
	case OpRemoveEquation:
		return m.removeEquation(mdl, change)
	case OpAddScenario:
		return m.addScenario(mdl, change)
	case OpUpdateScenario:
		return m.updateScenario(mdl, change)
	case OpRemoveScenario:
		return m.removeScenario(mdl, change)
	default:
		return fmt.Errorf("unknown operation: %q", change.Op)
	}
}

// --- State operations ---

func (m *Merger) addState(mdl *model.Model, change Change) error {
	if mdl.States == nil {
		mdl.States = make(map[string]*model.State)
	}
	if _, exists := mdl.States[change.Symbol]; exists {
		return fmt.Errorf("state %s already exists", change.Symbol)
	}

	st := &model.State{}
	var p statePatch
	if err := decode(change.Data, &p); err != nil {
		return err
	}
	p.apply(st)
	mdl.States[change.Symbol] = st
	return nil
}

func (m *Merger) updateState(mdl *model.Model, change Change) error {
	st, ok := mdl.States[change.Symbol]
	if !ok {
		return fmt.Errorf("state %s not found", change.Symbol)
	}

	var p statePatch
	if err := decode(change.Data, &p); err != nil {
		return err
	}
	p.apply(st)
	return nil
}

// removeState cascades: relations touching the symbol and the state's
// equation go with it. Removal of a missing state is a warning, not an error.
func (m *Merger) removeState(mdl *model.Model, change Change, result *MergeResult) error {
	if _, ok := mdl.States[change.Symbol]; !ok {
		result.Warnings = append(result.Warnings, fmt.Sprintf("state %s not found, skipping removal", change.Symbol))
		return nil
	}

	delete(mdl.States, change.Symbol)

	kept := mdl.Relations[:0]
	for _, rel := range mdl.Relations {
		if rel.Source == change.Symbol || rel.Target == change.Symbol {
			continue
		}
		kept = append(kept, rel)
	}
	mdl.Relations = kept

	delete(mdl.Equations, change.Symbol)

	result.Warnings = append(result.Warnings, fmt.Sprintf("cascade deleted relations and equation for %s", change.Symbol))
	return nil
}

// --- Relation operations ---

func (m *Merger) addRelation(mdl *model.Model, change Change) error {
	rel := &model.Relation{}
	var p relationPatch
	if err := decode(change.Data, &p); err != nil {
		return err
	}
	p.apply(rel)
	if rel.ID == "" {
		rel.ID = change.ID
	}

	for _, existing := range mdl.Relations {
		if existing.ID == rel.ID {
			return fmt.Errorf("relation %s already exists", rel.ID)
		}
	}

	mdl.Relations = append(mdl.Relations, rel)
	return nil
}

func (m *Merger) updateRelation(mdl *model.Model, change Change) error {
	var p relationPatch
	if err := decode(change.Data, &p); err != nil {
		return err
	}

	for _, rel := range mdl.Relations {
		if rel.ID == change.ID {
			p.apply(rel)
			return nil
		}
	}
	return fmt.Errorf("relation %s not found", change.ID)
}

func (m *Merger) removeRelation(mdl *model.Model, change Change) error {
	kept := mdl.Relations[:0]
	for _, rel := range mdl.Relations {
		if rel.ID == change.ID {
			continue
		}
		kept = append(kept, rel)
	}
	mdl.Relations = kept
	return nil
}

// --- Parameter operations ---

func (m *Merger) addParameter(mdl *model.Model, change Change) error {
	if mdl.Parameters == nil {
		mdl.Parameters = make(map[string]*model.Parameter)
	}
	if _, exists := mdl.Parameters[change.Symbol]; exists {
		return fmt.Errorf("parameter %s already exists", change.Symbol)
	}

	param := &model.Parameter{}
	var p parameterPatch
	if err := decode(change.Data, &p); err != nil {
		return err
	}
	p.apply(param)
	mdl.Parameters[change.Symbol] = param
	return nil
}

func (m *Merger) updateParameter(mdl *model.Model, change Change) error {
	param, ok := mdl.Parameters[change.Symbol]
	if !ok {
		return fmt.Errorf("parameter %s not found", change.Symbol)
	}

	var p parameterPatch
	if err := decode(change.Data, &p); err != nil {
		return err
	}
	p.apply(param)
	return nil
}

func (m *Merger) removeParameter(mdl *model.Model, change Change) error {
	delete(mdl.Parameters, change.Symbol)
	return nil
}

// --- Equation operations ---

func (m *Merger) addEquation(mdl *model.Model, change Change) error {
	if mdl.Equations == nil {
		mdl.Equations = make(map[string]*model.Equation)
	}
	if _, exists := mdl.Equations[change.Symbol]; exists {
		return fmt.Errorf("equation for %s already exists", change.Symbol)
	}

	eq := &model.Equation{}
	var p equationPatch
	if err := decode(change.Data, &p); err != nil {
		return err
	}
	p.apply(eq)
	mdl.Equations[change.Symbol] = eq
	return nil
}

func (m *Merger) updateEquation(mdl *model.Model, change Change) error {
	eq, ok := mdl.Equations[change.Symbol]
	if !ok {
		return fmt.Errorf("equation for %s not found", change.Symbol)
	}

	var p equationPatch
	if err := decode(change.Data, &p); err != nil {
		return err
	}
	p.apply(eq)
	return nil
}

func (m *Merger) removeEquation(mdl *model.Model, change Change) error {
	delete(mdl.Equations, change.Symbol)
	return nil
}

// --- Scenario operations ---

func (m *Merger) addScenario(mdl *model.Model, change Change) error {
	if mdl.Scenarios == nil {
		mdl.Scenarios = make(map[string]*model.Scenario)
	}
	if _, exists := mdl.Scenarios[change.Symbol]; exists {
		return fmt.Errorf("scenario %s already exists", change.Symbol)
	}

	sc := &model.Scenario{}
	var p scenarioPatch
	if err := decode(change.Data, &p); err != nil {
		return err
	}
	p.apply(sc)
	mdl.Scenarios[change.Symbol] = sc
	return nil
}

func (m *Merger) updateScenario(mdl *model.Model, change Change) error {
	sc, ok := mdl.Scenarios[change.Symbol]
	if !ok {
		return fmt.Errorf("scenario %s not found", change.Symbol)
	}

	var p scenarioPatch
	if err := decode(change.Data, &p); err != nil {
		return err
	}
	p.apply(sc)
	return nil
}

func (m *Merger) removeScenario(mdl *model.Model, change Change) error {
	delete(mdl.Scenarios, change.Symbol)
	return nil
}
