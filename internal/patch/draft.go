// Package patch implements the draft/patch overlay: ordered lists of changes
// applied to a cloned base model, producing an effective model or a
// diagnostic report. The base model is never mutated.
package patch

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Change is a single edit in a draft. Symbol addresses states, parameters,
// equations, and scenarios; ID addresses relations. Data carries the entity
// fields for the operation.
type Change struct {
	Op     Op             `json:"op" yaml:"op"`
	Symbol string         `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	ID     string         `json:"id,omitempty" yaml:"id,omitempty"`
	Data   map[string]any `json:"data" yaml:"data"`
	Reason string         `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// subject names the entity a change addresses, for diagnostics.
func (c Change) subject() string {
	if c.Symbol != "" {
		return c.Symbol
	}
	return c.ID
}

// Draft is an ordered sequence of changes overlaid on a base model version.
// Order is semantically significant: changes apply strictly in sequence.
type Draft struct {
	DraftID        string         `json:"draft_id" yaml:"draft_id"`
	CreatedAt      time.Time      `json:"created_at" yaml:"created_at"`
	BasedOnVersion string         `json:"based_on_version,omitempty" yaml:"based_on_version,omitempty"`
	Description    string         `json:"description,omitempty" yaml:"description,omitempty"`
	Changes        []Change       `json:"changes" yaml:"changes"`
	Metadata       map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// NewDraft creates an empty draft with a fresh identifier.
func NewDraft(description, basedOnVersion string) *Draft {
	return &Draft{
		DraftID:        fmt.Sprintf("draft_%s", uuid.New().String()),
		CreatedAt:      time.Now().UTC(),
		BasedOnVersion: basedOnVersion,
		Description:    description,
		Changes:        []Change{},
		Metadata:       map[string]any{},
	}
}

// AddChange appends a change to the draft.
func (d *Draft) AddChange(c Change) {
	d.Changes = append(d.Changes, c)
}

// RemoveChange removes the change at the given index. Out-of-range indexes
// are reported, not ignored.
func (d *Draft) RemoveChange(index int) error {
	if index < 0 || index >= len(d.Changes) {
		return fmt.Errorf("change index %d out of range [0, %d)", index, len(d.Changes))
	}
	d.Changes = append(d.Changes[:index], d.Changes[index+1:]...)
	return nil
}
