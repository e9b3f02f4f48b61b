package model

import (
	"fmt"
	"sort"
)

// Validate checks the model's structural invariants:
//
//   - every relation's source (when present) and target resolve to states;
//   - every state has exactly one equation and every equation has a state.
//
// All violations are collected; an empty slice means the model is valid.
func (m *Model) Validate() []string {
	var errs []string

	for _, rel := range m.Relations {
		if rel.Source != "" {
			if _, ok := m.States[rel.Source]; !ok {
				errs = append(errs, fmt.Sprintf("relation %s references unknown source state: %s", rel.ID, rel.Source))
			}
		}
		if _, ok := m.States[rel.Target]; !ok {
			errs = append(errs, fmt.Sprintf("relation %s references unknown target state: %s", rel.ID, rel.Target))
		}
	}

	for _, sym := range m.StateSymbols() {
		if _, ok := m.Equations[sym]; !ok {
			errs = append(errs, fmt.Sprintf("state %s has no equation defined", sym))
		}
	}

	for _, sym := range sortedEquationSymbols(m.Equations) {
		if _, ok := m.States[sym]; !ok {
			errs = append(errs, fmt.Sprintf("equation for %s has no corresponding state", sym))
		}
	}

	return errs
}

func sortedEquationSymbols(equations map[string]*Equation) []string {
	symbols := make([]string, 0, len(equations))
	for sym := range equations {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}
