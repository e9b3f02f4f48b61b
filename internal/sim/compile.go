// Package sim compiles a model's equations into sandboxed programs and
// integrates them over time. Compilation is all-or-nothing: every target,
// rate, KPI formula, and insight condition must validate before a System
// exists, so the integrator never meets an unchecked expression.
package sim

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/driftlab/stockflow/internal/model"
	"github.com/driftlab/stockflow/pkg/dsl"
)

// CompileError aggregates every invalid expression found in a model.
type CompileError struct {
	Problems []string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("model compilation failed:\n  %s", strings.Join(e.Problems, "\n  "))
}

// compiledEquation holds the two programs governing one state.
type compiledEquation struct {
	target *dsl.Program
	rate   *dsl.Program
}

// System is a compiled, immutable model ready for simulation. A System is
// safe for concurrent use: programs are read-only and every run builds its
// own environment.
type System struct {
	model     *model.Model
	symbols   []string
	equations map[string]*compiledEquation
	kpis      map[string]*dsl.Program
	insights  []*dsl.Program
	logger    *slog.Logger
}

// Model returns the model this system was compiled from.
func (s *System) Model() *model.Model { return s.model }

// CompileModel validates and compiles every expression in the model. Rate
// expressions are checked with the state's own target symbol in scope, KPI
// formulas with the initial-value symbols, and insight conditions with the
// KPI names as well. All problems are reported together in one CompileError.
func CompileModel(m *model.Model, logger *slog.Logger) (*System, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	symbols := m.StateSymbols()
	params := m.ParameterNames()

	sys := &System{
		model:     m,
		symbols:   symbols,
		equations: make(map[string]*compiledEquation, len(symbols)),
		kpis:      make(map[string]*dsl.Program, len(m.KPIs)),
		logger:    logger,
	}

	var problems []string
	targetValidator := dsl.NewValidator(symbols, params)

	for _, sym := range symbols {
		eq, ok := m.Equations[sym]
		if !ok {
			problems = append(problems, fmt.Sprintf("state %s has no equation", sym))
			continue
		}

		ce := &compiledEquation{}

		prog, res := targetValidator.Compile(eq.TargetExpr)
		problems = append(problems, prefixed(fmt.Sprintf("target for %s", sym), res)...)
		logWarnings(logger, fmt.Sprintf("target for %s", sym), res)
		ce.target = prog

		// The rate expression may reference the phase-1 target for this state.
		rateValidator := dsl.NewValidator(append(append([]string{}, symbols...), sym+"_target"), params)
		prog, res = rateValidator.Compile(eq.RateExpr)
		problems = append(problems, prefixed(fmt.Sprintf("rate for %s", sym), res)...)
		logWarnings(logger, fmt.Sprintf("rate for %s", sym), res)
		ce.rate = prog

		sys.equations[sym] = ce
	}

	// KPI formulas see final values as bare symbols and initial values as
	// <sym>_initial.
	kpiSymbols := append([]string{}, symbols...)
	for _, sym := range symbols {
		kpiSymbols = append(kpiSymbols, sym+"_initial")
	}
	kpiValidator := dsl.NewValidator(kpiSymbols, params)

	for _, kpiID := range sortedKPIKeys(m.KPIs) {
		prog, res := kpiValidator.Compile(m.KPIs[kpiID].Formula)
		problems = append(problems, prefixed(fmt.Sprintf("kpi %s", kpiID), res)...)
		logWarnings(logger, fmt.Sprintf("kpi %s", kpiID), res)
		sys.kpis[kpiID] = prog
	}

	// Insight conditions additionally see the KPI values and their initials.
	condSymbols := append([]string{}, kpiSymbols...)
	for _, kpiID := range sortedKPIKeys(m.KPIs) {
		condSymbols = append(condSymbols, kpiID, kpiID+"_initial")
	}
	condValidator := dsl.NewValidator(condSymbols, params)

	sys.insights = make([]*dsl.Program, len(m.InsightRules))
	for i, rule := range m.InsightRules {
		prog, res := condValidator.Compile(rule.Condition)
		problems = append(problems, prefixed(fmt.Sprintf("insight rule %d (%s)", i, rule.Title), res)...)
		logWarnings(logger, fmt.Sprintf("insight rule %d", i), res)
		sys.insights[i] = prog
	}

	if len(problems) > 0 {
		return nil, &CompileError{Problems: problems}
	}

	logger.Debug("model compiled",
		slog.Int("states", len(symbols)),
		slog.Int("kpis", len(sys.kpis)),
		slog.Int("insight_rules", len(sys.insights)))
	return sys, nil
}

func prefixed(context string, res dsl.ValidationResult) []string {
	out := make([]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		out = append(out, fmt.Sprintf("%s: %s", context, e))
	}
	return out
}

func logWarnings(logger *slog.Logger, context string, res dsl.ValidationResult) {
	for _, w := range res.Warnings {
		logger.Warn("expression warning", slog.String("expr", context), slog.String("warning", w))
	}
}

func sortedKPIKeys(kpis map[string]*model.KPI) []string {
	keys := make([]string, 0, len(kpis))
	for k := range kpis {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
