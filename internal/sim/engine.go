package sim

import (
	"fmt"
	"math"

	"github.com/driftlab/stockflow/pkg/dsl"
)

// Default integration setup used when the model's simulation section leaves
// fields unset.
const (
	defaultSteps  = 500
	defaultMethod = "rk4"
)

// Options selects a scenario and applies explicit overrides on top of it.
// Precedence is defaults < scenario < explicit.
type Options struct {
	Scenario         string
	ParamOverrides   map[string]float64
	InitialOverrides map[string]float64
}

// Result is one simulation trajectory: the time grid, per-state series, and
// the effective parameters and initial conditions the run used.
type Result struct {
	Scenario string               `json:"scenario,omitempty"`
	T        []float64            `json:"t"`
	States   map[string][]float64 `json:"states"`
	Params   map[string]float64   `json:"params"`
	Initial  map[string]float64   `json:"initial"`
}

// Simulate integrates the system over the configured time horizon on a fixed
// evenly spaced grid. Identical inputs produce bit-identical trajectories.
func (s *System) Simulate(opts Options) (*Result, error) {
	params := s.model.DefaultParams()
	initial := s.model.InitialValues()

	if opts.Scenario != "" {
		sc, ok := s.model.Scenarios[opts.Scenario]
		if !ok {
			return nil, fmt.Errorf("unknown scenario: %s", opts.Scenario)
		}
		for name, val := range sc.ParamOverrides {
			params[name] = val
		}
		for sym, val := range sc.InitialOverrides {
			initial[sym] = val
		}
	}
	for name, val := range opts.ParamOverrides {
		params[name] = val
	}
	for sym, val := range opts.InitialOverrides {
		initial[sym] = val
	}

	cfg := s.model.Simulation
	steps := cfg.Steps
	if steps < 2 {
		steps = defaultSteps
	}
	if cfg.TEnd <= cfg.TStart {
		return nil, fmt.Errorf("invalid time horizon: t_start=%g t_end=%g", cfg.TStart, cfg.TEnd)
	}

	var stepper func(t, h float64, y []float64, params map[string]float64) ([]float64, error)
	switch cfg.Method {
	case "", defaultMethod:
		stepper = s.rk4Step
	case "euler":
		stepper = s.eulerStep
	default:
		return nil, fmt.Errorf("unknown integration method: %s", cfg.Method)
	}

	y := make([]float64, len(s.symbols))
	for i, sym := range s.symbols {
		y[i] = initial[sym]
	}

	result := &Result{
		Scenario: opts.Scenario,
		T:        make([]float64, steps),
		States:   make(map[string][]float64, len(s.symbols)),
		Params:   params,
		Initial:  initial,
	}
	for _, sym := range s.symbols {
		result.States[sym] = make([]float64, steps)
	}

	h := (cfg.TEnd - cfg.TStart) / float64(steps-1)

	for step := 0; step < steps; step++ {
		t := cfg.TStart + float64(step)*h
		result.T[step] = t
		for i, sym := range s.symbols {
			result.States[sym][step] = y[i]
		}
		if step == steps-1 {
			break
		}

		next, err := stepper(t, h, y, params)
		if err != nil {
			return nil, fmt.Errorf("solver failed at t=%g: %w", t, err)
		}
		for i, val := range next {
			if math.IsNaN(val) || math.IsInf(val, 0) {
				return nil, fmt.Errorf("solver aborted: non-finite value for %s at t=%g", s.symbols[i], t+h)
			}
		}
		y = next
	}

	return result, nil
}

// derivatives runs one two-phase evaluation: phase 1 computes every state's
// target with no target bindings in scope, phase 2 computes each rate with
// only that state's own target bound.
func (s *System) derivatives(t float64, y []float64, params map[string]float64) ([]float64, error) {
	states := make(map[string]float64, len(s.symbols))
	for i, sym := range s.symbols {
		states[sym] = y[i]
	}

	targets := make(map[string]float64, len(s.symbols))
	for _, sym := range s.symbols {
		val, err := s.equations[sym].target.Eval(dsl.Env{States: states, Params: params, T: t})
		if err != nil {
			return nil, fmt.Errorf("target for %s: %w", sym, err)
		}
		targets[sym] = val
	}

	dydt := make([]float64, len(s.symbols))
	for i, sym := range s.symbols {
		val, err := s.equations[sym].rate.Eval(dsl.Env{
			States:     states,
			Params:     params,
			T:          t,
			TargetName: sym + "_target",
			Target:     targets[sym],
		})
		if err != nil {
			return nil, fmt.Errorf("rate for %s: %w", sym, err)
		}
		dydt[i] = val
	}
	return dydt, nil
}

func (s *System) eulerStep(t, h float64, y []float64, params map[string]float64) ([]float64, error) {
	dydt, err := s.derivatives(t, y, params)
	if err != nil {
		return nil, err
	}
	next := make([]float64, len(y))
	for i := range y {
		next[i] = y[i] + h*dydt[i]
	}
	return next, nil
}

func (s *System) rk4Step(t, h float64, y []float64, params map[string]float64) ([]float64, error) {
	k1, err := s.derivatives(t, y, params)
	if err != nil {
		return nil, err
	}
	k2, err := s.derivatives(t+h/2, offset(y, k1, h/2), params)
	if err != nil {
		return nil, err
	}
	k3, err := s.derivatives(t+h/2, offset(y, k2, h/2), params)
	if err != nil {
		return nil, err
	}
	k4, err := s.derivatives(t+h, offset(y, k3, h), params)
	if err != nil {
		return nil, err
	}

	next := make([]float64, len(y))
	for i := range y {
		next[i] = y[i] + h/6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	return next, nil
}

func offset(y, k []float64, scale float64) []float64 {
	out := make([]float64, len(y))
	for i := range y {
		out[i] = y[i] + scale*k[i]
	}
	return out
}
