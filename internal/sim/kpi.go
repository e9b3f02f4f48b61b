package sim

import (
	"log/slog"

	"github.com/driftlab/stockflow/pkg/dsl"
)

// KPIResult is one evaluated KPI: its value against the trajectory's final
// step, the percent change from the initial step, and a threshold status.
type KPIResult struct {
	Name            string  `json:"name"`
	Value           float64 `json:"value"`
	Change          float64 `json:"change"`
	Status          string  `json:"status"`
	Description     string  `json:"description,omitempty"`
	BusinessMeaning string  `json:"business_meaning,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// EvaluateKPIs computes every KPI against the trajectory. A KPI whose formula
// fails to evaluate degrades to a zero-valued warning with the error recorded
// rather than failing the batch.
func (s *System) EvaluateKPIs(result *Result) map[string]*KPIResult {
	out := make(map[string]*KPIResult, len(s.kpis))

	finalEnv := s.kpiEnv(result, len(result.T)-1)
	initialEnv := s.kpiEnv(result, 0)

	for _, kpiID := range sortedKPIKeys(s.model.KPIs) {
		def := s.model.KPIs[kpiID]
		prog := s.kpis[kpiID]

		// Final and initial evaluations degrade as a unit: a KPI with a
		// computable final value but a broken initial one is still broken.
		value, err := prog.Eval(finalEnv)
		var initialValue float64
		if err == nil {
			initialValue, err = prog.Eval(initialEnv)
		}
		if err != nil {
			s.logger.Warn("kpi evaluation failed",
				slog.String("kpi", kpiID), slog.String("error", err.Error()))
			out[kpiID] = &KPIResult{Status: "warning", Error: err.Error()}
			continue
		}

		status := "danger"
		if def.HigherIsBetter {
			if value >= def.GoodThreshold {
				status = "good"
			} else if value >= def.WarningThreshold {
				status = "warning"
			}
		} else {
			if value <= def.GoodThreshold {
				status = "good"
			} else if value <= def.WarningThreshold {
				status = "warning"
			}
		}

		base := initialValue
		if base == 0 {
			base = 1
		}
		change := (value - initialValue) / base * 100

		out[kpiID] = &KPIResult{
			Name:            def.Name,
			Value:           value,
			Change:          change,
			Status:          status,
			Description:     def.Description,
			BusinessMeaning: def.BusinessMeaning,
		}
	}

	return out
}

// kpiEnv binds the trajectory at the given step: bare symbols carry the step
// values and <sym>_initial always carries step zero.
func (s *System) kpiEnv(result *Result, step int) dsl.Env {
	states := make(map[string]float64, 2*len(s.symbols))
	for _, sym := range s.symbols {
		states[sym] = result.States[sym][step]
		states[sym+"_initial"] = result.States[sym][0]
	}
	return dsl.Env{States: states, Params: result.Params, T: result.T[step]}
}
