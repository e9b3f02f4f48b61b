package sim

import (
	"fmt"
	"sort"
	"strings"

	"github.com/driftlab/stockflow/pkg/dsl"
)

// maxInsights caps the number of matched rules reported per run.
const maxInsights = 3

// Insight is one matched rule with its template rendered against the run.
type Insight struct {
	Type           string `json:"type"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Impact         string `json:"impact,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`
}

// GenerateInsights evaluates the insight rules in declared order against the
// trajectory and the KPI values. Rules whose condition fails to evaluate are
// skipped silently. At most three insights are returned.
func (s *System) GenerateInsights(result *Result) []Insight {
	namespace := make(map[string]float64, 2*len(s.symbols)+2*len(s.kpis))

	final := len(result.T) - 1
	for _, sym := range s.symbols {
		namespace[sym] = result.States[sym][final]
		namespace[sym+"_initial"] = result.States[sym][0]
	}

	initialEnv := s.kpiEnv(result, 0)
	kpis := s.EvaluateKPIs(result)
	for kpiID, kpi := range kpis {
		if kpi.Error != "" {
			continue
		}
		namespace[kpiID] = kpi.Value
		if initialValue, err := s.kpis[kpiID].Eval(initialEnv); err == nil {
			namespace[kpiID+"_initial"] = initialValue
		}
	}

	env := dsl.Env{States: namespace, Params: result.Params, T: result.T[final]}

	insights := make([]Insight, 0, maxInsights)
	for i, rule := range s.model.InsightRules {
		matched, err := s.insights[i].Eval(env)
		if err != nil || matched == 0 {
			continue
		}
		insights = append(insights, Insight{
			Type:           rule.Type,
			Title:          rule.Title,
			Description:    renderTemplate(rule.Template, namespace),
			Impact:         rule.Impact,
			Recommendation: rule.Recommendation,
		})
		if len(insights) == maxInsights {
			break
		}
	}
	return insights
}

// renderTemplate substitutes {key_percent} with the value scaled to an
// integer percentage and {key} with the value formatted to two decimals.
// The percent form must be replaced first or the plain form would eat it.
func renderTemplate(template string, namespace map[string]float64) string {
	keys := make([]string, 0, len(namespace))
	for k := range namespace {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		val := namespace[key]
		template = strings.ReplaceAll(template, fmt.Sprintf("{%s_percent}", key), fmt.Sprintf("%d", int(val*100)))
		template = strings.ReplaceAll(template, fmt.Sprintf("{%s}", key), fmt.Sprintf("%.2f", val))
	}
	return template
}
