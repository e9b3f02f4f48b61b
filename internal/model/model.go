// Package model defines the in-memory representation of a stock-flow model:
// states, parameters, relations, equations, scenarios, and the static KPI and
// insight-rule configuration. A Model value is a plain document; merging and
// simulation live elsewhere.
package model

import "sort"

// Categories is the closed set of state/parameter categories.
var Categories = []string{"capability", "governance", "execution", "risk", "market"}

// State is a single stock in the model.
type State struct {
	Name            string  `json:"name" yaml:"name" koanf:"name"`
	Short           string  `json:"short,omitempty" yaml:"short,omitempty" koanf:"short"`
	Initial         float64 `json:"initial" yaml:"initial" koanf:"initial"`
	Category        string  `json:"category,omitempty" yaml:"category,omitempty" koanf:"category"`
	Description     string  `json:"description,omitempty" yaml:"description,omitempty" koanf:"description"`
	BusinessMeaning string  `json:"business_meaning,omitempty" yaml:"business_meaning,omitempty" koanf:"business_meaning"`
}

// Parameter is a named numeric constant, optionally bounded.
type Parameter struct {
	Value       float64  `json:"value" yaml:"value" koanf:"value"`
	Min         *float64 `json:"min,omitempty" yaml:"min,omitempty" koanf:"min"`
	Max         *float64 `json:"max,omitempty" yaml:"max,omitempty" koanf:"max"`
	Category    string   `json:"category,omitempty" yaml:"category,omitempty" koanf:"category"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty" koanf:"description"`
}

// Relation is a causal link between two states. An empty Source means a
// constant influence on Target.
type Relation struct {
	ID          string  `json:"id" yaml:"id" koanf:"id"`
	Source      string  `json:"source,omitempty" yaml:"source,omitempty" koanf:"source"`
	Target      string  `json:"target" yaml:"target" koanf:"target"`
	Coefficient float64 `json:"coefficient" yaml:"coefficient" koanf:"coefficient"`
	ParamKey    string  `json:"param_key,omitempty" yaml:"param_key,omitempty" koanf:"param_key"`
	Transform   string  `json:"transform,omitempty" yaml:"transform,omitempty" koanf:"transform"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty" koanf:"description"`
}

// Equation holds the two expressions governing one state: the target computed
// in phase 1 and the rate computed in phase 2.
type Equation struct {
	TargetExpr string `json:"target_expr" yaml:"target_expr" koanf:"target_expr"`
	RateExpr   string `json:"rate_expr" yaml:"rate_expr" koanf:"rate_expr"`
}

// Scenario overrides parameter values and initial conditions without mutating
// the base definitions.
type Scenario struct {
	Description      string             `json:"description,omitempty" yaml:"description,omitempty" koanf:"description"`
	ParamOverrides   map[string]float64 `json:"param_overrides,omitempty" yaml:"param_overrides,omitempty" koanf:"param_overrides"`
	InitialOverrides map[string]float64 `json:"initial_overrides,omitempty" yaml:"initial_overrides,omitempty" koanf:"initial_overrides"`
}

// SimulationConfig is the time horizon and integration setup.
type SimulationConfig struct {
	TStart float64 `json:"t_start" yaml:"t_start" koanf:"t_start"`
	TEnd   float64 `json:"t_end" yaml:"t_end" koanf:"t_end"`
	Steps  int     `json:"steps" yaml:"steps" koanf:"steps"`
	Method string  `json:"method,omitempty" yaml:"method,omitempty" koanf:"method"`
}

// KPI is a formula evaluated against simulation output with status thresholds.
type KPI struct {
	Name             string  `json:"name" yaml:"name" koanf:"name"`
	Formula          string  `json:"formula" yaml:"formula" koanf:"formula"`
	GoodThreshold    float64 `json:"good_threshold" yaml:"good_threshold" koanf:"good_threshold"`
	WarningThreshold float64 `json:"warning_threshold" yaml:"warning_threshold" koanf:"warning_threshold"`
	HigherIsBetter   bool    `json:"higher_is_better" yaml:"higher_is_better" koanf:"higher_is_better"`
	Description      string  `json:"description,omitempty" yaml:"description,omitempty" koanf:"description"`
	BusinessMeaning  string  `json:"business_meaning,omitempty" yaml:"business_meaning,omitempty" koanf:"business_meaning"`
}

// InsightRule pairs a boolean condition with a message template. Placeholders
// of the form {key} and {key_percent} are substituted from the evaluation
// namespace when the rule matches.
type InsightRule struct {
	Type           string `json:"type" yaml:"type" koanf:"type"`
	Title          string `json:"title" yaml:"title" koanf:"title"`
	Condition      string `json:"condition" yaml:"condition" koanf:"condition"`
	Template       string `json:"template" yaml:"template" koanf:"template"`
	Impact         string `json:"impact,omitempty" yaml:"impact,omitempty" koanf:"impact"`
	Recommendation string `json:"recommendation,omitempty" yaml:"recommendation,omitempty" koanf:"recommendation"`
}

// Model is the complete six-section document plus the static KPI and insight
// configuration.
type Model struct {
	States       map[string]*State     `json:"states" yaml:"states" koanf:"states"`
	Parameters   map[string]*Parameter `json:"parameters" yaml:"parameters" koanf:"parameters"`
	Relations    []*Relation           `json:"relations" yaml:"relations" koanf:"relations"`
	Equations    map[string]*Equation  `json:"equations" yaml:"equations" koanf:"equations"`
	Scenarios    map[string]*Scenario  `json:"scenarios" yaml:"scenarios" koanf:"scenarios"`
	Simulation   SimulationConfig      `json:"simulation" yaml:"simulation" koanf:"simulation"`
	KPIs         map[string]*KPI       `json:"kpis,omitempty" yaml:"kpis,omitempty" koanf:"kpis"`
	InsightRules []*InsightRule        `json:"insight_rules,omitempty" yaml:"insight_rules,omitempty" koanf:"insight_rules"`
}

// New returns an empty model with all sections initialized.
func New() *Model {
	return &Model{
		States:     make(map[string]*State),
		Parameters: make(map[string]*Parameter),
		Relations:  []*Relation{},
		Equations:  make(map[string]*Equation),
		Scenarios:  make(map[string]*Scenario),
		KPIs:       make(map[string]*KPI),
	}
}

// StateSymbols returns the state symbols in sorted order. Every component
// that iterates states goes through this to keep output deterministic.
func (m *Model) StateSymbols() []string {
	symbols := make([]string, 0, len(m.States))
	for sym := range m.States {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}

// ParameterNames returns the parameter names in sorted order.
func (m *Model) ParameterNames() []string {
	names := make([]string, 0, len(m.Parameters))
	for name := range m.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ScenarioNames returns the scenario names in sorted order.
func (m *Model) ScenarioNames() []string {
	names := make([]string, 0, len(m.Scenarios))
	for name := range m.Scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultParams returns a fresh map of parameter name to default value.
func (m *Model) DefaultParams() map[string]float64 {
	params := make(map[string]float64, len(m.Parameters))
	for name, p := range m.Parameters {
		params[name] = p.Value
	}
	return params
}

// InitialValues returns a fresh map of state symbol to initial value.
func (m *Model) InitialValues() map[string]float64 {
	initials := make(map[string]float64, len(m.States))
	for sym, s := range m.States {
		initials[sym] = s.Initial
	}
	return initials
}
