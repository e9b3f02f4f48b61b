package model

// Clone returns a deep copy of the model. The copy shares nothing with the
// original, so a merge can mutate it freely while the base stays immutable.
func (m *Model) Clone() *Model {
	if m == nil {
		return nil
	}

	out := &Model{
		Simulation: m.Simulation,
	}

	if m.States != nil {
		out.States = make(map[string]*State, len(m.States))
		for sym, s := range m.States {
			cp := *s
			out.States[sym] = &cp
		}
	}

	if m.Parameters != nil {
		out.Parameters = make(map[string]*Parameter, len(m.Parameters))
		for name, p := range m.Parameters {
			cp := *p
			if p.Min != nil {
				minCp := *p.Min
				cp.Min = &minCp
			}
			if p.Max != nil {
				maxCp := *p.Max
				cp.Max = &maxCp
			}
			out.Parameters[name] = &cp
		}
	}

	if m.Relations != nil {
		out.Relations = make([]*Relation, len(m.Relations))
		for i, r := range m.Relations {
			cp := *r
			out.Relations[i] = &cp
		}
	}

	if m.Equations != nil {
		out.Equations = make(map[string]*Equation, len(m.Equations))
		for sym, eq := range m.Equations {
			cp := *eq
			out.Equations[sym] = &cp
		}
	}

	if m.Scenarios != nil {
		out.Scenarios = make(map[string]*Scenario, len(m.Scenarios))
		for name, sc := range m.Scenarios {
			cp := Scenario{Description: sc.Description}
			if sc.ParamOverrides != nil {
				cp.ParamOverrides = make(map[string]float64, len(sc.ParamOverrides))
				for k, v := range sc.ParamOverrides {
					cp.ParamOverrides[k] = v
				}
			}
			if sc.InitialOverrides != nil {
				cp.InitialOverrides = make(map[string]float64, len(sc.InitialOverrides))
				for k, v := range sc.InitialOverrides {
					cp.InitialOverrides[k] = v
				}
			}
			out.Scenarios[name] = &cp
		}
	}

	if m.KPIs != nil {
		out.KPIs = make(map[string]*KPI, len(m.KPIs))
		for id, k := range m.KPIs {
			cp := *k
			out.KPIs[id] = &cp
		}
	}

	if m.InsightRules != nil {
		out.InsightRules = make([]*InsightRule, len(m.InsightRules))
		for i, rule := range m.InsightRules {
			cp := *rule
			out.InsightRules[i] = &cp
		}
	}

	return out
}
