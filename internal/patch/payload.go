package patch

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/driftlab/stockflow/internal/model"
)

// decode fills out from a change payload. Weak typing tolerates the int/float
// ambiguity of JSON and YAML numbers.
func decode(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(data); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

// The *patch types mirror the entity shapes with pointer fields so that
// update operations merge only the fields actually present in the payload.

type statePatch struct {
	Name            *string  `json:"name"`
	Short           *string  `json:"short"`
	Initial         *float64 `json:"initial"`
	Category        *string  `json:"category"`
	Description     *string  `json:"description"`
	BusinessMeaning *string  `json:"business_meaning"`
}

func (p *statePatch) apply(s *model.State) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Short != nil {
		s.Short = *p.Short
	}
	if p.Initial != nil {
		s.Initial = *p.Initial
	}
	if p.Category != nil {
		s.Category = *p.Category
	}
	if p.Description != nil {
		s.Description = *p.Description
	}
	if p.BusinessMeaning != nil {
		s.BusinessMeaning = *p.BusinessMeaning
	}
}

type parameterPatch struct {
	Value       *float64 `json:"value"`
	Min         *float64 `json:"min"`
	Max         *float64 `json:"max"`
	Category    *string  `json:"category"`
	Description *string  `json:"description"`
}

func (p *parameterPatch) apply(param *model.Parameter) {
	if p.Value != nil {
		param.Value = *p.Value
	}
	if p.Min != nil {
		param.Min = p.Min
	}
	if p.Max != nil {
		param.Max = p.Max
	}
	if p.Category != nil {
		param.Category = *p.Category
	}
	if p.Description != nil {
		param.Description = *p.Description
	}
}

type relationPatch struct {
	ID          *string  `json:"id"`
	Source      *string  `json:"source"`
	Target      *string  `json:"target"`
	Coefficient *float64 `json:"coefficient"`
	ParamKey    *string  `json:"param_key"`
	Transform   *string  `json:"transform"`
	Description *string  `json:"description"`
}

func (p *relationPatch) apply(r *model.Relation) {
	if p.ID != nil {
		r.ID = *p.ID
	}
	if p.Source != nil {
		r.Source = *p.Source
	}
	if p.Target != nil {
		r.Target = *p.Target
	}
	if p.Coefficient != nil {
		r.Coefficient = *p.Coefficient
	}
	if p.ParamKey != nil {
		r.ParamKey = *p.ParamKey
	}
	if p.Transform != nil {
		r.Transform = *p.Transform
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
}

type equationPatch struct {
	TargetExpr *string `json:"target_expr"`
	RateExpr   *string `json:"rate_expr"`
}

func (p *equationPatch) apply(eq *model.Equation) {
	if p.TargetExpr != nil {
		eq.TargetExpr = *p.TargetExpr
	}
	if p.RateExpr != nil {
		eq.RateExpr = *p.RateExpr
	}
}

type scenarioPatch struct {
	Description      *string            `json:"description"`
	ParamOverrides   map[string]float64 `json:"param_overrides"`
	InitialOverrides map[string]float64 `json:"initial_overrides"`
}

func (p *scenarioPatch) apply(sc *model.Scenario) {
	if p.Description != nil {
		sc.Description = *p.Description
	}
	if p.ParamOverrides != nil {
		sc.ParamOverrides = p.ParamOverrides
	}
	if p.InitialOverrides != nil {
		sc.InitialOverrides = p.InitialOverrides
	}
}
