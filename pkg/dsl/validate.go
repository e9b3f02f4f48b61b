package dsl

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationResult is the outcome of validating one expression.
type ValidationResult struct {
	Valid      bool     `json:"valid"`
	Normalized string   `json:"normalized"`
	StateDeps  []string `json:"state_deps"`
	ParamDeps  []string `json:"param_deps"`
	Errors     []string `json:"errors"`
	Warnings   []string `json:"warnings"`
}

// Validator validates expressions against a declared symbol universe.
// A reference to an unknown state is a hard error; a reference to an unknown
// parameter is a soft warning.
type Validator struct {
	states map[string]struct{}
	params map[string]struct{}
}

// NewValidator creates a validator for the given state and parameter symbols.
func NewValidator(states, params []string) *Validator {
	v := &Validator{
		states: make(map[string]struct{}, len(states)),
		params: make(map[string]struct{}, len(params)),
	}
	for _, s := range states {
		v.states[s] = struct{}{}
	}
	for _, p := range params {
		v.params[p] = struct{}{}
	}
	return v
}

// Validate parses and validates an expression, collecting every violation
// rather than stopping at the first.
func (v *Validator) Validate(expression string) ValidationResult {
	result := ValidationResult{
		Errors:   []string{},
		Warnings: []string{},
	}

	expr, err := Parse(expression)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	w := &walker{validator: v, result: &result,
		stateDeps: make(map[string]struct{}),
		paramDeps: make(map[string]struct{}),
	}
	w.walk(expr)

	result.StateDeps = sortedKeys(w.stateDeps)
	result.ParamDeps = sortedKeys(w.paramDeps)

	if len(result.Errors) == 0 {
		result.Valid = true
		result.Normalized = strings.TrimSpace(expression)
	}
	return result
}

// walker accumulates errors, warnings, and dependencies over one AST.
type walker struct {
	validator *Validator
	result    *ValidationResult
	stateDeps map[string]struct{}
	paramDeps map[string]struct{}
}

func (w *walker) errorf(format string, args ...any) {
	w.result.Errors = append(w.result.Errors, fmt.Sprintf(format, args...))
}

func (w *walker) warnf(format string, args ...any) {
	w.result.Warnings = append(w.result.Warnings, fmt.Sprintf(format, args...))
}

func (w *walker) walk(expr Expr) {
	switch node := expr.(type) {
	case *NumberLit:
		// Numbers are always OK.

	case *StringLit:
		w.errorf("only numeric literals allowed, got string %q", node.Value)

	case *Ident:
		if _, ok := w.validator.states[node.Name]; ok {
			w.stateDeps[node.Name] = struct{}{}
		} else if node.Name != timeName {
			w.errorf("unknown state variable: %s", node.Name)
		}

	case *AttrRef:
		if node.Base != "p" {
			w.errorf("only 'p.<param>' attribute access allowed, got %s.%s", node.Base, node.Name)
			return
		}
		if _, ok := w.validator.params[node.Name]; !ok {
			w.warnf("unknown parameter: p.%s", node.Name)
		}
		w.paramDeps[node.Name] = struct{}{}

	case *CallExpr:
		if strings.Contains(node.Func, ".") {
			w.errorf("only simple function calls allowed, got %s(...)", node.Func)
			for _, arg := range node.Args {
				w.walk(arg)
			}
			return
		}
		spec, ok := registry[node.Func]
		if !ok {
			w.errorf("function %q not allowed, allowed: %s", node.Func, strings.Join(AllowedFunctions(), ", "))
		} else {
			n := len(node.Args)
			if n < spec.minArgs || (spec.maxArgs >= 0 && n > spec.maxArgs) {
				w.errorf("function %q expects %s, got %d", node.Func, arityText(spec), n)
			}
		}
		for _, arg := range node.Args {
			w.walk(arg)
		}

	case *UnaryExpr:
		w.walk(node.Operand)

	case *BinaryExpr:
		w.walk(node.Left)
		w.walk(node.Right)

	case *CompareExpr:
		w.walk(node.Left)
		for _, right := range node.Rights {
			w.walk(right)
		}

	case *CondExpr:
		w.walk(node.Cond)
		w.walk(node.Body)
		w.walk(node.Orelse)

	default:
		w.errorf("expression node %T not allowed", expr)
	}
}

func arityText(spec funcSpec) string {
	switch {
	case spec.maxArgs < 0:
		return fmt.Sprintf("at least %d arguments", spec.minArgs)
	case spec.minArgs == spec.maxArgs:
		return fmt.Sprintf("%d argument(s)", spec.minArgs)
	default:
		return fmt.Sprintf("%d to %d arguments", spec.minArgs, spec.maxArgs)
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
