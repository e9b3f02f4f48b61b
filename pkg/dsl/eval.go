package dsl

import (
	"fmt"
	"math"
)

// timeName is the reserved identifier bound to the simulation time. A
// declared state of the same name shadows it, in the validator and the
// evaluator alike.
const timeName = "t"

// Env is the complete evaluation environment for one expression. Nothing
// outside these bindings is reachable from an expression: no imports, no
// attribute traversal, no host facilities.
type Env struct {
	// States maps state symbols to their current values.
	States map[string]float64
	// Params maps parameter names (without the p. prefix) to values.
	Params map[string]float64
	// T is the current simulation time.
	T float64
	// TargetName, when non-empty, exposes one extra binding (the precomputed
	// target for the state being evaluated, e.g. "T_target"). Only rate
	// expressions receive it.
	TargetName string
	// Target is the value bound to TargetName.
	Target float64
}

// Program is a compiled expression bound to the sandboxed evaluator. It can
// only be obtained through Compile, which refuses invalid expressions, so a
// Program always wraps a whitelisted AST.
type Program struct {
	root   Expr
	source string
}

// Source returns the normalized expression text.
func (p *Program) Source() string { return p.source }

// Compile validates the expression and, when valid, binds it into a Program.
// The Program is nil whenever the result reports Valid == false.
func (v *Validator) Compile(expression string) (*Program, ValidationResult) {
	result := v.Validate(expression)
	if !result.Valid {
		return nil, result
	}
	// Re-parse is safe: validation already proved the text parses.
	expr, err := Parse(expression)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return nil, result
	}
	return &Program{root: expr, source: result.Normalized}, result
}

// Eval evaluates the program against the given environment. A failure (an
// unbound name or a NaN arithmetic result) is returned as an *EvalError.
func (p *Program) Eval(env Env) (float64, error) {
	return eval(p.root, env)
}

func eval(expr Expr, env Env) (float64, error) {
	switch node := expr.(type) {
	case *NumberLit:
		return node.Value, nil

	case *Ident:
		if val, ok := env.States[node.Name]; ok {
			return val, nil
		}
		if env.TargetName != "" && node.Name == env.TargetName {
			return env.Target, nil
		}
		if node.Name == timeName {
			return env.T, nil
		}
		return 0, &EvalError{Message: fmt.Sprintf("unbound name %q", node.Name)}

	case *AttrRef:
		val, ok := env.Params[node.Name]
		if !ok {
			return 0, &EvalError{Message: fmt.Sprintf("unbound parameter p.%s", node.Name)}
		}
		return val, nil

	case *CallExpr:
		spec, ok := registry[node.Func]
		if !ok {
			return 0, &EvalError{Message: fmt.Sprintf("function %q not allowed", node.Func)}
		}
		args := make([]float64, len(node.Args))
		for i, argExpr := range node.Args {
			val, err := eval(argExpr, env)
			if err != nil {
				return 0, err
			}
			args[i] = val
		}
		if len(args) < spec.minArgs || (spec.maxArgs >= 0 && len(args) > spec.maxArgs) {
			return 0, &EvalError{Message: fmt.Sprintf("function %q called with %d argument(s)", node.Func, len(args))}
		}
		return spec.impl(args), nil

	case *UnaryExpr:
		val, err := eval(node.Operand, env)
		if err != nil {
			return 0, err
		}
		if node.Op == TOKEN_MINUS {
			return -val, nil
		}
		return val, nil

	case *BinaryExpr:
		left, err := eval(node.Left, env)
		if err != nil {
			return 0, err
		}
		right, err := eval(node.Right, env)
		if err != nil {
			return 0, err
		}
		var result float64
		switch node.Op {
		case TOKEN_PLUS:
			result = left + right
		case TOKEN_MINUS:
			result = left - right
		case TOKEN_STAR:
			result = left * right
		case TOKEN_SLASH:
			result = left / right
		case TOKEN_POW:
			result = math.Pow(left, right)
		default:
			return 0, &EvalError{Message: fmt.Sprintf("operator %s not allowed", node.Op)}
		}
		if math.IsNaN(result) {
			return 0, &EvalError{Message: fmt.Sprintf("operation %s produced a non-numeric result", node.Op)}
		}
		if node.Op == TOKEN_SLASH && math.IsInf(result, 0) {
			return 0, &EvalError{Message: "division produced a non-finite result"}
		}
		return result, nil

	case *CompareExpr:
		left, err := eval(node.Left, env)
		if err != nil {
			return 0, err
		}
		for i, op := range node.Ops {
			right, err := eval(node.Rights[i], env)
			if err != nil {
				return 0, err
			}
			if !compare(op, left, right) {
				return 0, nil
			}
			left = right
		}
		return 1, nil

	case *CondExpr:
		cond, err := eval(node.Cond, env)
		if err != nil {
			return 0, err
		}
		if cond != 0 {
			return eval(node.Body, env)
		}
		return eval(node.Orelse, env)

	case *StringLit:
		return 0, &EvalError{Message: "string literals cannot be evaluated"}

	default:
		return 0, &EvalError{Message: fmt.Sprintf("expression node %T not allowed", expr)}
	}
}

func compare(op TokenType, left, right float64) bool {
	switch op {
	case TOKEN_LT:
		return left < right
	case TOKEN_GT:
		return left > right
	case TOKEN_LE:
		return left <= right
	case TOKEN_GE:
		return left >= right
	case TOKEN_EQ:
		return left == right
	case TOKEN_NE:
		return left != right
	}
	return false
}
