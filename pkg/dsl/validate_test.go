package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator() *Validator {
	return NewValidator(
		[]string{"T", "S", "R", "Q", "E"},
		[]string{"kT", "ai_boost", "ethics_constraint"},
	)
}

func TestValidate_AcceptsWellFormedExpressions(t *testing.T) {
	v := newTestValidator()

	exprs := []string{
		"clamp(0.4*S + 0.2*R + 0.3*Q + p.ai_boost - p.ethics_constraint*(1-E), 0, 1)",
		"T + S + R",
		"sigmoid(T - 0.5, 10)",
		"step(Q, 0.3)",
		"smoothstep(E)",
		"exp(-T) * log(S + 1)",
		"1.5 if T > 0.5 else 0.2",
		"min(T, S, R)",
		"-T ** 2",
	}

	for _, expr := range exprs {
		result := v.Validate(expr)
		assert.True(t, result.Valid, "%q should validate, errors: %v", expr, result.Errors)
		assert.Empty(t, result.Errors)
	}
}

func TestValidate_DependencyExtraction(t *testing.T) {
	v := newTestValidator()

	result := v.Validate("clamp(0.4*S + p.ai_boost - p.ethics_constraint*(1-E), 0, 1)")
	require.True(t, result.Valid)

	assert.Equal(t, []string{"E", "S"}, result.StateDeps)
	assert.Equal(t, []string{"ai_boost", "ethics_constraint"}, result.ParamDeps)
}

func TestValidate_TimeIsKnown(t *testing.T) {
	v := newTestValidator()

	result := v.Validate("0.1 * t + T")
	assert.True(t, result.Valid, "errors: %v", result.Errors)
	// Time is a binding, not a state dependency.
	assert.Equal(t, []string{"T"}, result.StateDeps)
}

func TestValidate_DeclaredStateShadowsTime(t *testing.T) {
	v := NewValidator([]string{"t"}, nil)

	result := v.Validate("t + 1")
	assert.True(t, result.Valid, "errors: %v", result.Errors)
	assert.Equal(t, []string{"t"}, result.StateDeps)
}

func TestValidate_UnknownStateIsHardError(t *testing.T) {
	v := newTestValidator()

	result := v.Validate("T + X")
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unknown state variable: X")
}

func TestValidate_UnknownParameterIsWarning(t *testing.T) {
	v := newTestValidator()

	result := v.Validate("p.unknown_param * T")
	assert.True(t, result.Valid, "undeclared parameter must not invalidate")
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "unknown parameter: p.unknown_param")
	assert.Equal(t, []string{"unknown_param"}, result.ParamDeps)
}

func TestValidate_DisallowedConstructs(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		expr    string
		wantErr string
	}{
		{"os.system(T)", "only simple function calls allowed"},
		{"q.x * T", "only 'p.<param>' attribute access allowed"},
		{"eval(T)", `function "eval" not allowed`},
		{"sqrt(T)", `function "sqrt" not allowed`},
		{"'hello'", "only numeric literals allowed"},
		{"clamp(T, 0)", `function "clamp" expects 3 argument(s), got 2`},
		{"min(T)", `function "min" expects at least 2 arguments, got 1`},
		{"sigmoid(T, 1, 2)", `function "sigmoid" expects 1 to 2 arguments, got 3`},
	}

	for _, tt := range tests {
		result := v.Validate(tt.expr)
		assert.False(t, result.Valid, "%q should be invalid", tt.expr)
		require.NotEmpty(t, result.Errors, "%q should produce an error", tt.expr)
		assert.Contains(t, result.Errors[0], tt.wantErr)
	}
}

func TestValidate_SyntaxErrorIsHardError(t *testing.T) {
	v := newTestValidator()

	result := v.Validate("import os; os.system('rm -rf /')")
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestValidate_CollectsMultipleErrors(t *testing.T) {
	v := newTestValidator()

	result := v.Validate("foo(X) + bar(Y)")
	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 4) // two unknown functions, two unknown states
}

func TestValidate_NormalizedTrimsWhitespace(t *testing.T) {
	v := newTestValidator()

	result := v.Validate("  T + S  ")
	require.True(t, result.Valid)
	assert.Equal(t, "T + S", result.Normalized)
}

func TestValidate_RateExpressionWithTargetSymbol(t *testing.T) {
	// Rate expressions are validated with the synthetic <sym>_target symbol
	// added to the state universe.
	v := NewValidator([]string{"T", "T_target"}, []string{"kT"})

	result := v.Validate("p.kT * (T_target - T)")
	assert.True(t, result.Valid, "errors: %v", result.Errors)
	assert.Equal(t, []string{"T", "T_target"}, result.StateDeps)
	assert.Equal(t, []string{"kT"}, result.ParamDeps)
}
