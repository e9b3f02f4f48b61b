package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_BinaryPrecedence(t *testing.T) {
	expr, err := Parse("1 + 2 * 3")
	require.NoError(t, err)

	bin, ok := expr.(*BinaryExpr)
	require.True(t, ok, "expected BinaryExpr at root")
	assert.Equal(t, TOKEN_PLUS, bin.Op)

	right, ok := bin.Right.(*BinaryExpr)
	require.True(t, ok, "expected multiplication on the right")
	assert.Equal(t, TOKEN_STAR, right.Op)
}

func TestParse_PowerRightAssociative(t *testing.T) {
	expr, err := Parse("2 ** 3 ** 2")
	require.NoError(t, err)

	bin := expr.(*BinaryExpr)
	assert.Equal(t, TOKEN_POW, bin.Op)
	_, leftIsNumber := bin.Left.(*NumberLit)
	assert.True(t, leftIsNumber, "left of ** chain should be a literal")
	right, ok := bin.Right.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, TOKEN_POW, right.Op)
}

func TestParse_UnaryBindsLooserThanPower(t *testing.T) {
	// -2**2 parses as -(2**2), matching the source grammar.
	expr, err := Parse("-2**2")
	require.NoError(t, err)

	unary, ok := expr.(*UnaryExpr)
	require.True(t, ok)
	assert.Equal(t, TOKEN_MINUS, unary.Op)
	_, ok = unary.Operand.(*BinaryExpr)
	assert.True(t, ok)
}

func TestParse_ParamReference(t *testing.T) {
	expr, err := Parse("p.kT * (T_target - T)")
	require.NoError(t, err)

	bin := expr.(*BinaryExpr)
	attr, ok := bin.Left.(*AttrRef)
	require.True(t, ok)
	assert.Equal(t, "p", attr.Base)
	assert.Equal(t, "kT", attr.Name)
}

func TestParse_FunctionCall(t *testing.T) {
	expr, err := Parse("clamp(0.4*S + 0.2*R, 0, 1)")
	require.NoError(t, err)

	call, ok := expr.(*CallExpr)
	require.True(t, ok)
	assert.Equal(t, "clamp", call.Func)
	assert.Len(t, call.Args, 3)
}

func TestParse_Conditional(t *testing.T) {
	expr, err := Parse("T if S > 0.5 else R")
	require.NoError(t, err)

	cond, ok := expr.(*CondExpr)
	require.True(t, ok)
	_, ok = cond.Cond.(*CompareExpr)
	assert.True(t, ok)
}

func TestParse_ChainedComparison(t *testing.T) {
	expr, err := Parse("0 < T < 1")
	require.NoError(t, err)

	cmp, ok := expr.(*CompareExpr)
	require.True(t, ok)
	assert.Len(t, cmp.Ops, 2)
	assert.Len(t, cmp.Rights, 2)
}

func TestParse_SyntaxErrors(t *testing.T) {
	tests := []string{
		"",
		"T +",
		"(T",
		"clamp(T, 0, 1",
		"T @ S",
		"1 = 2",
		"T if S",
		"* T",
	}

	for _, input := range tests {
		_, err := Parse(input)
		assert.Error(t, err, "expected syntax error for %q", input)
	}
}

func TestParse_ErrorHasPosition(t *testing.T) {
	_, err := Parse("T + )")
	require.Error(t, err)

	parseErr, ok := err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, 1, parseErr.Pos.Line)
	assert.Equal(t, 5, parseErr.Pos.Column)
}

func TestParse_IllegalCharacterIsLexError(t *testing.T) {
	_, err := Parse("T + @")
	require.Error(t, err)

	var lexErr *LexError
	require.ErrorAs(t, err, &lexErr)
	assert.Equal(t, 1, lexErr.Pos.Line)
	assert.Equal(t, 5, lexErr.Pos.Column)
	assert.Contains(t, err.Error(), `unexpected character "@"`)
}
