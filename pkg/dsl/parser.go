// Package dsl implements the restricted equation language used for stock
// equations, KPI formulas, and insight conditions. It provides a lexer, a
// Pratt parser, a whitelist validator with dependency extraction, and a
// sandboxed tree-walking evaluator. Expressions never reach the evaluator
// without passing validation first.
package dsl

import (
	"fmt"
	"strconv"
)

// Operator precedence levels, lowest binds weakest.
const (
	precedenceNone = iota
	precedenceComparison
	precedenceAddition
	precedenceMultiply
	precedenceUnary
	precedencePower
)

// Parser parses a single expression into an AST.
type Parser struct {
	lexer *Lexer
	token Token
	peek  Token
	err   error
}

// NewParser creates a parser for the given expression text.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses the input as a complete expression. It returns the first
// syntax error encountered.
func Parse(input string) (Expr, error) {
	p := NewParser(input)
	expr := p.parseExpression()
	if p.err != nil {
		return nil, p.err
	}
	if p.token.Type != TOKEN_EOF {
		return nil, &ParseError{Pos: p.token.Pos, Message: fmt.Sprintf("unexpected token %s", p.describe(p.token))}
	}
	return expr, nil
}

func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) addError(pos Position, format string, args ...any) {
	if p.err == nil {
		p.err = &ParseError{Pos: pos, Message: fmt.Sprintf(format, args...)}
	}
}

func (p *Parser) expect(t TokenType) bool {
	if p.token.Type != t {
		p.addError(p.token.Pos, "unexpected token %s, expected %s", p.describe(p.token), t)
		return false
	}
	p.nextToken()
	return true
}

func (p *Parser) describe(tok Token) string {
	switch tok.Type {
	case TOKEN_EOF:
		return "end of expression"
	case TOKEN_NUMBER, TOKEN_IDENT:
		return fmt.Sprintf("%s %q", tok.Type, tok.Literal)
	case TOKEN_ILLEGAL:
		return fmt.Sprintf("character %q", tok.Literal)
	default:
		return fmt.Sprintf("%q", tok.Literal)
	}
}

// parseExpression parses a conditional expression, the lowest-precedence form:
//
//	body if cond else orelse
//
// The else branch is itself a conditional, making chains right-associative.
func (p *Parser) parseExpression() Expr {
	body := p.parseComparison()
	if body == nil {
		return nil
	}

	if p.token.Type != TOKEN_IF {
		return body
	}
	pos := p.token.Pos
	p.nextToken()

	cond := p.parseComparison()
	if cond == nil {
		return nil
	}
	if !p.expect(TOKEN_ELSE) {
		return nil
	}
	orelse := p.parseExpression()
	if orelse == nil {
		return nil
	}

	return &CondExpr{Body: body, Cond: cond, Orelse: orelse, pos: pos}
}

// parseComparison parses a possibly chained comparison:
//
//	a < b <= c  evaluates as  a < b and b <= c
func (p *Parser) parseComparison() Expr {
	left := p.parseBinary(precedenceAddition)
	if left == nil {
		return nil
	}

	if !isComparisonOp(p.token.Type) {
		return left
	}

	cmp := &CompareExpr{Left: left, pos: p.token.Pos}
	for isComparisonOp(p.token.Type) {
		op := p.token.Type
		p.nextToken()
		right := p.parseBinary(precedenceAddition)
		if right == nil {
			return nil
		}
		cmp.Ops = append(cmp.Ops, op)
		cmp.Rights = append(cmp.Rights, right)
	}
	return cmp
}

func isComparisonOp(t TokenType) bool {
	switch t {
	case TOKEN_LT, TOKEN_GT, TOKEN_LE, TOKEN_GE, TOKEN_EQ, TOKEN_NE:
		return true
	}
	return false
}

// parseBinary implements precedence climbing for the arithmetic operators.
func (p *Parser) parseBinary(minPrecedence int) Expr {
	left := p.parsePrefix()
	if left == nil {
		return nil
	}

	for {
		prec := infixPrecedence(p.token.Type)
		if prec < minPrecedence {
			return left
		}

		op := p.token
		p.nextToken()

		// ** is right-associative; everything else is left-associative.
		nextMin := prec + 1
		if op.Type == TOKEN_POW {
			nextMin = prec
		}
		right := p.parseBinary(nextMin)
		if right == nil {
			return nil
		}
		left = &BinaryExpr{Left: left, Op: op.Type, Right: right, pos: op.Pos}
	}
}

func infixPrecedence(t TokenType) int {
	switch t {
	case TOKEN_PLUS, TOKEN_MINUS:
		return precedenceAddition
	case TOKEN_STAR, TOKEN_SLASH:
		return precedenceMultiply
	case TOKEN_POW:
		return precedencePower
	default:
		return precedenceNone
	}
}

// parsePrefix parses unary operators and primary expressions.
func (p *Parser) parsePrefix() Expr {
	switch p.token.Type {
	case TOKEN_MINUS, TOKEN_PLUS:
		op := p.token
		p.nextToken()
		operand := p.parseBinary(precedenceUnary)
		if operand == nil {
			return nil
		}
		return &UnaryExpr{Op: op.Type, Operand: operand, pos: op.Pos}
	default:
		return p.parsePrimary()
	}
}

// parsePrimary parses literals, identifiers, parameter references, function
// calls, and parenthesized expressions.
func (p *Parser) parsePrimary() Expr {
	tok := p.token

	switch tok.Type {
	case TOKEN_NUMBER:
		val, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.addError(tok.Pos, "invalid number literal %q", tok.Literal)
			return nil
		}
		p.nextToken()
		return &NumberLit{Value: val, Literal: tok.Literal, pos: tok.Pos}

	case TOKEN_STRING:
		p.nextToken()
		return &StringLit{Value: tok.Literal, pos: tok.Pos}

	case TOKEN_IDENT:
		p.nextToken()

		// Attribute reference: base.name (only p.<param> survives validation).
		if p.token.Type == TOKEN_DOT {
			p.nextToken()
			if p.token.Type != TOKEN_IDENT {
				p.addError(p.token.Pos, "expected attribute name after %q.", tok.Literal)
				return nil
			}
			attr := p.token
			p.nextToken()
			// Attribute calls (x.y(...)) parse so the validator can reject
			// them as non-simple calls rather than as bare syntax errors.
			if p.token.Type == TOKEN_LPAREN {
				return p.parseCall(tok.Literal+"."+attr.Literal, tok.Pos)
			}
			return &AttrRef{Base: tok.Literal, Name: attr.Literal, pos: tok.Pos}
		}

		// Function call.
		if p.token.Type == TOKEN_LPAREN {
			return p.parseCall(tok.Literal, tok.Pos)
		}

		return &Ident{Name: tok.Literal, pos: tok.Pos}
	case TOKEN_LPAREN:
		p.nextToken()
		expr := p.parseExpression()
		if expr == nil {
			return nil
		}
		if !p.expect(TOKEN_RPAREN) {
			return nil
		}
		return expr

	case TOKEN_ILLEGAL:
		if p.err == nil {
			p.err = &LexError{Pos: tok.Pos, Message: fmt.Sprintf("unexpected character %q", tok.Literal)}
		}
		return nil

	default:
		p.addError(tok.Pos, "unexpected token %s", p.describe(tok))
		return nil
	}
}

// parseCall parses the argument list of a call whose opening paren is the
// current token.
func (p *Parser) parseCall(name string, pos Position) Expr {
	p.nextToken() // consume (
	call := &CallExpr{Func: name, pos: pos}
	if p.token.Type != TOKEN_RPAREN {
		for {
			arg := p.parseExpression()
			if arg == nil {
				return nil
			}
			call.Args = append(call.Args, arg)
			if p.token.Type != TOKEN_COMMA {
				break
			}
			p.nextToken()
		}
	}
	if !p.expect(TOKEN_RPAREN) {
		return nil
	}
	return call
}
