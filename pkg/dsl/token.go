package dsl

import "fmt"

// TokenType identifies the lexical class of a token.
type TokenType int

const (
	TOKEN_ILLEGAL TokenType = iota
	TOKEN_EOF

	TOKEN_NUMBER
	TOKEN_IDENT
	TOKEN_STRING

	TOKEN_PLUS
	TOKEN_MINUS
	TOKEN_STAR
	TOKEN_SLASH
	TOKEN_POW

	TOKEN_LT
	TOKEN_GT
	TOKEN_LE
	TOKEN_GE
	TOKEN_EQ
	TOKEN_NE

	TOKEN_DOT
	TOKEN_COMMA
	TOKEN_LPAREN
	TOKEN_RPAREN

	TOKEN_IF
	TOKEN_ELSE
)

var tokenNames = map[TokenType]string{
	TOKEN_ILLEGAL: "ILLEGAL",
	TOKEN_EOF:     "EOF",
	TOKEN_NUMBER:  "NUMBER",
	TOKEN_IDENT:   "IDENT",
	TOKEN_STRING:  "STRING",
	TOKEN_PLUS:    "+",
	TOKEN_MINUS:   "-",
	TOKEN_STAR:    "*",
	TOKEN_SLASH:   "/",
	TOKEN_POW:     "**",
	TOKEN_LT:      "<",
	TOKEN_GT:      ">",
	TOKEN_LE:      "<=",
	TOKEN_GE:      ">=",
	TOKEN_EQ:      "==",
	TOKEN_NE:      "!=",
	TOKEN_DOT:     ".",
	TOKEN_COMMA:   ",",
	TOKEN_LPAREN:  "(",
	TOKEN_RPAREN:  ")",
	TOKEN_IF:      "if",
	TOKEN_ELSE:    "else",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Position is a location in the source expression (1-based line and column).
type Position struct {
	Line   int
	Column int
	Offset int
}

// Token is a single lexical token with its source position.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

// keywords maps reserved words to their token types.
var keywords = map[string]TokenType{
	"if":   TOKEN_IF,
	"else": TOKEN_ELSE,
}

// LookupIdent returns the keyword token type for an identifier, or TOKEN_IDENT.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TOKEN_IDENT
}
