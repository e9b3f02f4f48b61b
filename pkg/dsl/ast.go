package dsl

// Expr is the interface implemented by all expression nodes.
type Expr interface {
	exprNode()
	// Pos returns the source position of the node.
	Pos() Position
}

// NumberLit is a numeric literal.
type NumberLit struct {
	Value   float64
	Literal string
	pos     Position
}

// StringLit is a quoted literal. The grammar has no use for strings; the node
// exists so the validator can reject them with a clear message.
type StringLit struct {
	Value string
	pos   Position
}

// Ident is a bare identifier referring to a state symbol.
type Ident struct {
	Name string
	pos  Position
}

// AttrRef is an attribute-style reference (base.name). The only accepted base
// is "p", referring to a parameter.
type AttrRef struct {
	Base string
	Name string
	pos  Position
}

// CallExpr is a function call with positional arguments.
type CallExpr struct {
	Func string
	Args []Expr
	pos  Position
}

// UnaryExpr is a unary + or - applied to an operand.
type UnaryExpr struct {
	Op      TokenType
	Operand Expr
	pos     Position
}

// BinaryExpr is an arithmetic binary operation (+ - * / **).
type BinaryExpr struct {
	Left  Expr
	Op    TokenType
	Right Expr
	pos   Position
}

// CompareExpr is a (possibly chained) comparison: left op0 right0 op1 right1...
// A chain like "a < b < c" evaluates as "a < b and b < c".
type CompareExpr struct {
	Left   Expr
	Ops    []TokenType
	Rights []Expr
	pos    Position
}

// CondExpr is the conditional expression "body if cond else orelse".
type CondExpr struct {
	Body   Expr
	Cond   Expr
	Orelse Expr
	pos    Position
}

func (*NumberLit) exprNode()   {}
func (*StringLit) exprNode()   {}
func (*Ident) exprNode()       {}
func (*AttrRef) exprNode()     {}
func (*CallExpr) exprNode()    {}
func (*UnaryExpr) exprNode()   {}
func (*BinaryExpr) exprNode()  {}
func (*CompareExpr) exprNode() {}
func (*CondExpr) exprNode()    {}

func (n *NumberLit) Pos() Position   { return n.pos }
func (n *StringLit) Pos() Position   { return n.pos }
func (n *Ident) Pos() Position       { return n.pos }
func (n *AttrRef) Pos() Position     { return n.pos }
func (n *CallExpr) Pos() Position    { return n.pos }
func (n *UnaryExpr) Pos() Position   { return n.pos }
func (n *BinaryExpr) Pos() Position  { return n.pos }
func (n *CompareExpr) Pos() Position { return n.pos }
func (n *CondExpr) Pos() Position    { return n.pos }
