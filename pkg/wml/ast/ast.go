// Package ast defines the expression syntax tree of the template language.
//
// Every node renders a canonical, re-parseable String(). Two expressions with
// equal String() are treated as the same expression by the compiler, so the
// rendering rules here are part of the de-duplication contract.
package ast

import (
	"strings"

	"github.com/sambeau/wml/pkg/wml/lexer"
)

// NodeKind tags every concrete node type.
type NodeKind int

const (
	ProgramKind NodeKind = iota
	EmptyStatementKind
	ExpressionStatementKind
	ThisExpressionKind
	ArrayExpressionKind
	ObjectExpressionKind
	SequenceExpressionKind
	UnaryExpressionKind
	BinaryExpressionKind
	LogicalExpressionKind
	ConditionalExpressionKind
	AssignmentExpressionKind
	UpdateExpressionKind
	CallExpressionKind
	MemberExpressionKind
	DecoratorChainCallKind
	DecoratorChainContextKind
	DecoratorCallKind
	IdentifierKind
	LiteralKind
	ExpressionBraceKind
)

var kindNames = [...]string{
	ProgramKind:               "Program",
	EmptyStatementKind:        "EmptyStatement",
	ExpressionStatementKind:   "ExpressionStatement",
	ThisExpressionKind:        "ThisExpression",
	ArrayExpressionKind:       "ArrayExpression",
	ObjectExpressionKind:      "ObjectExpression",
	SequenceExpressionKind:    "SequenceExpression",
	UnaryExpressionKind:       "UnaryExpression",
	BinaryExpressionKind:      "BinaryExpression",
	LogicalExpressionKind:     "LogicalExpression",
	ConditionalExpressionKind: "ConditionalExpression",
	AssignmentExpressionKind:  "AssignmentExpression",
	UpdateExpressionKind:      "UpdateExpression",
	CallExpressionKind:        "CallExpression",
	MemberExpressionKind:      "MemberExpression",
	DecoratorChainCallKind:    "DecoratorChainCall",
	DecoratorChainContextKind: "DecoratorChainContext",
	DecoratorCallKind:         "DecoratorCall",
	IdentifierKind:            "Identifier",
	LiteralKind:               "Literal",
	ExpressionBraceKind:       "ExpressionBrace",
}

func (k NodeKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Location is the source range a node was parsed from. Lines and columns are 1-based.
type Location struct {
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// Node represents any node in the AST
type Node interface {
	Kind() NodeKind
	Loc() Location
	TokenLiteral() string
	String() string
}

// Statement represents statement nodes
type Statement interface {
	Node
	statementNode()
}

// Expression represents expression nodes
type Expression interface {
	Node
	expressionNode()
}

// span is embedded by every node to carry its location.
type span struct {
	Location Location
}

func (s span) Loc() Location { return s.Location }

// SetLoc overwrites the node location. Only the parser calls it.
func (s *span) SetLoc(l Location) { s.Location = l }

// Program represents the root node of every expression
type Program struct {
	span
	Body []Statement
	// ReferenceID is the expression-table index, -1 until allocated.
	ReferenceID int
	// Source is the text the program was parsed from.
	Source string
}

// NewProgram returns an unallocated program.
func NewProgram(body []Statement, source string) *Program {
	return &Program{Body: body, ReferenceID: -1, Source: source}
}

func (p *Program) Kind() NodeKind { return ProgramKind }
func (p *Program) TokenLiteral() string {
	if len(p.Body) > 0 {
		return p.Body[0].TokenLiteral()
	}
	return ""
}
func (p *Program) String() string {
	parts := make([]string, 0, len(p.Body))
	for _, s := range p.Body {
		if _, ok := s.(*EmptyStatement); ok {
			continue
		}
		parts = append(parts, s.String())
	}
	return strings.Join(parts, "; ")
}

// Expressions returns the expression of every non-empty statement.
func (p *Program) Expressions() []Expression {
	var out []Expression
	for _, s := range p.Body {
		if es, ok := s.(*ExpressionStatement); ok {
			out = append(out, es.Expression)
		}
	}
	return out
}

// Single returns the only expression of the program, or nil.
func (p *Program) Single() Expression {
	exprs := p.Expressions()
	if len(exprs) != 1 {
		return nil
	}
	return exprs[0]
}

// EmptyStatement is a bare ';'
type EmptyStatement struct {
	span
	Token lexer.Token
}

func (es *EmptyStatement) statementNode()       {}
func (es *EmptyStatement) Kind() NodeKind       { return EmptyStatementKind }
func (es *EmptyStatement) TokenLiteral() string { return es.Token.Literal }
func (es *EmptyStatement) String() string       { return "" }

// ExpressionStatement wraps an expression used as a statement
type ExpressionStatement struct {
	span
	Token      lexer.Token
	Expression Expression
}

func (es *ExpressionStatement) statementNode()       {}
func (es *ExpressionStatement) Kind() NodeKind       { return ExpressionStatementKind }
func (es *ExpressionStatement) TokenLiteral() string { return es.Token.Literal }
func (es *ExpressionStatement) String() string {
	if es.Expression == nil {
		return ""
	}
	return es.Expression.String()
}

// ThisExpression is the 'this' keyword
type ThisExpression struct {
	span
	Token lexer.Token
}

func (te *ThisExpression) expressionNode()      {}
func (te *ThisExpression) Kind() NodeKind       { return ThisExpressionKind }
func (te *ThisExpression) TokenLiteral() string { return te.Token.Literal }
func (te *ThisExpression) String() string       { return "this" }

// ArrayExpression is an array literal like [a, b]
type ArrayExpression struct {
	span
	Token    lexer.Token
	Elements []Expression
}

func (ae *ArrayExpression) expressionNode()      {}
func (ae *ArrayExpression) Kind() NodeKind       { return ArrayExpressionKind }
func (ae *ArrayExpression) TokenLiteral() string { return ae.Token.Literal }
func (ae *ArrayExpression) String() string {
	return "[" + joinExpressions(ae.Elements) + "]"
}

// Property is a key/value pair of an object literal. Key is an Identifier or a Literal.
type Property struct {
	Key   Expression
	Value Expression
}

// KeyName returns the property name as a plain string.
func (p *Property) KeyName() string {
	switch k := p.Key.(type) {
	case *Identifier:
		return k.Name
	case *Literal:
		if s, ok := k.Value.(string); ok {
			return s
		}
		return k.Raw
	}
	return p.Key.String()
}

// ObjectExpression is an object literal like {a: 1, 'b': c}
type ObjectExpression struct {
	span
	Token      lexer.Token
	Properties []*Property
}

func (oe *ObjectExpression) expressionNode()      {}
func (oe *ObjectExpression) Kind() NodeKind       { return ObjectExpressionKind }
func (oe *ObjectExpression) TokenLiteral() string { return oe.Token.Literal }
func (oe *ObjectExpression) String() string {
	if len(oe.Properties) == 0 {
		return "{}"
	}
	parts := make([]string, len(oe.Properties))
	for i, p := range oe.Properties {
		parts[i] = p.Key.String() + ": " + p.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// SequenceExpression is a comma-separated list evaluated left to right
type SequenceExpression struct {
	span
	Token       lexer.Token
	Expressions []Expression
}

func (se *SequenceExpression) expressionNode()      {}
func (se *SequenceExpression) Kind() NodeKind       { return SequenceExpressionKind }
func (se *SequenceExpression) TokenLiteral() string { return se.Token.Literal }
func (se *SequenceExpression) String() string       { return joinExpressions(se.Expressions) }

// UnaryExpression is a prefix operator: ! - + typeof
type UnaryExpression struct {
	span
	Token    lexer.Token
	Operator string
	Argument Expression
}

func (ue *UnaryExpression) expressionNode()      {}
func (ue *UnaryExpression) Kind() NodeKind       { return UnaryExpressionKind }
func (ue *UnaryExpression) TokenLiteral() string { return ue.Token.Literal }
func (ue *UnaryExpression) String() string {
	if ue.Operator == "typeof" {
		return "typeof " + ue.Argument.String()
	}
	return ue.Operator + ue.Argument.String()
}

// BinaryExpression is an arithmetic, equality or relational operation
type BinaryExpression struct {
	span
	Token    lexer.Token
	Operator string
	Left     Expression
	Right    Expression
}

func (be *BinaryExpression) expressionNode()      {}
func (be *BinaryExpression) Kind() NodeKind       { return BinaryExpressionKind }
func (be *BinaryExpression) TokenLiteral() string { return be.Token.Literal }
func (be *BinaryExpression) String() string {
	return be.Left.String() + " " + be.Operator + " " + be.Right.String()
}

// LogicalExpression is a short-circuit && or ||
type LogicalExpression struct {
	span
	Token    lexer.Token
	Operator string
	Left     Expression
	Right    Expression
}

func (le *LogicalExpression) expressionNode()      {}
func (le *LogicalExpression) Kind() NodeKind       { return LogicalExpressionKind }
func (le *LogicalExpression) TokenLiteral() string { return le.Token.Literal }
func (le *LogicalExpression) String() string {
	return le.Left.String() + " " + le.Operator + " " + le.Right.String()
}

// ConditionalExpression is test ? consequent : alternate
type ConditionalExpression struct {
	span
	Token      lexer.Token
	Test       Expression
	Consequent Expression
	Alternate  Expression
}

func (ce *ConditionalExpression) expressionNode()      {}
func (ce *ConditionalExpression) Kind() NodeKind       { return ConditionalExpressionKind }
func (ce *ConditionalExpression) TokenLiteral() string { return ce.Token.Literal }
func (ce *ConditionalExpression) String() string {
	return ce.Test.String() + " ? " + ce.Consequent.String() + " : " + ce.Alternate.String()
}

// AssignmentExpression is target = value, target += value or target -= value.
// It only appears in loop clauses and event arguments.
type AssignmentExpression struct {
	span
	Token    lexer.Token
	Operator string
	Target   Expression
	Value    Expression
}

func (ae *AssignmentExpression) expressionNode()      {}
func (ae *AssignmentExpression) Kind() NodeKind       { return AssignmentExpressionKind }
func (ae *AssignmentExpression) TokenLiteral() string { return ae.Token.Literal }
func (ae *AssignmentExpression) String() string {
	return ae.Target.String() + " " + ae.Operator + " " + ae.Value.String()
}

// UpdateExpression is i++, i--, ++i or --i
type UpdateExpression struct {
	span
	Token    lexer.Token
	Operator string
	Prefix   bool
	Target   Expression
}

func (ue *UpdateExpression) expressionNode()      {}
func (ue *UpdateExpression) Kind() NodeKind       { return UpdateExpressionKind }
func (ue *UpdateExpression) TokenLiteral() string { return ue.Token.Literal }
func (ue *UpdateExpression) String() string {
	if ue.Prefix {
		return ue.Operator + ue.Target.String()
	}
	return ue.Target.String() + ue.Operator
}

// CallExpression is callee(arguments...)
type CallExpression struct {
	span
	Token     lexer.Token
	Callee    Expression
	Arguments []Expression
}

func (ce *CallExpression) expressionNode()      {}
func (ce *CallExpression) Kind() NodeKind       { return CallExpressionKind }
func (ce *CallExpression) TokenLiteral() string { return ce.Token.Literal }
func (ce *CallExpression) String() string {
	return ce.Callee.String() + "(" + joinExpressions(ce.Arguments) + ")"
}

// MemberExpression is object.property or object[property]
type MemberExpression struct {
	span
	Token    lexer.Token
	Object   Expression
	Property Expression
	Computed bool
}

func (me *MemberExpression) expressionNode()      {}
func (me *MemberExpression) Kind() NodeKind       { return MemberExpressionKind }
func (me *MemberExpression) TokenLiteral() string { return me.Token.Literal }
func (me *MemberExpression) String() string {
	if me.Computed {
		return me.Object.String() + "[" + me.Property.String() + "]"
	}
	return me.Object.String() + "." + me.Property.String()
}

// PropertyName returns the static property name of a dotted member, or a
// string literal index, and whether one exists.
func (me *MemberExpression) PropertyName() (string, bool) {
	switch p := me.Property.(type) {
	case *Identifier:
		if !me.Computed {
			return p.Name, true
		}
	case *Literal:
		if s, ok := p.Value.(string); ok {
			return s, true
		}
	}
	return "", false
}

// DecoratorCall is one pipe entry: name or name(args...)
type DecoratorCall struct {
	span
	Token     lexer.Token
	Name      *Identifier
	Arguments []Expression
	HasParens bool
}

func (dc *DecoratorCall) expressionNode()      {}
func (dc *DecoratorCall) Kind() NodeKind       { return DecoratorCallKind }
func (dc *DecoratorCall) TokenLiteral() string { return dc.Token.Literal }
func (dc *DecoratorCall) String() string {
	if !dc.HasParens {
		return dc.Name.String()
	}
	return dc.Name.String() + "(" + joinExpressions(dc.Arguments) + ")"
}

// DecoratorChainCall is the sequence of decorators after the first pipe
type DecoratorChainCall struct {
	span
	Token   lexer.Token
	Entries []*DecoratorCall
}

func (dc *DecoratorChainCall) expressionNode()      {}
func (dc *DecoratorChainCall) Kind() NodeKind       { return DecoratorChainCallKind }
func (dc *DecoratorChainCall) TokenLiteral() string { return dc.Token.Literal }
func (dc *DecoratorChainCall) String() string {
	parts := make([]string, len(dc.Entries))
	for i, e := range dc.Entries {
		parts[i] = e.String()
	}
	return strings.Join(parts, "|")
}

// DecoratorChainContext is entity|decorator|decorator(args)
type DecoratorChainContext struct {
	span
	Token  lexer.Token
	Entity Expression
	Chain  *DecoratorChainCall
}

func (dc *DecoratorChainContext) expressionNode()      {}
func (dc *DecoratorChainContext) Kind() NodeKind       { return DecoratorChainContextKind }
func (dc *DecoratorChainContext) TokenLiteral() string { return dc.Token.Literal }
func (dc *DecoratorChainContext) String() string {
	return dc.Entity.String() + "|" + dc.Chain.String()
}

// Identifier is a bare name
type Identifier struct {
	span
	Token lexer.Token
	Name  string
}

func (i *Identifier) expressionNode()      {}
func (i *Identifier) Kind() NodeKind       { return IdentifierKind }
func (i *Identifier) TokenLiteral() string { return i.Token.Literal }
func (i *Identifier) String() string       { return i.Name }

// LiteralType distinguishes literal values.
type LiteralType int

const (
	StringLiteral LiteralType = iota
	NumberLiteral
	BooleanLiteral
	NullLiteral
)

// Literal is a string, number, boolean or null constant.
// Value holds string, float64, bool or nil; Raw is the source text.
type Literal struct {
	span
	Token lexer.Token
	Type  LiteralType
	Value any
	Raw   string
}

func (l *Literal) expressionNode()      {}
func (l *Literal) Kind() NodeKind       { return LiteralKind }
func (l *Literal) TokenLiteral() string { return l.Token.Literal }
func (l *Literal) String() string       { return l.Raw }

// ExpressionBrace is a parenthesized expression
type ExpressionBrace struct {
	span
	Token      lexer.Token
	Expression Expression
}

func (eb *ExpressionBrace) expressionNode()      {}
func (eb *ExpressionBrace) Kind() NodeKind       { return ExpressionBraceKind }
func (eb *ExpressionBrace) TokenLiteral() string { return eb.Token.Literal }
func (eb *ExpressionBrace) String() string {
	return "(" + eb.Expression.String() + ")"
}

func joinExpressions(exprs []Expression) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// Unwrap strips any number of enclosing parentheses.
func Unwrap(e Expression) Expression {
	for {
		b, ok := e.(*ExpressionBrace)
		if !ok {
			return e
		}
		e = b.Expression
	}
}

// Path returns the identifier path of e when it is an Identifier or a chain
// of non-computed (or string-literal indexed) members rooted at one.
func Path(e Expression) ([]string, bool) {
	switch n := e.(type) {
	case *Identifier:
		return []string{n.Name}, true
	case *MemberExpression:
		prefix, ok := Path(n.Object)
		if !ok {
			return nil, false
		}
		name, ok := n.PropertyName()
		if !ok {
			return nil, false
		}
		return append(prefix, name), true
	}
	return nil, false
}
