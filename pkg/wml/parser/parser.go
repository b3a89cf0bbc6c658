// Package parser turns template expression source into an ast.Program.
package parser

import (
	"fmt"
	"strconv"

	"github.com/sambeau/wml/pkg/wml/ast"
	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/lexer"
)

// Precedence levels for operators
const (
	_ int = iota
	LOWEST
	SEQUENCE    // ,
	ASSIGNMENT  // = += -=
	PIPE        // entity|decorator
	CONDITIONAL // ? :
	LOGIC_OR    // ||
	LOGIC_AND   // &&
	EQUALS      // == != === !==
	LESSGREATER // > or <
	SUM         // +
	PRODUCT     // *
	PREFIX      // -X or !X
	POSTFIX     // X++
	CALL        // myFunction(X), a.b, a[b]
)

// precedences maps tokens to their precedence
var precedences = map[lexer.TokenType]int{
	lexer.COMMA:         SEQUENCE,
	lexer.ASSIGN:        ASSIGNMENT,
	lexer.PLUS_ASSIGN:   ASSIGNMENT,
	lexer.MINUS_ASSIGN:  ASSIGNMENT,
	lexer.PIPE:          PIPE,
	lexer.QUESTION:      CONDITIONAL,
	lexer.OR:            LOGIC_OR,
	lexer.AND:           LOGIC_AND,
	lexer.EQ:            EQUALS,
	lexer.NOT_EQ:        EQUALS,
	lexer.STRICT_EQ:     EQUALS,
	lexer.STRICT_NOT_EQ: EQUALS,
	lexer.LT:            LESSGREATER,
	lexer.GT:            LESSGREATER,
	lexer.LTE:           LESSGREATER,
	lexer.GTE:           LESSGREATER,
	lexer.PLUS:          SUM,
	lexer.MINUS:         SUM,
	lexer.SLASH:         PRODUCT,
	lexer.ASTERISK:      PRODUCT,
	lexer.PERCENT:       PRODUCT,
	lexer.PLUSPLUS:      POSTFIX,
	lexer.MINUSMINUS:    POSTFIX,
	lexer.LPAREN:        CALL,
	lexer.LBRACKET:      CALL,
	lexer.DOT:           CALL,
}

// Parser represents the parser
type Parser struct {
	l *lexer.Lexer

	errors []*werrors.WmlError

	prevToken lexer.Token
	curToken  lexer.Token
	peekToken lexer.Token

	prefixParseFns map[lexer.TokenType]prefixParseFn
	infixParseFns  map[lexer.TokenType]infixParseFn
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// locatable is implemented by every node through its embedded span.
type locatable interface {
	SetLoc(ast.Location)
}

// New creates a parser reading from l.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{
		l: l,
	}

	p.prefixParseFns = make(map[lexer.TokenType]prefixParseFn)
	p.registerPrefix(lexer.IDENT, p.parseIdentifier)
	p.registerPrefix(lexer.NUMBER, p.parseNumberLiteral)
	p.registerPrefix(lexer.STRING, p.parseStringLiteral)
	p.registerPrefix(lexer.TRUE, p.parseBoolean)
	p.registerPrefix(lexer.FALSE, p.parseBoolean)
	p.registerPrefix(lexer.NULL, p.parseNull)
	p.registerPrefix(lexer.THIS, p.parseThis)
	p.registerPrefix(lexer.BANG, p.parsePrefixExpression)
	p.registerPrefix(lexer.MINUS, p.parsePrefixExpression)
	p.registerPrefix(lexer.PLUS, p.parsePrefixExpression)
	p.registerPrefix(lexer.TYPEOF, p.parsePrefixExpression)
	p.registerPrefix(lexer.PLUSPLUS, p.parsePrefixUpdate)
	p.registerPrefix(lexer.MINUSMINUS, p.parsePrefixUpdate)
	p.registerPrefix(lexer.LPAREN, p.parseGroupedExpression)
	p.registerPrefix(lexer.LBRACKET, p.parseArrayLiteral)
	p.registerPrefix(lexer.LBRACE, p.parseObjectLiteral)

	p.infixParseFns = make(map[lexer.TokenType]infixParseFn)
	for _, tt := range []lexer.TokenType{
		lexer.PLUS, lexer.MINUS, lexer.SLASH, lexer.ASTERISK, lexer.PERCENT,
		lexer.EQ, lexer.NOT_EQ, lexer.STRICT_EQ, lexer.STRICT_NOT_EQ,
		lexer.LT, lexer.GT, lexer.LTE, lexer.GTE,
	} {
		p.registerInfix(tt, p.parseInfixExpression)
	}
	p.registerInfix(lexer.AND, p.parseLogicalExpression)
	p.registerInfix(lexer.OR, p.parseLogicalExpression)
	p.registerInfix(lexer.QUESTION, p.parseConditionalExpression)
	p.registerInfix(lexer.PIPE, p.parseDecoratorChain)
	p.registerInfix(lexer.COMMA, p.parseSequenceExpression)
	p.registerInfix(lexer.ASSIGN, p.parseAssignmentExpression)
	p.registerInfix(lexer.PLUS_ASSIGN, p.parseAssignmentExpression)
	p.registerInfix(lexer.MINUS_ASSIGN, p.parseAssignmentExpression)
	p.registerInfix(lexer.PLUSPLUS, p.parsePostfixUpdate)
	p.registerInfix(lexer.MINUSMINUS, p.parsePostfixUpdate)
	p.registerInfix(lexer.LPAREN, p.parseCallExpression)
	p.registerInfix(lexer.LBRACKET, p.parseIndexExpression)
	p.registerInfix(lexer.DOT, p.parseDotExpression)

	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()

	return p
}

// Parse parses expression source text into a program.
// The only tolerated syntax slip is a missing ';' before '}', the end of
// input or a line break.
func Parse(text string) (*ast.Program, error) {
	p := New(lexer.New(text))
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, errs[0]
	}
	program.Source = text
	return program, nil
}

// Instance is a parser handle for components that receive the parser as a dependency.
type Instance struct{}

// Parse implements the reparse contract used by the walker and the annotation pass.
func (Instance) Parse(text string) (*ast.Program, error) {
	return Parse(text)
}

// Errors returns the recorded syntax errors. Only the first error is kept.
func (p *Parser) Errors() []*werrors.WmlError {
	return p.errors
}

// addError records a catalog error at a token position.
// Only the first error is recorded - subsequent errors are usually cascading noise.
func (p *Parser) addError(code string, tok lexer.Token, data map[string]any) {
	if len(p.errors) > 0 {
		return
	}
	p.errors = append(p.errors, werrors.NewWithPosition(code, tok.Line, tok.Column, data))
}

func (p *Parser) registerPrefix(tokenType lexer.TokenType, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

func (p *Parser) registerInfix(tokenType lexer.TokenType, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}

// nextToken advances prevToken, curToken, and peekToken
func (p *Parser) nextToken() {
	p.prevToken = p.curToken
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t lexer.TokenType) bool { return p.peekToken.Type == t }

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return LOWEST
}

// expectPeek advances if the next token has type t, otherwise records an error.
func (p *Parser) expectPeek(t lexer.TokenType, expected string) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.addError("PARSE-0001", p.peekToken, map[string]any{
		"Expected": expected,
		"Got":      tokenText(p.peekToken),
	})
	return false
}

func tokenText(tok lexer.Token) string {
	if tok.Type == lexer.EOF {
		return "end of input"
	}
	return tok.Raw
}

// locate stamps node with a range from start to the current token.
func (p *Parser) locate(node ast.Node, start lexer.Token) {
	end := p.curToken
	width := len(end.Raw)
	if width == 0 {
		width = 1
	}
	if n, ok := node.(locatable); ok {
		n.SetLoc(ast.Location{
			StartLine:   start.Line,
			StartColumn: start.Column,
			EndLine:     end.Line,
			EndColumn:   end.Column + width - 1,
		})
	}
}

// locateFrom stamps node starting at the location of an already parsed child.
func (p *Parser) locateFrom(node ast.Node, first ast.Node) {
	start := first.Loc()
	p.locate(node, lexer.Token{Line: start.StartLine, Column: start.StartColumn})
}

// ParseProgram parses statements until the end of input.
func (p *Parser) ParseProgram() *ast.Program {
	program := ast.NewProgram(nil, p.l.Input())
	start := p.curToken

	for !p.curTokenIs(lexer.EOF) {
		stmt := p.parseStatement()
		if len(p.errors) > 0 {
			return program
		}
		if stmt != nil {
			program.Body = append(program.Body, stmt)
		}
		p.nextToken()
	}

	p.locate(program, start)
	return program
}

func (p *Parser) parseStatement() ast.Statement {
	if p.curTokenIs(lexer.SEMICOLON) {
		stmt := &ast.EmptyStatement{Token: p.curToken}
		p.locate(stmt, p.curToken)
		return stmt
	}
	return p.parseExpressionStatement()
}

func (p *Parser) parseExpressionStatement() ast.Statement {
	firstToken := p.curToken
	stmt := &ast.ExpressionStatement{Token: firstToken}
	stmt.Expression = p.parseExpression(LOWEST)
	if stmt.Expression == nil {
		return nil
	}
	p.locate(stmt, firstToken)

	switch {
	case p.peekTokenIs(lexer.SEMICOLON):
		p.nextToken()
	case p.peekTokenIs(lexer.ILLEGAL):
		p.nextToken()
		p.noPrefixParseFnError(p.curToken)
		return nil
	case p.peekTokenIs(lexer.EOF), p.peekTokenIs(lexer.RBRACE), p.peekToken.NewLine:
		// terminator may be omitted here
	default:
		p.addError("PARSE-0005", p.peekToken, map[string]any{"Token": tokenText(p.peekToken)})
		return nil
	}

	return stmt
}

// parseExpression parses expressions using Pratt parsing
func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.noPrefixParseFnError(p.curToken)
		return nil
	}

	leftExp := prefix()

	for leftExp != nil && !p.peekTokenIs(lexer.SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}

		// x \n ++y is two statements, not a postfix update
		if (p.peekTokenIs(lexer.PLUSPLUS) || p.peekTokenIs(lexer.MINUSMINUS)) && p.peekToken.NewLine {
			return leftExp
		}

		p.nextToken()

		leftExp = infix(leftExp)
	}

	return leftExp
}

func (p *Parser) noPrefixParseFnError(tok lexer.Token) {
	switch tok.Type {
	case lexer.ILLEGAL:
		if len(tok.Raw) > 0 && (tok.Raw[0] == '"' || tok.Raw[0] == '\'') {
			p.addError("PARSE-0003", tok, nil)
			return
		}
	case lexer.EOF:
		p.addError("PARSE-0001", tok, map[string]any{"Expected": "expression", "Got": "end of input"})
		return
	}
	p.addError("PARSE-0002", tok, map[string]any{"Token": tokenText(tok)})
}

func (p *Parser) parseIdentifier() ast.Expression {
	ident := &ast.Identifier{Token: p.curToken, Name: p.curToken.Literal}
	p.locate(ident, p.curToken)
	return ident
}

func (p *Parser) parseNumberLiteral() ast.Expression {
	tok := p.curToken
	value, err := strconv.ParseFloat(tok.Literal, 64)
	if err != nil {
		p.addError("PARSE-0004", tok, map[string]any{"Literal": tok.Literal})
		return nil
	}
	lit := &ast.Literal{Token: tok, Type: ast.NumberLiteral, Value: value, Raw: tok.Raw}
	p.locate(lit, tok)
	return lit
}

func (p *Parser) parseStringLiteral() ast.Expression {
	tok := p.curToken
	lit := &ast.Literal{Token: tok, Type: ast.StringLiteral, Value: tok.Literal, Raw: tok.Raw}
	p.locate(lit, tok)
	return lit
}

func (p *Parser) parseBoolean() ast.Expression {
	tok := p.curToken
	lit := &ast.Literal{Token: tok, Type: ast.BooleanLiteral, Value: tok.Type == lexer.TRUE, Raw: tok.Raw}
	p.locate(lit, tok)
	return lit
}

func (p *Parser) parseNull() ast.Expression {
	tok := p.curToken
	lit := &ast.Literal{Token: tok, Type: ast.NullLiteral, Value: nil, Raw: tok.Raw}
	p.locate(lit, tok)
	return lit
}

func (p *Parser) parseThis() ast.Expression {
	node := &ast.ThisExpression{Token: p.curToken}
	p.locate(node, p.curToken)
	return node
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	tok := p.curToken
	expr := &ast.UnaryExpression{Token: tok, Operator: tok.Literal}
	p.nextToken()
	expr.Argument = p.parseExpression(PREFIX)
	if expr.Argument == nil {
		return nil
	}
	p.locate(expr, tok)
	return expr
}

func (p *Parser) parsePrefixUpdate() ast.Expression {
	tok := p.curToken
	p.nextToken()
	target := p.parseExpression(PREFIX)
	if target == nil {
		return nil
	}
	if !isAssignable(target) {
		p.addError("PARSE-0001", tok, map[string]any{"Expected": "assignable operand", "Got": target.String()})
		return nil
	}
	expr := &ast.UpdateExpression{Token: tok, Operator: tok.Literal, Prefix: true, Target: target}
	p.locate(expr, tok)
	return expr
}

func (p *Parser) parsePostfixUpdate(left ast.Expression) ast.Expression {
	tok := p.curToken
	if !isAssignable(left) {
		p.addError("PARSE-0001", tok, map[string]any{"Expected": "assignable operand", "Got": left.String()})
		return nil
	}
	expr := &ast.UpdateExpression{Token: tok, Operator: tok.Literal, Target: left}
	p.locateFrom(expr, left)
	return expr
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	tok := p.curToken
	expr := &ast.BinaryExpression{Token: tok, Operator: tok.Literal, Left: left}
	precedence := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(precedence)
	if expr.Right == nil {
		return nil
	}
	p.locateFrom(expr, left)
	return expr
}

func (p *Parser) parseLogicalExpression(left ast.Expression) ast.Expression {
	tok := p.curToken
	expr := &ast.LogicalExpression{Token: tok, Operator: tok.Literal, Left: left}
	precedence := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(precedence)
	if expr.Right == nil {
		return nil
	}
	p.locateFrom(expr, left)
	return expr
}

func (p *Parser) parseConditionalExpression(test ast.Expression) ast.Expression {
	expr := &ast.ConditionalExpression{Token: p.curToken, Test: test}
	p.nextToken()
	expr.Consequent = p.parseExpression(SEQUENCE)
	if expr.Consequent == nil || !p.expectPeek(lexer.COLON, "':'") {
		return nil
	}
	p.nextToken()
	// right associative, and a trailing pipe applies to the whole conditional
	expr.Alternate = p.parseExpression(PIPE)
	if expr.Alternate == nil {
		return nil
	}
	p.locateFrom(expr, test)
	return expr
}

func (p *Parser) parseAssignmentExpression(left ast.Expression) ast.Expression {
	tok := p.curToken
	if !isAssignable(left) {
		p.addError("PARSE-0001", tok, map[string]any{"Expected": "assignable target", "Got": left.String()})
		return nil
	}
	expr := &ast.AssignmentExpression{Token: tok, Operator: tok.Literal, Target: left}
	p.nextToken()
	expr.Value = p.parseExpression(SEQUENCE)
	if expr.Value == nil {
		return nil
	}
	p.locateFrom(expr, left)
	return expr
}

func (p *Parser) parseSequenceExpression(left ast.Expression) ast.Expression {
	expr := &ast.SequenceExpression{Token: p.curToken, Expressions: []ast.Expression{left}}
	for {
		p.nextToken()
		next := p.parseExpression(SEQUENCE)
		if next == nil {
			return nil
		}
		expr.Expressions = append(expr.Expressions, next)
		if !p.peekTokenIs(lexer.COMMA) {
			break
		}
		p.nextToken()
	}
	p.locateFrom(expr, left)
	return expr
}

// parseDecoratorChain parses entity|name|name(args...)
func (p *Parser) parseDecoratorChain(entity ast.Expression) ast.Expression {
	pipeTok := p.curToken
	chain := &ast.DecoratorChainCall{Token: pipeTok}
	for {
		if !p.expectPeek(lexer.IDENT, "decorator name") {
			return nil
		}
		nameTok := p.curToken
		call := &ast.DecoratorCall{Token: nameTok}
		call.Name = p.parseIdentifier().(*ast.Identifier)
		if p.peekTokenIs(lexer.LPAREN) {
			p.nextToken()
			call.HasParens = true
			args, ok := p.parseExpressionList(lexer.RPAREN, "')'")
			if !ok {
				return nil
			}
			call.Arguments = args
		}
		p.locate(call, nameTok)
		chain.Entries = append(chain.Entries, call)
		if !p.peekTokenIs(lexer.PIPE) {
			break
		}
		p.nextToken()
	}
	first := chain.Entries[0].Loc()
	p.locate(chain, lexer.Token{Line: first.StartLine, Column: first.StartColumn})

	expr := &ast.DecoratorChainContext{Token: pipeTok, Entity: entity, Chain: chain}
	p.locateFrom(expr, entity)
	return expr
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	tok := p.curToken
	p.nextToken()
	inner := p.parseExpression(LOWEST)
	if inner == nil || !p.expectPeek(lexer.RPAREN, "')'") {
		return nil
	}
	expr := &ast.ExpressionBrace{Token: tok, Expression: inner}
	p.locate(expr, tok)
	return expr
}

func (p *Parser) parseArrayLiteral() ast.Expression {
	tok := p.curToken
	elements, ok := p.parseExpressionList(lexer.RBRACKET, "']'")
	if !ok {
		return nil
	}
	expr := &ast.ArrayExpression{Token: tok, Elements: elements}
	p.locate(expr, tok)
	return expr
}

func (p *Parser) parseObjectLiteral() ast.Expression {
	tok := p.curToken
	obj := &ast.ObjectExpression{Token: tok}

	for !p.peekTokenIs(lexer.RBRACE) {
		p.nextToken()
		var key ast.Expression
		switch p.curToken.Type {
		case lexer.IDENT, lexer.TRUE, lexer.FALSE, lexer.NULL, lexer.THIS, lexer.TYPEOF:
			key = p.parseIdentifier()
		case lexer.STRING:
			key = p.parseStringLiteral()
		case lexer.NUMBER:
			key = p.parseNumberLiteral()
		default:
			p.addError("PARSE-0001", p.curToken, map[string]any{"Expected": "property name", "Got": tokenText(p.curToken)})
			return nil
		}
		if key == nil || !p.expectPeek(lexer.COLON, "':'") {
			return nil
		}
		p.nextToken()
		value := p.parseExpression(SEQUENCE)
		if value == nil {
			return nil
		}
		obj.Properties = append(obj.Properties, &ast.Property{Key: key, Value: value})

		if p.peekTokenIs(lexer.COMMA) {
			p.nextToken()
			continue
		}
		if !p.peekTokenIs(lexer.RBRACE) {
			p.expectPeek(lexer.RBRACE, "'}'")
			return nil
		}
	}
	p.nextToken()
	p.locate(obj, tok)
	return obj
}

func (p *Parser) parseCallExpression(callee ast.Expression) ast.Expression {
	tok := p.curToken
	args, ok := p.parseExpressionList(lexer.RPAREN, "')'")
	if !ok {
		return nil
	}
	expr := &ast.CallExpression{Token: tok, Callee: callee, Arguments: args}
	p.locateFrom(expr, callee)
	return expr
}

func (p *Parser) parseIndexExpression(object ast.Expression) ast.Expression {
	tok := p.curToken
	p.nextToken()
	property := p.parseExpression(LOWEST)
	if property == nil || !p.expectPeek(lexer.RBRACKET, "']'") {
		return nil
	}
	expr := &ast.MemberExpression{Token: tok, Object: object, Property: property, Computed: true}
	p.locateFrom(expr, object)
	return expr
}

func (p *Parser) parseDotExpression(object ast.Expression) ast.Expression {
	tok := p.curToken
	p.nextToken()
	switch p.curToken.Type {
	case lexer.IDENT, lexer.TRUE, lexer.FALSE, lexer.NULL, lexer.THIS, lexer.TYPEOF:
	default:
		p.addError("PARSE-0001", p.curToken, map[string]any{"Expected": "property name", "Got": tokenText(p.curToken)})
		return nil
	}
	property := &ast.Identifier{Token: p.curToken, Name: p.curToken.Literal}
	p.locate(property, p.curToken)
	expr := &ast.MemberExpression{Token: tok, Object: object, Property: property}
	p.locateFrom(expr, object)
	return expr
}

// parseExpressionList parses comma separated expressions up to the closing token.
// The opening token is the current token.
func (p *Parser) parseExpressionList(end lexer.TokenType, endText string) ([]ast.Expression, bool) {
	list := []ast.Expression{}

	if p.peekTokenIs(end) {
		p.nextToken()
		return list, true
	}

	p.nextToken()
	first := p.parseExpression(SEQUENCE)
	if first == nil {
		return nil, false
	}
	list = append(list, first)

	for p.peekTokenIs(lexer.COMMA) {
		p.nextToken()
		p.nextToken()
		next := p.parseExpression(SEQUENCE)
		if next == nil {
			return nil, false
		}
		list = append(list, next)
	}

	if !p.expectPeek(end, endText) {
		return nil, false
	}
	return list, true
}

func isAssignable(e ast.Expression) bool {
	switch e.(type) {
	case *ast.Identifier, *ast.MemberExpression:
		return true
	}
	return false
}

// MustParse parses text and panics on error. Intended for tests and static tables.
func MustParse(text string) *ast.Program {
	program, err := Parse(text)
	if err != nil {
		panic(fmt.Sprintf("parser.MustParse(%q): %v", text, err))
	}
	return program
}
