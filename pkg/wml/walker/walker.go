// Package walker provides post-order traversal of expression trees and the
// analysis helpers built on it.
package walker

import (
	"github.com/sambeau/wml/pkg/wml/ast"
)

// TranslationFunction is the name of the built-in translation call.
const TranslationFunction = "rk"

// Hooks holds one optional callback per node kind. Each callback runs after
// the node's children have been visited. Any runs for every node after the
// kind-specific hook.
type Hooks struct {
	Program               func(*ast.Program)
	EmptyStatement        func(*ast.EmptyStatement)
	ExpressionStatement   func(*ast.ExpressionStatement)
	ThisExpression        func(*ast.ThisExpression)
	ArrayExpression       func(*ast.ArrayExpression)
	ObjectExpression      func(*ast.ObjectExpression)
	SequenceExpression    func(*ast.SequenceExpression)
	UnaryExpression       func(*ast.UnaryExpression)
	BinaryExpression      func(*ast.BinaryExpression)
	LogicalExpression     func(*ast.LogicalExpression)
	ConditionalExpression func(*ast.ConditionalExpression)
	AssignmentExpression  func(*ast.AssignmentExpression)
	UpdateExpression      func(*ast.UpdateExpression)
	CallExpression        func(*ast.CallExpression)
	MemberExpression      func(*ast.MemberExpression)
	DecoratorChainCall    func(*ast.DecoratorChainCall)
	DecoratorChainContext func(*ast.DecoratorChainContext)
	DecoratorCall         func(*ast.DecoratorCall)
	Identifier            func(*ast.Identifier)
	Literal               func(*ast.Literal)
	ExpressionBrace       func(*ast.ExpressionBrace)
	Any                   func(ast.Node)
}

// Walk visits node and its children in post-order. Children are visited in
// their natural order: array elements, left then right, callee then
// arguments, object then computed property. Dotted property names and object
// keys are names, not references, and are not visited.
func Walk(node ast.Node, h *Hooks) {
	if node == nil {
		return
	}
	switch n := node.(type) {
	case *ast.Program:
		for _, s := range n.Body {
			Walk(s, h)
		}
		if h.Program != nil {
			h.Program(n)
		}
	case *ast.EmptyStatement:
		if h.EmptyStatement != nil {
			h.EmptyStatement(n)
		}
	case *ast.ExpressionStatement:
		Walk(n.Expression, h)
		if h.ExpressionStatement != nil {
			h.ExpressionStatement(n)
		}
	case *ast.ThisExpression:
		if h.ThisExpression != nil {
			h.ThisExpression(n)
		}
	case *ast.ArrayExpression:
		for _, e := range n.Elements {
			Walk(e, h)
		}
		if h.ArrayExpression != nil {
			h.ArrayExpression(n)
		}
	case *ast.ObjectExpression:
		for _, p := range n.Properties {
			Walk(p.Value, h)
		}
		if h.ObjectExpression != nil {
			h.ObjectExpression(n)
		}
	case *ast.SequenceExpression:
		for _, e := range n.Expressions {
			Walk(e, h)
		}
		if h.SequenceExpression != nil {
			h.SequenceExpression(n)
		}
	case *ast.UnaryExpression:
		Walk(n.Argument, h)
		if h.UnaryExpression != nil {
			h.UnaryExpression(n)
		}
	case *ast.BinaryExpression:
		Walk(n.Left, h)
		Walk(n.Right, h)
		if h.BinaryExpression != nil {
			h.BinaryExpression(n)
		}
	case *ast.LogicalExpression:
		Walk(n.Left, h)
		Walk(n.Right, h)
		if h.LogicalExpression != nil {
			h.LogicalExpression(n)
		}
	case *ast.ConditionalExpression:
		Walk(n.Test, h)
		Walk(n.Consequent, h)
		Walk(n.Alternate, h)
		if h.ConditionalExpression != nil {
			h.ConditionalExpression(n)
		}
	case *ast.AssignmentExpression:
		Walk(n.Target, h)
		Walk(n.Value, h)
		if h.AssignmentExpression != nil {
			h.AssignmentExpression(n)
		}
	case *ast.UpdateExpression:
		Walk(n.Target, h)
		if h.UpdateExpression != nil {
			h.UpdateExpression(n)
		}
	case *ast.CallExpression:
		Walk(n.Callee, h)
		for _, a := range n.Arguments {
			Walk(a, h)
		}
		if h.CallExpression != nil {
			h.CallExpression(n)
		}
	case *ast.MemberExpression:
		Walk(n.Object, h)
		if n.Computed {
			Walk(n.Property, h)
		}
		if h.MemberExpression != nil {
			h.MemberExpression(n)
		}
	case *ast.DecoratorChainCall:
		for _, e := range n.Entries {
			Walk(e, h)
		}
		if h.DecoratorChainCall != nil {
			h.DecoratorChainCall(n)
		}
	case *ast.DecoratorChainContext:
		Walk(n.Entity, h)
		Walk(n.Chain, h)
		if h.DecoratorChainContext != nil {
			h.DecoratorChainContext(n)
		}
	case *ast.DecoratorCall:
		for _, a := range n.Arguments {
			Walk(a, h)
		}
		if h.DecoratorCall != nil {
			h.DecoratorCall(n)
		}
	case *ast.Identifier:
		if h.Identifier != nil {
			h.Identifier(n)
		}
	case *ast.Literal:
		if h.Literal != nil {
			h.Literal(n)
		}
	case *ast.ExpressionBrace:
		Walk(n.Expression, h)
		if h.ExpressionBrace != nil {
			h.ExpressionBrace(n)
		}
	}
	if h.Any != nil {
		h.Any(node)
	}
}
