package walker

import (
	"github.com/sambeau/wml/pkg/wml/ast"
)

// Parser reparses expression text. It is passed in by callers that need to
// build new programs from fragments of an existing tree.
type Parser interface {
	Parse(text string) (*ast.Program, error)
}

// CollectIdentifiers returns the unique identifier names referenced by node,
// in order of first occurrence.
func CollectIdentifiers(node ast.Node) []string {
	var names []string
	seen := map[string]bool{}
	Walk(node, &Hooks{
		Identifier: func(id *ast.Identifier) {
			if !seen[id.Name] {
				seen[id.Name] = true
				names = append(names, id.Name)
			}
		},
	})
	return names
}

// ContainsTranslationFunction reports whether node calls the translation
// function by its bare name.
func ContainsTranslationFunction(node ast.Node) bool {
	found := false
	Walk(node, &Hooks{
		CallExpression: func(call *ast.CallExpression) {
			if id, ok := call.Callee.(*ast.Identifier); ok && id.Name == TranslationFunction {
				found = true
			}
		},
	})
	return found
}

// ContainsIdentifiers reports whether node references any of names.
func ContainsIdentifiers(node ast.Node, names map[string]bool) bool {
	if len(names) == 0 {
		return false
	}
	found := false
	Walk(node, &Hooks{
		Identifier: func(id *ast.Identifier) {
			if names[id.Name] {
				found = true
			}
		},
	})
	return found
}

// HasDecorators reports whether node uses the decorator pipe.
func HasDecorators(node ast.Node) bool {
	found := false
	Walk(node, &Hooks{
		Any: func(n ast.Node) {
			switch n.(type) {
			case *ast.DecoratorChainCall, *ast.DecoratorChainContext, *ast.DecoratorCall:
				found = true
			}
		},
	})
	return found
}

// DropBindProgram splits a bind target into the programs the setter needs.
// For a path of two or more segments it returns the object the property is
// set on followed by the full reference: a.b.c gives [a.b, a.b.c]. A bare
// identifier gives only itself.
func DropBindProgram(node ast.Node, p Parser) ([]*ast.Program, error) {
	expr := unwrapProgram(node)
	if expr == nil {
		return nil, nil
	}

	full, err := p.Parse(expr.String())
	if err != nil {
		return nil, err
	}

	member, ok := ast.Unwrap(expr).(*ast.MemberExpression)
	if !ok {
		return []*ast.Program{full}, nil
	}

	object, err := p.Parse(member.Object.String())
	if err != nil {
		return nil, err
	}
	return []*ast.Program{object, full}, nil
}

// CollectPaths returns the maximal identifier and static member paths that
// node reads, in first-occurrence order without duplicates. For
// items[i].title + count it returns items, i and count: the computed index
// ends the static path at items.
func CollectPaths(node ast.Node) []string {
	var paths []string
	seen := map[string]bool{}
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			paths = append(paths, s)
		}
	}

	var visit func(n ast.Node)
	visit = func(n ast.Node) {
		if e, ok := n.(ast.Expression); ok {
			if _, isPath := ast.Path(e); isPath {
				// Path only accepts identifiers and static members
				add(e.String())
				return
			}
		}
		switch v := n.(type) {
		case *ast.MemberExpression:
			if _, ok := v.Object.(*ast.ThisExpression); ok && !v.Computed {
				return
			}
			visit(v.Object)
			if v.Computed {
				visit(v.Property)
			}
		case *ast.CallExpression:
			// a called method is not a value path, its object is
			if m, ok := v.Callee.(*ast.MemberExpression); ok {
				visit(m.Object)
				if m.Computed {
					visit(m.Property)
				}
			} else {
				visit(v.Callee)
			}
			for _, a := range v.Arguments {
				visit(a)
			}
		default:
			for _, child := range Children(n) {
				visit(child)
			}
		}
	}
	visit(node)
	return paths
}

// Children returns the direct child nodes in visiting order.
func Children(node ast.Node) []ast.Node {
	var out []ast.Node
	add := func(n ast.Node) {
		if n != nil {
			out = append(out, n)
		}
	}
	switch n := node.(type) {
	case *ast.Program:
		for _, s := range n.Body {
			add(s)
		}
	case *ast.ExpressionStatement:
		add(n.Expression)
	case *ast.ArrayExpression:
		for _, e := range n.Elements {
			add(e)
		}
	case *ast.ObjectExpression:
		for _, p := range n.Properties {
			add(p.Value)
		}
	case *ast.SequenceExpression:
		for _, e := range n.Expressions {
			add(e)
		}
	case *ast.UnaryExpression:
		add(n.Argument)
	case *ast.BinaryExpression:
		add(n.Left)
		add(n.Right)
	case *ast.LogicalExpression:
		add(n.Left)
		add(n.Right)
	case *ast.ConditionalExpression:
		add(n.Test)
		add(n.Consequent)
		add(n.Alternate)
	case *ast.AssignmentExpression:
		add(n.Target)
		add(n.Value)
	case *ast.UpdateExpression:
		add(n.Target)
	case *ast.CallExpression:
		add(n.Callee)
		for _, a := range n.Arguments {
			add(a)
		}
	case *ast.MemberExpression:
		add(n.Object)
		if n.Computed {
			add(n.Property)
		}
	case *ast.DecoratorChainCall:
		for _, e := range n.Entries {
			add(e)
		}
	case *ast.DecoratorChainContext:
		add(n.Entity)
		add(n.Chain)
	case *ast.DecoratorCall:
		for _, a := range n.Arguments {
			add(a)
		}
	case *ast.ExpressionBrace:
		add(n.Expression)
	}
	return out
}

func unwrapProgram(node ast.Node) ast.Expression {
	switch n := node.(type) {
	case *ast.Program:
		return n.Single()
	case *ast.ExpressionStatement:
		return n.Expression
	case ast.Expression:
		return n
	}
	return nil
}
