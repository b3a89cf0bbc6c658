package codegen

import (
	"strconv"

	"github.com/sambeau/wml/pkg/wml/ast"
	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/runtime"
)

// EventGenerator compiles on: attribute values. A handler is a method
// reference, optionally on an owning object, optionally called with
// arguments: pick, list.pick, pick(item, index).
type EventGenerator struct {
	Base
}

// NewEventGenerator creates a generator.
func NewEventGenerator(opts Options) *EventGenerator {
	return &EventGenerator{Base: newBase(opts)}
}

// Generate compiles p into a handler. Arguments are compiled as separate
// value expressions, so only their debug and translation flags reach the
// handler.
func (g *EventGenerator) Generate(p *ast.Program) (*Fragment, error) {
	exprs := p.Expressions()
	if len(exprs) != 1 {
		return nil, werrors.New("EVENT-0003", map[string]any{"Count": strconv.Itoa(len(exprs))})
	}
	root := ast.Unwrap(exprs[0])
	source := root.String()
	loc := root.Loc()

	var callee ast.Expression
	var args []ast.Expression
	switch n := root.(type) {
	case *ast.CallExpression:
		callee, args = ast.Unwrap(n.Callee), n.Arguments
	case *ast.Identifier, *ast.MemberExpression:
		callee = n
	default:
		return nil, werrors.NewWithPosition("EVENT-0002", loc.StartLine, loc.StartColumn, map[string]any{"Expression": source})
	}

	h := &runtime.Handler{}
	var flags Flags
	ctxText := "f"
	switch c := callee.(type) {
	case *ast.Identifier:
		h.Name = c.Name
	case *ast.MemberExpression:
		name, ok := c.PropertyName()
		if !ok {
			return nil, werrors.NewWithPosition("EVENT-0001", loc.StartLine, loc.StartColumn, map[string]any{"Expression": source})
		}
		h.Name = name
		owner, err := g.visit(c.Object)
		if err != nil {
			return nil, err
		}
		h.Context = owner.eval
		ctxText = owner.text
		flags |= owner.flags.Materialize()
	default:
		return nil, werrors.NewWithPosition("EVENT-0002", loc.StartLine, loc.StartColumn, map[string]any{"Expression": source})
	}

	argPieces, argFlags, _, err := g.visitAll(args)
	if err != nil {
		return nil, err
	}
	for _, a := range argPieces {
		h.Args = append(h.Args, a.eval)
	}
	flags |= argFlags.Materialize()

	return &Fragment{
		Body:    mCall2 + "(" + ctxText + ", " + quoteList([]string{h.Name}) + ", [" + texts(argPieces, ", ") + "])",
		Flags:   flags,
		Forced:  true,
		Handler: h,
	}, nil
}
