package codegen

import (
	"strconv"

	"github.com/sambeau/wml/pkg/wml/ast"
	werrors "github.com/sambeau/wml/pkg/wml/errors"
)

// BindGenerator compiles bind: attribute values into a getter and a setter.
// Only identifiers and member paths can be bound.
type BindGenerator struct {
	Base
}

// NewBindGenerator creates a generator.
func NewBindGenerator(opts Options) *BindGenerator {
	return &BindGenerator{Base: newBase(opts)}
}

// Generate compiles p as the target of the binding named fieldName.
func (g *BindGenerator) Generate(p *ast.Program, fieldName string) (*Fragment, error) {
	exprs := p.Expressions()
	if len(exprs) != 1 {
		loc := p.Loc()
		return nil, werrors.NewWithPosition("BIND-0001", loc.StartLine, loc.StartColumn, map[string]any{
			"Expression": p.String(),
			"Kind":       "sequence of " + strconv.Itoa(len(exprs)) + " expressions",
		})
	}
	target := ast.Unwrap(exprs[0])
	cfg, err := bindTarget(target, fieldName)
	if err != nil {
		return nil, err
	}
	cfg.OneWay = true
	getter, err := g.visit(target)
	if err != nil {
		return nil, err
	}
	loc, err := g.lvalue(target)
	if err != nil {
		return nil, err
	}
	return &Fragment{
		Body:    getter.text,
		Flags:   getter.flags | loc.flags,
		Forced:  true,
		Eval:    getter.eval,
		Assign:  loc.set,
		Binding: cfg,
		Entity:  target.String(),
	}, nil
}

// Setter returns the disassembly of the setter of p, with v standing for
// the assigned value.
func (g *BindGenerator) Setter(p *ast.Program) (string, error) {
	target := ast.Unwrap(singleOrNil(p))
	loc, err := g.lvalue(target)
	if err != nil {
		return "", err
	}
	return "(d, c, v) => " + loc.text, nil
}
