package codegen

import (
	"strconv"
	"strings"

	"github.com/sambeau/wml/pkg/wml/ast"
	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/runtime"
)

// Options configure a generator.
type Options struct {
	// Symbols interns string literals when set.
	Symbols *Symbols
	// Decorators lists the known decorator names. When it is non-nil an
	// unknown decorator is a compile error.
	Decorators []string
}

// Fragment is a compiled program.
type Fragment struct {
	// Body is the disassembly of the expression.
	Body  string
	Flags Flags
	// Forced makes the fragment a table function regardless of flags.
	Forced bool
	// Constant is set when the value does not depend on the environment.
	Constant bool
	Eval     runtime.Evaluator
	Assign   runtime.Assigner
	Handler  *runtime.Handler
	Binding  *runtime.BindingConfig
	// Entity is the source of the location a bind or mutable decorator
	// applies to.
	Entity string
}

// IsTableFunction reports whether the fragment has to be stored as a
// callable in the expression table rather than inlined.
func (f *Fragment) IsTableFunction() bool {
	return f.Forced || f.Flags.Structural()
}

// Source is the stored text of the fragment. Table functions are wrapped;
// reading this needs a plain function so the receiver binds.
func (f *Fragment) Source() string {
	if !f.IsTableFunction() {
		return f.Body
	}
	if f.Flags.Has(Self) {
		return "function(d, c, f){ return " + f.Body + "; }"
	}
	return "(d, c, f) => " + f.Body
}

// piece is the compiled form of one node.
type piece struct {
	text     string
	flags    Flags
	constant bool
	eval     runtime.Evaluator
}

func constant(text string, v any) piece {
	return piece{text: text, constant: true, eval: func(*runtime.Env) (any, error) { return v, nil }}
}

// Base is the visitor shared by all generators. It compiles every node kind
// of the expression language.
type Base struct {
	opts  Options
	known map[string]bool
}

func newBase(opts Options) Base {
	b := Base{opts: opts}
	if opts.Decorators != nil {
		b.known = make(map[string]bool, len(opts.Decorators))
		for _, name := range opts.Decorators {
			b.known[name] = true
		}
	}
	return b
}

func (b *Base) fragment(p piece, forced bool) *Fragment {
	return &Fragment{Body: p.text, Flags: p.flags, Forced: forced, Constant: p.constant && !forced, Eval: p.eval}
}

// program compiles every statement; the value is the last one.
func (b *Base) program(p *ast.Program) (piece, error) {
	exprs := p.Expressions()
	switch len(exprs) {
	case 0:
		return constant("undefined", runtime.Undefined), nil
	case 1:
		return b.visit(exprs[0])
	}
	return b.sequence(exprs, "; ")
}

func (b *Base) visit(node ast.Expression) (piece, error) {
	switch n := node.(type) {
	case *ast.Literal:
		return b.literal(n), nil
	case *ast.ThisExpression:
		return piece{text: "this", flags: Self, eval: func(env *runtime.Env) (any, error) { return env.Self, nil }}, nil
	case *ast.Identifier:
		return b.identifier(n), nil
	case *ast.MemberExpression:
		return b.member(n)
	case *ast.CallExpression:
		return b.call(n)
	case *ast.DecoratorChainContext:
		return b.decorate(n.Entity, n.Chain.Entries)
	case *ast.ArrayExpression:
		return b.array(n)
	case *ast.ObjectExpression:
		return b.object(n)
	case *ast.SequenceExpression:
		p, err := b.sequence(n.Expressions, ", ")
		p.text = "(" + p.text + ")"
		return p, err
	case *ast.UnaryExpression:
		return b.unary(n)
	case *ast.BinaryExpression:
		return b.binary(n)
	case *ast.LogicalExpression:
		return b.logical(n)
	case *ast.ConditionalExpression:
		return b.conditional(n)
	case *ast.ExpressionBrace:
		p, err := b.visit(n.Expression)
		p.text = "(" + p.text + ")"
		return p, err
	case *ast.AssignmentExpression:
		return b.assignment(n)
	case *ast.UpdateExpression:
		return b.update(n)
	}
	loc := node.Loc()
	return piece{}, werrors.NewWithPosition("CODEGEN-0001", loc.StartLine, loc.StartColumn, map[string]any{"Type": node.Kind().String()})
}

// visitAll compiles a list of expressions, merging their flags.
func (b *Base) visitAll(exprs []ast.Expression) ([]piece, Flags, bool, error) {
	pieces := make([]piece, len(exprs))
	var flags Flags
	allConst := true
	for i, e := range exprs {
		p, err := b.visit(e)
		if err != nil {
			return nil, 0, false, err
		}
		pieces[i] = p
		flags |= p.flags
		allConst = allConst && p.constant
	}
	return pieces, flags, allConst, nil
}

func texts(pieces []piece, sep string) string {
	parts := make([]string, len(pieces))
	for i, p := range pieces {
		parts[i] = p.text
	}
	return strings.Join(parts, sep)
}

func evalAll(env *runtime.Env, pieces []piece) ([]any, error) {
	out := make([]any, len(pieces))
	for i, p := range pieces {
		v, err := p.eval(env)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (b *Base) literal(l *ast.Literal) piece {
	switch l.Type {
	case ast.StringLiteral:
		s, _ := l.Value.(string)
		if b.opts.Symbols != nil {
			i, interned := b.opts.Symbols.Intern(s)
			return constant(symbolRef(i), interned)
		}
		return constant(strconv.Quote(s), s)
	case ast.NullLiteral:
		return constant("null", nil)
	}
	return constant(l.Raw, l.Value)
}

func (b *Base) array(a *ast.ArrayExpression) (piece, error) {
	elems, flags, allConst, err := b.visitAll(a.Elements)
	if err != nil {
		return piece{}, err
	}
	return piece{
		text:     "[" + texts(elems, ", ") + "]",
		flags:    flags,
		constant: allConst,
		eval: func(env *runtime.Env) (any, error) {
			return evalAll(env, elems)
		},
	}, nil
}

func (b *Base) object(o *ast.ObjectExpression) (piece, error) {
	keys := make([]string, len(o.Properties))
	values := make([]ast.Expression, len(o.Properties))
	for i, p := range o.Properties {
		keys[i] = p.KeyName()
		values[i] = p.Value
	}
	vals, flags, allConst, err := b.visitAll(values)
	if err != nil {
		return piece{}, err
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = strconv.Quote(k) + ": " + vals[i].text
	}
	return piece{
		text:     "{" + strings.Join(parts, ", ") + "}",
		flags:    flags,
		constant: allConst,
		eval: func(env *runtime.Env) (any, error) {
			out := make(map[string]any, len(keys))
			for i, k := range keys {
				v, err := vals[i].eval(env)
				if err != nil {
					return nil, err
				}
				out[k] = v
			}
			return out, nil
		},
	}, nil
}

func (b *Base) sequence(exprs []ast.Expression, sep string) (piece, error) {
	items, flags, allConst, err := b.visitAll(exprs)
	if err != nil {
		return piece{}, err
	}
	return piece{
		text:     texts(items, sep),
		flags:    flags,
		constant: allConst,
		eval: func(env *runtime.Env) (any, error) {
			var last any = runtime.Undefined
			for _, it := range items {
				v, err := it.eval(env)
				if err != nil {
					return nil, err
				}
				last = v
			}
			return last, nil
		},
	}, nil
}

func (b *Base) unary(u *ast.UnaryExpression) (piece, error) {
	arg, err := b.visit(u.Argument)
	if err != nil {
		return piece{}, err
	}
	op := u.Operator
	text := op + arg.text
	if op == "typeof" {
		text = "typeof " + arg.text
	}
	return piece{
		text:     text,
		flags:    arg.flags,
		constant: arg.constant,
		eval: func(env *runtime.Env) (any, error) {
			v, err := arg.eval(env)
			if err != nil {
				return nil, err
			}
			return runtime.Unary(op, v), nil
		},
	}, nil
}

func (b *Base) binary(e *ast.BinaryExpression) (piece, error) {
	left, err := b.visit(e.Left)
	if err != nil {
		return piece{}, err
	}
	right, err := b.visit(e.Right)
	if err != nil {
		return piece{}, err
	}
	op := e.Operator
	return piece{
		text:     left.text + " " + op + " " + right.text,
		flags:    left.flags | right.flags,
		constant: left.constant && right.constant,
		eval: func(env *runtime.Env) (any, error) {
			l, err := left.eval(env)
			if err != nil {
				return nil, err
			}
			r, err := right.eval(env)
			if err != nil {
				return nil, err
			}
			return runtime.Binary(op, l, r), nil
		},
	}, nil
}

func (b *Base) logical(e *ast.LogicalExpression) (piece, error) {
	left, err := b.visit(e.Left)
	if err != nil {
		return piece{}, err
	}
	right, err := b.visit(e.Right)
	if err != nil {
		return piece{}, err
	}
	and := e.Operator == "&&"
	return piece{
		text:     left.text + " " + e.Operator + " " + right.text,
		flags:    left.flags | right.flags,
		constant: left.constant && right.constant,
		eval: func(env *runtime.Env) (any, error) {
			l, err := left.eval(env)
			if err != nil {
				return nil, err
			}
			if runtime.Truthy(l) != and {
				return l, nil
			}
			return right.eval(env)
		},
	}, nil
}

func (b *Base) conditional(e *ast.ConditionalExpression) (piece, error) {
	test, err := b.visit(e.Test)
	if err != nil {
		return piece{}, err
	}
	cons, err := b.visit(e.Consequent)
	if err != nil {
		return piece{}, err
	}
	alt, err := b.visit(e.Alternate)
	if err != nil {
		return piece{}, err
	}
	return piece{
		text:     test.text + " ? " + cons.text + " : " + alt.text,
		flags:    test.flags | cons.flags | alt.flags,
		constant: test.constant && cons.constant && alt.constant,
		eval: func(env *runtime.Env) (any, error) {
			t, err := test.eval(env)
			if err != nil {
				return nil, err
			}
			if runtime.Truthy(t) {
				return cons.eval(env)
			}
			return alt.eval(env)
		},
	}, nil
}

func quoteList(path []string) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = strconv.Quote(p)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

var fallbackMethods = runtime.NewMethods()

func methodsOf(env *runtime.Env) *runtime.Methods {
	if env.Methods != nil {
		return env.Methods
	}
	return fallbackMethods
}
