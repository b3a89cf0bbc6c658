package codegen

import (
	"strconv"
	"strings"

	"github.com/sambeau/wml/pkg/wml/ast"
	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/runtime"
	"github.com/sambeau/wml/pkg/wml/walker"
)

// Intrinsic function names.
const (
	TranslateFunc  = "rk"
	DebugFunc      = "debug"
	UnsafeHTMLFunc = "__setHTMLUnsafe"
	ResourceFunc   = "resourceUrl"
)

// Method table helpers as compiled bodies call them.
var (
	mGet       = methodRef("Get")
	mSet       = methodRef("Set")
	mCall      = methodRef("Call")
	mCall2     = methodRef("Call2")
	mDecorate  = methodRef("Decorate")
	mResource  = methodRef("ResourceURL")
	mTranslate = methodRef("Translate")
	mDebug     = methodRef("Debug")
)

func methodRef(op string) string { return "M." + runtime.MethodAlias(op) }

func lookup(env *runtime.Env, name string) (any, error) {
	if env.Scope == nil {
		return runtime.Undefined, nil
	}
	return env.Scope.Lookup(name)
}

func (b *Base) identifier(id *ast.Identifier) piece {
	name := id.Name
	switch name {
	case "undefined":
		return constant("undefined", runtime.Undefined)
	case "context":
		return piece{text: "c.context", flags: Context, eval: func(env *runtime.Env) (any, error) {
			if env.Ctx == nil || env.Ctx.ContextData == nil {
				return runtime.Undefined, nil
			}
			return env.Ctx.ContextData, nil
		}}
	case "_children":
		return piece{text: "c.children", flags: Children, eval: func(env *runtime.Env) (any, error) {
			if env.Ctx == nil || env.Ctx.Children == nil {
				return runtime.Undefined, nil
			}
			return env.Ctx.Children, nil
		}}
	}
	return piece{text: mGet + "(d, " + quoteList([]string{name}) + ")", eval: func(env *runtime.Env) (any, error) {
		return lookup(env, name)
	}}
}

// thisPath returns the static property names of a this.a.b chain.
func thisPath(m *ast.MemberExpression) ([]string, bool) {
	name, ok := m.PropertyName()
	if !ok {
		return nil, false
	}
	switch obj := m.Object.(type) {
	case *ast.ThisExpression:
		return []string{name}, true
	case *ast.MemberExpression:
		prefix, ok := thisPath(obj)
		if !ok {
			return nil, false
		}
		return append(prefix, name), true
	}
	return nil, false
}

func (b *Base) member(m *ast.MemberExpression) (piece, error) {
	if path, ok := ast.Path(m); ok {
		return b.dataPath(path), nil
	}
	if path, ok := thisPath(m); ok {
		return piece{text: mGet + "(this, " + quoteList(path) + ")", flags: Self, eval: func(env *runtime.Env) (any, error) {
			return methodsOf(env).Get(env.Self, path), nil
		}}, nil
	}
	obj, err := b.visit(m.Object)
	if err != nil {
		return piece{}, err
	}
	if name, ok := m.PropertyName(); ok {
		path := []string{name}
		return piece{text: mGet + "(" + obj.text + ", " + quoteList(path) + ")", flags: obj.flags, eval: func(env *runtime.Env) (any, error) {
			o, err := obj.eval(env)
			if err != nil {
				return nil, err
			}
			return methodsOf(env).Get(o, path), nil
		}}, nil
	}
	key, err := b.visit(m.Property)
	if err != nil {
		return piece{}, err
	}
	return piece{text: mGet + "(" + obj.text + ", [" + key.text + "])", flags: obj.flags | key.flags, eval: func(env *runtime.Env) (any, error) {
		o, err := obj.eval(env)
		if err != nil {
			return nil, err
		}
		k, err := key.eval(env)
		if err != nil {
			return nil, err
		}
		return methodsOf(env).Get(o, []string{runtime.ToString(k)}), nil
	}}, nil
}

// dataPath reads a static path. context and _children roots read the
// render context instead of the data scope.
func (b *Base) dataPath(path []string) piece {
	root, rest := path[0], path[1:]
	switch root {
	case "context":
		return piece{text: mGet + "(c.context, " + quoteList(rest) + ")", flags: Context, eval: func(env *runtime.Env) (any, error) {
			if env.Ctx == nil {
				return runtime.Undefined, nil
			}
			return methodsOf(env).Get(env.Ctx.ContextValue(rest[0]), rest[1:]), nil
		}}
	case "_children":
		return piece{text: mGet + "(c.children, " + quoteList(rest) + ")", flags: Children, eval: func(env *runtime.Env) (any, error) {
			if env.Ctx == nil {
				return runtime.Undefined, nil
			}
			return methodsOf(env).Get(env.Ctx.Child(rest[0]), rest[1:]), nil
		}}
	}
	return piece{text: mGet + "(d, " + quoteList(path) + ")", eval: func(env *runtime.Env) (any, error) {
		v, err := lookup(env, root)
		if err != nil {
			return nil, err
		}
		return methodsOf(env).Get(v, rest), nil
	}}
}

func (b *Base) call(c *ast.CallExpression) (piece, error) {
	args, argFlags, _, err := b.visitAll(c.Arguments)
	if err != nil {
		return piece{}, err
	}
	argText := "[" + texts(args, ", ") + "]"

	switch callee := ast.Unwrap(c.Callee).(type) {
	case *ast.Identifier:
		if p, ok := b.intrinsic(callee.Name, args, argFlags); ok {
			return p, nil
		}
		name := callee.Name
		fn := b.identifier(callee)
		return piece{
			text:  mCall + "(f, " + fn.text + ", " + argText + ")",
			flags: FuncContext | fn.flags | argFlags,
			eval: func(env *runtime.Env) (any, error) {
				f, err := fn.eval(env)
				if err != nil {
					return nil, err
				}
				argv, err := evalAll(env, args)
				if err != nil {
					return nil, err
				}
				return methodsOf(env).Call(env.FuncContext, f, argv, name)
			},
		}, nil

	case *ast.MemberExpression:
		obj, err := b.visit(callee.Object)
		if err != nil {
			return piece{}, err
		}
		if name, ok := callee.PropertyName(); ok {
			path := []string{name}
			return piece{
				text:  mCall2 + "(" + obj.text + ", " + quoteList(path) + ", " + argText + ")",
				flags: Methods | obj.flags | argFlags,
				eval: func(env *runtime.Env) (any, error) {
					o, err := obj.eval(env)
					if err != nil {
						return nil, err
					}
					argv, err := evalAll(env, args)
					if err != nil {
						return nil, err
					}
					return methodsOf(env).Call2(o, path, argv)
				},
			}, nil
		}
		key, err := b.visit(callee.Property)
		if err != nil {
			return piece{}, err
		}
		return piece{
			text:  mCall2 + "(" + obj.text + ", [" + key.text + "], " + argText + ")",
			flags: Methods | obj.flags | key.flags | argFlags,
			eval: func(env *runtime.Env) (any, error) {
				o, err := obj.eval(env)
				if err != nil {
					return nil, err
				}
				k, err := key.eval(env)
				if err != nil {
					return nil, err
				}
				argv, err := evalAll(env, args)
				if err != nil {
					return nil, err
				}
				return methodsOf(env).Call2(o, []string{runtime.ToString(k)}, argv)
			},
		}, nil

	default:
		fn, err := b.visit(callee)
		if err != nil {
			return piece{}, err
		}
		name := callee.String()
		return piece{
			text:  mCall + "(undefined, " + fn.text + ", " + argText + ")",
			flags: Methods | fn.flags | argFlags,
			eval: func(env *runtime.Env) (any, error) {
				f, err := fn.eval(env)
				if err != nil {
					return nil, err
				}
				argv, err := evalAll(env, args)
				if err != nil {
					return nil, err
				}
				return methodsOf(env).Call(runtime.Undefined, f, argv, name)
			},
		}, nil
	}
}

func (b *Base) intrinsic(name string, args []piece, argFlags Flags) (piece, bool) {
	argText := texts(args, ", ")
	arg := func(env *runtime.Env, i int) (any, error) {
		if i >= len(args) {
			return runtime.Undefined, nil
		}
		return args[i].eval(env)
	}
	switch name {
	case TranslateFunc:
		return piece{text: mTranslate + "(" + argText + ")", flags: Translation | argFlags, eval: func(env *runtime.Env) (any, error) {
			text, err := arg(env, 0)
			if err != nil {
				return nil, err
			}
			ctx, err := arg(env, 1)
			if err != nil {
				return nil, err
			}
			return methodsOf(env).Translate(runtime.ToString(text), runtime.ToString(ctx)), nil
		}}, true
	case DebugFunc:
		return piece{text: mDebug + "(d)", flags: Debug | argFlags, eval: func(env *runtime.Env) (any, error) {
			var values map[string]any
			if env.Scope != nil {
				values = env.Scope.Flatten()
			}
			methodsOf(env).Debug(values)
			return runtime.Undefined, nil
		}}, true
	case UnsafeHTMLFunc:
		return piece{text: UnsafeHTMLFunc + "(" + argText + ")", flags: UnsafeHTML | argFlags, eval: func(env *runtime.Env) (any, error) {
			v, err := arg(env, 0)
			if err != nil {
				return nil, err
			}
			return runtime.RawHTML(runtime.ToString(v)), nil
		}}, true
	case ResourceFunc:
		return piece{text: mResource + "(" + argText + ")", flags: Methods | argFlags, eval: func(env *runtime.Env) (any, error) {
			v, err := arg(env, 0)
			if err != nil {
				return nil, err
			}
			return methodsOf(env).ResourceURL(runtime.ToString(v)), nil
		}}, true
	}
	return piece{}, false
}

// decorate folds a decorator chain over entity, left to right.
func (b *Base) decorate(entity ast.Expression, entries []*ast.DecoratorCall) (piece, error) {
	cur, err := b.visit(entity)
	if err != nil {
		return piece{}, err
	}
	for _, e := range entries {
		name := e.Name.Name
		if name == bindDecorator || name == mutableDecorator {
			continue
		}
		if b.known != nil && !b.known[name] {
			loc := e.Loc()
			werr := werrors.NewWithPosition("CODEGEN-0002", loc.StartLine, loc.StartColumn, map[string]any{"Name": name})
			return piece{}, werr.WithSuggestion(name, b.opts.Decorators)
		}
		args, argFlags, _, err := b.visitAll(e.Arguments)
		if err != nil {
			return piece{}, err
		}
		prev := cur
		text := mDecorate + "(" + strconv.Quote(name) + ", [" + prev.text
		if len(args) > 0 {
			text += ", " + texts(args, ", ")
		}
		cur = piece{
			text:  text + "])",
			flags: Methods | prev.flags | argFlags,
			eval: func(env *runtime.Env) (any, error) {
				v, err := prev.eval(env)
				if err != nil {
					return nil, err
				}
				argv, err := evalAll(env, args)
				if err != nil {
					return nil, err
				}
				return methodsOf(env).Decorate(name, append([]any{v}, argv...))
			},
		}
	}
	return cur, nil
}

// location is an assignable target.
type location struct {
	text  string
	flags Flags
	get   runtime.Evaluator
	set   runtime.Assigner
}

// lvalue compiles an identifier or member expression as a target.
func (b *Base) lvalue(target ast.Expression) (location, error) {
	switch t := ast.Unwrap(target).(type) {
	case *ast.Identifier:
		name := t.Name
		return location{
			text: mSet + "(d, " + quoteList([]string{name}) + ", v)",
			get: func(env *runtime.Env) (any, error) {
				return lookup(env, name)
			},
			set: func(env *runtime.Env, v any) error {
				if env.Scope == nil {
					return werrors.New("RUNTIME-0006", map[string]any{"Value": "undefined", "Property": name})
				}
				return env.Scope.Assign(name, v)
			},
		}, nil
	case *ast.MemberExpression:
		obj, err := b.visit(t.Object)
		if err != nil {
			return location{}, err
		}
		keyText := ""
		var key runtime.Evaluator
		flags := obj.flags
		if name, ok := t.PropertyName(); ok {
			keyText = strconv.Quote(name)
			key = func(*runtime.Env) (any, error) { return name, nil }
		} else {
			k, err := b.visit(t.Property)
			if err != nil {
				return location{}, err
			}
			keyText, key, flags = k.text, k.eval, flags|k.flags
		}
		resolve := func(env *runtime.Env) (any, []string, error) {
			o, err := obj.eval(env)
			if err != nil {
				return nil, nil, err
			}
			k, err := key(env)
			if err != nil {
				return nil, nil, err
			}
			return o, []string{runtime.ToString(k)}, nil
		}
		return location{
			text:  mSet + "(" + obj.text + ", [" + keyText + "], v)",
			flags: Methods | flags,
			get: func(env *runtime.Env) (any, error) {
				o, path, err := resolve(env)
				if err != nil {
					return nil, err
				}
				return methodsOf(env).Get(o, path), nil
			},
			set: func(env *runtime.Env, v any) error {
				o, path, err := resolve(env)
				if err != nil {
					return err
				}
				return methodsOf(env).Set(o, path, v)
			},
		}, nil
	}
	loc := target.Loc()
	return location{}, werrors.NewWithPosition("CODEGEN-0001", loc.StartLine, loc.StartColumn, map[string]any{"Type": target.Kind().String()})
}

func (b *Base) assignment(a *ast.AssignmentExpression) (piece, error) {
	loc, err := b.lvalue(a.Target)
	if err != nil {
		return piece{}, err
	}
	value, err := b.visit(a.Value)
	if err != nil {
		return piece{}, err
	}
	op := strings.TrimSuffix(a.Operator, "=")
	return piece{
		text:  strings.Replace(loc.text, ", v)", ", "+value.text+")", 1),
		flags: loc.flags | value.flags,
		eval: func(env *runtime.Env) (any, error) {
			v, err := value.eval(env)
			if err != nil {
				return nil, err
			}
			if op != "" {
				cur, err := loc.get(env)
				if err != nil {
					return nil, err
				}
				v = runtime.Binary(op, cur, v)
			}
			return v, loc.set(env, v)
		},
	}, nil
}

func (b *Base) update(u *ast.UpdateExpression) (piece, error) {
	loc, err := b.lvalue(u.Target)
	if err != nil {
		return piece{}, err
	}
	delta := 1.0
	if u.Operator == "--" {
		delta = -1
	}
	prefix := u.Prefix
	return piece{
		text:  u.String(),
		flags: loc.flags,
		eval: func(env *runtime.Env) (any, error) {
			cur, err := loc.get(env)
			if err != nil {
				return nil, err
			}
			old := runtime.ToNumber(cur)
			next := old + delta
			if err := loc.set(env, next); err != nil {
				return nil, err
			}
			if prefix {
				return next, nil
			}
			return old, nil
		},
	}, nil
}

const (
	bindDecorator    = "bind"
	mutableDecorator = "mutable"
)

// ExpressionGenerator compiles value expressions: mustache text, attribute
// values, options and control-flow clauses.
type ExpressionGenerator struct {
	Base
}

// NewExpressionGenerator creates a generator.
func NewExpressionGenerator(opts Options) *ExpressionGenerator {
	return &ExpressionGenerator{Base: newBase(opts)}
}

// Generate compiles p. fieldName is the attribute or option the value is
// passed as; it names the binding of a |bind or |mutable decorator.
// force makes the result a table function.
func (g *ExpressionGenerator) Generate(p *ast.Program, fieldName string, force bool) (*Fragment, error) {
	if dc, ok := ast.Unwrap(singleOrNil(p)).(*ast.DecoratorChainContext); ok {
		if frag, ok, err := g.binding(dc, fieldName, force); ok || err != nil {
			return frag, err
		}
	}
	pc, err := g.program(p)
	if err != nil {
		return nil, err
	}
	return g.fragment(pc, force), nil
}

func singleOrNil(p *ast.Program) ast.Expression {
	if e := p.Single(); e != nil {
		return e
	}
	return &ast.Identifier{}
}

// binding splits entity|bind(direction, default) and entity|mutable into
// a getter, a setter and the binding configuration.
func (g *ExpressionGenerator) binding(dc *ast.DecoratorChainContext, fieldName string, force bool) (*Fragment, bool, error) {
	var marker *ast.DecoratorCall
	var rest []*ast.DecoratorCall
	for _, e := range dc.Chain.Entries {
		if (e.Name.Name == bindDecorator || e.Name.Name == mutableDecorator) && marker == nil {
			marker = e
			continue
		}
		rest = append(rest, e)
	}
	if marker == nil {
		return nil, false, nil
	}
	entity := ast.Unwrap(dc.Entity)
	cfg, err := bindTarget(entity, fieldName)
	if err != nil {
		return nil, true, err
	}
	if marker.Name.Name == mutableDecorator {
		cfg.OneWay = true
	} else {
		cfg.OneWay = false
		if len(marker.Arguments) > 0 {
			if lit, ok := marker.Arguments[0].(*ast.Literal); ok {
				if s, ok := lit.Value.(string); ok {
					cfg.Direction = s
				}
			}
		}
		cfg.HasDefault = len(marker.Arguments) > 1
	}
	loc, err := g.lvalue(entity)
	if err != nil {
		return nil, true, err
	}
	value, err := g.decorate(entity, rest)
	if err != nil {
		return nil, true, err
	}
	frag := g.fragment(value, force)
	frag.Flags |= loc.flags
	frag.Constant = false
	frag.Assign = loc.set
	frag.Binding = cfg
	frag.Entity = entity.String()
	return frag, true, nil
}

// bindTarget validates a bind target and describes it.
func bindTarget(e ast.Expression, fieldName string) (*runtime.BindingConfig, error) {
	loc := e.Loc()
	source := e.String()
	switch e.(type) {
	case *ast.DecoratorChainContext:
		return nil, werrors.NewWithPosition("BIND-0003", loc.StartLine, loc.StartColumn, map[string]any{"Expression": source})
	case *ast.Identifier, *ast.MemberExpression:
	default:
		return nil, werrors.NewWithPosition("BIND-0001", loc.StartLine, loc.StartColumn, map[string]any{"Expression": source, "Kind": e.Kind().String()})
	}
	root := e
	for {
		m, ok := root.(*ast.MemberExpression)
		if !ok {
			break
		}
		root = ast.Unwrap(m.Object)
	}
	if id, ok := root.(*ast.Identifier); ok && id.Name == "_options" {
		return nil, werrors.NewWithPosition("BIND-0002", loc.StartLine, loc.StartColumn, map[string]any{"Expression": source})
	}
	if walker.HasDecorators(e) {
		return nil, werrors.NewWithPosition("BIND-0003", loc.StartLine, loc.StartColumn, map[string]any{"Expression": source})
	}
	cfg := &runtime.BindingConfig{
		FieldName:    fieldName,
		FullPropName: source,
		Direction:    "fromContext",
	}
	if path, ok := ast.Path(e); ok {
		cfg.PropPath = path[1:]
	}
	return cfg, nil
}
