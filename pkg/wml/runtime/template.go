package runtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/logger"
)

// MaxLoopIterations bounds a ws:for init; test; update loop.
const MaxLoopIterations = 100000

// GeneratorConfig carries the collaborators of an invocation.
type GeneratorConfig struct {
	Registry  *Registry
	Iterators *Iterators
	Logger    logger.Logger
	// ContextData seeds context.x lookups when there is no parent context.
	ContextData    map[string]any
	ViewController any
}

// Template is an executable template function: the ROOT body of a module
// description, or one of its ws:template bodies.
type Template struct {
	Description *Description
	Body        *Body
	// Name is empty for the module template.
	Name    string
	Methods *Methods
	// Stable is set once the template is fully built.
	Stable bool
	// IsModule is true for the ROOT body.
	IsModule bool
	// Templates holds the ws:template functions of a module template.
	Templates map[string]*Template

	index int
}

// New creates the module template of d.
func New(d *Description, m *Methods) (*Template, error) {
	var roots int
	for _, b := range d.Bodies {
		if b.Kind == RootBody {
			roots++
		}
	}
	if roots != 1 {
		return nil, werrors.New("CODEGEN-0004", map[string]any{"Count": roots})
	}
	if m == nil {
		m = NewMethods()
	}
	t := &Template{Description: d, Methods: m, IsModule: true, Templates: map[string]*Template{}}
	for i, b := range d.Bodies {
		switch b.Kind {
		case RootBody:
			t.Body, t.index = b, i
		case TemplateBody:
			t.Templates[b.Name] = &Template{Description: d, Body: b, Name: b.Name, Methods: m, Stable: true, index: i}
		}
	}
	t.Stable = true
	return t, nil
}

// ReactiveProps are the data names the template depends on.
func (t *Template) ReactiveProps() []string { return t.Description.ReactiveProps }

// MarshalJSON serializes a module template as its description. A
// ws:template function serializes to the CONTENT_OPTION,<index>,<json>
// line that names its body within the description.
func (t *Template) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(t.Description)
	if err != nil {
		return nil, err
	}
	if t.IsModule {
		return payload, nil
	}
	return json.Marshal("CONTENT_OPTION," + strconv.Itoa(t.index) + "," + string(payload))
}

// ContentOption is a content option passed to a component. It renders its
// body in the caller's scope with the passed data bound to its name.
type ContentOption struct {
	Name string
	body *Body
	in   *interp
	ctx  *Context
}

// Invoke renders the content option with data.
func (c *ContentOption) Invoke(data any) ([]*VNode, error) {
	child := c.ctx.Spawn("")
	child.Scope = c.ctx.Scope.Child()
	child.Scope.Define(c.Name, data)
	return c.in.body(child, c.body)
}

// String renders the content option as HTML.
func (c *ContentOption) String() string {
	nodes, err := c.Invoke(Undefined)
	if err != nil {
		return ""
	}
	out, _ := (&StringGenerator{}).Join(nodes)
	return out.(string)
}

// Invoke runs the template. data is the template data, attributes the
// component attributes. With isVdom the result is []*VNode, otherwise an
// HTML string. exceptionMode "throw" returns evaluation errors; any other
// mode logs them and substitutes empty text.
func (t *Template) Invoke(data any, attributes map[string]any, parent *Context, isVdom bool, deferred *DeferredResults, compatible bool, config *GeneratorConfig, exceptionMode string) (any, error) {
	ctx := t.newContext(data, attributes, parent, isVdom, deferred, compatible, config, exceptionMode)
	nodes, err := ctx.in.body(ctx, t.Body)
	if err != nil {
		if ctx.in.throw {
			return nil, err
		}
		ctx.in.logError(err)
		nodes = []*VNode{ctx.Generator.CreateText("", ctx.Key)}
	}
	return ctx.Generator.Join(nodes)
}

// RenderString is Invoke producing HTML with errors propagated.
func (t *Template) RenderString(data any, config *GeneratorConfig) (string, error) {
	out, err := t.Invoke(data, nil, nil, false, nil, false, config, "throw")
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// RenderVDOM is Invoke producing nodes with errors propagated.
func (t *Template) RenderVDOM(data any, config *GeneratorConfig) ([]*VNode, error) {
	out, err := t.Invoke(data, nil, nil, true, nil, false, config, "throw")
	if err != nil {
		return nil, err
	}
	return out.([]*VNode), nil
}

// Render runs the template as a component of parent, with options as its
// data. key is the absolute key of the call. Output is built by the
// parent's generator.
func (t *Template) Render(parent *Context, key string, options map[string]any) ([]*VNode, error) {
	ctx := parent.Spawn("")
	ctx.Global = t.Description
	ctx.Key = key
	ctx.Scope = NewScope(withOptions(options))
	ctx.Attributes = nil
	ctx.Args = []any{options}
	ctx.in = parent.in.derive(t)
	return ctx.in.body(ctx, t.Body)
}

// DirtyCheck evaluates the internal expressions of the template against
// data and returns them by expression index. Expressions that cannot be
// evaluated hold Unreachable.
func (t *Template) DirtyCheck(data any) map[int]any {
	ctx := t.newContext(data, nil, nil, true, nil, false, nil, "")
	ctx.Mode = InternalMode
	ctx.Internals = map[int]any{}
	if _, err := ctx.in.body(ctx, t.Body); err != nil {
		ctx.in.logError(err)
	}
	return ctx.Internals
}

func (t *Template) newContext(data any, attributes map[string]any, parent *Context, isVdom bool, deferred *DeferredResults, compatible bool, config *GeneratorConfig, exceptionMode string) *Context {
	if config == nil {
		config = &GeneratorConfig{}
	}
	in := &interp{
		desc:      t.Description,
		module:    t,
		methods:   t.Methods,
		registry:  config.Registry,
		iterators: config.Iterators,
		log:       config.Logger,
		throw:     exceptionMode == "throw",
	}
	if in.iterators == nil {
		in.iterators = DefaultIterators()
	}
	if in.log == nil {
		in.log = logger.NullLogger()
	}
	var gen Generator = VDOMGenerator{}
	if !isVdom {
		gen = &StringGenerator{Registry: config.Registry, Compatible: compatible}
	}
	if deferred == nil {
		deferred = NewDeferredResults()
	}
	ctx := &Context{
		Global:         t.Description,
		Args:           []any{data, attributes},
		Attributes:     attributes,
		Scope:          NewScope(withOptions(data)),
		Self:           data,
		ViewController: config.ViewController,
		Deferred:       deferred,
		Generator:      gen,
		Compatible:     compatible,
		ContextData:    config.ContextData,
		in:             in,
	}
	if parent != nil {
		// a nested call belongs to the component that rendered it
		ctx.parent = parent
		ctx.Key = parent.Key
		if ctx.ViewController == nil {
			ctx.ViewController = parent.funcContext()
		}
		if ctx.ContextData == nil {
			ctx.ContextData = parent.ContextData
		}
		ctx.Children = parent.Children
	}
	return ctx
}

// withOptions exposes the data object itself as _options.
func withOptions(data any) any {
	if m, ok := data.(map[string]any); ok {
		if _, has := m["_options"]; !has {
			return &optionsScope{m}
		}
	}
	return data
}

type optionsScope struct{ m map[string]any }

func (o *optionsScope) Get(name string) (any, bool) {
	if name == "_options" {
		return o.m, true
	}
	v, ok := o.m[name]
	return v, ok
}

func (o *optionsScope) Set(name string, value any) error {
	o.m[name] = value
	return nil
}

// interp executes body instructions for one description.
type interp struct {
	desc      *Description
	module    *Template
	methods   *Methods
	registry  *Registry
	iterators *Iterators
	log       logger.Logger
	throw     bool
}

func (in *interp) derive(t *Template) *interp {
	out := *in
	out.desc = t.Description
	out.module = t
	if t.Methods != nil {
		out.methods = t.Methods
	}
	return &out
}

func (in *interp) logError(err error) {
	in.log.LogLine("template error:", in.desc.Module, err)
}

// contain turns a render error into a logged warning unless errors are
// propagated.
func (in *interp) contain(err error) error {
	if err == nil || in.throw {
		return err
	}
	in.logError(err)
	return nil
}

func (in *interp) eval(ctx *Context, slot int) (any, error) {
	if slot < 0 || slot >= len(in.desc.Expressions) {
		return nil, werrors.New("WIRE-0001", map[string]any{"Reason": fmt.Sprintf("expression %d out of range", slot)})
	}
	expr := in.desc.Expressions[slot]
	if expr.Eval == nil {
		return nil, werrors.New("WIRE-0001", map[string]any{"Reason": fmt.Sprintf("expression %d is not compiled", slot)})
	}
	return expr.Eval(ctx.Env(in.methods))
}

// collect evaluates the internal expressions of a scope container.
func (in *interp) collect(ctx *Context, internal int) {
	if ctx.Mode != InternalMode || internal < 0 || internal >= len(in.desc.Internals) {
		return
	}
	for _, slot := range expandRanges(in.desc.Internals[internal]) {
		if prev, seen := ctx.Internals[slot]; seen && prev == Unreachable {
			continue
		}
		v, err := in.eval(ctx, slot)
		if err != nil {
			v = Unreachable
		}
		ctx.Internals[slot] = v
	}
}

func expandRanges(ranges [][]int) []int {
	var out []int
	for _, r := range ranges {
		switch len(r) {
		case 1:
			out = append(out, r[0])
		case 2:
			for i := r[0]; i <= r[1]; i++ {
				out = append(out, i)
			}
		}
	}
	return out
}

func (in *interp) body(ctx *Context, b *Body) ([]*VNode, error) {
	in.collect(ctx, b.Internal)
	return in.list(ctx, b.Children)
}

func (in *interp) list(ctx *Context, instrs []*Instruction) ([]*VNode, error) {
	var out []*VNode
	for _, ins := range instrs {
		nodes, err := in.exec(ctx, ins)
		if err != nil {
			return nil, err
		}
		out = append(out, nodes...)
	}
	return out, nil
}

func (in *interp) exec(ctx *Context, ins *Instruction) ([]*VNode, error) {
	switch ins.Op {
	case OpText:
		return in.text(ctx, ins)
	case OpElement:
		return in.element(ctx, ins)
	case OpComponent:
		return in.component(ctx, ins)
	case OpPartial:
		return in.partial(ctx, ins)
	case OpIf:
		return in.conditional(ctx, ins)
	case OpFor:
		return in.forLoop(ctx, ins)
	case OpForeach:
		return in.foreach(ctx, ins)
	}
	return nil, werrors.New("CODEGEN-0001", map[string]any{"Type": string(ins.Op)})
}

func (in *interp) segment(ctx *Context, seg Segment) (any, error) {
	switch seg.Kind {
	case TextSegment:
		return seg.Text, nil
	case ValueSegment:
		return seg.Value, nil
	case TranslationSegment:
		return in.methods.Translate(seg.Text, seg.Context), nil
	case ExprSegment:
		v, err := in.eval(ctx, seg.Expr)
		if err != nil {
			return "", in.contain(err)
		}
		return v, nil
	}
	return "", nil
}

// value evaluates segments. A single segment keeps its type; several are
// concatenated as text.
func (in *interp) value(ctx *Context, segs []Segment) (any, error) {
	if len(segs) == 1 {
		return in.segment(ctx, segs[0])
	}
	var b strings.Builder
	for _, seg := range segs {
		v, err := in.segment(ctx, seg)
		if err != nil {
			return nil, err
		}
		b.WriteString(ToString(v))
	}
	return b.String(), nil
}

func (in *interp) key(ctx *Context, ins *Instruction) string { return ctx.Key + ins.Key }

func (in *interp) text(ctx *Context, ins *Instruction) ([]*VNode, error) {
	if ctx.Mode == InternalMode {
		return nil, nil
	}
	v, err := in.value(ctx, ins.Segments)
	if err != nil {
		return nil, err
	}
	if raw, ok := v.(RawHTML); ok {
		if len(ins.Segments) != 1 || !ins.Segments[0].Unsafe {
			raw = in.methods.Sanitize(string(raw))
		}
		return []*VNode{ctx.Generator.CreateRaw(raw, in.key(ctx, ins))}, nil
	}
	return []*VNode{ctx.Generator.CreateText(ToString(v), in.key(ctx, ins))}, nil
}

func (in *interp) element(ctx *Context, ins *Instruction) ([]*VNode, error) {
	if ctx.Mode == InternalMode {
		_, err := in.list(ctx, ins.Children)
		return nil, err
	}
	var (
		attrs  []Attr
		events []*Event
	)
	for _, a := range ins.Attrs {
		switch a.Kind {
		case EventAttr:
			events = append(events, in.event(ctx, a))
		case BindAttr:
			v, err := in.eval(ctx, a.Expr)
			if err := in.contain(err); err != nil {
				return nil, err
			}
			if !IsNullish(v) {
				attrs = append(attrs, Attr{Name: a.Name, Value: ToString(v)})
			}
		default:
			v, err := in.value(ctx, a.Segments)
			if err != nil {
				return nil, err
			}
			if IsNullish(v) || v == false {
				continue
			}
			if v == true {
				v = a.Name
			}
			attrs = append(attrs, Attr{Name: a.Name, Value: ToString(v)})
		}
	}
	children, err := in.list(ctx, ins.Children)
	if err != nil {
		return nil, err
	}
	return []*VNode{ctx.Generator.CreateTag(ins.Name, in.key(ctx, ins), attrs, events, children)}, nil
}

func (in *interp) event(ctx *Context, a *AttrSpec) *Event {
	expr := in.desc.Expressions[a.Expr]
	h := expr.Handler
	env := ctx.Env(in.methods)
	ev := &Event{Name: a.Name}
	if h == nil {
		ev.Fire = func(args ...any) (any, error) {
			return nil, werrors.New("RUNTIME-0001", map[string]any{"Name": expr.Source})
		}
		return ev
	}
	ev.Handler = h.Name
	ev.Fire = func(args ...any) (any, error) {
		owner := env.FuncContext
		if h.Context != nil {
			var err error
			if owner, err = h.Context(env); err != nil {
				return nil, err
			}
		}
		callArgs := append([]any(nil), args...)
		for _, arg := range h.Args {
			v, err := arg(env)
			if err != nil {
				return nil, err
			}
			callArgs = append(callArgs, v)
		}
		return in.methods.Call2(owner, []string{h.Name}, callArgs)
	}
	return ev
}

// call collects the options, bindings and events of a component or
// partial call.
func (in *interp) call(ctx *Context, ins *Instruction) (*ControlCall, error) {
	call := &ControlCall{Name: ins.Name, Key: in.key(ctx, ins), Options: map[string]any{}}
	for _, a := range ins.Attrs {
		switch a.Kind {
		case HTMLAttr:
			v, err := in.value(ctx, a.Segments)
			if err != nil {
				return nil, err
			}
			call.Attrs = append(call.Attrs, Attr{Name: a.Name, Value: ToString(v)})
		case OptionAttr:
			v, err := in.value(ctx, a.Segments)
			if err != nil {
				return nil, err
			}
			if a.Name == "scope" {
				for _, k := range Keys(v) {
					call.Options[k] = property(v, k)
				}
				continue
			}
			call.Options[a.Name] = v
		case BindAttr:
			expr := in.desc.Expressions[a.Expr]
			env := ctx.Env(in.methods)
			v, err := in.eval(ctx, a.Expr)
			if err := in.contain(err); err != nil {
				return nil, err
			}
			call.Options[a.Name] = v
			b := &Binding{Update: func(value any) error {
				if expr.Assign == nil {
					return werrors.New("RUNTIME-0006", map[string]any{"Value": "undefined", "Property": a.Name})
				}
				return expr.Assign(env, value)
			}}
			if a.Binding != nil {
				b.BindingConfig = *a.Binding
			}
			call.Bindings = append(call.Bindings, b)
		case EventAttr:
			call.Events = append(call.Events, in.event(ctx, a))
		}
	}
	for _, opt := range ins.Options {
		v, err := in.option(ctx, opt)
		if err != nil {
			return nil, err
		}
		call.Options[opt.Name] = v
	}
	for _, ref := range ins.Contents {
		call.Options[ref.Name] = &ContentOption{Name: ref.Name, body: in.desc.Bodies[ref.Body], in: in, ctx: ctx}
	}
	return call, nil
}

func (in *interp) option(ctx *Context, opt *OptionSpec) (any, error) {
	switch opt.Type {
	case "Array":
		out := make([]any, 0, len(opt.Items))
		for _, item := range opt.Items {
			v, err := in.option(ctx, item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case "Object":
		out := map[string]any{}
		for _, prop := range opt.Properties {
			v, err := in.option(ctx, prop)
			if err != nil {
				return nil, err
			}
			out[prop.Name] = v
		}
		return out, nil
	}
	v, err := in.value(ctx, opt.Segments)
	if err != nil {
		return nil, err
	}
	switch opt.Type {
	case "String":
		return ToString(v), nil
	case "Number":
		return ToNumber(v), nil
	case "Boolean":
		if s, ok := v.(string); ok {
			return s == "true", nil
		}
		return Truthy(v), nil
	}
	return v, nil
}

// contents walks content option bodies during a dirty check. The content
// option's own name is not in scope there.
func (in *interp) contents(ctx *Context, ins *Instruction) error {
	for _, ref := range ins.Contents {
		child := ctx.Spawn("")
		child.Scope = ctx.Scope.Child()
		child.Scope.Poison(ref.Name)
		if _, err := in.body(child, in.desc.Bodies[ref.Body]); err != nil {
			return err
		}
	}
	return nil
}

func (in *interp) component(ctx *Context, ins *Instruction) ([]*VNode, error) {
	if ctx.Mode == InternalMode {
		in.collect(ctx, ins.Internal)
		return nil, in.contents(ctx, ins)
	}
	call, err := in.call(ctx, ins)
	if err != nil {
		return nil, err
	}
	nodes, err := ctx.Generator.CreateControl(ctx, call)
	if err != nil {
		return nil, in.contain(err)
	}
	return nodes, nil
}

func (in *interp) partial(ctx *Context, ins *Instruction) ([]*VNode, error) {
	if ctx.Mode == InternalMode {
		in.collect(ctx, ins.Internal)
		return nil, in.contents(ctx, ins)
	}
	call, err := in.call(ctx, ins)
	if err != nil {
		return nil, err
	}
	nodes, err := in.resolvePartial(ctx, ins, call)
	if err != nil {
		return nil, in.contain(err)
	}
	return nodes, nil
}

func (in *interp) resolvePartial(ctx *Context, ins *Instruction, call *ControlCall) ([]*VNode, error) {
	switch ins.Mode {
	case InlinePartial:
		tmpl, ok := in.module.template(ins.Name)
		if !ok {
			return nil, werrors.New("RUNTIME-0005", map[string]any{"Name": ins.Name})
		}
		child := ctx.Spawn("")
		child.Key = call.Key
		child.Scope = ctx.Scope.Child()
		for k, v := range call.Options {
			child.Scope.Define(k, v)
		}
		return in.body(child, tmpl.Body)
	case StaticPartial:
		return in.byName(ctx, ins.Name, call)
	}
	target, err := in.eval(ctx, ins.Target)
	if err != nil {
		return nil, err
	}
	switch t := target.(type) {
	case *ContentOption:
		return t.Invoke(call.Options)
	case *Template:
		return t.Render(ctx, call.Key, call.Options)
	case string:
		return in.byName(ctx, t, call)
	}
	return nil, werrors.New("RUNTIME-0005", map[string]any{"Name": ToString(target)})
}

func (in *interp) byName(ctx *Context, name string, call *ControlCall) ([]*VNode, error) {
	entry, ok := in.registry.Lookup(name)
	if !ok {
		return nil, werrors.New("RUNTIME-0005", map[string]any{"Name": name}).WithSuggestion(NormalizeName(name), in.registry.Names())
	}
	switch e := entry.(type) {
	case *Template:
		return e.Render(ctx, call.Key, call.Options)
	case Control:
		return e.Render(ctx, call)
	}
	return nil, werrors.New("RUNTIME-0005", map[string]any{"Name": name})
}

// template finds a ws:template function of the module.
func (t *Template) template(name string) (*Template, bool) {
	tmpl, ok := t.Templates[name]
	return tmpl, ok
}

func (in *interp) conditional(ctx *Context, ins *Instruction) ([]*VNode, error) {
	var ctrl Controller = StandardController{}
	if ctx.Mode == InternalMode {
		ctrl = InternalController{}
	}
	chain := NewChain(ctrl)
	for i, br := range ins.Branches {
		body := func() ([]*VNode, error) {
			in.collect(ctx, br.Internal)
			return in.list(ctx, br.Children)
		}
		var test TestFunc
		if br.Test != NoExpr {
			test = func() (any, error) {
				v, err := in.eval(ctx, br.Test)
				if err != nil && ctx.Mode == RenderMode {
					return false, in.contain(err)
				}
				return v, err
			}
		}
		var err error
		switch {
		case i == 0:
			err = chain.If(test, body)
		case test == nil:
			err = chain.Else(body)
		default:
			err = chain.Elif(test, body)
		}
		if err != nil {
			return nil, err
		}
	}
	return chain.Fi(nil)
}

func (in *interp) forLoop(ctx *Context, ins *Instruction) ([]*VNode, error) {
	internal := ctx.Mode == InternalMode
	loop := ctx.Spawn("")
	loop.Scope = ctx.Scope.Child()
	for _, name := range ins.Names {
		loop.Scope.Define(name, Undefined)
	}
	run := func(slot int) (any, error) {
		if slot == NoExpr {
			return true, nil
		}
		return in.eval(loop, slot)
	}

	var out []*VNode
	iterations := 0
	_, err := run(ins.Init)
	for err == nil {
		if iterations >= MaxLoopIterations {
			return nil, werrors.New("RUNTIME-0004", map[string]any{"Message": fmt.Sprintf("for loop exceeded %d iterations", MaxLoopIterations)})
		}
		var ok any
		if ok, err = run(ins.Test); err != nil || !Truthy(ok) {
			break
		}
		iter := loop.Spawn(strconv.Itoa(iterations))
		iter.Scope = loop.Scope.Child()
		in.collect(iter, ins.Internal)
		nodes, lerr := in.list(iter, ins.Children)
		if lerr != nil {
			return nil, lerr
		}
		out = append(out, nodes...)
		iterations++
		if internal {
			break
		}
		if ins.Update != NoExpr {
			_, err = run(ins.Update)
		}
	}
	if err != nil && !internal {
		if err := in.contain(err); err != nil {
			return nil, err
		}
	}
	if internal && iterations == 0 {
		return nil, in.poisoned(loop, ins, ins.Names)
	}
	return markLoop(out), nil
}

func (in *interp) foreach(ctx *Context, ins *Instruction) ([]*VNode, error) {
	internal := ctx.Mode == InternalMode
	coll, err := in.eval(ctx, ins.Collection)
	if err != nil {
		if !internal {
			return nil, in.contain(err)
		}
		coll = nil
	}
	var (
		out  []*VNode
		ran  bool
		lerr error
	)
	in.iterators.Each(coll, func(key, value any) bool {
		iter := ctx.Spawn(ToString(key))
		iter.Scope = ctx.Scope.Child()
		iter.Scope.Define(ins.Iterator, value)
		if ins.Index != "" {
			iter.Scope.Define(ins.Index, key)
		}
		in.collect(iter, ins.Internal)
		var nodes []*VNode
		nodes, lerr = in.list(iter, ins.Children)
		out = append(out, nodes...)
		ran = true
		return lerr == nil && !internal
	})
	if lerr != nil {
		return nil, lerr
	}
	if internal && !ran {
		names := []string{ins.Iterator}
		if ins.Index != "" {
			names = append(names, ins.Index)
		}
		return nil, in.poisoned(ctx, ins, names)
	}
	return markLoop(out), nil
}

// poisoned walks a loop body that had no iterations, so its internal
// expressions are still checked. The loop names are not in scope.
func (in *interp) poisoned(ctx *Context, ins *Instruction, names []string) error {
	child := ctx.Spawn("")
	child.Scope = ctx.Scope.Child()
	child.Scope.Poison(names...)
	in.collect(child, ins.Internal)
	_, err := in.list(child, ins.Children)
	return err
}
