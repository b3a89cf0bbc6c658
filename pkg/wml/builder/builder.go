// Package builder turns an annotated markup tree into an executable
// template description.
//
// Every expression that survives constant folding is compiled once into
// the shared expression table; instructions reference it by slot. The
// dirty-check set of each scope container is stored as slot ranges.
package builder

import (
	"github.com/sambeau/wml/pkg/wml/annotate"
	"github.com/sambeau/wml/pkg/wml/ast"
	"github.com/sambeau/wml/pkg/wml/codegen"
	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/internals"
	"github.com/sambeau/wml/pkg/wml/markup"
	"github.com/sambeau/wml/pkg/wml/runtime"
	"github.com/sambeau/wml/pkg/wml/scope"
	"github.com/sambeau/wml/pkg/wml/textproc"
)

// Options configure Build.
type Options struct {
	// Module is the module name of the template, such as wml!Controls/List.
	Module string
	// Decorators are the known decorator names. nil skips the check.
	Decorators []string
	// NoFold keeps constant expressions in the expression table.
	NoFold bool
}

type slotKind int

const (
	valueSlot slotKind = iota
	forcedSlot
	bindSlot
	eventSlot
)

type builder struct {
	opts    Options
	res     *annotate.Result
	storage *internals.Storage
	desc    *runtime.Description

	expr  *codegen.ExpressionGenerator
	bind  *codegen.BindGenerator
	event *codegen.EventGenerator
	syms  *codegen.Symbols

	internal map[int]int
}

// Build compiles res into a description. sc supplies the dependencies and
// translation keys collected during annotation.
func Build(res *annotate.Result, sc *scope.Scope, opts Options) (*runtime.Description, error) {
	syms := codegen.NewSymbols()
	genOpts := codegen.Options{Symbols: syms, Decorators: opts.Decorators}
	b := &builder{
		opts:    opts,
		res:     res,
		storage: res.Storage,
		desc: &runtime.Description{
			Version:       runtime.DescriptionVersion,
			Module:        opts.Module,
			ReactiveProps: res.ReactiveProps,
			ChildNames:    res.ChildNames,
		},
		expr:     codegen.NewExpressionGenerator(genOpts),
		bind:     codegen.NewBindGenerator(genOpts),
		event:    codegen.NewEventGenerator(genOpts),
		syms:     syms,
		internal: map[int]int{},
	}

	root := &runtime.Body{Kind: runtime.RootBody}
	b.desc.Bodies = append(b.desc.Bodies, root)
	children, err := b.list(res.Nodes)
	if err != nil {
		return nil, err
	}
	root.Children = children
	root.Internal = b.internals(res.Root().ID)

	// internals can allocate slots for programs no instruction references
	for i, p := range b.storage.Table() {
		b.grow(i)
		if b.desc.Expressions[i] == nil {
			if _, err := b.compile(p, valueSlot, ""); err != nil {
				return nil, err
			}
		}
	}

	if sc != nil {
		b.desc.Dependencies = sc.Dependencies()
		for _, k := range sc.TranslationKeys() {
			b.desc.TranslationKeys = append(b.desc.TranslationKeys, runtime.TranslationKey{Text: k.Text, Context: k.Context})
		}
	}
	b.desc.Symbols = syms.Values()
	for _, body := range b.desc.Bodies {
		body.Source = Disassemble(body)
	}
	return b.desc, nil
}

func (b *builder) grow(slot int) {
	for len(b.desc.Expressions) <= slot {
		b.desc.Expressions = append(b.desc.Expressions, nil)
	}
}

// compile gives p a table slot and compiles the closures kind needs. A
// program used in several roles carries all of their closures.
func (b *builder) compile(p *ast.Program, kind slotKind, field string) (int, error) {
	slot := b.storage.Allocate(p)
	b.grow(slot)
	entry := b.desc.Expressions[slot]
	if entry == nil {
		entry = &runtime.Expression{Source: p.String()}
		b.desc.Expressions[slot] = entry
	}

	switch kind {
	case bindSlot:
		if entry.Bind {
			return slot, nil
		}
		frag, err := b.bind.Generate(p, field)
		if err != nil {
			return 0, err
		}
		entry.Bind = true
		entry.Assign = frag.Assign
		if entry.Eval == nil {
			entry.Body, entry.Flags, entry.Eval = frag.Source(), uint16(frag.Flags), frag.Eval
		}
		return slot, nil
	case eventSlot:
		if entry.Event {
			return slot, nil
		}
		frag, err := b.event.Generate(p)
		if err != nil {
			return 0, err
		}
		entry.Event = true
		entry.Handler = frag.Handler
		if entry.Eval == nil {
			value, err := b.expr.Generate(p, "", false)
			if err != nil {
				return 0, err
			}
			entry.Body, entry.Flags, entry.Eval = frag.Source(), uint16(frag.Flags), value.Eval
		}
		return slot, nil
	}

	if entry.Eval != nil {
		return slot, nil
	}
	frag, err := b.expr.Generate(p, field, kind == forcedSlot)
	if err != nil {
		return 0, err
	}
	entry.Body, entry.Flags, entry.Eval = frag.Source(), uint16(frag.Flags), frag.Eval
	if frag.Binding != nil {
		entry.Bind = true
		entry.Assign = frag.Assign
	}
	return slot, nil
}

// internals returns the Internals index of a container, adding its ranges
// on first use. -1 means the container checks nothing.
func (b *builder) internals(id int) int {
	if idx, ok := b.internal[id]; ok {
		return idx
	}
	c := b.res.Arena.Get(id)
	if c == nil {
		return -1
	}
	slots := internals.Indices(c.InternalsMeta())
	idx := -1
	if len(slots) > 0 {
		idx = len(b.desc.Internals)
		b.desc.Internals = append(b.desc.Internals, internals.Ranges(slots))
	}
	b.internal[id] = idx
	return idx
}

func (b *builder) list(nodes []markup.Node) ([]*runtime.Instruction, error) {
	var out []*runtime.Instruction
	for _, n := range nodes {
		ins, err := b.node(n)
		if err != nil {
			return nil, err
		}
		if ins != nil {
			out = append(out, ins)
		}
	}
	return out, nil
}

func (b *builder) node(n markup.Node) (*runtime.Instruction, error) {
	meta := n.Base()
	ins, err := b.instruction(n)
	if err != nil {
		if werr, ok := werrors.As(err); ok && werr.Line == 0 && meta.Line > 0 {
			return nil, werr.WithPosition(meta.Line, meta.Column)
		}
		return nil, err
	}
	return ins, nil
}

func (b *builder) instruction(n markup.Node) (*runtime.Instruction, error) {
	switch v := n.(type) {
	case *markup.Text:
		segs, err := b.segments(v.Segments, "")
		if err != nil {
			return nil, err
		}
		return &runtime.Instruction{Op: runtime.OpText, Key: v.Key, Segments: segs, Internal: -1}, nil

	case *markup.Element:
		attrs, err := b.attributes(v.Attributes, false)
		if err != nil {
			return nil, err
		}
		children, err := b.list(v.Children)
		if err != nil {
			return nil, err
		}
		return &runtime.Instruction{Op: runtime.OpElement, Key: v.Key, Name: v.Name, Attrs: attrs, Children: children, Void: v.Void, Internal: -1}, nil

	case *markup.Component:
		ins := &runtime.Instruction{Op: runtime.OpComponent, Key: v.Key, Name: v.Name}
		return ins, b.call(ins, v.Attributes, v.Options, v.Contents, v.Container)

	case *markup.Partial:
		ins := &runtime.Instruction{Op: runtime.OpPartial, Key: v.Key, Name: v.Template, Target: runtime.NoExpr}
		switch v.Kind {
		case markup.InlinePartial:
			ins.Mode = runtime.InlinePartial
		case markup.StaticPartial:
			ins.Mode = runtime.StaticPartial
		default:
			ins.Mode = runtime.DynamicPartial
			slot, err := b.compile(v.Expression, forcedSlot, "")
			if err != nil {
				return nil, err
			}
			ins.Target = slot
		}
		return ins, b.call(ins, v.Attributes, v.Options, v.Contents, v.Container)

	case *markup.Template:
		children, err := b.list(v.Children)
		if err != nil {
			return nil, err
		}
		b.desc.Bodies = append(b.desc.Bodies, &runtime.Body{
			Kind:     runtime.TemplateBody,
			Name:     v.Name,
			Children: children,
			Internal: b.internals(v.Container),
		})
		return nil, nil

	case *markup.If:
		return b.conditional(v)

	case *markup.For:
		ins := &runtime.Instruction{Op: runtime.OpFor, Key: v.Key, Names: v.Names, Init: runtime.NoExpr, Test: runtime.NoExpr, Update: runtime.NoExpr}
		for _, clause := range []struct {
			p    *ast.Program
			slot *int
		}{{v.Init, &ins.Init}, {v.Test, &ins.Test}, {v.Update, &ins.Update}} {
			if clause.p == nil {
				continue
			}
			slot, err := b.compile(clause.p, forcedSlot, "")
			if err != nil {
				return nil, err
			}
			*clause.slot = slot
		}
		children, err := b.list(v.Children)
		if err != nil {
			return nil, err
		}
		ins.Children = children
		ins.Internal = b.internals(v.Container)
		return ins, nil

	case *markup.Foreach:
		slot, err := b.compile(v.Collection, forcedSlot, "")
		if err != nil {
			return nil, err
		}
		children, err := b.list(v.Children)
		if err != nil {
			return nil, err
		}
		return &runtime.Instruction{
			Op:         runtime.OpForeach,
			Key:        v.Key,
			Collection: slot,
			Index:      v.Index,
			Iterator:   v.Iterator,
			Children:   children,
			Internal:   b.internals(v.Container),
		}, nil
	}
	return nil, werrors.New("CODEGEN-0001", map[string]any{"Type": nodeName(n)})
}

func nodeName(n markup.Node) string {
	switch n.(type) {
	case *markup.Else:
		return "ws:else"
	case *markup.ContentOption:
		return "content option"
	case *markup.Option:
		return "option"
	}
	return "unknown"
}

func (b *builder) conditional(v *markup.If) (*runtime.Instruction, error) {
	ins := &runtime.Instruction{Op: runtime.OpIf, Key: v.Key, Internal: -1}
	add := func(test *ast.Program, children []markup.Node, container int) error {
		br := &runtime.Branch{Test: runtime.NoExpr}
		if test != nil {
			slot, err := b.compile(test, forcedSlot, "")
			if err != nil {
				return err
			}
			br.Test = slot
		}
		list, err := b.list(children)
		if err != nil {
			return err
		}
		br.Children = list
		br.Internal = b.internals(container)
		ins.Branches = append(ins.Branches, br)
		return nil
	}
	if err := add(v.Test, v.Children, v.Container); err != nil {
		return nil, err
	}
	for e := v.Else; e != nil; e = e.Else {
		if err := add(e.Test, e.Children, e.Container); err != nil {
			return nil, err
		}
	}
	return ins, nil
}

// call fills the options, bindings, events and content bodies of a
// component or partial call.
func (b *builder) call(ins *runtime.Instruction, attrs []*markup.Attribute, options []*markup.Option, contents []*markup.ContentOption, container int) error {
	specs, err := b.attributes(attrs, true)
	if err != nil {
		return err
	}
	ins.Attrs = specs
	for _, opt := range options {
		spec, err := b.option(opt.Name, &opt.Value)
		if err != nil {
			return err
		}
		ins.Options = append(ins.Options, spec)
	}
	for _, co := range contents {
		children, err := b.list(co.Children)
		if err != nil {
			return err
		}
		body := &runtime.Body{
			Kind:     runtime.ContentBody,
			Name:     co.Name,
			Children: children,
			Internal: b.internals(co.Container),
		}
		ins.Contents = append(ins.Contents, runtime.ContentRef{Name: co.Name, Body: len(b.desc.Bodies)})
		b.desc.Bodies = append(b.desc.Bodies, body)
	}
	ins.Internal = b.internals(container)
	return nil
}

func (b *builder) option(name string, v *markup.Value) (*runtime.OptionSpec, error) {
	spec := &runtime.OptionSpec{Name: name, Type: string(v.Type)}
	segs, err := b.segments(v.Segments, name)
	if err != nil {
		return nil, err
	}
	spec.Segments = segs
	for _, item := range v.Items {
		s, err := b.option("", item)
		if err != nil {
			return nil, err
		}
		spec.Items = append(spec.Items, s)
	}
	for _, prop := range v.Properties {
		s, err := b.option(prop.Name, &prop.Value)
		if err != nil {
			return nil, err
		}
		spec.Properties = append(spec.Properties, s)
	}
	return spec, nil
}

func (b *builder) attributes(attrs []*markup.Attribute, callSite bool) ([]*runtime.AttrSpec, error) {
	var out []*runtime.AttrSpec
	for _, a := range attrs {
		spec, err := b.attribute(a, callSite)
		if err != nil {
			if werr, ok := werrors.As(err); ok && werr.Line == 0 && a.Line > 0 {
				return nil, werr.WithPosition(a.Line, a.Column)
			}
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

func (b *builder) attribute(a *markup.Attribute, callSite bool) (*runtime.AttrSpec, error) {
	switch a.Kind {
	case markup.BindAttr:
		slot, err := b.compile(a.Program, bindSlot, a.Name)
		if err != nil {
			return nil, err
		}
		frag, err := b.bind.Generate(a.Program, a.Name)
		if err != nil {
			return nil, err
		}
		return &runtime.AttrSpec{Name: a.Name, Kind: runtime.BindAttr, Expr: slot, Binding: frag.Binding}, nil
	case markup.EventAttr:
		slot, err := b.compile(a.Program, eventSlot, "")
		if err != nil {
			return nil, err
		}
		return &runtime.AttrSpec{Name: a.Name, Kind: runtime.EventAttr, Expr: slot}, nil
	}

	kind := runtime.HTMLAttr
	if callSite && a.Kind == markup.PlainAttr {
		kind = runtime.OptionAttr
		// name="{{ x|bind }}" passes a binding instead of a value
		if expr, ok := textproc.SingleExpression(a.Segments); ok {
			frag, err := b.expr.Generate(expr.Program, a.Name, false)
			if err != nil {
				return nil, err
			}
			if frag.Binding != nil {
				slot, err := b.compile(expr.Program, valueSlot, a.Name)
				if err != nil {
					return nil, err
				}
				return &runtime.AttrSpec{Name: a.Name, Kind: runtime.BindAttr, Expr: slot, Binding: frag.Binding}, nil
			}
		}
	}
	segs, err := b.segments(a.Segments, a.Name)
	if err != nil {
		return nil, err
	}
	return &runtime.AttrSpec{Name: a.Name, Kind: kind, Segments: segs}, nil
}

// segments converts text segments. Constant expressions are folded into
// value segments.
func (b *builder) segments(in []textproc.Data, field string) ([]runtime.Segment, error) {
	out := make([]runtime.Segment, 0, len(in))
	for _, d := range in {
		switch s := d.(type) {
		case *textproc.Text:
			out = append(out, runtime.Segment{Kind: runtime.TextSegment, Text: s.Value})
		case *textproc.Translation:
			out = append(out, runtime.Segment{Kind: runtime.TranslationSegment, Text: s.Text, Context: s.Context})
		case *textproc.Expression:
			seg, err := b.expression(s.Program, field)
			if err != nil {
				return nil, err
			}
			out = append(out, seg)
		}
	}
	return out, nil
}

func (b *builder) expression(p *ast.Program, field string) (runtime.Segment, error) {
	frag, err := b.expr.Generate(p, field, false)
	if err != nil {
		return runtime.Segment{}, err
	}
	if frag.Constant && !b.opts.NoFold {
		v, err := frag.Eval(&runtime.Env{})
		if err == nil && foldable(v) {
			return runtime.Segment{Kind: runtime.ValueSegment, Value: v}, nil
		}
	}
	slot, err := b.compile(p, valueSlot, field)
	if err != nil {
		return runtime.Segment{}, err
	}
	return runtime.Segment{Kind: runtime.ExprSegment, Expr: slot, Unsafe: frag.Flags.Has(codegen.UnsafeHTML)}, nil
}

// foldable values survive the JSON round trip unchanged.
func foldable(v any) bool {
	switch v.(type) {
	case nil, string, float64, bool:
		return true
	}
	return false
}
