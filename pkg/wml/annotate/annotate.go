// Package annotate walks a markup tree, builds the lexical containers of the
// template and registers every expression in the container it belongs to.
package annotate

import (
	"github.com/sambeau/wml/pkg/wml/ast"
	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/internals"
	"github.com/sambeau/wml/pkg/wml/markup"
	"github.com/sambeau/wml/pkg/wml/parser"
	"github.com/sambeau/wml/pkg/wml/scope"
	"github.com/sambeau/wml/pkg/wml/textproc"
	"github.com/sambeau/wml/pkg/wml/walker"
)

// Options configure Process.
type Options struct {
	// Module names the template for translation keys.
	Module string
	Parser walker.Parser
}

// Result is the annotated forest and what the pass learned about it.
type Result struct {
	Nodes   []markup.Node
	Arena   *internals.Arena
	Storage *internals.Storage
	// ChildNames are the name="..." values of elements and components.
	ChildNames []string
	// ReactiveProps are the free identifiers of the root scope.
	ReactiveProps []string
	// Templates are the ws:template names in definition order.
	Templates []string
	// TemplateContainers maps a ws:template name to its container id.
	TemplateContainers map[string]int
	HasTranslations    bool
}

// Root returns the global container.
func (r *Result) Root() *internals.Container { return r.Arena.Root() }

type pendingAttach struct {
	partial *markup.Partial
	call    *internals.Container
	options []string
}

type annotator struct {
	opts      Options
	scope     *scope.Scope
	arena     *internals.Arena
	storage   *internals.Storage
	result    *Result
	attaches  []pendingAttach
	seenChild map[string]bool
}

// Process annotates nodes in place and returns the result.
func Process(nodes []markup.Node, sc *scope.Scope, opts Options) (*Result, error) {
	if opts.Parser == nil {
		opts.Parser = parser.Instance{}
	}
	storage := internals.NewStorage(opts.Parser)
	arena := internals.NewArena(storage)
	a := &annotator{
		opts:      opts,
		scope:     sc,
		arena:     arena,
		storage:   storage,
		seenChild: map[string]bool{},
		result: &Result{
			Nodes:              nodes,
			Arena:              arena,
			Storage:            storage,
			TemplateContainers: map[string]int{},
		},
	}

	if err := a.visitList(nodes, arena.Root()); err != nil {
		return nil, err
	}
	markRoots(nodes)

	for _, p := range a.attaches {
		id, ok := a.result.TemplateContainers[p.partial.Template]
		if !ok {
			return nil, werrors.NewWithPosition("CODEGEN-0003", p.partial.Line, p.partial.Column, map[string]any{
				"Name": p.partial.Template,
			}).WithSuggestion(p.partial.Template, a.result.Templates)
		}
		if err := p.call.Attach(arena.Get(id), p.options); err != nil {
			return nil, err
		}
	}

	a.result.ReactiveProps = arena.Root().Reactive()
	a.result.HasTranslations = sc.HasDetectedTranslations()
	return a.result, nil
}

func (a *annotator) visitList(nodes []markup.Node, c *internals.Container) error {
	for _, n := range nodes {
		if err := a.visit(n, c); err != nil {
			return err
		}
	}
	return nil
}

func (a *annotator) visit(node markup.Node, c *internals.Container) error {
	node.Base().Container = c.ID

	switch n := node.(type) {
	case *markup.Text:
		return a.segments(n.Segments, c, internals.Simple)

	case *markup.Element:
		if err := a.attributes(n.Attributes, c, false); err != nil {
			return err
		}
		return a.visitList(n.Children, c)

	case *markup.Component:
		a.scope.RegisterDependency(n.Name)
		call := c.Spawn(internals.Component)
		call.Name = n.Name
		n.Container = call.ID
		return a.callSite(n.Attributes, n.Options, n.Contents, call)

	case *markup.Partial:
		call := c.Spawn(internals.Component)
		call.Name = n.Template
		n.Container = call.ID
		switch n.Kind {
		case markup.DynamicPartial:
			n.Expression = a.storage.Intern(n.Expression)
			a.detect(n.Expression)
			if err := call.RegisterProgram(n.Expression, internals.Scope); err != nil {
				return a.locate(err, n.Line, n.Column)
			}
		case markup.StaticPartial:
			a.scope.RegisterDependency(n.Template)
		case markup.InlinePartial:
			a.attaches = append(a.attaches, pendingAttach{partial: n, call: call, options: passedOptions(n)})
		}
		return a.callSite(n.Attributes, n.Options, n.Contents, call)

	case *markup.Template:
		if err := a.scope.RegisterTemplate(n.Name, n); err != nil {
			return err
		}
		tmpl := c.Spawn(internals.Template)
		tmpl.Name = n.Name
		n.Container = tmpl.ID
		a.result.Templates = append(a.result.Templates, n.Name)
		a.result.TemplateContainers[n.Name] = tmpl.ID
		if err := a.visitList(n.Children, tmpl); err != nil {
			return err
		}
		markRoots(n.Children)
		return nil

	case *markup.If:
		n.Test = a.storage.Intern(n.Test)
		if err := a.program(n.Test, c, internals.Simple, n.Line, n.Column); err != nil {
			return err
		}
		branch := c.Spawn(internals.Conditional)
		n.Container = branch.ID
		if err := a.visitList(n.Children, branch); err != nil {
			return err
		}
		if n.Else != nil {
			return a.visit(n.Else, c)
		}
		return nil

	case *markup.Else:
		if n.Test != nil {
			n.Test = a.storage.Intern(n.Test)
			if err := a.program(n.Test, c, internals.Simple, n.Line, n.Column); err != nil {
				return err
			}
		}
		branch := c.Spawn(internals.Conditional)
		n.Container = branch.ID
		if err := a.visitList(n.Children, branch); err != nil {
			return err
		}
		if n.Else != nil {
			return a.visit(n.Else, c)
		}
		return nil

	case *markup.For:
		loop := c.Spawn(internals.Cycle)
		n.Container = loop.ID
		loop.AddIsolated(n.Names...)
		for _, p := range []**ast.Program{&n.Init, &n.Test, &n.Update} {
			if *p == nil {
				continue
			}
			*p = a.storage.Intern(*p)
			if err := a.program(*p, loop, internals.Iterator, n.Line, n.Column); err != nil {
				return err
			}
		}
		return a.visitList(n.Children, loop)

	case *markup.Foreach:
		loop := c.Spawn(internals.Cycle)
		n.Container = loop.ID
		loop.AddIsolated(n.Names()...)
		n.Collection = a.storage.Intern(n.Collection)
		if err := a.program(n.Collection, loop, internals.Iterator, n.Line, n.Column); err != nil {
			return err
		}
		return a.visitList(n.Children, loop)

	case *markup.ContentOption:
		return a.visitList(n.Children, c)
	}
	return nil
}

// callSite registers what a component or partial call passes.
func (a *annotator) callSite(attrs []*markup.Attribute, options []*markup.Option, contents []*markup.ContentOption, call *internals.Container) error {
	if err := a.attributes(attrs, call, true); err != nil {
		return err
	}
	for _, opt := range options {
		opt.Container = call.ID
		if err := a.value(&opt.Value, call); err != nil {
			return err
		}
	}
	for _, co := range contents {
		content := call.Spawn(internals.ContentOption)
		content.Name = co.Name
		content.AddIsolated(co.Name)
		co.Container = content.ID
		if err := a.visitList(co.Children, content); err != nil {
			return err
		}
		markRoots(co.Children)
	}
	return nil
}

func (a *annotator) value(v *markup.Value, c *internals.Container) error {
	if err := a.segments(v.Segments, c, internals.Option); err != nil {
		return err
	}
	for _, item := range v.Items {
		if err := a.value(item, c); err != nil {
			return err
		}
	}
	for _, prop := range v.Properties {
		prop.Container = c.ID
		if err := a.value(&prop.Value, c); err != nil {
			return err
		}
	}
	return nil
}

// attributes registers attribute expressions. On a call site plain values
// are options of the called component.
func (a *annotator) attributes(attrs []*markup.Attribute, c *internals.Container, callSite bool) error {
	for _, attr := range attrs {
		switch attr.Kind {
		case markup.BindAttr:
			attr.Program = a.storage.Intern(attr.Program)
			if err := a.program(attr.Program, c, internals.Bind, attr.Line, attr.Column); err != nil {
				return err
			}
		case markup.EventAttr:
			attr.Program = a.storage.Intern(attr.Program)
			if err := a.program(attr.Program, c, internals.Event, attr.Line, attr.Column); err != nil {
				return err
			}
		default:
			if attr.Name == "name" && textproc.IsStatic(attr.Segments) {
				a.childName(textproc.Join(attr.Segments))
			}
			typ := internals.Simple
			if callSite {
				typ = internals.Attribute
				if attr.Name == "scope" && attr.Kind == markup.PlainAttr {
					typ = internals.Scope
				}
			}
			if err := a.segments(attr.Segments, c, typ); err != nil {
				return a.locate(err, attr.Line, attr.Column)
			}
		}
	}
	return nil
}

func (a *annotator) childName(name string) {
	if name == "" || a.seenChild[name] {
		return
	}
	a.seenChild[name] = true
	a.result.ChildNames = append(a.result.ChildNames, name)
}

func (a *annotator) segments(segments []textproc.Data, c *internals.Container, typ internals.ProgramType) error {
	for _, seg := range segments {
		switch s := seg.(type) {
		case *textproc.Expression:
			s.Program = a.storage.Intern(s.Program)
			if err := a.program(s.Program, c, typ, 0, 0); err != nil {
				return err
			}
		case *textproc.Translation:
			a.scope.RegisterTranslation("text", a.opts.Module, s.Text, s.Context)
			a.scope.SetDetectedTranslation()
		}
	}
	return nil
}

func (a *annotator) program(p *ast.Program, c *internals.Container, typ internals.ProgramType, line, col int) error {
	a.detect(p)
	if err := c.RegisterProgram(p, typ); err != nil {
		return a.locate(err, line, col)
	}
	return nil
}

// detect flags translation use, including rk() inside control-flow tests.
func (a *annotator) detect(p *ast.Program) {
	if p != nil && walker.ContainsTranslationFunction(p) {
		a.scope.SetDetectedTranslation()
	}
}

func (a *annotator) locate(err error, line, col int) error {
	if werr, ok := werrors.As(err); ok && werr.Line == 0 && line > 0 {
		return werr.WithPosition(line, col)
	}
	return err
}

// passedOptions lists the names an inline partial call binds, leaving out
// pass-through options such as v="{{ v }}".
func passedOptions(p *markup.Partial) []string {
	var names []string
	for _, attr := range p.Attributes {
		if attr.Kind != markup.PlainAttr {
			continue
		}
		if expr, ok := textproc.SingleExpression(attr.Segments); ok {
			if id, ok := expr.Program.Single().(*ast.Identifier); ok && id.Name == attr.Name {
				continue
			}
		}
		names = append(names, attr.Name)
	}
	for _, opt := range p.Options {
		names = append(names, opt.Name)
	}
	for _, co := range p.Contents {
		names = append(names, co.Name)
	}
	return names
}

// markRoots flags the top-level nodes of a body. Control-flow constructs
// produce no markup of their own, so their children count as top level too.
func markRoots(nodes []markup.Node) {
	for _, n := range nodes {
		meta := n.Base()
		if meta.RootComponentNode {
			continue
		}
		meta.RootComponentNode = true
		switch v := n.(type) {
		case *markup.If:
			markRoots(v.Children)
			if v.Else != nil {
				markRoots([]markup.Node{v.Else})
			}
		case *markup.Else:
			markRoots(v.Children)
			if v.Else != nil {
				markRoots([]markup.Node{v.Else})
			}
		case *markup.For:
			markRoots(v.Children)
		case *markup.Foreach:
			markRoots(v.Children)
		}
	}
}
