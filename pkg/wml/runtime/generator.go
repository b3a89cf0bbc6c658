package runtime

import (
	"sort"
	"strings"
	"sync"

	werrors "github.com/sambeau/wml/pkg/wml/errors"
)

// ControlCall is everything a component call passes to the component.
type ControlCall struct {
	Name     string
	Key      string
	Options  map[string]any
	Attrs    []Attr
	Bindings []*Binding
	Events   []*Event
}

// Generator builds output nodes. VDOM keeps components as control nodes;
// String renders them inline and joins everything into HTML.
type Generator interface {
	Name() string
	CreateText(text, key string) *VNode
	CreateRaw(html RawHTML, key string) *VNode
	CreateTag(tag, key string, attrs []Attr, events []*Event, children []*VNode) *VNode
	CreateControl(ctx *Context, call *ControlCall) ([]*VNode, error)
	Join(nodes []*VNode) (any, error)
}

// GeneratorAliases maps the short names used in compiled bodies to
// generator and interpreter primitives.
var GeneratorAliases = map[string]string{
	"e":   "Escape",
	"t":   "CreateText",
	"r":   "CreateRaw",
	"h":   "CreateTag",
	"c":   "CreateControl",
	"p":   "Partial",
	"tpl": "Template",
	"i":   "Inline",
	"sc":  "Scope",
	"v":   "Expression",
	"co":  "ContentOption",
	"if":  "If",
	"ei":  "Elif",
	"el":  "Else",
	"fi":  "Fi",
	"f":   "For",
	"fe":  "Foreach",
	"j":   "Join",
}

// VDOMGenerator produces VNode trees.
type VDOMGenerator struct{}

func (VDOMGenerator) Name() string { return "vdom" }

func (VDOMGenerator) CreateText(text, key string) *VNode {
	return &VNode{Kind: TextNode, Key: key, Text: text}
}

func (VDOMGenerator) CreateRaw(html RawHTML, key string) *VNode {
	return &VNode{Kind: TextNode, Key: key, Text: string(html), Raw: true}
}

func (VDOMGenerator) CreateTag(tag, key string, attrs []Attr, events []*Event, children []*VNode) *VNode {
	return &VNode{Kind: ElementNode, Key: key, Tag: tag, Attrs: attrs, Events: events, Children: children}
}

func (VDOMGenerator) CreateControl(ctx *Context, call *ControlCall) ([]*VNode, error) {
	return []*VNode{{
		Kind:     ControlNode,
		Key:      call.Key,
		Control:  call.Name,
		Options:  call.Options,
		Attrs:    call.Attrs,
		Bindings: call.Bindings,
		Events:   call.Events,
	}}, nil
}

func (VDOMGenerator) Join(nodes []*VNode) (any, error) { return nodes, nil }

// Control is a component implemented in Go.
type Control interface {
	Render(ctx *Context, call *ControlCall) ([]*VNode, error)
}

// StringGenerator renders HTML. Components are looked up in the registry
// and rendered in place.
type StringGenerator struct {
	Registry *Registry
	// Compatible adds key attributes to elements.
	Compatible bool
}

func (g *StringGenerator) Name() string { return "string" }

func (g *StringGenerator) CreateText(text, key string) *VNode {
	return &VNode{Kind: TextNode, Key: key, Text: text}
}

func (g *StringGenerator) CreateRaw(html RawHTML, key string) *VNode {
	return &VNode{Kind: TextNode, Key: key, Text: string(html), Raw: true}
}

func (g *StringGenerator) CreateTag(tag, key string, attrs []Attr, events []*Event, children []*VNode) *VNode {
	return &VNode{Kind: ElementNode, Key: key, Tag: tag, Attrs: attrs, Children: children}
}

func (g *StringGenerator) CreateControl(ctx *Context, call *ControlCall) ([]*VNode, error) {
	entry, ok := g.Registry.Lookup(call.Name)
	if !ok {
		return nil, werrors.New("RUNTIME-0005", map[string]any{"Name": call.Name}).WithSuggestion(call.Name, g.Registry.Names())
	}
	switch c := entry.(type) {
	case *Template:
		return c.Render(ctx, call.Key, call.Options)
	case Control:
		return c.Render(ctx, call)
	}
	return nil, werrors.New("RUNTIME-0005", map[string]any{"Name": call.Name})
}

func (g *StringGenerator) Join(nodes []*VNode) (any, error) {
	var b strings.Builder
	for _, n := range nodes {
		g.write(&b, n)
	}
	return b.String(), nil
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

func (g *StringGenerator) write(b *strings.Builder, n *VNode) {
	switch n.Kind {
	case TextNode:
		if n.Raw {
			b.WriteString(n.Text)
		} else {
			b.WriteString(escaper.Escape(n.Text))
		}
	case ElementNode:
		b.WriteByte('<')
		b.WriteString(n.Tag)
		for _, a := range n.Attrs {
			b.WriteByte(' ')
			b.WriteString(a.Name)
			b.WriteString(`="`)
			b.WriteString(escaper.Escape(a.Value))
			b.WriteByte('"')
		}
		if g.Compatible && n.Key != "" {
			b.WriteString(` key="`)
			b.WriteString(escaper.Escape(n.Key))
			b.WriteByte('"')
		}
		b.WriteByte('>')
		if voidElements[n.Tag] {
			return
		}
		for _, c := range n.Children {
			g.write(b, c)
		}
		b.WriteString("</")
		b.WriteString(n.Tag)
		b.WriteByte('>')
	case ControlNode:
		for _, c := range n.Children {
			g.write(b, c)
		}
	}
}

var escaper = &Methods{}

// Registry maps component names to templates or Go controls. Names are
// normalized so wml!Controls/List, Controls/List and Controls.List are one
// entry.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]any
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]any{}}
}

// NormalizeName strips the wml! plugin prefix and uses / as separator.
func NormalizeName(name string) string {
	name = strings.TrimPrefix(name, "wml!")
	return strings.ReplaceAll(name, ".", "/")
}

// Register adds a *Template or Control under name.
func (r *Registry) Register(name string, entry any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[NormalizeName(name)] = entry
}

// Lookup finds an entry.
func (r *Registry) Lookup(name string) (any, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[NormalizeName(name)]
	return e, ok
}

// Names lists registered names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
