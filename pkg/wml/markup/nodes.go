// Package markup builds the template tree from markup source.
//
// The tree distinguishes plain HTML elements, components, content options,
// typed options and the ws: directives (if/else, for, template, partial).
// Text and attribute values are split into segments by textproc.
package markup

import (
	"github.com/sambeau/wml/pkg/wml/ast"
	"github.com/sambeau/wml/pkg/wml/textproc"
)

// Meta is shared by every node. The annotation pass fills the fields after
// Key, Line and Column.
type Meta struct {
	Key    string
	Line   int
	Column int

	// RootComponentNode marks a top-level node of its nearest component body.
	RootComponentNode bool
	// Container is the lexical container id, -1 when not annotated.
	Container int
	// Internal is the index into the internal ranges table, -1 when none.
	Internal int
}

func newMeta(line, column int) Meta {
	return Meta{Line: line, Column: column, Container: -1, Internal: -1}
}

// Node is any node of the markup tree.
type Node interface {
	Base() *Meta
}

func (m *Meta) Base() *Meta { return m }

// Text is character data split into segments.
type Text struct {
	Meta
	Segments []textproc.Data
}

// AttrKind tells how an attribute is consumed.
type AttrKind int

const (
	// PlainAttr is name="value": an HTML attribute on elements, an option on components.
	PlainAttr AttrKind = iota
	// PrefixedAttr is attr:name="value": always an HTML attribute.
	PrefixedAttr
	// BindAttr is bind:name="path": a two way binding.
	BindAttr
	// EventAttr is on:event="handler(args)".
	EventAttr
)

// Attribute is one attribute of an element, component or partial.
type Attribute struct {
	Name     string // without prefix
	Kind     AttrKind
	Raw      string
	Segments []textproc.Data // PlainAttr and PrefixedAttr
	Program  *ast.Program    // BindAttr and EventAttr
	Line     int
	Column   int
}

// Element is a plain HTML element.
type Element struct {
	Meta
	Name       string
	Attributes []*Attribute
	Children   []Node
	Void       bool
}

// Component is a reference to another template or control by module name.
type Component struct {
	Meta
	Name       string
	Attributes []*Attribute
	// Options are the typed <ws:name><ws:String>..</ws:String></ws:name> options.
	Options []*Option
	// Contents are the content options, including the implicit "content".
	Contents []*ContentOption
}

// PartialKind distinguishes the ways ws:partial resolves its template.
type PartialKind int

const (
	// InlinePartial calls a ws:template defined in the same file.
	InlinePartial PartialKind = iota
	// StaticPartial loads a module such as wml!Path/To/Template.
	StaticPartial
	// DynamicPartial evaluates an expression to find the template.
	DynamicPartial
)

func (k PartialKind) String() string {
	switch k {
	case InlinePartial:
		return "inline"
	case StaticPartial:
		return "static"
	default:
		return "dynamic"
	}
}

// Partial is a ws:partial call.
type Partial struct {
	Meta
	Kind       PartialKind
	Template   string       // inline name or static module path
	Expression *ast.Program // dynamic partial target
	Attributes []*Attribute
	Options    []*Option
	Contents   []*ContentOption
}

// Template is a ws:template definition.
type Template struct {
	Meta
	Name     string
	Children []Node
}

// ContentOption is a template passed to a component as an option.
type ContentOption struct {
	Meta
	Name     string
	Children []Node
}

// Option is a typed option value passed to a component.
type Option struct {
	Meta
	Name  string
	Value Value
}

// ValueType names the ws: typed value tags.
type ValueType string

const (
	StringValue  ValueType = "String"
	NumberValue  ValueType = "Number"
	BooleanValue ValueType = "Boolean"
	AnyValue     ValueType = "Value"
	ArrayValue   ValueType = "Array"
	ObjectValue  ValueType = "Object"
)

// Value is a typed option value. Scalar types carry Segments; Array carries
// Items; Object carries Properties.
type Value struct {
	Type       ValueType
	Segments   []textproc.Data
	Items      []*Value
	Properties []*Option
}

// If is ws:if.
type If struct {
	Meta
	Test     *ast.Program
	Children []Node
	Else     *Else
}

// Else is ws:else, optionally with its own test.
type Else struct {
	Meta
	Test     *ast.Program
	Children []Node
	Else     *Else
}

// For is ws:for data="init; test; update".
type For struct {
	Meta
	Init     *ast.Program
	Test     *ast.Program
	Update   *ast.Program
	Children []Node
	// Names are the identifiers the clauses assign.
	Names []string
}

// Foreach is ws:for data="index, item in collection".
type Foreach struct {
	Meta
	Index      string
	Iterator   string
	Collection *ast.Program
	Children   []Node
}

// Names returns the loop-bound identifiers.
func (f *Foreach) Names() []string {
	if f.Index == "" {
		return []string{f.Iterator}
	}
	return []string{f.Index, f.Iterator}
}

// ChildNodes returns the direct children of n that are markup nodes.
func ChildNodes(n Node) []Node {
	switch v := n.(type) {
	case *Element:
		return v.Children
	case *Template:
		return v.Children
	case *ContentOption:
		return v.Children
	case *If:
		return v.Children
	case *Else:
		return v.Children
	case *For:
		return v.Children
	case *Foreach:
		return v.Children
	}
	return nil
}

// Walk calls fn for n and every descendant in document order. Returning
// false from fn skips the node's descendants.
func Walk(nodes []Node, fn func(Node) bool) {
	for _, n := range nodes {
		if !fn(n) {
			continue
		}
		switch v := n.(type) {
		case *Component:
			for _, c := range v.Contents {
				Walk([]Node{c}, fn)
			}
		case *Partial:
			for _, c := range v.Contents {
				Walk([]Node{c}, fn)
			}
		case *If:
			Walk(v.Children, fn)
			if v.Else != nil {
				Walk([]Node{v.Else}, fn)
			}
		case *Else:
			Walk(v.Children, fn)
			if v.Else != nil {
				Walk([]Node{v.Else}, fn)
			}
		default:
			Walk(ChildNodes(n), fn)
		}
	}
}
