package runtime

import (
	"fmt"
	"io"
	"strings"
)

// NodeKind tags a VNode.
type NodeKind int

const (
	TextNode NodeKind = iota
	ElementNode
	ControlNode
)

func (k NodeKind) String() string {
	switch k {
	case TextNode:
		return "text"
	case ElementNode:
		return "element"
	default:
		return "control"
	}
}

// Attr is one rendered attribute. Attribute order is source order.
type Attr struct {
	Name  string
	Value string
}

// Event is an event subscription on a rendered node.
type Event struct {
	Name    string
	Handler string
	// Fire invokes the handler with the event arguments followed by the
	// arguments written in the template.
	Fire func(args ...any) (any, error)
}

// BindingConfig describes a two-way or one-way binding between a parent
// value and a component option.
type BindingConfig struct {
	FieldName    string   `json:"fieldName"`
	FullPropName string   `json:"fullPropName"`
	PropPath     []string `json:"propPath"`
	OneWay       bool     `json:"oneWay"`
	Direction    string   `json:"direction"`
	HasDefault   bool     `json:"hasDefault"`
}

// Binding is a BindingConfig ready to apply: Update writes a value back
// through the bound path of the parent scope.
type Binding struct {
	BindingConfig
	Update func(value any) error
}

// VNode is one node of rendered output.
type VNode struct {
	Kind     NodeKind
	Key      string
	Tag      string
	Text     string
	Raw      bool
	Attrs    []Attr
	Events   []*Event
	Children []*VNode
	// Control nodes carry the component name, its options and bindings.
	Control  string
	Options  map[string]any
	Bindings []*Binding
	// Loop marks nodes produced by a for or foreach body.
	Loop bool
}

// Attr returns the value of the named attribute.
func (n *VNode) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// TextContent concatenates the text of n and its descendants.
func (n *VNode) TextContent() string {
	if n.Kind == TextNode {
		return n.Text
	}
	var s string
	for _, c := range n.Children {
		s += c.TextContent()
	}
	return s
}

// markLoop flags nodes as loop-produced.
func markLoop(nodes []*VNode) []*VNode {
	for _, n := range nodes {
		n.Loop = true
	}
	return nodes
}

// DumpNodes writes nodes as an indented tree, one node per line.
func DumpNodes(out io.Writer, nodes []*VNode) {
	dumpNodes(out, nodes, 0)
}

func dumpNodes(out io.Writer, nodes []*VNode, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		switch n.Kind {
		case TextNode:
			fmt.Fprintf(out, "%stext %q", indent, n.Text)
			if n.Raw {
				io.WriteString(out, " raw")
			}
		case ElementNode:
			fmt.Fprintf(out, "%s<%s>", indent, n.Tag)
			for _, a := range n.Attrs {
				fmt.Fprintf(out, " %s=%q", a.Name, a.Value)
			}
			for _, e := range n.Events {
				fmt.Fprintf(out, " on:%s=%s", e.Name, e.Handler)
			}
		default:
			fmt.Fprintf(out, "%scontrol %s", indent, n.Control)
		}
		if n.Key != "" {
			fmt.Fprintf(out, " key=%s", n.Key)
		}
		io.WriteString(out, "\n")
		dumpNodes(out, n.Children, depth+1)
	}
}
