package runtime

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStringGeneratorJoin(t *testing.T) {
	g := &StringGenerator{}
	nodes := []*VNode{
		g.CreateTag("p", "0_", []Attr{{Name: "title", Value: `say "hi" & go`}}, nil, []*VNode{
			g.CreateText("<a&b>", "0_0_"),
			g.CreateRaw("<i>raw</i>", "0_1_"),
			g.CreateTag("br", "0_2_", nil, nil, nil),
		}),
		{Kind: ControlNode, Children: []*VNode{g.CreateText("inside", "1_0_")}},
	}
	out, err := g.Join(nodes)
	if err != nil {
		t.Fatal(err)
	}
	want := `<p title="say &#34;hi&#34; &amp; go">&lt;a&amp;b&gt;<i>raw</i><br></p>inside`
	if out != want {
		t.Errorf("Join = %s\nwant   %s", out, want)
	}
}

func TestStringGeneratorCompatible(t *testing.T) {
	g := &StringGenerator{Compatible: true}
	out, _ := g.Join([]*VNode{g.CreateTag("div", "0_", nil, nil, []*VNode{g.CreateText("x", "0_0_")})})
	if out != `<div key="0_">x</div>` {
		t.Errorf("Join = %s", out)
	}
}

func TestVDOMGenerator(t *testing.T) {
	g := VDOMGenerator{}
	call := &ControlCall{Name: "Controls/List", Key: "1_", Options: map[string]any{"a": 1.0}}
	nodes, err := g.CreateControl(nil, call)
	if err != nil {
		t.Fatal(err)
	}
	want := &VNode{Kind: ControlNode, Key: "1_", Control: "Controls/List", Options: map[string]any{"a": 1.0}}
	if diff := cmp.Diff(want, nodes[0]); diff != "" {
		t.Errorf("control node mismatch (-want +got):\n%s", diff)
	}
	out, _ := g.Join(nodes)
	if got, ok := out.([]*VNode); !ok || len(got) != 1 {
		t.Errorf("Join = %#v", out)
	}
}

type echoControl struct{}

func (echoControl) Render(ctx *Context, call *ControlCall) ([]*VNode, error) {
	return []*VNode{ctx.Generator.CreateText(ToString(call.Options["text"]), call.Key)}, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("wml!Controls/Echo", echoControl{})
	for _, name := range []string{"Controls/Echo", "Controls.Echo", "wml!Controls/Echo"} {
		if _, ok := r.Lookup(name); !ok {
			t.Errorf("Lookup(%q) missed", name)
		}
	}
	if diff := cmp.Diff([]string{"Controls/Echo"}, r.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	var nilRegistry *Registry
	if _, ok := nilRegistry.Lookup("x"); ok {
		t.Error("nil registry should find nothing")
	}
}

func TestStringGeneratorControl(t *testing.T) {
	r := NewRegistry()
	r.Register("Controls/Echo", echoControl{})
	g := &StringGenerator{Registry: r}
	ctx := &Context{Generator: g}
	nodes, err := g.CreateControl(ctx, &ControlCall{Name: "Controls.Echo", Options: map[string]any{"text": "<hi>"}})
	if err != nil {
		t.Fatal(err)
	}
	out, _ := g.Join(nodes)
	if out != "&lt;hi&gt;" {
		t.Errorf("control output = %s", out)
	}

	_, err = g.CreateControl(ctx, &ControlCall{Name: "Controls/Ecko"})
	if err == nil {
		t.Fatal("unknown control should fail")
	}
}

func TestVNodeHelpers(t *testing.T) {
	n := &VNode{Kind: ElementNode, Attrs: []Attr{{Name: "id", Value: "a"}}, Children: []*VNode{
		{Kind: TextNode, Text: "x"},
		{Kind: ElementNode, Children: []*VNode{{Kind: TextNode, Text: "y"}}},
	}}
	if v, ok := n.Attr("id"); !ok || v != "a" {
		t.Errorf("Attr(id) = %q, %v", v, ok)
	}
	if _, ok := n.Attr("class"); ok {
		t.Error("Attr(class) should be absent")
	}
	if got := n.TextContent(); got != "xy" {
		t.Errorf("TextContent = %q", got)
	}
	if ElementNode.String() != "element" || ControlNode.String() != "control" {
		t.Error("NodeKind names")
	}
}
