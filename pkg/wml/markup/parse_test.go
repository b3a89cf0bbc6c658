package markup

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/textproc"
)

func mustParse(t *testing.T, source string) []Node {
	t.Helper()
	nodes, err := Parse(source, Options{})
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", source, err)
	}
	return nodes
}

func TestParseElement(t *testing.T) {
	nodes := mustParse(t, `<div class="box {{ kind }}" attr:title="t">Hi {{ name }}!</div>`)
	if len(nodes) != 1 {
		t.Fatalf("len(nodes) = %d, want 1", len(nodes))
	}
	div, ok := nodes[0].(*Element)
	if !ok {
		t.Fatalf("node = %T, want *Element", nodes[0])
	}
	if div.Name != "div" {
		t.Errorf("Name = %q, want div", div.Name)
	}
	if len(div.Attributes) != 2 {
		t.Fatalf("len(Attributes) = %d, want 2", len(div.Attributes))
	}
	class := div.Attributes[0]
	if class.Kind != PlainAttr || class.Name != "class" {
		t.Errorf("class attribute = %+v", class)
	}
	if got := textproc.Join(class.Segments); got != "box {{ kind }}" {
		t.Errorf("class segments = %q", got)
	}
	if div.Attributes[1].Kind != PrefixedAttr || div.Attributes[1].Name != "title" {
		t.Errorf("attr:title = %+v", div.Attributes[1])
	}
	text := div.Children[0].(*Text)
	if got := textproc.Join(text.Segments); got != "Hi {{ name }}!" {
		t.Errorf("text = %q", got)
	}
}

func TestExpressionsAreOpaqueToMarkup(t *testing.T) {
	nodes := mustParse(t, `<p title="{{ a > 1 ? '<b>' : 'x' }}">{{ a < b }}</p>`)
	p := nodes[0].(*Element)
	if got := p.Attributes[0].Raw; got != "{{ a > 1 ? '<b>' : 'x' }}" {
		t.Errorf("title raw = %q", got)
	}
	expr, ok := textproc.SingleExpression(p.Children[0].(*Text).Segments)
	if !ok || expr.Program.String() != "a < b" {
		t.Errorf("child expression = %v", expr)
	}
}

func TestKeys(t *testing.T) {
	nodes := mustParse(t, "<div>\n  <span/>\n  <b>x</b>\n</div>\n<i></i>")
	var keys []string
	Walk(nodes, func(n Node) bool {
		keys = append(keys, n.Base().Key)
		return true
	})
	want := []string{"0_", "0_0_", "0_1_", "0_1_0_", "1_"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestPositions(t *testing.T) {
	nodes := mustParse(t, "<div>\n  <span>{{\n a }}</span>\n  <b/>\n</div>")
	div := nodes[0].(*Element)
	span := div.Children[0].(*Element)
	b := div.Children[1].(*Element)
	if span.Line != 2 || span.Column != 3 {
		t.Errorf("span at %d:%d, want 2:3", span.Line, span.Column)
	}
	// the newline inside the expression still counts
	if b.Line != 4 || b.Column != 3 {
		t.Errorf("b at %d:%d, want 4:3", b.Line, b.Column)
	}
}

func TestIfElseChain(t *testing.T) {
	source := `<ws:if data="{{ a }}">A</ws:if>
<ws:else data="{{ b }}">B</ws:else>
<ws:else>C</ws:else>`
	nodes := mustParse(t, source)
	if len(nodes) != 1 {
		t.Fatalf("len(nodes) = %d, want 1", len(nodes))
	}
	ifNode := nodes[0].(*If)
	if ifNode.Test.String() != "a" {
		t.Errorf("if test = %q", ifNode.Test.String())
	}
	if ifNode.Else == nil || ifNode.Else.Test.String() != "b" {
		t.Fatalf("elif = %+v", ifNode.Else)
	}
	if ifNode.Else.Else == nil || ifNode.Else.Else.Test != nil {
		t.Errorf("else = %+v", ifNode.Else.Else)
	}
}

func TestForForms(t *testing.T) {
	nodes := mustParse(t, `<ws:for data="index, item in items">{{ item }}</ws:for><ws:for data="i = 0; i < 3; i++">{{ i }}</ws:for><ws:for data="row in {{ table.rows }}"></ws:for>`)
	each := nodes[0].(*Foreach)
	if each.Index != "index" || each.Iterator != "item" || each.Collection.String() != "items" {
		t.Errorf("foreach = %q, %q in %q", each.Index, each.Iterator, each.Collection.String())
	}
	if diff := cmp.Diff([]string{"index", "item"}, each.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}

	loop := nodes[1].(*For)
	if loop.Init.String() != "i = 0" || loop.Test.String() != "i < 3" || loop.Update.String() != "i++" {
		t.Errorf("for = %q; %q; %q", loop.Init, loop.Test, loop.Update)
	}
	if diff := cmp.Diff([]string{"i"}, loop.Names); diff != "" {
		t.Errorf("for Names mismatch (-want +got):\n%s", diff)
	}

	rows := nodes[2].(*Foreach)
	if rows.Index != "" || rows.Iterator != "row" || rows.Collection.String() != "table.rows" {
		t.Errorf("single-name foreach = %+v", rows)
	}
}

func TestComponent(t *testing.T) {
	source := `<Controls.Button caption="Save" bind:value="a.b.value" on:click="save(item)">
  <ws:icon><ws:String>gear</ws:String></ws:icon>
  <ws:footer><b>f</b></ws:footer>
  <span>body</span>
</Controls.Button>`
	nodes := mustParse(t, source)
	c, ok := nodes[0].(*Component)
	if !ok {
		t.Fatalf("node = %T, want *Component", nodes[0])
	}
	if c.Name != "Controls.Button" {
		t.Errorf("Name = %q", c.Name)
	}
	var kinds []AttrKind
	for _, a := range c.Attributes {
		kinds = append(kinds, a.Kind)
	}
	if diff := cmp.Diff([]AttrKind{PlainAttr, BindAttr, EventAttr}, kinds); diff != "" {
		t.Errorf("attribute kinds mismatch (-want +got):\n%s", diff)
	}
	if c.Attributes[1].Program.String() != "a.b.value" {
		t.Errorf("bind program = %q", c.Attributes[1].Program)
	}

	if len(c.Options) != 1 || c.Options[0].Name != "icon" || c.Options[0].Value.Type != StringValue {
		t.Fatalf("Options = %+v", c.Options)
	}
	if got := textproc.Join(c.Options[0].Value.Segments); got != "gear" {
		t.Errorf("icon = %q", got)
	}

	var names []string
	for _, co := range c.Contents {
		names = append(names, co.Name)
	}
	if diff := cmp.Diff([]string{"footer", "content"}, names); diff != "" {
		t.Errorf("content options mismatch (-want +got):\n%s", diff)
	}
}

func TestTypedObjectOption(t *testing.T) {
	source := `<Grid><ws:config><ws:Object><ws:size><ws:Number>3</ws:Number></ws:size><ws:tags><ws:Array><ws:String>a</ws:String><ws:String>b</ws:String></ws:Array></ws:tags></ws:Object></ws:config></Grid>`
	c := mustParse(t, source)[0].(*Component)
	obj := c.Options[0].Value
	if obj.Type != ObjectValue || len(obj.Properties) != 2 {
		t.Fatalf("config = %+v", obj)
	}
	if obj.Properties[0].Name != "size" || obj.Properties[0].Value.Type != NumberValue {
		t.Errorf("size = %+v", obj.Properties[0])
	}
	if tags := obj.Properties[1].Value; tags.Type != ArrayValue || len(tags.Items) != 2 {
		t.Errorf("tags = %+v", tags)
	}
}

func TestPartials(t *testing.T) {
	source := `<ws:template name="row"><td>{{ v }}</td></ws:template>
<ws:partial template="row" v="{{ 1 }}"/>
<ws:partial template="wml!Controls/Row"/>
<ws:partial template="{{ chosen }}"/>`
	nodes := mustParse(t, source)
	if tmpl := nodes[0].(*Template); tmpl.Name != "row" {
		t.Errorf("template name = %q", tmpl.Name)
	}
	want := []PartialKind{InlinePartial, StaticPartial, DynamicPartial}
	for i, kind := range want {
		p := nodes[i+1].(*Partial)
		if p.Kind != kind {
			t.Errorf("partial %d kind = %v, want %v", i, p.Kind, kind)
		}
	}
	if p := nodes[1].(*Partial); len(p.Attributes) != 1 || p.Attributes[0].Name != "v" {
		t.Errorf("inline partial attributes = %+v", p.Attributes)
	}
	if p := nodes[3].(*Partial); p.Expression.String() != "chosen" {
		t.Errorf("dynamic target = %q", p.Expression)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		source string
		code   string
	}{
		{"<div></span>", "MARKUP-0001"},
		{"<div><span></div>", "MARKUP-0002"},
		{"<div>", "MARKUP-0002"},
		{"<ws:if>x</ws:if>", "MARKUP-0003"},
		{"<ws:else>x</ws:else>", "MARKUP-0004"},
		{`<ws:if data="{{a}}"></ws:if><ws:else></ws:else><ws:else></ws:else>`, "MARKUP-0004"},
		{`<ws:for data="nonsense"></ws:for>`, "MARKUP-0005"},
		{`<ws:template></ws:template>`, "MARKUP-0003"},
		{`<ws:content>x</ws:content>`, "MARKUP-0007"},
		{`<Grid><ws:x><ws:Array>text</ws:Array></ws:x></Grid>`, "MARKUP-0008"},
		{`<p>{{ a b }}</p>`, "PARSE-0005"},
		{`<p>{{ a</p>`, "TEXT-0001"},
	}
	for _, tt := range tests {
		_, err := Parse(tt.source, Options{FileName: "t.wml"})
		if !werrors.HasCode(err, tt.code) {
			t.Errorf("Parse(%q) error = %v, want %s", tt.source, err, tt.code)
			continue
		}
		if werr, _ := werrors.As(err); werr.File != "t.wml" {
			t.Errorf("Parse(%q) error file = %q", tt.source, werr.File)
		}
	}
}

func TestTranslateText(t *testing.T) {
	nodes, err := Parse("<p> Hello world </p>", Options{TranslateText: true})
	if err != nil {
		t.Fatal(err)
	}
	segments := nodes[0].(*Element).Children[0].(*Text).Segments
	if !textproc.HasTranslations(segments) {
		t.Error("plain text should be promoted to a translation")
	}
}
