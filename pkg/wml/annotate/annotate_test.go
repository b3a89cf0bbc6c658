package annotate

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/internals"
	"github.com/sambeau/wml/pkg/wml/markup"
	"github.com/sambeau/wml/pkg/wml/scope"
	"github.com/sambeau/wml/pkg/wml/textproc"
)

func annotate(t *testing.T, source string) (*Result, *scope.Scope) {
	t.Helper()
	nodes, err := markup.Parse(source, markup.Options{})
	if err != nil {
		t.Fatalf("markup.Parse error: %v", err)
	}
	sc := scope.New(nil)
	res, err := Process(nodes, sc, Options{Module: "wml!Test"})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	return res, sc
}

func TestForeachScenario(t *testing.T) {
	res, _ := annotate(t, `<ws:for data="index, item in items">{{ item }}</ws:for>`)

	if diff := cmp.Diff([]string{"items"}, res.ReactiveProps); diff != "" {
		t.Errorf("reactive props mismatch (-want +got):\n%s", diff)
	}
	loop := res.Nodes[0].(*markup.Foreach)
	c := res.Arena.Get(loop.Container)
	if c.Type != internals.Cycle {
		t.Fatalf("loop container type = %v", c.Type)
	}
	for _, name := range []string{"index", "item"} {
		if !c.IsIsolated(name) {
			t.Errorf("%s should be isolated in the loop container", name)
		}
	}
	if c.Parent != res.Root().ID {
		t.Errorf("loop parent = %d, want root", c.Parent)
	}
}

func TestTranslationDetectedInTest(t *testing.T) {
	res, _ := annotate(t, `<ws:if data="{{ rk('Hello') == greeting }}"><p/></ws:if>`)
	if !res.HasTranslations {
		t.Error("rk() in an if test should set HasTranslations")
	}

	res, sc := annotate(t, `<p>{[ menu@@Open ]}</p>`)
	if !res.HasTranslations {
		t.Error("a {[ ]} segment should set HasTranslations")
	}
	want := []scope.TranslationKey{{Type: "text", Module: "wml!Test", Text: "Open", Context: "menu"}}
	if diff := cmp.Diff(want, sc.TranslationKeys()); diff != "" {
		t.Errorf("translation keys mismatch (-want +got):\n%s", diff)
	}

	res, _ = annotate(t, `<p>{{ greeting }}</p>`)
	if res.HasTranslations {
		t.Error("plain expressions should not set HasTranslations")
	}
}

func TestSharedProgramsByText(t *testing.T) {
	res, _ := annotate(t, `<p title="{{ a.b }}">{{ a.b }}</p>`)
	p := res.Nodes[0].(*markup.Element)
	attrExpr, _ := textproc.SingleExpression(p.Attributes[0].Segments)
	textExpr, _ := textproc.SingleExpression(p.Children[0].(*markup.Text).Segments)
	if attrExpr.Program != textExpr.Program {
		t.Error("identical expressions should share one program")
	}
}

func TestComponentContainers(t *testing.T) {
	source := `<Controls.List caption="{{ title }}" bind:value="a.b.value" on:select="pick(id)">
  <ws:itemTemplate><span>{{ itemTemplate.item.name }} {{ suffix }}</span></ws:itemTemplate>
</Controls.List>`
	res, sc := annotate(t, source)

	comp := res.Nodes[0].(*markup.Component)
	call := res.Arena.Get(comp.Container)
	if call.Type != internals.Component {
		t.Fatalf("component container type = %v", call.Type)
	}
	var own []string
	for _, m := range call.InternalsMeta() {
		own = append(own, m.Program.String())
	}
	if diff := cmp.Diff([]string{"a.b", "a.b.value"}, own); diff != "" {
		t.Errorf("component internals mismatch (-want +got):\n%s", diff)
	}

	content := res.Arena.Get(comp.Contents[0].Container)
	if content.Type != internals.ContentOption || !content.IsIsolated("itemTemplate") {
		t.Errorf("content option container = %v isolated %v", content.Type, content.Isolated())
	}

	want := []string{"title", "a", "pick", "id", "suffix"}
	if diff := cmp.Diff(want, res.ReactiveProps); diff != "" {
		t.Errorf("reactive props mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Controls.List"}, sc.Dependencies()); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
}

func TestInlinePartialAttach(t *testing.T) {
	source := `<ws:template name="row"><td>{{ v }} {{ w }}</td></ws:template>
<ws:partial template="row" v="{{ value }}"/>`
	res, _ := annotate(t, source)

	if diff := cmp.Diff([]string{"row"}, res.Templates); diff != "" {
		t.Errorf("templates mismatch (-want +got):\n%s", diff)
	}
	// v is bound by the call, w still comes from outside
	if diff := cmp.Diff([]string{"value", "w"}, res.ReactiveProps); diff != "" {
		t.Errorf("reactive props mismatch (-want +got):\n%s", diff)
	}
}

func TestPassThroughOptionIsNotIsolated(t *testing.T) {
	source := `<ws:template name="row">{{ v }}</ws:template>
<ws:partial template="row" v="{{ v }}"/>`
	res, _ := annotate(t, source)
	if diff := cmp.Diff([]string{"v"}, res.ReactiveProps); diff != "" {
		t.Errorf("reactive props mismatch (-want +got):\n%s", diff)
	}
}

func TestTemplateIdentifiersReachRootThroughCalls(t *testing.T) {
	res, _ := annotate(t, `<ws:template name="t">{{ foo }}</ws:template>`)
	if len(res.ReactiveProps) != 0 {
		t.Errorf("uncalled template leaked %v into the root", res.ReactiveProps)
	}

	res, _ = annotate(t, `<ws:template name="t">{{ foo }}</ws:template><ws:partial template="t"/>`)
	if diff := cmp.Diff([]string{"foo"}, res.ReactiveProps); diff != "" {
		t.Errorf("reactive props mismatch (-want +got):\n%s", diff)
	}
}

func TestUndefinedInlineTemplate(t *testing.T) {
	nodes, err := markup.Parse(`<ws:template name="row"/><ws:partial template="rows"/>`, markup.Options{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = Process(nodes, scope.New(nil), Options{})
	werr, ok := werrors.As(err)
	if !ok || werr.Code != "CODEGEN-0003" {
		t.Fatalf("error = %v, want CODEGEN-0003", err)
	}
	if len(werr.Hints) == 0 {
		t.Error("expected a did-you-mean hint")
	}
}

func TestRootComponentNodes(t *testing.T) {
	source := `<div><span/></div>
<ws:if data="{{ a }}"><b/></ws:if>
<Button><ws:content><i><u/></i></ws:content></Button>`
	res, _ := annotate(t, source)

	div := res.Nodes[0].(*markup.Element)
	if !div.RootComponentNode || div.Children[0].Base().RootComponentNode {
		t.Error("only top-level nodes should be root component nodes")
	}
	ifNode := res.Nodes[1].(*markup.If)
	if !ifNode.Children[0].Base().RootComponentNode {
		t.Error("children of a top-level if are top level")
	}
	content := res.Nodes[2].(*markup.Component).Contents[0]
	i := content.Children[0].(*markup.Element)
	if !i.RootComponentNode || i.Children[0].Base().RootComponentNode {
		t.Error("content option bodies have their own top level")
	}
}

func TestChildNames(t *testing.T) {
	res, _ := annotate(t, `<div name="header"/><Button name="ok"/><div name="{{ dynamic }}"/><p name="header"/>`)
	if diff := cmp.Diff([]string{"header", "ok"}, res.ChildNames); diff != "" {
		t.Errorf("child names mismatch (-want +got):\n%s", diff)
	}
}

func TestDuplicateTemplate(t *testing.T) {
	nodes, err := markup.Parse(`<ws:template name="a"/><ws:template name="a"/>`, markup.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Process(nodes, scope.New(nil), Options{}); !werrors.HasCode(err, "MARKUP-0006") {
		t.Errorf("error = %v, want MARKUP-0006", err)
	}
}
