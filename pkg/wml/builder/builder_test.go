package builder

import (
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sambeau/wml/pkg/wml/annotate"
	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/markup"
	"github.com/sambeau/wml/pkg/wml/runtime"
	"github.com/sambeau/wml/pkg/wml/scope"
)

func build(t *testing.T, source string, opts Options) *runtime.Description {
	t.Helper()
	desc, err := tryBuild(source, opts)
	if err != nil {
		t.Fatalf("build %q: %v", source, err)
	}
	return desc
}

func tryBuild(source string, opts Options) (*runtime.Description, error) {
	nodes, err := markup.Parse(source, markup.Options{})
	if err != nil {
		return nil, err
	}
	if opts.Module == "" {
		opts.Module = "wml!Test"
	}
	sc := scope.New(nil)
	res, err := annotate.Process(nodes, sc, annotate.Options{Module: opts.Module})
	if err != nil {
		return nil, err
	}
	return Build(res, sc, opts)
}

func template(t *testing.T, source string) *runtime.Template {
	t.Helper()
	tmpl, err := runtime.New(build(t, source, Options{}), nil)
	if err != nil {
		t.Fatalf("runtime.New: %v", err)
	}
	return tmpl
}

func render(t *testing.T, tmpl *runtime.Template, data any, config *runtime.GeneratorConfig) string {
	t.Helper()
	out, err := tmpl.RenderString(data, config)
	if err != nil {
		t.Fatalf("RenderString: %v", err)
	}
	return out
}

func slotOf(t *testing.T, desc *runtime.Description, source string) int {
	t.Helper()
	for i, e := range desc.Expressions {
		if e != nil && e.Source == source {
			return i
		}
	}
	t.Fatalf("no expression %q in table", source)
	return -1
}

func TestForeachRender(t *testing.T) {
	source := `<ws:for data="index, item in items"><li>{{ item }}</li></ws:for>`
	desc := build(t, source, Options{})
	if diff := cmp.Diff([]string{"items"}, desc.ReactiveProps); diff != "" {
		t.Errorf("reactive props mismatch (-want +got):\n%s", diff)
	}
	tmpl, err := runtime.New(desc, nil)
	if err != nil {
		t.Fatal(err)
	}
	got := render(t, tmpl, map[string]any{"items": []any{"x", "y"}}, nil)
	if got != "<li>x</li><li>y</li>" {
		t.Errorf("render = %q", got)
	}
	if got := render(t, tmpl, map[string]any{"items": []any{}}, nil); got != "" {
		t.Errorf("empty collection rendered %q", got)
	}
}

func TestConstantFolding(t *testing.T) {
	desc := build(t, `<p>{{ 1 + 2 }}</p>`, Options{})
	text := desc.Root().Children[0].Children[0]
	want := []runtime.Segment{{Kind: runtime.ValueSegment, Value: 3.0}}
	if diff := cmp.Diff(want, text.Segments); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
	if len(desc.Expressions) != 0 {
		t.Errorf("folded expression left %d table entries", len(desc.Expressions))
	}
	wantSource := `G.tpl(null, function(d, a, c){ return G.j([G.h("p", "0_", {}, [G.t(3, "0_0_")])]); })`
	if got := desc.Root().Source; got != wantSource {
		t.Errorf("source = %s\nwant     %s", got, wantSource)
	}

	desc = build(t, `<p>{{ 1 + 2 }}</p>`, Options{NoFold: true})
	seg := desc.Root().Children[0].Children[0].Segments[0]
	if seg.Kind != runtime.ExprSegment {
		t.Errorf("NoFold segment kind = %v", seg.Kind)
	}
	tmpl, _ := runtime.New(desc, nil)
	if got := render(t, tmpl, nil, nil); got != "<p>3</p>" {
		t.Errorf("render = %q", got)
	}
}

func TestCompositeConstantsStayCompiled(t *testing.T) {
	desc := build(t, `<p>{{ [1, 2] }}</p>`, Options{})
	if seg := desc.Root().Children[0].Children[0].Segments[0]; seg.Kind != runtime.ExprSegment {
		t.Errorf("array literal segment kind = %v, want expression", seg.Kind)
	}
}

func TestIfElse(t *testing.T) {
	tmpl := template(t, `<ws:if data="{{ n > 1 }}">big</ws:if><ws:else data="{{ n == 1 }}">one</ws:else><ws:else>small</ws:else>`)
	tests := []struct {
		n    float64
		want string
	}{
		{2, "big"},
		{1, "one"},
		{0, "small"},
	}
	for _, tt := range tests {
		if got := render(t, tmpl, map[string]any{"n": tt.n}, nil); got != tt.want {
			t.Errorf("n=%v: render = %q, want %q", tt.n, got, tt.want)
		}
	}
	br := tmpl.Body.Children[0].Branches
	if len(br) != 3 || br[2].Test != runtime.NoExpr {
		t.Fatalf("branches = %+v", br)
	}
	if !strings.Contains(tmpl.Body.Source, ".ei(E[") || !strings.Contains(tmpl.Body.Source, `.el([G.t("small", `) || !strings.Contains(tmpl.Body.Source, ".fi()") {
		t.Errorf("source = %s", tmpl.Body.Source)
	}
}

var aliasCall = regexp.MustCompile(`\b([MG])\.(\w+)\(`)

func TestCompiledOutputUsesAliases(t *testing.T) {
	source := `<ws:template name="row"><td>{{ v|upper }}</td></ws:template>
<p title="{[ Hello ]}">{{ rk('Bye') }} {{ this.x }} {{ debug() }}</p>
<ws:if data="{{ n > 1 }}">big</ws:if><ws:else data="{{ n == 1 }}">one</ws:else><ws:else>small</ws:else>
<ws:for data="index, item in items"><ws:partial template="row" v="{{ item }}"/></ws:for>
<ws:for data="i = 0; i < 3; i++">{{ i }}</ws:for>
<ws:partial template="{{ tpl }}"/>
<Controls.Input bind:value="form.name" on:change="list.pick(item)">
	<ws:header><b>{{ context.theme }}</b></ws:header>
</Controls.Input>`
	desc := build(t, source, Options{})

	var texts []string
	for _, body := range desc.Bodies {
		texts = append(texts, body.Source)
	}
	for _, e := range desc.Expressions {
		texts = append(texts, e.Body)
	}
	seen := map[string]bool{}
	for _, text := range texts {
		for _, m := range aliasCall.FindAllStringSubmatch(text, -1) {
			table := runtime.MethodAliases
			if m[1] == "G" {
				table = runtime.GeneratorAliases
			}
			if _, ok := table[m[2]]; !ok {
				t.Errorf("%s calls %s.%s, which is not an alias", text, m[1], m[2])
			}
			seen[m[1]+"."+m[2]] = true
		}
	}
	for _, want := range []string{"G.tpl", "G.j", "G.h", "G.c", "G.p", "G.if", "G.f", "G.fe", "G.v", "G.sc", "M.g", "M.d", "M.rk", "M.dg", "M.c2"} {
		if !seen[want] {
			t.Errorf("no call to %s in compiled output", want)
		}
	}
}

func TestTemplateBodies(t *testing.T) {
	source := `<ws:template name="row"><b>{{ label }}</b></ws:template><ws:partial template="row" label="{{ who }}"/>`
	desc := build(t, source, Options{})
	if diff := cmp.Diff([]string{"row"}, desc.TemplateNames()); diff != "" {
		t.Errorf("template names mismatch (-want +got):\n%s", diff)
	}
	row, ok := desc.Template("row")
	if !ok || !strings.HasPrefix(row.Source, `G.tpl("row", `) {
		t.Fatalf("row body = %+v", row)
	}
	tmpl, err := runtime.New(desc, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := render(t, tmpl, map[string]any{"who": "W"}, nil); got != "<b>W</b>" {
		t.Errorf("render = %q", got)
	}
}

func TestComponents(t *testing.T) {
	registry := runtime.NewRegistry()
	registry.Register("wml!Controls/Title", template(t, `<b>{{ title }}</b>`))
	registry.Register("Controls/Box", template(t, `<div><ws:partial template="{{ content }}"/></div>`))
	config := &runtime.GeneratorConfig{Registry: registry}

	tests := []struct {
		name   string
		source string
		data   map[string]any
		want   string
	}{
		{"option", `<Controls.Title title="{{ name }}"/>`, map[string]any{"name": "Hi"}, "<b>Hi</b>"},
		{"content", `<Controls.Box><i>{{ who }}</i></Controls.Box>`, map[string]any{"who": "W"}, "<div><i>W</i></div>"},
		{"typed option", `<Controls.Title><ws:title><ws:String>T{{ n }}</ws:String></ws:title></Controls.Title>`, map[string]any{"n": 1.0}, "<b>T1</b>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := render(t, template(t, tt.source), tt.data, config); got != tt.want {
				t.Errorf("render = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestComponentDependencies(t *testing.T) {
	desc := build(t, `<Controls.Title title="x"/><ws:partial template="wml!Controls/Box"/>`, Options{})
	if len(desc.Dependencies) != 2 {
		t.Errorf("dependencies = %v", desc.Dependencies)
	}
}

func TestUnknownComponent(t *testing.T) {
	tmpl := template(t, `<Controls.Missing/>`)
	_, err := tmpl.RenderString(nil, &runtime.GeneratorConfig{Registry: runtime.NewRegistry()})
	if !werrors.HasCode(err, "RUNTIME-0005") {
		t.Errorf("err = %v, want RUNTIME-0005", err)
	}
}

func TestBindAttribute(t *testing.T) {
	desc := build(t, `<Controls.Input bind:value="form.name"/>`, Options{})
	tmpl, err := runtime.New(desc, nil)
	if err != nil {
		t.Fatal(err)
	}
	form := map[string]any{"name": "Ann"}
	nodes, err := tmpl.RenderVDOM(map[string]any{"form": form}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 1 || nodes[0].Kind != runtime.ControlNode {
		t.Fatalf("nodes = %+v", nodes)
	}
	ctrl := nodes[0]
	if ctrl.Options["value"] != "Ann" {
		t.Errorf("value option = %v", ctrl.Options["value"])
	}
	if len(ctrl.Bindings) != 1 {
		t.Fatalf("bindings = %+v", ctrl.Bindings)
	}
	want := runtime.BindingConfig{
		FieldName:    "value",
		FullPropName: "form.name",
		PropPath:     []string{"name"},
		OneWay:       true,
		Direction:    "fromContext",
	}
	if diff := cmp.Diff(want, ctrl.Bindings[0].BindingConfig); diff != "" {
		t.Errorf("binding mismatch (-want +got):\n%s", diff)
	}
	if err := ctrl.Bindings[0].Update("Bob"); err != nil {
		t.Fatal(err)
	}
	if form["name"] != "Bob" {
		t.Errorf("form.name = %v after update", form["name"])
	}
}

func TestBindDecoratorOption(t *testing.T) {
	desc := build(t, `<Controls.Input value="{{ form.name|bind }}"/>`, Options{})
	attr := desc.Root().Children[0].Attrs[0]
	if attr.Kind != runtime.BindAttr || attr.Binding == nil || attr.Binding.OneWay {
		t.Errorf("attr = %+v", attr)
	}
}

type picker struct{ got []any }

func (p *picker) Pick(args ...any) { p.got = args }

func TestEventHandler(t *testing.T) {
	desc := build(t, `<button on:click="pick(item, 2)">go</button>`, Options{})
	entry := desc.Expressions[desc.Root().Children[0].Attrs[0].Expr]
	if !entry.Event || entry.Handler == nil || entry.Handler.Name != "pick" {
		t.Fatalf("entry = %+v", entry)
	}
	tmpl, _ := runtime.New(desc, nil)
	vc := &picker{}
	nodes, err := tmpl.RenderVDOM(map[string]any{"item": "x"}, &runtime.GeneratorConfig{ViewController: vc})
	if err != nil {
		t.Fatal(err)
	}
	events := nodes[0].Events
	if len(events) != 1 || events[0].Name != "click" {
		t.Fatalf("events = %+v", events)
	}
	if _, err := events[0].Fire("evt"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{"evt", "x", 2.0}, vc.got); diff != "" {
		t.Errorf("handler args mismatch (-want +got):\n%s", diff)
	}
}

func TestDirtyCheck(t *testing.T) {
	desc := build(t, `<p>{{ a }}</p><ws:if data="{{ b }}"><i>{{ c }}</i></ws:if>`, Options{})
	tmpl, _ := runtime.New(desc, nil)
	got := tmpl.DirtyCheck(map[string]any{"a": 1.0, "b": false, "c": "x"})
	want := map[int]any{
		slotOf(t, desc, "a"): 1.0,
		slotOf(t, desc, "b"): false,
		slotOf(t, desc, "c"): "x",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("dirty check mismatch (-want +got):\n%s", diff)
	}
	if desc.Root().Internal < 0 {
		t.Error("root should reference its internals")
	}
}

func TestDirtyCheckEmptyLoop(t *testing.T) {
	desc := build(t, `<ws:for data="item in items">{{ item.name }}{{ title }}</ws:for>`, Options{})
	tmpl, _ := runtime.New(desc, nil)
	got := tmpl.DirtyCheck(map[string]any{"items": []any{}, "title": "T"})
	if v := got[slotOf(t, desc, "item.name")]; v != runtime.Unreachable {
		t.Errorf("item.name = %v, want unreachable", v)
	}
	if v := got[slotOf(t, desc, "title")]; v != "T" {
		t.Errorf("title = %v", v)
	}
}

func TestSymbolsInterned(t *testing.T) {
	desc := build(t, `<p>{{ x == 'a' ? 'a' : 'b' }}</p>`, Options{})
	if diff := cmp.Diff([]string{"a", "b"}, desc.Symbols); diff != "" {
		t.Errorf("symbols mismatch (-want +got):\n%s", diff)
	}
	entry := desc.Expressions[0]
	if !strings.Contains(entry.Body, "S[0]") || !strings.Contains(entry.Body, "S[1]") {
		t.Errorf("body = %s", entry.Body)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		opts   Options
		code   string
	}{
		{"event literal", `<button on:click="{{ 1 + 2 }}"/>`, Options{}, "EVENT-0002"},
		{"bind expression", `<Controls.Input bind:value="a + b"/>`, Options{}, "BIND-0001"},
		{"unknown decorator", `<p>{{ x|nope }}</p>`, Options{Decorators: []string{"trim"}}, "CODEGEN-0002"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tryBuild(tt.source, tt.opts)
			if !werrors.HasCode(err, tt.code) {
				t.Fatalf("err = %v, want %s", err, tt.code)
			}
			if werr, _ := werrors.As(err); werr.Line == 0 {
				t.Errorf("error has no position: %v", err)
			}
		})
	}
}
