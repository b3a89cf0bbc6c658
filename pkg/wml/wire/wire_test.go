package wire

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sambeau/wml/pkg/wml/annotate"
	"github.com/sambeau/wml/pkg/wml/builder"
	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/markup"
	"github.com/sambeau/wml/pkg/wml/runtime"
	"github.com/sambeau/wml/pkg/wml/scope"
)

func compile(t *testing.T, source string) *runtime.Description {
	t.Helper()
	nodes, err := markup.Parse(source, markup.Options{})
	if err != nil {
		t.Fatal(err)
	}
	sc := scope.New(nil)
	res, err := annotate.Process(nodes, sc, annotate.Options{Module: "wml!Wire"})
	if err != nil {
		t.Fatal(err)
	}
	d, err := builder.Build(res, sc, builder.Options{Module: "wml!Wire"})
	if err != nil {
		t.Fatal(err)
	}
	return d
}

const page = `<ul><ws:for data="i, item in items"><li class="{{ i % 2 ? 'odd' : 'even' }}">{{ item.name|upper }}</li></ws:for></ul>` +
	`<ws:if data="{{ !items.length }}"><p>empty</p></ws:if>`

func methods() *runtime.Methods {
	m := runtime.NewMethods()
	m.Decorators["upper"] = func(args []any) (any, error) {
		return strings.ToUpper(runtime.ToString(args[0])), nil
	}
	return m
}

func TestRoundTripRenders(t *testing.T) {
	d := compile(t, page)
	data, err := Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	back, err := Unmarshal(data, Options{})
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	input := map[string]any{"items": []any{
		map[string]any{"name": "a"},
		map[string]any{"name": "b"},
	}}
	render := func(d *runtime.Description) string {
		tmpl, err := runtime.New(d, methods())
		if err != nil {
			t.Fatal(err)
		}
		out, err := tmpl.RenderString(input, nil)
		if err != nil {
			t.Fatal(err)
		}
		return out
	}
	want := `<ul><li class="even">A</li><li class="odd">B</li></ul>`
	if got := render(d); got != want {
		t.Errorf("original render = %q", got)
	}
	if got := render(back); got != want {
		t.Errorf("decoded render = %q, want %q", got, want)
	}
	if diff := cmp.Diff(d.Internals, back.Internals); diff != "" {
		t.Errorf("internals mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTripClosures(t *testing.T) {
	d := compile(t, `<Controls.Input bind:value="form.name" on:change="save(form)"/>`)
	data, _ := Marshal(d)
	back, err := Unmarshal(data, Options{})
	if err != nil {
		t.Fatal(err)
	}
	var bind, event *runtime.Expression
	for _, e := range back.Expressions {
		if e.Bind {
			bind = e
		}
		if e.Event {
			event = e
		}
	}
	if bind == nil || bind.Assign == nil || bind.Eval == nil {
		t.Fatalf("bind entry = %+v", bind)
	}
	if event == nil || event.Handler == nil || event.Handler.Name != "save" || len(event.Handler.Args) != 1 {
		t.Fatalf("event entry = %+v", event)
	}

	form := map[string]any{"name": "a"}
	env := &runtime.Env{Scope: runtime.NewScope(map[string]any{"form": form}), Methods: runtime.NewMethods()}
	if err := bind.Assign(env, "b"); err != nil {
		t.Fatal(err)
	}
	if form["name"] != "b" {
		t.Errorf("form.name = %v", form["name"])
	}
}

func TestVersionMismatch(t *testing.T) {
	d := compile(t, `<p>{{ x }}</p>`)
	d.Version = 1
	data, _ := Marshal(d)
	_, err := Unmarshal(data, Options{})
	if !werrors.HasCode(err, "WIRE-0002") {
		t.Errorf("err = %v, want WIRE-0002", err)
	}
}

func TestMalformed(t *testing.T) {
	good := compile(t, `<p>{{ x }}</p>`)
	tests := []struct {
		name   string
		mutate func(d *runtime.Description)
		code   string
	}{
		{"slot out of range", func(d *runtime.Description) { d.Expressions = nil }, "WIRE-0001"},
		{"bad source", func(d *runtime.Description) { d.Expressions[0].Source = "a +" }, "WIRE-0001"},
		{"no root", func(d *runtime.Description) { d.Bodies[0].Kind = runtime.TemplateBody }, "CODEGEN-0004"},
		{"internals", func(d *runtime.Description) { d.Bodies[0].Internal = 9 }, "WIRE-0001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, _ := Marshal(good)
			var d runtime.Description
			if err := json.Unmarshal(data, &d); err != nil {
				t.Fatal(err)
			}
			tt.mutate(&d)
			data, _ = Marshal(&d)
			if _, err := Unmarshal(data, Options{}); !werrors.HasCode(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}

	if _, err := Unmarshal([]byte("{"), Options{}); !werrors.HasCode(err, "WIRE-0001") {
		t.Errorf("invalid JSON: err = %v", err)
	}
}

func TestUnknownDecoratorOnLoad(t *testing.T) {
	d := compile(t, page)
	data, _ := Marshal(d)
	_, err := Unmarshal(data, Options{Decorators: []string{"lower"}})
	if !werrors.HasCode(err, "CODEGEN-0002") {
		t.Errorf("err = %v, want CODEGEN-0002", err)
	}
}

func TestTemplateLine(t *testing.T) {
	d := compile(t, `<ws:template name="row"><b>{{ label }}</b></ws:template><ws:partial template="row" label="x"/>`)
	module, err := runtime.New(d, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Template.MarshalJSON writes the line as a JSON string
	quoted, err := json.Marshal(module.Templates["row"])
	if err != nil {
		t.Fatal(err)
	}
	line, err := MarshalLine(d, 1)
	if err != nil {
		t.Fatal(err)
	}

	for name, data := range map[string][]byte{"quoted": quoted, "plain": []byte(line)} {
		t.Run(name, func(t *testing.T) {
			tmpl, err := Load(data, nil, Options{})
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if tmpl.Name != "row" || tmpl.IsModule {
				t.Fatalf("loaded %q, module %v", tmpl.Name, tmpl.IsModule)
			}
			out, err := tmpl.Invoke(map[string]any{"label": "L"}, nil, nil, false, nil, false, nil, "throw")
			if err != nil {
				t.Fatal(err)
			}
			if out != "<b>L</b>" {
				t.Errorf("render = %q", out)
			}
		})
	}

	if _, _, err := UnmarshalLine("CONTENT_OPTION,x,{}", Options{}); !werrors.HasCode(err, "WIRE-0001") {
		t.Errorf("bad index: err = %v", err)
	}
	if _, _, err := UnmarshalLine(`CONTENT_OPTION,7,`+string(mustMarshal(t, d)), Options{}); !werrors.HasCode(err, "WIRE-0001") {
		t.Errorf("index out of range: err = %v", err)
	}
}

func TestLoadModule(t *testing.T) {
	d := compile(t, `<p>{{ x }}</p>`)
	tmpl, err := Load(mustMarshal(t, d), nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	out, err := tmpl.RenderString(map[string]any{"x": "y"}, nil)
	if err != nil || out != "<p>y</p>" {
		t.Errorf("render = %q, %v", out, err)
	}
}

func mustMarshal(t *testing.T, d *runtime.Description) []byte {
	t.Helper()
	data, err := Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	return data
}
