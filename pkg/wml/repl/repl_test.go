package repl

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sambeau/wml/pkg/wml/compiler"
	"github.com/sambeau/wml/pkg/wml/runtime"
)

func newSession(t *testing.T) (*Session, *bytes.Buffer) {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "Greeting.wml"), []byte(`<b>Hello {{ name }}</b>`), 0o644); err != nil {
		t.Fatal(err)
	}
	m := runtime.NewMethods()
	m.Decorators["upper"] = func(args []any) (any, error) {
		return strings.ToUpper(runtime.ToString(args[0])), nil
	}
	m.Decorators["trim"] = func(args []any) (any, error) {
		return strings.TrimSpace(runtime.ToString(args[0])), nil
	}
	var out bytes.Buffer
	return NewSession(compiler.New(compiler.Options{Root: root, Methods: m}), &out), &out
}

func TestEval(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"expression", `1 + 2`, "3\n"},
		{"decorator", `name|upper`, "ADA\n"},
		{"markup", `<p>{{ name }}</p>`, "<p>ada</p>\n"},
		{"escaped", `"<i>"`, "&lt;i&gt;\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, out := newSession(t)
			s.Command(context.Background(), `:set name "ada"`)
			out.Reset()
			s.Eval(context.Background(), tt.input)
			if got := out.String(); got != tt.want {
				t.Errorf("Eval(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEvalErrors(t *testing.T) {
	s, out := newSession(t)
	s.Eval(context.Background(), `a +`)
	if !strings.HasPrefix(out.String(), "Syntax error") {
		t.Errorf("output = %q", out.String())
	}
}

func TestVDOMMode(t *testing.T) {
	s, out := newSession(t)
	ctx := context.Background()
	s.Command(ctx, ":vdom")
	out.Reset()
	s.Eval(ctx, `<p class="a">hi</p>`)
	got := out.String()
	if !strings.HasPrefix(got, `<p> class="a"`) || !strings.Contains(got, "\n  text \"hi\"") {
		t.Errorf("vdom output = %q", got)
	}
}

func TestCommands(t *testing.T) {
	s, out := newSession(t)
	ctx := context.Background()

	s.Command(ctx, `:set items [1, 2]`)
	s.Command(ctx, `:set name Ada Lovelace`)
	out.Reset()
	s.Command(ctx, ":data")
	want := "  items = [1,2]\n  name = \"Ada Lovelace\"\n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf(":data mismatch (-want +got):\n%s", diff)
	}

	out.Reset()
	s.Command(ctx, ":load Greeting")
	if got := out.String(); got != "<b>Hello Ada Lovelace</b>\n" {
		t.Errorf(":load = %q", got)
	}

	s.Command(ctx, ":unset items")
	s.Command(ctx, ":clear")
	out.Reset()
	s.Command(ctx, ":data")
	if got := out.String(); got != "(no data)\n" {
		t.Errorf("after :clear = %q", got)
	}

	out.Reset()
	s.Command(ctx, ":nope")
	if !strings.HasPrefix(out.String(), "Unknown command: :nope") {
		t.Errorf("unknown = %q", out.String())
	}
}

func TestSource(t *testing.T) {
	tests := []struct{ in, want string }{
		{"a + b", "{{ a + b }}"},
		{"  x ", "{{ x }}"},
		{"<p/>", "<p/>"},
	}
	for _, tt := range tests {
		if got := Source(tt.in); got != tt.want {
			t.Errorf("Source(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNeedsMoreInput(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"", false},
		{"a + b", false},
		{"{{ a", true},
		{"{{ f(a, }}", true},
		{`{{ "}}" }}`, false},
		{"<div>", true},
		{"<div><p>x</p>", true},
		{"<div><p>x</p></div>", false},
		{"<br>", false},
		{"<Controls.Title/>", false},
		{`<a title="x>y">`, true},
		{"<p", true},
		{"<!-- c -->", false},
		{"{{ a < b }}", false},
	}
	for _, tt := range tests {
		if got := needsMoreInput(tt.input); got != tt.want {
			t.Errorf("needsMoreInput(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestComplete(t *testing.T) {
	s, _ := newSession(t)
	if _, err := s.compiler.Load(context.Background(), "Greeting"); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"name ", nil},
		{"{{ name|u", []string{"{{ name|upper"}},
		{"{{ name|", []string{"{{ name|trim", "{{ name|upper"}},
		{"<Gr", []string{"<Greeting"}},
		{"<ws:i", []string{"<ws:if"}},
		{"{{ tr", []string{"{{ true"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, s.complete(tt.line)); diff != "" {
			t.Errorf("complete(%q) mismatch (-want +got):\n%s", tt.line, diff)
		}
	}
}
