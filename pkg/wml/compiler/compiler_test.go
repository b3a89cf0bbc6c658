package compiler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/runtime"
	"github.com/sambeau/wml/pkg/wml/store"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func methods() *runtime.Methods {
	m := runtime.NewMethods()
	m.Decorators["upper"] = func(args []any) (any, error) {
		return strings.ToUpper(runtime.ToString(args[0])), nil
	}
	return m
}

var site = map[string]string{
	"Page.wml":           `<Controls.Title text="{{ title }}"/><p>{{ body|upper }}</p>`,
	"Controls/Title.wml": `<h1>{{ text }}</h1>`,
	"Loop/A.wml":         `<Loop.B/>`,
	"Loop/B.wml":         `<Loop.A/>`,
	"Broken.wml":         `<p>{{ a + }}</p>`,
	"Uses/Missing.wml":   `<Nowhere.Thing/>`,
}

func newCompiler(t *testing.T, opts Options) *Compiler {
	t.Helper()
	if opts.Root == "" {
		opts.Root = t.TempDir()
		writeFiles(t, opts.Root, site)
	}
	if opts.Methods == nil {
		opts.Methods = methods()
	}
	return New(opts)
}

func renderPage(t *testing.T, c *Compiler, tmpl *runtime.Template) string {
	t.Helper()
	out, err := tmpl.RenderString(map[string]any{"title": "Hi", "body": "text"}, &runtime.GeneratorConfig{Registry: c.Registry()})
	if err != nil {
		t.Fatalf("RenderString: %v", err)
	}
	return out
}

func TestLoadCompilesDependencies(t *testing.T) {
	c := newCompiler(t, Options{})
	tmpl, err := c.Load(context.Background(), "wml!Page")
	if err != nil {
		t.Fatal(err)
	}
	if got := renderPage(t, c, tmpl); got != "<h1>Hi</h1><p>TEXT</p>" {
		t.Errorf("render = %q", got)
	}
	if diff := cmp.Diff([]string{"Controls/Title", "Page"}, c.Registry().Names()); diff != "" {
		t.Errorf("registry mismatch (-want +got):\n%s", diff)
	}

	again, _ := c.Load(context.Background(), "Page")
	if again != tmpl {
		t.Error("second load should come from the cache")
	}
}

func TestLoadSeesChanges(t *testing.T) {
	c := newCompiler(t, Options{})
	ctx := context.Background()
	first, err := c.Load(ctx, "Controls/Title")
	if err != nil {
		t.Fatal(err)
	}
	writeFiles(t, c.opts.Root, map[string]string{"Controls/Title.wml": `<h2>{{ text }}</h2>`})
	second, err := c.Load(ctx, "Controls.Title")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("changed source should be recompiled")
	}
	out, _ := second.RenderString(map[string]any{"text": "x"}, nil)
	if out != "<h2>x</h2>" {
		t.Errorf("render = %q", out)
	}
}

func TestLoadErrors(t *testing.T) {
	c := newCompiler(t, Options{})
	ctx := context.Background()
	tests := []struct {
		module string
		code   string
	}{
		{"wml!Nope", "COMPILE-0001"},
		{"wml!Loop/A", "DEP-0001"},
		{"wml!Broken", "PARSE-0001"},
		{"wml!Uses/Missing", "DEP-0001"},
	}
	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			_, err := c.Load(ctx, tt.module)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.code == "PARSE-0001" {
				if werr, ok := werrors.As(err); !ok || werr.Class != werrors.ClassParse {
					t.Errorf("err = %v, want a parse error", err)
				}
				return
			}
			if !strings.Contains(err.Error(), tt.code) && !werrors.HasCode(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}

	_, err := c.Load(ctx, "wml!Loop/A")
	if !strings.Contains(err.Error(), "circular dependency wml!Loop/A -> wml!Loop/B -> wml!Loop/A") {
		t.Errorf("cycle error = %v", err)
	}
}

type staticControl struct{}

func (staticControl) Render(ctx *runtime.Context, call *runtime.ControlCall) ([]*runtime.VNode, error) {
	return []*runtime.VNode{ctx.Generator.CreateText("go", call.Key)}, nil
}

func TestGoControlSatisfiesDependency(t *testing.T) {
	c := newCompiler(t, Options{})
	c.Registry().Register("Nowhere/Thing", staticControl{})
	tmpl, err := c.Load(context.Background(), "Uses/Missing")
	if err != nil {
		t.Fatal(err)
	}
	if got := renderPage(t, c, tmpl); got != "go" {
		t.Errorf("render = %q", got)
	}
}

func TestStoreReuse(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, store.Config{Compress: true})
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	root := t.TempDir()
	writeFiles(t, root, site)
	first := newCompiler(t, Options{Root: root, Store: st})
	if _, err := first.Load(ctx, "Page"); err != nil {
		t.Fatal(err)
	}
	modules, _ := st.Modules(ctx)
	if diff := cmp.Diff([]string{"wml!Controls/Title", "wml!Page"}, modules); diff != "" {
		t.Errorf("stored modules mismatch (-want +got):\n%s", diff)
	}

	// a fresh compiler decodes the stored artifacts instead of compiling
	second := newCompiler(t, Options{Root: root, Store: st})
	tmpl, err := second.Load(ctx, "Page")
	if err != nil {
		t.Fatal(err)
	}
	if got := renderPage(t, second, tmpl); got != "<h1>Hi</h1><p>TEXT</p>" {
		t.Errorf("render from store = %q", got)
	}
}

func TestModuleNames(t *testing.T) {
	c := New(Options{Root: "/srv/views"})
	tests := []struct{ in, want string }{
		{"Page", "wml!Page"},
		{"wml!Controls/List", "wml!Controls/List"},
		{"Controls.List", "wml!Controls/List"},
		{"/srv/views/Controls/List.wml", "wml!Controls/List"},
		{"Controls/List.wml", "wml!Controls/List"},
	}
	for _, tt := range tests {
		if got := c.ModuleName(tt.in); got != tt.want {
			t.Errorf("ModuleName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := c.Path("wml!Controls.List"); got != filepath.Join("/srv/views", "Controls", "List.wml") {
		t.Errorf("Path = %q", got)
	}
}

func TestModulesAndCheck(t *testing.T) {
	c := newCompiler(t, Options{})
	mods, err := c.Modules()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"wml!Broken", "wml!Controls/Title", "wml!Loop/A", "wml!Loop/B", "wml!Page", "wml!Uses/Missing"}
	if diff := cmp.Diff(want, mods); diff != "" {
		t.Errorf("modules mismatch (-want +got):\n%s", diff)
	}

	res, sc, err := c.Check("wml!Page", site["Page.wml"])
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"title", "body"}, res.ReactiveProps); diff != "" {
		t.Errorf("reactive props mismatch (-want +got):\n%s", diff)
	}
	if deps := sc.Dependencies(); len(deps) != 1 || runtime.NormalizeName(deps[0]) != "Controls/Title" {
		t.Errorf("dependencies = %v", deps)
	}
}

func TestCacheEviction(t *testing.T) {
	c := newCache(2)
	a, b, d := &runtime.Template{}, &runtime.Template{}, &runtime.Template{}
	c.set("a", "1", a)
	c.set("b", "1", b)
	c.get("a", "1")
	c.set("d", "1", d)
	if _, ok := c.get("b", "1"); ok {
		t.Error("least recently used entry should be evicted")
	}
	if got, ok := c.get("a", "1"); !ok || got != a {
		t.Error("a should survive")
	}
	if _, ok := c.get("a", "2"); ok {
		t.Error("stale hash should miss")
	}
	c.invalidate("a")
	if c.len() != 1 {
		t.Errorf("len = %d", c.len())
	}
}

func TestWatcherRebuilds(t *testing.T) {
	c := newCompiler(t, Options{})
	changes := make(chan Change, 4)
	w, err := NewWatcher(c, 20*time.Millisecond, func(ch Change) { changes <- ch })
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// give the watcher time to register the directories
	time.Sleep(100 * time.Millisecond)
	writeFiles(t, c.opts.Root, map[string]string{"Controls/Title.wml": `<h3>{{ text }}</h3>`})

	select {
	case ch := <-changes:
		if ch.Module != "wml!Controls/Title" || ch.Err != nil {
			t.Errorf("change = %+v", ch)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after write")
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
}
