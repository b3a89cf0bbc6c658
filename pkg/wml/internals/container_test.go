package internals

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sambeau/wml/pkg/wml/ast"
	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/parser"
	"github.com/sambeau/wml/pkg/wml/walker"
)

func newArena() *Arena {
	return NewArena(NewStorage(parser.Instance{}))
}

func programTexts(metas []*ProgramMeta) []string {
	var out []string
	for _, m := range metas {
		out = append(out, m.Program.String())
	}
	return out
}

func register(t *testing.T, c *Container, src string, typ ProgramType) *ast.Program {
	t.Helper()
	p := parser.MustParse(src)
	if err := c.RegisterProgram(p, typ); err != nil {
		t.Fatalf("RegisterProgram(%q, %v) error: %v", src, typ, err)
	}
	return p
}

func TestForeachIsolation(t *testing.T) {
	a := newArena()
	root := a.Root()
	loop := root.Spawn(Cycle)
	loop.AddIsolated("index", "item")
	register(t, loop, "items", Iterator)
	register(t, loop, "item", Simple)

	if diff := cmp.Diff([]string{"items"}, root.Reactive()); diff != "" {
		t.Errorf("root reactive mismatch (-want +got):\n%s", diff)
	}
	for _, name := range []string{"index", "item"} {
		if !loop.IsIsolated(name) {
			t.Errorf("%s should be isolated in the loop", name)
		}
	}
	for _, m := range root.Programs {
		if walker.ContainsIdentifiers(m.Program, map[string]bool{"item": true, "index": true}) {
			t.Errorf("root holds %q which references a loop variable", m.Program)
		}
	}

	// the loop tracks its source through a synthetic piece; the original is excluded
	got := programTexts(loop.InternalsMeta())
	if diff := cmp.Diff([]string{"items", "item"}, got); diff != "" {
		t.Errorf("loop internals mismatch (-want +got):\n%s", diff)
	}
}

func TestIsolatedIdentifiersNeverBubble(t *testing.T) {
	a := newArena()
	root := a.Root()
	loop := root.Spawn(Cycle)
	loop.AddIsolated("item")
	branch := loop.Spawn(Conditional)
	register(t, branch, "item.title + count + record.name", Simple)

	if diff := cmp.Diff([]string{"item.title + count + record.name"}, programTexts(loop.Programs)); diff != "" {
		t.Errorf("loop programs mismatch (-want +got):\n%s", diff)
	}
	got := programTexts(root.Programs)
	if diff := cmp.Diff([]string{"count", "record.name"}, got); diff != "" {
		t.Errorf("root programs mismatch (-want +got):\n%s", diff)
	}
	for _, m := range root.Programs {
		if !m.Synthetic || m.Operation != Include {
			t.Errorf("%q: synthetic=%v operation=%v, want synthetic include", m.Program, m.Synthetic, m.Operation)
		}
		if m.Origin != branch.ID {
			t.Errorf("%q: origin = %d, want %d", m.Program, m.Origin, branch.ID)
		}
	}
}

func TestIsolationInvariantOverNesting(t *testing.T) {
	a := newArena()
	root := a.Root()
	outer := root.Spawn(Cycle)
	outer.AddIsolated("row")
	register(t, outer, "rows", Iterator)
	inner := outer.Spawn(Cycle)
	inner.AddIsolated("cell")
	register(t, inner, "row.cells", Iterator)
	register(t, inner, "cell.value + row.id + total", Simple)

	for _, c := range a.Containers() {
		for _, m := range c.Programs {
			if m.Origin == c.ID || !m.Synthetic {
				continue
			}
			// anything that arrived from a descendant must avoid every
			// name isolated between its origin and here
			for cur := a.Get(m.Origin); cur != nil && cur.ID != c.ID; cur = cur.ParentContainer() {
				for _, name := range cur.Isolated() {
					if walker.ContainsIdentifiers(m.Program, map[string]bool{name: true}) {
						t.Errorf("container %d holds %q with %s isolated in %d", c.ID, m.Program, name, cur.ID)
					}
				}
			}
		}
	}
	if diff := cmp.Diff([]string{"rows", "total"}, root.Reactive()); diff != "" {
		t.Errorf("root reactive mismatch (-want +got):\n%s", diff)
	}
}

func TestReactiveBubblingTermination(t *testing.T) {
	a := newArena()
	root := a.Root()
	comp := root.Spawn(Component)
	content := comp.Spawn(ContentOption)
	content.AddIsolated("itemTemplate")
	register(t, content, "itemTemplate.caption + title", Simple)
	register(t, root, "title", Simple)
	register(t, root, "_options.x + context.theme", Simple)

	if diff := cmp.Diff([]string{"title"}, root.Reactive()); diff != "" {
		t.Errorf("root reactive mismatch (-want +got):\n%s", diff)
	}
	if len(content.Reactive()) != 0 {
		t.Errorf("content reactive = %v, want none", content.Reactive())
	}
}

func TestTemplateIsHoistingBoundary(t *testing.T) {
	a := newArena()
	root := a.Root()
	tmpl := root.Spawn(Template)
	register(t, tmpl, "v + w", Simple)

	if len(root.Programs) != 0 {
		t.Errorf("root programs = %v, want none", programTexts(root.Programs))
	}
	if diff := cmp.Diff([]string{"v", "w"}, tmpl.Reactive()); diff != "" {
		t.Errorf("template reactive mismatch (-want +got):\n%s", diff)
	}
	if len(root.Reactive()) != 0 {
		t.Errorf("root reactive = %v, want none", root.Reactive())
	}
}

func TestAttach(t *testing.T) {
	a := newArena()
	root := a.Root()
	tmpl := root.Spawn(Template)
	register(t, tmpl, "v + w", Simple)
	call := root.Spawn(Component)

	if err := call.Attach(tmpl, []string{"v"}); err != nil {
		t.Fatal(err)
	}
	if !call.IsIsolated("v") {
		t.Error("passed option should be isolated at the call site")
	}
	if diff := cmp.Diff([]string{"w"}, root.Reactive()); diff != "" {
		t.Errorf("root reactive mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"w"}, programTexts(root.Programs)); diff != "" {
		t.Errorf("root programs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"v + w"}, programTexts(call.Programs)); diff != "" {
		t.Errorf("call programs mismatch (-want +got):\n%s", diff)
	}
}

func TestAttachErrors(t *testing.T) {
	a := newArena()
	root := a.Root()
	tmpl := root.Spawn(Template)
	comp := root.Spawn(Component)
	branch := root.Spawn(Conditional)

	if err := comp.Attach(branch, nil); !werrors.HasCode(err, "CONTAINER-0001") {
		t.Errorf("attach non-template: %v, want CONTAINER-0001", err)
	}
	if err := branch.Attach(tmpl, nil); !werrors.HasCode(err, "CONTAINER-0002") {
		t.Errorf("attach to non-component: %v, want CONTAINER-0002", err)
	}
}

func TestBindRegistration(t *testing.T) {
	a := newArena()
	root := a.Root()
	comp := root.Spawn(Component)
	register(t, comp, "caption", Attribute)
	register(t, comp, "a.b.value", Bind)

	got := programTexts(comp.InternalsMeta())
	if diff := cmp.Diff([]string{"a.b", "a.b.value"}, got); diff != "" {
		t.Errorf("component internals mismatch (-want +got):\n%s", diff)
	}
	got = programTexts(root.InternalsMeta())
	if diff := cmp.Diff([]string{"a.b", "a.b.value", "caption"}, sortByText(got)); diff != "" {
		t.Errorf("root internals mismatch (-want +got):\n%s", diff)
	}
}

func sortByText(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

func TestEventAndLiteralRegistration(t *testing.T) {
	a := newArena()
	root := a.Root()
	register(t, root, "save(record)", Event)
	register(t, root, "'literal' + 1", Attribute)

	if len(root.Programs) != 0 {
		t.Errorf("programs = %v, want none", programTexts(root.Programs))
	}
	if diff := cmp.Diff([]string{"save", "record"}, root.Reactive()); diff != "" {
		t.Errorf("reactive mismatch (-want +got):\n%s", diff)
	}
}

func TestUnknownProgramType(t *testing.T) {
	root := newArena().Root()
	err := root.RegisterProgram(parser.MustParse("a"), ProgramType(99))
	if !werrors.HasCode(err, "CONTAINER-0003") {
		t.Errorf("error = %v, want CONTAINER-0003", err)
	}
}

func TestInternalsOrderedBySlot(t *testing.T) {
	a := newArena()
	root := a.Root()
	storage := a.Storage()
	b := storage.Intern(parser.MustParse("b"))
	storage.Allocate(b)
	register(t, root, "a", Simple)
	register(t, root, "b", Simple)

	metas := root.InternalsMeta()
	if diff := cmp.Diff([]string{"b", "a"}, programTexts(metas)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 1}, Indices(metas)); diff != "" {
		t.Errorf("indices mismatch (-want +got):\n%s", diff)
	}
}

func TestStorageDeduplicates(t *testing.T) {
	storage := NewStorage(parser.Instance{})
	first := storage.Intern(parser.MustParse("a.b + c"))
	second := storage.Intern(parser.MustParse("a.b   +   c"))
	if first != second {
		t.Fatal("identical source text should share one program")
	}
	if storage.Allocate(first) != storage.Allocate(second) {
		t.Error("identical programs should share one slot")
	}
	if len(storage.Table()) != 1 {
		t.Errorf("table size = %d, want 1", len(storage.Table()))
	}
}

func TestRanges(t *testing.T) {
	tests := []struct {
		in   []int
		want [][]int
	}{
		{nil, nil},
		{[]int{3}, [][]int{{3}}},
		{[]int{0, 1, 2, 5, 7, 8}, [][]int{{0, 2}, {5}, {7, 8}}},
	}
	for _, tt := range tests {
		got := Ranges(tt.in)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Ranges(%v) mismatch (-want +got):\n%s", tt.in, diff)
		}
		if diff := cmp.Diff(tt.in, Expand(got)); diff != "" {
			t.Errorf("Expand(Ranges(%v)) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}
