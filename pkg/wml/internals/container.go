package internals

import (
	"sort"

	"github.com/sambeau/wml/pkg/wml/ast"
	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/walker"
)

// Arena owns every container of one compilation. Containers refer to their
// parent and children by index into the arena.
type Arena struct {
	storage    *Storage
	containers []*Container
}

// NewArena creates an arena holding a single GLOBAL root container.
func NewArena(storage *Storage) *Arena {
	a := &Arena{storage: storage}
	a.add(-1, Global)
	return a
}

func (a *Arena) add(parent int, typ ContainerType) *Container {
	c := &Container{
		ID:       len(a.containers),
		Parent:   parent,
		Type:     typ,
		arena:    a,
		isolated: map[string]bool{},
		reactive: map[string]bool{},
	}
	a.containers = append(a.containers, c)
	if parent >= 0 {
		p := a.containers[parent]
		p.Children = append(p.Children, c.ID)
	}
	return c
}

// Root returns the GLOBAL container.
func (a *Arena) Root() *Container { return a.containers[0] }

// Get returns the container with the given id, or nil.
func (a *Arena) Get(id int) *Container {
	if id < 0 || id >= len(a.containers) {
		return nil
	}
	return a.containers[id]
}

// Containers returns all containers in creation order.
func (a *Arena) Containers() []*Container { return a.containers }

// Storage returns the program storage shared by the arena.
func (a *Arena) Storage() *Storage { return a.storage }

// Container is one lexical boundary of a template.
type Container struct {
	ID       int
	Parent   int
	Type     ContainerType
	Children []int
	// Name is the content option or template name, if any.
	Name string

	Programs []*ProgramMeta

	arena         *Arena
	isolated      map[string]bool
	isolatedOrder []string
	reactive      map[string]bool
	reactiveOrder []string
}

// Spawn creates a child container.
func (c *Container) Spawn(typ ContainerType) *Container {
	return c.arena.add(c.ID, typ)
}

// ParentContainer returns the parent, or nil for the root.
func (c *Container) ParentContainer() *Container {
	return c.arena.Get(c.Parent)
}

// AddIsolated marks names as local to this container. Call it before
// registering any program that references them.
func (c *Container) AddIsolated(names ...string) {
	for _, n := range names {
		if n == "" || c.isolated[n] {
			continue
		}
		c.isolated[n] = true
		c.isolatedOrder = append(c.isolatedOrder, n)
	}
}

// IsIsolated reports whether name is local to this container.
func (c *Container) IsIsolated(name string) bool { return c.isolated[name] }

// Isolated returns the isolated identifiers in insertion order.
func (c *Container) Isolated() []string { return c.isolatedOrder }

// Reactive returns the reactive identifiers recorded here, in insertion order.
func (c *Container) Reactive() []string { return c.reactiveOrder }

func (c *Container) addReactive(name string) {
	if denylist[name] || c.reactive[name] {
		return
	}
	c.reactive[name] = true
	c.reactiveOrder = append(c.reactiveOrder, name)
}

// RegisterProgram records p in this container according to its type.
func (c *Container) RegisterProgram(p *ast.Program, typ ProgramType) error {
	if p == nil {
		return nil
	}
	p = c.arena.storage.Intern(p)
	ids := walker.CollectIdentifiers(p)

	switch typ {
	case Regular, Attribute, Option, Simple, Float:
		if len(ids) == 0 {
			return nil
		}
		c.hoistReactive(ids)
		return c.register(&ProgramMeta{Program: p, Type: typ, Operation: Ignore, Origin: c.ID, Processing: c.ID})

	case Scope:
		c.hoistReactive(ids)
		return c.register(&ProgramMeta{Program: p, Type: typ, Operation: Include, Origin: c.ID, Processing: c.ID})

	case Bind:
		c.hoistReactive(ids)
		programs, err := walker.DropBindProgram(p, c.arena.storage.Parser())
		if err != nil {
			return err
		}
		for _, bp := range programs {
			bp = c.arena.storage.Intern(bp)
			if err := c.register(&ProgramMeta{Program: bp, Type: Bind, Operation: Include, Origin: c.ID, Processing: c.ID}); err != nil {
				return err
			}
		}
		return nil

	case Event:
		c.hoistReactive(ids)
		return nil

	case Iterator:
		return c.registerIterator(p, ids)
	}
	return werrors.New("CONTAINER-0003", map[string]any{"Type": int(typ)})
}

// registerIterator splits a loop control expression into one synthetic
// program per read path. The pieces are what the loop container tracks; the
// original is kept for tracing only.
func (c *Container) registerIterator(p *ast.Program, ids []string) error {
	c.hoistReactive(ids)
	for _, id := range ids {
		c.addReactive(id)
	}
	pieces, err := c.pieces(p, nil)
	if err != nil {
		return err
	}
	c.AddIsolated(ids...)
	for _, piece := range pieces {
		c.accept(&ProgramMeta{Program: piece, Type: Iterator, Operation: Include, Synthetic: true, Origin: c.ID, Processing: c.ID})
	}
	// every identifier is now isolated here, so neither the pieces nor the
	// original can bubble further
	c.accept(&ProgramMeta{Program: p, Type: Iterator, Operation: Exclude, Origin: c.ID, Processing: c.ID})
	return nil
}

func (c *Container) hoistReactive(ids []string) {
	for _, id := range ids {
		c.HoistReactiveIdentifier(id)
	}
}

// HoistReactiveIdentifier records name as reactive at the nearest template
// or global container, unless a container on the way isolates it.
func (c *Container) HoistReactiveIdentifier(name string) {
	if denylist[name] {
		return
	}
	for cur := c; cur != nil; cur = cur.ParentContainer() {
		if cur.isolated[name] {
			return
		}
		if cur.Type == Template || cur.Parent < 0 {
			cur.addReactive(name)
			return
		}
	}
}

func (c *Container) register(meta *ProgramMeta) error {
	c.accept(meta)
	return c.hoistProgram(meta)
}

// accept stores meta unless the same program with the same type is already
// here. A later non-excluded registration revives an excluded one.
func (c *Container) accept(meta *ProgramMeta) {
	for _, existing := range c.Programs {
		if existing.Program == meta.Program && existing.Type == meta.Type {
			if existing.Operation == Exclude && meta.Operation != Exclude {
				existing.Operation = meta.Operation
			}
			return
		}
	}
	c.Programs = append(c.Programs, meta)
}

// hoistProgram bubbles meta one container at a time toward the root. It
// stops at a template container. A container whose isolated identifiers
// meet the program's free identifiers stops the composite and sends only the
// independent read paths upward as synthetic programs.
func (c *Container) hoistProgram(meta *ProgramMeta) error {
	if c.Type == Template || c.Parent < 0 {
		return nil
	}
	parent := c.ParentContainer()

	if walker.ContainsIdentifiers(meta.Program, c.isolated) {
		pieces, err := c.pieces(meta.Program, c.isolated)
		if err != nil {
			return err
		}
		for _, piece := range pieces {
			synthetic := &ProgramMeta{
				Program:    piece,
				Type:       meta.Type,
				Operation:  Include,
				Synthetic:  true,
				Origin:     meta.Origin,
				Processing: parent.ID,
			}
			parent.accept(synthetic)
			if err := parent.hoistProgram(synthetic); err != nil {
				return err
			}
		}
		return nil
	}

	bubbled := *meta
	bubbled.Processing = parent.ID
	if bubbled.Operation == Ignore {
		bubbled.Operation = Include
	}
	parent.accept(&bubbled)
	return parent.hoistProgram(&bubbled)
}

// pieces returns one program per maximal read path of p whose root
// identifier is not in skip.
func (c *Container) pieces(p *ast.Program, skip map[string]bool) ([]*ast.Program, error) {
	var out []*ast.Program
	for _, path := range walker.CollectPaths(p) {
		piece, err := c.arena.storage.Parse(path)
		if err != nil {
			return nil, err
		}
		segments, ok := ast.Path(piece.Single())
		if !ok || skip[segments[0]] || denylist[segments[0]] {
			continue
		}
		out = append(out, piece)
	}
	return out, nil
}

// Attach merges an inline template's container into the component container
// of its call site. options are the names the call site passes, except those
// passed through unchanged (v="{{ v }}"), which still mean the outer value.
func (c *Container) Attach(template *Container, options []string) error {
	if template.Type != Template {
		return werrors.New("CONTAINER-0001", map[string]any{"Type": template.Type.String()})
	}
	if c.Type != Component {
		return werrors.New("CONTAINER-0002", map[string]any{"Type": c.Type.String()})
	}

	c.AddIsolated(template.isolatedOrder...)
	c.AddIsolated(options...)
	for _, name := range template.reactiveOrder {
		c.HoistReactiveIdentifier(name)
	}
	for _, meta := range template.Programs {
		if meta.Operation == Exclude {
			continue
		}
		rehoisted := *meta
		rehoisted.Processing = c.ID
		c.accept(&rehoisted)
		if err := c.hoistProgram(&rehoisted); err != nil {
			return err
		}
	}
	return nil
}

// InternalsMeta returns the programs this container evaluates for dirty
// checking, ordered by expression table slot. A component container only
// evaluates its own bind and scope programs; every other container evaluates
// everything not excluded. Programs without a slot are allocated one.
func (c *Container) InternalsMeta() []*ProgramMeta {
	var out []*ProgramMeta
	seen := map[*ast.Program]bool{}
	for _, meta := range c.Programs {
		if c.Type == Component {
			if meta.Origin != c.ID || (meta.Type != Bind && meta.Type != Scope) {
				continue
			}
		} else if meta.Operation == Exclude {
			continue
		}
		if seen[meta.Program] {
			continue
		}
		seen[meta.Program] = true
		c.arena.storage.Allocate(meta.Program)
		out = append(out, meta)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Program.ReferenceID < out[j].Program.ReferenceID
	})
	return out
}

// Ranges compresses sorted slot indices into [start] and [start, end] runs.
func Ranges(indices []int) [][]int {
	var out [][]int
	for i := 0; i < len(indices); {
		j := i
		for j+1 < len(indices) && indices[j+1] == indices[j]+1 {
			j++
		}
		if i == j {
			out = append(out, []int{indices[i]})
		} else {
			out = append(out, []int{indices[i], indices[j]})
		}
		i = j + 1
	}
	return out
}

// Indices returns the table slots of metas.
func Indices(metas []*ProgramMeta) []int {
	out := make([]int, len(metas))
	for i, m := range metas {
		out[i] = m.Program.ReferenceID
	}
	return out
}

// Expand turns ranges back into slot indices.
func Expand(ranges [][]int) []int {
	var out []int
	for _, r := range ranges {
		switch len(r) {
		case 1:
			out = append(out, r[0])
		case 2:
			for i := r[0]; i <= r[1]; i++ {
				out = append(out, i)
			}
		}
	}
	return out
}
