// Package compiler turns template files into runnable templates.
//
// A module name such as wml!Controls/List maps to the file
// <root>/Controls/List.wml. Compiling a module parses the markup, runs the
// annotation pass, loads every component and static partial it depends
// on, and builds the description. Compiled templates are kept in an LRU
// and, when a store is configured, persisted between runs.
package compiler

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sambeau/wml/pkg/wml/annotate"
	"github.com/sambeau/wml/pkg/wml/builder"
	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/logger"
	"github.com/sambeau/wml/pkg/wml/markup"
	"github.com/sambeau/wml/pkg/wml/runtime"
	"github.com/sambeau/wml/pkg/wml/scope"
	"github.com/sambeau/wml/pkg/wml/store"
	"github.com/sambeau/wml/pkg/wml/wire"
)

// Ext is the template file extension.
const Ext = ".wml"

// DefaultPrefix starts module names.
const DefaultPrefix = "wml!"

// Options configure a Compiler.
type Options struct {
	// Root is the directory module paths are resolved against.
	Root string
	// Prefix starts module names. Empty means wml!.
	Prefix string
	// Methods are given to every compiled template. nil means
	// runtime.NewMethods().
	Methods *runtime.Methods
	// Registry receives every compiled template under its module name.
	// Go controls registered here satisfy dependencies without a file.
	Registry *runtime.Registry
	// Store persists descriptions. nil disables persistence.
	Store *store.Store
	// CacheSize bounds the in-memory LRU.
	CacheSize int
	// TranslateText promotes plain text nodes to translations.
	TranslateText bool
	// NoFold keeps constant expressions in the expression table.
	NoFold bool
	Log    *logger.EventLogger
}

// Compiler is safe for concurrent use.
type Compiler struct {
	opts  Options
	cache *cache
}

// New creates a compiler.
func New(opts Options) *Compiler {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Methods == nil {
		opts.Methods = runtime.NewMethods()
	}
	if opts.Registry == nil {
		opts.Registry = runtime.NewRegistry()
	}
	if opts.Log == nil {
		opts.Log = logger.NewEventLogger(io.Discard, "text", logger.LevelError)
	}
	return &Compiler{opts: opts, cache: newCache(opts.CacheSize)}
}

// Registry returns the registry compiled templates are added to.
func (c *Compiler) Registry() *runtime.Registry { return c.opts.Registry }

// Methods returns the methods templates are compiled with.
func (c *Compiler) Methods() *runtime.Methods { return c.opts.Methods }

// ModuleName returns the module name of a template file path, relative to
// the root or absolute.
func (c *Compiler) ModuleName(path string) string {
	if filepath.IsAbs(path) && c.opts.Root != "" {
		if rel, err := filepath.Rel(c.opts.Root, path); err == nil && !strings.HasPrefix(rel, "..") {
			path = rel
		}
	}
	path = strings.TrimSuffix(filepath.ToSlash(path), Ext)
	return c.opts.Prefix + runtime.NormalizeName(strings.TrimPrefix(path, c.opts.Prefix))
}

// Path returns the file of a module. The prefix is optional and dots
// separate path segments like slashes do.
func (c *Compiler) Path(module string) string {
	name := runtime.NormalizeName(strings.TrimPrefix(module, c.opts.Prefix))
	return filepath.Join(c.opts.Root, filepath.FromSlash(name)+Ext)
}

func (c *Compiler) decoratorNames() []string {
	names := make([]string, 0, len(c.opts.Methods.Decorators))
	for name := range c.opts.Methods.Decorators {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

type chainKey struct{}

// chain is the list of modules being loaded on this call path.
func chain(ctx context.Context) []string {
	v, _ := ctx.Value(chainKey{}).([]string)
	return v
}

// Load returns the compiled template of module, compiling it and its
// dependencies when the cache has no current copy.
func (c *Compiler) Load(ctx context.Context, module string) (*runtime.Template, error) {
	module = c.ModuleName(module)
	loading := chain(ctx)
	if slices.Contains(loading, module) {
		return nil, werrors.New("COMPILE-0002", map[string]any{
			"Chain": strings.Join(append(loading, module), " -> "),
		})
	}
	ctx = context.WithValue(ctx, chainKey{}, append(slices.Clip(loading), module))

	path := c.Path(module)
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, werrors.Wrap("COMPILE-0001", err, map[string]any{"Path": path})
	}
	hash := store.Hash(src)
	if tmpl, ok := c.cache.get(module, hash); ok {
		return tmpl, nil
	}

	d := c.cached(ctx, module, hash)
	if d == nil {
		if d, err = c.compile(ctx, module, path, string(src)); err != nil {
			return nil, err
		}
		c.persist(ctx, module, hash, d)
	} else if err := c.requestDependencies(ctx, d.Dependencies); err != nil {
		return nil, err
	}

	tmpl, err := runtime.New(d, c.opts.Methods)
	if err != nil {
		return nil, err
	}
	c.cache.set(module, hash, tmpl)
	c.opts.Registry.Register(module, tmpl)
	return tmpl, nil
}

// cached returns the stored description of module when it was built from
// the same source. Unreadable artifacts are dropped and rebuilt.
func (c *Compiler) cached(ctx context.Context, module, hash string) *runtime.Description {
	if c.opts.Store == nil {
		return nil
	}
	data, ok, err := c.opts.Store.Lookup(ctx, module, hash)
	if err != nil {
		c.opts.Log.Warn("store lookup failed", map[string]any{"module": module, "error": err.Error()})
		return nil
	}
	if !ok {
		return nil
	}
	d, err := wire.Unmarshal(data, wire.Options{Decorators: c.decoratorNames()})
	if err != nil {
		c.opts.Log.Warn("discarding stored artifact", map[string]any{"module": module, "error": err.Error()})
		return nil
	}
	c.opts.Log.Debug("artifact reused", map[string]any{"module": module})
	return d
}

func (c *Compiler) persist(ctx context.Context, module, hash string, d *runtime.Description) {
	if c.opts.Store == nil {
		return
	}
	data, err := wire.Marshal(d)
	if err == nil {
		err = c.opts.Store.Put(ctx, module, hash, data)
	}
	if err != nil {
		c.opts.Log.Warn("store write failed", map[string]any{"module": module, "error": err.Error()})
	}
}

// Compile builds the description of source without touching the cache.
// Dependencies are loaded through the compiler.
func (c *Compiler) Compile(ctx context.Context, module, source string) (*runtime.Description, error) {
	return c.compile(ctx, c.ModuleName(module), "", source)
}

// Check parses and annotates source and reports the first error. It does
// not load dependencies.
func (c *Compiler) Check(module, source string) (*annotate.Result, *scope.Scope, error) {
	nodes, err := markup.Parse(source, markup.Options{FileName: module, TranslateText: c.opts.TranslateText})
	if err != nil {
		return nil, nil, err
	}
	sc := scope.New(nil)
	res, err := annotate.Process(nodes, sc, annotate.Options{Module: module})
	if err != nil {
		return nil, nil, err
	}
	return res, sc, nil
}

func (c *Compiler) compile(ctx context.Context, module, file, source string) (*runtime.Description, error) {
	name := file
	if name == "" {
		name = module
	}
	nodes, err := markup.Parse(source, markup.Options{FileName: name, TranslateText: c.opts.TranslateText})
	if err != nil {
		return nil, err
	}
	sc := scope.New(c.loader())
	res, err := annotate.Process(nodes, sc, annotate.Options{Module: module})
	if err != nil {
		return nil, withFile(err, file)
	}
	if err := sc.RequestDependencies(ctx); err != nil {
		return nil, err
	}
	d, err := builder.Build(res, sc, builder.Options{
		Module:     module,
		Decorators: c.decoratorNames(),
		NoFold:     c.opts.NoFold,
	})
	if err != nil {
		return nil, withFile(err, file)
	}
	c.opts.Log.Info("compiled", map[string]any{
		"module":       module,
		"expressions":  len(d.Expressions),
		"dependencies": len(d.Dependencies),
	})
	return d, nil
}

// loader resolves dependencies: Go controls from the registry, templates
// from files.
func (c *Compiler) loader() scope.Loader {
	return scope.LoaderFunc(func(ctx context.Context, path string) (any, error) {
		if entry, ok := c.opts.Registry.Lookup(path); ok {
			if _, isTemplate := entry.(*runtime.Template); !isTemplate {
				return entry, nil
			}
		}
		return c.Load(ctx, path)
	})
}

func (c *Compiler) requestDependencies(ctx context.Context, deps []string) error {
	if len(deps) == 0 {
		return nil
	}
	sc := scope.New(c.loader())
	for _, d := range deps {
		sc.RegisterDependency(d)
	}
	return sc.RequestDependencies(ctx)
}

// Invalidate drops module from the cache.
func (c *Compiler) Invalidate(module string) {
	c.cache.invalidate(c.ModuleName(module))
}

// Modules lists the module names of every template file under the root.
func (c *Compiler) Modules() ([]string, error) {
	var out []string
	err := filepath.WalkDir(c.opts.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != c.opts.Root {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == Ext {
			out = append(out, c.ModuleName(path))
		}
		return nil
	})
	if err != nil {
		return nil, werrors.Wrap("COMPILE-0001", err, map[string]any{"Path": c.opts.Root})
	}
	return out, nil
}

func withFile(err error, file string) error {
	if file == "" {
		return err
	}
	if werr, ok := werrors.As(err); ok && werr.File == "" {
		werr.File = file
	}
	return err
}
