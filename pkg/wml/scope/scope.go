// Package scope is the compile-time collaborator of the annotation pass. It
// registers dependencies and loads them concurrently, collects translation
// keys, holds inline template definitions and remembers whether the template
// uses translations at all.
package scope

import (
	"context"
	"errors"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/markup"
)

// Loader resolves a dependency path to a loaded module.
type Loader interface {
	Load(ctx context.Context, path string) (any, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, path string) (any, error)

func (f LoaderFunc) Load(ctx context.Context, path string) (any, error) { return f(ctx, path) }

// TranslationKey is one registered translatable string.
type TranslationKey struct {
	Type    string `json:"type"`
	Module  string `json:"module"`
	Text    string `json:"text"`
	Context string `json:"context,omitempty"`
}

type dependency struct {
	path   string
	loaded bool
	value  any
	err    error
}

// Scope is safe for concurrent use.
type Scope struct {
	mu           sync.Mutex
	loader       Loader
	deps         map[string]*dependency
	order        []string
	translations []TranslationKey
	seenKeys     map[TranslationKey]bool
	templates    map[string]*markup.Template
	templateList []string
	detected     bool
}

// New creates a scope. loader may be nil when the template has no
// dependencies or they are resolved elsewhere.
func New(loader Loader) *Scope {
	return &Scope{
		loader:    loader,
		deps:      map[string]*dependency{},
		seenKeys:  map[TranslationKey]bool{},
		templates: map[string]*markup.Template{},
	}
}

// RegisterDependency records path. Registering the same path twice is a no-op.
func (s *Scope) RegisterDependency(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deps[path]; ok {
		return
	}
	s.deps[path] = &dependency{path: path}
	s.order = append(s.order, path)
}

// Dependencies returns the registered paths in registration order.
func (s *Scope) Dependencies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// RequestDependencies loads every registered dependency that is not loaded
// yet, all at once, and waits for them. Every failed load is reported; the
// first one cancels the context the other loads see.
func (s *Scope) RequestDependencies(ctx context.Context) error {
	s.mu.Lock()
	var pending []*dependency
	for _, path := range s.order {
		if d := s.deps[path]; !d.loaded {
			pending = append(pending, d)
		}
	}
	loader := s.loader
	s.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	if loader == nil {
		return werrors.New("DEP-0002", map[string]any{"Name": pending[0].path})
	}

	var errs []error
	g, gctx := errgroup.WithContext(ctx)
	for _, d := range pending {
		g.Go(func() error {
			value, err := loader.Load(gctx, d.path)
			s.mu.Lock()
			defer s.mu.Unlock()
			if err != nil {
				d.err = err
				// cut short by a sibling's failure
				if ctx.Err() == nil && errors.Is(err, context.Canceled) {
					return err
				}
				errs = append(errs, werrors.Wrap("DEP-0001", err, map[string]any{"Name": d.path}))
				return err
			}
			d.loaded, d.value, d.err = true, value, nil
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
		return errors.Join(errs...)
	}
	return nil
}

// Dependency returns a loaded dependency.
func (s *Scope) Dependency(path string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deps[path]
	if !ok || !d.loaded {
		return nil, false
	}
	return d.value, true
}

// RegisterTranslation records a translatable string once.
func (s *Scope) RegisterTranslation(typ, module, text, context string) {
	key := TranslationKey{Type: typ, Module: module, Text: text, Context: context}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seenKeys[key] {
		return
	}
	s.seenKeys[key] = true
	s.translations = append(s.translations, key)
}

// TranslationKeys returns the registered keys in registration order.
func (s *Scope) TranslationKeys() []TranslationKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TranslationKey(nil), s.translations...)
}

// RegisterTemplate records an inline template definition.
func (s *Scope) RegisterTemplate(name string, tmpl *markup.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[name]; ok {
		return werrors.NewWithPosition("MARKUP-0006", tmpl.Line, tmpl.Column, map[string]any{"Name": name})
	}
	s.templates[name] = tmpl
	s.templateList = append(s.templateList, name)
	return nil
}

// HasTemplate reports whether name is defined.
func (s *Scope) HasTemplate(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.templates[name]
	return ok
}

// Template returns the definition of name.
func (s *Scope) Template(name string) (*markup.Template, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[name]
	return t, ok
}

// TemplateNames returns defined templates in definition order.
func (s *Scope) TemplateNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.templateList...)
}

// SetDetectedTranslation marks the template as using translations.
func (s *Scope) SetDetectedTranslation() {
	s.mu.Lock()
	s.detected = true
	s.mu.Unlock()
}

// HasDetectedTranslations reports whether translations were seen.
func (s *Scope) HasDetectedTranslations() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detected
}
