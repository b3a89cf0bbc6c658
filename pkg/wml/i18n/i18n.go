// Package i18n loads translation dictionaries and serves the rk()
// translation function.
//
// A dictionary is a YAML file named after its locale, for example
// de.yaml or pt-BR.yaml. Top-level string values translate a text;
// top-level maps group translations under a context:
//
//	Hello: Hallo
//	menu:
//	  Open: Öffnen
//
// Messages are stored in an x/text catalog, so locale fallback follows
// language matching (de-AT uses de when no de-AT dictionary exists).
package i18n

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"

	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/runtime"
)

// ContextSeparator joins a context and a text into one catalog key, the
// same form {[ context@@text ]} uses in markup.
const ContextSeparator = "@@"

// Key returns the catalog key of text within context.
func Key(text, context string) string {
	if context == "" {
		return text
	}
	return context + ContextSeparator + text
}

// Dictionary maps keys to translated messages.
type Dictionary map[string]string

// ParseDictionary decodes a YAML dictionary.
func ParseDictionary(data []byte) (Dictionary, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	d := Dictionary{}
	for k, v := range raw {
		switch v := v.(type) {
		case string:
			d[k] = v
		case map[string]any:
			for text, msg := range v {
				s, ok := msg.(string)
				if !ok {
					return nil, fmt.Errorf("%s.%s: expected a string, got %T", k, text, msg)
				}
				d[Key(text, k)] = s
			}
		case nil:
		default:
			return nil, fmt.Errorf("%s: expected a string or a map, got %T", k, v)
		}
	}
	return d, nil
}

// Catalog holds the dictionaries of every loaded locale.
type Catalog struct {
	mu      sync.RWMutex
	builder *catalog.Builder
	keys    map[language.Tag]map[string]bool
	tags    []language.Tag
}

// NewCatalog returns an empty catalog. fallback answers lookups no
// dictionary matches.
func NewCatalog(fallback language.Tag) *Catalog {
	return &Catalog{
		builder: catalog.NewBuilder(catalog.Fallback(fallback)),
		keys:    map[language.Tag]map[string]bool{},
	}
}

// Add merges a dictionary into locale.
func (c *Catalog) Add(tag language.Tag, d Dictionary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keys[tag] == nil {
		c.keys[tag] = map[string]bool{}
		c.tags = append(c.tags, tag)
	}
	for key, msg := range d {
		// Catalog messages are format strings; translations are literal.
		if err := c.builder.SetString(tag, key, strings.ReplaceAll(msg, "%", "%%")); err != nil {
			return err
		}
		c.keys[tag][key] = true
	}
	return nil
}

// LoadDir adds every *.yaml and *.yml dictionary in dir.
func (c *Catalog) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return werrors.Wrap("I18N-0001", err, map[string]any{"Path": dir})
	}
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		tag, err := language.Parse(strings.TrimSuffix(e.Name(), ext))
		if err != nil {
			return werrors.Wrap("I18N-0001", err, map[string]any{"Path": path})
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return werrors.Wrap("I18N-0001", err, map[string]any{"Path": path})
		}
		d, err := ParseDictionary(data)
		if err != nil {
			return werrors.Wrap("I18N-0001", err, map[string]any{"Path": path})
		}
		if err := c.Add(tag, d); err != nil {
			return werrors.Wrap("I18N-0001", err, map[string]any{"Path": path})
		}
	}
	return nil
}

// Locales lists the loaded locales.
func (c *Catalog) Locales() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.tags))
	for i, t := range c.tags {
		out[i] = t.String()
	}
	sort.Strings(out)
	return out
}

// Translator returns the translator of locale. Unknown texts are
// returned untranslated.
func (c *Catalog) Translator(locale string) (*Translator, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, werrors.Wrap("CONFIG-0002", err, map[string]any{"Locale": locale})
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	matched := tag
	if len(c.tags) > 0 {
		m := language.NewMatcher(c.tags)
		_, idx, conf := m.Match(tag)
		if conf != language.No {
			matched = c.tags[idx]
		}
	}
	return &Translator{
		catalog: c,
		tag:     matched,
		printer: message.NewPrinter(matched, message.Catalog(c.builder)),
	}, nil
}

func (c *Catalog) has(tag language.Tag, key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keys[tag][key]
}

// Translator resolves keys for one locale. It implements
// runtime.Translator.
type Translator struct {
	catalog *Catalog
	tag     language.Tag
	printer *message.Printer
}

var _ runtime.Translator = (*Translator)(nil)

// Locale is the matched dictionary locale.
func (t *Translator) Locale() string { return t.tag.String() }

// Translate looks text up under context first, then without it.
func (t *Translator) Translate(text, context string) string {
	for _, key := range []string{Key(text, context), text} {
		if t.catalog.has(t.tag, key) {
			return t.printer.Sprintf(key)
		}
		if context == "" {
			break
		}
	}
	return text
}

// Missing lists the keys of a template that have no translation.
func (t *Translator) Missing(keys []runtime.TranslationKey) []runtime.TranslationKey {
	var out []runtime.TranslationKey
	for _, k := range keys {
		if !t.catalog.has(t.tag, Key(k.Text, k.Context)) && !t.catalog.has(t.tag, k.Text) {
			out = append(out, k)
		}
	}
	return out
}

// Template writes the keys as a YAML dictionary skeleton, each text
// mapped to itself.
func Template(keys []runtime.TranslationKey) ([]byte, error) {
	root := map[string]any{}
	for _, k := range keys {
		if k.Context == "" {
			root[k.Text] = k.Text
			continue
		}
		group, _ := root[k.Context].(map[string]any)
		if group == nil {
			group = map[string]any{}
			root[k.Context] = group
		}
		group[k.Text] = k.Text
	}
	return yaml.Marshal(root)
}
