// Package decorators provides the standard view decorators applied with
// the expr|name(args) syntax.
//
// A decorator receives the decorated value followed by its arguments.
// Formatting decorators are locale aware: numbers and money go through
// golang.org/x/text, dates through monday.
package decorators

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"github.com/goodsign/monday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/runtime"
)

// Options configure the locale-aware decorators.
type Options struct {
	// Locale is a BCP 47 tag such as en-US or de. Empty means en-US.
	Locale string
	// Location is used for dates without a zone. nil means UTC.
	Location *time.Location
	// Currency is the default ISO code of money. Empty means USD.
	Currency string
}

type set struct {
	tag      language.Tag
	printer  *message.Printer
	date     monday.Locale
	location *time.Location
	currency currency.Unit
	md       goldmark.Markdown
}

// New returns the standard decorator table.
func New(opts Options) (map[string]runtime.Decorator, error) {
	s := &set{location: opts.Location}
	if s.location == nil {
		s.location = time.UTC
	}
	locale := opts.Locale
	if locale == "" {
		locale = "en-US"
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, werrors.Wrap("CONFIG-0002", err, map[string]any{"Locale": locale})
	}
	s.tag = tag
	s.printer = message.NewPrinter(tag)
	s.date = mondayLocale(locale)

	code := opts.Currency
	if code == "" {
		code = "USD"
	}
	if s.currency, err = currency.ParseISO(code); err != nil {
		return nil, werrors.Wrap("CONFIG-0003", err, map[string]any{"Code": code})
	}
	s.md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)

	return map[string]runtime.Decorator{
		"trim":       unary(func(v any) any { return strings.TrimSpace(runtime.ToString(v)) }),
		"upper":      unary(func(v any) any { return strings.ToUpper(runtime.ToString(v)) }),
		"lower":      unary(func(v any) any { return strings.ToLower(runtime.ToString(v)) }),
		"capitalize": unary(capitalize),
		"default":    fallback,
		"truncate":   truncate,
		"join":       join,
		"json":       toJSON,
		"number":     s.number,
		"percent":    s.percent,
		"money":      s.money,
		"date":       s.formatDate,
		"markdown":   s.markdown,
	}, nil
}

// Names lists the decorators New provides, for compile-time checks.
func Names() []string {
	table, _ := New(Options{})
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Install adds the standard decorators to m. Decorators already present
// in m are kept.
func Install(m *runtime.Methods, opts Options) error {
	table, err := New(opts)
	if err != nil {
		return err
	}
	if m.Decorators == nil {
		m.Decorators = map[string]runtime.Decorator{}
	}
	for name, d := range table {
		if _, ok := m.Decorators[name]; !ok {
			m.Decorators[name] = d
		}
	}
	return nil
}

func unary(fn func(v any) any) runtime.Decorator {
	return func(args []any) (any, error) {
		return fn(arg(args, 0)), nil
	}
}

func arg(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return runtime.Undefined
}

func capitalize(v any) any {
	s := runtime.ToString(v)
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// fallback is value|default(x): x when the value is null, undefined or "".
func fallback(args []any) (any, error) {
	v := arg(args, 0)
	if runtime.IsNullish(v) || v == "" {
		return arg(args, 1), nil
	}
	return v, nil
}

func truncate(args []any) (any, error) {
	s := runtime.ToString(arg(args, 0))
	n := int(runtime.ToNumber(arg(args, 1)))
	if n < 0 || utf8.RuneCountInString(s) <= n {
		return s, nil
	}
	suffix := "…"
	if len(args) > 2 {
		suffix = runtime.ToString(args[2])
	}
	return string([]rune(s)[:n]) + suffix, nil
}

func join(args []any) (any, error) {
	sep := ", "
	if len(args) > 1 {
		sep = runtime.ToString(args[1])
	}
	var parts []string
	runtime.DefaultIterators().Each(arg(args, 0), func(_, v any) bool {
		parts = append(parts, runtime.ToString(v))
		return true
	})
	return strings.Join(parts, sep), nil
}

func toJSON(args []any) (any, error) {
	v := arg(args, 0)
	if runtime.IsUndefined(v) {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	return string(data), nil
}

// number is value|number or value|number(digits).
func (s *set) number(args []any) (any, error) {
	v := arg(args, 0)
	if runtime.IsNullish(v) {
		return "", nil
	}
	var opts []number.Option
	if len(args) > 1 {
		digits := int(runtime.ToNumber(args[1]))
		opts = append(opts, number.MinFractionDigits(digits), number.MaxFractionDigits(digits))
	}
	return s.printer.Sprintf("%v", number.Decimal(runtime.ToNumber(v), opts...)), nil
}

func (s *set) percent(args []any) (any, error) {
	v := arg(args, 0)
	if runtime.IsNullish(v) {
		return "", nil
	}
	return s.printer.Sprintf("%v", number.Percent(runtime.ToNumber(v))), nil
}

// money is value|money or value|money('EUR').
func (s *set) money(args []any) (any, error) {
	v := arg(args, 0)
	if runtime.IsNullish(v) {
		return "", nil
	}
	unit := s.currency
	if len(args) > 1 {
		code := runtime.ToString(args[1])
		var err error
		if unit, err = currency.ParseISO(code); err != nil {
			return nil, fmt.Errorf("money: unknown currency %q", code)
		}
	}
	return s.printer.Sprintf("%v", currency.Symbol(unit.Amount(runtime.ToNumber(v)))), nil
}

// formatDate is value|date(style) with style short, medium, long or full,
// or a Go layout. Strings are parsed with dateparse; numbers are Unix
// seconds.
func (s *set) formatDate(args []any) (any, error) {
	v := arg(args, 0)
	if runtime.IsNullish(v) || v == "" {
		return "", nil
	}
	t, err := s.toTime(v)
	if err != nil {
		return nil, err
	}
	style := "medium"
	if len(args) > 1 {
		style = runtime.ToString(args[1])
	}
	return monday.Format(t.In(s.location), dateLayout(style, s.date), s.date), nil
}

func (s *set) toTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case *time.Time:
		return *x, nil
	case string:
		t, err := dateparse.ParseIn(strings.TrimSpace(x), s.location, dateparse.PreferMonthFirst(!dayFirst(s.date)))
		if err != nil {
			return time.Time{}, fmt.Errorf("date: %w", err)
		}
		return t, nil
	}
	if f := runtime.ToNumber(v); f == f {
		return time.Unix(int64(f), 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("date: cannot use %T as a date", v)
}

// markdown renders Markdown to HTML. The result is RawHTML, so it is
// sanitized on output unless wrapped in __setHTMLUnsafe.
func (s *set) markdown(args []any) (any, error) {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(runtime.ToString(arg(args, 0))), &buf); err != nil {
		return nil, fmt.Errorf("markdown: %w", err)
	}
	return runtime.RawHTML(strings.TrimSpace(buf.String())), nil
}
