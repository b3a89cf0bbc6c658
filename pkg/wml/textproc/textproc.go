// Package textproc splits raw template text into plain text, {{ expression }}
// and {[ translation ]} segments.
package textproc

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/sambeau/wml/pkg/wml/ast"
	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/parser"
	"github.com/sambeau/wml/pkg/wml/walker"
)

// Content is a bitmask of segment kinds a text location accepts.
type Content int

const (
	AllowText Content = 1 << iota
	AllowExpression
	AllowTranslation

	AllowAll = AllowText | AllowExpression | AllowTranslation
)

func (c Content) describe() string {
	var parts []string
	if c&AllowText != 0 {
		parts = append(parts, "text")
	}
	if c&AllowExpression != 0 {
		parts = append(parts, "expression")
	}
	if c&AllowTranslation != 0 {
		parts = append(parts, "translation")
	}
	if len(parts) == 0 {
		return "nothing"
	}
	return strings.Join(parts, " or ")
}

// Data is one processed segment.
type Data interface {
	Key() string
	// Placeholder renders the segment the way it appeared in the source.
	Placeholder() string
	setKey(string)
}

type keyed struct{ key string }

func (k *keyed) Key() string       { return k.key }
func (k *keyed) setKey(key string) { k.key = key }

// Text is a literal run of characters.
type Text struct {
	keyed
	Value string
	// Space marks boundary whitespace split off a promoted translation.
	Space bool
}

func (t *Text) Placeholder() string { return t.Value }

// Expression is a {{ ... }} segment.
type Expression struct {
	keyed
	// Source is the text between the brackets, untrimmed.
	Source  string
	Program *ast.Program
}

func (e *Expression) Placeholder() string { return "{{" + e.Source + "}}" }

// Translation is a {[ ... ]} segment or promoted text.
type Translation struct {
	keyed
	Text    string
	Context string
	// Raw is the source between the brackets, empty for promoted text.
	Raw      string
	Promoted bool
}

func (t *Translation) Placeholder() string {
	if t.Promoted {
		return t.Text
	}
	return "{[" + t.Raw + "]}"
}

// Options configure a Process call.
type Options struct {
	// Allowed restricts which segment kinds may appear. Zero means AllowAll.
	Allowed Content
	// TranslateText promotes a lone translatable text segment to a translation.
	TranslateText bool
	// KeyPrefix is prepended to every generated segment key.
	KeyPrefix string
	// Parser parses expression segments. Defaults to parser.Instance.
	Parser walker.Parser
	// Line and Column locate rawText in the template for error positions.
	Line   int
	Column int
}

type state int

const (
	inText state = iota
	inExpression
	inTranslation
)

// Process splits rawText into segments.
func Process(rawText string, opts Options) ([]Data, error) {
	if opts.Allowed == 0 {
		opts.Allowed = AllowAll
	}
	if opts.Parser == nil {
		opts.Parser = parser.Instance{}
	}

	segments, err := scan(rawText, opts)
	if err != nil {
		return nil, err
	}

	segments = mergeText(segments)

	for _, seg := range segments {
		if err := checkAllowed(seg, opts); err != nil {
			return nil, err
		}
	}

	if opts.TranslateText && len(segments) == 1 {
		if text, ok := segments[0].(*Text); ok && IsTranslatable(text.Value) {
			segments = promote(text.Value)
		}
	}

	if len(segments) == 0 {
		segments = []Data{&Text{Value: ""}}
	}

	for i, seg := range segments {
		seg.setKey(opts.KeyPrefix + strconv.Itoa(i) + "_")
	}
	return segments, nil
}

// scan walks rawText once, tracking string quotes inside expressions.
func scan(raw string, opts Options) ([]Data, error) {
	var out []Data
	var buf strings.Builder
	st := inText
	var quote rune
	escaped := false
	start := 0

	runes := []rune(raw)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		next := rune(0)
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch st {
		case inText:
			if ch == '{' && next == '{' {
				if buf.Len() > 0 {
					out = append(out, &Text{Value: buf.String()})
					buf.Reset()
				}
				st = inExpression
				start = i
				i++
				continue
			}
			if ch == '{' && next == '[' {
				if buf.Len() > 0 {
					out = append(out, &Text{Value: buf.String()})
					buf.Reset()
				}
				st = inTranslation
				start = i
				i++
				continue
			}
			buf.WriteRune(ch)

		case inExpression:
			if quote != 0 {
				buf.WriteRune(ch)
				switch {
				case escaped:
					escaped = false
				case ch == '\\':
					escaped = true
				case ch == quote:
					quote = 0
				}
				continue
			}
			if ch == '\'' || ch == '"' {
				quote = ch
				buf.WriteRune(ch)
				continue
			}
			if ch == '}' && next == '}' {
				seg, err := newExpression(buf.String(), opts)
				if err != nil {
					return nil, err
				}
				out = append(out, seg)
				buf.Reset()
				st = inText
				i++
				continue
			}
			buf.WriteRune(ch)

		case inTranslation:
			if ch == ']' && next == '}' {
				out = append(out, newTranslation(buf.String()))
				buf.Reset()
				st = inText
				i++
				continue
			}
			buf.WriteRune(ch)
		}
	}

	switch st {
	case inExpression:
		return nil, unterminated("expression", string(runes[start:]), opts)
	case inTranslation:
		return nil, unterminated("translation", string(runes[start:]), opts)
	}
	if buf.Len() > 0 {
		out = append(out, &Text{Value: buf.String()})
	}
	return out, nil
}

func unterminated(construct, text string, opts Options) error {
	return werrors.NewWithPosition("TEXT-0001", opts.Line, opts.Column, map[string]any{
		"Construct": construct,
		"Text":      text,
	})
}

func newExpression(source string, opts Options) (*Expression, error) {
	if strings.TrimSpace(source) == "" {
		return nil, werrors.NewWithPosition("PARSE-0006", opts.Line, opts.Column, nil)
	}
	program, err := opts.Parser.Parse(source)
	if err != nil {
		if werr, ok := werrors.As(err); ok && werr.Line > 0 && opts.Line > 0 {
			return nil, werr.WithPosition(opts.Line+werr.Line-1, werr.Column)
		}
		return nil, err
	}
	return &Expression{Source: source, Program: program}, nil
}

// newTranslation splits "context@@text" into its parts.
func newTranslation(raw string) *Translation {
	text := raw
	context := ""
	if idx := strings.Index(raw, "@@"); idx >= 0 {
		context = strings.TrimSpace(raw[:idx])
		text = raw[idx+2:]
	}
	return &Translation{Text: strings.TrimSpace(text), Context: context, Raw: raw}
}

func mergeText(in []Data) []Data {
	var out []Data
	for _, seg := range in {
		if t, ok := seg.(*Text); ok && len(out) > 0 {
			if prev, ok := out[len(out)-1].(*Text); ok {
				prev.Value += t.Value
				continue
			}
		}
		out = append(out, seg)
	}
	return out
}

func checkAllowed(seg Data, opts Options) error {
	var kind Content
	var name string
	switch s := seg.(type) {
	case *Text:
		// whitespace around expressions is always acceptable
		if strings.TrimSpace(s.Value) == "" {
			return nil
		}
		kind, name = AllowText, "text"
	case *Expression:
		kind, name = AllowExpression, "expression"
	case *Translation:
		kind, name = AllowTranslation, "translation"
	}
	if opts.Allowed&kind != 0 {
		return nil
	}
	return werrors.NewWithPosition("TEXT-0002", opts.Line, opts.Column, map[string]any{
		"Got":      name,
		"Expected": opts.Allowed.describe(),
	})
}

// IsTranslatable reports whether text reads as words a human would translate.
func IsTranslatable(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// promote turns plain text into a translation, keeping boundary whitespace
// as separate text nodes so layout is unchanged.
func promote(value string) []Data {
	trimmedLeft := strings.TrimLeftFunc(value, unicode.IsSpace)
	leading := value[:len(value)-len(trimmedLeft)]
	core := strings.TrimRightFunc(trimmedLeft, unicode.IsSpace)
	trailing := trimmedLeft[len(core):]

	var out []Data
	if leading != "" {
		out = append(out, &Text{Value: leading, Space: true})
	}
	out = append(out, &Translation{Text: core, Promoted: true})
	if trailing != "" {
		out = append(out, &Text{Value: trailing, Space: true})
	}
	return out
}

// Join reproduces source text from segments.
func Join(segments []Data) string {
	var sb strings.Builder
	for _, seg := range segments {
		sb.WriteString(seg.Placeholder())
	}
	return sb.String()
}

// HasTranslations reports whether any segment is a translation or calls the
// translation function.
func HasTranslations(segments []Data) bool {
	for _, seg := range segments {
		switch s := seg.(type) {
		case *Translation:
			return true
		case *Expression:
			if walker.ContainsTranslationFunction(s.Program) {
				return true
			}
		}
	}
	return false
}

// IsStatic reports whether segments contain only text.
func IsStatic(segments []Data) bool {
	for _, seg := range segments {
		if _, ok := seg.(*Text); !ok {
			return false
		}
	}
	return true
}

// SingleExpression returns the expression when segments are exactly one
// expression, optionally surrounded by whitespace.
func SingleExpression(segments []Data) (*Expression, bool) {
	var found *Expression
	for _, seg := range segments {
		switch s := seg.(type) {
		case *Expression:
			if found != nil {
				return nil, false
			}
			found = s
		case *Text:
			if strings.TrimSpace(s.Value) != "" {
				return nil, false
			}
		default:
			return nil, false
		}
	}
	return found, found != nil
}
