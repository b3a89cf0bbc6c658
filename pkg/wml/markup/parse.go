package markup

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/html"

	"github.com/sambeau/wml/pkg/wml/ast"
	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/parser"
	"github.com/sambeau/wml/pkg/wml/textproc"
	"github.com/sambeau/wml/pkg/wml/walker"
)

// Options configure Parse.
type Options struct {
	// FileName is attached to errors.
	FileName string
	// TranslateText promotes plain text nodes to translations.
	TranslateText bool
	// Parser parses expressions. Defaults to parser.Instance.
	Parser walker.Parser
}

// rawNode is the untyped tree built from tokenizer output.
type rawNode struct {
	tag         string // empty for text
	attrs       []rawAttr
	children    []*rawNode
	text        string
	selfClosing bool
	line, col   int
}

type rawAttr struct {
	name      string
	value     string
	line, col int
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// Parse builds the markup tree of a template.
func Parse(source string, opts Options) ([]Node, error) {
	if opts.Parser == nil {
		opts.Parser = parser.Instance{}
	}
	m := mask(source)
	roots, err := buildRaw(m, opts)
	if err != nil {
		return nil, withFile(err, opts.FileName)
	}
	c := &converter{opts: opts, masked: m}
	nodes, err := c.convertList(roots, "")
	if err != nil {
		return nil, withFile(err, opts.FileName)
	}
	return nodes, nil
}

func withFile(err error, file string) error {
	if file == "" {
		return err
	}
	if werr, ok := werrors.As(err); ok {
		return werr.WithFile(file)
	}
	return fmt.Errorf("%s: %w", file, err)
}

// masked holds the source with every {{ }} and {[ ]} region replaced by an
// opaque placeholder so the HTML tokenizer never looks inside expressions.
type masked struct {
	text      string
	originals []string
	lineStart []int
}

const (
	maskOpen    = '\uE000'
	maskClose   = '\uE001'
	maskNewline = '\uE002'
)

var maskPattern = regexp.MustCompile(`\x{E000}([0-9]+)\x{E001}\x{E002}*`)

func mask(source string) *masked {
	m := &masked{}
	var sb strings.Builder
	runes := []rune(source)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '{' || i+1 >= len(runes) || (runes[i+1] != '{' && runes[i+1] != '[') {
			sb.WriteRune(runes[i])
			continue
		}
		end := findClose(runes, i)
		if end < 0 {
			sb.WriteRune(runes[i])
			continue
		}
		region := string(runes[i : end+1])
		sb.WriteRune(maskOpen)
		sb.WriteString(strconv.Itoa(len(m.originals)))
		sb.WriteRune(maskClose)
		sb.WriteString(strings.Repeat(string(maskNewline), strings.Count(region, "\n")))
		m.originals = append(m.originals, region)
		i = end
	}
	m.text = sb.String()

	m.lineStart = []int{0}
	for i, r := range m.text {
		if r == '\n' || r == maskNewline {
			m.lineStart = append(m.lineStart, i+len(string(r)))
		}
	}
	return m
}

// findClose returns the rune index of the final bracket of the region
// starting at i, or -1.
func findClose(runes []rune, i int) int {
	expression := runes[i+1] == '{'
	var quote rune
	escaped := false
	for j := i + 2; j < len(runes); j++ {
		ch := runes[j]
		if expression && quote != 0 {
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
		if expression && (ch == '\'' || ch == '"') {
			quote = ch
			continue
		}
		if j+1 < len(runes) {
			if expression && ch == '}' && runes[j+1] == '}' {
				return j + 1
			}
			if !expression && ch == ']' && runes[j+1] == '}' {
				return j + 1
			}
		}
	}
	return -1
}

func (m *masked) unmask(s string) string {
	if !strings.ContainsRune(s, maskOpen) {
		return s
	}
	return maskPattern.ReplaceAllStringFunc(s, func(match string) string {
		sub := maskPattern.FindStringSubmatch(match)
		idx, err := strconv.Atoi(sub[1])
		if err != nil || idx >= len(m.originals) {
			return match
		}
		return m.originals[idx]
	})
}

// position converts a byte offset of the masked text to a 1-based line and column.
func (m *masked) position(offset int) (int, int) {
	lo, hi := 0, len(m.lineStart)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if m.lineStart[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1, offset - m.lineStart[lo] + 1
}

func buildRaw(m *masked, opts Options) ([]*rawNode, error) {
	root := &rawNode{tag: "#root"}
	stack := []*rawNode{root}
	top := func() *rawNode { return stack[len(stack)-1] }

	z := html.NewTokenizer(strings.NewReader(m.text))
	offset := 0
	for {
		tt := z.Next()
		raw := string(z.Raw())
		line, col := m.position(offset)
		offset += len(raw)

		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				if len(stack) > 1 {
					open := top()
					return nil, werrors.NewWithPosition("MARKUP-0002", open.line, open.col, map[string]any{"Tag": open.tag})
				}
				return root.children, nil
			}
			return nil, werrors.Wrap("MARKUP-0002", z.Err(), map[string]any{"Tag": top().tag})

		case html.TextToken:
			text := m.unmask(html.UnescapeString(raw))
			parent := top()
			if n := len(parent.children); n > 0 && parent.children[n-1].tag == "" {
				parent.children[n-1].text += text
				continue
			}
			parent.children = append(parent.children, &rawNode{text: text, line: line, col: col})

		case html.StartTagToken, html.SelfClosingTagToken:
			node := scanTag(raw, line, col, m)
			node.selfClosing = tt == html.SelfClosingTagToken
			top().children = append(top().children, node)
			if !node.selfClosing && !voidElements[strings.ToLower(node.tag)] {
				stack = append(stack, node)
			}

		case html.EndTagToken:
			name := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(raw, "</"), ">"))
			if voidElements[strings.ToLower(name)] {
				continue
			}
			idx := -1
			for i := len(stack) - 1; i > 0; i-- {
				if stack[i].tag == name {
					idx = i
					break
				}
			}
			if idx < 0 {
				return nil, werrors.NewWithPosition("MARKUP-0001", line, col, map[string]any{"Tag": name})
			}
			if idx != len(stack)-1 {
				open := top()
				return nil, werrors.NewWithPosition("MARKUP-0002", open.line, open.col, map[string]any{"Tag": open.tag})
			}
			stack = stack[:idx]

		case html.CommentToken, html.DoctypeToken:
			// not part of the template tree
		}
	}
}

// scanTag reads the tag name and attributes from the raw start tag, keeping
// their original case.
func scanTag(raw string, line, col int, m *masked) *rawNode {
	node := &rawNode{line: line, col: col}
	s := strings.TrimPrefix(raw, "<")
	s = strings.TrimSuffix(s, ">")
	s = strings.TrimSuffix(s, "/")

	pos := 0
	for pos < len(s) && !isTagSpace(s[pos]) && s[pos] != '/' {
		pos++
	}
	node.tag = s[:pos]

	for pos < len(s) {
		for pos < len(s) && (isTagSpace(s[pos]) || s[pos] == '/') {
			pos++
		}
		if pos >= len(s) {
			break
		}
		start := pos
		for pos < len(s) && !isTagSpace(s[pos]) && s[pos] != '=' && s[pos] != '/' {
			pos++
		}
		attr := rawAttr{name: s[start:pos], line: line, col: col + 1 + start}
		for pos < len(s) && isTagSpace(s[pos]) {
			pos++
		}
		if pos < len(s) && s[pos] == '=' {
			pos++
			for pos < len(s) && isTagSpace(s[pos]) {
				pos++
			}
			if pos < len(s) && (s[pos] == '"' || s[pos] == '\'') {
				quote := s[pos]
				pos++
				vstart := pos
				for pos < len(s) && s[pos] != quote {
					pos++
				}
				attr.value = s[vstart:pos]
				pos++
			} else {
				vstart := pos
				for pos < len(s) && !isTagSpace(s[pos]) {
					pos++
				}
				attr.value = s[vstart:pos]
			}
		}
		attr.value = m.unmask(html.UnescapeString(attr.value))
		if attr.name != "" {
			node.attrs = append(node.attrs, attr)
		}
	}
	return node
}

func isTagSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

// isComponentName reports whether a tag refers to a component rather than an
// HTML element: a capitalized name or a module path.
func isComponentName(tag string) bool {
	if strings.HasPrefix(tag, "ws:") {
		return false
	}
	if strings.ContainsAny(tag, "./") {
		return true
	}
	for _, r := range tag {
		return unicode.IsUpper(r)
	}
	return false
}

var directives = map[string]bool{
	"ws:if": true, "ws:else": true, "ws:for": true, "ws:template": true, "ws:partial": true,
}

var typedValues = map[string]ValueType{
	"ws:String":  StringValue,
	"ws:Number":  NumberValue,
	"ws:Boolean": BooleanValue,
	"ws:Value":   AnyValue,
	"ws:Array":   ArrayValue,
	"ws:Object":  ObjectValue,
}

type converter struct {
	opts   Options
	masked *masked
}

func isBlank(n *rawNode) bool {
	return n.tag == "" && strings.TrimSpace(n.text) == ""
}

// convertList converts siblings and assigns their keys.
func (c *converter) convertList(raws []*rawNode, prefix string) ([]Node, error) {
	var out []Node
	var lastIf *If
	for i, raw := range raws {
		if raw.tag == "" {
			// formatting whitespace between tags is dropped
			if isBlank(raw) && (strings.Contains(raw.text, "\n") || i == 0 || i == len(raws)-1) {
				continue
			}
		}
		if raw.tag == "ws:else" {
			if lastIf == nil {
				return nil, werrors.NewWithPosition("MARKUP-0004", raw.line, raw.col, nil)
			}
			key := prefix + strconv.Itoa(len(out)) + "_"
			el, err := c.convertElse(raw, key)
			if err != nil {
				return nil, err
			}
			tail := &lastIf.Else
			for *tail != nil {
				if (*tail).Test == nil {
					return nil, werrors.NewWithPosition("MARKUP-0004", raw.line, raw.col, nil)
				}
				tail = &(*tail).Else
			}
			*tail = el
			continue
		}

		key := prefix + strconv.Itoa(len(out)) + "_"
		node, err := c.convert(raw, key)
		if err != nil {
			return nil, err
		}
		if node == nil {
			continue
		}
		if ifNode, ok := node.(*If); ok {
			lastIf = ifNode
		} else if !isBlank(raw) {
			lastIf = nil
		}
		out = append(out, node)
	}
	return out, nil
}

func (c *converter) convert(raw *rawNode, key string) (Node, error) {
	if raw.tag == "" {
		segments, err := textproc.Process(raw.text, textproc.Options{
			TranslateText: c.opts.TranslateText,
			KeyPrefix:     key,
			Parser:        c.opts.Parser,
			Line:          raw.line,
			Column:        raw.col,
		})
		if err != nil {
			return nil, err
		}
		text := &Text{Meta: newMeta(raw.line, raw.col), Segments: segments}
		text.Key = key
		return text, nil
	}

	switch raw.tag {
	case "ws:if":
		return c.convertIf(raw, key)
	case "ws:for":
		return c.convertFor(raw, key)
	case "ws:template":
		return c.convertTemplate(raw, key)
	case "ws:partial":
		return c.convertPartial(raw, key)
	}

	if strings.HasPrefix(raw.tag, "ws:") {
		return nil, werrors.NewWithPosition("MARKUP-0007", raw.line, raw.col, map[string]any{"Tag": raw.tag})
	}

	if isComponentName(raw.tag) {
		return c.convertComponent(raw, key)
	}

	el := &Element{Meta: newMeta(raw.line, raw.col), Name: raw.tag, Void: voidElements[strings.ToLower(raw.tag)]}
	el.Key = key
	attrs, err := c.convertAttributes(raw.attrs)
	if err != nil {
		return nil, err
	}
	el.Attributes = attrs
	el.Children, err = c.convertList(raw.children, key)
	if err != nil {
		return nil, err
	}
	return el, nil
}

func (c *converter) attr(raw *rawNode, name string) (rawAttr, bool) {
	for _, a := range raw.attrs {
		if a.name == name {
			return a, true
		}
	}
	return rawAttr{}, false
}

func (c *converter) requireAttr(raw *rawNode, name string) (rawAttr, error) {
	a, ok := c.attr(raw, name)
	if !ok || strings.TrimSpace(a.value) == "" {
		return rawAttr{}, werrors.NewWithPosition("MARKUP-0003", raw.line, raw.col, map[string]any{
			"Tag":       raw.tag,
			"Attribute": name,
		})
	}
	return a, nil
}

// parseExpressionValue parses an attribute holding a single expression,
// with or without {{ }} around it.
func (c *converter) parseExpressionValue(a rawAttr) (*ast.Program, error) {
	src := strings.TrimSpace(a.value)
	if strings.HasPrefix(src, "{{") && strings.HasSuffix(src, "}}") {
		src = src[2 : len(src)-2]
	}
	if strings.TrimSpace(src) == "" {
		return nil, werrors.NewWithPosition("PARSE-0006", a.line, a.col, nil)
	}
	program, err := c.opts.Parser.Parse(src)
	if err != nil {
		if werr, ok := werrors.As(err); ok {
			return nil, werr.WithPosition(a.line, a.col)
		}
		return nil, err
	}
	return program, nil
}

func (c *converter) convertIf(raw *rawNode, key string) (Node, error) {
	data, err := c.requireAttr(raw, "data")
	if err != nil {
		return nil, err
	}
	test, err := c.parseExpressionValue(data)
	if err != nil {
		return nil, err
	}
	node := &If{Meta: newMeta(raw.line, raw.col), Test: test}
	node.Key = key
	node.Children, err = c.convertList(raw.children, key)
	return node, err
}

func (c *converter) convertElse(raw *rawNode, key string) (*Else, error) {
	node := &Else{Meta: newMeta(raw.line, raw.col)}
	node.Key = key
	if data, ok := c.attr(raw, "data"); ok {
		test, err := c.parseExpressionValue(data)
		if err != nil {
			return nil, err
		}
		node.Test = test
	}
	var err error
	node.Children, err = c.convertList(raw.children, key)
	return node, err
}

var foreachPattern = regexp.MustCompile(`^\s*([A-Za-z_$][\w$]*)\s*(?:,\s*([A-Za-z_$][\w$]*)\s*)?\s+in\s+([\s\S]+)$`)

func (c *converter) convertFor(raw *rawNode, key string) (Node, error) {
	data, err := c.requireAttr(raw, "data")
	if err != nil {
		return nil, err
	}
	src := strings.TrimSpace(data.value)
	if strings.HasPrefix(src, "{{") && strings.HasSuffix(src, "}}") {
		src = strings.TrimSpace(src[2 : len(src)-2])
	}

	if m := foreachPattern.FindStringSubmatch(src); m != nil {
		collection, err := c.parseExpressionValue(rawAttr{value: m[3], line: data.line, col: data.col})
		if err != nil {
			return nil, err
		}
		node := &Foreach{Meta: newMeta(raw.line, raw.col), Collection: collection}
		if m[2] != "" {
			node.Index, node.Iterator = m[1], m[2]
		} else {
			node.Iterator = m[1]
		}
		node.Key = key
		node.Children, err = c.convertList(raw.children, key)
		return node, err
	}

	clauses := splitClauses(src)
	if len(clauses) != 3 {
		return nil, werrors.NewWithPosition("MARKUP-0005", data.line, data.col, map[string]any{"Data": data.value})
	}
	node := &For{Meta: newMeta(raw.line, raw.col)}
	node.Key = key
	programs := []**ast.Program{&node.Init, &node.Test, &node.Update}
	for i, clause := range clauses {
		if strings.TrimSpace(clause) == "" {
			continue
		}
		program, err := c.parseExpressionValue(rawAttr{value: clause, line: data.line, col: data.col})
		if err != nil {
			return nil, err
		}
		*programs[i] = program
	}
	if node.Test == nil {
		return nil, werrors.NewWithPosition("MARKUP-0005", data.line, data.col, map[string]any{"Data": data.value})
	}
	node.Names = assignedNames(node.Init, node.Update)
	node.Children, err = c.convertList(raw.children, key)
	return node, err
}

// splitClauses splits on ';' outside of string literals.
func splitClauses(src string) []string {
	var parts []string
	var quote rune
	escaped := false
	start := 0
	for i, ch := range src {
		if quote != 0 {
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
		switch ch {
		case '\'', '"':
			quote = ch
		case ';':
			parts = append(parts, src[start:i])
			start = i + 1
		}
	}
	return append(parts, src[start:])
}

// assignedNames returns identifiers assigned by loop clauses.
func assignedNames(programs ...*ast.Program) []string {
	var names []string
	seen := map[string]bool{}
	add := func(target ast.Expression) {
		if id, ok := target.(*ast.Identifier); ok && !seen[id.Name] {
			seen[id.Name] = true
			names = append(names, id.Name)
		}
	}
	for _, p := range programs {
		if p == nil {
			continue
		}
		walker.Walk(p, &walker.Hooks{
			AssignmentExpression: func(a *ast.AssignmentExpression) { add(a.Target) },
			UpdateExpression:     func(u *ast.UpdateExpression) { add(u.Target) },
		})
	}
	return names
}

func (c *converter) convertTemplate(raw *rawNode, key string) (Node, error) {
	name, err := c.requireAttr(raw, "name")
	if err != nil {
		return nil, err
	}
	node := &Template{Meta: newMeta(raw.line, raw.col), Name: strings.TrimSpace(name.value)}
	node.Key = key
	node.Children, err = c.convertList(raw.children, key)
	return node, err
}

func (c *converter) convertPartial(raw *rawNode, key string) (Node, error) {
	tmpl, err := c.requireAttr(raw, "template")
	if err != nil {
		return nil, err
	}
	node := &Partial{Meta: newMeta(raw.line, raw.col)}
	node.Key = key
	value := strings.TrimSpace(tmpl.value)
	switch {
	case strings.Contains(value, "{{"):
		node.Kind = DynamicPartial
		node.Expression, err = c.parseExpressionValue(tmpl)
		if err != nil {
			return nil, err
		}
	case strings.ContainsAny(value, "!/."):
		node.Kind = StaticPartial
		node.Template = value
	default:
		node.Kind = InlinePartial
		node.Template = value
	}

	var rest []rawAttr
	for _, a := range raw.attrs {
		if a.name != "template" {
			rest = append(rest, a)
		}
	}
	node.Attributes, err = c.convertAttributes(rest)
	if err != nil {
		return nil, err
	}
	node.Options, node.Contents, err = c.convertComponentBody(raw, key)
	return node, err
}

func (c *converter) convertComponent(raw *rawNode, key string) (Node, error) {
	node := &Component{Meta: newMeta(raw.line, raw.col), Name: raw.tag}
	node.Key = key
	var err error
	node.Attributes, err = c.convertAttributes(raw.attrs)
	if err != nil {
		return nil, err
	}
	node.Options, node.Contents, err = c.convertComponentBody(raw, key)
	return node, err
}

// convertComponentBody sorts component children into typed options, named
// content options and the implicit "content" option.
func (c *converter) convertComponentBody(raw *rawNode, key string) ([]*Option, []*ContentOption, error) {
	var options []*Option
	var contents []*ContentOption
	var loose []*rawNode

	for _, child := range raw.children {
		if !strings.HasPrefix(child.tag, "ws:") || directives[child.tag] {
			loose = append(loose, child)
			continue
		}
		name := strings.TrimPrefix(child.tag, "ws:")
		optKey := key + name + "_"
		if typed := onlyTyped(child); typed != nil {
			value, err := c.convertValue(typed, optKey)
			if err != nil {
				return nil, nil, err
			}
			opt := &Option{Meta: newMeta(child.line, child.col), Name: name, Value: *value}
			opt.Key = optKey
			options = append(options, opt)
			continue
		}
		co := &ContentOption{Meta: newMeta(child.line, child.col), Name: name}
		co.Key = optKey
		var err error
		co.Children, err = c.convertList(child.children, optKey)
		if err != nil {
			return nil, nil, err
		}
		contents = append(contents, co)
	}

	hasContent := false
	for _, n := range loose {
		if !isBlank(n) {
			hasContent = true
			break
		}
	}
	if hasContent {
		co := &ContentOption{Meta: newMeta(raw.line, raw.col), Name: "content"}
		co.Key = key + "content_"
		var err error
		co.Children, err = c.convertList(loose, co.Key)
		if err != nil {
			return nil, nil, err
		}
		contents = append(contents, co)
	}
	return options, contents, nil
}

// onlyTyped returns the single typed value child of an option tag, if that is
// all it contains.
func onlyTyped(n *rawNode) *rawNode {
	var found *rawNode
	for _, child := range n.children {
		if isBlank(child) {
			continue
		}
		if _, ok := typedValues[child.tag]; !ok || found != nil {
			return nil
		}
		found = child
	}
	return found
}

func (c *converter) convertValue(raw *rawNode, key string) (*Value, error) {
	typ := typedValues[raw.tag]
	value := &Value{Type: typ}
	switch typ {
	case ArrayValue:
		i := 0
		for _, child := range raw.children {
			if isBlank(child) {
				continue
			}
			if _, ok := typedValues[child.tag]; !ok {
				return nil, werrors.NewWithPosition("MARKUP-0008", child.line, child.col, map[string]any{
					"Type": "Array", "Expected": "typed values such as <ws:String>",
				})
			}
			item, err := c.convertValue(child, key+strconv.Itoa(i)+"_")
			if err != nil {
				return nil, err
			}
			value.Items = append(value.Items, item)
			i++
		}
	case ObjectValue:
		for _, child := range raw.children {
			if isBlank(child) {
				continue
			}
			typed := onlyTyped(child)
			if !strings.HasPrefix(child.tag, "ws:") || typed == nil {
				return nil, werrors.NewWithPosition("MARKUP-0008", child.line, child.col, map[string]any{
					"Type": "Object", "Expected": "named options holding typed values",
				})
			}
			name := strings.TrimPrefix(child.tag, "ws:")
			inner, err := c.convertValue(typed, key+name+"_")
			if err != nil {
				return nil, err
			}
			prop := &Option{Meta: newMeta(child.line, child.col), Name: name, Value: *inner}
			prop.Key = key + name + "_"
			value.Properties = append(value.Properties, prop)
		}
	default:
		var sb strings.Builder
		for _, child := range raw.children {
			if child.tag != "" {
				return nil, werrors.NewWithPosition("MARKUP-0008", child.line, child.col, map[string]any{
					"Type": string(typ), "Expected": "text content",
				})
			}
			sb.WriteString(child.text)
		}
		text := sb.String()
		if typ != StringValue {
			text = strings.TrimSpace(text)
		}
		segments, err := textproc.Process(text, textproc.Options{
			KeyPrefix: key,
			Parser:    c.opts.Parser,
			Line:      raw.line,
			Column:    raw.col,
		})
		if err != nil {
			return nil, err
		}
		value.Segments = segments
	}
	return value, nil
}

func (c *converter) convertAttributes(raws []rawAttr) ([]*Attribute, error) {
	var out []*Attribute
	for _, a := range raws {
		attr := &Attribute{Raw: a.value, Line: a.line, Column: a.col}
		switch {
		case strings.HasPrefix(a.name, "attr:"):
			attr.Kind, attr.Name = PrefixedAttr, strings.TrimPrefix(a.name, "attr:")
		case strings.HasPrefix(a.name, "bind:"):
			attr.Kind, attr.Name = BindAttr, strings.TrimPrefix(a.name, "bind:")
		case strings.HasPrefix(a.name, "on:"):
			attr.Kind, attr.Name = EventAttr, strings.TrimPrefix(a.name, "on:")
		default:
			attr.Kind, attr.Name = PlainAttr, a.name
		}

		switch attr.Kind {
		case BindAttr, EventAttr:
			program, err := c.parseExpressionValue(a)
			if err != nil {
				return nil, err
			}
			attr.Program = program
		default:
			segments, err := textproc.Process(a.value, textproc.Options{
				Parser: c.opts.Parser,
				Line:   a.line,
				Column: a.col,
			})
			if err != nil {
				return nil, err
			}
			attr.Segments = segments
		}
		out = append(out, attr)
	}
	return out, nil
}
