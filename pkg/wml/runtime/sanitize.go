package runtime

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// dropped elements lose their content as well as their tags
var droppedElements = map[string]bool{
	"script": true,
	"style":  true,
	"iframe": true,
	"object": true,
	"embed":  true,
}

// Escape escapes text for an HTML text node or quoted attribute.
func (m *Methods) Escape(s string) string { return html.EscapeString(s) }

// Sanitize removes script-capable markup from html: script-like elements,
// on* handler attributes and javascript: URLs.
func (m *Methods) Sanitize(src string) RawHTML {
	z := html.NewTokenizer(strings.NewReader(src))
	var b strings.Builder
	skip := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() == io.EOF {
				return RawHTML(b.String())
			}
			return RawHTML(html.EscapeString(src))
		}
		tok := z.Token()
		switch tt {
		case html.StartTagToken:
			if droppedElements[tok.Data] {
				skip++
				continue
			}
		case html.EndTagToken:
			if droppedElements[tok.Data] {
				if skip > 0 {
					skip--
				}
				continue
			}
		case html.SelfClosingTagToken:
			if droppedElements[tok.Data] {
				continue
			}
		case html.CommentToken:
			continue
		}
		if skip > 0 {
			continue
		}
		if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			tok.Attr = safeAttrs(tok.Attr)
		}
		b.WriteString(tok.String())
	}
}

func safeAttrs(attrs []html.Attribute) []html.Attribute {
	out := attrs[:0]
	for _, a := range attrs {
		key := strings.ToLower(a.Key)
		if strings.HasPrefix(key, "on") {
			continue
		}
		if key == "href" || key == "src" || key == "action" {
			if strings.HasPrefix(strings.ToLower(strings.TrimSpace(a.Val)), "javascript:") {
				continue
			}
		}
		out = append(out, a)
	}
	return out
}
