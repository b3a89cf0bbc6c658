// Package repl is an interactive shell for trying templates.
//
// A line starting with < is compiled as markup. Anything else is treated
// as an expression and compiled as {{ line }}. Both render against the
// session data, which :set changes.
package repl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/peterh/liner"

	"github.com/sambeau/wml/pkg/wml/builder"
	"github.com/sambeau/wml/pkg/wml/compiler"
	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/runtime"
)

const PROMPT = ">> "
const PROMPT_VDOM = "v> "
const CONTINUATION_PROMPT = ".. "

const LOGO = `
█░█░█ █▀▄▀█ █░░
▀▄▀▄▀ █░▀░█ █▄▄ `

// module is the name snippets are compiled under.
const module = "Repl"

var keywords = []string{
	"ws:if", "ws:else", "ws:for", "ws:partial", "ws:template",
	"true", "false", "null", "undefined", "rk", "resource",
}

// Session holds the state of one shell: the data snippets render against
// and the output mode.
type Session struct {
	compiler *compiler.Compiler
	out      io.Writer
	data     map[string]any
	vdom     bool
	desc     bool
}

// NewSession creates a session that compiles with c and writes to out.
func NewSession(c *compiler.Compiler, out io.Writer) *Session {
	return &Session{compiler: c, out: out, data: map[string]any{}}
}

// Start runs the shell with line editing, history and tab completion
// until the input ends or the user quits.
func Start(in io.Reader, out io.Writer, version string, c *compiler.Compiler) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)

	s := NewSession(c, out)
	line.SetCompleter(s.complete)

	historyFile := filepath.Join(os.TempDir(), ".wml_history")
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintf(out, "%s", LOGO)
	fmt.Fprintln(out, "v", version)
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Type 'exit' or Ctrl+D to quit")
	fmt.Fprintln(out, "Type ':help' for REPL commands")
	fmt.Fprintln(out, "")

	ctx := context.Background()
	var buf strings.Builder
	for {
		prompt := PROMPT
		if s.vdom {
			prompt = PROMPT_VDOM
		}
		if buf.Len() > 0 {
			prompt = CONTINUATION_PROMPT
		}
		input, err := line.Prompt(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted {
				if buf.Len() > 0 {
					fmt.Fprintln(out, "^C (cleared)")
				} else {
					fmt.Fprintln(out, "^C")
				}
				buf.Reset()
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(out, "\nGoodbye!")
				return
			}
			fmt.Fprintf(out, "Error reading input: %v\n", err)
			continue
		}

		trimmed := strings.TrimSpace(input)
		if buf.Len() == 0 {
			if trimmed == "exit" || trimmed == "quit" {
				fmt.Fprintln(out, "Goodbye!")
				return
			}
			if trimmed == "" {
				continue
			}
			if strings.HasPrefix(trimmed, ":") {
				line.AppendHistory(trimmed)
				s.Command(ctx, trimmed)
				continue
			}
		}

		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(input)
		full := buf.String()
		if needsMoreInput(full) {
			continue
		}
		line.AppendHistory(full)
		s.Eval(ctx, full)
		buf.Reset()
	}
}

// Source returns the markup compiled for input.
func Source(input string) string {
	trimmed := strings.TrimSpace(input)
	if strings.HasPrefix(trimmed, "<") {
		return input
	}
	return "{{ " + trimmed + " }}"
}

// Eval compiles input and prints what it renders. Errors are printed,
// not returned, so the shell keeps running.
func (s *Session) Eval(ctx context.Context, input string) {
	d, err := s.compiler.Compile(ctx, module, Source(input))
	if err != nil {
		s.printError(err)
		return
	}
	if s.desc {
		for _, b := range d.Bodies {
			fmt.Fprintln(s.out, builder.Disassemble(b))
		}
	}
	tmpl, err := runtime.New(d, s.compiler.Methods())
	if err != nil {
		s.printError(err)
		return
	}
	cfg := &runtime.GeneratorConfig{Registry: s.compiler.Registry()}
	if s.vdom {
		nodes, err := tmpl.RenderVDOM(s.data, cfg)
		if err != nil {
			s.printError(err)
			return
		}
		runtime.DumpNodes(s.out, nodes)
		return
	}
	html, err := tmpl.RenderString(s.data, cfg)
	if err != nil {
		s.printError(err)
		return
	}
	fmt.Fprintln(s.out, html)
}

// Command runs a : command.
func (s *Session) Command(ctx context.Context, cmd string) {
	name, arg, _ := strings.Cut(cmd, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case ":help", ":h", ":?":
		fmt.Fprintln(s.out, "REPL Commands:")
		fmt.Fprintln(s.out, "  :help, :h, :?       Show this help")
		fmt.Fprintln(s.out, "  :data               Show the render data")
		fmt.Fprintln(s.out, "  :set name <json>    Set a data field (plain text if not JSON)")
		fmt.Fprintln(s.out, "  :unset name         Remove a data field")
		fmt.Fprintln(s.out, "  :clear              Clear the render data")
		fmt.Fprintln(s.out, "  :load Module        Render a template from the root")
		fmt.Fprintln(s.out, "  :vdom               Toggle VDOM output")
		fmt.Fprintln(s.out, "  :desc               Toggle printing compiled bodies")
		fmt.Fprintln(s.out, "  exit, quit          Exit the REPL")

	case ":data", ":env":
		s.printData()

	case ":set":
		field, value, ok := strings.Cut(arg, " ")
		if !ok || field == "" {
			fmt.Fprintln(s.out, "usage: :set name <json>")
			return
		}
		s.data[field] = parseValue(value)
		fmt.Fprintln(s.out, "OK")

	case ":unset":
		delete(s.data, arg)
		fmt.Fprintln(s.out, "OK")

	case ":clear":
		s.data = map[string]any{}
		fmt.Fprintln(s.out, "Data cleared")

	case ":load":
		if arg == "" {
			fmt.Fprintln(s.out, "usage: :load Module")
			return
		}
		tmpl, err := s.compiler.Load(ctx, arg)
		if err != nil {
			s.printError(err)
			return
		}
		out, err := tmpl.RenderString(s.data, &runtime.GeneratorConfig{Registry: s.compiler.Registry()})
		if err != nil {
			s.printError(err)
			return
		}
		fmt.Fprintln(s.out, out)

	case ":vdom":
		s.vdom = !s.vdom
		if s.vdom {
			fmt.Fprintln(s.out, "VDOM output ON")
		} else {
			fmt.Fprintln(s.out, "VDOM output OFF (HTML)")
		}

	case ":desc":
		s.desc = !s.desc
		if s.desc {
			fmt.Fprintln(s.out, "Compiled bodies ON")
		} else {
			fmt.Fprintln(s.out, "Compiled bodies OFF")
		}

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type :help for commands)\n", cmd)
	}
}

// parseValue reads a JSON value, falling back to the raw text.
func parseValue(text string) any {
	text = strings.TrimSpace(text)
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return text
	}
	return v
}

func (s *Session) printData() {
	if len(s.data) == 0 {
		fmt.Fprintln(s.out, "(no data)")
		return
	}
	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		value, err := json.Marshal(s.data[name])
		text := string(value)
		if err != nil {
			text = runtime.ToString(s.data[name])
		}
		if len(text) > 60 {
			text = text[:57] + "..."
		}
		fmt.Fprintf(s.out, "  %s = %s\n", name, text)
	}
}

func (s *Session) printError(err error) {
	if werr, ok := werrors.As(err); ok {
		io.WriteString(s.out, werr.PrettyString())
		io.WriteString(s.out, "\n")
		return
	}
	fmt.Fprintf(s.out, "Error: %v\n", err)
}

// complete returns completion suggestions for the last word of line:
// keywords, decorators after a pipe and registered components after <.
func (s *Session) complete(line string) []string {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	if last := line[len(line)-1]; last == ' ' || last == '\t' {
		return nil
	}
	cut := strings.LastIndexAny(line, " \t|<{(")
	head, word := line[:cut+1], line[cut+1:]

	var words []string
	switch {
	case strings.HasSuffix(head, "|"):
		for name := range s.compiler.Methods().Decorators {
			words = append(words, name)
		}
	case strings.HasSuffix(head, "<"):
		words = append(words, s.compiler.Registry().Names()...)
		words = append(words, keywords[:5]...)
	default:
		words = slices.Clone(keywords)
	}
	slices.Sort(words)

	var matches []string
	for _, w := range words {
		if strings.HasPrefix(w, word) {
			matches = append(matches, head+w)
		}
	}
	return matches
}

// needsMoreInput reports whether input has unclosed {{ }} blocks,
// parentheses or tags.
func needsMoreInput(input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}

	mustaches, parens, tags := 0, 0, 0
	var quote byte
	for i := 0; i < len(input); i++ {
		ch := input[i]
		if quote != 0 {
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
			continue
		}
		switch {
		case strings.HasPrefix(input[i:], "{{"):
			mustaches++
			i++
		case strings.HasPrefix(input[i:], "}}"):
			mustaches--
			i++
		case mustaches > 0 && (ch == '"' || ch == '\''):
			quote = ch
		case mustaches > 0 && ch == '(':
			parens++
		case mustaches > 0 && ch == ')':
			parens--
		case mustaches == 0 && ch == '<' && i+1 < len(input):
			next := input[i+1]
			if next == '/' {
				if i+2 < len(input) && isTagNameStart(input[i+2]) {
					tags--
				}
			} else if next == '!' {
				// comments and doctypes do not nest
			} else if isTagNameStart(next) {
				end := findTagEnd(input, i)
				switch {
				case end < 0:
					return true
				case input[end-1] == '/' || isVoid(tagName(input[i+1:end])):
				default:
					tags++
				}
				i = end
			}
		}
	}
	return mustaches > 0 || parens > 0 || tags > 0
}

func isTagNameStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func tagName(tag string) string {
	if i := strings.IndexAny(tag, " \t\n/>"); i >= 0 {
		return tag[:i]
	}
	return tag
}

var voidElements = []string{
	"area", "base", "br", "col", "embed", "hr", "img", "input",
	"link", "meta", "source", "track", "wbr",
}

func isVoid(name string) bool {
	return slices.Contains(voidElements, strings.ToLower(name))
}

// findTagEnd returns the position of the > closing the tag at pos, or -1.
func findTagEnd(input string, pos int) int {
	var quote byte
	for i := pos + 1; i < len(input); i++ {
		ch := input[i]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			continue
		}
		if ch == '"' || ch == '\'' {
			quote = ch
			continue
		}
		if ch == '>' {
			return i
		}
	}
	return -1
}
