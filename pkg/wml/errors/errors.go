// Package errors provides structured error types for the wml template compiler.
//
// This package defines WmlError, a unified error type that represents expression
// syntax errors, compile-time contract violations, runtime evaluation errors and
// dependency failures with enough metadata for display and programmatic handling.
package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// ErrorClass categorizes errors for filtering and templating.
type ErrorClass string

const (
	ClassParse      ErrorClass = "parse"      // Expression/markup syntax errors
	ClassSemantic   ErrorClass = "semantic"   // Compile-time contract violations
	ClassContainer  ErrorClass = "container"  // Malformed lexical container usage
	ClassCodegen    ErrorClass = "codegen"    // Code generation failures
	ClassRuntime    ErrorClass = "runtime"    // Evaluation-time errors
	ClassDependency ErrorClass = "dependency" // Dependency load failures
	ClassConfig     ErrorClass = "config"     // Configuration problems
	ClassIO         ErrorClass = "io"         // File and store operations
)

// RuntimeKind distinguishes evaluation-time failures.
type RuntimeKind string

const (
	KindNone           RuntimeKind = ""
	KindNotAFunction   RuntimeKind = "not-a-function"
	KindNullProperty   RuntimeKind = "null-property"
	KindInvalidContext RuntimeKind = "invalid-context"
)

// WmlError represents any error raised by the compiler or the runtime.
type WmlError struct {
	Class   ErrorClass     `json:"class"`
	Code    string         `json:"code"`
	Kind    RuntimeKind    `json:"kind,omitempty"`
	Message string         `json:"message"`
	Hints   []string       `json:"hints,omitempty"`
	Line    int            `json:"line"`           // 1-based line (0 if unknown)
	Column  int            `json:"column"`         // 1-based column (0 if unknown)
	File    string         `json:"file,omitempty"` // Template file (if known)
	Data    map[string]any `json:"data,omitempty"` // Template variables
	Cause   error          `json:"-"`
}

// Error implements the error interface.
func (e *WmlError) Error() string {
	return e.String()
}

// Unwrap returns the wrapped cause, if any.
func (e *WmlError) Unwrap() error {
	return e.Cause
}

// String returns a formatted string representation of the error.
func (e *WmlError) String() string {
	var sb strings.Builder

	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteString(": ")
	}
	if e.Line > 0 {
		sb.WriteString(fmt.Sprintf("line %d, column %d: ", e.Line, e.Column))
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// PrettyString returns a multi-line formatted string for display.
func (e *WmlError) PrettyString() string {
	var sb strings.Builder

	switch e.Class {
	case ClassParse:
		sb.WriteString("Syntax error")
	case ClassRuntime:
		sb.WriteString("Runtime error")
	default:
		sb.WriteString("Compile error")
	}

	if e.File != "" {
		sb.WriteString(":\n  in: ")
		sb.WriteString(e.File)
		if e.Line > 0 {
			sb.WriteString(fmt.Sprintf("\n  at: line %d, column %d", e.Line, e.Column))
		}
		sb.WriteString("\n  ")
	} else if e.Line > 0 {
		sb.WriteString(fmt.Sprintf(": line %d, column %d\n  ", e.Line, e.Column))
	} else {
		sb.WriteString(":\n  ")
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// ToJSON returns the error as JSON bytes.
func (e *WmlError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// WithFile returns a copy of the error with the file path set.
func (e *WmlError) WithFile(file string) *WmlError {
	copy := *e
	copy.File = file
	return &copy
}

// WithPosition returns a copy of the error with line and column set.
func (e *WmlError) WithPosition(line, column int) *WmlError {
	copy := *e
	copy.Line = line
	copy.Column = column
	return &copy
}

// IsParseError returns true if this is a syntax error.
func (e *WmlError) IsParseError() bool {
	return e.Class == ClassParse
}

// IsRuntimeError returns true if this is an evaluation-time error.
func (e *WmlError) IsRuntimeError() bool {
	return e.Class == ClassRuntime
}

// ErrorDef defines an error in the catalog.
type ErrorDef struct {
	Class    ErrorClass
	Kind     RuntimeKind
	Template string   // Message template with {{.placeholders}}
	Hints    []string // Hint templates (may use {{.placeholders}})
}

// ErrorCatalog maps error codes to their definitions.
var ErrorCatalog = map[string]ErrorDef{
	// Expression syntax
	"PARSE-0001": {
		Class:    ClassParse,
		Template: "expected {{.Expected}}, got '{{.Got}}'",
	},
	"PARSE-0002": {
		Class:    ClassParse,
		Template: "unexpected token '{{.Token}}'",
	},
	"PARSE-0003": {
		Class:    ClassParse,
		Template: "unterminated string",
	},
	"PARSE-0004": {
		Class:    ClassParse,
		Template: "invalid number literal: {{.Literal}}",
	},
	"PARSE-0005": {
		Class:    ClassParse,
		Template: "missing statement terminator before '{{.Token}}'",
		Hints:    []string{"separate expressions with ';' or a line break"},
	},
	"PARSE-0006": {
		Class:    ClassParse,
		Template: "empty expression",
	},

	// Text processing
	"TEXT-0001": {
		Class:    ClassParse,
		Template: "unterminated {{.Construct}} in text: {{.Text}}",
	},
	"TEXT-0002": {
		Class:    ClassSemantic,
		Template: "{{.Got}} is not allowed here, expected {{.Expected}}",
	},

	// Markup
	"MARKUP-0001": {
		Class:    ClassParse,
		Template: "unexpected closing tag </{{.Tag}}>",
	},
	"MARKUP-0002": {
		Class:    ClassParse,
		Template: "tag <{{.Tag}}> is not closed",
	},
	"MARKUP-0003": {
		Class:    ClassSemantic,
		Template: "<{{.Tag}}> requires attribute '{{.Attribute}}'",
	},
	"MARKUP-0004": {
		Class:    ClassSemantic,
		Template: "<ws:else> must follow <ws:if> or another <ws:else>",
	},
	"MARKUP-0005": {
		Class:    ClassSemantic,
		Template: "invalid ws:for data: {{.Data}}",
		Hints:    []string{"index, item in items", "i = 0; i < items.length; i++"},
	},
	"MARKUP-0006": {
		Class:    ClassSemantic,
		Template: "template '{{.Name}}' is already defined",
	},
	"MARKUP-0007": {
		Class:    ClassSemantic,
		Template: "<{{.Tag}}> is only allowed inside a component or partial",
	},
	"MARKUP-0008": {
		Class:    ClassSemantic,
		Template: "<ws:{{.Type}}> expects {{.Expected}}",
	},

	// Compile-time contract violations
	"BIND-0001": {
		Class:    ClassSemantic,
		Template: "binding disallowed (запрещено выполнять bind): \"{{.Expression}}\" is a {{.Kind}}, not an assignable location",
		Hints:    []string{"bind to an identifier or member path, e.g. bind:value=\"record.title\""},
	},
	"BIND-0002": {
		Class:    ClassSemantic,
		Template: "binding disallowed (запрещено выполнять bind): \"{{.Expression}}\" targets the frozen options object",
	},
	"BIND-0003": {
		Class:    ClassSemantic,
		Template: "binding disallowed (запрещено выполнять bind): decorators are not allowed in \"{{.Expression}}\"",
	},
	"EVENT-0001": {
		Class:    ClassSemantic,
		Template: "event handler \"{{.Expression}}\" must use a static method name, not a computed property",
	},
	"EVENT-0002": {
		Class:    ClassSemantic,
		Template: "event handler \"{{.Expression}}\" must be a function reference or a call",
	},
	"EVENT-0003": {
		Class:    ClassSemantic,
		Template: "event handler must be a single expression, got {{.Count}}",
	},
	"CONTAINER-0001": {
		Class:    ClassContainer,
		Template: "cannot attach a {{.Type}} container, only TEMPLATE containers can be attached",
	},
	"CONTAINER-0002": {
		Class:    ClassContainer,
		Template: "cannot attach to a {{.Type}} container, only COMPONENT containers accept templates",
	},
	"CONTAINER-0003": {
		Class:    ClassContainer,
		Template: "unknown program type {{.Type}}",
	},
	"CODEGEN-0001": {
		Class:    ClassCodegen,
		Template: "unknown node type {{.Type}}",
	},
	"CODEGEN-0002": {
		Class:    ClassCodegen,
		Template: "unknown decorator '{{.Name}}'",
	},
	"CODEGEN-0003": {
		Class:    ClassCodegen,
		Template: "inline template '{{.Name}}' is not defined",
	},
	"CODEGEN-0004": {
		Class:    ClassCodegen,
		Template: "description must contain exactly one root body, found {{.Count}}",
	},

	// Runtime
	"RUNTIME-0001": {
		Class:    ClassRuntime,
		Kind:     KindNotAFunction,
		Template: "{{.Name}} is not a function",
	},
	"RUNTIME-0002": {
		Class:    ClassRuntime,
		Kind:     KindNullProperty,
		Template: "cannot read properties of {{.Value}} (reading '{{.Property}}')",
	},
	"RUNTIME-0003": {
		Class:    ClassRuntime,
		Kind:     KindInvalidContext,
		Template: "invalid internal evaluation context for \"{{.Expression}}\"",
	},
	"RUNTIME-0004": {
		Class:    ClassRuntime,
		Template: "control flow: {{.Message}}",
	},
	"RUNTIME-0005": {
		Class:    ClassRuntime,
		Template: "template '{{.Name}}' is not registered",
	},
	"RUNTIME-0006": {
		Class:    ClassRuntime,
		Kind:     KindNullProperty,
		Template: "cannot set properties of {{.Value}} (setting '{{.Property}}')",
	},

	// Dependencies
	"DEP-0001": {
		Class:    ClassDependency,
		Template: "failed to load dependency {{.Name}}",
	},
	"DEP-0002": {
		Class:    ClassDependency,
		Template: "dependency {{.Name}} not found",
	},

	// Wire format
	"WIRE-0001": {
		Class:    ClassIO,
		Template: "malformed serialized template: {{.Reason}}",
	},
	"WIRE-0002": {
		Class:    ClassIO,
		Template: "unsupported description version {{.Version}}",
	},

	// Configuration
	"CONFIG-0001": {
		Class:    ClassConfig,
		Template: "cannot read config {{.Path}}",
	},
	"CONFIG-0002": {
		Class:    ClassConfig,
		Template: "invalid locale {{.Locale}}",
		Hints:    []string{"use a BCP 47 tag such as en-US or de"},
	},
	"CONFIG-0003": {
		Class:    ClassConfig,
		Template: "unknown currency {{.Code}}",
	},
	"CONFIG-0004": {
		Class:    ClassConfig,
		Template: "invalid config: {{.Reason}}",
	},

	// Translation dictionaries
	"I18N-0001": {
		Class:    ClassIO,
		Template: "cannot load dictionary {{.Path}}",
	},

	// Artifact store
	"STORE-0001": {
		Class:    ClassIO,
		Template: "cannot open store {{.Driver}}",
		Hints:    []string{"supported drivers are sqlite, postgres and mysql"},
	},
	"STORE-0002": {
		Class:    ClassIO,
		Template: "store {{.Op}} failed",
	},
	"STORE-0003": {
		Class:    ClassIO,
		Template: "corrupt artifact {{.Module}}",
	},

	// Compiler
	"COMPILE-0001": {
		Class:    ClassIO,
		Template: "cannot read template {{.Path}}",
	},
	"COMPILE-0002": {
		Class:    ClassDependency,
		Template: "circular dependency {{.Chain}}",
	},
}

// New creates a WmlError from the catalog.
// If the code is not found, creates a generic error with the message.
func New(code string, data map[string]any) *WmlError {
	def, ok := ErrorCatalog[code]
	if !ok {
		msg := code
		if data != nil {
			if m, ok := data["message"].(string); ok {
				msg = m
			}
		}
		return &WmlError{
			Class:   ClassSemantic,
			Code:    code,
			Message: msg,
			Data:    data,
		}
	}

	msg := renderTemplate(def.Template, data)

	var hints []string
	for _, hintTmpl := range def.Hints {
		rendered := renderTemplate(hintTmpl, data)
		if rendered != "" {
			hints = append(hints, rendered)
		}
	}

	return &WmlError{
		Class:   def.Class,
		Code:    code,
		Kind:    def.Kind,
		Message: msg,
		Hints:   hints,
		Data:    data,
	}
}

// NewWithPosition creates a WmlError with position information.
func NewWithPosition(code string, line, column int, data map[string]any) *WmlError {
	err := New(code, data)
	err.Line = line
	err.Column = column
	return err
}

// Wrap creates a catalog error carrying an underlying cause.
func Wrap(code string, cause error, data map[string]any) *WmlError {
	err := New(code, data)
	err.Cause = cause
	if cause != nil {
		err.Message += ": " + cause.Error()
	}
	return err
}

// NewSimple creates a simple error without using the catalog.
func NewSimple(class ErrorClass, message string) *WmlError {
	return &WmlError{
		Class:   class,
		Message: message,
	}
}

// As reports whether err is (or wraps) a *WmlError and returns it.
func As(err error) (*WmlError, bool) {
	var werr *WmlError
	if errors.As(err, &werr) {
		return werr, true
	}
	return nil, false
}

// HasCode reports whether err is a *WmlError with the given code.
func HasCode(err error, code string) bool {
	werr, ok := As(err)
	return ok && werr.Code == code
}

// renderTemplate renders a Go template with the given data.
func renderTemplate(tmplStr string, data map[string]any) string {
	if data == nil {
		return tmplStr
	}

	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return tmplStr
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return tmplStr
	}

	return buf.String()
}

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,
				matrix[i][j-1]+1,
				matrix[i-1][j-1]+cost,
			)
		}
	}

	return matrix[len(a)][len(b)]
}

// FindClosestMatch finds the closest match to the given string from candidates.
// Returns the best match if the distance is within the threshold, otherwise empty string.
func FindClosestMatch(input string, candidates []string) string {
	if len(input) == 0 || len(candidates) == 0 {
		return ""
	}

	inputLower := strings.ToLower(input)

	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)

	var bestMatch string
	bestDistance := -1

	for _, candidate := range sorted {
		dist := levenshteinDistance(inputLower, strings.ToLower(candidate))
		if bestDistance == -1 || dist < bestDistance {
			bestDistance = dist
			bestMatch = candidate
		}
	}

	// Short words (1-3): max 1 edit, medium (4-6): 2, longer: 3
	threshold := 1
	if len(input) >= 4 && len(input) <= 6 {
		threshold = 2
	} else if len(input) >= 7 {
		threshold = 3
	}

	if bestDistance <= 0 || bestDistance > threshold {
		return ""
	}

	return bestMatch
}

// WithSuggestion appends a "Did you mean" hint when a close candidate exists.
func (e *WmlError) WithSuggestion(input string, candidates []string) *WmlError {
	if suggestion := FindClosestMatch(input, candidates); suggestion != "" {
		e.Hints = append(e.Hints, "Did you mean `"+suggestion+"`?")
	}
	return e
}
