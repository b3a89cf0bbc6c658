package errors

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWmlError_String(t *testing.T) {
	tests := []struct {
		name     string
		err      *WmlError
		expected string
	}{
		{
			name:     "message only",
			err:      &WmlError{Message: "something went wrong"},
			expected: "something went wrong",
		},
		{
			name:     "with position",
			err:      &WmlError{Message: "unexpected token", Line: 5, Column: 10},
			expected: "line 5, column 10: unexpected token",
		},
		{
			name:     "with file",
			err:      &WmlError{Message: "parse error", File: "Page.wml", Line: 3, Column: 1},
			expected: "Page.wml: line 3, column 1: parse error",
		},
		{
			name:     "with hints",
			err:      &WmlError{Message: "unknown decorator", Hints: []string{"Did you mean `upper`?"}},
			expected: "unknown decorator\n  Did you mean `upper`?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestWmlError_PrettyString(t *testing.T) {
	tests := []struct {
		name     string
		err      *WmlError
		contains []string
	}{
		{
			name:     "parse error",
			err:      &WmlError{Class: ClassParse, Message: "unexpected }", Line: 2, Column: 4},
			contains: []string{"Syntax error", "line 2, column 4", "unexpected }"},
		},
		{
			name:     "runtime error in file",
			err:      &WmlError{Class: ClassRuntime, Message: "x is not a function", File: "Page.wml", Line: 1, Column: 7},
			contains: []string{"Runtime error", "in: Page.wml", "at: line 1, column 7"},
		},
		{
			name:     "other classes",
			err:      &WmlError{Class: ClassDependency, Message: "cycle", Hints: []string{"break it"}},
			contains: []string{"Compile error", "cycle\n  break it"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.PrettyString()
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("PrettyString() = %q, missing %q", got, want)
				}
			}
		})
	}
}

func TestNewFromCatalog(t *testing.T) {
	err := NewWithPosition("RUNTIME-0005", 3, 9, map[string]any{"Name": "wml!Card"})
	if err.Class != ClassRuntime || err.Code != "RUNTIME-0005" {
		t.Errorf("class/code = %s/%s", err.Class, err.Code)
	}
	if err.Message != "template 'wml!Card' is not registered" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Line != 3 || err.Column != 9 {
		t.Errorf("position = %d:%d", err.Line, err.Column)
	}

	hinted := New("CONFIG-0002", map[string]any{"Locale": "english"})
	if diff := cmp.Diff([]string{"use a BCP 47 tag such as en-US or de"}, hinted.Hints); diff != "" {
		t.Errorf("hints mismatch (-want +got):\n%s", diff)
	}

	unknown := New("NOPE-0001", map[string]any{"message": "custom text"})
	if unknown.Message != "custom text" || unknown.Class != ClassSemantic {
		t.Errorf("unknown code = %+v", unknown)
	}
}

func TestWrapAndAs(t *testing.T) {
	cause := fmt.Errorf("permission denied")
	err := Wrap("COMPILE-0001", cause, map[string]any{"Path": "views/Page.wml"})
	if err.Message != "cannot read template views/Page.wml: permission denied" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	wrapped := fmt.Errorf("loading: %w", err)
	got, ok := As(wrapped)
	if !ok || got != err {
		t.Fatal("As should find the wrapped error")
	}
	if !HasCode(wrapped, "COMPILE-0001") || HasCode(wrapped, "COMPILE-0002") {
		t.Error("HasCode mismatch")
	}
	if _, ok := As(cause); ok {
		t.Error("a plain error is not a WmlError")
	}
}

func TestFindClosestMatch(t *testing.T) {
	candidates := []string{"upper", "lower", "trim", "markdown", "money"}
	tests := []struct {
		input string
		want  string
	}{
		{"uper", "upper"},
		{"trm", "trim"},
		{"markdwn", "markdown"},
		{"upper", ""},
		{"zzzzzz", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FindClosestMatch(tt.input, candidates); got != tt.want {
			t.Errorf("FindClosestMatch(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}

	err := NewSimple(ClassSemantic, "unknown decorator lowr").WithSuggestion("lowr", candidates)
	if diff := cmp.Diff([]string{"Did you mean `lower`?"}, err.Hints); diff != "" {
		t.Errorf("hints mismatch (-want +got):\n%s", diff)
	}
}

func TestToJSON(t *testing.T) {
	err := New("COMPILE-0002", map[string]any{"Chain": "a -> b -> a"}).WithFile("a.wml")
	data, jerr := err.ToJSON()
	if jerr != nil {
		t.Fatal(jerr)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["code"] != "COMPILE-0002" || got["class"] != "dependency" || got["file"] != "a.wml" {
		t.Errorf("json = %s", data)
	}
}
