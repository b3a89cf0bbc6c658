package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestBufferedLogger(t *testing.T) {
	l := NewBufferedLogger()
	l.Log("a", 1)
	l.LogLine("b")
	l.LogLine("c")
	if got := l.String(); got != "a 1b\nc\n" {
		t.Errorf("String() = %q, want %q", got, "a 1b\nc\n")
	}
	if got := len(l.Lines()); got != 2 {
		t.Errorf("len(Lines()) = %d, want 2", got)
	}
	l.Reset()
	if l.String() != "" {
		t.Errorf("String() after Reset = %q", l.String())
	}
}

func TestEventLoggerText(t *testing.T) {
	var buf bytes.Buffer
	l := NewEventLogger(&buf, "text", LevelInfo)
	l.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	l.Debug("hidden", nil)
	l.Emit(LevelWarn, Event{Message: "template error", Module: "wml!Page", Code: "RUNTIME-0001", Fields: map[string]any{"b": 2, "a": 1}})
	want := "2024-01-02T03:04:05Z WARN [wml!Page] RUNTIME-0001 template error a=1 b=2\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestEventLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewEventLogger(&buf, "json", LevelDebug)
	l.Info("compiled", map[string]any{"module": "x"})
	var ev Event
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &ev); err != nil {
		t.Fatalf("output is not json: %v", err)
	}
	if ev.Level != "info" || ev.Message != "compiled" {
		t.Errorf("event = %+v", ev)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"WARN", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
