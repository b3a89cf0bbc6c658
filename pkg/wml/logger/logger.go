// Package logger provides the loggers used by the compiler, the runtime
// template-error hook and the CLI.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Logger receives diagnostic output.
type Logger interface {
	Log(values ...any)
	LogLine(values ...any)
}

// writerLogger writes to an io.Writer
type writerLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *writerLogger) Log(values ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprint(l.w, formatLogValues(values...))
}

func (l *writerLogger) LogLine(values ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, formatLogValues(values...))
}

// WriterLogger returns a logger that writes to an io.Writer
func WriterLogger(w io.Writer) Logger {
	return &writerLogger{w: w}
}

// StderrLogger returns a logger writing to standard error.
func StderrLogger() Logger {
	return WriterLogger(os.Stderr)
}

// BufferedLogger captures log output for later retrieval
type BufferedLogger struct {
	mu    sync.Mutex
	lines []string
	buf   strings.Builder
}

// NewBufferedLogger creates a new buffered logger
func NewBufferedLogger() *BufferedLogger {
	return &BufferedLogger{
		lines: make([]string, 0),
	}
}

func (l *BufferedLogger) Log(values ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.WriteString(formatLogValues(values...))
}

func (l *BufferedLogger) LogLine(values ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	line := l.buf.String() + formatLogValues(values...)
	l.lines = append(l.lines, line)
	l.buf.Reset()
}

// String returns all captured output as a single string
func (l *BufferedLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := strings.Join(l.lines, "\n")
	if len(l.lines) > 0 {
		result += "\n"
	}
	if l.buf.Len() > 0 {
		result += l.buf.String()
	}
	return result
}

// Lines returns all captured log lines
func (l *BufferedLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]string, len(l.lines))
	copy(result, l.lines)
	return result
}

// Reset clears all captured output
func (l *BufferedLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = l.lines[:0]
	l.buf.Reset()
}

// nullLogger discards all output
type nullLogger struct{}

func (l *nullLogger) Log(values ...any)     {}
func (l *nullLogger) LogLine(values ...any) {}

// NullLogger returns a logger that discards all output
func NullLogger() Logger {
	return &nullLogger{}
}

func formatLogValues(values ...any) string {
	if len(values) == 0 {
		return ""
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, " ")
}

// Level orders events by severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	default:
		return "error"
	}
}

// ParseLevel maps a config value to a Level. Unknown values mean info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	}
	return LevelInfo
}

// Event is one structured log entry.
type Event struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Module    string         `json:"module,omitempty"`
	Code      string         `json:"code,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// EventLogger writes leveled events as json or text lines.
type EventLogger struct {
	mu     sync.Mutex
	output io.Writer
	format string // "json" or "text"
	level  Level
	now    func() time.Time
}

// NewEventLogger creates an event logger. An empty format means text.
func NewEventLogger(output io.Writer, format string, level Level) *EventLogger {
	if format == "" {
		format = "text"
	}
	return &EventLogger{output: output, format: format, level: level, now: time.Now}
}

// Emit writes ev when its level is enabled.
func (l *EventLogger) Emit(level Level, ev Event) {
	if level < l.level {
		return
	}
	ev.Level = level.String()
	if ev.Timestamp == "" {
		ev.Timestamp = l.now().Format(time.RFC3339)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.format == "json" {
		l.writeJSON(ev)
	} else {
		l.writeText(ev)
	}
}

func (l *EventLogger) Debug(msg string, fields map[string]any) {
	l.Emit(LevelDebug, Event{Message: msg, Fields: fields})
}

func (l *EventLogger) Info(msg string, fields map[string]any) {
	l.Emit(LevelInfo, Event{Message: msg, Fields: fields})
}

func (l *EventLogger) Warn(msg string, fields map[string]any) {
	l.Emit(LevelWarn, Event{Message: msg, Fields: fields})
}

func (l *EventLogger) Error(msg string, fields map[string]any) {
	l.Emit(LevelError, Event{Message: msg, Fields: fields})
}

// Log implements Logger at info level.
func (l *EventLogger) Log(values ...any) {
	l.Info(formatLogValues(values...), nil)
}

// LogLine implements Logger at info level.
func (l *EventLogger) LogLine(values ...any) {
	l.Info(formatLogValues(values...), nil)
}

func (l *EventLogger) writeJSON(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(l.output, "%s\n", data)
}

func (l *EventLogger) writeText(ev Event) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s", ev.Timestamp, strings.ToUpper(ev.Level))
	if ev.Module != "" {
		fmt.Fprintf(&sb, " [%s]", ev.Module)
	}
	if ev.Code != "" {
		fmt.Fprintf(&sb, " %s", ev.Code)
	}
	fmt.Fprintf(&sb, " %s", ev.Message)
	keys := make([]string, 0, len(ev.Fields))
	for k := range ev.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, ev.Fields[k])
	}
	fmt.Fprintln(l.output, sb.String())
}
