// Package logging provides JSON structured logging in the OTEL log data-model
// shape. Loggers scoped to a component carry their attributes on every entry.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity level.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// severityNumbers maps OTEL severity text to OTEL severity number.
// See https://opentelemetry.io/docs/specs/otel/logs/data-model/#severity-fields
var severityNumbers = map[Level]int{
	LevelDebug: 5,
	LevelInfo:  9,
	LevelWarn:  13,
	LevelError: 17,
}

// SeverityNumber returns the OTEL severity number for a level.
func SeverityNumber(level Level) int {
	return severityNumbers[level]
}

// ParseLevel parses a level name, ignoring case. Empty selects INFO.
func ParseLevel(s string) (Level, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return LevelInfo, nil
	}
	if s == "WARNING" {
		return LevelWarn, nil
	}
	level := Level(s)
	if _, ok := severityNumbers[level]; !ok {
		return "", fmt.Errorf("unknown log level: %s", s)
	}
	return level, nil
}

// LogHook is called for every emitted entry, allowing secondary sinks
// without the logging package importing them.
type LogHook func(level Level, msg string, attrs map[string]interface{})

// LogEntry represents a single log entry in OTEL-compatible JSON format.
type LogEntry struct {
	Timestamp      string                 `json:"Timestamp"`
	SeverityText   string                 `json:"SeverityText"`
	SeverityNumber int                    `json:"SeverityNumber"`
	Body           string                 `json:"Body"`
	Attributes     map[string]interface{} `json:"Attributes,omitempty"`
	Resource       map[string]string      `json:"Resource,omitempty"`
}

// sink is the shared output state behind a family of loggers.
type sink struct {
	mu       sync.Mutex
	output   io.Writer
	resource map[string]string
	hook     LogHook
	minLevel Level
}

// Logger writes entries to a sink, merging its own attributes into each one.
type Logger struct {
	sink  *sink
	attrs map[string]interface{}
	// minLevel overrides the sink threshold when set.
	minLevel Level
}

var defaultLogger = New(os.Stdout)

// New creates a root logger writing to w at INFO level.
func New(w io.Writer) *Logger {
	return &Logger{sink: &sink{output: w, minLevel: LevelInfo}}
}

// Default returns the process-wide logger used by the package functions.
func Default() *Logger {
	return defaultLogger
}

// SetOutput sets the output writer for the default logger.
func SetOutput(w io.Writer) {
	defaultLogger.sink.mu.Lock()
	defer defaultLogger.sink.mu.Unlock()
	defaultLogger.sink.output = w
}

// SetResource sets the OTEL resource attributes (service.name, service.version, etc.)
// for the default logger. Should be called once at startup.
func SetResource(resource map[string]string) {
	defaultLogger.sink.mu.Lock()
	defer defaultLogger.sink.mu.Unlock()
	defaultLogger.sink.resource = resource
}

// SetHook registers a hook that is called for every entry of the default logger.
func SetHook(hook LogHook) {
	defaultLogger.sink.mu.Lock()
	defer defaultLogger.sink.mu.Unlock()
	defaultLogger.sink.hook = hook
}

// SetLevel sets the minimum level emitted by the default logger.
func SetLevel(level Level) {
	defaultLogger.SetLevel(level)
}

// SetLevel sets the minimum level emitted by l and every logger derived from it
// that has no WithLevel override.
func (l *Logger) SetLevel(level Level) {
	if _, ok := severityNumbers[level]; !ok {
		return
	}
	l.sink.mu.Lock()
	l.sink.minLevel = level
	l.sink.mu.Unlock()
}

// With returns a child logger that adds fields to every entry.
// Fields passed at the call site win over inherited ones.
func (l *Logger) With(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.attrs)+len(fields))
	for k, v := range l.attrs {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{sink: l.sink, attrs: merged, minLevel: l.minLevel}
}

// WithLevel returns a child logger sharing l's output but filtering at level.
// The parent and its other children keep their own threshold.
func (l *Logger) WithLevel(level Level) *Logger {
	if _, ok := severityNumbers[level]; !ok {
		return l
	}
	return &Logger{sink: l.sink, attrs: l.attrs, minLevel: level}
}

// With returns a child of the default logger.
func With(fields map[string]interface{}) *Logger {
	return defaultLogger.With(fields)
}

func (l *Logger) log(level Level, msg string, fields []map[string]interface{}) {
	s := l.sink

	s.mu.Lock()
	threshold := s.minLevel
	if l.minLevel != "" {
		threshold = l.minLevel
	}
	if severityNumbers[level] < severityNumbers[threshold] {
		s.mu.Unlock()
		return
	}

	var attrs map[string]interface{}
	if len(l.attrs) > 0 || len(fields) > 0 {
		attrs = make(map[string]interface{}, len(l.attrs))
		for k, v := range l.attrs {
			attrs[k] = v
		}
		if len(fields) > 0 {
			for k, v := range fields[0] {
				attrs[k] = v
			}
		}
	}

	entry := LogEntry{
		Timestamp:      time.Now().UTC().Format(time.RFC3339Nano),
		SeverityText:   string(level),
		SeverityNumber: severityNumbers[level],
		Body:           msg,
		Attributes:     attrs,
		Resource:       s.resource,
	}
	hook := s.hook
	data, _ := json.Marshal(entry)
	_, _ = s.output.Write(append(data, '\n'))
	s.mu.Unlock()

	// Call hook outside the lock to avoid deadlocks
	if hook != nil {
		hook(level, msg, attrs)
	}
}

// Debug logs a debug level message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields)
}

// Info logs an info level message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields)
}

// Warn logs a warning level message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields)
}

// Error logs an error level message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields)
}

// Debug logs a debug level message on the default logger.
func Debug(msg string, fields ...map[string]interface{}) {
	defaultLogger.log(LevelDebug, msg, fields)
}

// Info logs an info level message on the default logger.
func Info(msg string, fields ...map[string]interface{}) {
	defaultLogger.log(LevelInfo, msg, fields)
}

// Warn logs a warning level message on the default logger.
func Warn(msg string, fields ...map[string]interface{}) {
	defaultLogger.log(LevelWarn, msg, fields)
}

// Error logs an error level message on the default logger.
func Error(msg string, fields ...map[string]interface{}) {
	defaultLogger.log(LevelError, msg, fields)
}

// F is a helper to create fields map.
func F(keyvals ...interface{}) map[string]interface{} {
	fields := make(map[string]interface{})
	for i := 0; i < len(keyvals)-1; i += 2 {
		if key, ok := keyvals[i].(string); ok {
			fields[key] = keyvals[i+1]
		}
	}
	return fields
}
