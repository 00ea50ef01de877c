// Package logging implements the kernel's structured logger, adapted
// from the same JSON-log-entry design the rest of the codebase's
// advanced subsystems use, wired to config.LogConfig instead of a
// hand-built Config literal.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"reld/config"
)

// Level is the severity of a log entry.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
	Fatal
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func parseLevel(s string) Level {
	switch s {
	case "debug":
		return Debug
	case "warn":
		return Warn
	case "error":
		return Error
	case "fatal":
		return Fatal
	default:
		return Info
	}
}

// Entry is one structured log record.
type Entry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component"`
	Message   string                 `json:"message"`
	File      string                 `json:"file,omitempty"`
	Line      int                    `json:"line,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Output is a sink an Entry can be written to.
type Output interface {
	Write(entry *Entry) error
	Close() error
}

// jsonOutput writes entries as newline-delimited JSON.
type jsonOutput struct {
	w     io.Writer
	mutex sync.Mutex
}

func newJSONOutput(w io.Writer) *jsonOutput { return &jsonOutput{w: w} }

func (j *jsonOutput) Write(entry *Entry) error {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = j.w.Write(append(data, '\n'))
	return err
}

func (j *jsonOutput) Close() error {
	if c, ok := j.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// textOutput writes entries as a single human-readable line.
type textOutput struct {
	w     io.Writer
	mutex sync.Mutex
}

func newTextOutput(w io.Writer) *textOutput { return &textOutput{w: w} }

func (t *textOutput) Write(entry *Entry) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	line := fmt.Sprintf("%s [%s] %s: %s", entry.Timestamp.Format(time.RFC3339), entry.Level, entry.Component, entry.Message)
	if len(entry.Metadata) > 0 {
		line += fmt.Sprintf(" %v", entry.Metadata)
	}
	_, err := fmt.Fprintln(t.w, line)
	return err
}

func (t *textOutput) Close() error {
	if c, ok := t.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Logger is the kernel's structured logger. Zero value is not usable;
// construct with New or NewFromConfig.
type Logger struct {
	mutex     sync.RWMutex
	level     Level
	outputs   []Output
	component string
	context   map[string]interface{}
}

// New constructs a Logger writing at or above level to outputs (defaults
// to a single JSON writer on stderr if none are given).
func New(level Level, component string, outputs ...Output) *Logger {
	if len(outputs) == 0 {
		outputs = []Output{newJSONOutput(os.Stderr)}
	}
	return &Logger{level: level, component: component, outputs: outputs, context: make(map[string]interface{})}
}

// NewFromConfig builds a Logger from a config.LogConfig, resolving its
// output name ("stdout", "stderr", or a file path) and format ("json" or
// "text").
func NewFromConfig(cfg config.LogConfig, component string) (*Logger, error) {
	var w io.Writer
	switch cfg.Output {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("logging: open %s: %w", cfg.Output, err)
		}
		w = f
	}
	var out Output
	if cfg.Format == "text" {
		out = newTextOutput(w)
	} else {
		out = newJSONOutput(w)
	}
	return New(parseLevel(cfg.Level), component, out), nil
}

// With returns a child Logger carrying an additional context key/value,
// inherited by every entry it logs.
func (l *Logger) With(key string, value interface{}) *Logger {
	l.mutex.RLock()
	ctx := make(map[string]interface{}, len(l.context)+1)
	for k, v := range l.context {
		ctx[k] = v
	}
	level, outputs, component := l.level, l.outputs, l.component
	l.mutex.RUnlock()
	ctx[key] = value
	return &Logger{level: level, outputs: outputs, component: component, context: ctx}
}

// WithComponent returns a child Logger tagged with a different component
// name, sharing outputs and level.
func (l *Logger) WithComponent(component string) *Logger {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return &Logger{level: l.level, outputs: l.outputs, component: component, context: l.context}
}

func (l *Logger) log(level Level, message string, metadata map[string]interface{}) {
	l.mutex.RLock()
	if level < l.level {
		l.mutex.RUnlock()
		return
	}
	entry := &Entry{
		Timestamp: time.Now().UTC(),
		Level:     level.String(),
		Component: l.component,
		Message:   message,
		Metadata:  metadata,
	}
	if entry.Metadata == nil && len(l.context) > 0 {
		entry.Metadata = make(map[string]interface{})
	}
	for k, v := range l.context {
		entry.Metadata[k] = v
	}
	outputs := l.outputs
	l.mutex.RUnlock()

	if _, file, line, ok := runtime.Caller(2); ok {
		entry.File = file
		entry.Line = line
	}
	for _, out := range outputs {
		if err := out.Write(entry); err != nil {
			fmt.Fprintf(os.Stderr, "logging: failed to write entry: %v\n", err)
		}
	}
}

func (l *Logger) Debug(message string)                                   { l.log(Debug, message, nil) }
func (l *Logger) Info(message string)                                    { l.log(Info, message, nil) }
func (l *Logger) Warn(message string)                                    { l.log(Warn, message, nil) }
func (l *Logger) Error(message string)                                   { l.log(Error, message, nil) }
func (l *Logger) Fatal(message string)                                   { l.log(Fatal, message, nil) }
func (l *Logger) DebugMeta(message string, meta map[string]interface{})  { l.log(Debug, message, meta) }
func (l *Logger) InfoMeta(message string, meta map[string]interface{})   { l.log(Info, message, meta) }
func (l *Logger) WarnMeta(message string, meta map[string]interface{})   { l.log(Warn, message, meta) }
func (l *Logger) ErrorMeta(message string, meta map[string]interface{})  { l.log(Error, message, meta) }

// LogQuery records the outcome of evaluating an expression graph, the
// kernel's equivalent of the teacher's request-timing log line.
func (l *Logger) LogQuery(op string, duration time.Duration, err error) {
	meta := map[string]interface{}{"op": op, "duration_ms": duration.Milliseconds()}
	if err != nil {
		meta["error"] = err.Error()
		l.log(Error, "query failed", meta)
		return
	}
	l.log(Debug, "query completed", meta)
}

// Close closes every output the Logger writes to.
func (l *Logger) Close() error {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	var firstErr error
	for _, out := range l.outputs {
		if err := out.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
