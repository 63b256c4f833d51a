// Package logging writes structured JSON log lines for the raid finder service.
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

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a configured level name ("debug", "info", ...) to a Level.
func ParseLevel(name string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	case "FATAL":
		return FATAL, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", name)
	}
}

// Entry represents a single log entry with structured fields.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Service   string         `json:"service,omitempty"`
	Category  string         `json:"category"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Duration  *int64         `json:"duration_ms,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Logger is a structured logger that writes to multiple outputs.
// A nil *Logger discards everything.
type Logger struct {
	mu       sync.RWMutex
	minLevel Level
	writers  []io.Writer
	service  string
	now      func() time.Time
}

// New creates a Logger for service writing to writers.
func New(service string, minLevel Level, writers ...io.Writer) *Logger {
	return &Logger{
		minLevel: minLevel,
		writers:  writers,
		service:  service,
		now:      time.Now,
	}
}

// AddWriter attaches another output, such as a FileWriter.
func (l *Logger) AddWriter(w io.Writer) {
	if l == nil || w == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writers = append(l.writers, w)
}

// Enabled reports whether entries at level are written.
func (l *Logger) Enabled(level Level) bool {
	return l != nil && level >= l.minLevel
}

// Log writes a log entry at the specified level.
func (l *Logger) Log(level Level, category, message string, fields map[string]any) {
	if !l.Enabled(level) {
		return
	}
	l.write(Entry{
		Level:    level.String(),
		Category: category,
		Message:  message,
		Fields:   fields,
	})
}

// Debug logs a debug message.
func (l *Logger) Debug(category, message string, fields map[string]any) {
	l.Log(DEBUG, category, message, fields)
}

// Info logs an info message.
func (l *Logger) Info(category, message string, fields map[string]any) {
	l.Log(INFO, category, message, fields)
}

// Warn logs a warning message.
func (l *Logger) Warn(category, message string, fields map[string]any) {
	l.Log(WARN, category, message, fields)
}

// Error logs an error message.
func (l *Logger) Error(category, message string, err error, fields map[string]any) {
	if !l.Enabled(ERROR) {
		return
	}
	entry := Entry{
		Level:    ERROR.String(),
		Category: category,
		Message:  message,
		Fields:   fields,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	l.write(entry)
}

func (l *Logger) write(entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now().UTC()
	}
	entry.Service = l.service
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal log entry: %v\n", err)
		return
	}
	data = append(data, '\n')

	l.mu.RLock()
	writers := l.writers
	l.mu.RUnlock()

	for _, w := range writers {
		_, _ = w.Write(data)
	}
}

// LogContext carries a request id, category and fields across log calls.
type LogContext struct {
	logger    *Logger
	requestID string
	category  string
	fields    map[string]any
}

// WithRequestID creates a logging context with a request ID.
func (l *Logger) WithRequestID(requestID string) *LogContext {
	return &LogContext{
		logger:    l,
		requestID: requestID,
		fields:    make(map[string]any),
	}
}

// WithCategory sets the category for this context.
func (c *LogContext) WithCategory(category string) *LogContext {
	c.category = category
	return c
}

// WithField adds a field to this context.
func (c *LogContext) WithField(key string, value any) *LogContext {
	if c.fields == nil {
		c.fields = make(map[string]any)
	}
	c.fields[key] = value
	return c
}

func (c *LogContext) log(level Level, message string, err error) {
	if !c.logger.Enabled(level) {
		return
	}
	entry := Entry{
		Level:     level.String(),
		Category:  c.category,
		Message:   message,
		Fields:    c.fields,
		RequestID: c.requestID,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	c.logger.write(entry)
}

// Info logs an info message with the context's request ID and fields.
func (c *LogContext) Info(message string) { c.log(INFO, message, nil) }

// Warn logs a warning message with the context's request ID and fields.
func (c *LogContext) Warn(message string) { c.log(WARN, message, nil) }

// Error logs an error message with the context's request ID and fields.
func (c *LogContext) Error(message string, err error) { c.log(ERROR, message, err) }
