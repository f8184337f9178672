package logging

import (
	"io"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/adevaykin/tailor/internal/fanout"
)

const DefaultBufferSize = 1000

// Field keys attached by Named.
const (
	FieldCategory = "tailor.category"
	FieldSource   = "tailor.source"
	FieldError    = "error"
	FieldPath     = "path"
)

// Logger records structured entries into a ring buffer, fans them out to live
// subscribers and prints them as logfmt lines. Derived loggers share all three.
type Logger struct {
	core        *core
	baseContext map[string]string
}

type core struct {
	buffer   *LogBuffer
	hub      *fanout.Hub[LogEntry]
	output   *log.Logger
	minLevel atomic.Value
}

func NewLogger(buffer *LogBuffer, minLevel Level) *Logger {
	return NewLoggerWithOutput(buffer, minLevel, os.Stderr)
}

func NewLoggerWithOutput(buffer *LogBuffer, minLevel Level, output io.Writer) *Logger {
	if buffer == nil {
		buffer = NewLogBuffer(DefaultBufferSize)
	}
	if output == nil {
		output = io.Discard
	}
	c := &core{
		buffer: buffer,
		hub:    fanout.NewHub[LogEntry](0),
		output: log.New(output, "", log.LstdFlags),
	}
	c.minLevel.Store(normalizeLevel(minLevel))
	return &Logger{core: c}
}

// Discard returns a logger that only keeps a small in-memory buffer.
func Discard() *Logger {
	return NewLoggerWithOutput(NewLogBuffer(64), LevelInfo, io.Discard)
}

// OrDiscard returns l, or a discard logger when l is nil.
func OrDiscard(l *Logger) *Logger {
	if l == nil {
		return Discard()
	}
	return l
}

func (l *Logger) Buffer() *LogBuffer {
	if l == nil || l.core == nil {
		return nil
	}
	return l.core.buffer
}

func (l *Logger) Subscribe() (<-chan LogEntry, func()) {
	if l == nil || l.core == nil {
		return nil, func() {}
	}
	sub := l.core.hub.Subscribe()
	return sub.C, func() { sub.Cancel() }
}

// SetLevel changes the minimum level for this logger and every logger derived
// from the same root.
func (l *Logger) SetLevel(level Level) {
	if l == nil || l.core == nil {
		return
	}
	l.core.minLevel.Store(normalizeLevel(level))
}

func (l *Logger) Level() Level {
	if l == nil || l.core == nil {
		return LevelInfo
	}
	return l.core.minLevel.Load().(Level)
}

func (l *Logger) With(fields map[string]string) *Logger {
	if l == nil {
		return l
	}
	return &Logger{
		core:        l.core,
		baseContext: cloneFields(l.baseContext, fields),
	}
}

// Named tags entries with a component category, e.g. "filewatch".
func (l *Logger) Named(category string) *Logger {
	return l.With(map[string]string{
		FieldCategory: category,
		FieldSource:   "core",
	})
}

func (l *Logger) Debug(message string, fields map[string]string) {
	l.log(LevelDebug, message, fields)
}

func (l *Logger) Info(message string, fields map[string]string) {
	l.log(LevelInfo, message, fields)
}

func (l *Logger) Warn(message string, fields map[string]string) {
	l.log(LevelWarning, message, fields)
}

func (l *Logger) Error(message string, fields map[string]string) {
	l.log(LevelError, message, fields)
}

func (l *Logger) Enabled(level Level) bool {
	if l == nil || l.core == nil {
		return false
	}
	return LevelAtLeast(level, l.Level())
}

func (l *Logger) log(level Level, message string, fields map[string]string) {
	if !l.Enabled(level) {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		Context:   cloneFields(l.baseContext, fields),
	}
	l.core.buffer.Add(entry)
	l.core.hub.Publish(entry)
	l.core.output.Print(entry.String())
}

func cloneFields(base, extra map[string]string) map[string]string {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	combined := make(map[string]string, len(base)+len(extra))
	for key, value := range base {
		combined[key] = value
	}
	for key, value := range extra {
		combined[key] = value
	}
	return combined
}
