// Package logging provides leveled console logging for the matching pipeline.
// Lines read `LEVEL TIMESTAMP [component] message key=value ...` with fields
// in sorted order so output is stable across runs.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ParseLevel maps a config string ("debug", "info", ...) to a Level.
// Unknown values fall back to INFO.
func ParseLevel(s string) Level {
	lvl := Level(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := levelPriority[lvl]; ok {
		return lvl
	}
	return LevelInfo
}

// Fields is a set of key=value pairs attached to a log line.
type Fields map[string]interface{}

// sink is shared between a logger and the children derived from it.
type sink struct {
	mu       sync.Mutex
	output   io.Writer
	minLevel Level
}

// Logger writes leveled log lines. Loggers derived with WithComponent or
// WithTraceID share the parent's output and level.
type Logger struct {
	sink      *sink
	component string
	traceID   string
}

// New creates a Logger writing INFO and above to stdout.
func New() *Logger {
	return &Logger{sink: &sink{output: os.Stdout, minLevel: LevelInfo}}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return &Logger{sink: &sink{output: io.Discard, minLevel: LevelError}}
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *Logger) *Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// WithComponent returns a logger tagged with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{sink: l.sink, component: component, traceID: l.traceID}
}

// WithTraceID returns a logger whose lines carry trace=<id>.
func (l *Logger) WithTraceID(traceID string) *Logger {
	return &Logger{sink: l.sink, component: l.component, traceID: traceID}
}

// TraceID returns the trace id attached to this logger.
func (l *Logger) TraceID() string {
	return l.traceID
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.sink.mu.Lock()
	l.sink.minLevel = level
	l.sink.mu.Unlock()
}

// SetOutput sets the output writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	l.sink.output = w
	l.sink.mu.Unlock()
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...Fields) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...Fields) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...Fields) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...Fields) {
	l.log(LevelError, msg, fields...)
}

func formatFields(traceID string, fields []Fields) string {
	merged := make(map[string]interface{})
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	if traceID != "" {
		merged["trace"] = traceID
	}
	if len(merged) == 0 {
		return ""
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, merged[k])
	}
	return b.String()
}

func (l *Logger) log(level Level, msg string, fields ...Fields) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if levelPriority[level] < levelPriority[l.sink.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	fieldStr := formatFields(l.traceID, fields)

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}
	l.sink.output.Write([]byte(line))
}

// --- Pipeline events ---

// ExtractionFallback logs that an extraction strategy produced nothing usable.
func (l *Logger) ExtractionFallback(strategy string, err error) {
	fields := Fields{"strategy": strategy}
	if err != nil {
		fields["error"] = err.Error()
	} else {
		fields["error"] = "empty text"
	}
	l.Warn("extraction_fallback", fields)
}

// FeaturesBuilt logs a finished feature record.
func (l *Logger) FeaturesBuilt(kind string, ownerID int64, terms, dimension int, duration time.Duration) {
	l.Info("features_built", Fields{
		"kind":      kind,
		"owner":     ownerID,
		"terms":     terms,
		"dimension": dimension,
		"duration":  duration.String(),
	})
}

// EmbeddingBatch logs one provider round trip.
func (l *Logger) EmbeddingBatch(provider string, batch, size int, duration time.Duration, err error) {
	fields := Fields{
		"provider": provider,
		"batch":    batch,
		"size":     size,
		"duration": duration.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		l.Error("embedding_batch", fields)
		return
	}
	l.Debug("embedding_batch", fields)
}

// RankingFallback logs that ranking was skipped in favour of the plain listing.
func (l *Logger) RankingFallback(ownerID int64, reason string) {
	l.Info("ranking_fallback", Fields{
		"owner":  ownerID,
		"reason": reason,
	})
}

// RankingCompleted logs a finished ranking request.
func (l *Logger) RankingCompleted(ownerID int64, pool, returned int, duration time.Duration) {
	l.Info("ranking_completed", Fields{
		"owner":    ownerID,
		"pool":     pool,
		"returned": returned,
		"duration": duration.String(),
	})
}
