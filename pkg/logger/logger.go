// Package logger provides leveled, component-tagged logging for bilichat.
//
// Records are written as structured text to stderr by default so that chat
// rendering on stdout is never interleaved with diagnostics.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var (
	mu       sync.RWMutex
	level    = new(slog.LevelVar)
	current  LogLevel
	instance = newLogger(os.Stderr)
)

func init() {
	SetLevel(INFO)
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// SetLevel changes the minimum level that is emitted.
func SetLevel(l LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	current = l
	level.Set(l.slogLevel())
}

// GetLevel returns the current minimum level.
func GetLevel() LogLevel {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// SetOutput redirects all subsequent records to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	instance = newLogger(w)
}

func logMessage(l LogLevel, component, message string, fields map[string]any) {
	mu.RLock()
	lg := instance
	mu.RUnlock()

	ctx := context.Background()
	if !lg.Enabled(ctx, l.slogLevel()) {
		return
	}

	attrs := make([]any, 0, 2+2*len(fields))
	if component != "" {
		attrs = append(attrs, "component", component)
	}

	// map iteration order is random; keep output stable for grepping
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, k, fields[k])
	}

	lg.Log(ctx, l.slogLevel(), message, attrs...)
}

func Debug(message string) { logMessage(DEBUG, "", message, nil) }

func DebugC(component, message string) { logMessage(DEBUG, component, message, nil) }

func DebugCF(component, message string, fields map[string]any) {
	logMessage(DEBUG, component, message, fields)
}

func Info(message string) { logMessage(INFO, "", message, nil) }

func InfoC(component, message string) { logMessage(INFO, component, message, nil) }

func InfoCF(component, message string, fields map[string]any) {
	logMessage(INFO, component, message, fields)
}

func Warn(message string) { logMessage(WARN, "", message, nil) }

func WarnC(component, message string) { logMessage(WARN, component, message, nil) }

func WarnCF(component, message string, fields map[string]any) {
	logMessage(WARN, component, message, fields)
}

func Error(message string) { logMessage(ERROR, "", message, nil) }

func ErrorC(component, message string) { logMessage(ERROR, component, message, nil) }

func ErrorCF(component, message string, fields map[string]any) {
	logMessage(ERROR, component, message, fields)
}
