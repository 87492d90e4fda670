package logger

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"
)

// Level controls which messages are emitted.
type Level int32

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var current atomic.Int32

func init() {
	current.Store(int32(LevelInfo))
}

// ParseLevel converts a level name to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "fatal":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %q", s)
	}
}

// SetLevel sets the global log level.
func SetLevel(l Level) {
	current.Store(int32(l))
}

func enabled(l Level) bool {
	return int32(l) >= current.Load()
}

func emit(prefix, format string, args ...any) {
	log.Printf(prefix+" "+format, args...)
}

// Trace logs at trace level.
func Trace(format string, args ...any) {
	if enabled(LevelTrace) {
		emit("[TRACE]", format, args...)
	}
}

// Debug logs at debug level.
func Debug(format string, args ...any) {
	if enabled(LevelDebug) {
		emit("[DEBUG]", format, args...)
	}
}

// Info logs at info level.
func Info(format string, args ...any) {
	if enabled(LevelInfo) {
		emit("[INFO]", format, args...)
	}
}

// Warn logs at warn level.
func Warn(format string, args ...any) {
	if enabled(LevelWarn) {
		emit("[WARN]", format, args...)
	}
}

// Error logs at error level.
func Error(format string, args ...any) {
	if enabled(LevelError) {
		emit("[ERROR]", format, args...)
	}
}

// Fatal logs at fatal level and exits.
func Fatal(format string, args ...any) {
	log.Fatalf("[FATAL] "+format, args...)
}
