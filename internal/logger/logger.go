package logger

import (
	"strings"
	"sync"
)

// Log levels used across the nodes.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Output encodings.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

var (
	globalLogger *Logger
	once         sync.Once
)

// Get returns the process-wide console logger. The first call (to Get or
// Setup) wins; later calls return the same instance.
func Get(level string) *Logger {
	return Setup(level, FormatConsole)
}

// Setup is Get with an explicit encoding (console or json). Unknown formats
// fall back to console.
func Setup(level, format string) *Logger {
	once.Do(func() {
		globalLogger = newZapLogger(normalize(level), normalize(format))
	})
	return globalLogger
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
