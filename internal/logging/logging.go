package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

// ANSI colours for level tags, only used when writing to a terminal
const (
	colorReset  = "\x1b[0m"
	colorGray   = "\x1b[90m"
	colorGreen  = "\x1b[32m"
	colorYellow = "\x1b[33m"
	colorRed    = "\x1b[31m"
)

// Logger is a leveled logger with optional key/value context.
// A Logger is safe for concurrent use; With returns a copy.
type Logger struct {
	level  LogLevel
	out    *log.Logger
	color  bool
	fields string
}

// New creates a logger writing to w at the given level.
func New(w io.Writer, level LogLevel) *Logger {
	return &Logger{
		level: level,
		out:   log.New(w, "", log.LstdFlags),
	}
}

// NewFromEnv builds the process logger from DEBUG, LOG_LEVEL and LOG_ENABLED.
// Level tags are colourised when stderr is a terminal.
func NewFromEnv() *Logger {
	level := levelFromEnv()

	if enabled := strings.ToLower(os.Getenv("LOG_ENABLED")); enabled == "false" || enabled == "0" {
		return New(io.Discard, level)
	}

	l := New(os.Stderr, level)
	l.color = term.IsTerminal(int(os.Stderr.Fd()))
	return l
}

// ParseLevel converts a level name to a LogLevel. Unknown names map to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func levelFromEnv() LogLevel {
	// DEBUG takes precedence over LOG_LEVEL
	if debug := os.Getenv("DEBUG"); debug != "" {
		switch strings.ToLower(debug) {
		case "1", "true", "yes", "on":
			return LevelDebug
		}
	}
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}

// With returns a logger that appends the given key/value pairs to every line.
// Values are quoted when they contain spaces.
func (l *Logger) With(kv ...interface{}) *Logger {
	if l == nil {
		return nil
	}
	clone := *l
	clone.fields = l.fields + formatFields(kv)
	return &clone
}

// Level returns the minimum level this logger writes.
func (l *Logger) Level() LogLevel {
	if l == nil {
		return LevelError + 1
	}
	return l.level
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level LogLevel) bool {
	return l != nil && level >= l.level
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.logf(LevelDebug, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.logf(LevelInfo, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.logf(LevelWarn, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.logf(LevelError, format, args...)
}

// Event logs msg at level followed by key/value pairs.
func (l *Logger) Event(level LogLevel, msg string, kv ...interface{}) {
	if !l.Enabled(level) {
		return
	}
	l.write(level, msg+formatFields(kv))
}

func (l *Logger) logf(level LogLevel, format string, args ...interface{}) {
	if !l.Enabled(level) {
		return
	}
	l.write(level, fmt.Sprintf(format, args...))
}

func (l *Logger) write(level LogLevel, msg string) {
	l.out.Print(l.tag(level) + " " + msg + l.fields)
}

func (l *Logger) tag(level LogLevel) string {
	tag := "[" + strings.ToUpper(level.String()) + "]"
	if !l.color {
		return tag
	}
	switch level {
	case LevelDebug:
		return colorGray + tag + colorReset
	case LevelInfo:
		return colorGreen + tag + colorReset
	case LevelWarn:
		return colorYellow + tag + colorReset
	default:
		return colorRed + tag + colorReset
	}
}

func formatFields(kv []interface{}) string {
	if len(kv) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		var value string
		if i+1 < len(kv) {
			value = fmt.Sprint(kv[i+1])
		} else {
			value = "(missing)"
		}
		if value == "" || strings.ContainsAny(value, " \t\"=") {
			value = strconv.Quote(value)
		}
		b.WriteString(" ")
		b.WriteString(key)
		b.WriteString("=")
		b.WriteString(value)
	}
	return b.String()
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}

// FormatBytes renders a byte count in IEC units, e.g. "48 KiB".
func FormatBytes(n uint64) string {
	return humanize.IBytes(n)
}

// Truncate shortens s to at most max bytes, marking the cut with "...".
// The cut never splits a UTF-8 sequence.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:runeBoundary(s, max)]
	}
	return s[:runeBoundary(s, max-3)] + "..."
}

// runeBoundary backs n off to the start of the rune containing s[n].
func runeBoundary(s string, n int) int {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}

var (
	defaultLogger atomic.Pointer[Logger]
	defaultOnce   sync.Once
)

// Default returns the process logger, creating it from the environment on first use.
func Default() *Logger {
	defaultOnce.Do(func() {
		if defaultLogger.Load() == nil {
			defaultLogger.Store(NewFromEnv())
		}
	})
	return defaultLogger.Load()
}

// SetDefault replaces the process logger used by the package-level functions.
func SetDefault(l *Logger) {
	defaultOnce.Do(func() {})
	defaultLogger.Store(l)
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	return Default().Level()
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return Default().Enabled(LevelDebug)
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	Default().Debug(format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	Default().Info(format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	Default().Warn(format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	Default().Error(format, args...)
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	log.Fatalf("[FATAL] "+format, args...)
}
