package logger

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// MaxLogLines is the maximum number of lines kept in the log file before it
// is trimmed from the front.
const MaxLogLines = 5000

// Level represents the logging level.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a string into a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes leveled, timestamped lines to a file and trims the file once
// it grows past MaxLogLines.
type Logger struct {
	mu        sync.Mutex
	file      *os.File
	lineCount int
	level     Level
}

var global *Logger

// fallback covers log calls made before Init.
var fallback = &Logger{file: os.Stderr, level: LevelInfo}

// Init creates the global logger on the given file.
func Init(file *os.File, level Level) *Logger {
	l := &Logger{file: file, level: level}
	l.countExistingLines()
	global = l
	return l
}

// SetLevel changes the logger's level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) enabled(level Level) bool {
	return level >= l.level
}

func (l *Logger) log(level Level, format string, v ...any) {
	if !l.enabled(level) {
		return
	}
	msg := fmt.Sprintf("%s [%s] %s\n", time.Now().Format("2006/01/02 15:04:05"), level, fmt.Sprintf(format, v...))
	l.Write([]byte(msg))
}

func (l *Logger) Debug(format string, v ...any) { l.log(LevelDebug, format, v...) }
func (l *Logger) Info(format string, v ...any)  { l.log(LevelInfo, format, v...) }
func (l *Logger) Warn(format string, v ...any)  { l.log(LevelWarn, format, v...) }
func (l *Logger) Error(format string, v ...any) { l.log(LevelError, format, v...) }

// Fatal logs an error message and exits with code 1.
func (l *Logger) Fatal(format string, v ...any) {
	l.log(LevelError, format, v...)
	os.Exit(1)
}

func active() *Logger {
	if global != nil {
		return global
	}
	return fallback
}

// Package-level logging functions using the global logger.
func Debug(format string, v ...any) { active().Debug(format, v...) }
func Info(format string, v ...any)  { active().Info(format, v...) }
func Warn(format string, v ...any)  { active().Warn(format, v...) }
func Error(format string, v ...any) { active().Error(format, v...) }
func Fatal(format string, v ...any) { active().Fatal(format, v...) }

var noop = func() {}

// Trace returns a function that logs the operation's duration when called.
// Usage: defer logger.Trace("operation")()
func Trace(name string) func() {
	l := active()
	if !l.enabled(LevelTrace) {
		return noop
	}
	start := time.Now()
	return func() {
		l.log(LevelTrace, "%s: %v", name, time.Since(start))
	}
}

// Write implements io.Writer so the logger can back the stdlib log package.
func (l *Logger) Write(p []byte) (n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, err = l.file.Write(p)
	if err != nil {
		return n, err
	}

	l.lineCount += strings.Count(string(p), "\n")
	if l.lineCount > MaxLogLines {
		l.trim()
	}
	return n, err
}

func (l *Logger) countExistingLines() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.file.Seek(0, 0)
	scanner := bufio.NewScanner(l.file)
	count := 0
	for scanner.Scan() {
		count++
	}
	l.lineCount = count
	l.file.Seek(0, 2)
}

// trim keeps only the last MaxLogLines lines of the file.
func (l *Logger) trim() {
	l.file.Seek(0, 0)
	scanner := bufio.NewScanner(l.file)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) > MaxLogLines {
		lines = lines[len(lines)-MaxLogLines:]
	}

	l.file.Truncate(0)
	l.file.Seek(0, 0)
	for _, line := range lines {
		l.file.WriteString(line + "\n")
	}
	l.lineCount = len(lines)
}

// Close closes the underlying file.
func (l *Logger) Close() error {
	return l.file.Close()
}
