// Package logging provides categorized file-based debug logging for tutorgate.
// Logs are written to <dir>/<date>_<category>.log, one file per category.
// When debug mode is off every call is a silent no-op.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup, config, capability probing
	CategoryServer  Category = "server"  // HTTP surface, request lifecycle
	CategorySafety  Category = "safety"  // Violation detection decisions
	CategoryPrompt  Category = "prompt"  // Prompt assembly
	CategoryAPI     Category = "api"     // Completion backend calls
	CategorySearch  Category = "search"  // Search grounding calls
	CategoryBrowser Category = "browser" // Page fetch (rich and simple paths)
	CategoryStore   Category = "store"   // Conversation store operations
	CategoryCache   Category = "cache"   // Result cache operations
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Options controls the logging subsystem. Zero value means disabled.
type Options struct {
	Dir   string // directory for log files; empty disables logging
	Level string // debug, info, warn, error (default info)
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex

	optsMu   sync.RWMutex
	logsDir  string
	logLevel = LevelInfo
	enabled  bool
)

// Logger writes to one category's log file. A Logger with a nil inner
// logger is a no-op.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

// Configure sets up the logging directory and level. Call once at startup;
// with an empty Dir all logging stays disabled.
func Configure(opts Options) error {
	optsMu.Lock()
	defer optsMu.Unlock()

	if opts.Dir == "" {
		enabled = false
		return nil
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	logsDir = opts.Dir
	enabled = true

	switch opts.Level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	return nil
}

// Enabled reports whether debug logging is active.
func Enabled() bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	return enabled
}

// Get returns (or creates) the logger for a category. Returns a no-op
// logger when logging is disabled or the file cannot be opened.
func Get(category Category) *Logger {
	if !Enabled() {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] could not open %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelDebug {
		return
	}
	l.logger.Printf("[DEBUG] %s", fmt.Sprintf(format, args...))
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelInfo {
		return
	}
	l.logger.Printf("[INFO] %s", fmt.Sprintf(format, args...))
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelWarn {
		return
	}
	l.logger.Printf("[WARN] %s", fmt.Sprintf(format, args...))
}

// Error logs an error message. Always written if the logger is live.
func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[ERROR] %s", fmt.Sprintf(format, args...))
}

// CloseAll closes all open log files. Call at shutdown.
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// Convenience helpers. No-ops when the subsystem is disabled.

func Boot(format string, args ...interface{})    { Get(CategoryBoot).Info(format, args...) }
func Server(format string, args ...interface{})  { Get(CategoryServer).Info(format, args...) }
func Safety(format string, args ...interface{})  { Get(CategorySafety).Info(format, args...) }
func Prompt(format string, args ...interface{})  { Get(CategoryPrompt).Info(format, args...) }
func API(format string, args ...interface{})     { Get(CategoryAPI).Info(format, args...) }
func Search(format string, args ...interface{})  { Get(CategorySearch).Info(format, args...) }
func Browser(format string, args ...interface{}) { Get(CategoryBrowser).Info(format, args...) }
func Store(format string, args ...interface{})   { Get(CategoryStore).Info(format, args...) }
func Cache(format string, args ...interface{})   { Get(CategoryCache).Info(format, args...) }

func BootDebug(format string, args ...interface{})    { Get(CategoryBoot).Debug(format, args...) }
func ServerDebug(format string, args ...interface{})  { Get(CategoryServer).Debug(format, args...) }
func SafetyDebug(format string, args ...interface{})  { Get(CategorySafety).Debug(format, args...) }
func PromptDebug(format string, args ...interface{})  { Get(CategoryPrompt).Debug(format, args...) }
func APIDebug(format string, args ...interface{})     { Get(CategoryAPI).Debug(format, args...) }
func SearchDebug(format string, args ...interface{})  { Get(CategorySearch).Debug(format, args...) }
func BrowserDebug(format string, args ...interface{}) { Get(CategoryBrowser).Debug(format, args...) }
func StoreDebug(format string, args ...interface{})   { Get(CategoryStore).Debug(format, args...) }
func CacheDebug(format string, args ...interface{})   { Get(CategoryCache).Debug(format, args...) }

func APIError(format string, args ...interface{})     { Get(CategoryAPI).Error(format, args...) }
func SearchError(format string, args ...interface{})  { Get(CategorySearch).Error(format, args...) }
func BrowserError(format string, args ...interface{}) { Get(CategoryBrowser).Error(format, args...) }
func StoreError(format string, args ...interface{})   { Get(CategoryStore).Error(format, args...) }
func ServerError(format string, args ...interface{})  { Get(CategoryServer).Error(format, args...) }

// Timer helps measure operation duration.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}
