// Package logger provides leveled logging shared by every pipeline stage.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// ParseLevel maps a configured level name to a Level, defaulting to InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides leveled logging with an optional stage prefix.
type Logger struct {
	level  Level
	prefix string
	logger *log.Logger
}

var defaultLogger *Logger

// Init initializes the default logger with the specified level and format.
func Init(level string, format string) {
	InitWithWriter(os.Stderr, level, format)
}

// InitWithWriter is Init writing to w.
func InitWithWriter(w io.Writer, level string, format string) {
	flags := log.LstdFlags | log.Lmicroseconds | log.LUTC
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}
	defaultLogger = &Logger{
		level:  ParseLevel(level),
		logger: log.New(w, "", flags),
	}
}

// ForStage returns a logger that prefixes every line with [stage]. It is silent until
// Init has been called.
func ForStage(stage string) *Logger {
	if defaultLogger == nil {
		return &Logger{level: ErrorLevel + 1, prefix: "[" + stage + "] "}
	}
	return &Logger{
		level:  defaultLogger.level,
		prefix: "[" + stage + "] ",
		logger: defaultLogger.logger,
	}
}

func (l *Logger) output(lvl Level, tag, format string, args ...interface{}) {
	if l == nil || l.logger == nil || l.level > lvl {
		return
	}
	msg := fmt.Sprintf("["+tag+"] "+l.prefix+format, args...)
	_ = l.logger.Output(3, msg)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.output(DebugLevel, "DEBUG", format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.output(InfoLevel, "INFO", format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.output(WarnLevel, "WARN", format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.output(ErrorLevel, "ERROR", format, args...)
}

func Debug(format string, args ...interface{}) {
	defaultLogger.output(DebugLevel, "DEBUG", format, args...)
}

func Info(format string, args ...interface{}) {
	defaultLogger.output(InfoLevel, "INFO", format, args...)
}

func Warn(format string, args ...interface{}) {
	defaultLogger.output(WarnLevel, "WARN", format, args...)
}

func Error(format string, args ...interface{}) {
	defaultLogger.output(ErrorLevel, "ERROR", format, args...)
}

func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf("[FATAL] "+format, args...)
	if defaultLogger != nil {
		_ = defaultLogger.logger.Output(2, msg)
	} else {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(1)
}
