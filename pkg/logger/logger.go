/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/

// Package logger provides the leveled, structured logger used across hookgate.
// Diagnostics go to stderr so they never interleave with the report on stdout.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents the severity level of log messages
type Level int

const (
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
)

// zap has no trace level; one below debug is used.
const zapTraceLevel = zapcore.DebugLevel - 1

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case TraceLevel:
		return "TRACE"
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a flag value to a Level, defaulting to InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return TraceLevel
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case TraceLevel:
		return zapTraceLevel
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Config holds the logger configuration
type Config struct {
	Level     Level
	UseColor  bool
	JSON      bool
	Component string
}

// Logger wraps a zap logger with the configuration it was built from.
type Logger struct {
	config Config
	zap    *zap.Logger
}

var defaultLogger *Logger

// Field is a structured key/value attached to a log entry.
type Field = zap.Field

// Initialize sets up the default logger writing to stderr.
func Initialize(config Config) error {
	defaultLogger = New(config, os.Stderr)
	return nil
}

// New builds a logger writing to w.
func New(config Config, w io.Writer) *Logger {
	enc := newEncoder(config)
	core := zapcore.NewCore(enc, zapcore.AddSync(w), config.Level.zapLevel())
	z := zap.New(core)
	if config.Component != "" {
		z = z.Named(config.Component)
	}
	return &Logger{config: config, zap: z}
}

func newEncoder(config Config) zapcore.Encoder {
	if config.JSON {
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "time"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeLevel = levelEncoder(false)
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = levelEncoder(config.UseColor)
	cfg.CallerKey = ""
	cfg.StacktraceKey = ""
	return zapcore.NewConsoleEncoder(cfg)
}

func levelEncoder(color bool) zapcore.LevelEncoder {
	return func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		if l < zapcore.DebugLevel {
			if color {
				enc.AppendString("\033[37mTRACE\033[0m")
			} else {
				enc.AppendString("TRACE")
			}
			return
		}
		if color {
			zapcore.CapitalColorLevelEncoder(l, enc)
			return
		}
		zapcore.CapitalLevelEncoder(l, enc)
	}
}

// Log writes a log message at the given level.
func (l *Logger) Log(level Level, message string, fields ...Field) {
	if ce := l.zap.Check(level.zapLevel(), message); ce != nil {
		ce.Write(fields...)
	}
}

// Enabled reports whether entries at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return l.zap.Core().Enabled(level.zapLevel())
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// String creates a string field
func String(key, value string) Field {
	return zap.String(key, value)
}

// Strings creates a string slice field
func Strings(key string, values []string) Field {
	return zap.Strings(key, values)
}

// Int creates an int field
func Int(key string, value int) Field {
	return zap.Int(key, value)
}

// Bool creates a bool field
func Bool(key string, value bool) Field {
	return zap.Bool(key, value)
}

// Duration creates a duration field
func Duration(key string, value time.Duration) Field {
	return zap.Duration(key, value)
}

// Err creates an error field
func Err(err error) Field {
	return zap.Error(err)
}

// Convenience functions for default logger
func Trace(message string, fields ...Field) {
	if defaultLogger != nil {
		defaultLogger.Log(TraceLevel, message, fields...)
	}
}

func Debug(message string, fields ...Field) {
	if defaultLogger != nil {
		defaultLogger.Log(DebugLevel, message, fields...)
	}
}

func Info(message string, fields ...Field) {
	if defaultLogger != nil {
		defaultLogger.Log(InfoLevel, message, fields...)
	} else {
		// Fallback to stderr if logger not initialized
		_, _ = os.Stderr.WriteString("[INFO] hookgate: " + message + "\n")
	}
}

func Warn(message string, fields ...Field) {
	if defaultLogger != nil {
		defaultLogger.Log(WarnLevel, message, fields...)
	}
}

func Error(message string, fields ...Field) {
	if defaultLogger != nil {
		defaultLogger.Log(ErrorLevel, message, fields...)
	}
}

// SetOutput rebuilds the default logger so it writes to w.
func SetOutput(w io.Writer) {
	if defaultLogger != nil {
		defaultLogger = New(defaultLogger.config, w)
	}
}

// Sync flushes the default logger.
func Sync() {
	if defaultLogger != nil {
		_ = defaultLogger.Sync()
	}
}
