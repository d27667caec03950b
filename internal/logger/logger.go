// Package logger provides structured, level-gated logging for the anonymizer.
//
// Each entry is written to stderr as a single console line backed by zap:
//
//	2006-01-02 15:04:05.000 | INFO | ANONYMIZER | message | {"action": "run_done"}
//
// Levels (lowest to highest): debug, info, warn, error.
// Entries below the configured minimum level are silently dropped.
//
// Usage:
//
//	log := logger.New("ANONYMIZER", cfg.LogLevel)
//	log.Info("run_done", "12 mapping entries")
//	log.Errorf("write_output", "%s: %v", path, err)
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents a log severity.
type Level = zapcore.Level

// Log severity constants, ordered lowest to highest.
const (
	LevelDebug = zapcore.DebugLevel // fine-grained diagnostic output
	LevelInfo  = zapcore.InfoLevel  // normal operational messages
	LevelWarn  = zapcore.WarnLevel  // unexpected but recoverable conditions
	LevelError = zapcore.ErrorLevel // failures requiring attention
)

// Logger writes structured log lines for a single module.
type Logger struct {
	level zap.AtomicLevel
	out   *zap.Logger
}

// New creates a Logger for the given module, gated at the given level string.
// Unrecognized level strings default to "info".
func New(module, levelStr string) *Logger {
	return NewTo(module, levelStr, os.Stderr)
}

// NewTo is New writing to w instead of stderr.
func NewTo(module, levelStr string, w io.Writer) *Logger {
	level := zap.NewAtomicLevelAt(parseLevel(levelStr))
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		zapcore.Lock(zapcore.AddSync(w)),
		level,
	)
	return newWithCore(module, level, core)
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{level: zap.NewAtomicLevel(), out: zap.NewNop()}
}

func newWithCore(module string, level zap.AtomicLevel, core zapcore.Core) *Logger {
	module = strings.ToUpper(module)
	return &Logger{
		level: level,
		out:   zap.New(core).Named(module),
	}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		NameKey:          "module",
		MessageKey:       "msg",
		EncodeTime:       zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000"),
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " | ",
	}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error { return l.out.Sync() }

// Debug logs at DEBUG level.
func (l *Logger) Debug(action, msg string) { l.out.Debug(msg, zap.String("action", action)) }

// Info logs at INFO level.
func (l *Logger) Info(action, msg string) { l.out.Info(msg, zap.String("action", action)) }

// Warn logs at WARN level.
func (l *Logger) Warn(action, msg string) { l.out.Warn(msg, zap.String("action", action)) }

// Error logs at ERROR level.
func (l *Logger) Error(action, msg string) { l.out.Error(msg, zap.String("action", action)) }

// Debugf logs a formatted message at DEBUG level.
func (l *Logger) Debugf(action, format string, args ...any) {
	if !l.level.Enabled(LevelDebug) {
		return
	}
	l.Debug(action, fmt.Sprintf(format, args...))
}

// Infof logs a formatted message at INFO level.
func (l *Logger) Infof(action, format string, args ...any) {
	l.Info(action, fmt.Sprintf(format, args...))
}

// Warnf logs a formatted message at WARN level.
func (l *Logger) Warnf(action, format string, args ...any) {
	l.Warn(action, fmt.Sprintf(format, args...))
}

// Errorf logs a formatted message at ERROR level.
func (l *Logger) Errorf(action, format string, args ...any) {
	l.Error(action, fmt.Sprintf(format, args...))
}

// parseLevel converts a string to a Level, defaulting to LevelInfo.
func parseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}
