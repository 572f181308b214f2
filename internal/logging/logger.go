// Package logging provides structured logging for the go-osd core.
package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.SugaredLogger behind the small key/value call shape the
// rest of the core uses, so call sites stay agnostic of the backing library.
type Logger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// LogLevel represents the available log levels.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Encoding selects the zap output encoder.
type Encoding int

const (
	// EncodingConsole is human-readable. DefaultConfig selects it, so
	// cmd/osd-mem logs in this form.
	EncodingConsole Encoding = iota
	// EncodingJSON is machine-parseable.
	EncodingJSON
)

// Config holds logging configuration.
type Config struct {
	Level    LogLevel
	Encoding Encoding
	// Output overrides the log sink; defaults to os.Stderr. Tests set this
	// to a buffer to assert on emitted lines.
	Output zapcore.WriteSyncer
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:    LevelInfo,
		Encoding: EncodingConsole,
	}
}

// NewLogger creates a new logger from the given configuration.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}

	atom := zap.NewAtomicLevelAt(config.Level.zapLevel())

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if config.Encoding == EncodingJSON {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	output := config.Output
	if output == nil {
		output = zapcore.AddSync(os.Stderr)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(output), atom)
	zl := zap.New(core)

	return &Logger{sugar: zl.Sugar(), level: atom}
}

// With returns a child logger carrying the given structured key/value
// context on every subsequent call (e.g. connection id, request tid).
func (l *Logger) With(args ...any) *Logger {
	return &Logger{sugar: l.sugar.With(args...), level: l.level}
}

// SetLevel adjusts the logger's level at runtime.
func (l *Logger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

// Default returns the default logger, creating it if necessary.
func Default() *Logger {
	mu.RLock()
	if defaultLogger != nil {
		defer mu.RUnlock()
		return defaultLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

func (l *Logger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error { return l.sugar.Sync() }

// Global convenience functions delegating to the default logger.
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
