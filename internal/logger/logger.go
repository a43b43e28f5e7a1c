// Package logger provides the leveled, printf-style logger used across kidsearch.
// Output goes to stderr and, when configured, to a rotating log file.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is a logging verbosity level.
type Level int8

const (
	TraceLevel Level = iota - 2
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
	PanicLevel
)

func (l Level) String() string {
	switch l {
	case TraceLevel:
		return "trace"
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case FatalLevel:
		return "fatal"
	case PanicLevel:
		return "panic"
	}
	return fmt.Sprintf("level(%d)", int8(l))
}

// zap has no trace level; trace lines are emitted at debug when enabled.
func (l Level) zapLevel() zapcore.Level {
	switch l {
	case TraceLevel, DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.PanicLevel
	}
}

// ParseLevel converts a level name into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return TraceLevel, nil
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	case "panic":
		return PanicLevel, nil
	}
	return InfoLevel, fmt.Errorf("invalid log level %q (want trace, debug, info, warn, error, fatal, panic)", s)
}

var (
	mu       sync.Mutex
	atom     = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	trace    atomic.Bool
	console  io.Writer = os.Stderr
	rotating *lumberjack.Logger
	sugar    *zap.SugaredLogger
)

func init() {
	rebuild()
}

// rebuild must be called with mu held (or from init).
func rebuild() {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(console), atom),
	}
	if rotating != nil {
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(rotating), atom))
	}
	sugar = zap.New(zapcore.NewTee(cores...)).Sugar()
}

// SetLevel changes the minimum level that is emitted.
func SetLevel(l Level) {
	trace.Store(l == TraceLevel)
	atom.SetLevel(l.zapLevel())
}

// GetLevel returns the active level.
func GetLevel() Level {
	if trace.Load() {
		return TraceLevel
	}
	switch atom.Level() {
	case zapcore.DebugLevel:
		return DebugLevel
	case zapcore.InfoLevel:
		return InfoLevel
	case zapcore.WarnLevel:
		return WarnLevel
	case zapcore.ErrorLevel:
		return ErrorLevel
	case zapcore.FatalLevel:
		return FatalLevel
	}
	return PanicLevel
}

// SetOutput redirects console output; nil restores stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	console = w
	rebuild()
}

// SetOutputFile additionally writes JSON lines to a rotating file.
// An empty path disables the file sink.
func SetOutputFile(path string) {
	mu.Lock()
	defer mu.Unlock()
	if rotating != nil {
		_ = rotating.Close()
		rotating = nil
	}
	if path != "" {
		rotating = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		}
	}
	rebuild()
}

// Sync flushes buffered log entries.
func Sync() {
	mu.Lock()
	s := sugar
	mu.Unlock()
	_ = s.Sync()
}

func current() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	return sugar
}

func Trace(format string, args ...any) {
	if trace.Load() {
		current().Debugf("[TRACE] "+format, args...)
	}
}

func Debug(format string, args ...any) { current().Debugf(format, args...) }

func Info(format string, args ...any) { current().Infof(format, args...) }

func Warn(format string, args ...any) { current().Warnf(format, args...) }

func Error(format string, args ...any) { current().Errorf(format, args...) }

func Fatal(format string, args ...any) { current().Fatalf(format, args...) }
