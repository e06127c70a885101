package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents log severity.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func ParseLevel(s string) Level {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "debug":
		return Debug
	case "warn":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case Debug:
		return zapcore.DebugLevel
	case Warn:
		return zapcore.WarnLevel
	case Error:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger is a printf-style facade over zap. A nil *Logger discards everything.
type Logger struct {
	min Level
	z   *zap.SugaredLogger
}

// New logs to stderr, leaving stdout to command output.
func New(level string, jsonOut bool) *Logger {
	return NewWriter(os.Stderr, level, jsonOut)
}

// NewWriter logs to an arbitrary writer; the TUI uses it to keep logs off the screen.
func NewWriter(out io.Writer, level string, jsonOut bool) *Logger {
	min := ParseLevel(level)
	var enc zapcore.Encoder
	if jsonOut {
		ec := zap.NewProductionEncoderConfig()
		ec.TimeKey = "ts"
		ec.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		enc = zapcore.NewJSONEncoder(ec)
	} else {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.TimeKey = ""
		ec.CallerKey = ""
		enc = zapcore.NewConsoleEncoder(ec)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(out), min.zapLevel())
	return &Logger{min: min, z: zap.New(core).Sugar()}
}

// NewFile appends to path, creating it if needed.
func NewFile(path, level string, jsonOut bool) (*Logger, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return NewWriter(f, level, jsonOut), f, nil
}

// Discard returns a logger that drops every entry.
func Discard() *Logger { return &Logger{min: Error + 1, z: zap.NewNop().Sugar()} }

func (l *Logger) Enabled(v Level) bool { return l != nil && v >= l.min }

func (l *Logger) Debugf(format string, a ...any) { l.log(Debug, fmt.Sprintf(format, a...)) }
func (l *Logger) Infof(format string, a ...any)  { l.log(Info, fmt.Sprintf(format, a...)) }
func (l *Logger) Warnf(format string, a ...any)  { l.log(Warn, fmt.Sprintf(format, a...)) }
func (l *Logger) Errorf(format string, a ...any) { l.log(Error, fmt.Sprintf(format, a...)) }

// With returns a child logger carrying structured key/value pairs.
func (l *Logger) With(kv ...any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{min: l.min, z: l.z.With(kv...)}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	return l.z.Sync()
}

func (l *Logger) log(level Level, msg string) {
	if !l.Enabled(level) {
		return
	}
	switch level {
	case Debug:
		l.z.Debug(msg)
	case Warn:
		l.z.Warn(msg)
	case Error:
		l.z.Error(msg)
	default:
		l.z.Info(msg)
	}
}
