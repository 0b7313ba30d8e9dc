package backend

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps a LOG_LEVEL value to a zap level. Unknown values mean info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// NewLoggers builds the human-readable console loggers used by the server.
// log honours level; lifecycle is pinned at info so that start and stop
// lines are written whatever LOG_LEVEL says. Both share out.
func NewLoggers(level string, out zapcore.WriteSyncer) (log, lifecycle *zap.Logger) {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      zapcore.OmitKey,
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	enc := zapcore.NewConsoleEncoder(encoderConfig)

	log = zap.New(zapcore.NewCore(enc, out, ParseLevel(level)))
	lifecycle = zap.New(zapcore.NewCore(enc.Clone(), out, zapcore.InfoLevel))
	return log, lifecycle
}

// Stdout is the shared output for NewLoggers.
func Stdout() zapcore.WriteSyncer {
	return zapcore.Lock(os.Stdout)
}
