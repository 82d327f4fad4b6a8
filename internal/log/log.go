package log

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var (
	mu     sync.RWMutex
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sugar  *zap.SugaredLogger
	inited sync.Once
)

// initLogger builds the default JSON logger on stderr. stdout stays free for
// CLI output and the stdio protocol transport.
func initLogger() {
	inited.Do(func() {
		l, err := build("json")
		if err != nil {
			l = zap.NewNop()
		}
		mu.Lock()
		sugar = l.Sugar()
		mu.Unlock()
	})
}

func build(format string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	switch format {
	case "console":
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	default:
		cfg.Encoding = "json"
	}
	return cfg.Build(zap.AddCallerSkip(1))
}

// Configure replaces the global logger with one using the given level and
// encoding ("json" or "console"). Unknown levels fall back to info.
func Configure(lvl string, format string) error {
	initLogger()
	SetLevel(Level(strings.ToLower(lvl)))

	l, err := build(format)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	mu.Lock()
	old := sugar
	sugar = l.Sugar()
	mu.Unlock()
	_ = old.Sync()
	return nil
}

func SetLevel(l Level) {
	switch l {
	case LevelDebug:
		level.SetLevel(zapcore.DebugLevel)
	case LevelWarn:
		level.SetLevel(zapcore.WarnLevel)
	case LevelError:
		level.SetLevel(zapcore.ErrorLevel)
	default:
		level.SetLevel(zapcore.InfoLevel)
	}
}

// Sync flushes buffered entries. Call before exit.
func Sync() {
	initLogger()
	mu.RLock()
	defer mu.RUnlock()
	_ = sugar.Sync()
}

func Debug(msg string, kv ...any) {
	logger().Debugw(msg, pairs(kv)...)
}

func Info(msg string, kv ...any) {
	logger().Infow(msg, pairs(kv)...)
}

func Warn(msg string, kv ...any) {
	logger().Warnw(msg, pairs(kv)...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	logger().Errorw(msg, pairs(extended)...)
}

func logger() *zap.SugaredLogger {
	initLogger()
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// pairs drops a trailing key without a value and any non-string key, so a
// malformed call site never turns into a zap DPanic.
func pairs(kv []any) []any {
	out := make([]any, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, key, kv[i+1])
	}
	return out
}
