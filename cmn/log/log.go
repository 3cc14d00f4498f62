// Package log provides the process-wide structured logger. Components take a
// *zap.SugaredLogger as a constructor argument rather than reaching for a
// global, but main() and tests that have no logger to thread through yet can
// call Init/Default.
package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu  sync.Mutex
	std *zap.SugaredLogger
)

// Init builds the process-wide logger. level is one of the zapcore level
// names ("debug", "info", "warn", "error"); json selects production JSON
// encoding over a human-readable console encoding.
func Init(level string, json bool) *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	std = build(level, json)
	return std
}

func build(level string, json bool) *zap.SugaredLogger {
	var lvl zapcore.Level
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if !json {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stdout"}

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// logging can't fail startup; fall back to a bare encoder to stderr.
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.AddSync(os.Stderr), lvl)
		logger = zap.New(core)
	}
	return logger.Sugar()
}

// Default returns the process logger, initializing a sane one on first use
// so packages never have to nil-check.
func Default() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if std == nil {
		std = build("info", false)
	}
	return std
}

// Sync flushes buffered log entries; call during shutdown.
func Sync() {
	mu.Lock()
	l := std
	mu.Unlock()
	if l != nil {
		_ = l.Sync()
	}
}
