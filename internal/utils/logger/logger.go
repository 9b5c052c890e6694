package logger

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	global *zap.SugaredLogger
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init builds the process logger once at startup. The returned func flushes
// buffered entries and must be called before exit.
func Init(lvl string) (*zap.SugaredLogger, func(), error) {
	if err := SetLogLevel(lvl); err != nil {
		return nil, func() {}, err
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = level
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeCaller = nil
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	z, err := cfg.Build()
	if err != nil {
		return nil, func() {}, fmt.Errorf("building logger: %w", err)
	}
	sugar := z.Sugar()
	Set(sugar)

	return sugar, func() { _ = z.Sync() }, nil
}

// Set installs l as the global logger.
func Set(l *zap.SugaredLogger) {
	mu.Lock()
	defer mu.Unlock()
	global = l
}

// Logger returns the global logger, or a no-op logger before Init.
func Logger() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	if global == nil {
		return zap.NewNop().Sugar()
	}
	return global
}

// SetLogLevel changes the level of the global logger at runtime.
func SetLogLevel(lvl string) error {
	if lvl == "" {
		return nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(lvl))); err != nil {
		return fmt.Errorf("invalid log level %q: %w", lvl, err)
	}
	level.SetLevel(l)
	return nil
}
