package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.Mutex
	logger *zap.Logger
)

// Init builds the process-wide logger. Development gets console encoding,
// production gets JSON. Safe to call more than once; the last call wins.
func Init(level, environment string) (*zap.Logger, error) {
	mu.Lock()
	defer mu.Unlock()

	var cfg zap.Config
	if environment == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	logger = l
	return logger, nil
}

// Get returns the process-wide logger, initializing a no-op logger if Init
// has not been called (keeps tests quiet).
func Get() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}
