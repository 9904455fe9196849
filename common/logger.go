package common

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
	loggerMu   sync.RWMutex
)

// Logger returns the package-level logger shared by the engine packages.
// A no-op logger is returned until SetLogger is called.
//
// Returns:
//   - *zap.Logger: the shared logger, never nil
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		loggerMu.Lock()
		defer loggerMu.Unlock()
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// SetLogger replaces the shared logger. Passing nil restores the no-op logger.
//
// Parameters:
//   - l: the logger to install
func SetLogger(l *zap.Logger) {
	Logger()
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// NewLogger builds a zap logger for the given level name ("debug", "info", "warn", "error").
// Unknown levels fall back to info. Development mode switches to the console encoder.
//
// Parameters:
//   - level: the minimum level to log
//   - development: true to use zap's development configuration
//
// Returns:
//   - *zap.Logger: the configured logger
//   - error: an error if the logger could not be built
func NewLogger(level string, development bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Level = lvl
	return cfg.Build()
}
