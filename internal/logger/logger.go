// Package logger wraps zap construction so the rest of the code only deals
// with a ready *zap.Logger.
package logger

import "go.uber.org/zap"

// Logger holds the shared zap instance.
type Logger struct {
	// Log is the configured zap logger. Before Init it is a no-op logger,
	// so early code paths may log safely.
	Log *zap.Logger
}

// New returns a Logger backed by a no-op zap instance.
func New() *Logger {
	return &Logger{Log: zap.NewNop()}
}

// Init replaces the no-op instance with a production logger at the given
// level. Level names are case-insensitive ("Debug", "info", "WARN").
func (l *Logger) Init(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl

	log, err := cfg.Build()
	if err != nil {
		return err
	}

	l.Log = log
	return nil
}
