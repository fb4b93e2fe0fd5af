// Package logging provides categorized zap loggers for the pipeline.
// Each stage logs under its own named logger so a run can be followed
// per category (scanner, speculator, verifier, patcher, pipeline).
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names the subsystem a logger belongs to.
type Category string

const (
	CategoryPipeline  Category = "pipeline"
	CategoryScanner   Category = "scanner"
	CategorySlicer    Category = "slicer"
	CategorySpeculate Category = "speculator"
	CategoryVerifier  Category = "verifier"
	CategoryPatcher   Category = "patcher"
	CategoryLLM       Category = "llm"
	CategoryReport    Category = "report"
)

var (
	mu   sync.RWMutex
	root = zap.NewNop()
)

// Initialize installs the process-wide root logger. Called once at
// startup; library consumers that never call it get a no-op logger.
func Initialize(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	SetRoot(logger)
	return logger, nil
}

// SetRoot replaces the root logger. Tests use this with zaptest loggers.
func SetRoot(logger *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = zap.NewNop()
	}
	root = logger
}

// Get returns the named logger for a category.
func Get(cat Category) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.Named(string(cat))
}

// Sync flushes buffered log entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}
