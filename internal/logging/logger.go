// Package logging provides category-keyed structured logging for the build
// engine, backed by go.uber.org/zap. Categories mirror the engine's major
// subsystems so a run's output can be filtered by component the same way the
// source CLI this engine was adapted from splits output per category.
package logging

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names one of the engine's major subsystems.
type Category string

const (
	CategoryOrchestrator Category = "orchestrator"
	CategoryScheduler    Category = "scheduler"
	CategoryChecker      Category = "checker"
	CategoryToolchain    Category = "toolchain"
	CategoryPool         Category = "pool"
	CategorySettings     Category = "settings"
	CategoryProject      Category = "project"
)

var (
	mu      sync.RWMutex
	base    *zap.Logger
	loggers = make(map[Category]*zap.SugaredLogger)
)

// Init builds the shared zap core at the requested verbosity.
//
//	-1 = debug (-v), 0 = info (default), 1 = warn (-q), 2 = error-only (-qq)
func Init(verbosity int) error {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = "t"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch {
	case verbosity <= -1:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case verbosity == 0:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case verbosity == 1:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	}

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("logging: build zap logger: %w", err)
	}

	mu.Lock()
	base = l
	loggers = make(map[Category]*zap.SugaredLogger)
	mu.Unlock()
	return nil
}

// Get returns (creating if necessary) the sugared logger for a category.
// If Init was never called, a no-op logger (zap.NewNop) is used so package
// code and tests can log unconditionally.
func Get(category Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	if base == nil {
		base = zap.NewNop()
	}
	l := base.With(zap.String("category", string(category))).Sugar()
	loggers[category] = l
	return l
}

// Sync flushes every category logger. Call once at process shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	for _, l := range loggers {
		_ = l.Sync()
	}
}

// Timer measures and logs the duration of a named operation against a category.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debugf("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs the duration at info level.
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Infof("%s completed in %v", t.op, elapsed)
	return elapsed
}

// LineQueue buffers the output lines of a single subprocess invocation so
// concurrent workers never interleave partial output. A worker appends every
// line produced by one tool invocation, then hands the queue to the
// coordinator, which drains it in order on its own goroutine (spec §5).
type LineQueue struct {
	mu    sync.Mutex
	lines []string
}

// Append adds one output line. Safe to call from a worker goroutine.
func (q *LineQueue) Append(line string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lines = append(q.lines, line)
}

// Drain returns and clears all buffered lines. Intended to be called only
// from the coordinator goroutine, one queue at a time.
func (q *LineQueue) Drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	lines := q.lines
	q.lines = nil
	return lines
}
