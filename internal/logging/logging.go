// Package logging provides the zap logger shared by the repository,
// the caching decorator, and the cache backend adapters.
//
// The logger is a process-wide singleton: Init is idempotent and only the
// first call takes effect. Library code obtains component loggers through
// Named and must never construct its own zap instance, so that consumers
// keep a single point of control over level and output format.
package logging

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls how the singleton logger is built.
type Config struct {
	// Env selects the output format: "prod" emits JSON, anything else
	// emits a human-readable console encoding.
	Env string

	// Level is the minimum level to emit: "debug", "info", "warn", "error".
	// Defaults to "info".
	Level string
}

var (
	once     sync.Once
	instance *zap.Logger
)

// Init initializes the singleton logger. Only the first call has any
// effect; subsequent calls are no-ops.
func Init(cfg Config) {
	once.Do(func() {
		instance = build(cfg)
	})
}

// L returns the singleton logger, initializing it with defaults if Init
// was never called.
func L() *zap.Logger {
	if instance == nil {
		Init(Config{})
	}
	return instance
}

// Named returns a logger scoped to a component name, e.g. "repository"
// or "cache.redis".
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// Sync flushes buffered log entries. Callers should defer it in main.
func Sync() error {
	if instance != nil {
		return instance.Sync()
	}
	return nil
}

func build(cfg Config) *zap.Logger {
	level := parseLevel(cfg.Level)

	var zcfg zap.Config
	if strings.EqualFold(cfg.Env, "prod") {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		zcfg.DisableStacktrace = true
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	l, err := zcfg.Build(zap.AddCaller())
	if err != nil {
		l, _ = zap.NewProduction()
	}
	return l
}

func parseLevel(lvl string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
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
