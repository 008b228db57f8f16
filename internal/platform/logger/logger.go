// Package logger owns the process-wide zap logger.
package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Color  bool   // console only
}

const colorConsole = "color-console"

var (
	mu     sync.Mutex
	global *zap.Logger
	level  = zap.NewAtomicLevel()

	registerEncoder sync.Once
)

// DefaultConfig reads LOG_LEVEL and LOG_FORMAT. Color follows NO_COLOR, then
// LOG_COLOR, and is on otherwise.
func DefaultConfig() Config {
	cfg := Config{Level: "info", Format: "console", Color: true}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Format = strings.ToLower(v)
	}
	if _, off := os.LookupEnv("NO_COLOR"); off {
		cfg.Color = false
	} else if v := os.Getenv("LOG_COLOR"); v != "" {
		cfg.Color = v == "true" || v == "1"
	}
	return cfg
}

// Build creates a logger bound to lvl without installing it globally.
func Build(cfg Config, lvl zap.AtomicLevel) (*zap.Logger, error) {
	registerEncoder.Do(func() {
		_ = zap.RegisterEncoder(colorConsole, func(ec zapcore.EncoderConfig) (zapcore.Encoder, error) {
			return NewColoredConsoleEncoder(ec), nil
		})
	})

	lvl.SetLevel(parseLevel(cfg.Level))

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder

	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		enc.EncodeCaller = zapcore.ShortCallerEncoder
		if cfg.Color {
			encoding = colorConsole
			enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	}

	return zap.Config{
		Level:             lvl,
		Encoding:          encoding,
		EncoderConfig:     enc,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: lvl.Level() > zapcore.DebugLevel,
	}.Build()
}

// Initialize installs the global logger. Later calls replace it, keeping the
// shared level.
func Initialize(cfg Config) error {
	l, err := Build(cfg, level)
	if err != nil {
		return err
	}
	mu.Lock()
	global = l
	mu.Unlock()
	return nil
}

// Get returns the global logger, building one from DefaultConfig on first use.
func Get() *zap.Logger {
	mu.Lock()
	l := global
	mu.Unlock()
	if l != nil {
		return l
	}

	if err := Initialize(DefaultConfig()); err != nil {
		return zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	return global
}

// Level is the live level of the global logger. It is an http.Handler that
// answers GET and PUT with {"level": "..."}.
func Level() zap.AtomicLevel {
	return level
}

func Sync() {
	mu.Lock()
	defer mu.Unlock()
	if global != nil {
		_ = global.Sync()
	}
}

func parseLevel(s string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
