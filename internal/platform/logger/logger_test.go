package logger

import (
	"testing"
	"time"

	"github.com/nulzo/atlas-api/internal/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestBuild(t *testing.T) {
	for _, cfg := range []Config{
		{Level: "debug", Format: "json"},
		{Level: "warn", Format: "console"},
		{Level: "info", Format: "console", Color: true},
	} {
		lvl := zap.NewAtomicLevel()
		l, err := Build(cfg, lvl)
		require.NoError(t, err, cfg)
		assert.NotNil(t, l)
		assert.Equal(t, parseLevel(cfg.Level), lvl.Level())
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("NO_COLOR", "1")

	assert.Equal(t, Config{Level: "debug", Format: "json", Color: false}, DefaultConfig())
}

func TestLevelIsShared(t *testing.T) {
	require.NoError(t, Initialize(Config{Level: "error", Format: "json"}))
	assert.False(t, Get().Core().Enabled(zapcore.InfoLevel))

	Level().SetLevel(zapcore.DebugLevel)
	assert.True(t, Get().Core().Enabled(zapcore.DebugLevel))
}

func TestColoredConsoleEncoder(t *testing.T) {
	cli.SetEnabled(true)
	defer cli.SetEnabled(false)

	enc := NewColoredConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	buf, err := enc.EncodeEntry(zapcore.Entry{
		Level:   zapcore.InfoLevel,
		Time:    time.Unix(0, 0),
		Message: "catalog served",
	}, []zapcore.Field{zap.String("source", "fallback")})
	require.NoError(t, err)

	line := buf.String()
	assert.Contains(t, line, "catalog served")
	assert.Contains(t, line, cli.Blue+`"source"`+cli.Reset+":")
	assert.Contains(t, line, cli.Green+`"fallback"`+cli.Reset)
}
