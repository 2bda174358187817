package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerFieldsAndNames(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapLoggerFrom(zap.New(core)).Named("verifier")

	log.Warn("payment rejected", map[string]any{"code": "EXPIRED_PAYMENT", "network": "base"})
	log.Debug("checked", nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "verifier", entries[0].LoggerName)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, map[string]interface{}{"code": "EXPIRED_PAYMENT", "network": "base"}, entries[0].ContextMap())
	assert.Empty(t, entries[1].Context)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestOrNoop(t *testing.T) {
	assert.Equal(t, NoopLogger{}, OrNoop(nil))
	assert.NotPanics(t, func() { OrNoop(nil).Named("x").Error("ignored", nil) })

	l := NewZapLogger("error")
	assert.Same(t, l, OrNoop(l))
}
