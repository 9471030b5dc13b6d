package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(ttt *testing.T) {
	ttt.Parallel()
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{in: "trace", want: TraceLevel},
		{in: "DEBUG", want: zapcore.DebugLevel},
		{in: "info", want: zapcore.InfoLevel},
		{in: "warning", want: zapcore.WarnLevel},
		{in: "error", want: zapcore.ErrorLevel},
		{in: "loud", want: zapcore.InfoLevel},
	}
	for _, tt := range tests {
		ttt.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestSetLogger(t *testing.T) {
	require.NotNil(t, Logger())

	core, logs := observer.New(zapcore.WarnLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })

	Named("layout").Warn("multiple inheritance", zap.String("symbol", "Derived"))
	Named("layout").Info("dropped")
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "layout", entries[0].LoggerName)
	assert.Equal(t, "Derived", entries[0].ContextMap()["symbol"])
}

func TestNew(t *testing.T) {
	t.Parallel()
	l, err := New("debug")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.False(t, l.Core().Enabled(TraceLevel))
}
