package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want zapcore.Level
	}{
		{name: "production", opts: Options{}, want: zapcore.InfoLevel},
		{name: "debug", opts: Options{Debug: true}, want: zapcore.DebugLevel},
		{name: "console", opts: Options{Console: true}, want: zapcore.WarnLevel},
		{name: "console debug", opts: Options{Console: true, Debug: true}, want: zapcore.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, level, err := New(tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, level.Level())
			assert.True(t, logger.Core().Enabled(tt.want))
			assert.False(t, logger.Core().Enabled(tt.want-1))
		})
	}
}

func TestLevelIsAdjustable(t *testing.T) {
	logger, level, err := New(Options{})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))

	level.SetLevel(zapcore.DebugLevel)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}
