package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level string
		json  bool
		want  zapcore.Level
	}{
		{"debug", false, zapcore.DebugLevel},
		{"warn", true, zapcore.WarnLevel},
		{"ERROR", true, zapcore.ErrorLevel},
		{"bogus", false, zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := New(tt.level, tt.json)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.want))
			assert.False(t, logger.Core().Enabled(tt.want-1))
		})
	}
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "hello", Preview("hello", 10))
	assert.Equal(t, "hel...", Preview("hello world", 6))
	assert.Equal(t, "...", Preview("hello", 2))
	assert.Equal(t, "olá...", Preview("olá mundo", 6))
}
