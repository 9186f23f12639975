package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("loud")
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestNew_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stormd.log")
	log, err := New("debug", path)
	require.NoError(t, err)

	log.Debug("chunk stored", zap.String("id", "abc"))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"chunk stored"`)
	assert.Contains(t, string(data), `"timestamp"`)
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("verbose", "")
	assert.ErrorIs(t, err, ErrInvalidLevel)
}
