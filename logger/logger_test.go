package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/mogaika/scene_exporter/config"
)

func TestParseLevel(t *testing.T) {
	for level, expected := range map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"info":  zapcore.InfoLevel,
		"":      zapcore.InfoLevel,
	} {
		assert.Equal(t, expected, parseLevel(level), level)
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.log")
	log := New(config.LoggingConfig{Level: "debug", File: path, MaxSizeMB: 1})
	log.Named("test").Debug("hello file")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
	assert.Contains(t, string(data), "test")
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
