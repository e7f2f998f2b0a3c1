package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestInitLoggerCreatesLogDir(t *testing.T) {
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	dir := t.TempDir()
	require.NoError(t, InitLogger(dir, "info"))
	t.Cleanup(Sync)

	info, err := os.Stat(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Same(t, Logger, zap.L())
}

func TestLogWriter(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	w := &logWriter{logger: zap.New(core)}

	n, err := w.Write([]byte("echo says hi\n"))
	require.NoError(t, err)
	assert.Equal(t, 13, n)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "echo says hi", logs.All()[0].Message)
}
