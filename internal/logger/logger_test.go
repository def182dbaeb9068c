package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLogRotation(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "test.log")

	// 1 MB is the smallest size lumberjack accepts.
	require.NoError(t, Setup(Options{
		Level: "debug",
		File:  FileConfig{Path: logFile, MaxSizeMB: 1, MaxBackups: 2, MaxAgeDays: 1},
	}))
	defer Sync()

	long := strings.Repeat("x", 200)
	for i := 0; i < 15000; i++ {
		Sugar.Infof("record %d: %s", i, long)
	}
	Sync()

	_, err := os.Stat(logFile)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var rotated []string
	for _, e := range entries {
		if e.Name() != "test.log" && strings.HasPrefix(e.Name(), "test-") {
			rotated = append(rotated, e.Name())
		}
	}
	require.NotEmpty(t, rotated, "expected at least one rotated file")
	for _, name := range rotated {
		assert.Contains(t, name, "-20", "rotated file %s carries a timestamp", name)
	}
}

func TestLevelsFilterConsole(t *testing.T) {
	tests := []struct {
		level    string
		expected []string
		excluded []string
	}{
		{"error", []string{"ERROR"}, []string{"WARN", "INFO", "DEBUG"}},
		{"warn", []string{"ERROR", "WARN"}, []string{"INFO", "DEBUG"}},
		{"info", []string{"ERROR", "WARN", "INFO"}, []string{"DEBUG"}},
		{"debug", []string{"ERROR", "WARN", "INFO", "DEBUG"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Setup(Options{Level: tt.level, Console: &buf}))

			Debug("debug message")
			Info("info message")
			Warn("warn message")
			Error("error message")
			Sync()

			out := buf.String()
			for _, want := range tt.expected {
				assert.Contains(t, out, want)
			}
			for _, not := range tt.excluded {
				assert.NotContains(t, out, not)
			}
		})
	}
}

func TestFileAndConsoleTogether(t *testing.T) {
	var buf bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "both.log")
	require.NoError(t, Setup(Options{Level: "info", Console: &buf, File: FileConfig{Path: logFile, MaxSizeMB: 1}}))

	Info("frame presented", zap.Int("frame", 7))
	Sync()

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "frame presented")
	assert.Contains(t, string(content), `"frame": 7`)
	assert.Contains(t, buf.String(), "frame presented")
}

func TestDefaultFileConfig(t *testing.T) {
	assert.Equal(t, FileConfig{
		Path:       "/tmp/prism.log",
		MaxSizeMB:  50,
		MaxBackups: 3,
		MaxAgeDays: 7,
		Compress:   true,
	}, DefaultFileConfig("/tmp/prism.log"))
}

func TestNamedComponent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup(Options{Level: "info", Console: &buf}))

	Named("cbring").Info("wrapped to slot 0")
	Sync()
	assert.Contains(t, buf.String(), "cbring")
}

func TestNopBeforeSetup(t *testing.T) {
	Log = zap.NewNop()
	assert.NotPanics(t, func() {
		Named("early").Info("dropped")
		Sync()
	})
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"WARN":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"fatal":   zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}
