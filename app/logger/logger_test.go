package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/amirphl/callback-survey/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreLogger(t *testing.T) {
	t.Helper()
	out, level, formatter := Log.Out, Log.GetLevel(), Log.Formatter
	t.Cleanup(func() {
		Log.SetOutput(out)
		Log.SetLevel(level)
		Log.SetFormatter(formatter)
	})
}

func TestInitWritesJSONToFile(t *testing.T) {
	restoreLogger(t)
	path := filepath.Join(t.TempDir(), "app.log")

	closer := Init(config.LoggingConfig{
		Level:    "debug",
		Format:   "json",
		Output:   "file",
		FilePath: path,
		MaxSize:  1,
	}, "test")

	Log.WithField("form_id", "abc").Debug("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2, "init line plus the debug line")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "abc", entry["form_id"])
	assert.Equal(t, "debug", entry["level"])
}

func TestInitFallsBackToInfo(t *testing.T) {
	restoreLogger(t)

	closer := Init(config.LoggingConfig{Level: "chatty", Format: "text", Output: "stdout"}, "test")
	defer closer.Close()

	assert.Equal(t, logrus.InfoLevel, Get().GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, Log.Formatter)
}
