package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")

	l := New(Options{Level: "info", FilePath: path})
	Module(l, "storage").Info("report created", zap.Int64("id", 42))
	l.Debug("dropped below level")
	_ = l.Sync()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		lines = append(lines, entry)
	}

	require.Len(t, lines, 1)
	assert.Equal(t, "report created", lines[0]["message"])
	assert.Equal(t, "storage", lines[0]["module"])
	assert.Equal(t, "INFO", lines[0]["level"])
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	l := New(Options{Level: "loud"})
	assert.True(t, l.Core().Enabled(zap.InfoLevel))
	assert.False(t, l.Core().Enabled(zap.DebugLevel))
}

func TestModuleNil(t *testing.T) {
	assert.NotNil(t, Module(nil, "x"))
}
