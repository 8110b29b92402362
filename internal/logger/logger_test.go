package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLoggerFormatsCategory(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf)

	l.LogAdmission("id", "G1", "GRANTED")
	l.LogSecurity("KEY_MISMATCH", "operator key rejected")

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "[ADMISSION ]")
	assert.Contains(t, out, "[id] G1 - GRANTED")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "[SECURITY  ]")
}

func TestNewLoggerWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(dir, "gate-test")
	l.out = &bytes.Buffer{}

	l.Error("database", "boom")
	l.Close()

	matches, err := filepath.Glob(filepath.Join(dir, "gate-test-*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var entry LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry.Level == "ERROR" {
			found = true
			assert.Equal(t, "DATABASE", entry.Category)
			assert.Equal(t, "boom", entry.Message)
			assert.Equal(t, "logger_test.go", entry.File)
		}
	}
	assert.True(t, found)
}
