package compass

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogMonitorLevelFiltering(t *testing.T) {
	var out bytes.Buffer
	logger := NewLogMonitorWriter(&out)
	logger.SetLogLevel(LevelWarn)

	logger.Debug("debug line")
	logger.Info("info line")
	logger.Warn("warn line")
	logger.Errorf("error %d", 42)

	text := out.String()
	assert.NotContains(t, text, "debug line")
	assert.NotContains(t, text, "info line")
	assert.Contains(t, text, "[WARN]")
	assert.Contains(t, text, "warn line")
	assert.Contains(t, text, "error 42")
}

func TestLogMonitorHistory(t *testing.T) {
	logger := NewLogMonitor()
	logger.Info("first")
	logger.Info("second")

	history := string(logger.GetHistory())
	firstAt := strings.Index(history, "first")
	secondAt := strings.Index(history, "second")
	require.GreaterOrEqual(t, firstAt, 0)
	require.Greater(t, secondAt, firstAt)
}

func TestLogMonitorHistoryTrims(t *testing.T) {
	logger := NewLogMonitor()
	line := strings.Repeat("x", 1024)
	for i := 0; i < 100; i++ {
		logger.Info(line)
	}
	assert.LessOrEqual(t, len(logger.GetHistory()), 64*1024)
}

func TestLogMonitorSubscription(t *testing.T) {
	logger := NewLogMonitor()

	var got []string
	unsubscribe := logger.OnLogData(func(data []byte) {
		got = append(got, string(data))
	})

	logger.Info("delivered")
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "delivered")

	unsubscribe()
	logger.Info("dropped")
	assert.Len(t, got, 1)
}

func TestLogMonitorWriteBypassesLevel(t *testing.T) {
	var out bytes.Buffer
	logger := NewLogMonitorWriter(&out)
	logger.SetLogLevel(LevelError)

	n, err := logger.Write([]byte("raw upstream output\n"))
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	assert.Contains(t, out.String(), "raw upstream output")
}
