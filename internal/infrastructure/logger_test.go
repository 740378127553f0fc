package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covidcli/internal/config"
)

func lastLogEntry(t *testing.T, raw []byte) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestInitializeLoggerWritesJSONToFile(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	logFile := filepath.Join(t.TempDir(), "covidcli.log")
	logger, err := InitializeLogger(config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "both",
		FilePath: logFile,
	})
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger.Info("fetch finished", "bytes", 104857600, "unchanged", false)
	require.NoError(t, CloseLogFile())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	entry := lastLogEntry(t, content)
	assert.Equal(t, "fetch finished", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, float64(104857600), entry["bytes"])
	assert.Equal(t, false, entry["unchanged"])
}

func TestLoggerInjectsTraceIDFromContext(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	logFile := filepath.Join(t.TempDir(), "covidcli.log")
	logger, err := InitializeLogger(config.LoggingConfig{
		Level:    "debug",
		Output:   "file",
		FilePath: logFile,
	})
	require.NoError(t, err)

	ctx := WithTraceID(context.Background(), "run-7d3f")
	logger.InfoContext(ctx, "stage started", "stage", "analyze")
	require.NoError(t, CloseLogFile())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	entry := lastLogEntry(t, content)
	assert.Equal(t, "run-7d3f", entry["trace_id"])
	assert.Equal(t, "analyze", entry["stage"])
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("verbose"))
}

func TestLevelFiltering(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	logFile := filepath.Join(t.TempDir(), "covidcli.log")
	logger, err := InitializeLogger(config.LoggingConfig{
		Level:    "warn",
		Output:   "file",
		FilePath: logFile,
	})
	require.NoError(t, err)

	logger.Info("row counts", "rows", 12)
	logger.Warn("snapshot stale", "age_hours", 72)
	require.NoError(t, CloseLogFile())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	assert.NotContains(t, string(content), "row counts")
	entry := lastLogEntry(t, content)
	assert.Equal(t, "snapshot stale", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
}

func TestTraceIDContextHelpers(t *testing.T) {
	ctx := ContextWithTraceID(context.Background())
	traceID := GetTraceID(ctx)
	require.NotEmpty(t, traceID)

	// EnsureTraceID keeps an existing id and mints one when missing.
	assert.Equal(t, traceID, GetTraceID(EnsureTraceID(ctx)))
	assert.NotEmpty(t, GetTraceID(EnsureTraceID(context.Background())))
}

func TestLoggerAttributeHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	WithComponent(logger, "fetcher").Info("download started")
	entry := lastLogEntry(t, buf.Bytes())
	assert.Equal(t, "fetcher", entry["component"])

	buf.Reset()
	WithError(logger, os.ErrNotExist).Warn("clean data missing")
	entry = lastLogEntry(t, buf.Bytes())
	assert.Contains(t, entry["error"], "file does not exist")

	buf.Reset()
	WithFields(logger, map[string]interface{}{
		"location": "World",
		"stage":    "process",
	}).Info("aggregate rows split")
	entry = lastLogEntry(t, buf.Bytes())
	assert.Equal(t, "World", entry["location"])
	assert.Equal(t, "process", entry["stage"])
}

func TestLoggerFromContext(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	var buf bytes.Buffer
	globalLogger = slog.New(&traceHandler{Handler: slog.NewJSONHandler(&buf, nil)})

	ctx := WithTraceID(context.Background(), "ws-session-2")
	LoggerFromContext(ctx).InfoContext(ctx, "client subscribed")

	entry := lastLogEntry(t, buf.Bytes())
	assert.Equal(t, "ws-session-2", entry["trace_id"])
}
