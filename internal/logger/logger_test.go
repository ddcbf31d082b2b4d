package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdullah0x0/dreamdirector/internal/config"
)

func TestSetup_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := setup(&config.Config{Environment: "production", LogLevel: slog.LevelInfo}, &buf)

	WithAdventure(WithRequestID(Component(log, "http"), "req-1"), "adv-1").Info("Story started")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Story started", line["msg"])
	assert.Equal(t, ServiceName, line["service"])
	assert.Equal(t, "production", line["env"])
	assert.Equal(t, "http", line["component"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "adv-1", line["adventure_id"])
	assert.NotContains(t, line, "source")
}

func TestSetup_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := setup(&config.Config{Environment: "development", LogLevel: slog.LevelWarn}, &buf)

	log.Info("hidden")
	assert.Empty(t, buf.String())

	log.Warn("visible", "error", "boom")
	assert.Contains(t, buf.String(), "error=boom")
	assert.Contains(t, buf.String(), "service=dreamdirector")
}

func TestSetup_DebugAddsSource(t *testing.T) {
	var buf bytes.Buffer
	log := setup(&config.Config{Environment: "production", LogLevel: slog.LevelDebug}, &buf)

	log.Debug("trace")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Contains(t, line, "source")
}

func TestSetup_SetsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	log := setup(&config.Config{Environment: "development", LogLevel: slog.LevelInfo}, &buf)
	assert.Same(t, log, slog.Default())
}
