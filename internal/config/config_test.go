package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ProviderGemini, cfg.LLMProvider)
	assert.Equal(t, AdHocSeparate, cfg.AdHocPolicy)
	assert.Equal(t, 6*time.Second, cfg.MusicDuration)
	assert.Equal(t, 20*time.Second, cfg.VideoPollInterval)
	assert.Equal(t, 2, cfg.MusicWorkers)
	assert.Equal(t, 24*time.Hour, cfg.ArchiveTTL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("MUSIC_DURATION", "3s")
	t.Setenv("MEDIA_ADHOC_POLICY", "shared")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "sk-test", cfg.APIKey())
	assert.Equal(t, 3*time.Second, cfg.MusicDuration)
	assert.Equal(t, AdHocShared, cfg.AdHocPolicy)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown provider", "LLM_PROVIDER", "ollama"},
		{"unknown ad-hoc policy", "MEDIA_ADHOC_POLICY", "unlimited"},
		{"zero workers", "MUSIC_WORKERS", "0"},
		{"bad duration", "IMAGE_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.in), tt.in)
	}
}
