package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"

	AdHocSeparate = "separate"
	AdHocShared   = "shared"
)

type Config struct {
	Port        string     `env:"PORT" envDefault:"8080" validate:"required"`
	Environment string     `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelRaw string     `env:"LOG_LEVEL" envDefault:"info"`
	LogLevel    slog.Level `env:"-"`

	LLMProvider     string        `env:"LLM_PROVIDER" envDefault:"gemini" validate:"oneof=gemini anthropic openai"`
	ModelName       string        `env:"MODEL_NAME" envDefault:"gemini-2.5-flash"`
	GeminiAPIKey    string        `env:"GEMINI_API_KEY"`
	AnthropicAPIKey string        `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string        `env:"OPENAI_BASE_URL" validate:"omitempty,url"`
	ContentRating   string        `env:"CONTENT_RATING" envDefault:"PG-13"`
	TextTimeout     time.Duration `env:"TEXT_TIMEOUT" envDefault:"30s"`

	ImageModel        string        `env:"IMAGE_MODEL" envDefault:"imagen-4.0-generate-001"`
	VideoModel        string        `env:"VIDEO_MODEL" envDefault:"veo-3.0-generate-001"`
	MusicModel        string        `env:"MUSIC_MODEL" envDefault:"models/lyria-realtime-exp"`
	MediaDir          string        `env:"MEDIA_DIR" envDefault:"generated_media" validate:"required"`
	ImageTimeout      time.Duration `env:"IMAGE_TIMEOUT" envDefault:"60s"`
	MusicDuration     time.Duration `env:"MUSIC_DURATION" envDefault:"6s"`
	VideoPollInterval time.Duration `env:"VIDEO_POLL_INTERVAL" envDefault:"20s"`
	VideoMaxPolls     int           `env:"VIDEO_MAX_POLLS" envDefault:"15" validate:"min=1"`
	ClimaxTimeout     time.Duration `env:"CLIMAX_TIMEOUT" envDefault:"6m"`
	MusicWorkers      int           `env:"MUSIC_WORKERS" envDefault:"2" validate:"min=1,max=16"`
	ProviderRateLimit float64       `env:"PROVIDER_RATE_LIMIT" envDefault:"2" validate:"gt=0"`
	ProviderBurst     int           `env:"PROVIDER_BURST" envDefault:"4" validate:"min=1"`
	AdHocPolicy       string        `env:"MEDIA_ADHOC_POLICY" envDefault:"separate" validate:"oneof=separate shared"`

	RedisURL         string        `env:"REDIS_URL"`
	ArchiveTTL       time.Duration `env:"ARCHIVE_TTL" envDefault:"24h" validate:"gt=0"`
	StoryContentFile string        `env:"STORY_CONTENT_FILE"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelRaw)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// APIKey returns the credential for the configured text provider.
func (c *Config) APIKey() string {
	switch c.LLMProvider {
	case ProviderAnthropic:
		return c.AnthropicAPIKey
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	default:
		return c.GeminiAPIKey
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
