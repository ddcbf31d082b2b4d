package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Abdullah0x0/dreamdirector/internal/config"
	"github.com/Abdullah0x0/dreamdirector/internal/handlers"
	"github.com/Abdullah0x0/dreamdirector/internal/logger"
	"github.com/Abdullah0x0/dreamdirector/internal/orchestrator"
	"github.com/Abdullah0x0/dreamdirector/internal/services"
	"github.com/Abdullah0x0/dreamdirector/internal/services/events"
	"github.com/Abdullah0x0/dreamdirector/internal/services/mediagen"
	"github.com/Abdullah0x0/dreamdirector/internal/worker"
	"github.com/Abdullah0x0/dreamdirector/pkg/choice"
	"github.com/Abdullah0x0/dreamdirector/pkg/story"
	"github.com/Abdullah0x0/dreamdirector/pkg/textfilter"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting DreamDirector API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.ModelName)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	llmService, err := newLLMService(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to create LLM service", "error", err, "provider", cfg.LLMProvider)
		os.Exit(1)
	}
	if err := llmService.InitModel(ctx, cfg.ModelName); err != nil {
		// Choice generation falls back to the scripted options, so a
		// provider outage at startup is not fatal.
		log.Warn("Failed to initialize LLM model", "error", err, "model", cfg.ModelName)
	}
	chooser := choice.NewOrchestrator(
		services.NewRateLimitedService(llmService, cfg.ProviderRateLimit, cfg.ProviderBurst),
		choice.WithFilter(textfilter.New(cfg.ContentRating)),
		choice.WithTimeout(cfg.TextTimeout),
		choice.WithLogger(logger.Component(log, "choices")),
	)

	content, err := loadContent(cfg)
	if err != nil {
		log.Error("Failed to load story content", "error", err, "file", cfg.StoryContentFile)
		os.Exit(1)
	}

	store, err := mediagen.NewAssetStore(cfg.MediaDir)
	if err != nil {
		log.Error("Failed to prepare media directory", "error", err, "dir", cfg.MediaDir)
		os.Exit(1)
	}
	gateway := mediagen.NewGateway(store, mediaOptions(cfg, logger.Component(log, "media"))...)

	pool := worker.NewPool(gateway, worker.WithWorkers(cfg.MusicWorkers), worker.WithLogger(logger.Component(log, "music")))
	pool.Start()

	var (
		cache      services.Cache   = services.NewMemoryCache()
		publisher  events.Publisher = events.Nop{}
		subscriber handlers.Subscriber
		health     services.HealthChecker
	)
	if cfg.RedisURL != "" {
		redisService, err := services.NewRedisService(cfg.RedisURL, log)
		if err != nil {
			log.Error("Invalid Redis configuration", "error", err)
			os.Exit(1)
		}
		if err := redisService.WaitForConnection(ctx); err != nil {
			log.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		broadcaster := events.NewBroadcaster(redisService.GetClient(), logger.Component(log, "events"))
		cache, publisher, subscriber, health = redisService, broadcaster, broadcaster, redisService
		log.Info("Redis connection established, event stream enabled")
	} else {
		log.Info("REDIS_URL not set, using in-memory archive and no event stream")
	}

	orch := orchestrator.New(
		story.NewMachine(content),
		chooser,
		gateway,
		orchestrator.WithMusicQueue(pool),
		orchestrator.WithPublisher(publisher),
		orchestrator.WithArchive(cache, cfg.ArchiveTTL),
		orchestrator.WithAdHocPolicy(cfg.AdHocPolicy),
		orchestrator.WithClimaxTimeout(cfg.ClimaxTimeout),
		orchestrator.WithLogger(logger.Component(log, "orchestrator")),
	)

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	go orch.Run(runCtx, pool.Results())

	router := handlers.NewRouter(handlers.RouterDeps{
		Director:   orch,
		Files:      store,
		Subscriber: subscriber,
		Health:     handlers.NewHealthHandler(health, pool, cfg.MediaDir, log),
		Logger:     logger.Component(log, "http"),
	})

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the finale and the event stream hold the response open.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	pool.Stop()
	stopRun()
	if err := cache.Close(); err != nil {
		log.Error("Error closing cache", "error", err)
	}

	log.Info("Server exited")
}

func newLLMService(ctx context.Context, cfg *config.Config, log *slog.Logger) (services.LLMService, error) {
	switch cfg.LLMProvider {
	case config.ProviderAnthropic:
		log.Info("Using Anthropic LLM provider")
		return services.NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, log), nil
	case config.ProviderOpenAI:
		log.Info("Using OpenAI-compatible LLM provider", "base_url", cfg.OpenAIBaseURL)
		return services.NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ModelName, log), nil
	default:
		log.Info("Using Gemini LLM provider")
		return services.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.ModelName, log)
	}
}

func loadContent(cfg *config.Config) (*story.Content, error) {
	if cfg.StoryContentFile == "" {
		return story.DefaultContent()
	}
	return story.LoadContent(cfg.StoryContentFile)
}

// mediaOptions wires the Google media providers. Without a key every media
// call reports unavailable and the story continues without assets.
func mediaOptions(cfg *config.Config, log *slog.Logger) []mediagen.Option {
	opts := []mediagen.Option{
		mediagen.WithRateLimit(cfg.ProviderRateLimit, cfg.ProviderBurst),
		mediagen.WithImageTimeout(cfg.ImageTimeout),
		mediagen.WithMusicDuration(cfg.MusicDuration),
		mediagen.WithVideoPolling(cfg.VideoPollInterval, cfg.VideoMaxPolls),
		mediagen.WithLogger(log),
	}
	if cfg.GeminiAPIKey == "" {
		log.Warn("GEMINI_API_KEY not set, media generation disabled")
		return opts
	}
	return append(opts,
		mediagen.WithImageProvider(mediagen.NewImagenClient(cfg.GeminiAPIKey, cfg.ImageModel, "")),
		mediagen.WithVideoProvider(mediagen.NewVeoClient(cfg.GeminiAPIKey, cfg.VideoModel, "")),
		mediagen.WithMusicProvider(mediagen.NewLyriaClient(cfg.GeminiAPIKey, cfg.MusicModel, "", log)),
	)
}
