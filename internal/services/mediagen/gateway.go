package mediagen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/Abdullah0x0/dreamdirector/pkg/media"
)

const (
	DefaultImageTimeout      = 60 * time.Second
	DefaultMusicDuration     = 6 * time.Second
	DefaultVideoPollInterval = 20 * time.Second
	DefaultVideoMaxPolls     = 15
)

// Gateway implements media.Gateway on top of the provider clients and the
// asset store. A nil provider reports every call as unavailable.
type Gateway struct {
	images ImageProvider
	videos VideoProvider
	music  MusicProvider
	store  *AssetStore

	limiter       *rate.Limiter
	imageTimeout  time.Duration
	musicDuration time.Duration
	pollInterval  time.Duration
	maxPolls      int
	logger        *slog.Logger
}

var _ media.Gateway = (*Gateway)(nil)

type Option func(*Gateway)

func WithImageProvider(p ImageProvider) Option {
	return func(g *Gateway) {
		g.images = p
	}
}

func WithVideoProvider(p VideoProvider) Option {
	return func(g *Gateway) {
		g.videos = p
	}
}

func WithMusicProvider(p MusicProvider) Option {
	return func(g *Gateway) {
		g.music = p
	}
}

// WithRateLimit shares one limiter across all provider calls.
func WithRateLimit(rps float64, burst int) Option {
	return func(g *Gateway) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithImageTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.imageTimeout = d
		}
	}
}

func WithMusicDuration(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.musicDuration = d
		}
	}
}

func WithVideoPolling(interval time.Duration, maxPolls int) Option {
	return func(g *Gateway) {
		if interval > 0 {
			g.pollInterval = interval
		}
		if maxPolls > 0 {
			g.maxPolls = maxPolls
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

func NewGateway(store *AssetStore, opts ...Option) *Gateway {
	g := &Gateway{
		store:         store,
		limiter:       rate.NewLimiter(rate.Inf, 1),
		imageTimeout:  DefaultImageTimeout,
		musicDuration: DefaultMusicDuration,
		pollInterval:  DefaultVideoPollInterval,
		maxPolls:      DefaultVideoMaxPolls,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Store exposes the asset store backing the gateway.
func (g *Gateway) Store() *AssetStore {
	return g.store
}

func (g *Gateway) GenerateImage(ctx context.Context, prompt string, style media.StyleContext) media.Result {
	if g.images == nil {
		return media.Failed(media.KindImage, media.ErrProviderUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, g.imageTimeout)
	defer cancel()

	if err := g.limiter.Wait(ctx); err != nil {
		return g.fail(media.KindImage, fmt.Errorf("%w: %v", media.ErrProviderTimeout, err))
	}

	start := time.Now()
	data, err := g.images.GenerateImage(ctx, ImagePrompt(prompt, style))
	if err != nil {
		return g.fail(media.KindImage, wrapProviderErr(ctx, err))
	}

	return g.save(media.KindImage, g.store.ImageName(), data, start)
}

func (g *Gateway) GenerateVideo(ctx context.Context, prompt string, style media.StyleContext, seed *media.AssetRef) media.Result {
	if g.videos == nil {
		return media.Failed(media.KindVideo, media.ErrProviderUnavailable)
	}

	var seedImage []byte
	if seed != nil && *seed != "" {
		data, err := g.store.Read(*seed)
		if err != nil {
			g.logger.Warn("Seed image unreadable, generating without it", "seed", seed.String(), "error", err)
		} else {
			seedImage = data
		}
	}
	seeded := len(seedImage) > 0

	if err := g.limiter.Wait(ctx); err != nil {
		return g.fail(media.KindVideo, fmt.Errorf("%w: %v", media.ErrProviderTimeout, err))
	}

	start := time.Now()
	op, err := g.videos.StartVideo(ctx, VideoPrompt(prompt, style, seeded), seedImage)
	if err != nil {
		return g.fail(media.KindVideo, wrapProviderErr(ctx, err))
	}

	if err := g.awaitVideo(ctx, op); err != nil {
		return g.fail(media.KindVideo, err)
	}

	data, err := op.Result(ctx)
	if err != nil {
		return g.fail(media.KindVideo, wrapProviderErr(ctx, err))
	}

	return g.save(media.KindVideo, g.store.VideoName(seeded), data, start)
}

// awaitVideo polls op until it finishes, maxPolls is reached, or ctx ends.
func (g *Gateway) awaitVideo(ctx context.Context, op Operation) error {
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for poll := 1; poll <= g.maxPolls; poll++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", media.ErrProviderTimeout, ctx.Err())
		case <-ticker.C:
		}

		if err := g.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", media.ErrProviderTimeout, err)
		}

		done, err := op.Poll(ctx)
		if err != nil {
			return wrapProviderErr(ctx, err)
		}
		g.logger.Debug("Video operation polled", "poll", poll, "done", done)
		if done {
			return nil
		}
	}
	return fmt.Errorf("%w: video not ready after %d polls", media.ErrProviderTimeout, g.maxPolls)
}

func (g *Gateway) StreamMusic(ctx context.Context, sceneContext, tone string) media.Result {
	if g.music == nil {
		return media.Failed(media.KindMusic, media.ErrProviderUnavailable)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return g.fail(media.KindMusic, fmt.Errorf("%w: %v", media.ErrProviderTimeout, err))
	}

	start := time.Now()
	pcm, err := g.music.StreamPCM(ctx, MusicPrompts(sceneContext, tone), g.musicDuration)
	if err != nil {
		return g.fail(media.KindMusic, err)
	}

	wav := EncodeWAV(pcm, SampleRate, Channels, BitsPerSample)
	return g.save(media.KindMusic, g.store.MusicName(sceneContext, tone), wav, start)
}

func (g *Gateway) save(kind media.Kind, name string, data []byte, start time.Time) media.Result {
	ref, err := g.store.Save(name, data)
	if err != nil {
		return g.fail(kind, fmt.Errorf("%w: %v", media.ErrProviderUnavailable, err))
	}

	g.logger.Info("Media generated",
		"kind", kind,
		"asset", ref.String(),
		"bytes", len(data),
		"duration", time.Since(start))

	return media.Result{Kind: kind, Asset: ref, Status: media.StatusOK}
}

func (g *Gateway) fail(kind media.Kind, err error) media.Result {
	result := media.Failed(kind, err)
	g.logger.Warn("Media generation failed", "kind", kind, "status", result.Status, "error", err)
	return result
}

// wrapProviderErr marks errors caused by an expired context as timeouts.
func wrapProviderErr(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", media.ErrProviderTimeout, err)
	}
	return fmt.Errorf("%w: %v", media.ErrProviderUnavailable, err)
}
