package media

import (
	"context"
	"fmt"
	"sync"
)

// MockGateway is a Gateway for tests. Unset funcs succeed with a
// predictable asset name.
type MockGateway struct {
	GenerateImageFunc func(ctx context.Context, prompt string, style StyleContext) Result
	GenerateVideoFunc func(ctx context.Context, prompt string, style StyleContext, seed *AssetRef) Result
	StreamMusicFunc   func(ctx context.Context, sceneContext, tone string) Result

	ImageCalls []string
	VideoCalls []VideoCall
	MusicCalls []MusicCall

	mu sync.Mutex
}

type VideoCall struct {
	Prompt string
	Seed   *AssetRef
}

type MusicCall struct {
	SceneContext string
	Tone         string
}

var _ Gateway = (*MockGateway)(nil)

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (m *MockGateway) GenerateImage(ctx context.Context, prompt string, style StyleContext) Result {
	m.mu.Lock()
	m.ImageCalls = append(m.ImageCalls, prompt)
	n := len(m.ImageCalls)
	fn := m.GenerateImageFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt, style)
	}
	return Result{Kind: KindImage, Status: StatusOK, Asset: AssetRef(fmt.Sprintf("generated_scene_%d.png", n))}
}

func (m *MockGateway) GenerateVideo(ctx context.Context, prompt string, style StyleContext, seed *AssetRef) Result {
	m.mu.Lock()
	m.VideoCalls = append(m.VideoCalls, VideoCall{Prompt: prompt, Seed: seed})
	n := len(m.VideoCalls)
	fn := m.GenerateVideoFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt, style, seed)
	}
	return Result{Kind: KindVideo, Status: StatusOK, Asset: AssetRef(fmt.Sprintf("generated_video_%d.mp4", n))}
}

func (m *MockGateway) StreamMusic(ctx context.Context, sceneContext, tone string) Result {
	m.mu.Lock()
	m.MusicCalls = append(m.MusicCalls, MusicCall{SceneContext: sceneContext, Tone: tone})
	n := len(m.MusicCalls)
	fn := m.StreamMusicFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, sceneContext, tone)
	}
	return Result{Kind: KindMusic, Status: StatusOK, Asset: AssetRef(fmt.Sprintf("lyria_final_%d.wav", n))}
}

// SetUnavailable makes every call fail with ErrProviderUnavailable.
func (m *MockGateway) SetUnavailable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateImageFunc = func(ctx context.Context, prompt string, style StyleContext) Result {
		return Failed(KindImage, ErrProviderUnavailable)
	}
	m.GenerateVideoFunc = func(ctx context.Context, prompt string, style StyleContext, seed *AssetRef) Result {
		return Failed(KindVideo, ErrProviderUnavailable)
	}
	m.StreamMusicFunc = func(ctx context.Context, sceneContext, tone string) Result {
		return Failed(KindMusic, ErrProviderUnavailable)
	}
}

// GetCalls returns copies of the recorded calls.
func (m *MockGateway) GetCalls() ([]string, []VideoCall, []MusicCall) {
	m.mu.Lock()
	defer m.mu.Unlock()

	images := make([]string, len(m.ImageCalls))
	copy(images, m.ImageCalls)
	videos := make([]VideoCall, len(m.VideoCalls))
	copy(videos, m.VideoCalls)
	music := make([]MusicCall, len(m.MusicCalls))
	copy(music, m.MusicCalls)
	return images, videos, music
}
