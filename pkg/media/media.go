package media

import (
	"context"
	"errors"
)

// Kind identifies a generated media type.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindMusic Kind = "music"
)

// Valid reports whether k is one of the known media kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindImage, KindVideo, KindMusic:
		return true
	default:
		return false
	}
}

// AssetRef is the filename of a generated asset inside the media directory.
type AssetRef string

func (a AssetRef) String() string {
	return string(a)
}

// Status describes how a generation attempt ended.
type Status string

const (
	StatusOK          Status = "ok"
	StatusUnavailable Status = "unavailable"
	StatusTimeout     Status = "timeout"
	StatusSkipped     Status = "skipped"
)

var (
	ErrProviderUnavailable = errors.New("media provider unavailable")
	ErrProviderTimeout     = errors.New("media provider timed out")
	ErrBudgetExceeded      = errors.New("media budget exceeded")
	ErrNoFrames            = errors.New("no audio frames received")
)

// Result is the outcome of a gateway call. Gateway calls never fail; a
// missing asset is reported through Status and Err instead.
type Result struct {
	Kind   Kind     `json:"kind"`
	Asset  AssetRef `json:"asset,omitempty"`
	Status Status   `json:"status"`
	Err    error    `json:"-"`
}

// OK reports whether the call produced an asset.
func (r Result) OK() bool {
	return r.Status == StatusOK && r.Asset != ""
}

// Skipped builds the result for a request the budget refused.
func Skipped(kind Kind) Result {
	return Result{Kind: kind, Status: StatusSkipped, Err: ErrBudgetExceeded}
}

// Failed maps a provider error onto the unavailable/timeout statuses.
func Failed(kind Kind, err error) Result {
	status := StatusUnavailable
	if errors.Is(err, ErrProviderTimeout) || errors.Is(err, context.DeadlineExceeded) {
		status = StatusTimeout
	}
	return Result{Kind: kind, Status: status, Err: err}
}

// StyleContext carries the visual style applied to image and video prompts.
type StyleContext struct {
	ArtStyle     string `json:"art_style"`
	ColorPalette string `json:"color_palette"`
}

// Gateway is the uniform entry point to the external generation providers.
type Gateway interface {
	GenerateImage(ctx context.Context, prompt string, style StyleContext) Result
	GenerateVideo(ctx context.Context, prompt string, style StyleContext, seed *AssetRef) Result
	StreamMusic(ctx context.Context, sceneContext, tone string) Result
}
