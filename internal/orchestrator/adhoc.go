package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/Abdullah0x0/dreamdirector/internal/config"
	"github.com/Abdullah0x0/dreamdirector/pkg/media"
)

// adHocTally holds assets generated outside the narrative flow when they
// do not share the adventure budget.
type adHocTally struct {
	images []media.AssetRef
	videos []media.AssetRef
	music  []media.AssetRef
}

func (t *adHocTally) add(ref media.AssetRef, kind media.Kind) {
	switch kind {
	case media.KindImage:
		t.images = append(t.images, ref)
	case media.KindVideo:
		t.videos = append(t.videos, ref)
	case media.KindMusic:
		t.music = append(t.music, ref)
	}
}

// AdHocRequest asks for one asset outside the narrative flow.
type AdHocRequest struct {
	Kind          media.Kind `json:"type" validate:"required,oneof=image video music"`
	Prompt        string     `json:"prompt" validate:"required"`
	EmotionalTone string     `json:"emotional_tone"`
}

// AdHocResult is the outcome of an ad-hoc request. Files lists every asset
// of the produced kind visible to the requester, oldest first.
type AdHocResult struct {
	Requested media.Kind       `json:"type"`
	Result    media.Result     `json:"result"`
	Method    string           `json:"method"`
	Prompt    string           `json:"prompt"`
	Files     []media.AssetRef `json:"files"`
}

// GenerateAdHoc produces one image, video, or music track on request. A
// failed video falls back to an image. Under the separate policy the
// adventure budget is not consulted and the assets are kept apart from
// the adventure's media lists.
func (o *Orchestrator) GenerateAdHoc(ctx context.Context, req AdHocRequest) (AdHocResult, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return AdHocResult{}, fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	if !req.Kind.Valid() {
		return AdHocResult{}, fmt.Errorf("%w: unknown media type %q", ErrInvalidRequest, req.Kind)
	}
	tone := strings.TrimSpace(req.EmotionalTone)
	if tone == "" {
		tone = defaultTone
	}

	o.mu.Lock()
	style := o.state.Visual.Context()
	o.mu.Unlock()

	out := AdHocResult{Requested: req.Kind}
	switch req.Kind {
	case media.KindImage:
		out.Method = "image_generation"
		out.Prompt = establishingPrompt(req.Prompt, tone, "cinematic quality", nil, style)
		out.Result = o.adHoc(ctx, media.KindImage, func(ctx context.Context) media.Result {
			return o.gateway.GenerateImage(ctx, out.Prompt, style)
		})
	case media.KindMusic:
		out.Method = "music_generation"
		out.Prompt = req.Prompt
		out.Result = o.adHoc(ctx, media.KindMusic, func(ctx context.Context) media.Result {
			return o.gateway.StreamMusic(ctx, req.Prompt, tone)
		})
	case media.KindVideo:
		out.Method = "direct_video_generation"
		out.Prompt = req.Prompt
		out.Result = o.adHoc(ctx, media.KindVideo, func(ctx context.Context) media.Result {
			return o.gateway.GenerateVideo(ctx, req.Prompt, style, nil)
		})
		if !out.Result.OK() {
			o.log.Info("Video unavailable, falling back to image", "status", out.Result.Status)
			out.Method = "fallback_to_image"
			out.Prompt = momentImagePrompt("cinematic moment: "+req.Prompt, req.Prompt, style.ArtStyle)
			out.Result = o.adHoc(ctx, media.KindImage, func(ctx context.Context) media.Result {
				return o.gateway.GenerateImage(ctx, out.Prompt, style)
			})
		}
	}

	o.mu.Lock()
	out.Files = o.filesLocked(out.Result.Kind)
	id := o.state.ID
	o.mu.Unlock()

	o.publishMedia(ctx, id, out.Result, "ad_hoc")
	return out, nil
}

func (o *Orchestrator) adHoc(ctx context.Context, kind media.Kind, generate func(context.Context) media.Result) media.Result {
	shared := o.policy == config.AdHocShared

	o.mu.Lock()
	id := o.state.ID
	if shared && !o.state.Budget.Reserve(kind) {
		o.mu.Unlock()
		return media.Skipped(kind)
	}
	o.mu.Unlock()

	res := generate(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()
	if shared {
		o.settle(id, res)
	} else if res.OK() && o.state.ID == id {
		o.adhoc.add(res.Asset, kind)
	}
	return res
}

// filesLocked lists the assets of kind visible to ad-hoc requesters.
func (o *Orchestrator) filesLocked(kind media.Kind) []media.AssetRef {
	var structured, extra []media.AssetRef
	switch kind {
	case media.KindImage:
		structured, extra = o.state.Images, o.adhoc.images
	case media.KindVideo:
		structured, extra = o.state.Videos, o.adhoc.videos
	case media.KindMusic:
		structured, extra = o.state.Music, o.adhoc.music
	}
	files := make([]media.AssetRef, 0, len(structured)+len(extra))
	files = append(files, structured...)
	return append(files, extra...)
}

// AdHocCounts returns the assets generated outside the adventure budget.
func (o *Orchestrator) AdHocCounts() media.Counts {
	o.mu.Lock()
	defer o.mu.Unlock()
	return media.Counts{
		Images: len(o.adhoc.images),
		Videos: len(o.adhoc.videos),
		Music:  len(o.adhoc.music),
	}
}
