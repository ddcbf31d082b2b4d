package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Abdullah0x0/dreamdirector/internal/config"
	"github.com/Abdullah0x0/dreamdirector/internal/services"
	"github.com/Abdullah0x0/dreamdirector/internal/services/events"
	"github.com/Abdullah0x0/dreamdirector/internal/worker"
	"github.com/Abdullah0x0/dreamdirector/pkg/media"
	"github.com/Abdullah0x0/dreamdirector/pkg/story"
)

const (
	DefaultClimaxTimeout = 6 * time.Minute
	DefaultArchiveTTL    = 24 * time.Hour
	defaultTone          = "mysterious"
)

var (
	ErrEmptyRequest   = errors.New("request cannot be empty")
	ErrInvalidRequest = errors.New("invalid media request")
)

// MusicQueue accepts background music jobs without blocking.
type MusicQueue interface {
	Submit(job worker.MusicJob) bool
}

// Orchestrator is the single entry point to an adventure. Narrative
// operations run one at a time; the state lock is only held for short
// bookkeeping so provider calls never block status reads or music results.
type Orchestrator struct {
	machine       *story.Machine
	choices       story.ChoiceSource
	gateway       media.Gateway
	music         MusicQueue
	publisher     events.Publisher
	archive       services.Cache
	archiveTTL    time.Duration
	policy        string
	climaxTimeout time.Duration
	log           *slog.Logger
	now           func() time.Time

	opMu      sync.Mutex
	archiveMu sync.Mutex

	mu    sync.Mutex
	state *story.State
	adhoc adHocTally
}

type Option func(*Orchestrator)

// WithMusicQueue routes music generation to a background queue. Without
// one no music is generated during the narrative flow.
func WithMusicQueue(q MusicQueue) Option {
	return func(o *Orchestrator) {
		o.music = q
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.publisher = p
		}
	}
}

// WithArchive stores every concluded adventure in cache for ttl.
func WithArchive(cache services.Cache, ttl time.Duration) Option {
	return func(o *Orchestrator) {
		o.archive = cache
		if ttl > 0 {
			o.archiveTTL = ttl
		}
	}
}

// WithAdHocPolicy selects whether ad-hoc media shares the adventure budget.
func WithAdHocPolicy(policy string) Option {
	return func(o *Orchestrator) {
		if policy == config.AdHocShared || policy == config.AdHocSeparate {
			o.policy = policy
		}
	}
}

func WithClimaxTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.climaxTimeout = d
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

func New(machine *story.Machine, choices story.ChoiceSource, gateway media.Gateway, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		machine:       machine,
		choices:       choices,
		gateway:       gateway,
		publisher:     events.Nop{},
		archiveTTL:    DefaultArchiveTTL,
		policy:        config.AdHocSeparate,
		climaxTimeout: DefaultClimaxTimeout,
		log:           slog.Default(),
		now:           time.Now,
		state:         story.NewState(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// InitResult is returned by StartAdventure.
type InitResult struct {
	story.ScenarioInit
	Status string `json:"status"`
}

// SceneResult is the opening scene and its establishing image.
type SceneResult struct {
	Scene       story.SceneDescriptor `json:"scene"`
	Image       media.Result          `json:"image"`
	ImageReused bool                  `json:"image_reused"`
	Prompt      string                `json:"prompt"`
	MusicQueued bool                  `json:"music_queued"`
}

// ChoiceResult is a presented choice moment.
type ChoiceResult struct {
	Situation        string   `json:"situation"`
	Choices          []string `json:"choices"`
	Degraded         bool     `json:"degraded"`
	ChoicesMade      int      `json:"current_choice"`
	ChoicesRemaining int      `json:"choices_remaining"`
	MusicQueued      bool     `json:"music_queued"`
}

// ClimaxResult carries the finale and the media produced for it.
type ClimaxResult struct {
	story.ClimaxOutcome
	Video             media.Result `json:"video"`
	VideoPrompt       string       `json:"video_prompt"`
	BackupImage       media.Result `json:"backup_image"`
	MusicQueued       bool         `json:"music_queued"`
	CompletionMessage string       `json:"completion_message"`
}

// ResolutionResult is a resolved choice. Exactly one of Next or Climax is
// set.
type ResolutionResult struct {
	Resolution       story.ResolutionOutcome    `json:"resolution"`
	Continuation     *story.ContinuationOutcome `json:"continuation,omitempty"`
	Next             *ChoiceResult              `json:"next,omitempty"`
	Climax           *ClimaxResult              `json:"climax,omitempty"`
	Scene            string                     `json:"scene"`
	Complete         bool                       `json:"story_complete"`
	ChoicesMade      int                        `json:"current_choice"`
	ChoicesRemaining int                        `json:"choices_remaining"`
	TotalChoices     int                        `json:"total_choices"`
}

// StartAdventure discards the current adventure and starts a new one from
// the scenario matching request.
func (o *Orchestrator) StartAdventure(ctx context.Context, request string) (InitResult, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return InitResult{}, ErrEmptyRequest
	}

	o.opMu.Lock()
	defer o.opMu.Unlock()

	o.mu.Lock()
	init := o.machine.Start(o.state, request)
	o.adhoc = adHocTally{}
	o.mu.Unlock()

	o.log.Info("Adventure started",
		"adventure_id", init.AdventureID.String(),
		"story_type", init.ScenarioKey,
		"title", init.Title,
	)
	o.publish(ctx, init.AdventureID, events.EventTypeStoryStarted, map[string]any{
		"title":      init.Title,
		"story_type": init.ScenarioKey,
		"setting":    init.Setting,
	})

	return InitResult{ScenarioInit: init, Status: "adventure_initialized"}, nil
}

// OpeningScene plays the establishing beat. It queues the opening music
// and makes the adventure's one image request unless the location already
// has a reference.
func (o *Orchestrator) OpeningScene(ctx context.Context) (SceneResult, error) {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	o.mu.Lock()
	scene, err := o.machine.OpeningScene(o.state)
	if err != nil {
		o.mu.Unlock()
		return SceneResult{}, err
	}
	id := o.state.ID
	style := o.state.Visual.Context()
	prompt := establishingPrompt(scene.Location, scene.Mood, scene.Details, o.state.Characters, style)
	queued := o.queueMusic(id, "Opening scene in "+scene.Location, scene.Mood, "establishing")

	ref, hit := o.state.Visual.Locations.Get(scene.Location)
	reserved := !hit && o.state.Budget.Reserve(media.KindImage)
	o.mu.Unlock()

	result := SceneResult{Scene: scene, Prompt: prompt, MusicQueued: queued}
	switch {
	case hit:
		result.Image = media.Result{Kind: media.KindImage, Asset: ref, Status: media.StatusOK}
		result.ImageReused = true
	case reserved:
		result.Image = o.gateway.GenerateImage(ctx, prompt, style)
		o.mu.Lock()
		if o.settle(id, result.Image) {
			o.state.Visual.Locations.Put(scene.Location, result.Image.Asset)
		}
		o.mu.Unlock()
		o.publishMedia(ctx, id, result.Image, "opening_scene")
	default:
		result.Image = media.Skipped(media.KindImage)
	}

	return result, nil
}

// PresentChoice records a choice moment. Explicit option texts are used as
// given; otherwise the choice source writes them. It never changes the
// number of choices made.
func (o *Orchestrator) PresentChoice(ctx context.Context, situation string, explicit ...string) (ChoiceResult, error) {
	o.opMu.Lock()
	defer o.opMu.Unlock()
	return o.presentChoice(ctx, situation, explicit)
}

func (o *Orchestrator) presentChoice(ctx context.Context, situation string, explicit []string) (ChoiceResult, error) {
	o.mu.Lock()
	cc, err := o.machine.PrepareChoice(o.state, situation)
	o.mu.Unlock()
	if err != nil {
		return ChoiceResult{}, err
	}

	set, ok := story.ExplicitChoices(explicit)
	var genErr error
	if !ok {
		set, genErr = o.choices.GenerateChoices(ctx, cc)
		if genErr != nil {
			o.log.Warn("Choice generation degraded", "adventure_id", cc.AdventureID.String(), "error", genErr)
		}
	}

	o.mu.Lock()
	p, err := o.machine.RecordChoice(o.state, cc, set, genErr)
	if err != nil {
		o.mu.Unlock()
		return ChoiceResult{}, err
	}
	queued := o.queueMusic(cc.AdventureID, "Choice moment in "+o.state.CurrentScene, "tense", "choice_moment")
	result := ChoiceResult{
		Situation:        p.Choices.Situation,
		Choices:          p.Choices.Options(),
		Degraded:         p.Degraded,
		ChoicesMade:      o.state.ChoicesMade,
		ChoicesRemaining: max(0, o.state.TotalChoices-o.state.ChoicesMade),
		MusicQueued:      queued,
	}
	o.mu.Unlock()

	o.publish(ctx, cc.AdventureID, events.EventTypeChoicePresented, map[string]any{
		"situation": result.Situation,
		"choices":   result.Choices,
		"degraded":  result.Degraded,
	})
	return result, nil
}

// ResolveChoice applies the player's choice. Before the last choice the
// story continues to the next branch and a new choice is presented; the
// last choice runs the climax and concludes the adventure.
func (o *Orchestrator) ResolveChoice(ctx context.Context, chosen string) (ResolutionResult, error) {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	o.mu.Lock()
	rc, err := o.machine.PrepareResolution(o.state, chosen)
	o.mu.Unlock()
	if err != nil {
		return ResolutionResult{}, err
	}

	text, genErr := o.choices.GenerateConsequence(ctx, rc)
	if genErr != nil {
		o.log.Warn("Consequence generation degraded", "adventure_id", rc.AdventureID.String(), "error", genErr)
	}

	o.mu.Lock()
	outcome, err := o.machine.ApplyResolution(o.state, rc, text, genErr)
	if err != nil {
		o.mu.Unlock()
		return ResolutionResult{}, err
	}
	result := ResolutionResult{Resolution: outcome, TotalChoices: o.state.TotalChoices}
	if !outcome.Final {
		cont, err := o.machine.ContinueNarrative(o.state)
		if err != nil {
			o.mu.Unlock()
			return ResolutionResult{}, fmt.Errorf("continue narrative: %w", err)
		}
		result.Continuation = &cont
		o.queueMusic(rc.AdventureID, "Story continues in "+cont.Scene, "tense", "story_continuation")
	}
	o.mu.Unlock()

	o.publish(ctx, rc.AdventureID, events.EventTypeChoiceResolved, map[string]any{
		"chosen_option":     outcome.Chosen,
		"user_choices_made": outcome.ChoicesMade,
		"danger_level":      outcome.DangerLevel,
		"degraded":          outcome.Degraded,
	})

	if outcome.Final {
		climax, err := o.climax(ctx, rc.Option)
		if err != nil {
			return ResolutionResult{}, err
		}
		result.Climax = &climax
		result.Complete = true
	} else {
		next, err := o.presentChoice(ctx, "", nil)
		if err != nil {
			return ResolutionResult{}, fmt.Errorf("present next choice: %w", err)
		}
		result.Next = &next
	}

	o.mu.Lock()
	result.Scene = o.state.CurrentScene
	result.ChoicesMade = o.state.ChoicesMade
	result.ChoicesRemaining = max(0, o.state.TotalChoices-o.state.ChoicesMade)
	o.mu.Unlock()
	return result, nil
}

// climax runs the finale media concurrently, then concludes the
// adventure. The video is the only generation allowed to take minutes and
// is bounded by the climax timeout.
func (o *Orchestrator) climax(ctx context.Context, finalChoice string) (ClimaxResult, error) {
	o.mu.Lock()
	outcome, err := o.machine.Climax(o.state, finalChoice)
	if err != nil {
		o.mu.Unlock()
		return ClimaxResult{}, err
	}
	id := o.state.ID
	style := o.state.Visual.Context()
	seed := o.state.LastImage()
	videoPrompt := climaxVideoPrompt(finalChoice, outcome.Scene, style.ArtStyle)
	imagePrompt := momentImagePrompt("final climactic decision: "+finalChoice, "The ultimate confrontation in "+outcome.Scene, style.ArtStyle)
	videoReserved := o.state.Budget.Reserve(media.KindVideo)
	imageReserved := o.state.Budget.Reserve(media.KindImage)
	o.mu.Unlock()

	o.log.Info("Climax started",
		"adventure_id", id.String(),
		"seeded", seed != nil,
		"video", videoReserved,
		"backup_image", imageReserved,
	)
	o.publish(ctx, id, events.EventTypeClimax, map[string]any{
		"final_choice": finalChoice,
		"scene":        outcome.Scene,
	})

	cctx, cancel := context.WithTimeout(ctx, o.climaxTimeout)
	defer cancel()

	video := media.Skipped(media.KindVideo)
	image := media.Skipped(media.KindImage)
	g, gctx := errgroup.WithContext(cctx)
	if videoReserved {
		g.Go(func() error {
			video = o.gateway.GenerateVideo(gctx, videoPrompt, style, seed)
			return nil
		})
	}
	if imageReserved {
		g.Go(func() error {
			image = o.gateway.GenerateImage(gctx, imagePrompt, style)
			return nil
		})
	}
	_ = g.Wait()

	o.mu.Lock()
	o.settle(id, video)
	o.settle(id, image)
	queued := o.queueMusic(id, "epic story finale", "dramatic", "story_climax")
	if err := o.machine.Conclude(o.state); err != nil {
		o.mu.Unlock()
		return ClimaxResult{}, err
	}
	snap := o.state.Status()
	message := completionMessage(snap, o.state.MediaCounts(), video)
	o.mu.Unlock()

	if videoReserved {
		o.publishMedia(ctx, id, video, "climax")
	}
	if imageReserved {
		o.publishMedia(ctx, id, image, "climax")
	}
	o.archiveCurrent(ctx, id)
	o.publish(ctx, id, events.EventTypeStoryCompleted, map[string]any{
		"story_events":      snap.StoryEvents,
		"user_choices_made": snap.ChoicesMade,
		"generated_media":   snap.GeneratedMedia,
	})
	o.log.Info("Adventure concluded",
		"adventure_id", id.String(),
		"video_status", video.Status,
		"image_status", image.Status,
	)

	return ClimaxResult{
		ClimaxOutcome:     outcome,
		Video:             video,
		VideoPrompt:       videoPrompt,
		BackupImage:       image,
		MusicQueued:       queued,
		CompletionMessage: message,
	}, nil
}

// Status returns a snapshot of the current adventure.
func (o *Orchestrator) Status() story.StatusSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Status()
}

// PortraitRequest describes a character to draw.
type PortraitRequest struct {
	Name        string `json:"name" validate:"required"`
	Personality string `json:"personality"`
	Context     string `json:"context"`
	Emotion     string `json:"emotion"`
}

// PortraitResult is a character portrait, reused or freshly generated.
type PortraitResult struct {
	Name        string       `json:"name"`
	Image       media.Result `json:"image"`
	Reused      bool         `json:"reused"`
	Prompt      string       `json:"prompt,omitempty"`
	MusicQueued bool         `json:"music_queued"`
}

// CharacterPortrait returns the stored portrait for a character or spends
// the image budget on a new one.
func (o *Orchestrator) CharacterPortrait(ctx context.Context, req PortraitRequest) (PortraitResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return PortraitResult{}, fmt.Errorf("%w: character name is required", ErrInvalidRequest)
	}
	if req.Emotion == "" {
		req.Emotion = "neutral"
	}

	o.opMu.Lock()
	defer o.opMu.Unlock()

	o.mu.Lock()
	if !o.state.Started() {
		o.mu.Unlock()
		return PortraitResult{}, story.ErrNotStarted
	}
	id := o.state.ID
	style := o.state.Visual.Context()
	queued := o.queueMusic(id, "Meeting "+req.Name, req.Emotion, "character_interaction")

	if ref, ok := o.state.Visual.Characters.Get(req.Name); ok {
		o.mu.Unlock()
		return PortraitResult{
			Name:        req.Name,
			Image:       media.Result{Kind: media.KindImage, Asset: ref, Status: media.StatusOK},
			Reused:      true,
			MusicQueued: queued,
		}, nil
	}
	o.state.AddCharacter(req.Name)
	reserved := o.state.Budget.Reserve(media.KindImage)
	o.mu.Unlock()

	prompt := portraitPrompt(req, style)
	result := PortraitResult{Name: req.Name, Prompt: prompt, MusicQueued: queued}
	if !reserved {
		result.Image = media.Skipped(media.KindImage)
		return result, nil
	}

	result.Image = o.gateway.GenerateImage(ctx, prompt, style)
	o.mu.Lock()
	if o.settle(id, result.Image) {
		o.state.Visual.Characters.Put(req.Name, result.Image.Asset)
		o.state.Append(story.EventCharacterPortrait, map[string]any{
			"name":  req.Name,
			"asset": result.Image.Asset.String(),
		}, o.now())
	}
	o.mu.Unlock()
	o.publishMedia(ctx, id, result.Image, "character_portrait")

	return result, nil
}

// MemoryRequest is a piece of world knowledge to keep.
type MemoryRequest struct {
	Key      string `json:"key" validate:"required"`
	Value    string `json:"value" validate:"required"`
	Category string `json:"category" validate:"required"`
}

// MemoryResult is a stored memory and its illustration, if one was drawn.
type MemoryResult struct {
	story.MemoryOutcome
	Prompt string       `json:"prompt"`
	Image  media.Result `json:"image"`
}

// RememberVisual stores world knowledge. Every third entry in a category
// is illustrated when the image budget allows it.
func (o *Orchestrator) RememberVisual(ctx context.Context, req MemoryRequest) (MemoryResult, error) {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	o.mu.Lock()
	outcome, err := o.machine.RememberVisual(o.state, req.Category, req.Key, req.Value)
	if err != nil {
		o.mu.Unlock()
		return MemoryResult{}, err
	}
	id := o.state.ID
	style := o.state.Visual.Context()
	reserved := outcome.Visualize && o.state.Budget.Reserve(media.KindImage)
	o.mu.Unlock()

	result := MemoryResult{
		MemoryOutcome: outcome,
		Prompt:        memoryPrompt(outcome, style.ArtStyle),
		Image:         media.Skipped(media.KindImage),
	}
	if !reserved {
		return result, nil
	}

	result.Image = o.gateway.GenerateImage(ctx, result.Prompt, style)
	o.mu.Lock()
	o.settle(id, result.Image)
	o.mu.Unlock()
	o.publishMedia(ctx, id, result.Image, "visual_memory")

	return result, nil
}

// settle resolves a reservation made against the adventure id. It reports
// whether the asset was recorded. Results for a replaced adventure are
// ignored since their reservation died with it.
func (o *Orchestrator) settle(id uuid.UUID, res media.Result) bool {
	if o.state.ID != id || res.Status == media.StatusSkipped {
		return false
	}
	if !res.OK() {
		o.state.Budget.Release(res.Kind)
		return false
	}
	o.state.Budget.Commit(res.Kind)
	o.state.AddAsset(res.Kind, res.Asset)
	return true
}

func (o *Orchestrator) queueMusic(id uuid.UUID, sceneContext, tone, reason string) bool {
	if o.music == nil {
		return false
	}
	return o.music.Submit(worker.MusicJob{
		AdventureID:  id,
		SceneContext: sceneContext,
		Tone:         tone,
		Reason:       reason,
		Enqueued:     o.now(),
	})
}

// Run applies finished music jobs to the adventure until ctx is done or
// results is closed.
func (o *Orchestrator) Run(ctx context.Context, results <-chan worker.MusicResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-results:
			if !ok {
				return
			}
			o.ApplyMusic(ctx, res)
		}
	}
}

// ApplyMusic records a finished music job. Jobs queued for an earlier
// adventure are dropped. History grows in completion order.
func (o *Orchestrator) ApplyMusic(ctx context.Context, res worker.MusicResult) bool {
	o.mu.Lock()
	if o.state.ID != res.Job.AdventureID {
		o.mu.Unlock()
		o.log.Debug("Dropping music for a previous adventure", "job_id", res.Job.ID)
		return false
	}
	applied := false
	if res.Result.OK() {
		o.state.AddAsset(media.KindMusic, res.Result.Asset)
		o.state.Budget.Record(media.KindMusic)
		o.state.Append(story.EventMusicGenerated, map[string]any{
			"scene_context": res.Job.SceneContext,
			"tone":          res.Job.Tone,
			"reason":        res.Job.Reason,
			"asset":         res.Result.Asset.String(),
		}, o.now())
		applied = true
	}
	o.mu.Unlock()

	// Music finishing after the climax, the finale track included, lands in
	// the archived copy too.
	if applied {
		o.archiveCurrent(ctx, res.Job.AdventureID)
	}
	o.publishMedia(ctx, res.Job.AdventureID, res.Result, res.Job.Reason)
	return applied
}

func (o *Orchestrator) publish(ctx context.Context, id uuid.UUID, eventType events.EventType, data map[string]any) {
	if err := o.publisher.Publish(ctx, id, eventType, data); err != nil {
		o.log.Warn("Failed to publish event", "event_type", eventType, "error", err)
	}
}

func (o *Orchestrator) publishMedia(ctx context.Context, id uuid.UUID, res media.Result, reason string) {
	if res.Status == media.StatusSkipped {
		return
	}
	data := map[string]any{
		"kind":   res.Kind,
		"status": res.Status,
		"reason": reason,
	}
	if res.OK() {
		data["asset"] = res.Asset.String()
		o.publish(ctx, id, events.EventTypeMediaReady, data)
		return
	}
	if res.Err != nil {
		data["error"] = res.Err.Error()
	}
	o.publish(ctx, id, events.EventTypeMediaFailed, data)
}
