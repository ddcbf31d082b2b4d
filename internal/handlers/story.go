package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Abdullah0x0/dreamdirector/internal/orchestrator"
	"github.com/Abdullah0x0/dreamdirector/internal/services/mediagen"
	"github.com/Abdullah0x0/dreamdirector/pkg/story"
)

// Director is the story surface the HTTP layer drives.
type Director interface {
	StartAdventure(ctx context.Context, request string) (orchestrator.InitResult, error)
	OpeningScene(ctx context.Context) (orchestrator.SceneResult, error)
	PresentChoice(ctx context.Context, situation string, explicit ...string) (orchestrator.ChoiceResult, error)
	ResolveChoice(ctx context.Context, chosen string) (orchestrator.ResolutionResult, error)
	Status() story.StatusSnapshot
	CharacterPortrait(ctx context.Context, req orchestrator.PortraitRequest) (orchestrator.PortraitResult, error)
	RememberVisual(ctx context.Context, req orchestrator.MemoryRequest) (orchestrator.MemoryResult, error)
	GenerateAdHoc(ctx context.Context, req orchestrator.AdHocRequest) (orchestrator.AdHocResult, error)
	MediaFiles() mediagen.Listing
	Export() (orchestrator.Export, error)
	Archived(ctx context.Context, id string) (*orchestrator.Export, error)
	ListArchived(ctx context.Context) ([]orchestrator.ArchiveEntry, error)
}

var _ Director = (*orchestrator.Orchestrator)(nil)

type StartStoryRequest struct {
	StoryRequest string `json:"story_request" validate:"required"`
}

type ChoiceRequest struct {
	Choice string `json:"choice" validate:"required"`
}

// PresentChoiceRequest replaces the pending choice moment. Choices, when
// given, are used as the A, B, and C options in order.
type PresentChoiceRequest struct {
	Situation string   `json:"situation"`
	Choices   []string `json:"choices" validate:"max=3,dive,max=500"`
}

// ProgressEntry is one beat of the story returned alongside a choice.
type ProgressEntry struct {
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// StoryResponse is the shape shared by start-story and make-choice.
type StoryResponse struct {
	AdventureID      string            `json:"adventure_id,omitempty"`
	Narrative        string            `json:"narrative"`
	Choices          []string          `json:"choices"`
	SceneDescription string            `json:"scene_description"`
	Mood             string            `json:"mood"`
	SceneID          string            `json:"scene_id,omitempty"`
	MediaFiles       map[string]string `json:"media_files"`
	StoryComplete    bool              `json:"story_complete"`
	StoryProgression []ProgressEntry   `json:"story_progression"`
	ChoicesRemaining int               `json:"choices_remaining"`
	CurrentChoice    int               `json:"current_choice"`
	TotalChoices     int               `json:"total_choices"`
}

type StoryHandler struct {
	director Director
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

func NewStoryHandler(director Director, logger *slog.Logger) *StoryHandler {
	return &StoryHandler{
		director: director,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// StartStory starts an adventure, plays the opening scene, and presents
// the first choice.
// POST /api/start-story
func (h *StoryHandler) StartStory(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Start story requested",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	var req StartStoryRequest
	if err := decode(r, h.validate, &req); err != nil {
		h.logger.Warn("Invalid start-story request", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'story_request' field.")
		return
	}

	ctx := r.Context()
	init, err := h.director.StartAdventure(ctx, req.StoryRequest)
	if err != nil {
		writeOrchestratorError(w, h.logger, "start_adventure", err)
		return
	}
	scene, err := h.director.OpeningScene(ctx)
	if err != nil {
		writeOrchestratorError(w, h.logger, "opening_scene", err)
		return
	}
	first, err := h.director.PresentChoice(ctx, "")
	if err != nil {
		writeOrchestratorError(w, h.logger, "present_choice", err)
		return
	}

	narrative := scene.Scene.Narrative
	if narrative == "" {
		narrative = init.Hook
	}
	if first.Situation != "" {
		narrative += " " + first.Situation
	}

	media := map[string]string{}
	if scene.Image.OK() {
		media["opening_image"] = scene.Image.Asset.String()
	}

	status := h.director.Status()
	writeJSON(w, h.logger, http.StatusOK, StoryResponse{
		AdventureID:      init.AdventureID.String(),
		Narrative:        narrative,
		Choices:          first.Choices,
		SceneDescription: init.Setting,
		Mood:             status.CurrentMood,
		SceneID:          "opening_scene",
		MediaFiles:       media,
		StoryProgression: []ProgressEntry{},
		ChoicesRemaining: status.ChoicesRemaining,
		CurrentChoice:    status.ChoicesMade,
		TotalChoices:     status.ChoicesMade + status.ChoicesRemaining,
	})
}

// MakeChoice resolves the player's choice. The last choice runs the
// finale and may block for the duration of the climax video.
// POST /api/make-choice
func (h *StoryHandler) MakeChoice(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Make choice requested",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	var req ChoiceRequest
	if err := decode(r, h.validate, &req); err != nil {
		h.logger.Warn("Invalid make-choice request", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with a non-empty 'choice' string.")
		return
	}

	res, err := h.director.ResolveChoice(r.Context(), req.Choice)
	if err != nil {
		writeOrchestratorError(w, h.logger, "resolve_choice", err)
		return
	}

	now := h.now()
	progression := []ProgressEntry{{Type: "choice_result", Content: res.Resolution.Narrative, Timestamp: now}}
	resp := StoryResponse{
		Narrative:        res.Resolution.Narrative,
		Choices:          []string{},
		SceneDescription: res.Scene,
		Mood:             h.director.Status().CurrentMood,
		MediaFiles:       map[string]string{},
		StoryComplete:    res.Complete,
		ChoicesRemaining: res.ChoicesRemaining,
		CurrentChoice:    res.ChoicesMade,
		TotalChoices:     res.TotalChoices,
	}

	if res.Continuation != nil && res.Continuation.Narrative != "" {
		progression = append(progression, ProgressEntry{Type: "story_continuation", Content: res.Continuation.Narrative, Timestamp: now})
	}
	if res.Next != nil {
		resp.Choices = res.Next.Choices
		progression = append(progression, ProgressEntry{Type: "new_situation", Content: res.Next.Situation, Timestamp: now})
	}
	if res.Climax != nil {
		resp.SceneDescription = res.Scene + " - FINALE"
		progression = append(progression, ProgressEntry{Type: "story_climax", Content: res.Climax.CompletionMessage, Timestamp: now})
		if res.Climax.Video.OK() {
			resp.MediaFiles["finale_video"] = res.Climax.Video.Asset.String()
		}
		if res.Climax.BackupImage.OK() {
			resp.MediaFiles["finale_image"] = res.Climax.BackupImage.Asset.String()
		}
	}
	resp.StoryProgression = progression

	writeJSON(w, h.logger, http.StatusOK, resp)
}

// PresentChoice re-presents the current choice moment, with the caller's
// options when supplied.
// POST /api/present-choice
func (h *StoryHandler) PresentChoice(w http.ResponseWriter, r *http.Request) {
	var req PresentChoiceRequest
	if err := decode(r, h.validate, &req); err != nil {
		h.logger.Warn("Invalid present-choice request", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with an optional 'situation' and up to three 'choices'.")
		return
	}

	res, err := h.director.PresentChoice(r.Context(), req.Situation, req.Choices...)
	if err != nil {
		writeOrchestratorError(w, h.logger, "present_choice", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, res)
}

// VisualMemory stores a piece of world knowledge.
// POST /api/visual-memory
func (h *StoryHandler) VisualMemory(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.MemoryRequest
	if err := decode(r, h.validate, &req); err != nil {
		h.logger.Warn("Invalid visual-memory request", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'key', 'value', and 'category' fields.")
		return
	}

	res, err := h.director.RememberVisual(r.Context(), req)
	if err != nil {
		writeOrchestratorError(w, h.logger, "visual_memory", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, res)
}

// StoryStatus returns a snapshot of the current adventure.
// GET /api/story-status
func (h *StoryHandler) StoryStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, h.director.Status())
}

// CharacterPortrait draws a character or returns the stored portrait.
// POST /api/character-portrait
func (h *StoryHandler) CharacterPortrait(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.PortraitRequest
	if err := decode(r, h.validate, &req); err != nil {
		h.logger.Warn("Invalid character-portrait request", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with a 'name' field.")
		return
	}

	res, err := h.director.CharacterPortrait(r.Context(), req)
	if err != nil {
		writeOrchestratorError(w, h.logger, "character_portrait", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, res)
}

// ListArchived lists concluded adventures, newest first.
// GET /api/adventures
func (h *StoryHandler) ListArchived(w http.ResponseWriter, r *http.Request) {
	entries, err := h.director.ListArchived(r.Context())
	if err != nil {
		writeOrchestratorError(w, h.logger, "list_archived", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"adventures": entries,
		"total":      len(entries),
	})
}

// Archived returns a concluded adventure.
// GET /api/adventures/{id}
func (h *StoryHandler) Archived(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	exp, err := h.director.Archived(r.Context(), id)
	if err != nil {
		writeOrchestratorError(w, h.logger, "archived", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, exp)
}
