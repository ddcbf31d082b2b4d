package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Abdullah0x0/dreamdirector/internal/middleware"
)

// RouterDeps collects what the HTTP surface needs.
type RouterDeps struct {
	Director   Director
	Files      AssetFiles
	Subscriber Subscriber
	Health     *HealthHandler
	Logger     *slog.Logger
}

// NewRouter wires every endpoint under /api.
func NewRouter(d RouterDeps) *chi.Mux {
	story := NewStoryHandler(d.Director, d.Logger)
	media := NewMediaHandler(d.Director, d.Files, d.Logger)
	export := NewExportHandler(d.Director, d.Logger)

	sse := NewEventsHandler(d.Subscriber, d.Logger)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger)

	if d.Health != nil {
		r.Method(http.MethodGet, "/health", d.Health)
	}

	r.Route("/api", func(r chi.Router) {
		if d.Health != nil {
			r.Method(http.MethodGet, "/health", d.Health)
		}
		r.Post("/start-story", story.StartStory)
		r.Post("/make-choice", story.MakeChoice)
		r.Post("/present-choice", story.PresentChoice)
		r.Get("/story-status", story.StoryStatus)
		r.Post("/character-portrait", story.CharacterPortrait)
		r.Post("/visual-memory", story.VisualMemory)

		r.Post("/generate-media", media.GenerateMedia)
		r.Get("/media-files", media.MediaFiles)
		r.Get("/media/{filename}", media.ServeMedia)

		r.Get("/story-export", export.Current)
		r.Get("/adventures", story.ListArchived)
		r.Get("/adventures/{id}", story.Archived)
		r.Get("/adventures/{id}/export", export.Archived)

		r.Method(http.MethodGet, "/events/{id}", sse)
	})

	return r
}
