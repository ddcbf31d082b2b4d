package handlers

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Abdullah0x0/dreamdirector/internal/orchestrator"
	"github.com/Abdullah0x0/dreamdirector/internal/services/mediagen"
)

// AssetFiles is the on-disk view of generated media.
type AssetFiles interface {
	List() (mediagen.Listing, error)
	Path(name string) (string, error)
}

var _ AssetFiles = (*mediagen.AssetStore)(nil)

// MediaResponse is returned by generate-media.
type MediaResponse struct {
	Status        string                   `json:"status"`
	Type          string                   `json:"type"`
	Result        orchestrator.AdHocResult `json:"result"`
	Message       string                   `json:"message"`
	GeneratedFile string                   `json:"generated_file,omitempty"`
	TotalFiles    int                      `json:"total_files"`
	AllFiles      []string                 `json:"all_files"`
	URL           string                   `json:"url,omitempty"`
	Filename      string                   `json:"filename,omitempty"`
}

type MediaHandler struct {
	director Director
	files    AssetFiles
	validate *validator.Validate
	logger   *slog.Logger
}

func NewMediaHandler(director Director, files AssetFiles, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{
		director: director,
		files:    files,
		validate: validator.New(),
		logger:   logger,
	}
}

// GenerateMedia produces one asset outside the narrative flow.
// POST /api/generate-media
func (h *MediaHandler) GenerateMedia(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.AdHocRequest
	if err := decode(r, h.validate, &req); err != nil {
		h.logger.Warn("Invalid generate-media request", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request. Expected 'type' of image, video, or music and a non-empty 'prompt'.")
		return
	}

	h.logger.Info("Ad-hoc media requested",
		"type", req.Kind,
		"remote_addr", r.RemoteAddr)

	res, err := h.director.GenerateAdHoc(r.Context(), req)
	if err != nil {
		writeOrchestratorError(w, h.logger, "generate_media", err)
		return
	}

	files := make([]string, 0, len(res.Files))
	for _, f := range res.Files {
		files = append(files, f.String())
	}
	recent := files
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}

	resp := MediaResponse{
		Status:     "success",
		Type:       string(req.Kind),
		Result:     res,
		TotalFiles: len(files),
		AllFiles:   recent,
	}
	kind := cases.Title(language.English).String(string(res.Result.Kind))
	switch {
	case res.Result.OK() && res.Method == "fallback_to_image":
		resp.Message = "Video unavailable, generated a cinematic " + string(res.Result.Kind) + " instead"
	case res.Result.OK():
		resp.Message = kind + " generated"
	default:
		resp.Status = string(res.Result.Status)
		resp.Message = kind + " generation " + string(res.Result.Status)
	}
	if res.Result.OK() {
		resp.GeneratedFile = res.Result.Asset.String()
		resp.Filename = resp.GeneratedFile
		resp.URL = "/api/media/" + resp.GeneratedFile
	}

	writeJSON(w, h.logger, http.StatusOK, resp)
}

// MediaFiles lists the adventure's assets merged with whatever is stored
// on disk.
// GET /api/media-files
func (h *MediaHandler) MediaFiles(w http.ResponseWriter, r *http.Request) {
	listing := h.director.MediaFiles()
	if stored, err := h.files.List(); err != nil {
		h.logger.Warn("Failed to scan media directory", "error", err)
	} else {
		listing = mergeListing(listing, stored)
	}
	writeJSON(w, h.logger, http.StatusOK, listing)
}

// ServeMedia streams a stored asset.
// GET /api/media/{filename}
func (h *MediaHandler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if mediagen.KindOf(name) == "" {
		writeError(w, h.logger, http.StatusNotFound, "File not found")
		return
	}
	path, err := h.files.Path(name)
	if err != nil {
		h.logger.Warn("Rejected media path", "filename", name, "error", err)
		writeError(w, h.logger, http.StatusNotFound, "File not found")
		return
	}
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			h.logger.Error("Failed to stat media file", "filename", name, "error", err)
		}
		writeError(w, h.logger, http.StatusNotFound, "File not found")
		return
	}
	http.ServeFile(w, r, path)
}

func mergeListing(a, b mediagen.Listing) mediagen.Listing {
	merge := func(x, y []string) []string {
		seen := make(map[string]bool, len(x)+len(y))
		out := make([]string, 0, len(x)+len(y))
		for _, list := range [][]string{x, y} {
			for _, name := range list {
				if !seen[name] {
					seen[name] = true
					out = append(out, name)
				}
			}
		}
		return out
	}
	return mediagen.Listing{
		Images: merge(a.Images, b.Images),
		Videos: merge(a.Videos, b.Videos),
		Music:  merge(a.Music, b.Music),
	}
}
