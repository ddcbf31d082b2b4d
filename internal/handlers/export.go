package handlers

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jung-kurt/gofpdf"

	"github.com/Abdullah0x0/dreamdirector/internal/orchestrator"
)

type ExportHandler struct {
	director Director
	logger   *slog.Logger
}

func NewExportHandler(director Director, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{director: director, logger: logger}
}

// Current renders the running adventure as a PDF.
// GET /api/story-export
func (h *ExportHandler) Current(w http.ResponseWriter, r *http.Request) {
	exp, err := h.director.Export()
	if err != nil {
		writeOrchestratorError(w, h.logger, "export", err)
		return
	}
	h.send(w, exp)
}

// Archived renders a concluded adventure from the archive.
// GET /api/adventures/{id}/export
func (h *ExportHandler) Archived(w http.ResponseWriter, r *http.Request) {
	exp, err := h.director.Archived(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeOrchestratorError(w, h.logger, "export_archived", err)
		return
	}
	h.send(w, *exp)
}

func (h *ExportHandler) send(w http.ResponseWriter, exp orchestrator.Export) {
	var buf bytes.Buffer
	if err := renderPDF(exp, &buf); err != nil {
		h.logger.Error("Failed to render PDF", "adventure_id", exp.AdventureID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to render story export.")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(exp.AdventureID)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("Failed to write PDF", "error", err)
	}
}

func exportFilename(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return "dreamdirector_" + id + ".pdf"
}

// renderPDF writes a printable transcript of the adventure.
func renderPDF(exp orchestrator.Export, out io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(exp.Title, true)
	pdf.SetAuthor("DreamDirector", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 9, tr(exp.Title), "", "L", false)
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "I", 11)
	pdf.MultiCell(0, 6, tr(exp.Hook), "", "L", false)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 10)
	st := exp.Status
	meta := []string{
		"Request: " + exp.Request,
		"Story type: " + exp.StoryType,
		fmt.Sprintf("Choices made: %d", st.ChoicesMade),
		fmt.Sprintf("Final danger level: %d/10", st.DangerLevel),
		fmt.Sprintf("Media: %d images, %d videos, %d music tracks",
			st.GeneratedMedia.Images, st.GeneratedMedia.Videos, st.GeneratedMedia.Music),
	}
	if exp.VisualStyle.ArtStyle != "" {
		meta = append(meta, "Visual style: "+exp.VisualStyle.ArtStyle)
	}
	for _, line := range meta {
		pdf.CellFormat(0, 6, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, "Story", "B", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 10)
	for i, ev := range exp.History {
		stamp := ev.Timestamp.UTC().Format("15:04:05")
		line := fmt.Sprintf("%d. [%s] %s", i+1, stamp, strings.TrimSpace(ev.Summary()))
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
		pdf.Ln(1)
	}

	if files := exp.Media.All(); len(files) > 0 {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 8, "Media", "B", 1, "L", false, 0, "")
		pdf.SetFont("Courier", "", 9)
		for _, f := range files {
			pdf.CellFormat(0, 5, tr(f), "", 1, "L", false, 0, "")
		}
	}

	if err := pdf.Output(out); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return nil
}
