package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/Abdullah0x0/dreamdirector/internal/orchestrator"
	"github.com/Abdullah0x0/dreamdirector/pkg/story"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}

// statusFor maps orchestrator errors onto HTTP statuses. Malformed input
// is a 400 and sequencing violations are a 409.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrEmptyRequest),
		errors.Is(err, orchestrator.ErrInvalidRequest),
		errors.Is(err, story.ErrEmptyChoice),
		errors.Is(err, story.ErrEmptyMemory):
		return http.StatusBadRequest
	case errors.Is(err, story.ErrInvalidChoiceIndex),
		errors.Is(err, story.ErrOutOfSequence),
		errors.Is(err, story.ErrNotStarted):
		return http.StatusConflict
	case errors.Is(err, orchestrator.ErrNotArchived):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeOrchestratorError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("Story operation failed", "operation", op, "error", err)
		writeError(w, logger, status, "Story operation failed. Please try again.")
		return
	}
	logger.Warn("Story request rejected", "operation", op, "status", status, "error", err)
	writeError(w, logger, status, err.Error())
}

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, v *validator.Validate, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("field %s failed %s validation", fe.Field(), fe.Tag())
		}
		return err
	}
	return nil
}
