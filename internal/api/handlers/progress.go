package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vaultestim/vaultestim/internal/api/response"
	"github.com/vaultestim/vaultestim/internal/progress"
)

// ProgressService is the part of vault.ProgressFacade the progress routes use.
type ProgressService interface {
	Set(ctx context.Context, userID, setID string, mode progress.Mode) (progress.Result, error)
	All(ctx context.Context, userID string, mode progress.Mode) ([]progress.Result, error)
	Rarity(ctx context.Context, userID, setID string, mode progress.Mode) ([]progress.RarityCompletion, error)
	Chart(ctx context.Context, w io.Writer, userID string, mode progress.Mode) error
}

// ProgressHandler handles completion requests.
type ProgressHandler struct {
	facade ProgressService
}

// NewProgressHandler creates a new ProgressHandler.
func NewProgressHandler(facade ProgressService) *ProgressHandler {
	return &ProgressHandler{facade: facade}
}

func parseProgressMode(r *http.Request) (progress.Mode, error) {
	return progress.ParseMode(r.URL.Query().Get("mode"))
}

// GetSetProgress returns completion of one set.
func (h *ProgressHandler) GetSetProgress(w http.ResponseWriter, r *http.Request) {
	mode, err := parseProgressMode(r)
	if err != nil {
		response.FromError(w, err)
		return
	}

	result, err := h.facade.Set(r.Context(), userID(r), chi.URLParam(r, "setID"), mode)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, result)
}

// GetSetRarity returns completion of one set broken down by rarity.
func (h *ProgressHandler) GetSetRarity(w http.ResponseWriter, r *http.Request) {
	mode, err := parseProgressMode(r)
	if err != nil {
		response.FromError(w, err)
		return
	}

	rows, err := h.facade.Rarity(r.Context(), userID(r), chi.URLParam(r, "setID"), mode)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, rows)
}

// GetProgress returns completion of every set.
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	mode, err := parseProgressMode(r)
	if err != nil {
		response.FromError(w, err)
		return
	}

	results, err := h.facade.All(r.Context(), userID(r), mode)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, results)
}

// GetChart renders the completion chart as an HTML page.
func (h *ProgressHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	mode, err := parseProgressMode(r)
	if err != nil {
		response.FromError(w, err)
		return
	}

	// Rendered into a buffer so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := h.facade.Chart(r.Context(), &buf, userID(r), mode); err != nil {
		response.FromError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
