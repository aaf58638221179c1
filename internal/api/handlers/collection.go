package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vaultestim/vaultestim/internal/api/response"
	"github.com/vaultestim/vaultestim/internal/collection"
	"github.com/vaultestim/vaultestim/internal/vault"
)

// CollectionService is the part of vault.CollectionFacade the collection routes use.
type CollectionService interface {
	List(ctx context.Context, userID string) ([]vault.CardGroup, error)
	Add(ctx context.Context, userID string, req vault.AddRequest) (collection.Entry, error)
	Update(ctx context.Context, userID, entryID string, req vault.UpdateRequest) (collection.Entry, error)
	Adjust(ctx context.Context, userID, entryID string, delta int) (int, error)
	Delete(ctx context.Context, userID, entryID string) error
	Duplicates(ctx context.Context, userID string, mode collection.Mode) ([]collection.DuplicateGroup, error)
	MergeDuplicates(ctx context.Context, userID string) (vault.MergeResult, error)
}

// CollectionHandler handles collection requests for the authenticated user.
type CollectionHandler struct {
	facade CollectionService
}

// NewCollectionHandler creates a new CollectionHandler.
func NewCollectionHandler(facade CollectionService) *CollectionHandler {
	return &CollectionHandler{facade: facade}
}

// AdjustRequest changes the quantity of one row.
type AdjustRequest struct {
	Delta int `json:"delta"`
}

// AdjustResponse carries the quantity left after an adjustment. Zero means
// the row was deleted.
type AdjustResponse struct {
	Quantity int `json:"quantity"`
}

// GetCollection returns the collection grouped by card and version.
func (h *CollectionHandler) GetCollection(w http.ResponseWriter, r *http.Request) {
	groups, err := h.facade.List(r.Context(), userID(r))
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, groups)
}

// AddEntry stores a new collection row.
func (h *CollectionHandler) AddEntry(w http.ResponseWriter, r *http.Request) {
	var req vault.AddRequest
	if err := decodeJSON(r, &req); err != nil {
		response.FromError(w, err)
		return
	}

	entry, err := h.facade.Add(r.Context(), userID(r), req)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, entry)
}

// UpdateEntry applies a partial update to one row.
func (h *CollectionHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	var req vault.UpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		response.FromError(w, err)
		return
	}

	entry, err := h.facade.Update(r.Context(), userID(r), chi.URLParam(r, "entryID"), req)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, entry)
}

// AdjustEntry adds delta to a row's quantity.
func (h *CollectionHandler) AdjustEntry(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if err := decodeJSON(r, &req); err != nil {
		response.FromError(w, err)
		return
	}

	qty, err := h.facade.Adjust(r.Context(), userID(r), chi.URLParam(r, "entryID"), req.Delta)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, AdjustResponse{Quantity: qty})
}

// DeleteEntry removes one row.
func (h *CollectionHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.facade.Delete(r.Context(), userID(r), chi.URLParam(r, "entryID")); err != nil {
		response.FromError(w, err)
		return
	}

	response.NoContent(w)
}

// GetDuplicates lists duplicate groups. mode is rows (default) or quantity.
func (h *CollectionHandler) GetDuplicates(w http.ResponseWriter, r *http.Request) {
	mode, err := collection.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		response.FromError(w, err)
		return
	}

	groups, err := h.facade.Duplicates(r.Context(), userID(r), mode)
	if err != nil {
		response.FromError(w, err)
		return
	}
	if groups == nil {
		groups = []collection.DuplicateGroup{}
	}

	response.Success(w, groups)
}

// MergeDuplicates folds every group of duplicate rows into one row.
func (h *CollectionHandler) MergeDuplicates(w http.ResponseWriter, r *http.Request) {
	result, err := h.facade.MergeDuplicates(r.Context(), userID(r))
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, result)
}
