package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vaultestim/vaultestim/internal/api/response"
	"github.com/vaultestim/vaultestim/internal/cardcache"
	"github.com/vaultestim/vaultestim/internal/tcg"
	"github.com/vaultestim/vaultestim/internal/vault"
)

// CatalogService is the part of vault.CatalogFacade the catalog routes use.
type CatalogService interface {
	Sets(ctx context.Context) ([]vault.SetSummary, error)
	Cards(ctx context.Context, setID string) ([]tcg.Card, error)
	CardVersions(ctx context.Context, cardID string) (vault.CardVersions, error)
	RefreshSet(ctx context.Context, setID string) error
	CacheStats(ctx context.Context) (cardcache.Stats, error)
}

// CatalogHandler handles set and card requests.
type CatalogHandler struct {
	facade CatalogService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(facade CatalogService) *CatalogHandler {
	return &CatalogHandler{facade: facade}
}

// GetSets returns every known set with its card count.
func (h *CatalogHandler) GetSets(w http.ResponseWriter, r *http.Request) {
	sets, err := h.facade.Sets(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, sets)
}

// GetSetCards returns the merged card list of one set.
func (h *CatalogHandler) GetSetCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.facade.Cards(r.Context(), chi.URLParam(r, "setID"))
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, cards)
}

// RefreshSet refetches one set from the catalog API.
func (h *CatalogHandler) RefreshSet(w http.ResponseWriter, r *http.Request) {
	if err := h.facade.RefreshSet(r.Context(), chi.URLParam(r, "setID")); err != nil {
		response.FromError(w, err)
		return
	}

	response.NoContent(w)
}

// GetCardVersions returns the versions a card exists in.
func (h *CatalogHandler) GetCardVersions(w http.ResponseWriter, r *http.Request) {
	v, err := h.facade.CardVersions(r.Context(), chi.URLParam(r, "cardID"))
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, v)
}

// GetCacheStats reports the local card cache state.
func (h *CatalogHandler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.facade.CacheStats(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, stats)
}
