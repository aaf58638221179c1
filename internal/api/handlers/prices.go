package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vaultestim/vaultestim/internal/api/response"
	"github.com/vaultestim/vaultestim/internal/prices"
	"github.com/vaultestim/vaultestim/internal/vault"
)

// PriceService is the part of vault.PriceFacade the price routes use.
type PriceService interface {
	Refresh(ctx context.Context, reqs []vault.PriceRequest) (prices.Report, error)
	RefreshCollection(ctx context.Context, userID string) (prices.Report, error)
	Latest(ctx context.Context, cardID, version string) (prices.Price, error)
	Quota(ctx context.Context) (prices.QuotaStatus, error)
}

// PriceHandler handles price requests.
type PriceHandler struct {
	facade PriceService
}

// NewPriceHandler creates a new PriceHandler.
func NewPriceHandler(facade PriceService) *PriceHandler {
	return &PriceHandler{facade: facade}
}

// RefreshRequest lists the cards to price. An empty list prices the whole
// collection of the caller.
type RefreshRequest struct {
	Cards []vault.PriceRequest `json:"cards"`
}

// RefreshPrices fetches prices and reports what was updated or deferred.
func (h *PriceHandler) RefreshPrices(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			response.FromError(w, err)
			return
		}
	}

	var (
		report prices.Report
		err    error
	)
	if len(req.Cards) == 0 {
		report, err = h.facade.RefreshCollection(r.Context(), userID(r))
	} else {
		report, err = h.facade.Refresh(r.Context(), req.Cards)
	}
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, report)
}

// GetPrice returns the latest stored price of a card version.
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	p, err := h.facade.Latest(r.Context(), chi.URLParam(r, "cardID"), r.URL.Query().Get("version"))
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, p)
}

// GetQuota returns the price API budget for the current day.
func (h *PriceHandler) GetQuota(w http.ResponseWriter, r *http.Request) {
	status, err := h.facade.Quota(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, status)
}
