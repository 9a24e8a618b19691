package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront-checkout/domain"
	"github.com/fjod/storefront-checkout/internal/collaborator"
)

type OfferLister interface {
	List(ctx context.Context, creds collaborator.Credentials) ([]domain.Offer, error)
}

type OffersHandler struct {
	catalog OfferLister
	timeout time.Duration
}

func NewOffersHandler(catalog OfferLister, timeout time.Duration) *OffersHandler {
	return &OffersHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

type OffersResponseDTO struct {
	Offers []domain.Offer `json:"offers"`
}

// GET /api/v1/offers
func (h *OffersHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	creds, ok := getCredentials(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	offers, err := h.catalog.List(ctx, creds)
	if err != nil {
		handleServiceError(r.Context(), w, "list_offers", err)
		return
	}
	if offers == nil {
		offers = []domain.Offer{}
	}
	respondJSON(w, http.StatusOK, OffersResponseDTO{Offers: offers})
}
