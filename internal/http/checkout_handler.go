package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/storefront-checkout/domain"
	"github.com/fjod/storefront-checkout/internal/collaborator"
	"github.com/fjod/storefront-checkout/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type CheckoutHandler struct {
	svc      service.CheckoutService
	validate *validator.Validate
	timeout  time.Duration
}

func NewCheckoutHandler(svc service.CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		svc:      svc,
		validate: validator.New(),
		timeout:  timeout,
	}
}

type DeliveryRequestDTO struct {
	OrderType string `json:"order_type" validate:"required,oneof=online store"`
}

type OfferRequestDTO struct {
	OfferID *int64 `json:"offer_id" validate:"omitempty,gt=0"`
}

type PaymentRequestDTO struct {
	PaymentMethod string `json:"payment_method" validate:"required,oneof=upi cod"`
}

type SlotRequestDTO struct {
	SlotID string `json:"slot_id" validate:"max=128"`
}

type OptionsResponseDTO struct {
	OrderTypes         []domain.OrderType     `json:"order_types"`
	PaymentMethods     []domain.PaymentMethod `json:"payment_methods"`
	MaxPaymentAttempts int                    `json:"max_payment_attempts"`
}

// GET /api/v1/checkout/options
func (h *CheckoutHandler) Options(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, OptionsResponseDTO{
		OrderTypes:         []domain.OrderType{domain.OrderTypeOnline, domain.OrderTypeStore},
		PaymentMethods:     []domain.PaymentMethod{domain.PaymentMethodUPI, domain.PaymentMethodCOD},
		MaxPaymentAttempts: domain.MaxPaymentAttempts,
	})
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Begin(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "begin", http.StatusCreated, func(ctx context.Context, creds collaborator.Credentials, _ string) (service.Result, error) {
		return h.svc.Begin(ctx, creds)
	})
}

// GET /api/v1/checkout/{id}
func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "get", http.StatusOK, func(ctx context.Context, creds collaborator.Credentials, id string) (service.Result, error) {
		return h.svc.Get(ctx, creds, id)
	})
}

// POST /api/v1/checkout/{id}/delivery
func (h *CheckoutHandler) SelectDeliveryType(w http.ResponseWriter, r *http.Request) {
	var req DeliveryRequestDTO
	if !h.decode(w, r, &req) {
		return
	}
	h.serve(w, r, "select_delivery_type", http.StatusOK, func(ctx context.Context, creds collaborator.Credentials, id string) (service.Result, error) {
		return h.svc.SelectDeliveryType(ctx, creds, id, domain.OrderType(req.OrderType))
	})
}

// POST /api/v1/checkout/{id}/offer
func (h *CheckoutHandler) SelectOffer(w http.ResponseWriter, r *http.Request) {
	var req OfferRequestDTO
	if !h.decode(w, r, &req) {
		return
	}
	h.serve(w, r, "select_offer", http.StatusOK, func(ctx context.Context, creds collaborator.Credentials, id string) (service.Result, error) {
		return h.svc.SelectOffer(ctx, creds, id, req.OfferID)
	})
}

// POST /api/v1/checkout/{id}/payment
func (h *CheckoutHandler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequestDTO
	if !h.decode(w, r, &req) {
		return
	}
	h.serve(w, r, "submit_payment", http.StatusOK, func(ctx context.Context, creds collaborator.Credentials, id string) (service.Result, error) {
		return h.svc.SubmitPayment(ctx, creds, id, domain.PaymentMethod(req.PaymentMethod))
	})
}

// POST /api/v1/checkout/{id}/payment/retry
func (h *CheckoutHandler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequestDTO
	if !h.decode(w, r, &req) {
		return
	}
	h.serve(w, r, "retry_payment", http.StatusOK, func(ctx context.Context, creds collaborator.Credentials, id string) (service.Result, error) {
		return h.svc.RetryPayment(ctx, creds, id, domain.PaymentMethod(req.PaymentMethod))
	})
}

// GET /api/v1/checkout/{id}/slots
func (h *CheckoutHandler) RefreshStoreSlots(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "refresh_store_slots", http.StatusOK, func(ctx context.Context, creds collaborator.Credentials, id string) (service.Result, error) {
		return h.svc.RefreshStoreSlots(ctx, creds, id)
	})
}

// POST /api/v1/checkout/{id}/slot
func (h *CheckoutHandler) ConfirmSlot(w http.ResponseWriter, r *http.Request) {
	var req SlotRequestDTO
	if !h.decode(w, r, &req) {
		return
	}
	h.serve(w, r, "confirm_slot", http.StatusOK, func(ctx context.Context, creds collaborator.Credentials, id string) (service.Result, error) {
		return h.svc.ConfirmSlot(ctx, creds, id, strings.TrimSpace(req.SlotID))
	})
}

// DELETE /api/v1/checkout/{id}
func (h *CheckoutHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "abandon", http.StatusOK, func(ctx context.Context, creds collaborator.Credentials, id string) (service.Result, error) {
		return h.svc.Abandon(ctx, creds, id)
	})
}

func (h *CheckoutHandler) serve(
	w http.ResponseWriter,
	r *http.Request,
	step string,
	okStatus int,
	call func(ctx context.Context, creds collaborator.Credentials, id string) (service.Result, error),
) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	creds, ok := getCredentials(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	res, err := call(ctx, creds, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(r.Context(), w, step, err)
		return
	}
	respondJSON(w, okStatus, res)
}

// decode reads and validates a JSON body, answering 400 itself on failure.
func (h *CheckoutHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) && len(vErrs) > 0 {
			fe := vErrs[0]
			respondError(w, http.StatusBadRequest, "invalid_"+strings.ToLower(fe.Field()),
				fe.Field()+" failed "+fe.Tag()+" validation")
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}
