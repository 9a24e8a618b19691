package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/fjod/storefront-checkout/domain"
	"github.com/fjod/storefront-checkout/internal/collaborator"
	"github.com/fjod/storefront-checkout/internal/logging"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError converts orchestration errors into HTTP answers.
func handleServiceError(ctx context.Context, w http.ResponseWriter, step string, err error) {
	var validation *domain.ValidationError
	var fatal *domain.FatalInconsistency
	var status *collaborator.StatusError

	switch {
	case errors.As(err, &validation):
		respondError(w, http.StatusUnprocessableEntity, validation.Code, validation.Message)
		return
	case errors.Is(err, domain.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
		return
	case errors.Is(err, domain.ErrTransitionInProgress):
		respondError(w, http.StatusConflict, "transition_in_progress", err.Error())
		return
	case errors.Is(err, domain.ErrIllegalTransition):
		respondError(w, http.StatusConflict, "illegal_transition", err.Error())
		return
	case errors.Is(err, domain.ErrSessionClosed):
		respondError(w, http.StatusConflict, "session_closed", err.Error())
		return
	case errors.Is(err, domain.ErrSessionFrozen):
		respondError(w, http.StatusConflict, "session_frozen", err.Error())
		return
	case errors.As(err, &status) && (status.Code == http.StatusUnauthorized || status.Code == http.StatusForbidden):
		respondError(w, status.Code, "unauthenticated", status.Error())
		return
	}

	logging.Log(logging.Fields{
		RequestID: getRequestID(ctx),
		Step:      step,
		Status:    "error",
		Error:     err.Error(),
	})
	switch {
	case errors.As(err, &fatal):
		respondError(w, http.StatusInternalServerError, "fatal_inconsistency", fatal.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "storefront backend timed out")
	case domain.IsTransport(err):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "storefront backend unavailable")
	case status != nil:
		respondError(w, http.StatusBadGateway, "bad_gateway", status.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
