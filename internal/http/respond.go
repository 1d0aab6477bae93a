package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/olamidemziyad/marketplace-cmr/domain"
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

// handleServiceError translates the domain error taxonomy into HTTP status
// codes.
func handleServiceError(w http.ResponseWriter, err error) {
	var (
		validationErr *domain.ValidationError
		stockErr      *domain.InsufficientStockError
		productErr    *domain.ProductUnavailableError
		transitionErr *domain.InvalidTransitionError
		providerErr   *domain.ProviderError
	)

	switch {
	case errors.As(err, &validationErr):
		respondError(w, http.StatusBadRequest, "validation_error", validationErr.Error())
	case errors.As(err, &stockErr):
		respondError(w, http.StatusBadRequest, "insufficient_stock", stockErr.Error())
	case errors.As(err, &productErr):
		respondError(w, http.StatusBadRequest, "product_unavailable", productErr.Error())
	case errors.As(err, &transitionErr):
		respondError(w, http.StatusBadRequest, "invalid_transition", transitionErr.Error())
	case errors.Is(err, domain.ErrCartEmpty):
		respondError(w, http.StatusBadRequest, "cart_empty", "cart is empty")
	case errors.Is(err, domain.ErrPhoneNumberRequired):
		respondError(w, http.StatusBadRequest, "phone_number_required", "phone number is required for mobile money payments")
	case errors.Is(err, domain.ErrAddressNotFound):
		respondError(w, http.StatusNotFound, "address_not_found", "shipping address not found")
	case errors.Is(err, domain.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order_not_found", "order not found")
	case errors.Is(err, domain.ErrPaymentNotFound):
		respondError(w, http.StatusNotFound, "payment_not_found", "payment not found")
	case errors.Is(err, domain.ErrCartNotFound):
		respondError(w, http.StatusNotFound, "cart_not_found", "cart not found")
	case errors.Is(err, domain.ErrAlreadyPaid):
		respondError(w, http.StatusConflict, "already_paid", "order is already paid")
	case errors.Is(err, domain.ErrPendingPaymentExists):
		respondError(w, http.StatusConflict, "payment_in_progress", "a payment for this order is already in progress")
	case errors.As(err, &providerErr):
		respondError(w, http.StatusBadGateway, "provider_error", providerErr.Error())
	default:
		log.Printf("unhandled service error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
