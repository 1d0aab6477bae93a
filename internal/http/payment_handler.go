package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olamidemziyad/marketplace-cmr/domain"
	"github.com/olamidemziyad/marketplace-cmr/internal/service"
)

type PaymentHandler struct {
	payments *service.PaymentService
}

func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type InitiatePaymentRequestDTO struct {
	OrderID       string `json:"orderId"`
	PaymentMethod string `json:"paymentMethod"`
	PhoneNumber   string `json:"phoneNumber"`
}

// Initiate starts a standalone charge for one order.
func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req InitiatePaymentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.OrderID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "orderId is required")
		return
	}

	payment, err := h.payments.InitiatePayment(r.Context(), service.InitiatePaymentInput{
		OrderID:       req.OrderID,
		UserID:        userID,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		PhoneNumber:   req.PhoneNumber,
	})
	if err != nil {
		// The payment row may still record the failure; the error decides
		// the status code.
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toPaymentDTO(payment))
}

func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	payment, err := h.payments.GetPayment(r.Context(), chi.URLParam(r, "payment_id"), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toPaymentDTO(payment))
}

// Verify re-polls the provider for the current deposit status. Safe to call
// any number of times.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	payment, err := h.payments.VerifyPayment(r.Context(), chi.URLParam(r, "payment_id"), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toPaymentDTO(payment))
}

func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	payment, err := h.payments.CancelPayment(r.Context(), chi.URLParam(r, "payment_id"), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toPaymentDTO(payment))
}
