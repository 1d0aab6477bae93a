package http

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/olamidemziyad/marketplace-cmr/domain"
	"github.com/olamidemziyad/marketplace-cmr/internal/service"
)

type CheckoutHandler struct {
	checkout *service.CheckoutService
}

func NewCheckoutHandler(checkout *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

type CheckoutRequestDTO struct {
	AddressID     string `json:"addressId"`
	PaymentMethod string `json:"paymentMethod"`
	PhoneNumber   string `json:"phoneNumber"`
	CustomerNotes string `json:"customerNotes"`
}

type CheckoutResponseDTO struct {
	SessionID   string          `json:"sessionId"`
	Payment     PaymentDTO      `json:"payment"`
	Orders      []OrderDTO      `json:"orders"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	OrdersCount int             `json:"ordersCount"`
}

// Checkout converts the buyer's active cart into one order per seller plus a
// single payment.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	session, err := h.checkout.Checkout(r.Context(), service.CheckoutInput{
		BuyerID:       userID,
		AddressID:     req.AddressID,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		PhoneNumber:   req.PhoneNumber,
		CustomerNotes: req.CustomerNotes,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	orders := make([]OrderDTO, 0, len(session.Orders))
	for i := range session.Orders {
		orders = append(orders, toOrderDTO(&session.Orders[i]))
	}

	respondJSON(w, http.StatusCreated, CheckoutResponseDTO{
		SessionID:   session.SessionID,
		Payment:     toPaymentDTO(&session.Payment),
		Orders:      orders,
		TotalAmount: session.Payment.Amount,
		OrdersCount: len(orders),
	})
}
