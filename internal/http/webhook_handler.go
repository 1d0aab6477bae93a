package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/olamidemziyad/marketplace-cmr/domain"
	"github.com/olamidemziyad/marketplace-cmr/internal/service"
)

// SignatureVerifier checks a provider callback against its signature header.
type SignatureVerifier interface {
	VerifyWebhookSignature(rawBody []byte, signature string) bool
}

type WebhookHandler struct {
	payments *service.PaymentService
	verifier SignatureVerifier
}

func NewWebhookHandler(payments *service.PaymentService, verifier SignatureVerifier) *WebhookHandler {
	return &WebhookHandler{payments: payments, verifier: verifier}
}

// HandleDeposit receives PawaPay deposit callbacks. The provider retries on
// non-2xx, so anything already handled, including callbacks for unknown
// deposits, is acknowledged with 200.
func (h *WebhookHandler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "unable to read request body")
		return
	}

	if !h.verifier.VerifyWebhookSignature(rawBody, r.Header.Get("X-Signature")) {
		log.Printf("rejected webhook with bad signature, request %s", getRequestID(r.Context()))
		respondError(w, http.StatusUnauthorized, "invalid_signature", "webhook signature verification failed")
		return
	}

	var event service.WebhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.payments.ProcessWebhook(r.Context(), event); err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			respondError(w, http.StatusBadRequest, "validation_error", validationErr.Error())
			return
		}
		// A local processing failure must not look like a delivery failure,
		// or the provider keeps re-sending the same callback.
		log.Printf("webhook processing failed for deposit %s: %v", event.DepositID, err)
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "received"})
}
