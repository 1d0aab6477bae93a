package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	RequestTimeout time.Duration
}

// NewRouter assembles the API surface. The webhook route sits outside the
// auth middleware because the provider does not carry our user headers.
func NewRouter(cfg RouterConfig, checkout *CheckoutHandler, orders *OrderHandler, payments *PaymentHandler, webhooks *WebhookHandler) http.Handler {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/v1/webhooks/pawapay/deposits", webhooks.HandleDeposit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(MockAuthMiddleware)

		r.Post("/checkout", checkout.Checkout)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orders.ListBuyerOrders)
			r.Get("/seller", orders.ListSellerOrders)
			r.Get("/session/{session_id}", orders.GetSessionOrders)
			r.Get("/{order_id}", orders.GetOrder)
			r.Patch("/{order_id}/status", orders.UpdateStatus)
			r.Post("/{order_id}/cancel", orders.Cancel)
			r.Put("/{order_id}/tracking", orders.AddTracking)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/initiate", payments.Initiate)
			r.Get("/{payment_id}", payments.GetPayment)
			r.Get("/{payment_id}/verify", payments.Verify)
			r.Post("/{payment_id}/cancel", payments.Cancel)
		})
	})

	return r
}
