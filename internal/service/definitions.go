package service

import (
	"context"

	"github.com/olamidemziyad/marketplace-cmr/domain"
	"github.com/olamidemziyad/marketplace-cmr/internal/provider"
	"github.com/olamidemziyad/marketplace-cmr/internal/repository"
)

// CheckoutStore is the transactional persistence behind checkout.
type CheckoutStore interface {
	CreateCheckoutSession(ctx context.Context, buyerID, addressID string, fees domain.CheckoutFees, method domain.PaymentMethod, phoneNumber, customerNotes string) (*domain.CheckoutSession, error)
}

// OrderStore covers order reads and lifecycle writes.
type OrderStore interface {
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	GetSessionOrders(ctx context.Context, sessionID, buyerID string) ([]domain.Order, error)
	ListBuyerOrders(ctx context.Context, buyerID string) ([]domain.Order, error)
	ListSellerOrders(ctx context.Context, sellerID string) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, sellerID string, to domain.OrderStatus) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID, buyerID, reason string) (*domain.Order, error)
	AddTrackingNumber(ctx context.Context, orderID, sellerID, trackingNumber string) (*domain.Order, error)
}

// PaymentStore covers payment persistence including the shared provider
// status write path.
type PaymentStore interface {
	CreateOrderPayment(ctx context.Context, p *domain.Payment) error
	MarkInitiated(ctx context.Context, paymentID, providerTxID string, metadata map[string]any) error
	MarkInitiationFailed(ctx context.Context, paymentID, reason string) error
	CancelPayment(ctx context.Context, paymentID, userID string) (*domain.Payment, error)
	ApplyProviderStatus(ctx context.Context, paymentID string, update repository.ProviderStatusUpdate) (*repository.ProviderStatusResult, error)
	GetPayment(ctx context.Context, paymentID, userID string) (*domain.Payment, error)
	GetPaymentByProviderTransactionID(ctx context.Context, providerTxID string) (*domain.Payment, error)
}

// NotificationStore creates durable notification rows.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *domain.Notification) (string, error)
}

// JobQueue enqueues notification ids for asynchronous delivery.
type JobQueue interface {
	Enqueue(ctx context.Context, notificationID string) error
}

// PaymentProvider is the external payment network adapter.
type PaymentProvider interface {
	InitiateDeposit(ctx context.Context, req provider.DepositRequest) (*provider.DepositResult, error)
	GetDepositStatus(ctx context.Context, depositID string) (*provider.DepositStatus, error)
}
