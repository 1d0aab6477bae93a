package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/olamidemziyad/marketplace-cmr/domain"
	"github.com/olamidemziyad/marketplace-cmr/internal/provider"
	"github.com/olamidemziyad/marketplace-cmr/internal/repository"
)

// MockCheckoutStore implements CheckoutStore for testing
type MockCheckoutStore struct {
	Session *domain.CheckoutSession
	Err     error

	GotBuyerID   string
	GotAddressID string
	GotFees      domain.CheckoutFees
}

func (m *MockCheckoutStore) CreateCheckoutSession(_ context.Context, buyerID, addressID string, fees domain.CheckoutFees, _ domain.PaymentMethod, _, _ string) (*domain.CheckoutSession, error) {
	m.GotBuyerID = buyerID
	m.GotAddressID = addressID
	m.GotFees = fees
	return m.Session, m.Err
}

// MockOrderStore implements OrderStore for testing
type MockOrderStore struct {
	Order  *domain.Order
	Orders []domain.Order
	Err    error

	GotStatus domain.OrderStatus
	GotReason string
}

func (m *MockOrderStore) GetOrder(_ context.Context, _ string) (*domain.Order, error) {
	return m.Order, m.Err
}

func (m *MockOrderStore) GetSessionOrders(_ context.Context, _, _ string) ([]domain.Order, error) {
	return m.Orders, m.Err
}

func (m *MockOrderStore) ListBuyerOrders(_ context.Context, _ string) ([]domain.Order, error) {
	return m.Orders, m.Err
}

func (m *MockOrderStore) ListSellerOrders(_ context.Context, _ string) ([]domain.Order, error) {
	return m.Orders, m.Err
}

func (m *MockOrderStore) UpdateOrderStatus(_ context.Context, _, _ string, to domain.OrderStatus) (*domain.Order, error) {
	m.GotStatus = to
	return m.Order, m.Err
}

func (m *MockOrderStore) CancelOrder(_ context.Context, _, _, reason string) (*domain.Order, error) {
	m.GotReason = reason
	return m.Order, m.Err
}

func (m *MockOrderStore) AddTrackingNumber(_ context.Context, _, _, _ string) (*domain.Order, error) {
	return m.Order, m.Err
}

// MockPaymentStore implements PaymentStore for testing
type MockPaymentStore struct {
	Payment       *domain.Payment
	CreateErr     error
	MarkErr       error
	ApplyResult   *repository.ProviderStatusResult
	ApplyErr      error
	GetErr        error
	ByProviderErr error

	Created           *domain.Payment
	InitiatedTxID     string
	InitiatedMetadata map[string]any
	FailureReason     string
	ApplyCalls        int
	LastUpdate        repository.ProviderStatusUpdate
}

func (m *MockPaymentStore) CreateOrderPayment(_ context.Context, p *domain.Payment) error {
	m.Created = p
	return m.CreateErr
}

func (m *MockPaymentStore) MarkInitiated(_ context.Context, _, providerTxID string, metadata map[string]any) error {
	m.InitiatedTxID = providerTxID
	m.InitiatedMetadata = metadata
	return m.MarkErr
}

func (m *MockPaymentStore) MarkInitiationFailed(_ context.Context, _, reason string) error {
	m.FailureReason = reason
	return nil
}

func (m *MockPaymentStore) CancelPayment(_ context.Context, _, _ string) (*domain.Payment, error) {
	return m.Payment, m.GetErr
}

func (m *MockPaymentStore) ApplyProviderStatus(_ context.Context, _ string, update repository.ProviderStatusUpdate) (*repository.ProviderStatusResult, error) {
	m.ApplyCalls++
	m.LastUpdate = update
	return m.ApplyResult, m.ApplyErr
}

func (m *MockPaymentStore) GetPayment(_ context.Context, _, _ string) (*domain.Payment, error) {
	return m.Payment, m.GetErr
}

func (m *MockPaymentStore) GetPaymentByProviderTransactionID(_ context.Context, _ string) (*domain.Payment, error) {
	return m.Payment, m.ByProviderErr
}

// MockNotificationStore implements NotificationStore for testing
type MockNotificationStore struct {
	Err     error
	Created []*domain.Notification
}

func (m *MockNotificationStore) CreateNotification(_ context.Context, n *domain.Notification) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	n.ID = uuid.NewString()
	m.Created = append(m.Created, n)
	return n.ID, nil
}

// MockJobQueue implements JobQueue for testing
type MockJobQueue struct {
	Err      error
	Enqueued []string
}

func (m *MockJobQueue) Enqueue(_ context.Context, notificationID string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Enqueued = append(m.Enqueued, notificationID)
	return nil
}

// MockProvider implements PaymentProvider for testing
type MockProvider struct {
	Deposit     *provider.DepositResult
	DepositErr  error
	Status      *provider.DepositStatus
	StatusErr   error
	StatusCalls int
}

func (m *MockProvider) InitiateDeposit(_ context.Context, _ provider.DepositRequest) (*provider.DepositResult, error) {
	return m.Deposit, m.DepositErr
}

func (m *MockProvider) GetDepositStatus(_ context.Context, _ string) (*provider.DepositStatus, error) {
	m.StatusCalls++
	return m.Status, m.StatusErr
}

func testSession() *domain.CheckoutSession {
	payment := domain.Payment{
		ID:            uuid.NewString(),
		SessionID:     "session-1",
		UserID:        "buyer-1",
		PaymentMethod: domain.PaymentMethodMTN,
		Amount:        decimal.NewFromInt(4000),
		Currency:      domain.DefaultCurrency,
		Status:        domain.PaymentStatusPending,
	}
	return &domain.CheckoutSession{
		SessionID: "session-1",
		Orders: []domain.Order{
			{ID: "order-1", SellerID: "seller-a", TotalAmount: decimal.NewFromInt(2000)},
			{ID: "order-2", SellerID: "seller-b", TotalAmount: decimal.NewFromInt(2000)},
		},
		Payment: payment,
	}
}
