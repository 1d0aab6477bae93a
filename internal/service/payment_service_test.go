package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olamidemziyad/marketplace-cmr/domain"
	"github.com/olamidemziyad/marketplace-cmr/internal/provider"
	"github.com/olamidemziyad/marketplace-cmr/internal/repository"
)

func testOrder() *domain.Order {
	return &domain.Order{
		ID:          "order-1",
		BuyerID:     "buyer-1",
		SellerID:    "seller-a",
		Status:      domain.OrderStatusPending,
		TotalAmount: decimal.NewFromInt(2000),
	}
}

func processingPayment() *domain.Payment {
	return &domain.Payment{
		ID:                    "payment-1",
		SessionID:             "session-1",
		UserID:                "buyer-1",
		PaymentMethod:         domain.PaymentMethodMTN,
		Amount:                decimal.NewFromInt(4000),
		Currency:              domain.DefaultCurrency,
		Status:                domain.PaymentStatusProcessing,
		ProviderTransactionID: "deposit-1",
	}
}

func TestInitiatePayment_HappyPath(t *testing.T) {
	payments := &MockPaymentStore{}
	orders := &MockOrderStore{Order: testOrder()}
	prov := &MockProvider{Deposit: &provider.DepositResult{DepositID: "deposit-9", VendorStatus: "ACCEPTED"}}
	notifications := &MockNotificationStore{}
	jobs := &MockJobQueue{}
	svc := NewPaymentService(payments, orders, prov, notifications, jobs)

	payment, err := svc.InitiatePayment(context.Background(), InitiatePaymentInput{
		OrderID:       "order-1",
		UserID:        "buyer-1",
		PaymentMethod: domain.PaymentMethodMTN,
		PhoneNumber:   "+237670000001",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusProcessing, payment.Status)
	assert.Equal(t, "deposit-9", payment.ProviderTransactionID)
	assert.Equal(t, "deposit-9", payments.InitiatedTxID)
	require.NotNil(t, payments.Created)
	assert.True(t, payments.Created.Amount.Equal(decimal.NewFromInt(2000)))

	require.Len(t, notifications.Created, 1)
	assert.Equal(t, domain.NotificationPaymentInitiated, notifications.Created[0].Type)
	assert.Len(t, jobs.Enqueued, 1)
}

func TestInitiatePayment_WrongBuyer(t *testing.T) {
	orders := &MockOrderStore{Order: testOrder()}
	svc := NewPaymentService(&MockPaymentStore{}, orders, &MockProvider{}, &MockNotificationStore{}, &MockJobQueue{})

	_, err := svc.InitiatePayment(context.Background(), InitiatePaymentInput{
		OrderID:       "order-1",
		UserID:        "someone-else",
		PaymentMethod: domain.PaymentMethodMTN,
		PhoneNumber:   "+237670000001",
	})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestInitiatePayment_PhoneRequired(t *testing.T) {
	svc := NewPaymentService(&MockPaymentStore{}, &MockOrderStore{}, &MockProvider{}, &MockNotificationStore{}, &MockJobQueue{})

	_, err := svc.InitiatePayment(context.Background(), InitiatePaymentInput{
		OrderID:       "order-1",
		UserID:        "buyer-1",
		PaymentMethod: domain.PaymentMethodMTN,
	})
	assert.ErrorIs(t, err, domain.ErrPhoneNumberRequired)
}

func TestInitiatePayment_ProviderFailureIsRecorded(t *testing.T) {
	payments := &MockPaymentStore{}
	orders := &MockOrderStore{Order: testOrder()}
	prov := &MockProvider{DepositErr: &domain.ProviderError{Op: "initiate", Reason: "deposit request failed"}}
	svc := NewPaymentService(payments, orders, prov, &MockNotificationStore{}, &MockJobQueue{})

	payment, err := svc.InitiatePayment(context.Background(), InitiatePaymentInput{
		OrderID:       "order-1",
		UserID:        "buyer-1",
		PaymentMethod: domain.PaymentMethodMTN,
		PhoneNumber:   "+237670000001",
	})
	require.Error(t, err)

	assert.Equal(t, domain.PaymentStatusFailed, payment.Status)
	assert.Equal(t, "deposit request failed", payments.FailureReason)
}

func TestInitiatePayment_AlreadyPaidOrder(t *testing.T) {
	payments := &MockPaymentStore{CreateErr: domain.ErrAlreadyPaid}
	orders := &MockOrderStore{Order: testOrder()}
	svc := NewPaymentService(payments, orders, &MockProvider{}, &MockNotificationStore{}, &MockJobQueue{})

	_, err := svc.InitiatePayment(context.Background(), InitiatePaymentInput{
		OrderID:       "order-1",
		UserID:        "buyer-1",
		PaymentMethod: domain.PaymentMethodMTN,
		PhoneNumber:   "+237670000001",
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)
}

func TestVerifyPayment_VerifiedSuccessIsPureRead(t *testing.T) {
	now := time.Now()
	payment := processingPayment()
	payment.Status = domain.PaymentStatusSuccess
	payment.VerifiedAt = &now

	payments := &MockPaymentStore{Payment: payment}
	prov := &MockProvider{}
	svc := NewPaymentService(payments, &MockOrderStore{}, prov, &MockNotificationStore{}, &MockJobQueue{})

	got, err := svc.VerifyPayment(context.Background(), "payment-1", "buyer-1")
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusSuccess, got.Status)
	assert.Zero(t, prov.StatusCalls, "verified success never hits the provider again")
	assert.Zero(t, payments.ApplyCalls)
}

func TestVerifyPayment_AppliesStatusAndEnqueuesCascade(t *testing.T) {
	payment := processingPayment()
	succeeded := *payment
	succeeded.Status = domain.PaymentStatusSuccess

	payments := &MockPaymentStore{
		Payment: payment,
		ApplyResult: &repository.ProviderStatusResult{
			Payment:         succeeded,
			PrevStatus:      domain.PaymentStatusProcessing,
			CascadeFired:    true,
			NotificationIDs: []string{"notif-1", "notif-2", "notif-3"},
		},
	}
	prov := &MockProvider{Status: &provider.DepositStatus{DepositID: "deposit-1", Status: "COMPLETED"}}
	jobs := &MockJobQueue{}
	svc := NewPaymentService(payments, &MockOrderStore{}, prov, &MockNotificationStore{}, jobs)

	got, err := svc.VerifyPayment(context.Background(), "payment-1", "buyer-1")
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusSuccess, got.Status)
	assert.Equal(t, 1, payments.ApplyCalls)
	assert.Equal(t, domain.PaymentStatusSuccess, payments.LastUpdate.Status)
	assert.True(t, payments.LastUpdate.Verified)
	assert.Equal(t, []string{"notif-1", "notif-2", "notif-3"}, jobs.Enqueued)
}

func TestVerifyPayment_NonMobileMoneySkipsProvider(t *testing.T) {
	payment := processingPayment()
	payment.PaymentMethod = domain.PaymentMethodWallet

	prov := &MockProvider{}
	svc := NewPaymentService(&MockPaymentStore{Payment: payment}, &MockOrderStore{}, prov, &MockNotificationStore{}, &MockJobQueue{})

	_, err := svc.VerifyPayment(context.Background(), "payment-1", "buyer-1")
	require.NoError(t, err)
	assert.Zero(t, prov.StatusCalls)
}

func TestProcessWebhook_MissingDepositID(t *testing.T) {
	svc := NewPaymentService(&MockPaymentStore{}, &MockOrderStore{}, &MockProvider{}, &MockNotificationStore{}, &MockJobQueue{})

	err := svc.ProcessWebhook(context.Background(), WebhookEvent{Status: "COMPLETED"})

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "depositId", validationErr.Field)
}

func TestProcessWebhook_UnknownDepositIsAcknowledged(t *testing.T) {
	payments := &MockPaymentStore{ByProviderErr: domain.ErrPaymentNotFound}
	svc := NewPaymentService(payments, &MockOrderStore{}, &MockProvider{}, &MockNotificationStore{}, &MockJobQueue{})

	err := svc.ProcessWebhook(context.Background(), WebhookEvent{DepositID: "deposit-zzz", Status: "COMPLETED"})
	assert.NoError(t, err, "unknown deposits are logged, not retried by the provider")
	assert.Zero(t, payments.ApplyCalls)
}

func TestProcessWebhook_SuccessCascadeNotificationsEnqueued(t *testing.T) {
	payment := processingPayment()
	succeeded := *payment
	succeeded.Status = domain.PaymentStatusSuccess

	payments := &MockPaymentStore{
		Payment: payment,
		ApplyResult: &repository.ProviderStatusResult{
			Payment:         succeeded,
			PrevStatus:      domain.PaymentStatusProcessing,
			CascadeFired:    true,
			NotificationIDs: []string{"notif-1", "notif-2"},
		},
	}
	jobs := &MockJobQueue{}
	svc := NewPaymentService(payments, &MockOrderStore{}, &MockProvider{}, &MockNotificationStore{}, jobs)

	err := svc.ProcessWebhook(context.Background(), WebhookEvent{DepositID: "deposit-1", Status: "COMPLETED"})
	require.NoError(t, err)

	assert.Equal(t, 1, payments.ApplyCalls)
	assert.False(t, payments.LastUpdate.Verified, "webhooks do not count as buyer verification")
	assert.Equal(t, []string{"notif-1", "notif-2"}, jobs.Enqueued)
}

func TestProcessWebhook_ReplayedSuccessStaysQuiet(t *testing.T) {
	payment := processingPayment()
	succeeded := *payment
	succeeded.Status = domain.PaymentStatusSuccess

	payments := &MockPaymentStore{
		Payment: &succeeded,
		ApplyResult: &repository.ProviderStatusResult{
			Payment:    succeeded,
			PrevStatus: domain.PaymentStatusSuccess,
			// replay: cascade already fired on the first delivery
		},
	}
	jobs := &MockJobQueue{}
	notifications := &MockNotificationStore{}
	svc := NewPaymentService(payments, &MockOrderStore{}, &MockProvider{}, notifications, jobs)

	err := svc.ProcessWebhook(context.Background(), WebhookEvent{DepositID: "deposit-1", Status: "COMPLETED"})
	require.NoError(t, err)

	assert.Empty(t, jobs.Enqueued)
	assert.Empty(t, notifications.Created)
}

func TestProcessWebhook_FirstFailureNotifiesBuyer(t *testing.T) {
	payment := processingPayment()
	failed := *payment
	failed.Status = domain.PaymentStatusFailed
	failed.FailureReason = "Insufficient balance"

	payments := &MockPaymentStore{
		Payment: payment,
		ApplyResult: &repository.ProviderStatusResult{
			Payment:    failed,
			PrevStatus: domain.PaymentStatusProcessing,
		},
	}
	notifications := &MockNotificationStore{}
	jobs := &MockJobQueue{}
	svc := NewPaymentService(payments, &MockOrderStore{}, &MockProvider{}, notifications, jobs)

	err := svc.ProcessWebhook(context.Background(), WebhookEvent{
		DepositID:     "deposit-1",
		Status:        "FAILED",
		FailureReason: "INSUFFICIENT_BALANCE",
	})
	require.NoError(t, err)

	require.Len(t, notifications.Created, 1)
	assert.Equal(t, domain.NotificationPaymentFailed, notifications.Created[0].Type)
	assert.Equal(t, "Insufficient balance", payments.LastUpdate.FailureReason)
	assert.Len(t, jobs.Enqueued, 1)
}

func TestProcessWebhook_ReplayedFailureDoesNotNotifyAgain(t *testing.T) {
	payment := processingPayment()
	failed := *payment
	failed.Status = domain.PaymentStatusFailed

	payments := &MockPaymentStore{
		Payment: &failed,
		ApplyResult: &repository.ProviderStatusResult{
			Payment:    failed,
			PrevStatus: domain.PaymentStatusFailed,
		},
	}
	notifications := &MockNotificationStore{}
	svc := NewPaymentService(payments, &MockOrderStore{}, &MockProvider{}, notifications, &MockJobQueue{})

	err := svc.ProcessWebhook(context.Background(), WebhookEvent{DepositID: "deposit-1", Status: "FAILED"})
	require.NoError(t, err)
	assert.Empty(t, notifications.Created)
}
