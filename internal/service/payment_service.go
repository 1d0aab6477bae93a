package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/singleflight"

	"github.com/olamidemziyad/marketplace-cmr/domain"
	"github.com/olamidemziyad/marketplace-cmr/internal/provider"
	"github.com/olamidemziyad/marketplace-cmr/internal/repository"
)

// PaymentService drives the payment state machine from three directions:
// buyer-triggered initiation, verify() polls, and provider webhooks. The
// exactly-once success cascade lives in the store's ApplyProviderStatus;
// this layer decides what observation to feed it.
type PaymentService struct {
	payments      PaymentStore
	orders        OrderStore
	provider      PaymentProvider
	notifications NotificationStore
	jobs          JobQueue

	// verifyGroup collapses concurrent verify() polls for the same payment
	// into a single provider call.
	verifyGroup singleflight.Group
}

func NewPaymentService(payments PaymentStore, orders OrderStore, pp PaymentProvider, notifications NotificationStore, jobs JobQueue) *PaymentService {
	return &PaymentService{
		payments:      payments,
		orders:        orders,
		provider:      pp,
		notifications: notifications,
		jobs:          jobs,
	}
}

type InitiatePaymentInput struct {
	OrderID       string
	UserID        string
	PaymentMethod domain.PaymentMethod
	PhoneNumber   string
}

// InitiatePayment starts a standalone mobile-money charge for one order.
// Provider failures are recorded on the payment row itself; the payment is
// never left dangling in pending after a failed initiation.
func (s *PaymentService) InitiatePayment(ctx context.Context, input InitiatePaymentInput) (*domain.Payment, error) {
	if !input.PaymentMethod.Valid() {
		return nil, &domain.ValidationError{Field: "paymentMethod", Reason: "is not a supported method"}
	}
	if input.PaymentMethod.IsMobileMoney() && input.PhoneNumber == "" {
		return nil, domain.ErrPhoneNumberRequired
	}

	order, err := s.orders.GetOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != input.UserID {
		return nil, domain.ErrOrderNotFound
	}

	payment := domain.NewOrderPayment(order, input.UserID, input.PaymentMethod, input.PhoneNumber)
	if err := s.payments.CreateOrderPayment(ctx, payment); err != nil {
		return nil, err
	}

	if !input.PaymentMethod.IsMobileMoney() {
		return payment, nil
	}

	deposit, err := s.provider.InitiateDeposit(ctx, provider.DepositRequest{
		PhoneNumber: input.PhoneNumber,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		OrderRef:    order.ID,
		PayerRef:    provider.PayerReference(input.UserID),
		Method:      input.PaymentMethod,
	})
	if err != nil {
		reason := providerReason(err)
		if e2 := s.payments.MarkInitiationFailed(ctx, payment.ID, reason); e2 != nil {
			log.Printf("failed to record initiation failure on payment %s: %v", payment.ID, e2)
		}
		payment.Status = domain.PaymentStatusFailed
		payment.FailureReason = reason
		return payment, err
	}

	if err := s.payments.MarkInitiated(ctx, payment.ID, deposit.DepositID, map[string]any{
		"provider_status": deposit.VendorStatus,
	}); err != nil {
		return nil, err
	}
	payment.Status = domain.PaymentStatusProcessing
	payment.ProviderTransactionID = deposit.DepositID

	s.notifyBuyer(ctx, payment.UserID, domain.NotificationPaymentInitiated, map[string]any{
		"order_id":       order.ID,
		"amount":         payment.Amount.StringFixed(2),
		"currency":       payment.Currency,
		"payment_method": string(payment.PaymentMethod),
	})
	return payment, nil
}

// GetPayment returns the payment scoped to its owner.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID, userID string) (*domain.Payment, error) {
	return s.payments.GetPayment(ctx, paymentID, userID)
}

// VerifyPayment re-polls the provider unless the payment is already a
// verified success, in which case this is a pure idempotent read and the
// cascade can never re-run.
func (s *PaymentService) VerifyPayment(ctx context.Context, paymentID, userID string) (*domain.Payment, error) {
	payment, err := s.payments.GetPayment(ctx, paymentID, userID)
	if err != nil {
		return nil, err
	}

	if payment.Status == domain.PaymentStatusSuccess && payment.VerifiedAt != nil {
		return payment, nil
	}
	if !payment.PaymentMethod.IsMobileMoney() || payment.ProviderTransactionID == "" {
		return payment, nil
	}

	v, err, _ := s.verifyGroup.Do(paymentID, func() (any, error) {
		status, err := s.provider.GetDepositStatus(ctx, payment.ProviderTransactionID)
		if err != nil {
			return nil, err
		}
		return s.applyObservation(ctx, payment.ID, status.Status, status.FailureReason, map[string]any{
			"last_verification": "verify",
		}, true)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Payment), nil
}

// WebhookEvent is the provider callback payload.
type WebhookEvent struct {
	DepositID       string `json:"depositId"`
	Status          string `json:"status"`
	ReceivedAmount  string `json:"receivedAmount"`
	FailureReason   string `json:"failureReason"`
	CorrespondentID string `json:"correspondentId"`
}

// ProcessWebhook applies a provider callback. It must tolerate duplicates,
// reordering, and replays: the status write is last-observed-wins and the
// success cascade is gated inside the store. A callback for an unknown
// deposit is logged and swallowed so the caller can still acknowledge it.
func (s *PaymentService) ProcessWebhook(ctx context.Context, event WebhookEvent) error {
	if event.DepositID == "" {
		return &domain.ValidationError{Field: "depositId", Reason: "is required"}
	}

	payment, err := s.payments.GetPaymentByProviderTransactionID(ctx, event.DepositID)
	if errors.Is(err, domain.ErrPaymentNotFound) {
		log.Printf("webhook for unknown deposit %s, acknowledging anyway", event.DepositID)
		return nil
	}
	if err != nil {
		return err
	}

	metadata := map[string]any{}
	if event.ReceivedAmount != "" {
		metadata["received_amount"] = event.ReceivedAmount
	}
	if event.CorrespondentID != "" {
		metadata["correspondent_id"] = event.CorrespondentID
	}

	_, err = s.applyObservation(ctx, payment.ID, event.Status, event.FailureReason, metadata, false)
	return err
}

// CancelPayment abandons an in-flight payment; only pending/processing may be
// cancelled.
func (s *PaymentService) CancelPayment(ctx context.Context, paymentID, userID string) (*domain.Payment, error) {
	return s.payments.CancelPayment(ctx, paymentID, userID)
}

// applyObservation is the shared tail of verify() and webhook handling.
func (s *PaymentService) applyObservation(ctx context.Context, paymentID, vendorStatus, failureCode string, metadata map[string]any, verified bool) (*domain.Payment, error) {
	update := repository.ProviderStatusUpdate{
		Status:         provider.MapProviderStatus(vendorStatus),
		ProviderStatus: vendorStatus,
		FailureReason:  provider.ReadableFailureReason(failureCode),
		Metadata:       metadata,
		Verified:       verified,
	}

	result, err := s.payments.ApplyProviderStatus(ctx, paymentID, update)
	if err != nil {
		return nil, err
	}

	for _, id := range result.NotificationIDs {
		if err := s.jobs.Enqueue(ctx, id); err != nil {
			log.Printf("failed to enqueue notification %s: %v", id, err)
		}
	}

	// The failure notification is created here, outside the cascade, but
	// only on the first transition into failed so replays stay silent.
	if update.Status == domain.PaymentStatusFailed && result.PrevStatus != domain.PaymentStatusFailed {
		s.notifyBuyer(ctx, result.Payment.UserID, domain.NotificationPaymentFailed, map[string]any{
			"session_id":     result.Payment.SessionID,
			"amount":         result.Payment.Amount.StringFixed(2),
			"currency":       result.Payment.Currency,
			"failure_reason": result.Payment.FailureReason,
		})
	}

	return &result.Payment, nil
}

func (s *PaymentService) notifyBuyer(ctx context.Context, userID string, kind domain.NotificationType, payload map[string]any) {
	id, err := s.notifications.CreateNotification(ctx, &domain.Notification{
		UserID:  userID,
		Type:    kind,
		Channel: domain.ChannelEmail,
		Payload: payload,
	})
	if err != nil {
		log.Printf("failed to create %s notification: %v", kind, err)
		return
	}
	if err := s.jobs.Enqueue(ctx, id); err != nil {
		log.Printf("failed to enqueue notification %s: %v", id, err)
	}
}

func providerReason(err error) string {
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return fmt.Sprintf("payment initiation failed: %v", err)
}
