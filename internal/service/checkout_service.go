package service

import (
	"context"
	"log"

	"github.com/olamidemziyad/marketplace-cmr/domain"
)

// CheckoutService turns the buyer's cart into per-seller orders and one
// payment. All correctness-critical work happens in the store's single
// transaction; the notification afterwards is fire-and-forget.
type CheckoutService struct {
	store         CheckoutStore
	notifications NotificationStore
	jobs          JobQueue
	fees          domain.CheckoutFees
}

func NewCheckoutService(store CheckoutStore, notifications NotificationStore, jobs JobQueue, fees domain.CheckoutFees) *CheckoutService {
	return &CheckoutService{
		store:         store,
		notifications: notifications,
		jobs:          jobs,
		fees:          fees,
	}
}

type CheckoutInput struct {
	BuyerID       string
	AddressID     string
	PaymentMethod domain.PaymentMethod
	PhoneNumber   string
	CustomerNotes string
}

func (s *CheckoutService) Checkout(ctx context.Context, input CheckoutInput) (*domain.CheckoutSession, error) {
	if input.AddressID == "" {
		return nil, &domain.ValidationError{Field: "addressId", Reason: "is required"}
	}
	if !input.PaymentMethod.Valid() {
		return nil, &domain.ValidationError{Field: "paymentMethod", Reason: "is not a supported method"}
	}
	if input.PaymentMethod.IsMobileMoney() && input.PhoneNumber == "" {
		return nil, domain.ErrPhoneNumberRequired
	}

	session, err := s.store.CreateCheckoutSession(ctx, input.BuyerID, input.AddressID,
		s.fees, input.PaymentMethod, input.PhoneNumber, input.CustomerNotes)
	if err != nil {
		return nil, err
	}

	// Best-effort: the checkout already committed; a lost notification here
	// is tolerable because delivery is at-least-once end to end.
	s.notifyPaymentInitiated(ctx, session)

	return session, nil
}

func (s *CheckoutService) notifyPaymentInitiated(ctx context.Context, session *domain.CheckoutSession) {
	id, err := s.notifications.CreateNotification(ctx, &domain.Notification{
		UserID:  session.Payment.UserID,
		Type:    domain.NotificationPaymentInitiated,
		Channel: domain.ChannelEmail,
		Payload: map[string]any{
			"session_id":     session.SessionID,
			"amount":         session.Payment.Amount.StringFixed(2),
			"currency":       session.Payment.Currency,
			"payment_method": string(session.Payment.PaymentMethod),
		},
	})
	if err != nil {
		log.Printf("failed to create checkout notification for session %s: %v", session.SessionID, err)
		return
	}
	if err := s.jobs.Enqueue(ctx, id); err != nil {
		log.Printf("failed to enqueue checkout notification %s: %v", id, err)
	}
}
