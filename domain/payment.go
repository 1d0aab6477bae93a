package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultCurrency = "XAF"

type PaymentMethod string

const (
	PaymentMethodMTN    PaymentMethod = "mtn"
	PaymentMethodOrange PaymentMethod = "orange"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodWallet PaymentMethod = "wallet"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodMTN, PaymentMethodOrange, PaymentMethodCard, PaymentMethodWallet:
		return true
	}
	return false
}

// IsMobileMoney reports whether the method settles through the mobile-money
// provider and therefore needs a payer phone number.
func (m PaymentMethod) IsMobileMoney() bool {
	return m == PaymentMethodMTN || m == PaymentMethodOrange
}

// Payment is the single buyer-facing charge for a checkout session, shared
// by every sibling order of that session.
type Payment struct {
	ID                    string
	SessionID             string
	OrderID               string // set for standalone single-order payments
	UserID                string
	PaymentMethod         PaymentMethod
	Amount                decimal.Decimal
	Currency              string
	Status                PaymentStatus
	ProviderTransactionID string
	PhoneNumber           string
	FailureReason         string
	Metadata              map[string]any
	ProcessedAt           *time.Time
	VerifiedAt            *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NewOrderPayment builds a pending charge for a single order, outside the
// checkout session flow.
func NewOrderPayment(order *Order, userID string, method PaymentMethod, phoneNumber string) *Payment {
	return &Payment{
		ID:            uuid.NewString(),
		OrderID:       order.ID,
		UserID:        userID,
		PaymentMethod: method,
		Amount:        order.TotalAmount,
		Currency:      DefaultCurrency,
		Status:        PaymentStatusPending,
		PhoneNumber:   phoneNumber,
		Metadata:      map[string]any{},
	}
}

// NewDepositID builds a provider-facing transaction id. We generate it before
// calling out so the idempotency key is controlled on our side. The provider
// allows up to 64 chars of [a-zA-Z0-9_-].
func NewDepositID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("deposit_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}
