package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Order is one seller's share of a checkout session. Sibling orders share a
// SessionID and a single Payment.
type Order struct {
	ID             string
	OrderNumber    string
	SessionID      string
	BuyerID        string
	SellerID       string
	AddressID      string
	Status         OrderStatus
	PaymentID      string
	Subtotal       decimal.Decimal
	ShippingFee    decimal.Decimal
	PlatformFee    decimal.Decimal
	TotalAmount    decimal.Decimal
	SellerAmount   decimal.Decimal
	CustomerNotes  string
	TrackingNumber string
	CancelledAt    *time.Time
	DeliveredAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Items []OrderItem
}

// OrderItem is an immutable line created once at checkout.
type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

// Recalculate derives the money fields that depend on subtotal and fees:
// totalAmount = subtotal + shippingFee, sellerAmount = subtotal - platformFee.
// All amounts carry two decimals, rounded half up.
func (o *Order) Recalculate() {
	o.Subtotal = o.Subtotal.Round(2)
	o.ShippingFee = o.ShippingFee.Round(2)
	o.PlatformFee = o.PlatformFee.Round(2)
	o.TotalAmount = o.Subtotal.Add(o.ShippingFee).Round(2)
	o.SellerAmount = o.Subtotal.Sub(o.PlatformFee).Round(2)
}

// NewOrderNumber builds a unique human-readable reference like
// ORD-1704104400000-A1B2C3.
func NewOrderNumber() string {
	buf := make([]byte, 3)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("ORD-%d-%s", time.Now().UnixMilli(),
		strings.ToUpper(hex.EncodeToString(buf)))
}
