package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckoutFees are the per-seller charges applied when a cart is split.
type CheckoutFees struct {
	// ShippingFee is charged per seller order, on top of the subtotal.
	ShippingFee decimal.Decimal
	// PlatformFeeRate is the marketplace commission taken out of seller
	// proceeds, e.g. 0.10 for 10%.
	PlatformFeeRate decimal.Decimal
}

// CheckoutSession is the result of splitting one cart: one order per seller
// plus a single payment covering all of them.
type CheckoutSession struct {
	SessionID string
	Orders    []Order
	Payment   Payment
}

// BuildCheckoutSession groups cart items by seller and prices each resulting
// order. It is a pure computation; callers persist the result atomically.
func BuildCheckoutSession(buyerID, addressID string, items []CartItem, fees CheckoutFees, paymentMethod PaymentMethod, phoneNumber, customerNotes string) (*CheckoutSession, error) {
	if len(items) == 0 {
		return nil, ErrCartEmpty
	}

	sessionID := uuid.NewString()
	now := time.Now().UTC()

	// Group per seller, keeping first-seen seller order stable.
	var sellers []string
	bySeller := make(map[string][]CartItem)
	for _, item := range items {
		if _, seen := bySeller[item.SellerID]; !seen {
			sellers = append(sellers, item.SellerID)
		}
		bySeller[item.SellerID] = append(bySeller[item.SellerID], item)
	}

	orders := make([]Order, 0, len(sellers))
	total := decimal.Zero
	for _, sellerID := range sellers {
		group := bySeller[sellerID]

		subtotal := decimal.Zero
		for _, item := range group {
			subtotal = subtotal.Add(item.Subtotal)
		}

		order := Order{
			ID:            uuid.NewString(),
			OrderNumber:   NewOrderNumber(),
			SessionID:     sessionID,
			BuyerID:       buyerID,
			SellerID:      sellerID,
			AddressID:     addressID,
			Status:        OrderStatusPending,
			Subtotal:      subtotal,
			ShippingFee:   fees.ShippingFee,
			PlatformFee:   subtotal.Mul(fees.PlatformFeeRate),
			CustomerNotes: customerNotes,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		order.Recalculate()

		for _, item := range group {
			order.Items = append(order.Items, OrderItem{
				ID:        uuid.NewString(),
				OrderID:   order.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     item.UnitPrice,
			})
		}

		total = total.Add(order.TotalAmount)
		orders = append(orders, order)
	}

	payment := Payment{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		UserID:        buyerID,
		PaymentMethod: paymentMethod,
		Amount:        total.Round(2),
		Currency:      DefaultCurrency,
		Status:        PaymentStatusPending,
		PhoneNumber:   phoneNumber,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for i := range orders {
		orders[i].PaymentID = payment.ID
	}

	return &CheckoutSession{
		SessionID: sessionID,
		Orders:    orders,
		Payment:   payment,
	}, nil
}
