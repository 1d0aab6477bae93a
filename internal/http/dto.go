package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/olamidemziyad/marketplace-cmr/domain"
)

type OrderItemDTO struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderDTO struct {
	ID             string          `json:"id"`
	OrderNumber    string          `json:"orderNumber"`
	SessionID      string          `json:"sessionId,omitempty"`
	SellerID       string          `json:"sellerId"`
	Status         string          `json:"status"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	ShippingFee    decimal.Decimal `json:"shippingFee"`
	PlatformFee    decimal.Decimal `json:"platformFee"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	SellerAmount   decimal.Decimal `json:"sellerAmount"`
	TrackingNumber string          `json:"trackingNumber,omitempty"`
	CancelledAt    *time.Time      `json:"cancelledAt,omitempty"`
	DeliveredAt    *time.Time      `json:"deliveredAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	Items          []OrderItemDTO  `json:"items,omitempty"`
}

type PaymentDTO struct {
	ID                    string          `json:"id"`
	SessionID             string          `json:"sessionId,omitempty"`
	OrderID               string          `json:"orderId,omitempty"`
	PaymentMethod         string          `json:"paymentMethod"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency"`
	Status                string          `json:"status"`
	ProviderTransactionID string          `json:"providerTransactionId,omitempty"`
	FailureReason         string          `json:"failureReason,omitempty"`
	ProcessedAt           *time.Time      `json:"processedAt,omitempty"`
	VerifiedAt            *time.Time      `json:"verifiedAt,omitempty"`
	CreatedAt             time.Time       `json:"createdAt"`
}

func toOrderDTO(o *domain.Order) OrderDTO {
	dto := OrderDTO{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		SessionID:      o.SessionID,
		SellerID:       o.SellerID,
		Status:         string(o.Status),
		Subtotal:       o.Subtotal,
		ShippingFee:    o.ShippingFee,
		PlatformFee:    o.PlatformFee,
		TotalAmount:    o.TotalAmount,
		SellerAmount:   o.SellerAmount,
		TrackingNumber: o.TrackingNumber,
		CancelledAt:    o.CancelledAt,
		DeliveredAt:    o.DeliveredAt,
		CreatedAt:      o.CreatedAt,
	}
	for _, item := range o.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return dto
}

func toPaymentDTO(p *domain.Payment) PaymentDTO {
	return PaymentDTO{
		ID:                    p.ID,
		SessionID:             p.SessionID,
		OrderID:               p.OrderID,
		PaymentMethod:         string(p.PaymentMethod),
		Amount:                p.Amount,
		Currency:              p.Currency,
		Status:                string(p.Status),
		ProviderTransactionID: p.ProviderTransactionID,
		FailureReason:         p.FailureReason,
		ProcessedAt:           p.ProcessedAt,
		VerifiedAt:            p.VerifiedAt,
		CreatedAt:             p.CreatedAt,
	}
}
