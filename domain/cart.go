package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusAbandoned CartStatus = "abandoned"
	CartStatusConverted CartStatus = "converted"
)

// Cart is checkout staging data. Once converted it loses its items and is no
// longer the source of truth for anything.
type Cart struct {
	ID             string
	UserID         string
	Status         CartStatus
	TotalItems     int
	Subtotal       decimal.Decimal
	LastActivityAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CartItem is one product line in a cart. SellerID is denormalized from the
// product so checkout can group per seller without a join.
type CartItem struct {
	ID        string
	CartID    string
	ProductID string
	SellerID  string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

type Product struct {
	ID        string
	SellerID  string
	Title     string
	Price     decimal.Decimal
	Stock     int
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
