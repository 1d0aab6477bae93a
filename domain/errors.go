package domain

import (
	"errors"
	"fmt"
)

var (
	ErrCartEmpty            = errors.New("cart is empty, nothing to checkout")
	ErrAddressNotFound      = errors.New("address not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrCartNotFound         = errors.New("active cart not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrAlreadyPaid          = errors.New("order is already paid")
	ErrPendingPaymentExists = errors.New("a payment is already in progress for this order")
	ErrPhoneNumberRequired  = errors.New("phone number is required for mobile money payments")
)

// ValidationError marks malformed or missing input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InsufficientStockError is returned when a checkout asks for more units
// than the product row holds. Available carries the quantity left at the
// moment of the failed decrement.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (requested %d, available %d)",
		e.ProductID, e.Requested, e.Available)
}

// ProductUnavailableError is returned when a cart references an inactive or
// deleted product.
type ProductUnavailableError struct {
	ProductID string
	Title     string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %q is no longer available", e.Title)
}

// InvalidTransitionError names the rejected state edge.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s status transition: %s -> %s", e.Entity, e.From, e.To)
}

// ProviderError wraps an upstream payment-network failure with the mapped
// human-readable reason.
type ProviderError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment provider %s failed: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("payment provider %s failed: %s", e.Op, e.Reason)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
