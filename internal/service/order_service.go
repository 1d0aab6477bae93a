package service

import (
	"context"
	"strings"

	"github.com/olamidemziyad/marketplace-cmr/domain"
)

// OrderService wraps order reads and the seller/buyer lifecycle writes. The
// transition rules themselves are enforced inside the store transaction; this
// layer only rejects input that could never be valid.
type OrderService struct {
	store OrderStore
}

func NewOrderService(store OrderStore) *OrderService {
	return &OrderService{store: store}
}

func (s *OrderService) GetOrder(ctx context.Context, orderID, userID string) (*domain.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != userID && order.SellerID != userID {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) GetSessionOrders(ctx context.Context, sessionID, buyerID string) ([]domain.Order, error) {
	return s.store.GetSessionOrders(ctx, sessionID, buyerID)
}

func (s *OrderService) ListBuyerOrders(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return s.store.ListBuyerOrders(ctx, buyerID)
}

func (s *OrderService) ListSellerOrders(ctx context.Context, sellerID string) ([]domain.Order, error) {
	return s.store.ListSellerOrders(ctx, sellerID)
}

// UpdateStatus moves a seller's order along the fulfilment path.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, sellerID string, to domain.OrderStatus) (*domain.Order, error) {
	if !to.Valid() {
		return nil, &domain.ValidationError{Field: "status", Reason: "is not a recognised order status"}
	}
	return s.store.UpdateOrderStatus(ctx, orderID, sellerID, to)
}

// Cancel lets the buyer abandon an order that has not started fulfilment.
// Stock restoration happens inside the same store transaction.
func (s *OrderService) Cancel(ctx context.Context, orderID, buyerID, reason string) (*domain.Order, error) {
	return s.store.CancelOrder(ctx, orderID, buyerID, reason)
}

func (s *OrderService) AddTrackingNumber(ctx context.Context, orderID, sellerID, trackingNumber string) (*domain.Order, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, &domain.ValidationError{Field: "trackingNumber", Reason: "is required"}
	}
	return s.store.AddTrackingNumber(ctx, orderID, sellerID, trackingNumber)
}
