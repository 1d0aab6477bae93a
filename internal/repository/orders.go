package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/olamidemziyad/marketplace-cmr/domain"
)

const orderQuery = `
	SELECT o.id, o.order_number, o.session_id, o.buyer_id, o.seller_id, o.address_id,
	       o.status, o.payment_id, o.subtotal, o.shipping_fee, o.platform_fee,
	       o.total_amount, o.seller_amount, o.customer_notes, o.tracking_number,
	       o.cancelled_at, o.delivered_at, o.created_at, o.updated_at
	FROM orders o`

// GetOrder returns the order together with its items as one typed aggregate.
func (r *Repository) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, orderQuery+` WHERE o.id = $1`, orderID))
	if err != nil {
		return nil, err
	}
	items, err := r.loadOrderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

// GetSessionOrders returns every sibling order of a checkout session owned by
// the buyer, items included.
func (r *Repository) GetSessionOrders(ctx context.Context, sessionID, buyerID string) ([]domain.Order, error) {
	orders, err := r.queryOrders(ctx,
		orderQuery+` WHERE o.session_id = $1 AND o.buyer_id = $2 ORDER BY o.created_at DESC`,
		sessionID, buyerID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, domain.ErrOrderNotFound
	}
	for i := range orders {
		items, err := r.loadOrderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

// ListBuyerOrders returns the buyer's orders, newest first.
func (r *Repository) ListBuyerOrders(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return r.queryOrders(ctx,
		orderQuery+` WHERE o.buyer_id = $1 ORDER BY o.created_at DESC`, buyerID)
}

// ListSellerOrders returns the seller's orders, newest first.
func (r *Repository) ListSellerOrders(ctx context.Context, sellerID string) ([]domain.Order, error) {
	return r.queryOrders(ctx,
		orderQuery+` WHERE o.seller_id = $1 ORDER BY o.created_at DESC`, sellerID)
}

// UpdateOrderStatus applies a seller-driven transition. The legal-edge check
// runs under the row lock, in the same transaction as the write.
func (r *Repository) UpdateOrderStatus(ctx context.Context, orderID, sellerID string, to domain.OrderStatus) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin order tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var current domain.OrderStatus
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM orders WHERE id = $1 AND seller_id = $2 FOR UPDATE`,
		orderID, sellerID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}

	if !current.CanTransition(to) {
		return nil, &domain.InvalidTransitionError{
			Entity: "order",
			From:   current.String(),
			To:     to.String(),
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
		    delivered_at = CASE WHEN $2 = 'delivered' THEN NOW() ELSE delivered_at END,
		    updated_at = NOW()
		WHERE id = $1`,
		orderID, to)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order tx: %w", err)
	}
	return r.GetOrder(ctx, orderID)
}

// CancelOrder is the buyer-driven cancellation: allowed only while the order
// is still pending or confirmed, and every line's stock is restored in the
// same transaction as the status write.
func (r *Repository) CancelOrder(ctx context.Context, orderID, buyerID, reason string) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin cancel tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var current domain.OrderStatus
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM orders WHERE id = $1 AND buyer_id = $2 FOR UPDATE`,
		orderID, buyerID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}

	if !current.Cancellable() {
		return nil, &domain.InvalidTransitionError{
			Entity: "order",
			From:   current.String(),
			To:     domain.OrderStatusCancelled.String(),
		}
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT product_id, quantity FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	type line struct {
		productID string
		quantity  int
	}
	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.productID, &l.quantity); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order item rows: %w", err)
	}

	for _, l := range lines {
		if err := incrementStock(ctx, tx, l.productID, l.quantity); err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET status = 'cancelled', cancelled_at = NOW(),
		    customer_notes = CASE WHEN $2 <> ''
		        THEN TRIM(customer_notes || E'\n' || 'Cancellation reason: ' || $2)
		        ELSE customer_notes END,
		    updated_at = NOW()
		WHERE id = $1`,
		orderID, reason)
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cancel tx: %w", err)
	}
	return r.GetOrder(ctx, orderID)
}

// AddTrackingNumber attaches the carrier reference to a seller's order.
func (r *Repository) AddTrackingNumber(ctx context.Context, orderID, sellerID, trackingNumber string) (*domain.Order, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET tracking_number = $3, updated_at = NOW()
		 WHERE id = $1 AND seller_id = $2`,
		orderID, sellerID, trackingNumber)
	if err != nil {
		return nil, fmt.Errorf("add tracking number: %w", err)
	}
	if err := requireRow(res, domain.ErrOrderNotFound); err != nil {
		return nil, err
	}
	return r.GetOrder(ctx, orderID)
}

func (r *Repository) queryOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order rows: %w", err)
	}
	return orders, nil
}

func (r *Repository) loadOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, product_id, quantity, price FROM order_items WHERE order_id = $1`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order item rows: %w", err)
	}
	return items, nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var paymentID, customerNotes, trackingNumber sql.NullString
	var cancelledAt, deliveredAt sql.NullTime

	err := row.Scan(&o.ID, &o.OrderNumber, &o.SessionID, &o.BuyerID, &o.SellerID,
		&o.AddressID, &o.Status, &paymentID, &o.Subtotal, &o.ShippingFee,
		&o.PlatformFee, &o.TotalAmount, &o.SellerAmount, &customerNotes,
		&trackingNumber, &cancelledAt, &deliveredAt, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}

	o.PaymentID = paymentID.String
	o.CustomerNotes = customerNotes.String
	o.TrackingNumber = trackingNumber.String
	if cancelledAt.Valid {
		o.CancelledAt = &cancelledAt.Time
	}
	if deliveredAt.Valid {
		o.DeliveredAt = &deliveredAt.Time
	}
	return &o, nil
}
