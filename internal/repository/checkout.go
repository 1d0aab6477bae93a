package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/olamidemziyad/marketplace-cmr/domain"
)

// CreateCheckoutSession turns the buyer's active cart into per-seller orders
// plus one payment, all inside a single transaction. Preconditions (address
// ownership, cart non-empty, product active, sufficient stock) are checked
// under the same transaction so no race window remains between check and
// commit. Any failure rolls everything back.
func (r *Repository) CreateCheckoutSession(ctx context.Context, buyerID, addressID string, fees domain.CheckoutFees, method domain.PaymentMethod, phoneNumber, customerNotes string) (*domain.CheckoutSession, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin checkout tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Address must belong to the buyer.
	var addressOwner string
	err = tx.QueryRowContext(ctx,
		`SELECT user_id FROM addresses WHERE id = $1`, addressID).Scan(&addressOwner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && addressOwner != buyerID) {
		return nil, domain.ErrAddressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load address: %w", err)
	}

	// Lock the active cart so concurrent checkouts of the same cart
	// serialize.
	var cartID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM carts WHERE user_id = $1 AND status = 'active' FOR UPDATE`,
		buyerID).Scan(&cartID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCartEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	items, err := loadCartItemsForCheckout(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}

	session, err := domain.BuildCheckoutSession(buyerID, addressID, items, fees, method, phoneNumber, customerNotes)
	if err != nil {
		return nil, err
	}

	if err := insertPayment(ctx, tx, &session.Payment); err != nil {
		return nil, err
	}

	for i := range session.Orders {
		order := &session.Orders[i]
		if err := insertOrder(ctx, tx, order); err != nil {
			return nil, err
		}
		for _, item := range order.Items {
			if err := insertOrderItem(ctx, tx, &item); err != nil {
				return nil, err
			}
			if err := decrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return nil, err
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE carts SET status = 'converted', total_items = 0, subtotal = 0, updated_at = NOW() WHERE id = $1`,
		cartID); err != nil {
		return nil, fmt.Errorf("convert cart: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return nil, fmt.Errorf("clear cart items: %w", err)
	}

	if err := insertOutboxEvent(ctx, tx, "checkout", session.SessionID, "checkout.completed", map[string]any{
		"session_id":   session.SessionID,
		"buyer_id":     buyerID,
		"payment_id":   session.Payment.ID,
		"total_amount": session.Payment.Amount.StringFixed(2),
		"orders_count": len(session.Orders),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit checkout tx: %w", err)
	}
	return session, nil
}

// loadCartItemsForCheckout reads the cart lines joined with their products,
// locking the product rows for the stock decrements that follow. Inactive
// products fail the whole checkout here.
func loadCartItemsForCheckout(ctx context.Context, tx *sql.Tx, cartID string) ([]domain.CartItem, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT ci.id, ci.product_id, ci.seller_id, ci.quantity, ci.unit_price, ci.subtotal,
		       p.title, p.is_active
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at
		FOR UPDATE OF p`, cartID)
	if err != nil {
		return nil, fmt.Errorf("load cart items: %w", err)
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		var item domain.CartItem
		var title string
		var isActive bool
		if err := rows.Scan(&item.ID, &item.ProductID, &item.SellerID, &item.Quantity,
			&item.UnitPrice, &item.Subtotal, &title, &isActive); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		if !isActive {
			return nil, &domain.ProductUnavailableError{ProductID: item.ProductID, Title: title}
		}
		item.CartID = cartID
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cart item rows: %w", err)
	}
	if len(items) == 0 {
		return nil, domain.ErrCartEmpty
	}
	return items, nil
}

func insertOrder(ctx context.Context, tx *sql.Tx, o *domain.Order) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, session_id, buyer_id, seller_id, address_id,
		                    status, payment_id, subtotal, shipping_fee, platform_fee,
		                    total_amount, seller_amount, customer_notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		o.ID, o.OrderNumber, o.SessionID, o.BuyerID, o.SellerID, o.AddressID,
		o.Status, o.PaymentID, o.Subtotal, o.ShippingFee, o.PlatformFee,
		o.TotalAmount, o.SellerAmount, o.CustomerNotes, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func insertOrderItem(ctx context.Context, tx *sql.Tx, item *domain.OrderItem) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_items (id, order_id, product_id, quantity, price)
		VALUES ($1,$2,$3,$4,$5)`,
		item.ID, item.OrderID, item.ProductID, item.Quantity, item.Price)
	if err != nil {
		return fmt.Errorf("insert order item: %w", err)
	}
	return nil
}
