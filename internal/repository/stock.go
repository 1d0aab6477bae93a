package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/olamidemziyad/marketplace-cmr/domain"
)

// decrementStock takes qty units off a product row inside the caller's
// transaction. The conditional write is what makes oversell structurally
// impossible: two concurrent checkouts serialize on the row lock, and the
// loser sees the post-decrement stock in the WHERE clause.
func decrementStock(ctx context.Context, tx *sql.Tx, productID string, qty int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = NOW()
		 WHERE id = $1 AND stock >= $2`,
		productID, qty)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock rows affected: %w", err)
	}
	if affected == 0 {
		var available int
		if e2 := tx.QueryRowContext(ctx,
			`SELECT stock FROM products WHERE id = $1`, productID).Scan(&available); e2 != nil {
			return fmt.Errorf("read remaining stock: %w", e2)
		}
		return &domain.InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: available,
		}
	}
	return nil
}

// incrementStock gives qty units back, with no upper bound. Used by
// cancellation inside the same transaction as the status write.
func incrementStock(ctx context.Context, tx *sql.Tx, productID string, qty int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1`,
		productID, qty)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	return nil
}
