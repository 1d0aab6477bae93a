package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/olamidemziyad/marketplace-cmr/domain"
)

// ProviderStatusUpdate carries one observation of the provider's view of a
// payment, whether it came from a webhook or from a verify() poll.
type ProviderStatusUpdate struct {
	Status         domain.PaymentStatus
	ProviderStatus string
	FailureReason  string
	Metadata       map[string]any
	Verified       bool // true when the observation came from an explicit poll
}

// ProviderStatusResult reports what the update did. CascadeFired is true only
// for the first transition into success; NotificationIDs are the rows created
// by that cascade, for the caller to enqueue after commit.
type ProviderStatusResult struct {
	Payment         domain.Payment
	PrevStatus      domain.PaymentStatus
	CascadeFired    bool
	NotificationIDs []string
}

func insertPayment(ctx context.Context, tx *sql.Tx, p *domain.Payment) error {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("marshal payment metadata: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments (id, session_id, order_id, user_id, payment_method, amount,
		                      currency, status, provider_transaction_id, phone_number,
		                      failure_reason, metadata, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		p.ID, nullString(p.SessionID), nullString(p.OrderID), p.UserID, p.PaymentMethod,
		p.Amount, p.Currency, p.Status, nullString(p.ProviderTransactionID),
		nullString(p.PhoneNumber), nullString(p.FailureReason), metadata,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// CreateOrderPayment records a standalone payment for a single order,
// rejecting the attempt when the order is already paid or when another
// payment is still in flight. The checks run under the order row lock so two
// concurrent initiations cannot both pass.
func (r *Repository) CreateOrderPayment(ctx context.Context, p *domain.Payment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin payment tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var orderStatus domain.OrderStatus
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM orders WHERE id = $1 AND buyer_id = $2 FOR UPDATE`,
		p.OrderID, p.UserID).Scan(&orderStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}

	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM payments
		 WHERE order_id = $1 AND status IN ('success', 'pending', 'processing')
		 ORDER BY created_at DESC LIMIT 1`, p.OrderID).Scan(&existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check existing payments: %w", err)
	}
	switch domain.PaymentStatus(existing) {
	case domain.PaymentStatusSuccess:
		return domain.ErrAlreadyPaid
	case domain.PaymentStatusPending, domain.PaymentStatusProcessing:
		return domain.ErrPendingPaymentExists
	}

	if err := insertPayment(ctx, tx, p); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payment tx: %w", err)
	}
	return nil
}

// MarkInitiated moves a payment to processing once the provider accepted the
// deposit, recording the provider transaction id we generated.
func (r *Repository) MarkInitiated(ctx context.Context, paymentID, providerTxID string, metadata map[string]any) error {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = 'processing', provider_transaction_id = $2,
		    metadata = metadata || $3::jsonb, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`,
		paymentID, providerTxID, meta)
	if err != nil {
		return fmt.Errorf("mark payment initiated: %w", err)
	}
	return requireRow(res, domain.ErrPaymentNotFound)
}

// MarkInitiationFailed records an initiation failure on the payment itself so
// it is never left dangling in pending.
func (r *Repository) MarkInitiationFailed(ctx context.Context, paymentID, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = 'failed', failure_reason = $2, updated_at = NOW()
		WHERE id = $1`,
		paymentID, reason)
	if err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	return requireRow(res, domain.ErrPaymentNotFound)
}

// CancelPayment is the buyer-initiated edge out of pending/processing. The
// conditional update makes it race-free against a concurrent webhook.
func (r *Repository) CancelPayment(ctx context.Context, paymentID, userID string) (*domain.Payment, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = 'cancelled',
		    metadata = metadata || jsonb_build_object('cancelled_at', NOW(), 'cancelled_by', $2::text),
		    updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status IN ('pending', 'processing')`,
		paymentID, userID)
	if err != nil {
		return nil, fmt.Errorf("cancel payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("cancel payment rows affected: %w", err)
	}
	if affected == 0 {
		payment, err := r.GetPayment(ctx, paymentID, userID)
		if err != nil {
			return nil, err
		}
		return nil, &domain.InvalidTransitionError{
			Entity: "payment",
			From:   payment.Status.String(),
			To:     domain.PaymentStatusCancelled.String(),
		}
	}
	return r.GetPayment(ctx, paymentID, userID)
}

// ApplyProviderStatus is the single write path shared by verify() polls and
// webhook deliveries. The status write is "last observed state wins", but the
// success cascade (orders -> paid, notifications, outbox event) fires exactly
// once: the pre-write status is read under the row lock and the cascade runs
// only on the first transition into success.
func (r *Repository) ApplyProviderStatus(ctx context.Context, paymentID string, update ProviderStatusUpdate) (*ProviderStatusResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin status tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var prev domain.PaymentStatus
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM payments WHERE id = $1 FOR UPDATE`, paymentID).Scan(&prev)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock payment: %w", err)
	}

	meta := update.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	meta["provider_status"] = update.ProviderStatus
	meta["observed_at"] = time.Now().UTC().Format(time.RFC3339)
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	newlySucceeded := update.Status == domain.PaymentStatusSuccess && prev != domain.PaymentStatusSuccess

	_, err = tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $2,
		    failure_reason = $3,
		    metadata = metadata || $4::jsonb,
		    processed_at = CASE WHEN $5 AND processed_at IS NULL THEN NOW() ELSE processed_at END,
		    verified_at = CASE WHEN $6 THEN NOW() ELSE verified_at END,
		    updated_at = NOW()
		WHERE id = $1`,
		paymentID, update.Status, nullString(update.FailureReason), metaJSON,
		update.Status == domain.PaymentStatusSuccess, update.Verified)
	if err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}

	result := &ProviderStatusResult{PrevStatus: prev}
	if newlySucceeded {
		ids, err := r.runSuccessCascade(ctx, tx, paymentID)
		if err != nil {
			return nil, err
		}
		result.CascadeFired = true
		result.NotificationIDs = ids
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit status tx: %w", err)
	}

	payment, err := r.getPayment(ctx, paymentID, "")
	if err != nil {
		return nil, err
	}
	result.Payment = *payment
	return result, nil
}

// runSuccessCascade marks every sibling order paid and creates the
// notifications owed to the buyer and each seller, all inside the status
// transaction. Returns the notification ids for post-commit enqueueing.
func (r *Repository) runSuccessCascade(ctx context.Context, tx *sql.Tx, paymentID string) ([]string, error) {
	payment, err := scanPayment(tx.QueryRowContext(ctx, paymentQuery+` WHERE p.id = $1`, paymentID))
	if err != nil {
		return nil, err
	}

	var rows *sql.Rows
	if payment.SessionID != "" {
		rows, err = tx.QueryContext(ctx,
			`SELECT id, order_number, seller_id, total_amount FROM orders WHERE session_id = $1`,
			payment.SessionID)
	} else {
		rows, err = tx.QueryContext(ctx,
			`SELECT id, order_number, seller_id, total_amount FROM orders WHERE id = $1`,
			payment.OrderID)
	}
	if err != nil {
		return nil, fmt.Errorf("load session orders: %w", err)
	}
	defer rows.Close()

	type orderRef struct {
		id, number, sellerID, total string
	}
	var refs []orderRef
	for rows.Next() {
		var ref orderRef
		if err := rows.Scan(&ref.id, &ref.number, &ref.sellerID, &ref.total); err != nil {
			return nil, fmt.Errorf("scan order ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order ref rows: %w", err)
	}

	for _, ref := range refs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE orders SET status = 'paid', updated_at = NOW()
			 WHERE id = $1 AND status = 'pending'`, ref.id); err != nil {
			return nil, fmt.Errorf("mark order paid: %w", err)
		}
	}

	var notificationIDs []string

	buyerNote := domain.Notification{
		UserID:  payment.UserID,
		Type:    domain.NotificationPaymentSuccess,
		Channel: domain.ChannelEmail,
		Payload: map[string]any{
			"session_id":     payment.SessionID,
			"amount":         payment.Amount.StringFixed(2),
			"currency":       payment.Currency,
			"payment_method": string(payment.PaymentMethod),
		},
	}
	id, err := insertNotification(ctx, tx, &buyerNote)
	if err != nil {
		return nil, err
	}
	notificationIDs = append(notificationIDs, id)

	for _, ref := range refs {
		sellerNote := domain.Notification{
			UserID:  ref.sellerID,
			Type:    domain.NotificationNewOrderPaid,
			Channel: domain.ChannelEmail,
			Payload: map[string]any{
				"order_id":     ref.id,
				"order_number": ref.number,
				"amount":       ref.total,
				"currency":     payment.Currency,
			},
		}
		id, err := insertNotification(ctx, tx, &sellerNote)
		if err != nil {
			return nil, err
		}
		notificationIDs = append(notificationIDs, id)
	}

	if err := insertOutboxEvent(ctx, tx, "payment", payment.ID, "payment.succeeded", map[string]any{
		"payment_id": payment.ID,
		"session_id": payment.SessionID,
		"amount":     payment.Amount.StringFixed(2),
		"currency":   payment.Currency,
	}); err != nil {
		return nil, err
	}

	return notificationIDs, nil
}

const paymentQuery = `
	SELECT p.id, p.session_id, p.order_id, p.user_id, p.payment_method, p.amount,
	       p.currency, p.status, p.provider_transaction_id, p.phone_number,
	       p.failure_reason, p.metadata, p.processed_at, p.verified_at,
	       p.created_at, p.updated_at
	FROM payments p`

// GetPayment loads a payment scoped to its owner. An empty userID skips the
// ownership filter (internal callers).
func (r *Repository) GetPayment(ctx context.Context, paymentID, userID string) (*domain.Payment, error) {
	return r.getPayment(ctx, paymentID, userID)
}

func (r *Repository) getPayment(ctx context.Context, paymentID, userID string) (*domain.Payment, error) {
	query := paymentQuery + ` WHERE p.id = $1`
	args := []any{paymentID}
	if userID != "" {
		query += ` AND p.user_id = $2`
		args = append(args, userID)
	}
	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// GetPaymentByProviderTransactionID is the webhook lookup path.
func (r *Repository) GetPaymentByProviderTransactionID(ctx context.Context, providerTxID string) (*domain.Payment, error) {
	return scanPayment(r.db.QueryRowContext(ctx,
		paymentQuery+` WHERE p.provider_transaction_id = $1`, providerTxID))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var p domain.Payment
	var sessionID, orderID, providerTxID, phone, failureReason sql.NullString
	var metadata []byte
	var processedAt, verifiedAt sql.NullTime

	err := row.Scan(&p.ID, &sessionID, &orderID, &p.UserID, &p.PaymentMethod, &p.Amount,
		&p.Currency, &p.Status, &providerTxID, &phone, &failureReason, &metadata,
		&processedAt, &verifiedAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan payment: %w", err)
	}

	p.SessionID = sessionID.String
	p.OrderID = orderID.String
	p.ProviderTransactionID = providerTxID.String
	p.PhoneNumber = phone.String
	p.FailureReason = failureReason.String
	if processedAt.Valid {
		p.ProcessedAt = &processedAt.Time
	}
	if verifiedAt.Valid {
		p.VerifiedAt = &verifiedAt.Time
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal payment metadata: %w", err)
		}
	}
	return &p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireRow(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
