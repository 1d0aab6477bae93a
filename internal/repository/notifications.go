package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/olamidemziyad/marketplace-cmr/domain"
)

// CreateNotification persists the durable record an asynchronous send will
// later be driven from. The caller enqueues only the returned id.
func (r *Repository) CreateNotification(ctx context.Context, n *domain.Notification) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin notification tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	id, err := insertNotification(ctx, tx, n)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit notification tx: %w", err)
	}
	return id, nil
}

func insertNotification(ctx context.Context, tx *sql.Tx, n *domain.Notification) (string, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Channel == "" {
		n.Channel = domain.ChannelEmail
	}
	if n.EmailStatus == "" {
		n.EmailStatus = domain.EmailStatusPending
	}
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return "", fmt.Errorf("marshal notification payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, channel, payload, email_status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW())`,
		n.ID, n.UserID, n.Type, n.Channel, payload, n.EmailStatus)
	if err != nil {
		return "", fmt.Errorf("insert notification: %w", err)
	}
	return n.ID, nil
}

// GetNotification loads a notification row by id.
func (r *Repository) GetNotification(ctx context.Context, id string) (*domain.Notification, error) {
	var n domain.Notification
	var payload []byte
	var readAt, sentAt sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, type, channel, payload, email_status, read_at, sent_at, created_at, updated_at
		FROM notifications WHERE id = $1`, id).
		Scan(&n.ID, &n.UserID, &n.Type, &n.Channel, &payload, &n.EmailStatus,
			&readAt, &sentAt, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query notification: %w", err)
	}

	if readAt.Valid {
		n.ReadAt = &readAt.Time
	}
	if sentAt.Valid {
		n.SentAt = &sentAt.Time
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &n.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal notification payload: %w", err)
		}
	}
	return &n, nil
}

// MarkEmailSent flips the durable record to sent. The worker checks the
// status before sending, so a replayed job becomes a no-op after this.
func (r *Repository) MarkEmailSent(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET email_status = 'sent', sent_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return requireRow(res, domain.ErrNotificationNotFound)
}

// MarkEmailFailed records delivery exhaustion; the job itself is parked by
// the queue for manual inspection.
func (r *Repository) MarkEmailFailed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET email_status = 'failed', updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return requireRow(res, domain.ErrNotificationNotFound)
}

// GetUser resolves a notification recipient.
func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}
