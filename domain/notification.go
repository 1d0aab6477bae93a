package domain

import "time"

type NotificationType string

const (
	NotificationOrderCreated     NotificationType = "order_created"
	NotificationPaymentInitiated NotificationType = "payment_initiated"
	NotificationPaymentSuccess   NotificationType = "payment_success"
	NotificationPaymentFailed    NotificationType = "payment_failed"
	NotificationNewOrderPaid     NotificationType = "new_order_paid"
)

type NotificationChannel string

const (
	ChannelInApp NotificationChannel = "in_app"
	ChannelEmail NotificationChannel = "email"
	ChannelBoth  NotificationChannel = "both"
)

type EmailStatus string

const (
	EmailStatusPending EmailStatus = "pending"
	EmailStatusSent    EmailStatus = "sent"
	EmailStatusFailed  EmailStatus = "failed"
)

// Notification is the durable record behind every asynchronous message. The
// queued job carries only the notification id; this row is the unit of truth
// and of idempotency for delivery.
type Notification struct {
	ID          string
	UserID      string
	Type        NotificationType
	Channel     NotificationChannel
	Payload     map[string]any
	EmailStatus EmailStatus
	ReadAt      *time.Time
	SentAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// User is the slim read model the core needs for recipient resolution.
type User struct {
	ID    string
	Name  string
	Email string
}

// Address is consumed read-only; ownership is checked at checkout.
type Address struct {
	ID     string
	UserID string
	Line1  string
	City   string
	Phone  string
}
