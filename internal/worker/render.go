package worker

import (
	"fmt"

	"github.com/olamidemziyad/marketplace-cmr/domain"
)

var methodNames = map[string]string{
	"mtn":    "MTN Mobile Money",
	"orange": "Orange Money",
	"card":   "Bank card",
	"wallet": "Wallet",
}

// render produces the subject and HTML body for a notification type from its
// stored payload.
func render(n *domain.Notification, user *domain.User) (string, string) {
	name := user.Name
	if name == "" {
		name = "dear customer"
	}

	switch n.Type {
	case domain.NotificationPaymentSuccess:
		return "Payment confirmed",
			fmt.Sprintf("<p>Hello %s,</p><p>We received your payment of %s %s via %s. Your orders are now being prepared.</p>",
				name, field(n, "amount"), field(n, "currency"), methodName(field(n, "payment_method")))

	case domain.NotificationPaymentFailed:
		return "Payment failed",
			fmt.Sprintf("<p>Hello %s,</p><p>Your payment of %s %s could not be completed: %s. You can retry from your orders page.</p>",
				name, field(n, "amount"), field(n, "currency"), field(n, "failure_reason"))

	case domain.NotificationPaymentInitiated:
		return "Confirm your payment",
			fmt.Sprintf("<p>Hello %s,</p><p>A %s confirmation request for %s %s was sent to your phone. Enter your PIN to approve it.</p>",
				name, methodName(field(n, "payment_method")), field(n, "amount"), field(n, "currency"))

	case domain.NotificationNewOrderPaid:
		return fmt.Sprintf("New paid order %s", field(n, "order_number")),
			fmt.Sprintf("<p>Hello %s,</p><p>Order %s has been paid (%s %s). Please confirm and prepare the shipment.</p>",
				name, field(n, "order_number"), field(n, "amount"), field(n, "currency"))

	case domain.NotificationOrderCreated:
		return "Order received",
			fmt.Sprintf("<p>Hello %s,</p><p>Your order has been recorded. Total: %s %s.</p>",
				name, field(n, "amount"), field(n, "currency"))

	default:
		return "Notification",
			fmt.Sprintf("<p>Hello %s,</p><p>You have a new notification.</p>", name)
	}
}

func field(n *domain.Notification, key string) string {
	if n.Payload == nil {
		return ""
	}
	if v, ok := n.Payload[key]; ok {
		return fmt.Sprint(v)
	}
	return ""
}

func methodName(method string) string {
	if pretty, ok := methodNames[method]; ok {
		return pretty
	}
	return method
}
