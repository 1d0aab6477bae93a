package domain

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSuccess    PaymentStatus = "success"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// IsTerminal reports whether no further provider-driven transitions apply.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed ||
		s == PaymentStatusCancelled || s == PaymentStatusRefunded
}

// Cancellable reports whether a buyer may still abandon the payment.
func (s PaymentStatus) Cancellable() bool {
	return s == PaymentStatusPending || s == PaymentStatusProcessing
}

func (s PaymentStatus) String() string {
	return string(s)
}
