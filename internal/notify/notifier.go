package notify

import "context"

// Kind identifies a user-facing notification event.
type Kind string

const (
	KindReceiptApproved    Kind = "RECEIPT_APPROVED"
	KindReceiptRejected    Kind = "RECEIPT_REJECTED"
	KindReceiptUnderReview Kind = "RECEIPT_UNDER_REVIEW"
	KindFraudAlert         Kind = "FRAUD_ALERT"
	KindCashbackCredited   Kind = "CASHBACK_CREDITED"
)

// Notifier delivers events to users and back-office roles.
//
// Delivery is best-effort: callers must never fail a money or receipt
// operation because a notification could not be sent. Implementations
// log failures and return them only so callers can record the miss.
type Notifier interface {
	// Notify targets a single user.
	Notify(ctx context.Context, kind Kind, userID string, payload map[string]any) error
	// NotifyRole fans out to every user holding the role (e.g. admins on
	// a fraud alert).
	NotifyRole(ctx context.Context, role string, kind Kind, payload map[string]any) error
}
