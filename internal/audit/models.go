package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - Actor and ip capture are best-effort; do not block critical flows on
//   audit failures.
//
// Storage recommendation (Postgres):
// - Table audit_events with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.

type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user causing the event (if applicable).
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// IPAddress should capture the original client IP when available.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Target identifiers (optional, depending on the event type).
	ReceiptID     string `json:"receipt_id,omitempty" db:"receipt_id"`
	WalletID      string `json:"wallet_id,omitempty" db:"wallet_id"`
	TransactionID string `json:"transaction_id,omitempty" db:"transaction_id"`
	TargetUserID  string `json:"target_user_id,omitempty" db:"target_user_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeReviewDecision EventType = "review_decision"
	EventTypeWalletLock     EventType = "wallet_lock"
	EventTypeWalletUnlock   EventType = "wallet_unlock"
	EventTypeManualCredit   EventType = "manual_credit"
)
