package wallet

import "time"

// DefaultCurrency is applied when a wallet is lazily created.
const DefaultCurrency = "BGN"

// Wallet is the per-user balance record.
//
// Money invariants:
// - balance == sum of completed transaction amounts, at all times
// - availableBalance <= balance; pendingBalance >= 0
// - No balance updates without a transaction row
// - All money operations must be executed in a DB transaction
//
// Balances are mutated only through Service credit/debit/pending operations,
// never directly.
type Wallet struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	Currency string `json:"currency" db:"currency"`

	// Amounts in minor units (e.g. stotinki).
	BalanceMinor   int64 `json:"balance_minor" db:"balance_minor"`
	AvailableMinor int64 `json:"available_minor" db:"available_minor"`
	PendingMinor   int64 `json:"pending_minor" db:"pending_minor"`

	// Locked wallets reject every mutation with a descriptive error.
	Locked     bool   `json:"locked" db:"locked"`
	LockReason string `json:"lock_reason,omitempty" db:"lock_reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type TransactionType string

const (
	TypeTopUp          TransactionType = "TOP_UP"
	TypeCashbackCredit TransactionType = "CASHBACK_CREDIT"
	TypePurchase       TransactionType = "PURCHASE"
	TypeRefund         TransactionType = "REFUND"
	TypeAdjustment     TransactionType = "ADJUSTMENT"
)

func ValidType(t TransactionType) bool {
	switch t {
	case TypeTopUp, TypeCashbackCredit, TypePurchase, TypeRefund, TypeAdjustment:
		return true
	default:
		return false
	}
}

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
)

// Transaction is an append-only ledger row.
//
// Invariants:
// - balance_after == balance_before + amount for every row
// - consecutive completed rows for one wallet chain (next.before == prev.after)
// - never updated except the PENDING -> COMPLETED/FAILED status transition,
//   which recomputes before/after at completion time so the chain stays exact
//
// IDs are ULIDs: lexicographic order matches creation order, which keeps
// the ledger naturally sortable.
type Transaction struct {
	ID       string `json:"id" db:"id"`
	WalletID string `json:"wallet_id" db:"wallet_id"`

	Type   TransactionType   `json:"type" db:"type"`
	Status TransactionStatus `json:"status" db:"status"`

	// AmountMinor is signed: credits positive, debits negative.
	AmountMinor        int64 `json:"amount_minor" db:"amount_minor"`
	BalanceBeforeMinor int64 `json:"balance_before_minor" db:"balance_before_minor"`
	BalanceAfterMinor  int64 `json:"balance_after_minor" db:"balance_after_minor"`

	Description string `json:"description,omitempty" db:"description"`

	// Weak back-references; a receipt with a linked completed transaction
	// can never be deleted.
	ReceiptID         string `json:"receipt_id,omitempty" db:"receipt_id"`
	StickerScanID     string `json:"sticker_scan_id,omitempty" db:"sticker_scan_id"`
	ExternalPaymentID string `json:"external_payment_id,omitempty" db:"external_payment_id"`

	// IdempotencyKey is required for safe retries of money-posting operations.
	IdempotencyKey string `json:"idempotency_key" db:"idempotency_key"`

	// Metadata is optional JSON for audit/debug (store as JSONB in Postgres).
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}
