package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CashbackSummaryRequest requests aggregated receipt-pipeline metrics,
// optionally narrowed to one venue.

type CashbackSummaryRequest struct {
	Range   TimeRange `json:"range"`
	VenueID string    `json:"venue_id,omitempty"`
}

type CashbackSummary struct {
	VenueID string `json:"venue_id,omitempty"`

	TotalReceipts    int `json:"total_receipts"`
	ApprovedReceipts int `json:"approved_receipts"`
	RejectedReceipts int `json:"rejected_receipts"`
	InReviewReceipts int `json:"in_review_receipts"`

	// Settled payouts only; pending cashback is not money yet.
	SettledCashbackMinor int64 `json:"settled_cashback_minor"`
	PendingCashbackMinor int64 `json:"pending_cashback_minor"`

	AverageFraudScore float64 `json:"average_fraud_score"`
}

// WalletSummaryRequest requests aggregated ledger metrics, optionally
// narrowed to one user's wallet. Derived from immutable completed
// transactions only.

type WalletSummaryRequest struct {
	Range  TimeRange `json:"range"`
	UserID string    `json:"user_id,omitempty"`
}

type WalletSummary struct {
	UserID   string `json:"user_id,omitempty"`
	Currency string `json:"currency"`

	TotalCreditMinor int64 `json:"total_credit_minor"`
	TotalDebitMinor  int64 `json:"total_debit_minor"`
	NetDeltaMinor    int64 `json:"net_delta_minor"`

	// CashbackCreditMinor is the slice of credits that came from receipts.
	CashbackCreditMinor int64 `json:"cashback_credit_minor"`
}
