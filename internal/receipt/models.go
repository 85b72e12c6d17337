package receipt

import (
	"time"

	"boomcard/internal/fraud"
)

type Status string

const (
	// StatusPending exists only transiently: a submission leaves Submit in a
	// terminal or review state, but crash recovery may observe it.
	StatusPending      Status = "PENDING"
	StatusApproved     Status = "APPROVED"
	StatusManualReview Status = "MANUAL_REVIEW"
	StatusRejected     Status = "REJECTED"
)

// IsTerminal reports whether no further review decision is possible.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type CashbackStatus string

const (
	CashbackNone    CashbackStatus = "NONE"
	CashbackPending CashbackStatus = "PENDING"
	CashbackSettled CashbackStatus = "SETTLED"
)

// Receipt is one scanned bill submission and everything decided about it.
//
// Rejected and duplicate receipts are persisted too: reviewers need the
// full history, and the duplicate check depends on it.
type Receipt struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`
	CardID string `json:"card_id" db:"card_id"`

	VenueID string `json:"venue_id" db:"venue_id"`

	ImageURL  string `json:"image_url" db:"image_url"`
	ImageHash string `json:"image_hash" db:"image_hash"`

	// OCR extraction output. Zero amount means the field was not read.
	OCRAmountMinor  int64      `json:"ocr_amount_minor" db:"ocr_amount_minor"`
	OCRMerchantName string     `json:"ocr_merchant_name,omitempty" db:"ocr_merchant_name"`
	OCRDate         *time.Time `json:"ocr_date,omitempty" db:"ocr_date"`
	OCRConfidence   int        `json:"ocr_confidence" db:"ocr_confidence"`

	// ClaimedAmountMinor is what the user typed in.
	ClaimedAmountMinor int64 `json:"claimed_amount_minor" db:"claimed_amount_minor"`
	// VerifiedAmountMinor is set by a reviewer on approval.
	VerifiedAmountMinor int64 `json:"verified_amount_minor,omitempty" db:"verified_amount_minor"`

	// GPS position at submission time, when the client shared it.
	Lat *float64 `json:"lat,omitempty" db:"lat"`
	Lon *float64 `json:"lon,omitempty" db:"lon"`

	Status Status `json:"status" db:"status"`

	FraudScore int          `json:"fraud_score" db:"fraud_score"`
	FraudFlags []fraud.Flag `json:"fraud_flags,omitempty" db:"fraud_flags"`

	CashbackAmountMinor   int64          `json:"cashback_amount_minor" db:"cashback_amount_minor"`
	CashbackPercent       float64        `json:"cashback_percent" db:"cashback_percent"`
	CashbackStatus        CashbackStatus `json:"cashback_status" db:"cashback_status"`
	CashbackTransactionID string         `json:"cashback_transaction_id,omitempty" db:"cashback_transaction_id"`

	RejectionReason string     `json:"rejection_reason,omitempty" db:"rejection_reason"`
	ReviewedBy      string     `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewNotes     string     `json:"review_notes,omitempty" db:"review_notes"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`

	SubmittedAt time.Time `json:"submitted_at" db:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
