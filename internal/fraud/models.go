package fraud

// ReasonCode identifies one triggered fraud signal. Keep these stable; they
// are persisted on receipts and shown in partner tooling.
type ReasonCode string

const (
	ReasonDuplicateImage         ReasonCode = "DUPLICATE_IMAGE"
	ReasonAmountMismatchSevere   ReasonCode = "AMOUNT_MISMATCH_SEVERE"
	ReasonAmountMismatchModerate ReasonCode = "AMOUNT_MISMATCH_MODERATE"
	ReasonLocationFar            ReasonCode = "LOCATION_FAR"
	ReasonLocationOutOfRange     ReasonCode = "LOCATION_OUT_OF_RANGE"
	ReasonLowOCRConfidence       ReasonCode = "LOW_OCR_CONFIDENCE"
	ReasonModerateOCRConfidence  ReasonCode = "MODERATE_OCR_CONFIDENCE"
	ReasonDailyLimitExceeded     ReasonCode = "DAILY_LIMIT_EXCEEDED"
	ReasonMonthlyLimitExceeded   ReasonCode = "MONTHLY_LIMIT_EXCEEDED"
	ReasonMerchantBlacklisted    ReasonCode = "MERCHANT_BLACKLISTED"
	ReasonRapidSubmissions       ReasonCode = "RAPID_SUBMISSIONS"
	ReasonUnusualHour            ReasonCode = "UNUSUAL_HOUR"
	ReasonAmountBelowMinimum     ReasonCode = "AMOUNT_BELOW_MINIMUM"
	ReasonFraudCheckError        ReasonCode = "FRAUD_CHECK_ERROR"

	// Score discounts (negative points).
	ReasonMerchantWhitelisted ReasonCode = "MERCHANT_WHITELISTED"
	ReasonTierDiscount        ReasonCode = "TIER_DISCOUNT"
)

// Decision buckets derived from comparing score to the two thresholds.
type Decision string

const (
	DecisionAutoApprove  Decision = "AUTO_APPROVE"
	DecisionManualReview Decision = "MANUAL_REVIEW"
	DecisionAutoReject   Decision = "AUTO_REJECT"
)

// Flag is one triggered signal with its contribution to the score.
type Flag struct {
	Code        ReasonCode `json:"code"`
	Description string     `json:"description"`
	Points      int        `json:"points"`
}

// Result is the scorer output. Ephemeral: embedded into the receipt row,
// never persisted as its own entity.
type Result struct {
	Score    int      `json:"score"`
	Decision Decision `json:"decision"`
	Flags    []Flag   `json:"flags"`
}

// ReasonCodes returns the ordered codes of all triggered flags.
func (r Result) ReasonCodes() []ReasonCode {
	out := make([]ReasonCode, 0, len(r.Flags))
	for _, f := range r.Flags {
		out = append(out, f.Code)
	}
	return out
}
