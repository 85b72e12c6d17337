package venue

// LatLon is a WGS-84 coordinate pair.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// FraudConfig holds the per-venue tunables for receipt decisioning.
// A global default row (empty VenueID) applies when a venue has no row.
//
// The same snapshot must feed both the scorer and the cashback calculator
// for one submission, so thresholds and payout can never disagree.
type FraudConfig struct {
	VenueID string `json:"venue_id,omitempty" db:"venue_id"`

	MaxSubmissionsPerDay   int `json:"max_submissions_per_day" db:"max_submissions_per_day"`
	MaxSubmissionsPerMonth int `json:"max_submissions_per_month" db:"max_submissions_per_month"`

	AutoApproveThreshold int `json:"auto_approve_threshold" db:"auto_approve_threshold"`
	AutoRejectThreshold  int `json:"auto_reject_threshold" db:"auto_reject_threshold"`

	CashbackBasePercent  float64 `json:"cashback_base_percent" db:"cashback_base_percent"`
	PremiumBonusPercent  float64 `json:"premium_bonus_percent" db:"premium_bonus_percent"`
	PlatinumBonusPercent float64 `json:"platinum_bonus_percent" db:"platinum_bonus_percent"`

	// MaxCashbackPerScanMinor caps a single receipt's payout, in minor units.
	MaxCashbackPerScanMinor int64 `json:"max_cashback_per_scan_minor" db:"max_cashback_per_scan_minor"`
	// MinBillAmountMinor below which the amount-below-minimum signal fires.
	MinBillAmountMinor int64 `json:"min_bill_amount_minor" db:"min_bill_amount_minor"`
}

// DefaultFraudConfig is the compiled-in fallback used when even the global
// default row is missing. Values mirror the seeded global row.
func DefaultFraudConfig() FraudConfig {
	return FraudConfig{
		MaxSubmissionsPerDay:    10,
		MaxSubmissionsPerMonth:  100,
		AutoApproveThreshold:    30,
		AutoRejectThreshold:     60,
		CashbackBasePercent:     5.0,
		PremiumBonusPercent:     2.0,
		PlatinumBonusPercent:    5.0,
		MaxCashbackPerScanMinor: 5000,
		MinBillAmountMinor:      0,
	}
}
