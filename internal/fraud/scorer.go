package fraud

import (
	"fmt"
	"time"

	"boomcard/internal/card"
	"boomcard/internal/venue"
)

// Scoring weights. Additive, independently triggered, clamped to [0,100].
const (
	pointsDuplicateImage         = 40
	pointsAmountMismatchSevere   = 30
	pointsAmountMismatchModerate = 15
	pointsLocationFar            = 25
	pointsLocationOutOfRange     = 15
	pointsLowOCRConfidence       = 20
	pointsModerateOCRConfidence  = 10
	pointsDailyLimitExceeded     = 30
	pointsMonthlyLimitExceeded   = 30
	pointsMerchantBlacklisted    = 50
	pointsRapidSubmissions       = 15
	pointsUnusualHour            = 10
	pointsAmountBelowMinimum     = 10

	discountMerchantWhitelisted = -10
	discountTierPlatinum        = -5
	discountTierPremium         = -3
)

const (
	// Geo bands, meters from the venue.
	gpsRecommendedRangeMeters = 200.0
	gpsFarMeters              = 500.0

	severeMismatchRatio   = 0.50
	moderateMismatchRatio = 0.20

	lowOCRConfidence      = 50
	moderateOCRConfidence = 70

	rapidSubmissionCount = 3
)

// Input carries every signal the scorer looks at. All contextual reads
// (guard counts, merchant status, venue config) happen before scoring so
// that Score stays a pure function.
//
// Missing data never adds points on its own: amount and GPS checks fire only
// when both sides of the comparison are present. The OCR-confidence signal
// is the single exception.
type Input struct {
	IsDuplicate bool

	SubmissionsToday     int
	SubmissionsThisMonth int
	// RecentSubmissions counts receipts by this user in the last 5 minutes,
	// including the one being scored.
	RecentSubmissions int

	// Amounts in minor units; 0 means unknown.
	OCRAmountMinor  int64
	UserAmountMinor int64

	// OCRConfidence in [0,100].
	OCRConfidence int

	Location      *venue.LatLon
	VenueLocation *venue.LatLon

	// MerchantStatus is empty when the merchant is not in the registry.
	MerchantStatus MerchantStatus

	CardTier card.Tier

	// SubmittedAt feeds the unusual-hour check; the hour is read in
	// whatever location the timestamp carries.
	SubmittedAt time.Time

	Config venue.FraudConfig
}

// Score computes the fraud result for one receipt submission.
// Pure function: no I/O, no hidden state. Signals are evaluated in a fixed
// order so persisted reason codes are deterministic.
func Score(in Input) Result {
	cfg := in.Config
	if cfg.AutoRejectThreshold <= 0 {
		cfg = venue.DefaultFraudConfig()
	}

	var flags []Flag
	add := func(code ReasonCode, points int, desc string) {
		flags = append(flags, Flag{Code: code, Description: desc, Points: points})
	}

	if in.IsDuplicate {
		add(ReasonDuplicateImage, pointsDuplicateImage, "receipt image was already submitted")
	}

	if in.OCRAmountMinor > 0 && in.UserAmountMinor > 0 {
		ratio := amountMismatchRatio(in.OCRAmountMinor, in.UserAmountMinor)
		switch {
		case ratio > severeMismatchRatio:
			add(ReasonAmountMismatchSevere, pointsAmountMismatchSevere, "claimed amount differs from OCR amount by more than 50%")
		case ratio > moderateMismatchRatio:
			add(ReasonAmountMismatchModerate, pointsAmountMismatchModerate, "claimed amount differs from OCR amount by more than 20%")
		}
	}

	if in.Location != nil && in.VenueLocation != nil {
		dist := HaversineMeters(*in.Location, *in.VenueLocation)
		switch {
		case dist > gpsFarMeters:
			add(ReasonLocationFar, pointsLocationFar, fmt.Sprintf("submitted %.0fm from the venue", dist))
		case dist > gpsRecommendedRangeMeters:
			add(ReasonLocationOutOfRange, pointsLocationOutOfRange, fmt.Sprintf("submitted %.0fm from the venue, outside the recommended range", dist))
		}
	}

	switch {
	case in.OCRConfidence < lowOCRConfidence:
		add(ReasonLowOCRConfidence, pointsLowOCRConfidence, "OCR confidence below 50")
	case in.OCRConfidence < moderateOCRConfidence:
		add(ReasonModerateOCRConfidence, pointsModerateOCRConfidence, "OCR confidence below 70")
	}

	if in.SubmissionsToday >= cfg.MaxSubmissionsPerDay {
		add(ReasonDailyLimitExceeded, pointsDailyLimitExceeded, fmt.Sprintf("daily submission cap of %d reached", cfg.MaxSubmissionsPerDay))
	}
	if in.SubmissionsThisMonth >= cfg.MaxSubmissionsPerMonth {
		add(ReasonMonthlyLimitExceeded, pointsMonthlyLimitExceeded, fmt.Sprintf("monthly submission cap of %d reached", cfg.MaxSubmissionsPerMonth))
	}

	switch in.MerchantStatus {
	case MerchantBlocked:
		add(ReasonMerchantBlacklisted, pointsMerchantBlacklisted, "merchant is blacklisted")
	case MerchantApproved:
		add(ReasonMerchantWhitelisted, discountMerchantWhitelisted, "merchant is whitelisted")
	}

	if in.RecentSubmissions >= rapidSubmissionCount {
		add(ReasonRapidSubmissions, pointsRapidSubmissions, "3 or more receipts submitted within 5 minutes")
	}

	if h := in.SubmittedAt.Hour(); !in.SubmittedAt.IsZero() && h >= 2 && h < 6 {
		add(ReasonUnusualHour, pointsUnusualHour, "submitted between 02:00 and 06:00 local time")
	}

	if cfg.MinBillAmountMinor > 0 && in.UserAmountMinor > 0 && in.UserAmountMinor < cfg.MinBillAmountMinor {
		add(ReasonAmountBelowMinimum, pointsAmountBelowMinimum, "bill amount below the venue minimum")
	}

	switch in.CardTier {
	case card.TierPlatinum:
		add(ReasonTierDiscount, discountTierPlatinum, "PLATINUM card tier discount")
	case card.TierPremium:
		add(ReasonTierDiscount, discountTierPremium, "PREMIUM card tier discount")
	}

	score := 0
	for _, f := range flags {
		score += f.Points
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return Result{
		Score:    score,
		Decision: decide(score, cfg.AutoApproveThreshold, cfg.AutoRejectThreshold),
		Flags:    flags,
	}
}

// FallbackResult is returned when signal gathering fails. The submission must
// never be lost or silently approved: degrade to manual review.
func FallbackResult() Result {
	return Result{
		Score:    50,
		Decision: DecisionManualReview,
		Flags: []Flag{{
			Code:        ReasonFraudCheckError,
			Description: "fraud check failed, parked for manual review",
			Points:      50,
		}},
	}
}

func decide(score, autoApprove, autoReject int) Decision {
	switch {
	case score <= autoApprove:
		return DecisionAutoApprove
	case score <= autoReject:
		return DecisionManualReview
	default:
		return DecisionAutoReject
	}
}

func amountMismatchRatio(a, b int64) float64 {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	max := a
	if b > max {
		max = b
	}
	if max == 0 {
		return 0
	}
	return float64(diff) / float64(max)
}
