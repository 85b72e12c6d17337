package fraud

import (
	"testing"
	"time"

	"boomcard/internal/card"
	"boomcard/internal/venue"
)

func cleanInput() Input {
	return Input{
		OCRAmountMinor:  10000,
		UserAmountMinor: 10000,
		OCRConfidence:   95,
		CardTier:        card.TierStandard,
		SubmittedAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Config:          venue.DefaultFraudConfig(),
	}
}

func hasFlag(r Result, code ReasonCode) bool {
	for _, f := range r.Flags {
		if f.Code == code {
			return true
		}
	}
	return false
}

func TestScore_CleanSubmissionIsZero(t *testing.T) {
	r := Score(cleanInput())
	if r.Score != 0 {
		t.Fatalf("expected score 0, got %d (flags %+v)", r.Score, r.Flags)
	}
	if r.Decision != DecisionAutoApprove {
		t.Fatalf("expected AUTO_APPROVE, got %q", r.Decision)
	}
}

func TestScore_DuplicateImageAdds40(t *testing.T) {
	in := cleanInput()
	in.IsDuplicate = true
	r := Score(in)
	if r.Score != 40 {
		t.Fatalf("expected 40, got %d", r.Score)
	}
	if r.Decision != DecisionManualReview {
		t.Fatalf("expected MANUAL_REVIEW with default thresholds, got %q", r.Decision)
	}
	if !hasFlag(r, ReasonDuplicateImage) {
		t.Fatalf("expected DUPLICATE_IMAGE flag")
	}
}

func TestScore_AmountMismatchBands(t *testing.T) {
	in := cleanInput()
	in.OCRAmountMinor = 10000
	in.UserAmountMinor = 4000 // ratio 0.6
	if r := Score(in); !hasFlag(r, ReasonAmountMismatchSevere) || r.Score != 30 {
		t.Fatalf("expected severe mismatch +30, got %d %+v", r.Score, r.Flags)
	}

	in.UserAmountMinor = 7500 // ratio 0.25
	if r := Score(in); !hasFlag(r, ReasonAmountMismatchModerate) || r.Score != 15 {
		t.Fatalf("expected moderate mismatch +15, got %d %+v", r.Score, r.Flags)
	}

	// Missing user amount never adds points on its own.
	in.UserAmountMinor = 0
	if r := Score(in); r.Score != 0 {
		t.Fatalf("expected 0 when one side is missing, got %d", r.Score)
	}
}

func TestScore_GPSBands(t *testing.T) {
	venueLoc := venue.LatLon{Lat: 42.6977, Lon: 23.3219}
	degPerMeter := 1.0 / 111194.9

	in := cleanInput()
	in.VenueLocation = &venueLoc

	near := venue.LatLon{Lat: venueLoc.Lat + 50*degPerMeter, Lon: venueLoc.Lon}
	in.Location = &near
	if r := Score(in); r.Score != 0 {
		t.Fatalf("50m should add nothing, got %d", r.Score)
	}

	mid := venue.LatLon{Lat: venueLoc.Lat + 300*degPerMeter, Lon: venueLoc.Lon}
	in.Location = &mid
	if r := Score(in); !hasFlag(r, ReasonLocationOutOfRange) || r.Score != 15 {
		t.Fatalf("300m should add +15, got %d %+v", r.Score, r.Flags)
	}

	far := venue.LatLon{Lat: venueLoc.Lat + 600*degPerMeter, Lon: venueLoc.Lon}
	in.Location = &far
	if r := Score(in); !hasFlag(r, ReasonLocationFar) || r.Score != 25 {
		t.Fatalf("600m should add +25, got %d %+v", r.Score, r.Flags)
	}

	// No venue location: GPS checks never fire.
	in.VenueLocation = nil
	if r := Score(in); r.Score != 0 {
		t.Fatalf("missing venue location should add nothing, got %d", r.Score)
	}
}

func TestScore_OCRConfidenceBands(t *testing.T) {
	in := cleanInput()
	in.OCRConfidence = 30
	if r := Score(in); !hasFlag(r, ReasonLowOCRConfidence) || r.Score != 20 {
		t.Fatalf("confidence 30 should add +20, got %d", r.Score)
	}
	in.OCRConfidence = 60
	if r := Score(in); !hasFlag(r, ReasonModerateOCRConfidence) || r.Score != 10 {
		t.Fatalf("confidence 60 should add +10, got %d", r.Score)
	}
	in.OCRConfidence = 70
	if r := Score(in); r.Score != 0 {
		t.Fatalf("confidence 70 should add nothing, got %d", r.Score)
	}
}

func TestScore_SubmissionCaps(t *testing.T) {
	in := cleanInput()
	in.SubmissionsToday = in.Config.MaxSubmissionsPerDay
	if r := Score(in); !hasFlag(r, ReasonDailyLimitExceeded) || r.Score != 30 {
		t.Fatalf("daily cap should add +30, got %d", r.Score)
	}

	in = cleanInput()
	in.SubmissionsThisMonth = in.Config.MaxSubmissionsPerMonth
	if r := Score(in); !hasFlag(r, ReasonMonthlyLimitExceeded) || r.Score != 30 {
		t.Fatalf("monthly cap should add +30, got %d", r.Score)
	}
}

func TestScore_MerchantStatus(t *testing.T) {
	in := cleanInput()
	in.MerchantStatus = MerchantBlocked
	if r := Score(in); !hasFlag(r, ReasonMerchantBlacklisted) || r.Score != 50 {
		t.Fatalf("blocked merchant should add +50, got %d", r.Score)
	}

	// Whitelist discount never pushes below zero.
	in.MerchantStatus = MerchantApproved
	if r := Score(in); r.Score != 0 || !hasFlag(r, ReasonMerchantWhitelisted) {
		t.Fatalf("whitelisted merchant should floor at 0, got %d", r.Score)
	}
}

func TestScore_RapidSubmissions(t *testing.T) {
	in := cleanInput()
	in.RecentSubmissions = 2
	if r := Score(in); r.Score != 0 {
		t.Fatalf("2 recent submissions should add nothing, got %d", r.Score)
	}
	in.RecentSubmissions = 3
	if r := Score(in); !hasFlag(r, ReasonRapidSubmissions) || r.Score != 15 {
		t.Fatalf("3rd submission within 5 minutes should add +15, got %d", r.Score)
	}
}

func TestScore_UnusualHour(t *testing.T) {
	in := cleanInput()
	in.SubmittedAt = time.Date(2025, 6, 1, 3, 15, 0, 0, time.UTC)
	if r := Score(in); !hasFlag(r, ReasonUnusualHour) || r.Score != 10 {
		t.Fatalf("03:15 should add +10, got %d", r.Score)
	}
	in.SubmittedAt = time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC)
	if r := Score(in); r.Score != 0 {
		t.Fatalf("06:00 should add nothing, got %d", r.Score)
	}
}

func TestScore_AmountBelowVenueMinimum(t *testing.T) {
	in := cleanInput()
	in.Config.MinBillAmountMinor = 2000
	in.UserAmountMinor = 1500
	in.OCRAmountMinor = 1500
	if r := Score(in); !hasFlag(r, ReasonAmountBelowMinimum) || r.Score != 10 {
		t.Fatalf("below-minimum amount should add +10, got %d", r.Score)
	}
}

func TestScore_TierDiscounts(t *testing.T) {
	in := cleanInput()
	in.IsDuplicate = true
	in.CardTier = card.TierPlatinum
	if r := Score(in); r.Score != 35 {
		t.Fatalf("expected 40-5=35 for platinum, got %d", r.Score)
	}
	in.CardTier = card.TierPremium
	if r := Score(in); r.Score != 37 {
		t.Fatalf("expected 40-3=37 for premium, got %d", r.Score)
	}
}

func TestScore_ClampsAt100(t *testing.T) {
	in := cleanInput()
	in.IsDuplicate = true
	in.MerchantStatus = MerchantBlocked
	in.OCRConfidence = 10
	in.SubmissionsToday = in.Config.MaxSubmissionsPerDay
	in.SubmissionsThisMonth = in.Config.MaxSubmissionsPerMonth
	r := Score(in)
	if r.Score != 100 {
		t.Fatalf("expected clamp at 100, got %d", r.Score)
	}
	if r.Decision != DecisionAutoReject {
		t.Fatalf("expected AUTO_REJECT, got %q", r.Decision)
	}
}

func TestScore_ThresholdBoundaries(t *testing.T) {
	// A single duplicate signal scores exactly 40; move the thresholds
	// around it to exercise every boundary.
	base := cleanInput()
	base.IsDuplicate = true

	cases := []struct {
		approve, reject int
		want            Decision
	}{
		{40, 80, DecisionAutoApprove},  // score == autoApproveThreshold
		{39, 80, DecisionManualReview}, // score == autoApproveThreshold + 1
		{10, 40, DecisionManualReview}, // score == autoRejectThreshold
		{10, 39, DecisionAutoReject},   // score == autoRejectThreshold + 1
	}
	for _, tc := range cases {
		in := base
		in.Config.AutoApproveThreshold = tc.approve
		in.Config.AutoRejectThreshold = tc.reject
		if r := Score(in); r.Decision != tc.want {
			t.Fatalf("thresholds %d/%d: expected %q, got %q (score %d)", tc.approve, tc.reject, tc.want, r.Decision, r.Score)
		}
	}
}

func TestFallbackResult(t *testing.T) {
	r := FallbackResult()
	if r.Score != 50 || r.Decision != DecisionManualReview {
		t.Fatalf("unexpected fallback: %+v", r)
	}
	if !hasFlag(r, ReasonFraudCheckError) {
		t.Fatalf("expected FRAUD_CHECK_ERROR flag")
	}
}
