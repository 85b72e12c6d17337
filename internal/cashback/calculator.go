package cashback

import (
	"errors"
	"math"

	"boomcard/internal/card"
	"boomcard/internal/venue"
)

// Calculator computes cashback payouts.
//
// Contract:
// - Venue-config driven percent resolution with card-tier bonus.
// - Pure calculation, no repository lookups and no side effects.
// - Must be fed the same venue config snapshot used for fraud decisioning.
//
// Defaults when no venue config exists: base 5.0%, PREMIUM +2.0,
// PLATINUM +5.0, cap 50.00 per scan.
const (
	defaultBasePercent     = 5.0
	defaultPremiumBonus    = 2.0
	defaultPlatinumBonus   = 5.0
	defaultMaxPerScanMinor = 5000
)

type Result struct {
	// AmountMinor is the payout in minor units, rounded half away from zero
	// and clamped to the per-scan cap.
	AmountMinor int64   `json:"amount_minor"`
	Percent     float64 `json:"percent"`
}

var ErrInvalidAmount = errors.New("cashback: amount must be positive")

// Calculate returns the cashback for a settled bill amount.
// cfg may be nil when the venue has no configuration at all.
func Calculate(cfg *venue.FraudConfig, amountMinor int64, tier card.Tier) (Result, error) {
	if amountMinor <= 0 {
		return Result{}, ErrInvalidAmount
	}

	base := defaultBasePercent
	premiumBonus := defaultPremiumBonus
	platinumBonus := defaultPlatinumBonus
	var capMinor int64 = defaultMaxPerScanMinor

	if cfg != nil {
		if cfg.CashbackBasePercent > 0 {
			base = cfg.CashbackBasePercent
		}
		if cfg.PremiumBonusPercent > 0 {
			premiumBonus = cfg.PremiumBonusPercent
		}
		if cfg.PlatinumBonusPercent > 0 {
			platinumBonus = cfg.PlatinumBonusPercent
		}
		if cfg.MaxCashbackPerScanMinor > 0 {
			capMinor = cfg.MaxCashbackPerScanMinor
		}
	}

	percent := base
	switch tier {
	case card.TierPremium:
		percent += premiumBonus
	case card.TierPlatinum:
		percent += platinumBonus
	}

	amount := int64(math.Round(float64(amountMinor) * percent / 100))
	if amount > capMinor {
		amount = capMinor
	}

	return Result{AmountMinor: amount, Percent: percent}, nil
}
