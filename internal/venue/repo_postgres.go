package venue

import (
	"context"
	"database/sql"
	"errors"
)

// NOTE: This repository assumes the following tables exist:
// - venues (id, name, lat, lon, ...)
// - venue_fraud_configs (venue_id nullable; one row with NULL venue_id is the
//   global default; UNIQUE (venue_id))

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Location(ctx context.Context, venueID string) (*LatLon, error) {
	if venueID == "" {
		return nil, nil
	}
	const q = `
SELECT lat, lon
FROM venues
WHERE id = $1 AND lat IS NOT NULL AND lon IS NOT NULL
`
	var ll LatLon
	err := r.db.QueryRowContext(ctx, q, venueID).Scan(&ll.Lat, &ll.Lon)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ll, nil
}

func (r *PostgresRepo) FraudConfigFor(ctx context.Context, venueID string) (FraudConfig, error) {
	// Venue row first, then the global default row (NULL venue_id).
	const q = `
SELECT COALESCE(venue_id, ''), max_submissions_per_day, max_submissions_per_month,
       auto_approve_threshold, auto_reject_threshold,
       cashback_base_percent, premium_bonus_percent, platinum_bonus_percent,
       max_cashback_per_scan_minor, min_bill_amount_minor
FROM venue_fraud_configs
WHERE venue_id = $1 OR venue_id IS NULL
ORDER BY venue_id NULLS LAST
LIMIT 1
`
	var c FraudConfig
	err := r.db.QueryRowContext(ctx, q, nullIfEmpty(venueID)).Scan(
		&c.VenueID,
		&c.MaxSubmissionsPerDay,
		&c.MaxSubmissionsPerMonth,
		&c.AutoApproveThreshold,
		&c.AutoRejectThreshold,
		&c.CashbackBasePercent,
		&c.PremiumBonusPercent,
		&c.PlatinumBonusPercent,
		&c.MaxCashbackPerScanMinor,
		&c.MinBillAmountMinor,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DefaultFraudConfig(), nil
		}
		return FraudConfig{}, err
	}
	return c, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
