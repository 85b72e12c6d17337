package venue

import "context"

// Provider resolves venue collaborator data for the receipt pipeline.
//
// Location returns nil (no error) when the venue has no known coordinates;
// the GPS fraud signals simply do not fire then.
//
// FraudConfigFor falls back to the global default row (empty venue id), then
// to DefaultFraudConfig(). It never returns a zero config.
type Provider interface {
	Location(ctx context.Context, venueID string) (*LatLon, error)
	FraudConfigFor(ctx context.Context, venueID string) (FraudConfig, error)
}
