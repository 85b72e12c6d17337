package venue

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory venue provider for tests and early development.
type MemoryRepo struct {
	mu        sync.Mutex
	Locations map[string]LatLon
	Configs   map[string]FraudConfig // key: venue_id; "" holds the global default
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{Locations: map[string]LatLon{}, Configs: map[string]FraudConfig{}}
}

func (r *MemoryRepo) Location(ctx context.Context, venueID string) (*LatLon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ll, ok := r.Locations[venueID]; ok {
		out := ll
		return &out, nil
	}
	return nil, nil
}

func (r *MemoryRepo) FraudConfigFor(ctx context.Context, venueID string) (FraudConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.Configs[venueID]; ok {
		return c, nil
	}
	if c, ok := r.Configs[""]; ok {
		return c, nil
	}
	return DefaultFraudConfig(), nil
}
