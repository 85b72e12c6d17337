package venue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedProvider wraps a Provider with a redis JSON cache for fraud configs.
// Cache failures degrade to the inner provider; they are never surfaced.
// Locations are not cached (read once per submission, rarely hot).
type CachedProvider struct {
	inner Provider
	rdb   *redis.Client
	ttl   time.Duration
	log   *slog.Logger
}

func NewCachedProvider(inner Provider, rdb *redis.Client, ttl time.Duration, log *slog.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &CachedProvider{inner: inner, rdb: rdb, ttl: ttl, log: log}
}

func (p *CachedProvider) Location(ctx context.Context, venueID string) (*LatLon, error) {
	return p.inner.Location(ctx, venueID)
}

func (p *CachedProvider) FraudConfigFor(ctx context.Context, venueID string) (FraudConfig, error) {
	key := "venue:fraudcfg:" + venueID

	if p.rdb != nil {
		raw, err := p.rdb.Get(ctx, key).Result()
		if err == nil {
			var c FraudConfig
			if jerr := json.Unmarshal([]byte(raw), &c); jerr == nil {
				return c, nil
			}
		} else if err != redis.Nil {
			p.log.Warn("venue config cache read failed", "venue_id", venueID, "err", err)
		}
	}

	c, err := p.inner.FraudConfigFor(ctx, venueID)
	if err != nil {
		return FraudConfig{}, err
	}

	if p.rdb != nil {
		if raw, jerr := json.Marshal(c); jerr == nil {
			if serr := p.rdb.Set(ctx, key, raw, p.ttl).Err(); serr != nil {
				p.log.Warn("venue config cache write failed", "venue_id", venueID, "err", serr)
			}
		}
	}
	return c, nil
}
