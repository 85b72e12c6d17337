package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"boomcard/pkg/logger"
	"boomcard/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const rapidWindow = 5 * time.Minute

// Guard gathers the contextual fraud signals that need storage reads:
// global duplicate detection and the user's submission counts. It is
// read-only except for the rolling redis window counter.
type Guard struct {
	repo Repository
	rdb  *redis.Client
}

func NewGuard(repo Repository, rdb *redis.Client) *Guard {
	return &Guard{repo: repo, rdb: rdb}
}

// GuardReport carries the signals in scorer terms. RecentSubmissions
// includes the submission being checked.
type GuardReport struct {
	IsDuplicate          bool
	SubmissionsToday     int
	SubmissionsThisMonth int
	RecentSubmissions    int
}

// Check runs the storage-backed signal reads for one submission.
//
// A failure here means the score would be computed on missing data, so
// the caller is expected to fall back to manual review rather than guess.
// The rapid-submission counter is the exception: it is advisory, fails
// over from redis to the DB and finally to zero.
func (g *Guard) Check(ctx context.Context, userID, imageHash string, now time.Time) (GuardReport, error) {
	var rep GuardReport

	dup, err := g.repo.ExistsByImageHash(ctx, imageHash)
	if err != nil {
		return rep, fmt.Errorf("duplicate check: %w", err)
	}
	rep.IsDuplicate = dup

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	rep.SubmissionsToday, err = g.repo.CountByUserSince(ctx, userID, startOfDay)
	if err != nil {
		return rep, fmt.Errorf("daily count: %w", err)
	}

	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	rep.SubmissionsThisMonth, err = g.repo.CountByUserSince(ctx, userID, startOfMonth)
	if err != nil {
		return rep, fmt.Errorf("monthly count: %w", err)
	}

	rep.RecentSubmissions = g.recentSubmissions(ctx, userID, now)
	return rep, nil
}

func (g *Guard) recentSubmissions(ctx context.Context, userID string, now time.Time) int {
	if g.rdb != nil {
		key := "receipts:rapid:" + userID
		n, err := utils.CountSubmissionWindow(ctx, g.rdb, key, rapidWindow)
		if err == nil {
			return n
		}
		logger.From(ctx).Warn("rapid-submission counter unavailable, falling back to db",
			slog.String("error", err.Error()),
		)
	}

	n, err := g.repo.CountByUserSince(ctx, userID, now.Add(-rapidWindow))
	if err != nil {
		logger.From(ctx).Warn("rapid-submission db fallback failed",
			slog.String("error", err.Error()),
		)
		return 0
	}
	return n + 1
}
