package httpapi

import (
	"errors"
	"strconv"
	"time"

	"boomcard/internal/rbac"
	"boomcard/internal/reporting"

	"github.com/gin-gonic/gin"
)

func isReviewerRole(role string) bool {
	return rbac.IsReviewer(role)
}

func intQuery(c *gin.Context, key string) int {
	v := c.Query(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// parseRange reads from/to query params as RFC 3339 timestamps.
// Missing values default to the last 30 days.
func parseRange(c *gin.Context) (reporting.TimeRange, error) {
	now := time.Now().UTC()
	rng := reporting.TimeRange{From: now.AddDate(0, 0, -30), To: now}

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return reporting.TimeRange{}, errors.New("from must be RFC 3339")
		}
		rng.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return reporting.TimeRange{}, errors.New("to must be RFC 3339")
		}
		rng.To = t
	}
	return rng, nil
}
