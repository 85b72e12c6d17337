package card

import "time"

// Tier affects cashback bonus percent and the fraud-score discount.
type Tier string

const (
	TierStandard Tier = "STANDARD"
	TierPremium  Tier = "PREMIUM"
	TierPlatinum Tier = "PLATINUM"
)

func ValidTier(t Tier) bool {
	switch t {
	case TierStandard, TierPremium, TierPlatinum:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusActive  Status = "active"
	StatusBlocked Status = "blocked"
)

// Card is the discount card issued to a user.
// Invariant: exactly one active card per user (unique index on user_id).
type Card struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`
	Tier   Tier   `json:"tier" db:"tier"`
	Status Status `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
