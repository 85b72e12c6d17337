package card

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidArgument = errors.New("card: invalid argument")
	ErrConflict        = errors.New("card: user already has a card")
)

// Repository abstracts card persistence.
// Insert must fail with ErrConflict when the user already has an active card;
// a unique index on user_id is the authority, not application logic.
type Repository interface {
	FindByUser(ctx context.Context, userID string) (Card, bool, error)
	Insert(ctx context.Context, c Card) error
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// GetOrCreate returns the user's card, issuing one with defaultTier when none
// exists. Creation is idempotent per user: a concurrent create loses the
// insert race and returns the winner's row.
func (s *Service) GetOrCreate(ctx context.Context, userID string, defaultTier Tier) (Card, error) {
	if userID == "" {
		return Card{}, ErrInvalidArgument
	}
	if defaultTier == "" {
		defaultTier = TierStandard
	}
	if !ValidTier(defaultTier) {
		return Card{}, ErrInvalidArgument
	}

	existing, ok, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return Card{}, err
	}
	if ok {
		return existing, nil
	}

	now := s.clock().UTC()
	c := Card{
		ID:        uuid.NewString(),
		UserID:    userID,
		Tier:      defaultTier,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, c); err != nil {
		if errors.Is(err, ErrConflict) {
			// Lost the race; the existing card wins.
			winner, ok, ferr := s.repo.FindByUser(ctx, userID)
			if ferr != nil {
				return Card{}, ferr
			}
			if ok {
				return winner, nil
			}
		}
		return Card{}, err
	}
	return c, nil
}
