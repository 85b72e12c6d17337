package card

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory card repository for tests and early development.
type MemoryRepo struct {
	mu    sync.Mutex
	cards map[string]Card // key: user_id
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{cards: map[string]Card{}} }

func (r *MemoryRepo) FindByUser(ctx context.Context, userID string) (Card, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cards[userID]
	return c, ok, nil
}

func (r *MemoryRepo) Insert(ctx context.Context, c Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cards[c.UserID]; ok {
		return ErrConflict
	}
	r.cards[c.UserID] = c
	return nil
}
