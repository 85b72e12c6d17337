package card

import (
	"context"
	"database/sql"
	"errors"

	"boomcard/pkg/utils"
)

// NOTE: This repository assumes a cards table with:
// UNIQUE INDEX cards_one_active_per_user ON cards (user_id) WHERE status = 'active'

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) FindByUser(ctx context.Context, userID string) (Card, bool, error) {
	const q = `
SELECT id, user_id, tier, status, created_at, updated_at
FROM cards
WHERE user_id = $1 AND status = 'active'
LIMIT 1
`
	var c Card
	err := r.db.QueryRowContext(ctx, q, userID).Scan(
		&c.ID,
		&c.UserID,
		&c.Tier,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Card{}, false, nil
		}
		return Card{}, false, err
	}
	return c, true, nil
}

func (r *PostgresRepo) Insert(ctx context.Context, c Card) error {
	const q = `
INSERT INTO cards (id, user_id, tier, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
`
	_, err := r.db.ExecContext(ctx, q, c.ID, c.UserID, c.Tier, c.Status, c.CreatedAt, c.UpdatedAt)
	if err != nil && utils.IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}
