package reporting

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"boomcard/internal/receipt"
	"boomcard/internal/wallet"
)

// PostgresRepo reads reporting rows straight from the pipeline tables.
// Aggregation happens in the service so memory and Postgres behave the
// same; volumes are small enough that this beats duplicating the math
// in SQL.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (p *PostgresRepo) ListReceipts(ctx context.Context, from, to time.Time, venueID string) ([]receipt.Receipt, error) {
	const q = `
SELECT id, venue_id, status, fraud_score, fraud_flags, cashback_amount_minor, cashback_status, submitted_at
FROM receipts
WHERE submitted_at >= $1 AND submitted_at < $2
  AND ($3 = '' OR venue_id = $3)
`
	rows, err := p.db.QueryContext(ctx, q, from, to, venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []receipt.Receipt
	for rows.Next() {
		var r receipt.Receipt
		var flags []byte
		if err := rows.Scan(&r.ID, &r.VenueID, &r.Status, &r.FraudScore, &flags, &r.CashbackAmountMinor, &r.CashbackStatus, &r.SubmittedAt); err != nil {
			return nil, err
		}
		if len(flags) > 0 {
			if err := json.Unmarshal(flags, &r.FraudFlags); err != nil {
				return nil, err
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresRepo) ListTransactions(ctx context.Context, from, to time.Time, userID string) ([]wallet.Transaction, error) {
	const q = `
SELECT t.id, t.wallet_id, t.type, t.status, t.amount_minor, t.created_at
FROM wallet_transactions t
JOIN wallets w ON w.id = t.wallet_id
WHERE t.created_at >= $1 AND t.created_at < $2
  AND ($3 = '' OR w.user_id = $3)
`
	rows, err := p.db.QueryContext(ctx, q, from, to, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []wallet.Transaction
	for rows.Next() {
		var t wallet.Transaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Type, &t.Status, &t.AmountMinor, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
