package receipt

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"boomcard/pkg/utils"
)

var (
	ErrNotFound        = errors.New("receipt: not found")
	ErrInvalidArgument = errors.New("receipt: invalid argument")
	ErrConflict        = errors.New("receipt: conflict")

	// ErrDuplicateApproved is the insert/update failure raised when another
	// receipt with the same image hash is already APPROVED. It comes from a
	// partial unique index, so racing submissions of the same image cannot
	// both win.
	ErrDuplicateApproved = errors.New("receipt: image already approved")
)

// Repository abstracts receipt persistence.
//
// Insert and Update must fail with ErrDuplicateApproved when they would
// make a second APPROVED receipt share an image hash with an existing one.
type Repository interface {
	Insert(ctx context.Context, r Receipt) error
	Update(ctx context.Context, r Receipt) error
	FindByID(ctx context.Context, id string) (Receipt, error)

	// ExistsByImageHash reports whether any receipt, in any status and from
	// any user, already carries this image hash.
	ExistsByImageHash(ctx context.Context, hash string) (bool, error)

	// CountByUserSince counts this user's submissions at or after since.
	CountByUserSince(ctx context.Context, userID string, since time.Time) (int, error)

	ListByUser(ctx context.Context, userID string, limit int) ([]Receipt, error)
	ListByStatus(ctx context.Context, status Status, limit int) ([]Receipt, error)
}

// NOTE: PostgresRepo assumes a receipts table with fraud_flags JSONB and
//
//	CREATE UNIQUE INDEX one_approved_receipt_per_image
//	    ON receipts (image_hash)
//	    WHERE status = 'APPROVED';

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const receiptColumns = `id, user_id, card_id, venue_id, image_url, image_hash,
ocr_amount_minor, ocr_merchant_name, ocr_date, ocr_confidence,
claimed_amount_minor, verified_amount_minor, lat, lon, status,
fraud_score, fraud_flags, cashback_amount_minor, cashback_percent,
cashback_status, cashback_transaction_id, rejection_reason, reviewed_by,
review_notes, reviewed_at, submitted_at, updated_at`

func (p *PostgresRepo) Insert(ctx context.Context, r Receipt) error {
	flags, err := json.Marshal(r.FraudFlags)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO receipts (` + receiptColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)
`
	_, err = p.db.ExecContext(ctx, q,
		r.ID, r.UserID, r.CardID, r.VenueID, r.ImageURL, r.ImageHash,
		r.OCRAmountMinor, r.OCRMerchantName, r.OCRDate, r.OCRConfidence,
		r.ClaimedAmountMinor, r.VerifiedAmountMinor, r.Lat, r.Lon, r.Status,
		r.FraudScore, flags, r.CashbackAmountMinor, r.CashbackPercent,
		r.CashbackStatus, r.CashbackTransactionID, r.RejectionReason, r.ReviewedBy,
		r.ReviewNotes, r.ReviewedAt, r.SubmittedAt, r.UpdatedAt,
	)
	if utils.IsUniqueViolation(err) {
		return ErrDuplicateApproved
	}
	return err
}

func (p *PostgresRepo) Update(ctx context.Context, r Receipt) error {
	flags, err := json.Marshal(r.FraudFlags)
	if err != nil {
		return err
	}
	const q = `
UPDATE receipts SET
  status = $2, verified_amount_minor = $3, fraud_score = $4, fraud_flags = $5,
  cashback_amount_minor = $6, cashback_percent = $7, cashback_status = $8,
  cashback_transaction_id = $9, rejection_reason = $10, reviewed_by = $11,
  review_notes = $12, reviewed_at = $13, updated_at = $14
WHERE id = $1
`
	res, err := p.db.ExecContext(ctx, q,
		r.ID, r.Status, r.VerifiedAmountMinor, r.FraudScore, flags,
		r.CashbackAmountMinor, r.CashbackPercent, r.CashbackStatus,
		r.CashbackTransactionID, r.RejectionReason, r.ReviewedBy,
		r.ReviewNotes, r.ReviewedAt, r.UpdatedAt,
	)
	if utils.IsUniqueViolation(err) {
		return ErrDuplicateApproved
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

func (p *PostgresRepo) FindByID(ctx context.Context, id string) (Receipt, error) {
	const q = `SELECT ` + receiptColumns + ` FROM receipts WHERE id = $1`
	return scanReceipt(p.db.QueryRowContext(ctx, q, id))
}

func (p *PostgresRepo) ExistsByImageHash(ctx context.Context, hash string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM receipts WHERE image_hash = $1)`
	var exists bool
	err := p.db.QueryRowContext(ctx, q, hash).Scan(&exists)
	return exists, err
}

func (p *PostgresRepo) CountByUserSince(ctx context.Context, userID string, since time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM receipts WHERE user_id = $1 AND submitted_at >= $2`
	var n int
	err := p.db.QueryRowContext(ctx, q, userID, since).Scan(&n)
	return n, err
}

func (p *PostgresRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Receipt, error) {
	const q = `
SELECT ` + receiptColumns + `
FROM receipts
WHERE user_id = $1
ORDER BY submitted_at DESC
LIMIT $2
`
	rows, err := p.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	return collectReceipts(rows)
}

func (p *PostgresRepo) ListByStatus(ctx context.Context, status Status, limit int) ([]Receipt, error) {
	const q = `
SELECT ` + receiptColumns + `
FROM receipts
WHERE status = $1
ORDER BY submitted_at ASC
LIMIT $2
`
	rows, err := p.db.QueryContext(ctx, q, status, limit)
	if err != nil {
		return nil, err
	}
	return collectReceipts(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceiptRow(row rowScanner) (Receipt, error) {
	var r Receipt
	var flags []byte
	err := row.Scan(
		&r.ID, &r.UserID, &r.CardID, &r.VenueID, &r.ImageURL, &r.ImageHash,
		&r.OCRAmountMinor, &r.OCRMerchantName, &r.OCRDate, &r.OCRConfidence,
		&r.ClaimedAmountMinor, &r.VerifiedAmountMinor, &r.Lat, &r.Lon, &r.Status,
		&r.FraudScore, &flags, &r.CashbackAmountMinor, &r.CashbackPercent,
		&r.CashbackStatus, &r.CashbackTransactionID, &r.RejectionReason, &r.ReviewedBy,
		&r.ReviewNotes, &r.ReviewedAt, &r.SubmittedAt, &r.UpdatedAt,
	)
	if err != nil {
		return Receipt{}, err
	}
	if len(flags) > 0 {
		if err := json.Unmarshal(flags, &r.FraudFlags); err != nil {
			return Receipt{}, err
		}
	}
	return r, nil
}

func scanReceipt(row *sql.Row) (Receipt, error) {
	r, err := scanReceiptRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Receipt{}, ErrNotFound
	}
	return r, err
}

func collectReceipts(rows *sql.Rows) ([]Receipt, error) {
	defer rows.Close()
	var out []Receipt
	for rows.Next() {
		r, err := scanReceiptRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
