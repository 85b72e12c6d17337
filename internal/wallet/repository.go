package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"boomcard/pkg/utils"
)

// Repository is the persistence seam for the ledger. PostgresRepo is the
// production implementation; MemoryRepo backs the service tests.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	FindWalletByUser(ctx context.Context, userID string) (Wallet, error)
	ListTransactions(ctx context.Context, walletID string, limit int) ([]Transaction, error)
}

// Tx is the statement set available inside one ledger transaction. The
// ForUpdate reads lock the row for the remainder of the transaction.
type Tx interface {
	GetOrCreateWalletForUpdate(ctx context.Context, userID string, now time.Time) (Wallet, error)
	FindWalletByUserForUpdate(ctx context.Context, userID string) (Wallet, error)
	FindTxByIdempotency(ctx context.Context, walletID, key string) (Transaction, bool, error)
	FindTransactionForUpdate(ctx context.Context, walletID, transactionID string) (Transaction, error)
	InsertTransaction(ctx context.Context, t Transaction) error
	CompleteTransaction(ctx context.Context, t Transaction) error
	UpdateWalletBalances(ctx context.Context, w Wallet) error
	UpdateWalletLock(ctx context.Context, w Wallet) error
}

// errUniqueViolation is returned by InsertTransaction when a uniqueness
// constraint fires; the service maps it to ErrConflict.
var errUniqueViolation = errors.New("unique violation")

// NOTE: PostgresRepo assumes the following tables exist:
// - wallets            UNIQUE (user_id)
// - wallet_transactions
//
// wallet_transactions carries two constraints the service relies on:
//
//	UNIQUE (wallet_id, idempotency_key)
//	CREATE UNIQUE INDEX one_completed_cashback_per_receipt
//	    ON wallet_transactions (receipt_id)
//	    WHERE type = 'CASHBACK_CREDIT' AND status = 'COMPLETED';
//
// The second index is the last line of defense against double payouts for
// one receipt when callers race with distinct idempotency keys.

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, pgTx{tx: tx})
	})
}

func (r *PostgresRepo) FindWalletByUser(ctx context.Context, userID string) (Wallet, error) {
	return findWalletByUser(ctx, r.db, userID)
}

func (r *PostgresRepo) ListTransactions(ctx context.Context, walletID string, limit int) ([]Transaction, error) {
	return listTransactions(ctx, r.db, walletID, limit)
}

// pgTx adapts one *sql.Tx to the Tx statement set.
type pgTx struct {
	tx *sql.Tx
}

func (p pgTx) GetOrCreateWalletForUpdate(ctx context.Context, userID string, now time.Time) (Wallet, error) {
	return getOrCreateWalletForUpdate(ctx, p.tx, userID, now)
}

func (p pgTx) FindWalletByUserForUpdate(ctx context.Context, userID string) (Wallet, error) {
	return findWalletByUserForUpdate(ctx, p.tx, userID)
}

func (p pgTx) FindTxByIdempotency(ctx context.Context, walletID, key string) (Transaction, bool, error) {
	return findTxByIdempotency(ctx, p.tx, walletID, key)
}

func (p pgTx) FindTransactionForUpdate(ctx context.Context, walletID, transactionID string) (Transaction, error) {
	return findTransactionForUpdate(ctx, p.tx, walletID, transactionID)
}

func (p pgTx) InsertTransaction(ctx context.Context, t Transaction) error {
	if err := insertTransaction(ctx, p.tx, t); err != nil {
		if utils.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %v", errUniqueViolation, err)
		}
		return err
	}
	return nil
}

func (p pgTx) CompleteTransaction(ctx context.Context, t Transaction) error {
	return completeTransaction(ctx, p.tx, t)
}

func (p pgTx) UpdateWalletBalances(ctx context.Context, w Wallet) error {
	return updateWalletBalances(ctx, p.tx, w)
}

func (p pgTx) UpdateWalletLock(ctx context.Context, w Wallet) error {
	return updateWalletLock(ctx, p.tx, w)
}

type dbtx interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const walletColumns = `id, user_id, currency, balance_minor, available_minor, pending_minor, locked, lock_reason, created_at, updated_at`

func scanWallet(row *sql.Row) (Wallet, error) {
	var w Wallet
	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.Currency,
		&w.BalanceMinor,
		&w.AvailableMinor,
		&w.PendingMinor,
		&w.Locked,
		&w.LockReason,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	return w, nil
}

func findWalletByUser(ctx context.Context, q dbtx, userID string) (Wallet, error) {
	const query = `
SELECT ` + walletColumns + `
FROM wallets
WHERE user_id = $1
`
	return scanWallet(q.QueryRowContext(ctx, query, userID))
}

func findWalletByUserForUpdate(ctx context.Context, tx *sql.Tx, userID string) (Wallet, error) {
	// Lock the wallet row to serialize concurrent money operations per wallet.
	const query = `
SELECT ` + walletColumns + `
FROM wallets
WHERE user_id = $1
FOR UPDATE
`
	return scanWallet(tx.QueryRowContext(ctx, query, userID))
}

// getOrCreateWalletForUpdate locks the user's wallet, creating it first
// when this is the user's first money operation. The UNIQUE (user_id)
// constraint resolves creation races: the loser re-selects the winner's row.
func getOrCreateWalletForUpdate(ctx context.Context, tx *sql.Tx, userID string, now time.Time) (Wallet, error) {
	w, err := findWalletByUserForUpdate(ctx, tx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Wallet{}, err
	}

	w = Wallet{
		ID:        newWalletID(),
		UserID:    userID,
		Currency:  DefaultCurrency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	const insert = `
INSERT INTO wallets (id, user_id, currency, balance_minor, available_minor, pending_minor, locked, lock_reason, created_at, updated_at)
VALUES ($1,$2,$3,0,0,0,FALSE,'',$4,$4)
`
	if _, err := tx.ExecContext(ctx, insert, w.ID, w.UserID, w.Currency, now); err != nil {
		if utils.IsUniqueViolation(err) {
			return findWalletByUserForUpdate(ctx, tx, userID)
		}
		return Wallet{}, err
	}
	return w, nil
}

func updateWalletBalances(ctx context.Context, tx *sql.Tx, w Wallet) error {
	const query = `
UPDATE wallets
SET balance_minor = $2, available_minor = $3, pending_minor = $4, updated_at = $5
WHERE id = $1
`
	_, err := tx.ExecContext(ctx, query, w.ID, w.BalanceMinor, w.AvailableMinor, w.PendingMinor, w.UpdatedAt)
	return err
}

func updateWalletLock(ctx context.Context, tx *sql.Tx, w Wallet) error {
	const query = `
UPDATE wallets
SET locked = $2, lock_reason = $3, updated_at = $4
WHERE id = $1
`
	_, err := tx.ExecContext(ctx, query, w.ID, w.Locked, w.LockReason, w.UpdatedAt)
	return err
}

// receipt_id and sticker_scan_id are stored as NULL when absent so the
// partial unique index never collides on empty strings.
const txColumns = `id, wallet_id, type, status, amount_minor, balance_before_minor, balance_after_minor, description, COALESCE(receipt_id, ''), COALESCE(sticker_scan_id, ''), external_payment_id, idempotency_key, metadata, created_at, completed_at`

func scanTransaction(row *sql.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(
		&t.ID,
		&t.WalletID,
		&t.Type,
		&t.Status,
		&t.AmountMinor,
		&t.BalanceBeforeMinor,
		&t.BalanceAfterMinor,
		&t.Description,
		&t.ReceiptID,
		&t.StickerScanID,
		&t.ExternalPaymentID,
		&t.IdempotencyKey,
		&t.Metadata,
		&t.CreatedAt,
		&t.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}
	return t, nil
}

func findTxByIdempotency(ctx context.Context, tx *sql.Tx, walletID, key string) (Transaction, bool, error) {
	const query = `
SELECT ` + txColumns + `
FROM wallet_transactions
WHERE wallet_id = $1 AND idempotency_key = $2
LIMIT 1
`
	t, err := scanTransaction(tx.QueryRowContext(ctx, query, walletID, key))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Transaction{}, false, nil
		}
		return Transaction{}, false, err
	}
	return t, true, nil
}

func findTransactionForUpdate(ctx context.Context, tx *sql.Tx, walletID, transactionID string) (Transaction, error) {
	const query = `
SELECT ` + txColumns + `
FROM wallet_transactions
WHERE wallet_id = $1 AND id = $2
FOR UPDATE
`
	return scanTransaction(tx.QueryRowContext(ctx, query, walletID, transactionID))
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t Transaction) error {
	const query = `
INSERT INTO wallet_transactions (
  id, wallet_id, type, status, amount_minor, balance_before_minor, balance_after_minor,
  description, receipt_id, sticker_scan_id, external_payment_id, idempotency_key, metadata,
  created_at, completed_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,NULLIF($9,''),NULLIF($10,''),$11,$12,$13,$14,$15
)
`
	_, err := tx.ExecContext(ctx, query,
		t.ID,
		t.WalletID,
		t.Type,
		t.Status,
		t.AmountMinor,
		t.BalanceBeforeMinor,
		t.BalanceAfterMinor,
		t.Description,
		t.ReceiptID,
		t.StickerScanID,
		t.ExternalPaymentID,
		t.IdempotencyKey,
		t.Metadata,
		t.CreatedAt,
		t.CompletedAt,
	)
	return err
}

// completeTransaction is the only UPDATE ever issued against the ledger:
// the PENDING -> COMPLETED/FAILED transition.
func completeTransaction(ctx context.Context, tx *sql.Tx, t Transaction) error {
	const query = `
UPDATE wallet_transactions
SET status = $2, balance_before_minor = $3, balance_after_minor = $4, description = $5, completed_at = $6
WHERE id = $1
`
	_, err := tx.ExecContext(ctx, query, t.ID, t.Status, t.BalanceBeforeMinor, t.BalanceAfterMinor, t.Description, t.CompletedAt)
	return err
}

func listTransactions(ctx context.Context, q dbtx, walletID string, limit int) ([]Transaction, error) {
	const query = `
SELECT ` + txColumns + `
FROM wallet_transactions
WHERE wallet_id = $1
ORDER BY id DESC
LIMIT $2
`
	rows, err := q.QueryContext(ctx, query, walletID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(
			&t.ID,
			&t.WalletID,
			&t.Type,
			&t.Status,
			&t.AmountMinor,
			&t.BalanceBeforeMinor,
			&t.BalanceAfterMinor,
			&t.Description,
			&t.ReceiptID,
			&t.StickerScanID,
			&t.ExternalPaymentID,
			&t.IdempotencyKey,
			&t.Metadata,
			&t.CreatedAt,
			&t.CompletedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
