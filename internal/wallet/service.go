package wallet

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Service provides the money side of the platform: balances and the
// append-only transaction ledger.
//
// Concurrency strategy:
// - Every money operation runs in one repository transaction.
// - The wallet row is locked FOR UPDATE first, which serializes all
//   concurrent operations per wallet.
// - Idempotency keys make retries safe: a replay returns the original
//   transaction instead of posting twice.
//
// Wallets are created lazily on the first operation for a user.
type Service struct {
	repo Repository
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWalletLocked      = errors.New("wallet locked")
	ErrConflict          = errors.New("conflict")
)

type CreditRequest struct {
	AmountMinor       int64           `json:"amount_minor"`
	Type              TransactionType `json:"type"`
	Description       string          `json:"description,omitempty"`
	ReceiptID         string          `json:"receipt_id,omitempty"`
	StickerScanID     string          `json:"sticker_scan_id,omitempty"`
	ExternalPaymentID string          `json:"external_payment_id,omitempty"`
	IdempotencyKey    string          `json:"idempotency_key"`
	Metadata          string          `json:"metadata,omitempty"`
}

type DebitRequest struct {
	AmountMinor       int64           `json:"amount_minor"`
	Type              TransactionType `json:"type"`
	Description       string          `json:"description,omitempty"`
	ExternalPaymentID string          `json:"external_payment_id,omitempty"`
	IdempotencyKey    string          `json:"idempotency_key"`
	Metadata          string          `json:"metadata,omitempty"`
}

// GetByUser returns the user's wallet. It does not create one; callers
// that need a wallet to exist go through a money operation instead.
func (s *Service) GetByUser(ctx context.Context, userID string) (Wallet, error) {
	if userID == "" {
		return Wallet{}, ErrInvalidArgument
	}
	return s.repo.FindWalletByUser(ctx, userID)
}

// Transactions returns the most recent ledger rows for the user's wallet,
// newest first. limit <= 0 means a default page of 50.
func (s *Service) Transactions(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 {
		limit = 50
	}
	w, err := s.repo.FindWalletByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, w.ID, limit)
}

// Credit posts a completed credit to the user's wallet, creating the
// wallet if it does not exist yet.
//
// Replays with the same idempotency key return the original transaction.
// A CASHBACK_CREDIT carrying a receipt ID is additionally guarded by a
// partial unique index so a receipt can never be paid out twice.
func (s *Service) Credit(ctx context.Context, userID string, req CreditRequest) (Transaction, Wallet, error) {
	if err := validateMoneyReq(userID, req.AmountMinor, req.Type, req.IdempotencyKey); err != nil {
		return Transaction{}, Wallet{}, err
	}

	now := s.clock().UTC()

	var outTx Transaction
	var outWallet Wallet

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		w, err := tx.GetOrCreateWalletForUpdate(ctx, userID, now)
		if err != nil {
			return err
		}
		if w.Locked {
			return fmt.Errorf("%w: %s", ErrWalletLocked, w.LockReason)
		}

		if existing, ok, err := tx.FindTxByIdempotency(ctx, w.ID, req.IdempotencyKey); err != nil {
			return err
		} else if ok {
			outTx = existing
			outWallet = w
			return nil
		}

		entry := Transaction{
			ID:                 s.newTransactionID(now),
			WalletID:           w.ID,
			Type:               req.Type,
			Status:             StatusCompleted,
			AmountMinor:        req.AmountMinor,
			BalanceBeforeMinor: w.BalanceMinor,
			BalanceAfterMinor:  w.BalanceMinor + req.AmountMinor,
			Description:        req.Description,
			ReceiptID:          req.ReceiptID,
			StickerScanID:      req.StickerScanID,
			ExternalPaymentID:  req.ExternalPaymentID,
			IdempotencyKey:     req.IdempotencyKey,
			Metadata:           req.Metadata,
			CreatedAt:          now,
			CompletedAt:        &now,
		}
		if err := tx.InsertTransaction(ctx, entry); err != nil {
			if errors.Is(err, errUniqueViolation) {
				return fmt.Errorf("%w: receipt already credited", ErrConflict)
			}
			return err
		}

		w.BalanceMinor += req.AmountMinor
		w.AvailableMinor += req.AmountMinor
		w.UpdatedAt = now
		if err := tx.UpdateWalletBalances(ctx, w); err != nil {
			return err
		}

		outTx = entry
		outWallet = w
		return nil
	})

	return outTx, outWallet, err
}

// Debit posts a completed debit against the available balance.
// The stored ledger amount is negative.
func (s *Service) Debit(ctx context.Context, userID string, req DebitRequest) (Transaction, Wallet, error) {
	if err := validateMoneyReq(userID, req.AmountMinor, req.Type, req.IdempotencyKey); err != nil {
		return Transaction{}, Wallet{}, err
	}

	now := s.clock().UTC()

	var outTx Transaction
	var outWallet Wallet

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		w, err := tx.GetOrCreateWalletForUpdate(ctx, userID, now)
		if err != nil {
			return err
		}
		if w.Locked {
			return fmt.Errorf("%w: %s", ErrWalletLocked, w.LockReason)
		}

		if existing, ok, err := tx.FindTxByIdempotency(ctx, w.ID, req.IdempotencyKey); err != nil {
			return err
		} else if ok {
			outTx = existing
			outWallet = w
			return nil
		}

		if w.AvailableMinor < req.AmountMinor {
			return ErrInsufficientFunds
		}

		entry := Transaction{
			ID:                 s.newTransactionID(now),
			WalletID:           w.ID,
			Type:               req.Type,
			Status:             StatusCompleted,
			AmountMinor:        -req.AmountMinor,
			BalanceBeforeMinor: w.BalanceMinor,
			BalanceAfterMinor:  w.BalanceMinor - req.AmountMinor,
			Description:        req.Description,
			ExternalPaymentID:  req.ExternalPaymentID,
			IdempotencyKey:     req.IdempotencyKey,
			Metadata:           req.Metadata,
			CreatedAt:          now,
			CompletedAt:        &now,
		}
		if err := tx.InsertTransaction(ctx, entry); err != nil {
			return err
		}

		w.BalanceMinor -= req.AmountMinor
		w.AvailableMinor -= req.AmountMinor
		w.UpdatedAt = now
		if err := tx.UpdateWalletBalances(ctx, w); err != nil {
			return err
		}

		outTx = entry
		outWallet = w
		return nil
	})

	return outTx, outWallet, err
}

// AddPendingBalance records a provisional credit: a PENDING ledger row
// plus a pendingBalance increase. The main balance is untouched until
// ApprovePending settles it.
func (s *Service) AddPendingBalance(ctx context.Context, userID string, req CreditRequest) (Transaction, Wallet, error) {
	if err := validateMoneyReq(userID, req.AmountMinor, req.Type, req.IdempotencyKey); err != nil {
		return Transaction{}, Wallet{}, err
	}

	now := s.clock().UTC()

	var outTx Transaction
	var outWallet Wallet

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		w, err := tx.GetOrCreateWalletForUpdate(ctx, userID, now)
		if err != nil {
			return err
		}
		if w.Locked {
			return fmt.Errorf("%w: %s", ErrWalletLocked, w.LockReason)
		}

		if existing, ok, err := tx.FindTxByIdempotency(ctx, w.ID, req.IdempotencyKey); err != nil {
			return err
		} else if ok {
			outTx = existing
			outWallet = w
			return nil
		}

		// before/after here are provisional; ApprovePending recomputes them
		// against the balance at settlement time so completed rows chain.
		entry := Transaction{
			ID:                 s.newTransactionID(now),
			WalletID:           w.ID,
			Type:               req.Type,
			Status:             StatusPending,
			AmountMinor:        req.AmountMinor,
			BalanceBeforeMinor: w.BalanceMinor,
			BalanceAfterMinor:  w.BalanceMinor + req.AmountMinor,
			Description:        req.Description,
			ReceiptID:          req.ReceiptID,
			StickerScanID:      req.StickerScanID,
			IdempotencyKey:     req.IdempotencyKey,
			Metadata:           req.Metadata,
			CreatedAt:          now,
		}
		if err := tx.InsertTransaction(ctx, entry); err != nil {
			return err
		}

		w.PendingMinor += req.AmountMinor
		w.UpdatedAt = now
		if err := tx.UpdateWalletBalances(ctx, w); err != nil {
			return err
		}

		outTx = entry
		outWallet = w
		return nil
	})

	return outTx, outWallet, err
}

// ApprovePending settles a PENDING transaction: status flips to COMPLETED,
// the amount moves from pendingBalance into balance and availableBalance,
// and balance_before/after are recomputed at settlement time.
//
// Approving a transaction that is not PENDING returns ErrConflict.
func (s *Service) ApprovePending(ctx context.Context, userID, transactionID string) (Transaction, Wallet, error) {
	if userID == "" || transactionID == "" {
		return Transaction{}, Wallet{}, ErrInvalidArgument
	}

	now := s.clock().UTC()

	var outTx Transaction
	var outWallet Wallet

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		w, err := tx.FindWalletByUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		entry, err := tx.FindTransactionForUpdate(ctx, w.ID, transactionID)
		if err != nil {
			return err
		}
		if entry.Status != StatusPending {
			return fmt.Errorf("%w: transaction is %s", ErrConflict, entry.Status)
		}
		if w.PendingMinor < entry.AmountMinor {
			return fmt.Errorf("%w: pending balance below transaction amount", ErrConflict)
		}

		entry.Status = StatusCompleted
		entry.BalanceBeforeMinor = w.BalanceMinor
		entry.BalanceAfterMinor = w.BalanceMinor + entry.AmountMinor
		entry.CompletedAt = &now
		if err := tx.CompleteTransaction(ctx, entry); err != nil {
			return err
		}

		w.BalanceMinor += entry.AmountMinor
		w.AvailableMinor += entry.AmountMinor
		w.PendingMinor -= entry.AmountMinor
		w.UpdatedAt = now
		if err := tx.UpdateWalletBalances(ctx, w); err != nil {
			return err
		}

		outTx = entry
		outWallet = w
		return nil
	})

	return outTx, outWallet, err
}

// FailPending marks a PENDING transaction FAILED and releases the
// reserved pending amount. The row stays in the ledger for audit.
func (s *Service) FailPending(ctx context.Context, userID, transactionID, reason string) (Transaction, Wallet, error) {
	if userID == "" || transactionID == "" {
		return Transaction{}, Wallet{}, ErrInvalidArgument
	}

	now := s.clock().UTC()

	var outTx Transaction
	var outWallet Wallet

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		w, err := tx.FindWalletByUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		entry, err := tx.FindTransactionForUpdate(ctx, w.ID, transactionID)
		if err != nil {
			return err
		}
		if entry.Status != StatusPending {
			return fmt.Errorf("%w: transaction is %s", ErrConflict, entry.Status)
		}

		entry.Status = StatusFailed
		entry.BalanceBeforeMinor = w.BalanceMinor
		entry.BalanceAfterMinor = w.BalanceMinor
		if reason != "" {
			entry.Description = reason
		}
		entry.CompletedAt = &now
		if err := tx.CompleteTransaction(ctx, entry); err != nil {
			return err
		}

		w.PendingMinor -= entry.AmountMinor
		w.UpdatedAt = now
		if err := tx.UpdateWalletBalances(ctx, w); err != nil {
			return err
		}

		outTx = entry
		outWallet = w
		return nil
	})

	return outTx, outWallet, err
}

// Lock freezes the wallet. Subsequent money operations fail with
// ErrWalletLocked until Unlock. Reads still work.
func (s *Service) Lock(ctx context.Context, userID, reason string) (Wallet, error) {
	if userID == "" || reason == "" {
		return Wallet{}, ErrInvalidArgument
	}
	return s.setLock(ctx, userID, true, reason)
}

// Unlock lifts a freeze. Unlocking an unlocked wallet is a no-op.
func (s *Service) Unlock(ctx context.Context, userID string) (Wallet, error) {
	if userID == "" {
		return Wallet{}, ErrInvalidArgument
	}
	return s.setLock(ctx, userID, false, "")
}

func (s *Service) setLock(ctx context.Context, userID string, locked bool, reason string) (Wallet, error) {
	now := s.clock().UTC()

	var out Wallet
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		w, err := tx.GetOrCreateWalletForUpdate(ctx, userID, now)
		if err != nil {
			return err
		}
		w.Locked = locked
		w.LockReason = reason
		w.UpdatedAt = now
		if err := tx.UpdateWalletLock(ctx, w); err != nil {
			return err
		}
		out = w
		return nil
	})
	return out, err
}

// newTransactionID mints a ULID seeded with the operation timestamp.
func (s *Service) newTransactionID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}

func newWalletID() string {
	return uuid.NewString()
}

func validateMoneyReq(userID string, amountMinor int64, t TransactionType, idempotencyKey string) error {
	if userID == "" {
		return ErrInvalidArgument
	}
	if amountMinor <= 0 {
		return ErrInvalidArgument
	}
	if !ValidType(t) {
		return ErrInvalidArgument
	}
	if idempotencyKey == "" {
		return ErrInvalidArgument
	}
	return nil
}
