package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryRepo is an in-memory ledger store for tests. It enforces the same
// uniqueness rules as the Postgres schema: one wallet per user, one
// transaction per (wallet, idempotency key), and one COMPLETED
// CASHBACK_CREDIT per receipt. WithTx stages writes and commits them only
// when the callback succeeds, mirroring transaction rollback.
type MemoryRepo struct {
	mu      sync.Mutex
	wallets map[string]Wallet // by user id
	txs     []Transaction
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{wallets: map[string]Wallet{}}
}

func (m *MemoryRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stage := &memTx{
		wallets: make(map[string]Wallet, len(m.wallets)),
		txs:     append([]Transaction(nil), m.txs...),
	}
	for k, v := range m.wallets {
		stage.wallets[k] = v
	}

	if err := fn(ctx, stage); err != nil {
		return err
	}
	m.wallets = stage.wallets
	m.txs = stage.txs
	return nil
}

func (m *MemoryRepo) FindWalletByUser(ctx context.Context, userID string) (Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[userID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return w, nil
}

func (m *MemoryRepo) ListTransactions(ctx context.Context, walletID string, limit int) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Transaction
	for i := len(m.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.txs[i].WalletID == walletID {
			out = append(out, m.txs[i])
		}
	}
	return out, nil
}

type memTx struct {
	wallets map[string]Wallet
	txs     []Transaction
}

func (t *memTx) GetOrCreateWalletForUpdate(ctx context.Context, userID string, now time.Time) (Wallet, error) {
	if w, ok := t.wallets[userID]; ok {
		return w, nil
	}
	w := Wallet{
		ID:        newWalletID(),
		UserID:    userID,
		Currency:  DefaultCurrency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.wallets[userID] = w
	return w, nil
}

func (t *memTx) FindWalletByUserForUpdate(ctx context.Context, userID string) (Wallet, error) {
	w, ok := t.wallets[userID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return w, nil
}

func (t *memTx) FindTxByIdempotency(ctx context.Context, walletID, key string) (Transaction, bool, error) {
	for _, tx := range t.txs {
		if tx.WalletID == walletID && tx.IdempotencyKey == key {
			return tx, true, nil
		}
	}
	return Transaction{}, false, nil
}

func (t *memTx) FindTransactionForUpdate(ctx context.Context, walletID, transactionID string) (Transaction, error) {
	for _, tx := range t.txs {
		if tx.WalletID == walletID && tx.ID == transactionID {
			return tx, nil
		}
	}
	return Transaction{}, ErrNotFound
}

func (t *memTx) InsertTransaction(ctx context.Context, entry Transaction) error {
	for _, tx := range t.txs {
		if tx.WalletID == entry.WalletID && tx.IdempotencyKey == entry.IdempotencyKey {
			return fmt.Errorf("%w: idempotency key %q", errUniqueViolation, entry.IdempotencyKey)
		}
		if entry.Type == TypeCashbackCredit && entry.Status == StatusCompleted &&
			entry.ReceiptID != "" && tx.ReceiptID == entry.ReceiptID &&
			tx.Type == TypeCashbackCredit && tx.Status == StatusCompleted {
			return fmt.Errorf("%w: receipt %q", errUniqueViolation, entry.ReceiptID)
		}
	}
	t.txs = append(t.txs, entry)
	return nil
}

func (t *memTx) CompleteTransaction(ctx context.Context, entry Transaction) error {
	for i, tx := range t.txs {
		if tx.ID == entry.ID {
			t.txs[i].Status = entry.Status
			t.txs[i].BalanceBeforeMinor = entry.BalanceBeforeMinor
			t.txs[i].BalanceAfterMinor = entry.BalanceAfterMinor
			t.txs[i].Description = entry.Description
			t.txs[i].CompletedAt = entry.CompletedAt
			return nil
		}
	}
	return ErrNotFound
}

func (t *memTx) UpdateWalletBalances(ctx context.Context, w Wallet) error {
	return t.updateWallet(w.ID, func(stored *Wallet) {
		stored.BalanceMinor = w.BalanceMinor
		stored.AvailableMinor = w.AvailableMinor
		stored.PendingMinor = w.PendingMinor
		stored.UpdatedAt = w.UpdatedAt
	})
}

func (t *memTx) UpdateWalletLock(ctx context.Context, w Wallet) error {
	return t.updateWallet(w.ID, func(stored *Wallet) {
		stored.Locked = w.Locked
		stored.LockReason = w.LockReason
		stored.UpdatedAt = w.UpdatedAt
	})
}

func (t *memTx) updateWallet(walletID string, apply func(*Wallet)) error {
	for userID, w := range t.wallets {
		if w.ID == walletID {
			apply(&w)
			t.wallets[userID] = w
			return nil
		}
	}
	return ErrNotFound
}
