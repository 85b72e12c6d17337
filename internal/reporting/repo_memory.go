package reporting

import (
	"context"
	"sync"
	"time"

	"boomcard/internal/receipt"
	"boomcard/internal/wallet"
)

// MemoryRepo is a simple in-memory reporting repository for tests and
// early development.

type MemoryRepo struct {
	mu sync.Mutex

	Receipts     []receipt.Receipt
	Transactions []wallet.Transaction

	// UserWallets maps user id to wallet id for transaction filtering.
	UserWallets map[string]string
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{UserWallets: map[string]string{}} }

func (r *MemoryRepo) ListReceipts(ctx context.Context, from, to time.Time, venueID string) ([]receipt.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]receipt.Receipt, 0)
	for _, rec := range r.Receipts {
		if rec.SubmittedAt.Before(from) || !rec.SubmittedAt.Before(to) {
			continue
		}
		if venueID != "" && rec.VenueID != venueID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *MemoryRepo) ListTransactions(ctx context.Context, from, to time.Time, userID string) ([]wallet.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]wallet.Transaction, 0)
	for _, t := range r.Transactions {
		if t.CreatedAt.Before(from) || !t.CreatedAt.Before(to) {
			continue
		}
		if userID != "" && t.WalletID != r.UserWallets[userID] {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
