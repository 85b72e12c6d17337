package receipt

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory repository for tests. It enforces the same
// one-APPROVED-receipt-per-image rule the Postgres partial unique index does,
// so the duplicate-race handling in the service is exercised without a DB.
type MemoryRepo struct {
	mu       sync.Mutex
	receipts map[string]Receipt

	// Errs, when set, makes every read used by the pre-score guard fail.
	// Simulates a database outage during signal gathering.
	Errs error
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{receipts: map[string]Receipt{}}
}

func (m *MemoryRepo) approvedHashTaken(hash, exceptID string) bool {
	for _, r := range m.receipts {
		if r.ImageHash == hash && r.Status == StatusApproved && r.ID != exceptID {
			return true
		}
	}
	return false
}

func (m *MemoryRepo) Insert(ctx context.Context, r Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.Status == StatusApproved && m.approvedHashTaken(r.ImageHash, r.ID) {
		return ErrDuplicateApproved
	}
	m.receipts[r.ID] = r
	return nil
}

func (m *MemoryRepo) Update(ctx context.Context, r Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.receipts[r.ID]; !ok {
		return ErrNotFound
	}
	if r.Status == StatusApproved && m.approvedHashTaken(r.ImageHash, r.ID) {
		return ErrDuplicateApproved
	}
	m.receipts[r.ID] = r
	return nil
}

func (m *MemoryRepo) FindByID(ctx context.Context, id string) (Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[id]
	if !ok {
		return Receipt{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryRepo) ExistsByImageHash(ctx context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Errs != nil {
		return false, m.Errs
	}
	for _, r := range m.receipts {
		if r.ImageHash == hash {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryRepo) CountByUserSince(ctx context.Context, userID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Errs != nil {
		return 0, m.Errs
	}
	n := 0
	for _, r := range m.receipts {
		if r.UserID == userID && !r.SubmittedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Receipt
	for _, r := range m.receipts {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepo) ListByStatus(ctx context.Context, status Status, limit int) ([]Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Receipt
	for _, r := range m.receipts {
		if r.Status == status {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
