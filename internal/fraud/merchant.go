package fraud

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
)

type MerchantStatus string

const (
	MerchantApproved MerchantStatus = "APPROVED"
	MerchantBlocked  MerchantStatus = "BLOCKED"
	MerchantPending  MerchantStatus = "PENDING"
)

type Merchant struct {
	Name   string         `json:"name" db:"name"`
	Status MerchantStatus `json:"status" db:"status"`
}

// Registry looks up merchants by (normalized) name.
// Lookup misses return ok=false, not an error.
type Registry interface {
	Lookup(ctx context.Context, name string) (Merchant, bool, error)
}

// NormalizeMerchantName folds case and surrounding whitespace so OCR output
// and registry rows compare equal.
func NormalizeMerchantName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NOTE: PostgresRegistry assumes a merchant_whitelist table with
// UNIQUE (normalized_name).

type PostgresRegistry struct {
	db *sql.DB
}

func NewPostgresRegistry(db *sql.DB) *PostgresRegistry { return &PostgresRegistry{db: db} }

func (r *PostgresRegistry) Lookup(ctx context.Context, name string) (Merchant, bool, error) {
	const q = `
SELECT name, status
FROM merchant_whitelist
WHERE normalized_name = $1
LIMIT 1
`
	var m Merchant
	err := r.db.QueryRowContext(ctx, q, NormalizeMerchantName(name)).Scan(&m.Name, &m.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Merchant{}, false, nil
		}
		return Merchant{}, false, err
	}
	return m, true, nil
}

// MemoryRegistry is an in-memory merchant registry for tests and early development.
type MemoryRegistry struct {
	mu        sync.Mutex
	merchants map[string]Merchant
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{merchants: map[string]Merchant{}}
}

func (r *MemoryRegistry) Put(m Merchant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.merchants[NormalizeMerchantName(m.Name)] = m
}

func (r *MemoryRegistry) Lookup(ctx context.Context, name string) (Merchant, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.merchants[NormalizeMerchantName(name)]
	return m, ok, nil
}
