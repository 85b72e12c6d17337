package receipt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"boomcard/internal/audit"
	"boomcard/internal/card"
	"boomcard/internal/fraud"
	"boomcard/internal/notify"
	"boomcard/internal/venue"
	"boomcard/internal/wallet"
)

// memLedger is a wallet stand-in that mimics the idempotent credit
// behavior of wallet.Service.
type memLedger struct {
	mu       sync.Mutex
	locked   bool
	failWith error
	byKey    map[string]wallet.Transaction
	seq      int
}

func newMemLedger() *memLedger {
	return &memLedger{byKey: map[string]wallet.Transaction{}}
}

func (l *memLedger) Credit(ctx context.Context, userID string, req wallet.CreditRequest) (wallet.Transaction, wallet.Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failWith != nil {
		return wallet.Transaction{}, wallet.Wallet{}, l.failWith
	}
	if l.locked {
		return wallet.Transaction{}, wallet.Wallet{}, wallet.ErrWalletLocked
	}
	if tx, ok := l.byKey[req.IdempotencyKey]; ok {
		return tx, wallet.Wallet{UserID: userID}, nil
	}
	l.seq++
	tx := wallet.Transaction{
		ID:             fmt.Sprintf("tx-%03d", l.seq),
		Type:           req.Type,
		Status:         wallet.StatusCompleted,
		AmountMinor:    req.AmountMinor,
		ReceiptID:      req.ReceiptID,
		IdempotencyKey: req.IdempotencyKey,
	}
	l.byKey[req.IdempotencyKey] = tx
	return tx, wallet.Wallet{UserID: userID, BalanceMinor: req.AmountMinor}, nil
}

func (l *memLedger) creditCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey)
}

type env struct {
	repo      *MemoryRepo
	cards     *card.Service
	venues    *venue.MemoryRepo
	merchants *fraud.MemoryRegistry
	ledger    *memLedger
	notifier  *notify.MemoryNotifier
	auditRepo *audit.MemoryRepo
	svc       *Service
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		repo:      NewMemoryRepo(),
		cards:     card.NewService(card.NewMemoryRepo()),
		venues:    venue.NewMemoryRepo(),
		merchants: fraud.NewMemoryRegistry(),
		ledger:    newMemLedger(),
		notifier:  &notify.MemoryNotifier{},
		auditRepo: audit.NewMemoryRepo(),
	}
	guard := NewGuard(e.repo, nil)
	e.svc = NewService(e.repo, guard, e.cards, e.venues, e.merchants, e.ledger, e.notifier, audit.NewService(e.auditRepo))
	e.svc.clock = func() time.Time { return testNow }
	return e
}

func submitReq() SubmitRequest {
	return SubmitRequest{
		VenueID:            "v1",
		ImageURL:           "https://cdn.example.com/r1.jpg",
		ImageHash:          "hash-1",
		OCRAmountMinor:     10000,
		ClaimedAmountMinor: 10000,
		OCRConfidence:      95,
	}
}

func TestSubmit_CleanReceiptApprovedAndSettled(t *testing.T) {
	e := newEnv(t)

	res, err := e.svc.Submit(context.Background(), "u1", submitReq())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Receipt.Status != StatusApproved {
		t.Fatalf("expected APPROVED, got %s (score %d, flags %+v)", res.Receipt.Status, res.Fraud.Score, res.Fraud.Flags)
	}
	if res.Receipt.CashbackAmountMinor != 500 {
		t.Fatalf("expected 500 minor cashback on 10000 at 5%%, got %d", res.Receipt.CashbackAmountMinor)
	}
	if res.Receipt.CashbackStatus != CashbackSettled {
		t.Fatalf("expected SETTLED, got %s", res.Receipt.CashbackStatus)
	}
	if res.Receipt.CashbackTransactionID == "" {
		t.Fatalf("expected a ledger transaction id")
	}
	if res.EstimatedSettlementAt != nil {
		t.Fatalf("settled receipts should not carry an estimate")
	}
	if e.ledger.creditCount() != 1 {
		t.Fatalf("expected exactly one credit, got %d", e.ledger.creditCount())
	}
	if got := e.notifier.ByKind(notify.KindReceiptApproved); len(got) != 1 || got[0].UserID != "u1" {
		t.Fatalf("expected one approved notification for u1, got %+v", got)
	}
	if got := e.notifier.ByKind(notify.KindCashbackCredited); len(got) != 1 {
		t.Fatalf("expected a cashback notification, got %+v", got)
	}

	stored, err := e.repo.FindByID(context.Background(), res.Receipt.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.CashbackStatus != CashbackSettled || stored.CashbackTransactionID == "" {
		t.Fatalf("persisted receipt not settled: %+v", stored)
	}
}

func TestSubmit_DuplicateImageGoesToReview(t *testing.T) {
	e := newEnv(t)

	if _, err := e.svc.Submit(context.Background(), "u1", submitReq()); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	res, err := e.svc.Submit(context.Background(), "u2", submitReq())
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if res.Receipt.Status != StatusManualReview {
		t.Fatalf("expected MANUAL_REVIEW, got %s", res.Receipt.Status)
	}
	if res.Fraud.Score != 40 {
		t.Fatalf("expected score 40, got %d", res.Fraud.Score)
	}
	if res.EstimatedSettlementAt == nil || !res.EstimatedSettlementAt.Equal(testNow.Add(settlementEstimate)) {
		t.Fatalf("expected settlement estimate 48h out, got %v", res.EstimatedSettlementAt)
	}
	if got := e.notifier.ByKind(notify.KindReceiptUnderReview); len(got) != 1 {
		t.Fatalf("expected under-review notification, got %+v", got)
	}
	// No payout for a receipt under review.
	if e.ledger.creditCount() != 1 {
		t.Fatalf("expected only the first receipt's credit, got %d", e.ledger.creditCount())
	}
}

func TestSubmit_BlockedMerchantAutoRejected(t *testing.T) {
	e := newEnv(t)
	e.merchants.Put(fraud.Merchant{Name: "Shady Bar", Status: fraud.MerchantBlocked})

	req := submitReq()
	req.OCRMerchantName = "shady bar"
	req.OCRConfidence = 30 // 50 + 20 = 70, past the reject threshold

	res, err := e.svc.Submit(context.Background(), "u1", req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Receipt.Status != StatusRejected {
		t.Fatalf("expected REJECTED, got %s (score %d)", res.Receipt.Status, res.Fraud.Score)
	}
	if res.Receipt.RejectionReason != string(fraud.ReasonMerchantBlacklisted) {
		t.Fatalf("expected blacklist rejection reason, got %q", res.Receipt.RejectionReason)
	}
	if e.ledger.creditCount() != 0 {
		t.Fatalf("rejected receipts must not be paid")
	}
	if got := e.notifier.ByKind(notify.KindReceiptRejected); len(got) != 1 {
		t.Fatalf("expected rejected notification, got %+v", got)
	}
	if got := e.notifier.ByKind(notify.KindFraudAlert); len(got) != 1 || got[0].Role == "" {
		t.Fatalf("expected fraud alert to a role, got %+v", got)
	}
}

func TestSubmit_GuardFailureFallsBackToReview(t *testing.T) {
	e := newEnv(t)
	e.repo.Errs = errors.New("db down")

	res, err := e.svc.Submit(context.Background(), "u1", submitReq())
	if err != nil {
		t.Fatalf("submit must survive a guard outage: %v", err)
	}
	if res.Receipt.Status != StatusManualReview {
		t.Fatalf("expected MANUAL_REVIEW fallback, got %s", res.Receipt.Status)
	}
	if res.Fraud.Score != 50 {
		t.Fatalf("expected fallback score 50, got %d", res.Fraud.Score)
	}
	found := false
	for _, f := range res.Fraud.Flags {
		if f.Code == fraud.ReasonFraudCheckError {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected FRAUD_CHECK_ERROR flag, got %+v", res.Fraud.Flags)
	}
}

func TestSubmit_LockedWalletKeepsPayoutPending(t *testing.T) {
	e := newEnv(t)
	e.ledger.locked = true

	res, err := e.svc.Submit(context.Background(), "u1", submitReq())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Receipt.Status != StatusApproved {
		t.Fatalf("approval must stand even when the wallet is locked, got %s", res.Receipt.Status)
	}
	if res.Receipt.CashbackStatus != CashbackPending {
		t.Fatalf("expected PENDING payout, got %s", res.Receipt.CashbackStatus)
	}
	if res.EstimatedSettlementAt == nil {
		t.Fatalf("pending payouts should carry a settlement estimate")
	}
}

func TestSubmit_NotificationFailureIsSwallowed(t *testing.T) {
	e := newEnv(t)
	e.notifier.FailWith = errors.New("broker unreachable")

	res, err := e.svc.Submit(context.Background(), "u1", submitReq())
	if err != nil {
		t.Fatalf("notification failures must not fail submissions: %v", err)
	}
	if res.Receipt.Status != StatusApproved || res.Receipt.CashbackStatus != CashbackSettled {
		t.Fatalf("unexpected outcome: %+v", res.Receipt)
	}
}

func TestSubmit_RejectsInvalidArgs(t *testing.T) {
	e := newEnv(t)

	cases := []struct {
		name   string
		userID string
		mutate func(*SubmitRequest)
	}{
		{"missing user", "", func(r *SubmitRequest) {}},
		{"missing image hash", "u1", func(r *SubmitRequest) { r.ImageHash = "" }},
		{"no amount at all", "u1", func(r *SubmitRequest) { r.ClaimedAmountMinor = 0; r.OCRAmountMinor = 0 }},
		{"confidence out of range", "u1", func(r *SubmitRequest) { r.OCRConfidence = 101 }},
	}
	for _, tc := range cases {
		req := submitReq()
		tc.mutate(&req)
		if _, err := e.svc.Submit(context.Background(), tc.userID, req); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("%s: expected ErrInvalidArgument, got %v", tc.name, err)
		}
	}
}

func TestSubmit_VenueLessScanUsesDefaultConfig(t *testing.T) {
	e := newEnv(t)

	req := submitReq()
	req.VenueID = ""
	lat, lon := 42.6977, 23.3219
	req.Lat, req.Lon = &lat, &lon

	res, err := e.svc.Submit(context.Background(), "u1", req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Receipt.Status != StatusApproved {
		t.Fatalf("expected APPROVED, got %s (score %d, flags %+v)", res.Receipt.Status, res.Fraud.Score, res.Fraud.Flags)
	}
	// Default 5% payout; no venue means the GPS signals have no reference
	// point and must not fire.
	if res.Receipt.CashbackAmountMinor != 500 {
		t.Fatalf("expected 500 minor cashback, got %d", res.Receipt.CashbackAmountMinor)
	}
	for _, f := range res.Fraud.Flags {
		if f.Code == fraud.ReasonLocationFar || f.Code == fraud.ReasonLocationOutOfRange {
			t.Fatalf("gps signal fired without a venue: %+v", f)
		}
	}
	if res.Receipt.CashbackStatus != CashbackSettled {
		t.Fatalf("expected SETTLED, got %s", res.Receipt.CashbackStatus)
	}
}

func TestSubmit_VenueOverridesDriveDecisionAndPayout(t *testing.T) {
	e := newEnv(t)
	cfg := venue.DefaultFraudConfig()
	cfg.CashbackBasePercent = 8.0
	cfg.MaxCashbackPerScanMinor = 600
	e.venues.Configs["v1"] = cfg

	res, err := e.svc.Submit(context.Background(), "u1", submitReq())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	// 8% of 10000 is 800, clamped to the venue cap.
	if res.Receipt.CashbackAmountMinor != 600 {
		t.Fatalf("expected capped payout 600, got %d", res.Receipt.CashbackAmountMinor)
	}
}
