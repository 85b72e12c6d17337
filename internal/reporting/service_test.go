package reporting

import (
	"context"
	"testing"
	"time"

	"boomcard/internal/receipt"
	"boomcard/internal/wallet"
)

func TestReporting_CashbackSummaryAggregates(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Receipts = []receipt.Receipt{
		{ID: "r1", VenueID: "v1", Status: receipt.StatusApproved, FraudScore: 0, CashbackStatus: receipt.CashbackSettled, CashbackAmountMinor: 500, SubmittedAt: now},
		{ID: "r2", VenueID: "v1", Status: receipt.StatusApproved, FraudScore: 20, CashbackStatus: receipt.CashbackPending, CashbackAmountMinor: 300, SubmittedAt: now},
		{ID: "r3", VenueID: "v1", Status: receipt.StatusManualReview, FraudScore: 40, SubmittedAt: now},
		{ID: "r4", VenueID: "v2", Status: receipt.StatusRejected, FraudScore: 80, SubmittedAt: now},
	}
	svc := NewService(repo)

	rng := TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}
	out, err := svc.CashbackSummary(context.Background(), CashbackSummaryRequest{Range: rng, VenueID: "v1"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalReceipts != 3 {
		t.Fatalf("expected venue filter to keep 3 receipts, got %d", out.TotalReceipts)
	}
	if out.ApprovedReceipts != 2 || out.InReviewReceipts != 1 || out.RejectedReceipts != 0 {
		t.Fatalf("unexpected status counts: %+v", out)
	}
	if out.SettledCashbackMinor != 500 || out.PendingCashbackMinor != 300 {
		t.Fatalf("unexpected cashback totals: %+v", out)
	}
	if out.AverageFraudScore != 20 {
		t.Fatalf("expected average score 20, got %f", out.AverageFraudScore)
	}
}

func TestReporting_WalletSummaryCountsCompletedOnly(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.UserWallets["u1"] = "w1"
	repo.Transactions = []wallet.Transaction{
		{ID: "t1", WalletID: "w1", Type: wallet.TypeTopUp, Status: wallet.StatusCompleted, AmountMinor: 1000, CreatedAt: now},
		{ID: "t2", WalletID: "w1", Type: wallet.TypeCashbackCredit, Status: wallet.StatusCompleted, AmountMinor: 500, CreatedAt: now},
		{ID: "t3", WalletID: "w1", Type: wallet.TypePurchase, Status: wallet.StatusCompleted, AmountMinor: -200, CreatedAt: now},
		{ID: "t4", WalletID: "w1", Type: wallet.TypeCashbackCredit, Status: wallet.StatusPending, AmountMinor: 999, CreatedAt: now},
		{ID: "t5", WalletID: "w2", Type: wallet.TypeTopUp, Status: wallet.StatusCompleted, AmountMinor: 7777, CreatedAt: now},
	}
	svc := NewService(repo)

	rng := TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}
	out, err := svc.WalletSummary(context.Background(), WalletSummaryRequest{Range: rng, UserID: "u1"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCreditMinor != 1500 {
		t.Fatalf("expected credits 1500, got %d", out.TotalCreditMinor)
	}
	if out.TotalDebitMinor != 200 {
		t.Fatalf("expected debits 200, got %d", out.TotalDebitMinor)
	}
	if out.NetDeltaMinor != 1300 {
		t.Fatalf("expected net 1300, got %d", out.NetDeltaMinor)
	}
	if out.CashbackCreditMinor != 500 {
		t.Fatalf("expected cashback slice 500, got %d", out.CashbackCreditMinor)
	}
	if out.Currency != wallet.DefaultCurrency {
		t.Fatalf("expected %s, got %s", wallet.DefaultCurrency, out.Currency)
	}
}

func TestReporting_RejectsInvalidRange(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	now := time.Unix(1700000000, 0).UTC()

	if _, err := svc.CashbackSummary(context.Background(), CashbackSummaryRequest{}); err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := svc.WalletSummary(context.Background(), WalletSummaryRequest{Range: TimeRange{From: now, To: now}}); err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
