package reporting

import (
	"context"
	"errors"
	"time"

	"boomcard/internal/receipt"
	"boomcard/internal/wallet"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// Implementations should query immutable sources when possible (the
// wallet ledger, decided receipts).

type Repository interface {
	ListReceipts(ctx context.Context, from, to time.Time, venueID string) ([]receipt.Receipt, error)
	ListTransactions(ctx context.Context, from, to time.Time, userID string) ([]wallet.Transaction, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CashbackSummary(ctx context.Context, req CashbackSummaryRequest) (CashbackSummary, error) {
	if err := s.check(req.Range); err != nil {
		return CashbackSummary{}, err
	}

	rows, err := s.repo.ListReceipts(ctx, req.Range.From, req.Range.To, req.VenueID)
	if err != nil {
		return CashbackSummary{}, err
	}

	out := CashbackSummary{VenueID: req.VenueID}
	scoreSum := 0
	for _, r := range rows {
		out.TotalReceipts++
		scoreSum += r.FraudScore
		switch r.Status {
		case receipt.StatusApproved:
			out.ApprovedReceipts++
		case receipt.StatusRejected:
			out.RejectedReceipts++
		case receipt.StatusManualReview, receipt.StatusPending:
			out.InReviewReceipts++
		}
		switch r.CashbackStatus {
		case receipt.CashbackSettled:
			out.SettledCashbackMinor += r.CashbackAmountMinor
		case receipt.CashbackPending:
			out.PendingCashbackMinor += r.CashbackAmountMinor
		}
	}
	if out.TotalReceipts > 0 {
		out.AverageFraudScore = float64(scoreSum) / float64(out.TotalReceipts)
	}
	return out, nil
}

func (s *Service) WalletSummary(ctx context.Context, req WalletSummaryRequest) (WalletSummary, error) {
	if err := s.check(req.Range); err != nil {
		return WalletSummary{}, err
	}

	rows, err := s.repo.ListTransactions(ctx, req.Range.From, req.Range.To, req.UserID)
	if err != nil {
		return WalletSummary{}, err
	}

	out := WalletSummary{UserID: req.UserID, Currency: wallet.DefaultCurrency}
	for _, t := range rows {
		// Only completed rows are money; pending and failed never count.
		if t.Status != wallet.StatusCompleted {
			continue
		}
		if t.AmountMinor > 0 {
			out.TotalCreditMinor += t.AmountMinor
			if t.Type == wallet.TypeCashbackCredit {
				out.CashbackCreditMinor += t.AmountMinor
			}
		} else {
			out.TotalDebitMinor += -t.AmountMinor
		}
	}
	out.NetDeltaMinor = out.TotalCreditMinor - out.TotalDebitMinor
	return out, nil
}

func (s *Service) check(r TimeRange) error {
	if s.repo == nil {
		return errors.New("reporting: repository not configured")
	}
	if r.From.IsZero() || r.To.IsZero() || !r.To.After(r.From) {
		return ErrInvalidRequest
	}
	return nil
}
