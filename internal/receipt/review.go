package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"boomcard/internal/card"
	"boomcard/internal/cashback"
	"boomcard/internal/notify"
	"boomcard/pkg/logger"
)

type ReviewAction string

const (
	ActionApprove ReviewAction = "APPROVE"
	ActionReject  ReviewAction = "REJECT"
)

// Reviewer identifies who is making the decision, for audit capture.
type Reviewer struct {
	UserID    string
	Role      string
	IPAddress string
}

type ReviewRequest struct {
	Action ReviewAction `json:"action"`

	// VerifiedAmountMinor corrects the bill amount on approval. Zero means
	// the reviewer accepted the claimed/OCR amount.
	VerifiedAmountMinor int64 `json:"verified_amount_minor,omitempty"`

	Notes string `json:"notes,omitempty"`

	// RejectionReason is required for REJECT.
	RejectionReason string `json:"rejection_reason,omitempty"`
}

// Review resolves a receipt that is waiting on a human decision.
//
// Only MANUAL_REVIEW and PENDING receipts can be reviewed; a second call
// on the same receipt returns ErrConflict. Approval recomputes cashback
// with the reviewer's verified amount and the user's current card tier,
// then settles it through the same idempotent credit path as auto
// approval, so replays and crashes cannot double-pay.
func (s *Service) Review(ctx context.Context, reviewer Reviewer, receiptID string, req ReviewRequest) (Receipt, error) {
	if reviewer.UserID == "" || receiptID == "" {
		return Receipt{}, ErrInvalidArgument
	}
	switch req.Action {
	case ActionApprove:
		if req.VerifiedAmountMinor < 0 {
			return Receipt{}, ErrInvalidArgument
		}
	case ActionReject:
		if req.RejectionReason == "" {
			return Receipt{}, ErrInvalidArgument
		}
	default:
		return Receipt{}, ErrInvalidArgument
	}

	rec, err := s.repo.FindByID(ctx, receiptID)
	if err != nil {
		return Receipt{}, err
	}
	if rec.Status != StatusManualReview && rec.Status != StatusPending {
		return Receipt{}, fmt.Errorf("%w: receipt is %s", ErrConflict, rec.Status)
	}

	now := s.clock().UTC()
	rec.ReviewedBy = reviewer.UserID
	rec.ReviewNotes = req.Notes
	rec.ReviewedAt = &now
	rec.UpdatedAt = now

	switch req.Action {
	case ActionApprove:
		if err := s.approve(ctx, &rec, req.VerifiedAmountMinor); err != nil {
			return Receipt{}, err
		}
	case ActionReject:
		rec.Status = StatusRejected
		rec.RejectionReason = req.RejectionReason
		rec.CashbackStatus = CashbackNone
		rec.CashbackAmountMinor = 0
		rec.CashbackPercent = 0
		if err := s.repo.Update(ctx, rec); err != nil {
			return Receipt{}, err
		}
	}

	s.recordReview(ctx, reviewer, rec, req)

	switch rec.Status {
	case StatusApproved:
		s.notifyUser(ctx, notify.KindReceiptApproved, rec.UserID, map[string]any{
			"receipt_id":            rec.ID,
			"status":                string(rec.Status),
			"cashback_amount_minor": rec.CashbackAmountMinor,
		})
	case StatusRejected:
		s.notifyUser(ctx, notify.KindReceiptRejected, rec.UserID, map[string]any{
			"receipt_id":       rec.ID,
			"status":           string(rec.Status),
			"rejection_reason": rec.RejectionReason,
		})
	}

	return rec, nil
}

func (s *Service) approve(ctx context.Context, rec *Receipt, verifiedAmountMinor int64) error {
	if verifiedAmountMinor > 0 {
		rec.VerifiedAmountMinor = verifiedAmountMinor
	}

	// The payout uses the tier the user holds now, not at submission.
	c, err := s.cards.GetOrCreate(ctx, rec.UserID, card.TierStandard)
	if err != nil {
		return err
	}
	cfg, err := s.venues.FraudConfigFor(ctx, rec.VenueID)
	if err != nil {
		return err
	}

	cb, err := cashback.Calculate(&cfg, billAmount(*rec), c.Tier)
	if err != nil {
		return err
	}

	rec.Status = StatusApproved
	rec.RejectionReason = ""
	rec.CashbackAmountMinor = cb.AmountMinor
	rec.CashbackPercent = cb.Percent
	rec.CashbackStatus = CashbackPending

	if err := s.repo.Update(ctx, *rec); err != nil {
		if errors.Is(err, ErrDuplicateApproved) {
			return fmt.Errorf("%w: another receipt with this image is already approved", ErrConflict)
		}
		return err
	}

	if err := s.settleCashback(ctx, rec); err != nil {
		logger.From(ctx).Warn("cashback settlement failed after review approval",
			slog.String("receipt_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

func (s *Service) recordReview(ctx context.Context, reviewer Reviewer, rec Receipt, req ReviewRequest) {
	if s.audits == nil {
		return
	}
	if err := s.audits.LogReviewDecision(ctx, reviewer.UserID, reviewer.Role, reviewer.IPAddress, rec.ID, string(req.Action), req.Notes); err != nil {
		logger.From(ctx).Warn("audit append failed", slog.String("error", err.Error()))
	}
}

// BulkReviewResult reports how a batch went. Failures do not stop the
// batch; each receipt is decided independently.
type BulkReviewResult struct {
	SuccessCount int      `json:"success_count"`
	ErrorCount   int      `json:"error_count"`
	FailedIDs    []string `json:"failed_ids,omitempty"`
}

// BulkReview applies one decision to many receipts, continuing past
// per-receipt failures.
func (s *Service) BulkReview(ctx context.Context, reviewer Reviewer, receiptIDs []string, req ReviewRequest) (BulkReviewResult, error) {
	if reviewer.UserID == "" || len(receiptIDs) == 0 {
		return BulkReviewResult{}, ErrInvalidArgument
	}

	var out BulkReviewResult
	for _, id := range receiptIDs {
		if _, err := s.Review(ctx, reviewer, id, req); err != nil {
			logger.From(ctx).Warn("bulk review item failed",
				slog.String("receipt_id", id),
				slog.String("error", err.Error()),
			)
			out.ErrorCount++
			out.FailedIDs = append(out.FailedIDs, id)
			continue
		}
		out.SuccessCount++
	}
	return out, nil
}
