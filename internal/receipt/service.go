package receipt

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"boomcard/internal/audit"
	"boomcard/internal/card"
	"boomcard/internal/cashback"
	"boomcard/internal/fraud"
	"boomcard/internal/notify"
	"boomcard/internal/rbac"
	"boomcard/internal/venue"
	"boomcard/internal/wallet"
	"boomcard/pkg/logger"

	"github.com/google/uuid"
)

// settlementEstimate is the window quoted to users for receipts that
// leave Submit without a settled payout (manual review, locked wallet).
const settlementEstimate = 48 * time.Hour

// fraudAlertScore is the score at or above which admins get a fraud alert.
const fraudAlertScore = 60

// CardIssuer is the slice of card.Service the pipeline needs.
type CardIssuer interface {
	GetOrCreate(ctx context.Context, userID string, defaultTier card.Tier) (card.Card, error)
}

// Ledger is the slice of wallet.Service the pipeline needs.
type Ledger interface {
	Credit(ctx context.Context, userID string, req wallet.CreditRequest) (wallet.Transaction, wallet.Wallet, error)
}

// Service runs the receipt pipeline: scan intake, fraud decisioning,
// cashback settlement and manual review.
type Service struct {
	repo      Repository
	guard     *Guard
	cards     CardIssuer
	venues    venue.Provider
	merchants fraud.Registry
	ledger    Ledger
	notifier  notify.Notifier
	audits    *audit.Service
	clock     func() time.Time
}

func NewService(repo Repository, guard *Guard, cards CardIssuer, venues venue.Provider, merchants fraud.Registry, ledger Ledger, notifier notify.Notifier, audits *audit.Service) *Service {
	return &Service{
		repo:      repo,
		guard:     guard,
		cards:     cards,
		venues:    venues,
		merchants: merchants,
		ledger:    ledger,
		notifier:  notifier,
		audits:    audits,
		clock:     time.Now,
	}
}

type SubmitRequest struct {
	VenueID   string `json:"venue_id"`
	ImageURL  string `json:"image_url"`
	ImageHash string `json:"image_hash"`

	OCRAmountMinor  int64      `json:"ocr_amount_minor"`
	OCRMerchantName string     `json:"ocr_merchant_name,omitempty"`
	OCRDate         *time.Time `json:"ocr_date,omitempty"`
	OCRConfidence   int        `json:"ocr_confidence"`

	ClaimedAmountMinor int64 `json:"claimed_amount_minor"`

	Lat *float64 `json:"lat,omitempty"`
	Lon *float64 `json:"lon,omitempty"`
}

// SubmissionResult is what the user sees right after scanning.
type SubmissionResult struct {
	Receipt Receipt      `json:"receipt"`
	Fraud   fraud.Result `json:"fraud"`

	// EstimatedSettlementAt is set when the payout is not settled yet.
	EstimatedSettlementAt *time.Time `json:"estimated_settlement_at,omitempty"`
}

// Submit ingests one scanned receipt end to end.
//
// The flow never loses a submission: when signal gathering fails the
// receipt is parked for manual review with a fallback score instead of
// being dropped or silently approved. Notification failures are logged
// and swallowed; they must not fail a submission either.
func (s *Service) Submit(ctx context.Context, userID string, req SubmitRequest) (SubmissionResult, error) {
	// VenueID is optional: without one the scan runs against the global
	// default config and the GPS signals have nothing to compare against.
	if userID == "" || req.ImageHash == "" {
		return SubmissionResult{}, ErrInvalidArgument
	}
	if req.ClaimedAmountMinor <= 0 && req.OCRAmountMinor <= 0 {
		return SubmissionResult{}, ErrInvalidArgument
	}
	if req.OCRConfidence < 0 || req.OCRConfidence > 100 {
		return SubmissionResult{}, ErrInvalidArgument
	}

	now := s.clock()
	log := logger.From(ctx)

	c, err := s.cards.GetOrCreate(ctx, userID, card.TierStandard)
	if err != nil {
		return SubmissionResult{}, err
	}

	cfg, result := s.scoreSubmission(ctx, userID, c.Tier, req, now)

	rec := Receipt{
		ID:                 uuid.NewString(),
		UserID:             userID,
		CardID:             c.ID,
		VenueID:            req.VenueID,
		ImageURL:           req.ImageURL,
		ImageHash:          req.ImageHash,
		OCRAmountMinor:     req.OCRAmountMinor,
		OCRMerchantName:    req.OCRMerchantName,
		OCRDate:            req.OCRDate,
		OCRConfidence:      req.OCRConfidence,
		ClaimedAmountMinor: req.ClaimedAmountMinor,
		Lat:                req.Lat,
		Lon:                req.Lon,
		FraudScore:         result.Score,
		FraudFlags:         result.Flags,
		CashbackStatus:     CashbackNone,
		SubmittedAt:        now.UTC(),
		UpdatedAt:          now.UTC(),
	}

	switch result.Decision {
	case fraud.DecisionAutoApprove:
		rec.Status = StatusApproved
		cb, err := cashback.Calculate(&cfg, billAmount(rec), c.Tier)
		if err != nil {
			return SubmissionResult{}, err
		}
		rec.CashbackAmountMinor = cb.AmountMinor
		rec.CashbackPercent = cb.Percent
		rec.CashbackStatus = CashbackPending
	case fraud.DecisionAutoReject:
		rec.Status = StatusRejected
		rec.RejectionReason = topReason(result.Flags)
	default:
		rec.Status = StatusManualReview
	}

	if err := s.repo.Insert(ctx, rec); err != nil {
		if !errors.Is(err, ErrDuplicateApproved) {
			return SubmissionResult{}, err
		}
		// Lost the race against a concurrent approval of the same image.
		// Downgrade to manual review and keep the submission.
		log.Warn("approved duplicate image race, downgrading to manual review",
			slog.String("receipt_id", rec.ID),
			slog.String("image_hash", rec.ImageHash),
		)
		result = downgradeToDuplicate(result)
		rec.Status = StatusManualReview
		rec.FraudScore = result.Score
		rec.FraudFlags = result.Flags
		rec.CashbackAmountMinor = 0
		rec.CashbackPercent = 0
		rec.CashbackStatus = CashbackNone
		if err := s.repo.Insert(ctx, rec); err != nil {
			return SubmissionResult{}, err
		}
	}

	if rec.Status == StatusApproved {
		if err := s.settleCashback(ctx, &rec); err != nil {
			// The approval stands; the payout stays PENDING and is retried
			// out of band or on review.
			log.Warn("cashback settlement failed",
				slog.String("receipt_id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.notifyOutcome(ctx, rec, result)

	return SubmissionResult{
		Receipt:               rec,
		Fraud:                 result,
		EstimatedSettlementAt: s.estimateSettlement(rec, now),
	}, nil
}

// scoreSubmission gathers every contextual signal and scores the
// submission. Any gathering failure degrades to the fallback result; the
// venue config falls back to defaults so a later cashback calculation
// still has sane numbers.
func (s *Service) scoreSubmission(ctx context.Context, userID string, tier card.Tier, req SubmitRequest, now time.Time) (venue.FraudConfig, fraud.Result) {
	log := logger.From(ctx)
	fallback := func(stage string, err error) (venue.FraudConfig, fraud.Result) {
		log.Error("fraud signal gathering failed",
			slog.String("stage", stage),
			slog.String("error", err.Error()),
		)
		return venue.DefaultFraudConfig(), fraud.FallbackResult()
	}

	cfg, err := s.venues.FraudConfigFor(ctx, req.VenueID)
	if err != nil {
		return fallback("venue_config", err)
	}

	venueLoc, err := s.venues.Location(ctx, req.VenueID)
	if err != nil {
		return fallback("venue_location", err)
	}

	rep, err := s.guard.Check(ctx, userID, req.ImageHash, now)
	if err != nil {
		return fallback("guard", err)
	}

	var merchantStatus fraud.MerchantStatus
	if req.OCRMerchantName != "" {
		m, ok, err := s.merchants.Lookup(ctx, req.OCRMerchantName)
		if err != nil {
			return fallback("merchant_registry", err)
		}
		if ok {
			merchantStatus = m.Status
		}
	}

	var loc *venue.LatLon
	if req.Lat != nil && req.Lon != nil {
		loc = &venue.LatLon{Lat: *req.Lat, Lon: *req.Lon}
	}

	return cfg, fraud.Score(fraud.Input{
		IsDuplicate:          rep.IsDuplicate,
		SubmissionsToday:     rep.SubmissionsToday,
		SubmissionsThisMonth: rep.SubmissionsThisMonth,
		RecentSubmissions:    rep.RecentSubmissions,
		OCRAmountMinor:       req.OCRAmountMinor,
		UserAmountMinor:      req.ClaimedAmountMinor,
		OCRConfidence:        req.OCRConfidence,
		Location:             loc,
		VenueLocation:        venueLoc,
		MerchantStatus:       merchantStatus,
		CardTier:             tier,
		SubmittedAt:          now,
		Config:               cfg,
	})
}

// settleCashback credits the wallet and marks the receipt settled.
// It runs detached from the request context: once the receipt is
// APPROVED the money step must not be abandoned by a client disconnect.
// The idempotency key is derived from the receipt, so a crash between
// credit and update is repaired by the next retry, not double-paid.
func (s *Service) settleCashback(ctx context.Context, rec *Receipt) error {
	ctx = context.WithoutCancel(ctx)

	tx, _, err := s.ledger.Credit(ctx, rec.UserID, wallet.CreditRequest{
		AmountMinor:    rec.CashbackAmountMinor,
		Type:           wallet.TypeCashbackCredit,
		Description:    "cashback for receipt " + rec.ID,
		ReceiptID:      rec.ID,
		IdempotencyKey: "cashback:" + rec.ID,
	})
	if err != nil {
		return err
	}

	rec.CashbackStatus = CashbackSettled
	rec.CashbackTransactionID = tx.ID
	rec.UpdatedAt = s.clock().UTC()
	if err := s.repo.Update(ctx, *rec); err != nil {
		// Money already moved and is safe behind the idempotency key.
		logger.From(ctx).Error("receipt settle update failed after credit",
			slog.String("receipt_id", rec.ID),
			slog.String("transaction_id", tx.ID),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.notifyUser(ctx, notify.KindCashbackCredited, rec.UserID, map[string]any{
		"receipt_id":            rec.ID,
		"cashback_amount_minor": rec.CashbackAmountMinor,
		"transaction_id":        tx.ID,
	})
	return nil
}

func (s *Service) notifyOutcome(ctx context.Context, rec Receipt, result fraud.Result) {
	payload := map[string]any{
		"receipt_id":  rec.ID,
		"status":      string(rec.Status),
		"fraud_score": result.Score,
	}

	switch rec.Status {
	case StatusApproved:
		s.notifyUser(ctx, notify.KindReceiptApproved, rec.UserID, payload)
	case StatusRejected:
		payload["rejection_reason"] = rec.RejectionReason
		s.notifyUser(ctx, notify.KindReceiptRejected, rec.UserID, payload)
	default:
		s.notifyUser(ctx, notify.KindReceiptUnderReview, rec.UserID, payload)
	}

	if result.Score >= fraudAlertScore {
		if err := s.notifier.NotifyRole(ctx, rbac.RoleAdmin, notify.KindFraudAlert, map[string]any{
			"receipt_id":  rec.ID,
			"user_id":     rec.UserID,
			"fraud_score": result.Score,
		}); err != nil {
			logger.From(ctx).Warn("fraud alert failed", slog.String("error", err.Error()))
		}
	}
}

func (s *Service) notifyUser(ctx context.Context, kind notify.Kind, userID string, payload map[string]any) {
	if err := s.notifier.Notify(ctx, kind, userID, payload); err != nil {
		logger.From(ctx).Warn("notification failed",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) estimateSettlement(rec Receipt, now time.Time) *time.Time {
	if rec.Status == StatusManualReview || rec.CashbackStatus == CashbackPending {
		t := now.UTC().Add(settlementEstimate)
		return &t
	}
	return nil
}

// Get returns a receipt visible to its owner; reviewers pass their own
// checks before calling.
func (s *Service) Get(ctx context.Context, id string) (Receipt, error) {
	if id == "" {
		return Receipt{}, ErrInvalidArgument
	}
	return s.repo.FindByID(ctx, id)
}

// ListForUser returns the user's submission history, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string, limit int) ([]Receipt, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

// ReviewQueue returns receipts waiting for a decision, oldest first.
func (s *Service) ReviewQueue(ctx context.Context, limit int) ([]Receipt, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListByStatus(ctx, StatusManualReview, limit)
}

// billAmount is the amount cashback is computed on: the reviewer's
// verified amount wins, then the user's claim, then OCR.
func billAmount(r Receipt) int64 {
	if r.VerifiedAmountMinor > 0 {
		return r.VerifiedAmountMinor
	}
	if r.ClaimedAmountMinor > 0 {
		return r.ClaimedAmountMinor
	}
	return r.OCRAmountMinor
}

// topReason picks the heaviest flag as the user-facing rejection reason.
func topReason(flags []fraud.Flag) string {
	best := ""
	bestPoints := 0
	for _, f := range flags {
		if f.Points > bestPoints {
			best = string(f.Code)
			bestPoints = f.Points
		}
	}
	return best
}

// downgradeToDuplicate rewrites a result after losing the approved-image
// race: the submission is a duplicate whatever the original signals said.
func downgradeToDuplicate(r fraud.Result) fraud.Result {
	hasDup := false
	for _, f := range r.Flags {
		if f.Code == fraud.ReasonDuplicateImage {
			hasDup = true
			break
		}
	}
	if !hasDup {
		r.Flags = append(r.Flags, fraud.Flag{
			Code:        fraud.ReasonDuplicateImage,
			Description: "receipt image was already submitted",
			Points:      40,
		})
		r.Score += 40
		if r.Score > 100 {
			r.Score = 100
		}
	}
	r.Decision = fraud.DecisionManualReview
	return r
}
