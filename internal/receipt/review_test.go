package receipt

import (
	"context"
	"errors"
	"testing"

	"boomcard/internal/audit"
	"boomcard/internal/notify"
)

func reviewer() Reviewer {
	return Reviewer{UserID: "admin1", Role: "admin", IPAddress: "10.0.0.1"}
}

// submitForReview parks a receipt in MANUAL_REVIEW: a severe amount
// mismatch (+30) plus moderate OCR confidence (+10) lands between the
// default thresholds.
func submitForReview(t *testing.T, e *env, userID string) Receipt {
	t.Helper()
	req := submitReq()
	req.ImageHash = "hash-review-" + userID
	req.ClaimedAmountMinor = 4000
	req.OCRAmountMinor = 10000
	req.OCRConfidence = 60

	res, err := e.svc.Submit(context.Background(), userID, req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Receipt.Status != StatusManualReview {
		t.Fatalf("expected MANUAL_REVIEW setup, got %s (score %d)", res.Receipt.Status, res.Fraud.Score)
	}
	return res.Receipt
}

func TestReview_ApproveSettlesCashback(t *testing.T) {
	e := newEnv(t)
	rec := submitForReview(t, e, "u1")
	before := e.ledger.creditCount()

	out, err := e.svc.Review(context.Background(), reviewer(), rec.ID, ReviewRequest{
		Action:              ActionApprove,
		VerifiedAmountMinor: 8000,
		Notes:               "receipt legible, amount corrected",
	})
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if out.Status != StatusApproved {
		t.Fatalf("expected APPROVED, got %s", out.Status)
	}
	if out.VerifiedAmountMinor != 8000 {
		t.Fatalf("expected verified amount recorded, got %d", out.VerifiedAmountMinor)
	}
	// Cashback on the verified amount, not the claimed one: 5% of 8000.
	if out.CashbackAmountMinor != 400 {
		t.Fatalf("expected 400 minor cashback, got %d", out.CashbackAmountMinor)
	}
	if out.CashbackStatus != CashbackSettled || out.CashbackTransactionID == "" {
		t.Fatalf("expected settled payout, got %+v", out)
	}
	if out.ReviewedBy != "admin1" || out.ReviewedAt == nil {
		t.Fatalf("expected reviewer provenance, got %+v", out)
	}
	if e.ledger.creditCount() != before+1 {
		t.Fatalf("expected one new credit")
	}

	evs := e.auditRepo.Events()
	if len(evs) != 1 || evs[0].Type != audit.EventTypeReviewDecision || evs[0].ReceiptID != rec.ID {
		t.Fatalf("expected one review audit event, got %+v", evs)
	}
	if got := e.notifier.ByKind(notify.KindReceiptApproved); len(got) == 0 {
		t.Fatalf("expected approval notification")
	}
}

func TestReview_SecondDecisionConflicts(t *testing.T) {
	e := newEnv(t)
	rec := submitForReview(t, e, "u1")

	if _, err := e.svc.Review(context.Background(), reviewer(), rec.ID, ReviewRequest{Action: ActionReject, RejectionReason: "illegible"}); err != nil {
		t.Fatalf("first review: %v", err)
	}
	_, err := e.svc.Review(context.Background(), reviewer(), rec.ID, ReviewRequest{Action: ActionApprove})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on a decided receipt, got %v", err)
	}
}

func TestReview_RejectRequiresReason(t *testing.T) {
	e := newEnv(t)
	rec := submitForReview(t, e, "u1")

	_, err := e.svc.Review(context.Background(), reviewer(), rec.ID, ReviewRequest{Action: ActionReject})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestReview_ApproveReplaySettlesOnce(t *testing.T) {
	// Two approvals cannot happen through Review (the second conflicts),
	// but the credit path itself must be idempotent for crash retries.
	e := newEnv(t)
	rec := submitForReview(t, e, "u1")

	out, err := e.svc.Review(context.Background(), reviewer(), rec.ID, ReviewRequest{Action: ActionApprove})
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if err := e.svc.settleCashback(context.Background(), &out); err != nil {
		t.Fatalf("settle replay: %v", err)
	}
	// One credit per receipt, keyed by the receipt id.
	n := 0
	for key := range e.ledger.byKey {
		if key == "cashback:"+rec.ID {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("expected exactly one credit for the receipt, got %d", n)
	}
}

func TestReview_ApproveDuplicateImageConflicts(t *testing.T) {
	e := newEnv(t)

	// Seed an APPROVED receipt, then a second submission of the same image,
	// which lands in review with the duplicate flag.
	if _, err := e.svc.Submit(context.Background(), "seed-user", submitReq()); err != nil {
		t.Fatalf("seed submit: %v", err)
	}
	res, err := e.svc.Submit(context.Background(), "u1", submitReq())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Receipt.Status != StatusManualReview {
		t.Fatalf("expected MANUAL_REVIEW, got %s", res.Receipt.Status)
	}

	_, err = e.svc.Review(context.Background(), reviewer(), res.Receipt.ID, ReviewRequest{Action: ActionApprove})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when the image is already approved elsewhere, got %v", err)
	}
}

func TestBulkReview_ContinuesPastFailures(t *testing.T) {
	e := newEnv(t)
	rec := submitForReview(t, e, "u1")

	res, err := e.svc.BulkReview(context.Background(), reviewer(), []string{rec.ID, "missing-id"}, ReviewRequest{
		Action:          ActionReject,
		RejectionReason: "campaign fraud ring",
	})
	if err != nil {
		t.Fatalf("bulk review: %v", err)
	}
	if res.SuccessCount != 1 || res.ErrorCount != 1 {
		t.Fatalf("expected 1 success / 1 error, got %+v", res)
	}
	if len(res.FailedIDs) != 1 || res.FailedIDs[0] != "missing-id" {
		t.Fatalf("expected missing-id to fail, got %+v", res.FailedIDs)
	}

	decided, err := e.svc.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if decided.Status != StatusRejected {
		t.Fatalf("expected REJECTED, got %s", decided.Status)
	}
}

func TestReviewQueue_ListsOldestFirst(t *testing.T) {
	e := newEnv(t)
	rec := submitForReview(t, e, "u1")

	queue, err := e.svc.ReviewQueue(context.Background(), 10)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if len(queue) != 1 || queue[0].ID != rec.ID {
		t.Fatalf("expected the parked receipt in the queue, got %+v", queue)
	}
}
