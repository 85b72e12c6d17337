package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to cardholders.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ActorUserID == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogReviewDecision records a manual review outcome for a receipt.
func (s *Service) LogReviewDecision(ctx context.Context, actorUserID, actorRole, ip, receiptID, decision, notes string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeReviewDecision,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		ReceiptID:   receiptID,
		Message:     decision,
		Metadata:    notes,
	})
}

// LogWalletLock records a wallet freeze or unfreeze.
func (s *Service) LogWalletLock(ctx context.Context, actorUserID, actorRole, ip, targetUserID, walletID string, locked bool, reason string) error {
	t := EventTypeWalletLock
	if !locked {
		t = EventTypeWalletUnlock
	}
	return s.Append(ctx, Event{
		Type:         t,
		ActorUserID:  actorUserID,
		ActorRole:    actorRole,
		IPAddress:    ip,
		TargetUserID: targetUserID,
		WalletID:     walletID,
		Message:      reason,
	})
}

// LogManualCredit records an operator-initiated balance adjustment.
func (s *Service) LogManualCredit(ctx context.Context, actorUserID, actorRole, ip, targetUserID, walletID, transactionID, reason string) error {
	return s.Append(ctx, Event{
		Type:          EventTypeManualCredit,
		ActorUserID:   actorUserID,
		ActorRole:     actorRole,
		IPAddress:     ip,
		TargetUserID:  targetUserID,
		WalletID:      walletID,
		TransactionID: transactionID,
		Message:       reason,
	})
}
