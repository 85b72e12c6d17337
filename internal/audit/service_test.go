package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresTypeAndActor(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{ActorUserID: "u"}); err == nil {
		t.Fatalf("expected error for missing type")
	}
	if err := svc.Append(context.Background(), Event{Type: EventTypeReviewDecision}); err == nil {
		t.Fatalf("expected error for missing actor")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogReviewDecision(context.Background(), "admin1", "admin", "1.2.3.4", "r1", "APPROVE", "looks legit"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].IPAddress != "1.2.3.4" {
		t.Fatalf("expected ip captured")
	}
	if evs[0].Type != EventTypeReviewDecision || evs[0].ReceiptID != "r1" {
		t.Fatalf("unexpected event: %+v", evs[0])
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be filled")
	}
}

func TestService_LogWalletLockPicksEventType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogWalletLock(context.Background(), "admin1", "admin", "", "u9", "w9", true, "fraud review"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogWalletLock(context.Background(), "admin1", "admin", "", "u9", "w9", false, ""); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if evs[0].Type != EventTypeWalletLock || evs[1].Type != EventTypeWalletUnlock {
		t.Fatalf("unexpected types: %s, %s", evs[0].Type, evs[1].Type)
	}
}
