package notify

import (
	"context"
	"log/slog"
	"sync"

	"boomcard/pkg/logger"
)

// LogNotifier writes notifications to the structured log. It is the
// default when no Kafka brokers are configured (local development).
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, kind Kind, userID string, payload map[string]any) error {
	logger.From(ctx).Info("notification",
		slog.String("kind", string(kind)),
		slog.String("user_id", userID),
		slog.Any("payload", payload),
	)
	return nil
}

func (LogNotifier) NotifyRole(ctx context.Context, role string, kind Kind, payload map[string]any) error {
	logger.From(ctx).Info("notification",
		slog.String("kind", string(kind)),
		slog.String("role", role),
		slog.Any("payload", payload),
	)
	return nil
}

// Sent is a recorded notification, used by MemoryNotifier in tests.
type Sent struct {
	Kind    Kind
	UserID  string
	Role    string
	Payload map[string]any
}

// MemoryNotifier records notifications for assertions in tests.
// FailWith makes every call return that error, to exercise the rule
// that notification failures never fail the operation.
type MemoryNotifier struct {
	mu       sync.Mutex
	Messages []Sent
	FailWith error
}

func (m *MemoryNotifier) Notify(ctx context.Context, kind Kind, userID string, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.Messages = append(m.Messages, Sent{Kind: kind, UserID: userID, Payload: payload})
	return nil
}

func (m *MemoryNotifier) NotifyRole(ctx context.Context, role string, kind Kind, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.Messages = append(m.Messages, Sent{Kind: kind, Role: role, Payload: payload})
	return nil
}

// ByKind returns recorded messages matching kind.
func (m *MemoryNotifier) ByKind(kind Kind) []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Sent
	for _, s := range m.Messages {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}
