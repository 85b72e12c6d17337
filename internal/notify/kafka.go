package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// envelope is the wire format published to the notifications topic.
// Downstream delivery workers (push, email) consume it.
type envelope struct {
	Kind    Kind           `json:"kind"`
	UserID  string         `json:"user_id,omitempty"`
	Role    string         `json:"role,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	SentAt  time.Time      `json:"sent_at"`
}

// KafkaNotifier publishes notification envelopes to a Kafka topic.
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier builds a writer for the given brokers and topic.
// Close must be called on shutdown to flush buffered messages.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  3,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
		},
	}
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

func (n *KafkaNotifier) Notify(ctx context.Context, kind Kind, userID string, payload map[string]any) error {
	return n.publish(ctx, envelope{Kind: kind, UserID: userID, Payload: payload, SentAt: time.Now().UTC()}, userID)
}

func (n *KafkaNotifier) NotifyRole(ctx context.Context, role string, kind Kind, payload map[string]any) error {
	return n.publish(ctx, envelope{Kind: kind, Role: role, Payload: payload, SentAt: time.Now().UTC()}, "role:"+role)
}

func (n *KafkaNotifier) publish(ctx context.Context, e envelope, key string) error {
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// Failures are returned, not logged: callers record the miss.
	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
}
