package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/redmonkez12/wheels-api/internal/logging"
)

// Security event types
const (
	TypePasswordResetRequested = "password_reset.requested"
	TypeResetCodeVerified      = "password_reset.code_verified"
	TypePasswordResetCompleted = "password_reset.completed"
	TypePasswordChanged        = "password.changed"
)

// Event is an account security event. It never carries codes, tokens or
// passwords.
type Event struct {
	Type       string    `json:"type"`
	AccountID  uuid.UUID `json:"accountId"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher delivers security events to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// KafkaPublisher writes events to a single topic keyed by account id, so all
// events of one account land on the same partition
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *logging.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *logging.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	logger.Info("kafka publisher initialized", "brokers", brokers, "topic", topic)

	return &KafkaPublisher{writer: writer, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := newMessage(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	p.logger.Debug("published security event", "type", event.Type, "account_id", event.AccountID)
	return nil
}

func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}

func newMessage(event Event) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(event.AccountID.String()),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}, nil
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
