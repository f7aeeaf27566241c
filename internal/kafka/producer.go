package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/khliao/invest-command/internal/models"
	"github.com/khliao/invest-command/internal/valuation"
)

// Producer publishes dashboard events to Kafka
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a Kafka producer for the given topic
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return &Producer{writer: writer}
}

// event is the envelope every published message shares.
type event struct {
	EventType string      `json:"event_type"`
	Source    string      `json:"source"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

func (p *Producer) publish(ctx context.Context, eventType, key string, data interface{}) error {
	payload, err := json.Marshal(event{
		EventType: eventType,
		Source:    "invest-command",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}
	return nil
}

// PublishAdvisoryTriggered publishes an ADVISORY_TRIGGERED event when a
// rule or sentiment cutoff fires.
func (p *Producer) PublishAdvisoryTriggered(ctx context.Context, advisory *models.Advisory) error {
	return p.publish(ctx, "ADVISORY_TRIGGERED", "advisory", advisory)
}

// PublishValuationCompleted publishes a VALUATION_COMPLETED event with
// the fresh snapshot.
func (p *Producer) PublishValuationCompleted(ctx context.Context, snap *valuation.Context) error {
	return p.publish(ctx, "VALUATION_COMPLETED", "valuation", snap)
}

// Close closes the Kafka writer
func (p *Producer) Close() error {
	return p.writer.Close()
}
