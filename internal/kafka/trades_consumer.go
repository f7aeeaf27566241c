package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/khliao/invest-command/internal/models"
)

// TradeLogRepository defines the interface for trade log operations
type TradeLogRepository interface {
	AppendTrade(trade models.TradeRecord) error
}

// TradesConsumer appends executed trades arriving on Kafka to the
// trade log, so fills reported by an external executor show up next to
// manually entered rows.
type TradesConsumer struct {
	reader *kafka.Reader
	repo   TradeLogRepository
}

// NewTradesConsumer creates a new Kafka consumer for trade events
func NewTradesConsumer(brokers []string, topic, groupID string, repo TradeLogRepository) *TradesConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID + "-trades",
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &TradesConsumer{
		reader: reader,
		repo:   repo,
	}
}

// Start begins consuming messages from Kafka
func (c *TradesConsumer) Start(ctx context.Context) error {
	log.Printf("Starting trades consumer for topic: %s", c.reader.Config().Topic)

	for {
		select {
		case <-ctx.Done():
			log.Println("Trades consumer shutting down...")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil // Context cancelled, normal shutdown
				}
				log.Printf("Error reading trade message: %v", err)
				continue
			}

			if err := c.processMessage(msg); err != nil {
				log.Printf("Error processing trade message: %v", err)
				// Continue processing other messages
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *TradesConsumer) processMessage(msg kafka.Message) error {
	log.Printf("Received trade message from partition %d offset %d: key=%s",
		msg.Partition, msg.Offset, string(msg.Key))

	var event models.TradeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal trade event: %w", err)
	}

	if event.EventType != "TRADE_EXECUTED" {
		log.Printf("Ignoring unknown trade event type: %s", event.EventType)
		return nil
	}

	trade := event.Data
	switch trade.Action {
	case models.ActionBuy, models.ActionSell, models.ActionPledge:
	default:
		return fmt.Errorf("invalid trade action: %q", trade.Action)
	}
	if trade.Date == "" {
		trade.Date = time.Now().Format("2006-01-02")
	}

	if err := c.repo.AppendTrade(trade); err != nil {
		return fmt.Errorf("failed to append trade %s %s: %w", trade.Action, trade.Symbol, err)
	}

	log.Printf("Appended trade: %s %s total=%s", trade.Action, trade.Symbol, trade.TotalAmount)
	return nil
}

// Close closes the Kafka consumer
func (c *TradesConsumer) Close() error {
	return c.reader.Close()
}
