package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/khliao/invest-command/internal/models"
)

// PortfolioRepository defines the interface for portfolio table operations
type PortfolioRepository interface {
	ReplacePositions(positions []models.Position) error
}

// PositionsConsumer handles consuming portfolio snapshot events from Kafka
type PositionsConsumer struct {
	reader *kafka.Reader
	repo   PortfolioRepository
}

// NewPositionsConsumer creates a new Kafka consumer for position events
func NewPositionsConsumer(brokers []string, topic, groupID string, repo PortfolioRepository) *PositionsConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID + "-positions", // Separate consumer group for positions
		MinBytes:       10e3,                   // 10KB
		MaxBytes:       10e6,                   // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.LastOffset, // Only read new messages (not historical)
		CommitInterval: time.Second,
	})

	return &PositionsConsumer{
		reader: reader,
		repo:   repo,
	}
}

// Start begins consuming messages from Kafka
func (c *PositionsConsumer) Start(ctx context.Context) error {
	log.Printf("Starting Kafka positions consumer for topic: %s", c.reader.Config().Topic)

	for {
		select {
		case <-ctx.Done():
			log.Println("Positions consumer shutting down...")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil // Context cancelled, normal shutdown
				}
				log.Printf("Error reading positions message: %v", err)
				continue
			}

			if err := c.processMessage(msg); err != nil {
				log.Printf("Error processing positions message: %v", err)
				// Continue processing other messages
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *PositionsConsumer) processMessage(msg kafka.Message) error {
	log.Printf("Received positions message from partition %d offset %d",
		msg.Partition, msg.Offset)

	var event models.PositionsEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal positions event: %w", err)
	}

	// Only process POSITIONS_SNAPSHOT events
	if event.EventType != "POSITIONS_SNAPSHOT" {
		log.Printf("Ignoring event type: %s", event.EventType)
		return nil
	}

	log.Printf("Processing positions snapshot: %d positions", len(event.Data.Positions))

	positions := make([]models.Position, 0, len(event.Data.Positions))
	for _, pd := range event.Data.Positions {
		position, err := convertPositionData(pd)
		if err != nil {
			log.Printf("Warning: failed to convert position %s: %v", pd.Symbol, err)
			continue
		}
		positions = append(positions, position)
	}

	// Replace the whole portfolio table, same semantics as a manual save
	if err := c.repo.ReplacePositions(positions); err != nil {
		return fmt.Errorf("failed to replace positions: %w", err)
	}

	log.Printf("Successfully updated %d positions from snapshot", len(positions))
	return nil
}

// convertPositionData converts Kafka position data to a Position model
func convertPositionData(pd models.PositionData) (models.Position, error) {
	quantity, err := decimal.NewFromString(pd.Quantity)
	if err != nil {
		return models.Position{}, fmt.Errorf("invalid quantity %s: %w", pd.Quantity, err)
	}
	if quantity.Sign() < 0 {
		return models.Position{}, fmt.Errorf("negative quantity %s", pd.Quantity)
	}

	return models.Position{
		Symbol:   pd.Symbol,
		Quantity: quantity,
	}, nil
}

// Close closes the Kafka consumer
func (c *PositionsConsumer) Close() error {
	return c.reader.Close()
}
