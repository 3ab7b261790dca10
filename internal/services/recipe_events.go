// internal/services/recipe_events.go
package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/nutriforum/pricing-backend/internal/models"
)

// RecipeRecalcRequest asks the recipe pricing collaborator to recompute every
// composite item that uses FoodID. This service never waits for the result.
type RecipeRecalcRequest struct {
	FoodID       uuid.UUID           `json:"food_id"`
	PriceUnit    models.PriceUnit    `json:"price_unit"`
	Currency     string              `json:"currency"`
	OldBasePrice decimal.NullDecimal `json:"old_base_price"`
	NewBasePrice decimal.NullDecimal `json:"new_base_price"`
	RequestedBy  string              `json:"requested_by"`
	RequestedAt  time.Time           `json:"requested_at"`
}

// RecipeRecalcPublisher hands requests off without blocking the caller.
type RecipeRecalcPublisher interface {
	Publish(ctx context.Context, req RecipeRecalcRequest) error
}

// KafkaRecipePublisher writes requests to a topic keyed by food id.
type KafkaRecipePublisher struct {
	writer *kafka.Writer
}

func NewKafkaRecipePublisher(brokers []string, topic string) *KafkaRecipePublisher {
	return &KafkaRecipePublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			Async:                  true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					logrus.WithError(err).WithField("messages", len(messages)).Error("Failed to deliver recipe recalculation requests")
				}
			},
		},
	}
}

func (p *KafkaRecipePublisher) Publish(ctx context.Context, req RecipeRecalcRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte("recipe.recalc." + req.FoodID.String()),
		Value: payload,
	})
}

func (p *KafkaRecipePublisher) Close() error {
	return p.writer.Close()
}

// QueueRecipePublisher buffers requests in memory for an in-process consumer.
// When the buffer is full the request is dropped and logged.
type QueueRecipePublisher struct {
	queue chan RecipeRecalcRequest
}

func NewQueueRecipePublisher(size int) *QueueRecipePublisher {
	if size < 1 {
		size = 1
	}
	return &QueueRecipePublisher{queue: make(chan RecipeRecalcRequest, size)}
}

func (p *QueueRecipePublisher) Publish(ctx context.Context, req RecipeRecalcRequest) error {
	select {
	case p.queue <- req:
	default:
		logrus.WithField("food_id", req.FoodID).Warn("Recipe recalculation queue full, request dropped")
	}
	return nil
}

// Requests exposes the buffered requests to the consumer.
func (p *QueueRecipePublisher) Requests() <-chan RecipeRecalcRequest {
	return p.queue
}

// Drain hands queued requests to handle until ctx is done.
func (p *QueueRecipePublisher) Drain(ctx context.Context, handle func(RecipeRecalcRequest)) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-p.queue:
			handle(req)
		}
	}
}
