// Package consumer reads results published by the recipe pricing collaborator.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/nutriforum/pricing-backend/internal/config"
	"github.com/nutriforum/pricing-backend/internal/models"
	"github.com/nutriforum/pricing-backend/internal/services"
)

type recipeAuditRecorder interface {
	RecordRecipeRecalc(ctx context.Context, event services.RecipeRecalculated) (*models.PriceAudit, error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RecipeConsumer turns "recipe recalculated" events into recipe_recalc audit
// entries.
type RecipeConsumer struct {
	reader messageReader
	audits recipeAuditRecorder
}

func NewRecipeConsumer(cfg config.KafkaConfig, audits recipeAuditRecorder) *RecipeConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.ConsumerGroup,
		Topic:    cfg.RecipeResultsTopic,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &RecipeConsumer{reader: reader, audits: audits}
}

// Run blocks until ctx is cancelled or the reader fails permanently.
func (c *RecipeConsumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("failed to fetch recipe message: %w", err)
		}

		if err := c.processMessage(ctx, msg); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"topic":     msg.Topic,
				"partition": msg.Partition,
				"offset":    msg.Offset,
			}).Error("Failed to process recipe recalculation result")

			var storageErr *services.StorageError
			if errors.As(err, &storageErr) {
				// Stop without committing; the message is redelivered on restart.
				return err
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logrus.WithError(err).Warn("Failed to commit recipe message offset")
		}
	}
}

func (c *RecipeConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event services.RecipeRecalculated
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("malformed recipe recalculation event: %w", err)
	}

	audit, err := c.audits.RecordRecipeRecalc(ctx, event)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"recipe_id": event.RecipeID,
		"food_id":   event.TriggeredByFood,
		"audit_id":  audit.ID,
	}).Debug("Recipe recalculation recorded")
	return nil
}
