// internal/services/audit_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nutriforum/pricing-backend/internal/models"
)

type AuditService struct {
	db           *gorm.DB
	defaultLimit int
	maxLimit     int
	now          func() time.Time
}

type AuditFilter struct {
	ChangeType *models.PriceChangeType `json:"change_type,omitempty"`
	PriceUnit  *models.PriceUnit       `json:"price_unit,omitempty"`
	FoodID     *uuid.UUID              `json:"food_id,omitempty"`
	Limit      int                     `json:"limit,omitempty"`
}

// RecipeRecalculated is reported back by the recipe pricing collaborator once
// a composite item has been repriced.
type RecipeRecalculated struct {
	RecipeID        uuid.UUID           `json:"recipe_id"`
	TriggeredByFood uuid.UUID           `json:"triggered_by_food_id"`
	PriceUnit       models.PriceUnit    `json:"price_unit"`
	Currency        string              `json:"currency"`
	OldBasePrice    decimal.NullDecimal `json:"old_base_price"`
	NewBasePrice    decimal.NullDecimal `json:"new_base_price"`
	CompletedAt     time.Time           `json:"completed_at"`
}

func NewAuditService(db *gorm.DB, defaultLimit, maxLimit int) *AuditService {
	return &AuditService{
		db:           db,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		now:          time.Now,
	}
}

// Record appends entry inside tx. The caller's mutation and the entry commit
// or roll back together.
func (s *AuditService) Record(tx *gorm.DB, entry *models.PriceAudit) (uuid.UUID, error) {
	if !entry.ChangeType.Valid() {
		return uuid.Nil, fmt.Errorf("unknown audit change type %q", entry.ChangeType)
	}
	if entry.Actor == "" {
		entry.Actor = models.SystemActor
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}

	if err := tx.Create(entry).Error; err != nil {
		return uuid.Nil, &StorageError{Op: "record price audit", Err: err}
	}

	logrus.WithFields(logrus.Fields{
		"audit_id":    entry.ID,
		"change_type": entry.ChangeType,
		"food_id":     entry.FoodID,
		"actor":       entry.Actor,
	}).Info("Price audit recorded")

	return entry.ID, nil
}

// Query returns the newest entries first, capped at the configured maximum.
func (s *AuditService) Query(ctx context.Context, filter AuditFilter) ([]models.PriceAudit, error) {
	limit := s.clampLimit(filter.Limit)

	var audits []models.PriceAudit
	err := s.filtered(ctx, filter).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&audits).Error
	if err != nil {
		return nil, &StorageError{Op: "query price audits", Err: err}
	}

	return audits, nil
}

// Each walks every entry matching filter, newest first, in pages of batchSize.
// The limit of filter is ignored. Pages continue from the (created_at, id) of
// the last entry seen, so entries appended during the walk are not visited.
func (s *AuditService) Each(ctx context.Context, filter AuditFilter, batchSize int, fn func(models.PriceAudit) error) (int, error) {
	if batchSize < 1 {
		batchSize = s.maxLimit
	}

	count := 0
	var last *models.PriceAudit
	for {
		query := s.filtered(ctx, filter)
		if last != nil {
			query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", last.CreatedAt, last.CreatedAt, last.ID)
		}

		var batch []models.PriceAudit
		err := query.
			Order("created_at DESC").
			Order("id DESC").
			Limit(batchSize).
			Find(&batch).Error
		if err != nil {
			return count, &StorageError{Op: "read price audits", Err: err}
		}

		for _, entry := range batch {
			if err := fn(entry); err != nil {
				return count, err
			}
			count++
		}

		if len(batch) < batchSize {
			return count, nil
		}
		last = &batch[len(batch)-1]
	}
}

// RecordRecipeRecalc stores the outcome of a downstream recipe repricing.
func (s *AuditService) RecordRecipeRecalc(ctx context.Context, event RecipeRecalculated) (*models.PriceAudit, error) {
	if event.RecipeID == uuid.Nil {
		return nil, newValidationError("recipe_id", "is required")
	}

	recipeID := event.RecipeID
	entry := &models.PriceAudit{
		FoodID:       &recipeID,
		ChangeType:   models.ChangeTypeRecipeRecalc,
		OldBasePrice: event.OldBasePrice,
		NewBasePrice: event.NewBasePrice,
		PriceUnit:    event.PriceUnit,
		Currency:     event.Currency,
		Reason:       fmt.Sprintf("recalculated after price change of food %s", event.TriggeredByFood),
		Actor:        models.SystemActor,
	}
	if !event.CompletedAt.IsZero() {
		entry.CreatedAt = event.CompletedAt.UTC()
	}

	if _, err := s.Record(s.db.WithContext(ctx), entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *AuditService) filtered(ctx context.Context, filter AuditFilter) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.PriceAudit{})

	if filter.ChangeType != nil {
		query = query.Where("change_type = ?", *filter.ChangeType)
	}
	if filter.PriceUnit != nil {
		query = query.Where("price_unit = ?", *filter.PriceUnit)
	}
	if filter.FoodID != nil {
		query = query.Where("food_id = ?", *filter.FoodID)
	}

	return query
}

func (s *AuditService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.defaultLimit
	}
	if limit > s.maxLimit {
		return s.maxLimit
	}
	return limit
}
