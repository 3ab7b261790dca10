// internal/services/price_service.go
package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nutriforum/pricing-backend/internal/database"
	"github.com/nutriforum/pricing-backend/internal/models"
	"github.com/nutriforum/pricing-backend/internal/pricing"
	"github.com/nutriforum/pricing-backend/internal/utils"
)

// PriceService owns every write to a food's price columns: price updates and
// manual category overrides. Writes to one food are serialized through locker.
type PriceService struct {
	db         *gorm.DB
	thresholds *ThresholdService
	audits     *AuditService
	locker     FoodLocker
	recipes    RecipeRecalcPublisher
	now        func() time.Time
}

type FoodFilter struct {
	utils.PaginationParams
	Currency  string                `json:"currency,omitempty"`
	PriceUnit *models.PriceUnit     `json:"price_unit,omitempty"`
	Category  *models.PriceCategory `json:"category,omitempty"`
}

// PriceInput is a base_price body field. Present distinguishes an explicit
// null, which unprices the food, from a missing key.
type PriceInput struct {
	decimal.NullDecimal
	Present bool
}

// PriceOf returns a present, non-null price.
func PriceOf(d decimal.Decimal) PriceInput {
	return PriceInput{NullDecimal: decimal.NewNullDecimal(d), Present: true}
}

// NoPrice returns an explicit null price.
func NoPrice() PriceInput {
	return PriceInput{Present: true}
}

func (p *PriceInput) UnmarshalJSON(data []byte) error {
	p.Present = true
	if err := p.NullDecimal.UnmarshalJSON(data); err != nil {
		return newValidationError("base_price", "must be a decimal number or null")
	}
	return nil
}

// Prices are stored as numeric(12,2).
const basePriceScale = 2

var maxBasePrice = decimal.New(1, 10)

type UpdatePriceRequest struct {
	BasePrice        PriceInput            `json:"base_price"`
	PriceUnit        models.PriceUnit      `json:"price_unit" validate:"required,price_unit"`
	Currency         string                `json:"currency" validate:"required,len=3"`
	Reason           string                `json:"reason,omitempty" validate:"max=1000"`
	OverrideCategory *models.PriceCategory `json:"override_category,omitempty" validate:"omitempty,price_category"`
	OverrideReason   string                `json:"override_reason,omitempty" validate:"max=1000"`
	ClearOverride    bool                  `json:"clear_override,omitempty"`
}

type PriceUpdateResult struct {
	Food    *models.Food `json:"food"`
	AuditID uuid.UUID    `json:"audit_id"`
}

func NewPriceService(db *gorm.DB, thresholds *ThresholdService, audits *AuditService, locker FoodLocker, recipes RecipeRecalcPublisher) *PriceService {
	return &PriceService{
		db:         db,
		thresholds: thresholds,
		audits:     audits,
		locker:     locker,
		recipes:    recipes,
		now:        time.Now,
	}
}

// Validate checks the request before anything is read or written.
func (r *UpdatePriceRequest) Validate() error {
	r.Currency = normalizeCurrency(r.Currency)

	if r.OverrideCategory != nil && r.ClearOverride {
		return newValidationError("clear_override", "cannot set and clear a category override in the same request")
	}
	if r.OverrideCategory != nil {
		if !r.OverrideCategory.Valid() {
			return newValidationError("override_category", "must be one of tier_1, tier_2, tier_3")
		}
		if strings.TrimSpace(r.OverrideReason) == "" {
			return newValidationError("override_reason", "is required when overriding the category")
		}
	}
	if !r.BasePrice.Present {
		return newValidationError("base_price", "is required, send null to remove the price")
	}
	if r.BasePrice.Valid {
		price := r.BasePrice.Decimal
		if price.IsNegative() {
			return newValidationError("base_price", "must not be negative")
		}
		if !price.Equal(price.Round(basePriceScale)) {
			return newValidationError("base_price", "must have at most 2 decimal places")
		}
		if price.GreaterThanOrEqual(maxBasePrice) {
			return newValidationError("base_price", "must be less than 10000000000")
		}
	}
	return validatePair(r.PriceUnit, r.Currency)
}

func (s *PriceService) ListFoods(ctx context.Context, filter FoodFilter) ([]models.Food, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Food{})

	if filter.Search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Currency != "" {
		query = query.Where("currency = ?", normalizeCurrency(filter.Currency))
	}
	if filter.PriceUnit != nil {
		query = query.Where("price_unit = ?", *filter.PriceUnit)
	}
	if filter.Category != nil {
		query = query.Where("category = ?", *filter.Category)
	}

	// Get total count
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, &StorageError{Op: "count foods", Err: err}
	}

	// Apply sorting and pagination
	allowedSortFields := []string{"created_at", "updated_at", "name", "base_price", "category"}
	query = utils.ApplySort(query, filter.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var foods []models.Food
	if err := query.Find(&foods).Error; err != nil {
		return nil, 0, &StorageError{Op: "list foods", Err: err}
	}

	return foods, total, nil
}

func (s *PriceService) GetFood(ctx context.Context, foodID uuid.UUID) (*models.Food, error) {
	var food models.Food
	if err := s.db.WithContext(ctx).First(&food, "id = ?", foodID).Error; err != nil {
		if isNotFound(err) {
			return nil, &NotFoundError{Resource: "food", ID: foodID.String()}
		}
		return nil, &StorageError{Op: "get food", Err: err}
	}
	return &food, nil
}

// UpdatePrice writes new price fields, re-derives or overrides the category,
// records a price_update audit entry and bumps the staleness counter of the
// affected pair, all in one transaction. Dependent recipes are notified after
// commit.
func (s *PriceService) UpdatePrice(ctx context.Context, foodID, actorID uuid.UUID, req UpdatePriceRequest) (*PriceUpdateResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, foodID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		result   PriceUpdateResult
		before   models.Food
		repriced bool
	)
	err = database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		food, err := s.lockFood(tx, foodID)
		if err != nil {
			return err
		}
		before = *food

		food.BasePrice = req.BasePrice.NullDecimal
		food.PriceUnit = req.PriceUnit
		food.Currency = req.Currency

		switch {
		case req.OverrideCategory != nil:
			s.setOverride(food, actorID, *req.OverrideCategory, req.OverrideReason)
		case req.ClearOverride:
			clearOverride(food)
		}

		if !food.HasOverride() {
			threshold, err := s.thresholds.lookup(tx, food.PriceUnit, food.Currency, false)
			if err != nil {
				return err
			}
			food.Category = pricing.Derive(food, threshold)
		}

		if err := s.saveFood(tx, food, before.PriceVersion); err != nil {
			return err
		}

		reason := req.Reason
		if reason == "" && req.OverrideCategory != nil {
			reason = req.OverrideReason
		}
		auditID, err := s.audits.Record(tx, &models.PriceAudit{
			FoodID:           &food.ID,
			ChangeType:       models.ChangeTypePriceUpdate,
			OldBasePrice:     before.BasePrice,
			NewBasePrice:     food.BasePrice,
			OldPriceCategory: before.Category,
			NewPriceCategory: food.Category,
			PriceUnit:        food.PriceUnit,
			Currency:         food.Currency,
			Reason:           reason,
			Actor:            actorID.String(),
		})
		if err != nil {
			return err
		}

		if food.IsPriced() {
			if err := s.thresholds.registerPricedWrite(tx, food.PriceUnit, food.Currency); err != nil {
				return err
			}
		}

		repriced = priceChanged(&before, food)
		result = PriceUpdateResult{Food: food, AuditID: auditID}
		return nil
	})
	if err != nil {
		return nil, storageErr("update food price", err)
	}

	if repriced {
		s.notifyRecipes(ctx, &before, result.Food, actorID)
	}

	logrus.WithFields(logrus.Fields{
		"food_id":      foodID,
		"actor":        actorID,
		"old_price":    before.BasePrice,
		"new_price":    result.Food.BasePrice,
		"old_category": before.CategoryValue(),
		"new_category": result.Food.CategoryValue(),
	}).Info("Food price updated")

	return &result, nil
}

// ApplyOverride pins a food to category until the override is cleared.
func (s *PriceService) ApplyOverride(ctx context.Context, foodID, actorID uuid.UUID, category models.PriceCategory, reason string) (*PriceUpdateResult, error) {
	if !category.Valid() {
		return nil, newValidationError("category", "must be one of tier_1, tier_2, tier_3")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, newValidationError("reason", "is required when overriding the category")
	}

	return s.mutateCategory(ctx, foodID, actorID, reason, func(tx *gorm.DB, food *models.Food) error {
		s.setOverride(food, actorID, category, reason)
		return nil
	})
}

// ClearOverride removes the manual category and re-derives it from the
// current thresholds of the food's pair.
func (s *PriceService) ClearOverride(ctx context.Context, foodID, actorID uuid.UUID, reason string) (*PriceUpdateResult, error) {
	if reason == "" {
		reason = "category override cleared"
	}

	return s.mutateCategory(ctx, foodID, actorID, reason, func(tx *gorm.DB, food *models.Food) error {
		if !food.HasOverride() {
			return newValidationError("override", "food has no active category override")
		}
		clearOverride(food)

		threshold, err := s.thresholds.lookup(tx, food.PriceUnit, food.Currency, false)
		if err != nil {
			return err
		}
		food.Category = pricing.Derive(food, threshold)
		return nil
	})
}

func (s *PriceService) mutateCategory(ctx context.Context, foodID, actorID uuid.UUID, reason string, mutate func(*gorm.DB, *models.Food) error) (*PriceUpdateResult, error) {
	unlock, err := s.locker.Lock(ctx, foodID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		result      PriceUpdateResult
		oldCategory *models.PriceCategory
	)
	err = database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		food, err := s.lockFood(tx, foodID)
		if err != nil {
			return err
		}
		version := food.PriceVersion
		oldCategory = food.Category

		if err := mutate(tx, food); err != nil {
			return err
		}
		if err := s.saveFood(tx, food, version); err != nil {
			return err
		}

		auditID, err := s.audits.Record(tx, &models.PriceAudit{
			FoodID:           &food.ID,
			ChangeType:       models.ChangeTypeCategoryOverride,
			OldPriceCategory: oldCategory,
			NewPriceCategory: food.Category,
			PriceUnit:        food.PriceUnit,
			Currency:         food.Currency,
			Reason:           reason,
			Actor:            actorID.String(),
		})
		if err != nil {
			return err
		}

		result = PriceUpdateResult{Food: food, AuditID: auditID}
		return nil
	})
	if err != nil {
		return nil, storageErr("change food category", err)
	}

	logrus.WithFields(logrus.Fields{
		"food_id":      foodID,
		"actor":        actorID,
		"old_category": categoryString(oldCategory),
		"new_category": result.Food.CategoryValue(),
		"overridden":   result.Food.HasOverride(),
	}).Info("Food price category changed")

	return &result, nil
}

func (s *PriceService) lockFood(tx *gorm.DB, foodID uuid.UUID) (*models.Food, error) {
	var food models.Food
	if err := database.ForUpdate(tx).First(&food, "id = ?", foodID).Error; err != nil {
		if isNotFound(err) {
			return nil, &NotFoundError{Resource: "food", ID: foodID.String()}
		}
		return nil, err
	}
	return &food, nil
}

// saveFood writes the price columns only if nobody else bumped the version
// since food was read.
func (s *PriceService) saveFood(tx *gorm.DB, food *models.Food, expectedVersion int64) error {
	food.PriceVersion = expectedVersion + 1
	food.UpdatedAt = s.now().UTC()

	res := tx.Model(food).
		Where("price_version = ?", expectedVersion).
		Select(
			"base_price", "price_unit", "currency", "category",
			"category_overridden_by", "category_override_reason", "category_overridden_at",
			"price_version", "updated_at",
		).
		Updates(food)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &ConflictError{Resource: "food", ID: food.ID.String()}
	}
	return nil
}

func (s *PriceService) setOverride(food *models.Food, actorID uuid.UUID, category models.PriceCategory, reason string) {
	now := s.now().UTC()
	moderator := actorID
	food.Category = &category
	food.CategoryOverriddenBy = &moderator
	food.CategoryOverrideReason = strings.TrimSpace(reason)
	food.CategoryOverriddenAt = &now
}

func clearOverride(food *models.Food) {
	food.CategoryOverriddenBy = nil
	food.CategoryOverrideReason = ""
	food.CategoryOverriddenAt = nil
}

func (s *PriceService) notifyRecipes(ctx context.Context, before, after *models.Food, actorID uuid.UUID) {
	if s.recipes == nil {
		return
	}

	req := RecipeRecalcRequest{
		FoodID:       after.ID,
		PriceUnit:    after.PriceUnit,
		Currency:     after.Currency,
		OldBasePrice: before.BasePrice,
		NewBasePrice: after.BasePrice,
		RequestedBy:  actorID.String(),
		RequestedAt:  s.now().UTC(),
	}
	if err := s.recipes.Publish(ctx, req); err != nil {
		logrus.WithError(err).WithField("food_id", after.ID).Warn("Failed to enqueue recipe recalculation")
	}
}

func priceChanged(before, after *models.Food) bool {
	if before.PriceUnit != after.PriceUnit || before.Currency != after.Currency {
		return true
	}
	if before.BasePrice.Valid != after.BasePrice.Valid {
		return true
	}
	return before.BasePrice.Valid && !before.BasePrice.Decimal.Equal(after.BasePrice.Decimal)
}

func categoryString(c *models.PriceCategory) string {
	if c == nil {
		return ""
	}
	return string(*c)
}
