// internal/services/threshold_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nutriforum/pricing-backend/internal/database"
	"github.com/nutriforum/pricing-backend/internal/models"
	"github.com/nutriforum/pricing-backend/internal/pricing"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

type ThresholdService struct {
	db            *gorm.DB
	audits        *AuditService
	minSampleSize int
	recalcAfter   int
	now           func() time.Time
}

type ThresholdFilter struct {
	Currency  string            `json:"currency,omitempty"`
	PriceUnit *models.PriceUnit `json:"price_unit,omitempty"`
}

type RecalculationResult struct {
	Threshold    *models.PriceCategoryThreshold `json:"threshold"`
	Skipped      bool                           `json:"skipped"`
	SampleSize   int                            `json:"sample_size"`
	Reclassified int                            `json:"reclassified"`
	AuditID      *uuid.UUID                     `json:"audit_id,omitempty"`
}

func NewThresholdService(db *gorm.DB, audits *AuditService, minSampleSize, recalcAfter int) *ThresholdService {
	return &ThresholdService{
		db:            db,
		audits:        audits,
		minSampleSize: minSampleSize,
		recalcAfter:   recalcAfter,
		now:           time.Now,
	}
}

func (s *ThresholdService) List(ctx context.Context, filter ThresholdFilter) ([]models.PriceCategoryThreshold, error) {
	query := s.db.WithContext(ctx).Model(&models.PriceCategoryThreshold{})

	if filter.Currency != "" {
		query = query.Where("currency = ?", normalizeCurrency(filter.Currency))
	}
	if filter.PriceUnit != nil {
		query = query.Where("price_unit = ?", *filter.PriceUnit)
	}

	var thresholds []models.PriceCategoryThreshold
	if err := query.Order("currency ASC").Order("price_unit ASC").Find(&thresholds).Error; err != nil {
		return nil, &StorageError{Op: "list price thresholds", Err: err}
	}

	return thresholds, nil
}

func (s *ThresholdService) Get(ctx context.Context, unit models.PriceUnit, currency string) (*models.PriceCategoryThreshold, error) {
	threshold, err := s.lookup(s.db.WithContext(ctx), unit, normalizeCurrency(currency), false)
	if err != nil {
		return nil, err
	}
	if threshold == nil {
		return nil, &NotFoundError{Resource: "price threshold", ID: pairID(unit, currency)}
	}
	return threshold, nil
}

// Recalculate recomputes the tier bounds of a (unit, currency) pair from every
// priced food in it, then re-classifies the foods without an override. With
// fewer priced foods than the minimum sample nothing is written.
func (s *ThresholdService) Recalculate(ctx context.Context, unit models.PriceUnit, currency, actor, reason string) (*RecalculationResult, error) {
	currency = normalizeCurrency(currency)
	if err := validatePair(unit, currency); err != nil {
		return nil, err
	}

	var result *RecalculationResult
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		result, err = s.recalculateTx(tx, unit, currency, actor, reason)
		return err
	})
	if err != nil {
		return nil, storageErr("recalculate price thresholds", err)
	}

	logrus.WithFields(logrus.Fields{
		"price_unit":   unit,
		"currency":     currency,
		"actor":        actor,
		"sample_size":  result.SampleSize,
		"skipped":      result.Skipped,
		"reclassified": result.Reclassified,
	}).Info("Price thresholds recalculated")

	return result, nil
}

// RecalculateStale recalculates every pair that has seen at least the
// configured number of priced writes since its last recalculation.
func (s *ThresholdService) RecalculateStale(ctx context.Context) ([]RecalculationResult, error) {
	var stale []models.PriceCategoryThreshold
	err := s.db.WithContext(ctx).
		Where("updates_since_recalculation >= ?", s.recalcAfter).
		Find(&stale).Error
	if err != nil {
		return nil, &StorageError{Op: "find stale price thresholds", Err: err}
	}

	results := make([]RecalculationResult, 0, len(stale))
	for _, t := range stale {
		reason := fmt.Sprintf("automatic recalculation after %d price updates", t.UpdatesSinceRecalculation)
		result, err := s.Recalculate(ctx, t.PriceUnit, t.Currency, models.SystemActor, reason)
		if err != nil {
			var nf *NotFoundError
			if errors.As(err, &nf) {
				logrus.WithField("pair", pairID(t.PriceUnit, t.Currency)).Info("Skipping stale thresholds without priced foods")
				continue
			}
			return results, err
		}
		results = append(results, *result)
	}

	return results, nil
}

// StartStalenessMonitor runs RecalculateStale every interval until ctx is done.
func (s *ThresholdService) StartStalenessMonitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RecalculateStale(ctx); err != nil {
				logrus.WithError(err).Error("Staleness recalculation failed")
			}
		}
	}
}

func (s *ThresholdService) recalculateTx(tx *gorm.DB, unit models.PriceUnit, currency, actor, reason string) (*RecalculationResult, error) {
	// Foods are locked before the threshold row, the same order price updates use.
	var foods []models.Food
	err := database.ForUpdate(tx).
		Where("price_unit = ? AND currency = ? AND base_price IS NOT NULL", unit, currency).
		Order("id ASC").
		Find(&foods).Error
	if err != nil {
		return nil, err
	}

	if len(foods) == 0 {
		return nil, &NotFoundError{Resource: "price threshold pair", ID: pairID(unit, currency)}
	}

	threshold, err := s.lookup(tx, unit, currency, true)
	if err != nil {
		return nil, err
	}

	prices := make([]decimal.Decimal, 0, len(foods))
	for _, f := range foods {
		prices = append(prices, f.BasePrice.Decimal)
	}

	bounds, ok := pricing.Tertiles(prices, s.minSampleSize)
	if !ok {
		return &RecalculationResult{Threshold: threshold, Skipped: true, SampleSize: len(prices)}, nil
	}

	if threshold == nil {
		threshold = &models.PriceCategoryThreshold{PriceUnit: unit, Currency: currency}
	}
	oldLower, oldUpper := threshold.LowerThreshold, threshold.UpperThreshold

	now := s.now().UTC()
	threshold.LowerThreshold = decimal.NewNullDecimal(bounds.Lower)
	threshold.UpperThreshold = decimal.NewNullDecimal(bounds.Upper)
	threshold.SampleSize = len(prices)
	threshold.UpdatesSinceRecalculation = 0
	threshold.LastRecalculatedAt = &now

	if err := tx.Save(threshold).Error; err != nil {
		return nil, err
	}

	reclassified := 0
	for i := range foods {
		food := &foods[i]
		if food.HasOverride() {
			continue
		}
		next := pricing.Derive(food, threshold)
		if pricing.SameCategory(food.Category, next) {
			continue
		}
		if err := tx.Model(food).UpdateColumn("category", next).Error; err != nil {
			return nil, err
		}
		reclassified++
	}

	if reason == "" {
		reason = fmt.Sprintf("recalculated from %d priced foods", len(prices))
	}
	auditID, err := s.audits.Record(tx, &models.PriceAudit{
		ChangeType: models.ChangeTypeThresholdRecalc,
		OldLower:   oldLower,
		OldUpper:   oldUpper,
		NewLower:   threshold.LowerThreshold,
		NewUpper:   threshold.UpperThreshold,
		PriceUnit:  unit,
		Currency:   currency,
		Reason:     reason,
		Actor:      actor,
	})
	if err != nil {
		return nil, err
	}

	return &RecalculationResult{
		Threshold:    threshold,
		SampleSize:   len(prices),
		Reclassified: reclassified,
		AuditID:      &auditID,
	}, nil
}

// lookup returns nil without error when the pair has no threshold row yet.
func (s *ThresholdService) lookup(tx *gorm.DB, unit models.PriceUnit, currency string, lock bool) (*models.PriceCategoryThreshold, error) {
	query := tx
	if lock {
		query = database.ForUpdate(tx)
	}

	var threshold models.PriceCategoryThreshold
	err := query.Where("price_unit = ? AND currency = ?", unit, currency).First(&threshold).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &threshold, nil
}

// registerPricedWrite bumps the staleness counter of the pair, creating the
// threshold row on the first priced food.
func (s *ThresholdService) registerPricedWrite(tx *gorm.DB, unit models.PriceUnit, currency string) error {
	seed := &models.PriceCategoryThreshold{PriceUnit: unit, Currency: currency}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
		return err
	}

	return tx.Model(&models.PriceCategoryThreshold{}).
		Where("price_unit = ? AND currency = ?", unit, currency).
		UpdateColumn("updates_since_recalculation", gorm.Expr("updates_since_recalculation + ?", 1)).Error
}

func validatePair(unit models.PriceUnit, currency string) error {
	if !unit.Valid() {
		return newValidationError("price_unit", "must be one of per_100g, per_unit")
	}
	if !currencyPattern.MatchString(currency) {
		return newValidationError("currency", "must be a three letter currency code")
	}
	return nil
}

func normalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

func pairID(unit models.PriceUnit, currency string) string {
	return fmt.Sprintf("%s/%s", unit, currency)
}
