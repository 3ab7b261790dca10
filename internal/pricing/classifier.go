// Package pricing holds the side-effect free price governance rules: tier
// classification, tertile thresholds and the price report state machine.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/nutriforum/pricing-backend/internal/models"
)

// Bounds are the two prices separating the three tiers. Lower <= Upper.
type Bounds struct {
	Lower decimal.Decimal `json:"lower"`
	Upper decimal.Decimal `json:"upper"`
}

// BoundsOf returns the bounds stored on a threshold record, or false while the
// record has not been computed yet.
func BoundsOf(t *models.PriceCategoryThreshold) (Bounds, bool) {
	if !t.Defined() {
		return Bounds{}, false
	}
	return Bounds{Lower: t.LowerThreshold.Decimal, Upper: t.UpperThreshold.Decimal}, true
}

// Tier places price into a band: price <= lower is tier 1, lower < price <= upper
// is tier 2, anything above upper is tier 3.
func Tier(price decimal.Decimal, b Bounds) models.PriceCategory {
	switch {
	case price.LessThanOrEqual(b.Lower):
		return models.PriceCategoryTier1
	case price.LessThanOrEqual(b.Upper):
		return models.PriceCategoryTier2
	default:
		return models.PriceCategoryTier3
	}
}

// Classify returns the category food should carry. An active override is
// returned as is. Otherwise the result is nil when the food is unpriced, when
// threshold is missing or not yet computed, or when threshold belongs to a
// different (unit, currency) pair.
func Classify(food *models.Food, threshold *models.PriceCategoryThreshold) *models.PriceCategory {
	if food.HasOverride() {
		if food.Category == nil {
			return nil
		}
		c := *food.Category
		return &c
	}
	return Derive(food, threshold)
}

// Derive computes the threshold-based category ignoring any override.
func Derive(food *models.Food, threshold *models.PriceCategoryThreshold) *models.PriceCategory {
	if !food.IsPriced() || threshold == nil {
		return nil
	}
	if threshold.PriceUnit != food.PriceUnit || threshold.Currency != food.Currency {
		return nil
	}
	b, ok := BoundsOf(threshold)
	if !ok {
		return nil
	}
	c := Tier(food.BasePrice.Decimal, b)
	return &c
}

// SameCategory compares two nullable categories.
func SameCategory(a, b *models.PriceCategory) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
