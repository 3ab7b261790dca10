// Package testutil provides an in-memory database and fixtures for tests.
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nutriforum/pricing-backend/internal/database"
	"github.com/nutriforum/pricing-backend/internal/models"
)

// NewDB opens a migrated in-memory SQLite database. A single connection keeps
// every query on the same in-memory schema.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open(sqlite.Open("file::memory:"), "silent")
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.RunMigrations(db))
	return db
}

// CreateFood inserts a food. An empty price leaves it unpriced.
func CreateFood(t testing.TB, db *gorm.DB, name, price string, unit models.PriceUnit, currency string) *models.Food {
	t.Helper()

	food := &models.Food{Name: name, PriceUnit: unit, Currency: currency}
	if price != "" {
		food.BasePrice = decimal.NewNullDecimal(decimal.RequireFromString(price))
	}
	require.NoError(t, db.Create(food).Error)
	return food
}

// CreateThreshold inserts computed bounds for a pair.
func CreateThreshold(t testing.TB, db *gorm.DB, unit models.PriceUnit, currency, lower, upper string) *models.PriceCategoryThreshold {
	t.Helper()

	threshold := &models.PriceCategoryThreshold{
		PriceUnit:      unit,
		Currency:       currency,
		LowerThreshold: decimal.NewNullDecimal(decimal.RequireFromString(lower)),
		UpperThreshold: decimal.NewNullDecimal(decimal.RequireFromString(upper)),
	}
	require.NoError(t, db.Create(threshold).Error)
	return threshold
}

// Dec parses a decimal literal.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
