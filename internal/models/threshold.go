// internal/models/threshold.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceCategoryThreshold holds the tier boundaries for one (price unit, currency)
// pair. Lower and upper stay null until a recalculation had enough samples.
type PriceCategoryThreshold struct {
	BaseModel
	PriceUnit                 PriceUnit           `json:"price_unit" gorm:"type:varchar(20);not null;uniqueIndex:idx_threshold_pair"`
	Currency                  string              `json:"currency" gorm:"type:varchar(3);not null;uniqueIndex:idx_threshold_pair"`
	LowerThreshold            decimal.NullDecimal `json:"lower_threshold" gorm:"type:decimal(12,2)"`
	UpperThreshold            decimal.NullDecimal `json:"upper_threshold" gorm:"type:decimal(12,2)"`
	SampleSize                int                 `json:"sample_size" gorm:"not null;default:0"`
	UpdatesSinceRecalculation int                 `json:"updates_since_recalculation" gorm:"not null;default:0"`
	LastRecalculatedAt        *time.Time          `json:"last_recalculated_at"`
}

func (t *PriceCategoryThreshold) Defined() bool {
	return t != nil && t.LowerThreshold.Valid && t.UpperThreshold.Valid
}
