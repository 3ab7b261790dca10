// internal/models/food.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Food is the priceable view of a food catalog entry. Identity and name are
// owned by the catalog; the price columns are owned here.
type Food struct {
	BaseModel
	Name string `json:"name" gorm:"size:255;not null;index"`

	BasePrice decimal.NullDecimal `json:"base_price" gorm:"type:decimal(12,2)"`
	PriceUnit PriceUnit           `json:"price_unit" gorm:"type:varchar(20);default:'per_100g';index"`
	Currency  string              `json:"currency" gorm:"type:varchar(3);default:'TRY';index"`
	Category  *PriceCategory      `json:"category" gorm:"type:varchar(20);index"`

	CategoryOverriddenBy   *uuid.UUID `json:"category_overridden_by,omitempty" gorm:"type:uuid"`
	CategoryOverrideReason string     `json:"category_override_reason,omitempty" gorm:"type:text"`
	CategoryOverriddenAt   *time.Time `json:"category_overridden_at,omitempty"`

	PriceVersion int64 `json:"price_version" gorm:"not null;default:0"`
}

func (f *Food) IsPriced() bool {
	return f.BasePrice.Valid
}

func (f *Food) HasOverride() bool {
	return f.CategoryOverriddenBy != nil
}

func (f *Food) CategoryValue() string {
	if f.Category == nil {
		return ""
	}
	return string(*f.Category)
}
