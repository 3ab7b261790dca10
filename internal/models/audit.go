// internal/models/audit.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PriceAudit is append-only. It has no UpdatedAt or DeletedAt on purpose and the
// hooks below refuse any write other than the initial insert.
type PriceAudit struct {
	ID               uuid.UUID           `json:"id" gorm:"type:uuid;primary_key"`
	FoodID           *uuid.UUID          `json:"food_id" gorm:"type:uuid;index"`
	ChangeType       PriceChangeType     `json:"change_type" gorm:"type:varchar(30);not null;index"`
	OldBasePrice     decimal.NullDecimal `json:"old_base_price" gorm:"type:decimal(12,2)"`
	NewBasePrice     decimal.NullDecimal `json:"new_base_price" gorm:"type:decimal(12,2)"`
	OldPriceCategory *PriceCategory      `json:"old_price_category" gorm:"type:varchar(20)"`
	NewPriceCategory *PriceCategory      `json:"new_price_category" gorm:"type:varchar(20)"`
	OldLower         decimal.NullDecimal `json:"old_lower_threshold,omitempty" gorm:"type:decimal(12,2)"`
	OldUpper         decimal.NullDecimal `json:"old_upper_threshold,omitempty" gorm:"type:decimal(12,2)"`
	NewLower         decimal.NullDecimal `json:"new_lower_threshold,omitempty" gorm:"type:decimal(12,2)"`
	NewUpper         decimal.NullDecimal `json:"new_upper_threshold,omitempty" gorm:"type:decimal(12,2)"`
	PriceUnit        PriceUnit           `json:"price_unit" gorm:"type:varchar(20);index"`
	Currency         string              `json:"currency" gorm:"type:varchar(3)"`
	Reason           string              `json:"reason" gorm:"type:text"`
	Actor            string              `json:"actor" gorm:"size:64;not null"`
	CreatedAt        time.Time           `json:"created_at" gorm:"index"`
}

func (a *PriceAudit) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a *PriceAudit) BeforeUpdate(tx *gorm.DB) error {
	return ErrAuditImmutable
}

func (a *PriceAudit) BeforeDelete(tx *gorm.DB) error {
	return ErrAuditImmutable
}
