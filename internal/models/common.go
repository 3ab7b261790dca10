// internal/models/common.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Enums
type PriceUnit string

const (
	PriceUnitPer100g PriceUnit = "per_100g"
	PriceUnitPerUnit PriceUnit = "per_unit"
)

func (u PriceUnit) Valid() bool {
	return u == PriceUnitPer100g || u == PriceUnitPerUnit
}

// PriceCategory is the relative affordability tier of a food within its
// (price unit, currency) population. Tier1 is the cheapest band.
type PriceCategory string

const (
	PriceCategoryTier1 PriceCategory = "tier_1"
	PriceCategoryTier2 PriceCategory = "tier_2"
	PriceCategoryTier3 PriceCategory = "tier_3"
)

func (c PriceCategory) Valid() bool {
	switch c {
	case PriceCategoryTier1, PriceCategoryTier2, PriceCategoryTier3:
		return true
	}
	return false
}

type PriceChangeType string

const (
	ChangeTypePriceUpdate      PriceChangeType = "price_update"
	ChangeTypeCategoryOverride PriceChangeType = "category_override"
	ChangeTypeThresholdRecalc  PriceChangeType = "threshold_recalc"
	ChangeTypeRecipeRecalc     PriceChangeType = "recipe_recalc"
)

func (t PriceChangeType) Valid() bool {
	switch t {
	case ChangeTypePriceUpdate, ChangeTypeCategoryOverride, ChangeTypeThresholdRecalc, ChangeTypeRecipeRecalc:
		return true
	}
	return false
}

type ReportStatus string

const (
	ReportStatusOpen     ReportStatus = "open"
	ReportStatusInReview ReportStatus = "in_review"
	ReportStatusResolved ReportStatus = "resolved"
)

func (s ReportStatus) Valid() bool {
	return s == ReportStatusOpen || s == ReportStatusInReview || s == ReportStatusResolved
}

type UserRole string

const (
	UserRoleUser      UserRole = "user"
	UserRoleModerator UserRole = "moderator"
	UserRoleAdmin     UserRole = "admin"
)

// CanModerate reports whether the role may drive price governance actions.
func (r UserRole) CanModerate() bool {
	return r == UserRoleModerator || r == UserRoleAdmin
}

// SystemActor is recorded as the actor of changes no moderator triggered.
const SystemActor = "system"
