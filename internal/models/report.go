// internal/models/report.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// PriceReport is a community complaint about the accuracy of a food's price.
type PriceReport struct {
	BaseModel
	FoodID          uuid.UUID    `json:"food_id" gorm:"type:uuid;not null;index"`
	ReportedBy      uuid.UUID    `json:"reported_by" gorm:"type:uuid;not null;index"`
	Description     string       `json:"description" gorm:"type:text;not null"`
	Status          ReportStatus `json:"status" gorm:"type:varchar(20);default:'open';index"`
	ResolutionNotes string       `json:"resolution_notes,omitempty" gorm:"type:text"`
	ReviewedBy      *uuid.UUID   `json:"reviewed_by,omitempty" gorm:"type:uuid"`
	ReviewedAt      *time.Time   `json:"reviewed_at,omitempty"`
	ResolvedBy      *uuid.UUID   `json:"resolved_by,omitempty" gorm:"type:uuid"`
	ResolvedAt      *time.Time   `json:"resolved_at,omitempty"`

	// Relationships
	Food *Food `json:"food,omitempty" gorm:"foreignKey:FoodID"`
}
