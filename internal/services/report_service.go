// internal/services/report_service.go
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nutriforum/pricing-backend/internal/database"
	"github.com/nutriforum/pricing-backend/internal/models"
	"github.com/nutriforum/pricing-backend/internal/pricing"
	"github.com/nutriforum/pricing-backend/internal/utils"
)

type ReportService struct {
	db  *gorm.DB
	now func() time.Time
}

type ReportFilter struct {
	utils.PaginationParams
	Status *models.ReportStatus `json:"status,omitempty"`
	FoodID *uuid.UUID           `json:"food_id,omitempty"`
}

type CreateReportRequest struct {
	FoodID      uuid.UUID `json:"food_id" validate:"required"`
	Description string    `json:"description" validate:"required,min=5,max=2000"`
}

type UpdateReportStatusRequest struct {
	Status          models.ReportStatus `json:"status" validate:"required,report_status"`
	ResolutionNotes string              `json:"resolution_notes,omitempty" validate:"max=2000"`
}

func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db, now: time.Now}
}

// Create files a new open report. Any authenticated user may report a food.
func (s *ReportService) Create(ctx context.Context, reporterID uuid.UUID, req CreateReportRequest) (*models.PriceReport, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, newValidationError("description", "is required")
	}
	if req.FoodID == uuid.Nil {
		return nil, newValidationError("food_id", "is required")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Food{}).Where("id = ?", req.FoodID).Count(&count).Error; err != nil {
		return nil, &StorageError{Op: "check reported food", Err: err}
	}
	if count == 0 {
		return nil, &NotFoundError{Resource: "food", ID: req.FoodID.String()}
	}

	report := &models.PriceReport{
		FoodID:      req.FoodID,
		ReportedBy:  reporterID,
		Description: description,
		Status:      models.ReportStatusOpen,
	}
	if err := s.db.WithContext(ctx).Create(report).Error; err != nil {
		return nil, &StorageError{Op: "create price report", Err: err}
	}

	logrus.WithFields(logrus.Fields{
		"report_id": report.ID,
		"food_id":   report.FoodID,
		"reporter":  reporterID,
	}).Info("Price report submitted")

	return report, nil
}

func (s *ReportService) List(ctx context.Context, filter ReportFilter) ([]models.PriceReport, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.PriceReport{})

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.FoodID != nil {
		query = query.Where("food_id = ?", *filter.FoodID)
	}
	if filter.Search != "" {
		query = query.Where("LOWER(description) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}

	// Get total count
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, &StorageError{Op: "count price reports", Err: err}
	}

	// Apply sorting and pagination
	allowedSortFields := []string{"created_at", "updated_at", "status", "resolved_at"}
	query = utils.ApplySort(query, filter.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var reports []models.PriceReport
	if err := query.Preload("Food").Find(&reports).Error; err != nil {
		return nil, 0, &StorageError{Op: "list price reports", Err: err}
	}

	return reports, total, nil
}

func (s *ReportService) Get(ctx context.Context, reportID uuid.UUID) (*models.PriceReport, error) {
	var report models.PriceReport
	if err := s.db.WithContext(ctx).Preload("Food").First(&report, "id = ?", reportID).Error; err != nil {
		if isNotFound(err) {
			return nil, &NotFoundError{Resource: "price report", ID: reportID.String()}
		}
		return nil, &StorageError{Op: "get price report", Err: err}
	}
	return &report, nil
}

// UpdateStatus moves a report forward through open, in_review and resolved.
// The status and notes are written with a compare-and-swap on the current
// status so two moderators cannot both apply a transition from the same state.
func (s *ReportService) UpdateStatus(ctx context.Context, reportID, moderatorID uuid.UUID, status models.ReportStatus, notes string) (*models.PriceReport, error) {
	if !status.Valid() {
		return nil, newValidationError("status", "must be one of open, in_review, resolved")
	}
	notes = strings.TrimSpace(notes)

	var report models.PriceReport
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := database.ForUpdate(tx).First(&report, "id = ?", reportID).Error; err != nil {
			if isNotFound(err) {
				return &NotFoundError{Resource: "price report", ID: reportID.String()}
			}
			return err
		}

		if err := pricing.ValidateTransition(report.Status, status, notes); err != nil {
			switch {
			case errors.Is(err, pricing.ErrResolutionNotesRequired):
				return newValidationError("resolution_notes", "is required to resolve a report")
			default:
				return newValidationError("status", "cannot move report from "+string(report.Status)+" to "+string(status))
			}
		}

		now := s.now().UTC()
		moderator := moderatorID
		updates := map[string]interface{}{
			"status":     status,
			"updated_at": now,
		}
		switch status {
		case models.ReportStatusInReview:
			updates["reviewed_by"] = moderator
			updates["reviewed_at"] = now
			report.ReviewedBy, report.ReviewedAt = &moderator, &now
		case models.ReportStatusResolved:
			updates["resolution_notes"] = notes
			updates["resolved_by"] = moderator
			updates["resolved_at"] = now
			report.ResolutionNotes = notes
			report.ResolvedBy, report.ResolvedAt = &moderator, &now
		}

		res := tx.Model(&models.PriceReport{}).
			Where("id = ? AND status = ?", report.ID, report.Status).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &ConflictError{Resource: "price report", ID: reportID.String()}
		}

		report.Status = status
		report.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, storageErr("update price report status", err)
	}

	logrus.WithFields(logrus.Fields{
		"report_id": reportID,
		"moderator": moderatorID,
		"status":    status,
	}).Info("Price report status updated")

	return &report, nil
}
