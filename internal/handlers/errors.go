// internal/handlers/errors.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nutriforum/pricing-backend/internal/i18n"
	"github.com/nutriforum/pricing-backend/internal/models"
	"github.com/nutriforum/pricing-backend/internal/services"
	"github.com/nutriforum/pricing-backend/internal/utils"
)

var notFoundKeys = map[string]string{
	"food":                 i18n.KeyFoodNotFound,
	"price report":         i18n.KeyReportNotFound,
	"price threshold":      i18n.KeyThresholdNotFound,
	"price threshold pair": i18n.KeyThresholdNotFound,
}

var conflictKeys = map[string]string{
	"food":         i18n.KeyPriceConflict,
	"price report": i18n.KeyReportConflict,
}

// respondError maps service errors onto the response envelope.
func respondError(c *gin.Context, err error) {
	lang := utils.GetLangFromContext(c)

	var (
		ve *services.ValidationError
		nf *services.NotFoundError
		ce *services.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		utils.ValidationErrorResponse(c, []utils.ValidationError{{Field: ve.Field, Message: ve.Message}})
	case errors.As(err, &nf):
		key, known := notFoundKeys[nf.Resource]
		if !known {
			key = i18n.KeyNotFound
		}
		utils.NotFoundResponse(c, key)
	case errors.As(err, &ce):
		key, known := conflictKeys[ce.Resource]
		if !known {
			utils.ConflictResponse(c, ce.Error())
			return
		}
		utils.ConflictResponse(c, i18n.T(lang, key))
	case errors.Is(err, services.ErrArchiveDisabled):
		utils.ServiceUnavailableResponse(c, i18n.T(lang, i18n.KeyAuditArchiveDisabled))
	default:
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		utils.InternalErrorResponse(c, i18n.T(lang, i18n.KeyInternalError))
	}
}

// bindJSON binds and validates a request body, writing the 400 itself.
func bindJSON(c *gin.Context, req interface{}) bool {
	lang := utils.GetLangFromContext(c)
	if err := c.ShouldBindJSON(req); err != nil {
		var fieldErr *services.ValidationError
		if errors.As(err, &fieldErr) {
			respondError(c, fieldErr)
			return false
		}
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}
	return userID, true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		invalidParam(c, name, "must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func invalidParam(c *gin.Context, field, message string) {
	utils.ValidationErrorResponse(c, []utils.ValidationError{{Field: field, Message: message}})
}

// Optional enum query parameters. An unknown value is rejected rather than
// silently ignored.

func queryPriceUnit(c *gin.Context) (*models.PriceUnit, bool) {
	raw := c.Query("price_unit")
	if raw == "" {
		return nil, true
	}
	unit := models.PriceUnit(raw)
	if !unit.Valid() {
		invalidParam(c, "price_unit", "must be one of per_100g, per_unit")
		return nil, false
	}
	return &unit, true
}

func queryCategory(c *gin.Context) (*models.PriceCategory, bool) {
	raw := c.Query("category")
	if raw == "" {
		return nil, true
	}
	category := models.PriceCategory(raw)
	if !category.Valid() {
		invalidParam(c, "category", "must be one of tier_1, tier_2, tier_3")
		return nil, false
	}
	return &category, true
}

func queryChangeType(c *gin.Context) (*models.PriceChangeType, bool) {
	raw := c.Query("change_type")
	if raw == "" {
		return nil, true
	}
	changeType := models.PriceChangeType(raw)
	if !changeType.Valid() {
		invalidParam(c, "change_type", "must be one of price_update, category_override, threshold_recalc, recipe_recalc")
		return nil, false
	}
	return &changeType, true
}

func queryReportStatus(c *gin.Context) (*models.ReportStatus, bool) {
	raw := c.Query("status")
	if raw == "" {
		return nil, true
	}
	status := models.ReportStatus(raw)
	if !status.Valid() {
		invalidParam(c, "status", "must be one of open, in_review, resolved")
		return nil, false
	}
	return &status, true
}

func queryUUID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		invalidParam(c, name, "must be a valid UUID")
		return nil, false
	}
	return &id, true
}
