// internal/handlers/price_threshold.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/nutriforum/pricing-backend/internal/i18n"
	"github.com/nutriforum/pricing-backend/internal/models"
	"github.com/nutriforum/pricing-backend/internal/services"
	"github.com/nutriforum/pricing-backend/internal/utils"
)

type PriceThresholdHandler struct {
	thresholdService *services.ThresholdService
}

func NewPriceThresholdHandler(thresholdService *services.ThresholdService) *PriceThresholdHandler {
	return &PriceThresholdHandler{thresholdService: thresholdService}
}

type RecalculateThresholdsRequest struct {
	PriceUnit models.PriceUnit `json:"price_unit" validate:"required,price_unit"`
	Currency  string           `json:"currency" validate:"required,len=3"`
	Reason    string           `json:"reason,omitempty" validate:"max=1000"`
}

// GET /price-thresholds
func (h *PriceThresholdHandler) ListThresholds(c *gin.Context) {
	unit, ok := queryPriceUnit(c)
	if !ok {
		return
	}

	thresholds, err := h.thresholdService.List(c.Request.Context(), services.ThresholdFilter{
		Currency:  c.Query("currency"),
		PriceUnit: unit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, thresholds)
}

// POST /price-thresholds/recalculate
func (h *PriceThresholdHandler) Recalculate(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req RecalculateThresholdsRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.thresholdService.Recalculate(c.Request.Context(), req.PriceUnit, req.Currency, userID.String(), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	lang := utils.GetLangFromContext(c)
	message := i18n.KeyThresholdRecomputed
	if result.Skipped {
		message = i18n.KeyThresholdSkipped
	}
	utils.SuccessResponseWithMeta(c, result, gin.H{"message": i18n.T(lang, message)})
}
