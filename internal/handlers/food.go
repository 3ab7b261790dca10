// internal/handlers/food.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/nutriforum/pricing-backend/internal/i18n"
	"github.com/nutriforum/pricing-backend/internal/models"
	"github.com/nutriforum/pricing-backend/internal/services"
	"github.com/nutriforum/pricing-backend/internal/utils"
)

type FoodHandler struct {
	priceService *services.PriceService
	auditService *services.AuditService
}

func NewFoodHandler(priceService *services.PriceService, auditService *services.AuditService) *FoodHandler {
	return &FoodHandler{
		priceService: priceService,
		auditService: auditService,
	}
}

type ApplyOverrideRequest struct {
	Category models.PriceCategory `json:"category" validate:"required,price_category"`
	Reason   string               `json:"reason" validate:"required,max=1000"`
}

type ClearOverrideRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=1000"`
}

// GET /foods
func (h *FoodHandler) ListFoods(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	unit, ok := queryPriceUnit(c)
	if !ok {
		return
	}
	category, ok := queryCategory(c)
	if !ok {
		return
	}

	foods, total, err := h.priceService.ListFoods(c.Request.Context(), services.FoodFilter{
		PaginationParams: params,
		Currency:         c.Query("currency"),
		PriceUnit:        unit,
		Category:         category,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(foods, total, params))
}

// GET /foods/:id
func (h *FoodHandler) GetFood(c *gin.Context) {
	foodID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	food, err := h.priceService.GetFood(c.Request.Context(), foodID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, food)
}

// PATCH /foods/:id/price
func (h *FoodHandler) UpdatePrice(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	foodID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.UpdatePriceRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.priceService.UpdatePrice(c.Request.Context(), foodID, userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	lang := utils.GetLangFromContext(c)
	utils.SuccessResponseWithMeta(c, result, gin.H{"message": i18n.T(lang, i18n.KeyPriceUpdated)})
}

// POST /foods/:id/price-override
func (h *FoodHandler) ApplyOverride(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	foodID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req ApplyOverrideRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.priceService.ApplyOverride(c.Request.Context(), foodID, userID, req.Category, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	lang := utils.GetLangFromContext(c)
	utils.SuccessResponseWithMeta(c, result, gin.H{"message": i18n.T(lang, i18n.KeyOverrideApplied)})
}

// DELETE /foods/:id/price-override
func (h *FoodHandler) ClearOverride(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	foodID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	// The body is optional on DELETE.
	var req ClearOverrideRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	result, err := h.priceService.ClearOverride(c.Request.Context(), foodID, userID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	lang := utils.GetLangFromContext(c)
	utils.SuccessResponseWithMeta(c, result, gin.H{"message": i18n.T(lang, i18n.KeyOverrideCleared)})
}

// GET /foods/:id/price-audits
func (h *FoodHandler) GetFoodAudits(c *gin.Context) {
	foodID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	changeType, ok := queryChangeType(c)
	if !ok {
		return
	}

	audits, err := h.auditService.Query(c.Request.Context(), services.AuditFilter{
		FoodID:     &foodID,
		ChangeType: changeType,
		Limit:      utils.GetLimitParam(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, audits)
}
