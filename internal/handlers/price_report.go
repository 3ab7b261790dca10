// internal/handlers/price_report.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/nutriforum/pricing-backend/internal/i18n"
	"github.com/nutriforum/pricing-backend/internal/services"
	"github.com/nutriforum/pricing-backend/internal/utils"
)

type PriceReportHandler struct {
	reportService *services.ReportService
}

func NewPriceReportHandler(reportService *services.ReportService) *PriceReportHandler {
	return &PriceReportHandler{reportService: reportService}
}

// GET /price-reports
func (h *PriceReportHandler) ListReports(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	status, ok := queryReportStatus(c)
	if !ok {
		return
	}
	foodID, ok := queryUUID(c, "food_id")
	if !ok {
		return
	}

	reports, total, err := h.reportService.List(c.Request.Context(), services.ReportFilter{
		PaginationParams: params,
		Status:           status,
		FoodID:           foodID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(reports, total, params))
}

// POST /price-reports
func (h *PriceReportHandler) CreateReport(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CreateReportRequest
	if !bindJSON(c, &req) {
		return
	}

	report, err := h.reportService.Create(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, report)
}

// GET /price-reports/:id
func (h *PriceReportHandler) GetReport(c *gin.Context) {
	reportID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	report, err := h.reportService.Get(c.Request.Context(), reportID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, report)
}

// PATCH /price-reports/:id
func (h *PriceReportHandler) UpdateStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	reportID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateReportStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	report, err := h.reportService.UpdateStatus(c.Request.Context(), reportID, userID, req.Status, req.ResolutionNotes)
	if err != nil {
		respondError(c, err)
		return
	}

	lang := utils.GetLangFromContext(c)
	utils.SuccessResponseWithMeta(c, report, gin.H{"message": i18n.T(lang, i18n.KeyReportUpdated)})
}
