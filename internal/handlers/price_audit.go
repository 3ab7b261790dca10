// internal/handlers/price_audit.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/nutriforum/pricing-backend/internal/i18n"
	"github.com/nutriforum/pricing-backend/internal/services"
	"github.com/nutriforum/pricing-backend/internal/utils"
)

type PriceAuditHandler struct {
	auditService   *services.AuditService
	archiveService *services.AuditArchiveService
}

func NewPriceAuditHandler(auditService *services.AuditService, archiveService *services.AuditArchiveService) *PriceAuditHandler {
	return &PriceAuditHandler{
		auditService:   auditService,
		archiveService: archiveService,
	}
}

// GET /price-audits
func (h *PriceAuditHandler) QueryAudits(c *gin.Context) {
	filter, ok := auditFilterFromQuery(c)
	if !ok {
		return
	}

	audits, err := h.auditService.Query(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, audits)
}

// POST /price-audits/export
//
// Accepts the same query filters as GET /price-audits. The limit is ignored;
// every matching entry is archived.
func (h *PriceAuditHandler) ExportAudits(c *gin.Context) {
	filter, ok := auditFilterFromQuery(c)
	if !ok {
		return
	}

	result, err := h.archiveService.Export(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	lang := utils.GetLangFromContext(c)
	utils.SuccessResponseWithMeta(c, result, gin.H{"message": i18n.T(lang, i18n.KeyAuditArchived)})
}

func auditFilterFromQuery(c *gin.Context) (services.AuditFilter, bool) {
	changeType, ok := queryChangeType(c)
	if !ok {
		return services.AuditFilter{}, false
	}
	unit, ok := queryPriceUnit(c)
	if !ok {
		return services.AuditFilter{}, false
	}
	foodID, ok := queryUUID(c, "food_id")
	if !ok {
		return services.AuditFilter{}, false
	}

	return services.AuditFilter{
		ChangeType: changeType,
		PriceUnit:  unit,
		FoodID:     foodID,
		Limit:      utils.GetLimitParam(c),
	}, true
}
