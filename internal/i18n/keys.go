// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Authentication
	KeyAuthRequired          = "auth.required"
	KeyAuthInvalidToken      = "auth.invalid_token"
	KeyAuthTokenExpired      = "auth.token_expired"
	KeyModeratorAccessDenied = "auth.moderator_required"
	KeyAdminAccessDenied     = "auth.admin_required"

	// Foods and prices
	KeyFoodNotFound        = "food.not_found"
	KeyPriceUpdated        = "price.updated"
	KeyOverrideApplied     = "price.override_applied"
	KeyOverrideCleared     = "price.override_cleared"
	KeyPriceConflict       = "price.conflict"
	KeyThresholdNotFound   = "threshold.not_found"
	KeyThresholdRecomputed = "threshold.recalculated"
	KeyThresholdSkipped    = "threshold.sample_too_small"

	// Audits
	KeyAuditArchived        = "audit.archived"
	KeyAuditArchiveDisabled = "audit.archive_disabled"

	// Reports
	KeyReportNotFound = "report.not_found"
	KeyReportUpdated  = "report.updated"
	KeyReportConflict = "report.conflict"

	// Validation
	KeyValidationInvalid = "validation.invalid"

	// Generic
	KeyRateLimited   = "error.rate_limited"
	KeyInternalError = "error.internal"
	KeyNotFound      = "error.not_found"
)
