// internal/middleware/auth.go
package middleware

import (
	"strings"

	"github.com/nutriforum/pricing-backend/internal/i18n"
	"github.com/nutriforum/pricing-backend/internal/models"
	"github.com/nutriforum/pricing-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

// AuthRequired verifies the bearer token issued by the platform auth
// service and stores the caller identity on the context.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthRequired))
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
			c.Abort()
			return
		}

		claims, err := utils.ValidateJWT(parts[1])
		if err != nil {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthTokenExpired))
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Next()
	}
}

func ModeratorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := utils.GetUserRoleFromContext(c)
		if !models.UserRole(role).CanModerate() {
			utils.ForbiddenResponse(c, "")
			c.Abort()
			return
		}
		c.Next()
	}
}

func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := utils.GetUserRoleFromContext(c)
		if models.UserRole(role) != models.UserRoleAdmin {
			lang := utils.GetLangFromContext(c)
			utils.ForbiddenResponse(c, i18n.T(lang, i18n.KeyAdminAccessDenied))
			c.Abort()
			return
		}
		c.Next()
	}
}
