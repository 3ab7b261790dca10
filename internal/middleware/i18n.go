// internal/middleware/i18n.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

func I18nMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("lang", resolveLanguage(c.GetHeader("Accept-Language")))
		c.Next()
	}
}

// resolveLanguage picks the first preference of headers like
// "tr-TR,tr;q=0.9,en;q=0.8".
func resolveLanguage(header string) string {
	if header == "" {
		return "en"
	}
	first := strings.TrimSpace(strings.Split(strings.Split(header, ",")[0], ";")[0])
	switch strings.ToLower(first) {
	case "tr", "tr-tr", "tr_tr":
		return "tr"
	default:
		return "en"
	}
}
