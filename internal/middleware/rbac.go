package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/feedback-sessions-api/internal/models"
	appErrors "github.com/noah-isme/feedback-sessions-api/pkg/errors"
	"github.com/noah-isme/feedback-sessions-api/pkg/response"
)

// RequireRoles admits only callers holding one of roles. Ownership checks
// stay in the services.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
