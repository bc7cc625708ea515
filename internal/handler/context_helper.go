package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/feedback-sessions-api/internal/middleware"
	"github.com/noah-isme/feedback-sessions-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// sessionIDParam reads the :id path segment. Blank IDs are rejected by the services.
func sessionIDParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}
