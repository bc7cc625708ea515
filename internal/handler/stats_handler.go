package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/feedback-sessions-api/internal/dto"
	"github.com/noah-isme/feedback-sessions-api/internal/middleware"
	"github.com/noah-isme/feedback-sessions-api/internal/models"
	"github.com/noah-isme/feedback-sessions-api/internal/service"
	"github.com/noah-isme/feedback-sessions-api/pkg/response"
)

type statsAPI interface {
	Get(ctx context.Context, sessionID string, claims *models.JWTClaims) (*dto.SessionStatsResult, bool, error)
}

type exportAPI interface {
	Render(ctx context.Context, sessionID, format string, claims *models.JWTClaims) (*service.ExportFile, error)
}

// StatsHandler serves the frozen statistics of closed sessions.
type StatsHandler struct {
	stats   statsAPI
	exports exportAPI
}

// NewStatsHandler constructs a stats handler.
func NewStatsHandler(stats statsAPI, exports exportAPI) *StatsHandler {
	return &StatsHandler{stats: stats, exports: exports}
}

// Get godoc
// @Summary Compiled statistics of a closed session
// @Tags Stats
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /sessions/{id}/stats [get]
func (h *StatsHandler) Get(c *gin.Context) {
	result, hit, err := h.stats.Get(c.Request.Context(), sessionIDParam(c), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Download the statistics of a closed session
// @Tags Stats
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Session ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /sessions/{id}/stats/export [get]
func (h *StatsHandler) Export(c *gin.Context) {
	file, err := h.exports.Render(c.Request.Context(), sessionIDParam(c), c.DefaultQuery("format", service.ExportFormatCSV), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
