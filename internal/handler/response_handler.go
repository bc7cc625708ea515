package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/feedback-sessions-api/internal/dto"
	"github.com/noah-isme/feedback-sessions-api/internal/models"
	appErrors "github.com/noah-isme/feedback-sessions-api/pkg/errors"
	"github.com/noah-isme/feedback-sessions-api/pkg/response"
)

type responseAPI interface {
	Submit(ctx context.Context, sessionID string, req dto.SubmitResponseRequest, claims *models.JWTClaims) (*dto.SubmitResponseResult, error)
}

// ResponseHandler accepts student submissions.
type ResponseHandler struct {
	responses responseAPI
}

// NewResponseHandler constructs a response handler.
func NewResponseHandler(responses responseAPI) *ResponseHandler {
	return &ResponseHandler{responses: responses}
}

// Submit godoc
// @Summary Submit feedback for a session
// @Tags Responses
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.SubmitResponseRequest true "Answers"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/responses [post]
func (h *ResponseHandler) Submit(c *gin.Context) {
	var req dto.SubmitResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	result, err := h.responses.Submit(c.Request.Context(), sessionIDParam(c), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}
