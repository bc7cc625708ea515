package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/feedback-sessions-api/internal/dto"
	"github.com/noah-isme/feedback-sessions-api/internal/models"
	appErrors "github.com/noah-isme/feedback-sessions-api/pkg/errors"
	"github.com/noah-isme/feedback-sessions-api/pkg/response"
)

type sessionAPI interface {
	Create(ctx context.Context, req dto.CreateSessionRequest, claims *models.JWTClaims) (*models.Session, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*dto.SessionDetail, error)
	List(ctx context.Context, query dto.SessionListQuery, claims *models.JWTClaims) ([]models.Session, *models.Pagination, error)
}

type sessionCloseAPI interface {
	Close(ctx context.Context, sessionID string, claims *models.JWTClaims) (*dto.CloseSessionResult, error)
	Recompile(ctx context.Context, sessionID string, claims *models.JWTClaims) (*dto.CloseSessionResult, error)
}

// SessionHandler exposes feedback session endpoints.
type SessionHandler struct {
	sessions sessionAPI
	closer   sessionCloseAPI
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(sessions sessionAPI, closer sessionCloseAPI) *SessionHandler {
	return &SessionHandler{sessions: sessions, closer: closer}
}

// Create godoc
// @Summary Open a feedback session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body dto.CreateSessionRequest true "Session definition"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	session, err := h.sessions.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// List godoc
// @Summary List feedback sessions
// @Tags Sessions
// @Produce json
// @Param status query string false "ACTIVE or CLOSED"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	var query dto.SessionListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	sessions, pagination, err := h.sessions.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, pagination)
}

// Get godoc
// @Summary Get a feedback session
// @Description Students receive the questionnaire only; instructors also get the response count and frozen stats.
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	detail, err := h.sessions.Get(c.Request.Context(), sessionIDParam(c), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Close godoc
// @Summary Close a session and freeze its statistics
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /sessions/{id}/close [post]
func (h *SessionHandler) Close(c *gin.Context) {
	result, err := h.closer.Close(c.Request.Context(), sessionIDParam(c), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Recompile godoc
// @Summary Rebuild the statistics of a closed session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /sessions/{id}/recompile [post]
func (h *SessionHandler) Recompile(c *gin.Context) {
	result, err := h.closer.Recompile(c.Request.Context(), sessionIDParam(c), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
