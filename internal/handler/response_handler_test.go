package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/feedback-sessions-api/internal/dto"
	"github.com/noah-isme/feedback-sessions-api/internal/models"
	appErrors "github.com/noah-isme/feedback-sessions-api/pkg/errors"
)

type responseAPIMock struct {
	req dto.SubmitResponseRequest
	err error
}

func (m *responseAPIMock) Submit(ctx context.Context, sessionID string, req dto.SubmitResponseRequest, claims *models.JWTClaims) (*dto.SubmitResponseResult, error) {
	m.req = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.SubmitResponseResult{ID: "response-1", SessionID: sessionID, SubmittedAt: time.Now().UTC()}, nil
}

func TestResponseHandlerSubmit(t *testing.T) {
	mock := &responseAPIMock{}
	h := NewResponseHandler(mock)

	body := []byte(`{"answers":[{"questionId":"q1","kind":"rating","value":5},{"questionId":"q2","kind":"freeText","value":"clear"}]}`)
	c, w := newGinContext(http.MethodPost, "/sessions/session-1/responses", body)
	c.Params = gin.Params{{Key: "id", Value: "session-1"}}
	withCaller(c, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	h.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, mock.req.Answers, 2)
	assert.JSONEq(t, `5`, string(mock.req.Answers[0].Value))
	assert.JSONEq(t, `"clear"`, string(mock.req.Answers[1].Value))
}

func TestResponseHandlerSubmitDuplicate(t *testing.T) {
	h := NewResponseHandler(&responseAPIMock{err: appErrors.ErrAlreadySubmitted})

	c, w := newGinContext(http.MethodPost, "/sessions/session-1/responses", []byte(`{"answers":[{"questionId":"q1","kind":"rating","value":5}]}`))
	c.Params = gin.Params{{Key: "id", Value: "session-1"}}
	h.Submit(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_SUBMITTED", decodeEnvelope(t, w).Error.Code)
}

func TestResponseHandlerSubmitMalformed(t *testing.T) {
	mock := &responseAPIMock{}
	h := NewResponseHandler(mock)

	c, w := newGinContext(http.MethodPost, "/sessions/session-1/responses", []byte(`not json`))
	h.Submit(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mock.req.Answers)
}
