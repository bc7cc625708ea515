package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/noah-isme/feedback-sessions-api/internal/handler"
	"github.com/noah-isme/feedback-sessions-api/internal/models"
	"github.com/noah-isme/feedback-sessions-api/internal/service"
	"github.com/noah-isme/feedback-sessions-api/pkg/config"
	appErrors "github.com/noah-isme/feedback-sessions-api/pkg/errors"
)

type staticTokens map[string]*models.JWTClaims

func (s staticTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrUnauthorized
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	cfg := &config.Config{Env: config.EnvProduction, APIPrefix: "/api/v1"}
	return newRouter(cfg, zap.NewNop(), routerDeps{
		tokens: staticTokens{
			"student": {UserID: "student-1", Role: models.RoleStudent},
			"teacher": {UserID: "teacher-1", Role: models.RoleTeacher},
		},
		metrics:   metrics,
		sessions:  handler.NewSessionHandler(nil, nil),
		responses: handler.NewResponseHandler(nil),
		stats:     handler.NewStatsHandler(nil, nil),
		ops:       handler.NewMetricsHandler(metrics, nil),
	})
}

func request(router *gin.Engine, method, path, token string) int {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(rec, req)
	return rec.Code
}

func TestRouterPublicEndpoints(t *testing.T) {
	router := newTestRouter()

	assert.Equal(t, http.StatusOK, request(router, http.MethodGet, "/health", ""))
	assert.Equal(t, http.StatusOK, request(router, http.MethodGet, "/ready", ""))
	assert.Equal(t, http.StatusOK, request(router, http.MethodGet, "/metrics", ""))
	assert.Equal(t, http.StatusNotFound, request(router, http.MethodGet, "/docs/index.html", ""))
}

func TestRouterRoleGates(t *testing.T) {
	router := newTestRouter()

	cases := []struct {
		method string
		path   string
		token  string
		want   int
	}{
		{http.MethodGet, "/api/v1/sessions", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/sessions", "unknown", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/sessions", "student", http.StatusForbidden},
		{http.MethodPost, "/api/v1/sessions/s1/close", "student", http.StatusForbidden},
		{http.MethodGet, "/api/v1/sessions/s1/stats", "student", http.StatusForbidden},
		{http.MethodGet, "/api/v1/sessions/s1/stats/export", "student", http.StatusForbidden},
		{http.MethodPost, "/api/v1/sessions/s1/responses", "teacher", http.StatusForbidden},
		{http.MethodPost, "/api/v1/sessions/s1/recompile", "teacher", http.StatusForbidden},
		{http.MethodGet, "/api/v1/metrics/summary", "teacher", http.StatusForbidden},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, request(router, tc.method, tc.path, tc.token), "%s %s as %q", tc.method, tc.path, tc.token)
	}
}
