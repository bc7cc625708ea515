package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/feedback-sessions-api/internal/dto"
	"github.com/noah-isme/feedback-sessions-api/internal/models"
	appErrors "github.com/noah-isme/feedback-sessions-api/pkg/errors"
)

func statsCacheKey(sessionID string) string {
	return "stats:" + sessionID
}

// StatsService serves the frozen statistics of closed sessions.
type StatsService struct {
	sessions sessionReader
	cache    *CacheService
	ttl      time.Duration
	logger   *zap.Logger
}

// NewStatsService constructs the stats service.
func NewStatsService(sessions sessionReader, cache *CacheService, ttl time.Duration, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{sessions: sessions, cache: cache, ttl: ttl, logger: logger}
}

// Get returns the compiled statistics and whether they came from cache.
func (s *StatsService) Get(ctx context.Context, sessionID string, claims *models.JWTClaims) (*dto.SessionStatsResult, bool, error) {
	if claims == nil {
		return nil, false, appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleTeacher && claims.Role != models.RoleAdmin {
		return nil, false, appErrors.ErrForbidden
	}

	key := statsCacheKey(sessionID)
	var cached dto.SessionStatsResult
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		if !canManage(cached.InstructorID, claims) {
			return nil, false, appErrors.ErrForbidden
		}
		return &cached, true, nil
	}

	session, err := loadSession(ctx, s.sessions, sessionID)
	if err != nil {
		return nil, false, err
	}
	if !canManage(session.InstructorID, claims) {
		return nil, false, appErrors.ErrForbidden
	}
	if session.Status != models.SessionStatusClosed || session.CompiledStats == nil {
		return nil, false, appErrors.ErrSessionNotClosed
	}

	result := &dto.SessionStatsResult{
		SessionID:    session.ID,
		Title:        session.Title,
		Subject:      session.Subject,
		Cohort:       session.Cohort,
		InstructorID: session.InstructorID,
		ClosedAt:     session.ClosedAt,
		Stats:        *session.CompiledStats,
	}
	if err := s.cache.Set(ctx, key, result, s.ttl); err != nil {
		s.logger.Debug("stats not cached", zap.String("session_id", sessionID), zap.Error(err))
	}
	return result, false, nil
}
