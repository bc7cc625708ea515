package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/feedback-sessions-api/internal/dto"
	"github.com/noah-isme/feedback-sessions-api/internal/models"
	appErrors "github.com/noah-isme/feedback-sessions-api/pkg/errors"
)

type sessionCloser interface {
	sessionReader
	CloseWithStats(ctx context.Context, sessionID string, stats models.CompiledStats, closedAt time.Time) error
	ReplaceStats(ctx context.Context, sessionID string, stats models.CompiledStats) error
}

type responseLister interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.Response, error)
}

// SessionCloseService freezes compiled statistics onto sessions.
type SessionCloseService struct {
	sessions     sessionCloser
	responses    responseLister
	cache        *CacheService
	metrics      *MetricsService
	fetchTimeout time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// NewSessionCloseService constructs the close service. A non-positive
// fetchTimeout leaves response reads bounded only by the caller's context.
func NewSessionCloseService(sessions sessionCloser, responses responseLister, cache *CacheService, metrics *MetricsService, fetchTimeout time.Duration, logger *zap.Logger) *SessionCloseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionCloseService{
		sessions:     sessions,
		responses:    responses,
		cache:        cache,
		metrics:      metrics,
		fetchTimeout: fetchTimeout,
		logger:       logger,
		now:          time.Now,
	}
}

// Close compiles the session's responses and closes it. Only the owning
// teacher or an admin may close, and only while the session is active.
func (s *SessionCloseService) Close(ctx context.Context, sessionID string, claims *models.JWTClaims) (*dto.CloseSessionResult, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	session, err := loadSession(ctx, s.sessions, sessionID)
	if err != nil {
		return nil, err
	}
	if !canManage(session.InstructorID, claims) {
		return nil, appErrors.ErrForbidden
	}
	if session.Status != models.SessionStatusActive {
		return nil, appErrors.ErrSessionClosed
	}
	return s.close(ctx, session, CloseTriggerManual)
}

// CloseDue closes a session on behalf of the system once its deadline passed.
// Sessions that are already closed are left untouched.
func (s *SessionCloseService) CloseDue(ctx context.Context, sessionID string) error {
	session, err := loadSession(ctx, s.sessions, sessionID)
	if err != nil {
		return err
	}
	if session.Status != models.SessionStatusActive {
		s.logger.Debug("session already closed", zap.String("session_id", sessionID))
		return nil
	}
	if _, err := s.close(ctx, session, CloseTriggerAuto); err != nil {
		if errors.Is(err, appErrors.ErrSessionClosed) {
			return nil
		}
		return err
	}
	return nil
}

// Recompile rebuilds the frozen statistics of a closed session. Admin only.
func (s *SessionCloseService) Recompile(ctx context.Context, sessionID string, claims *models.JWTClaims) (*dto.CloseSessionResult, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !claims.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	session, err := loadSession(ctx, s.sessions, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusClosed {
		return nil, appErrors.ErrSessionNotClosed
	}

	stats, err := s.compile(ctx, session.ID, CloseTriggerRecompile)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.ReplaceStats(ctx, session.ID, stats); err != nil {
		return nil, storeError(err, "failed to store recompiled stats")
	}
	s.invalidate(ctx, session.ID)
	s.metrics.IncSessionsClosed(CloseTriggerRecompile)

	s.logger.Info("session stats recompiled",
		zap.String("session_id", session.ID),
		zap.String("admin_id", claims.UserID),
		zap.Int("responses", stats.TotalResponses),
	)
	return &dto.CloseSessionResult{SessionID: session.ID, Status: session.Status, ClosedAt: session.ClosedAt, Stats: stats}, nil
}

func (s *SessionCloseService) close(ctx context.Context, session *models.Session, trigger string) (*dto.CloseSessionResult, error) {
	stats, err := s.compile(ctx, session.ID, trigger)
	if err != nil {
		return nil, err
	}

	closedAt := s.now().UTC()
	if err := s.sessions.CloseWithStats(ctx, session.ID, stats, closedAt); err != nil {
		return nil, storeError(err, "failed to close session")
	}
	s.invalidate(ctx, session.ID)
	s.metrics.IncSessionsClosed(trigger)

	s.logger.Info("session closed",
		zap.String("session_id", session.ID),
		zap.String("trigger", trigger),
		zap.Int("responses", stats.TotalResponses),
		zap.Float64("avg_rating", stats.AvgRating),
	)
	return &dto.CloseSessionResult{
		SessionID: session.ID,
		Status:    models.SessionStatusClosed,
		ClosedAt:  &closedAt,
		Stats:     stats,
	}, nil
}

// compile reads every response once and runs the aggregation engine.
// A failed read never reaches the engine.
func (s *SessionCloseService) compile(ctx context.Context, sessionID, trigger string) (models.CompiledStats, error) {
	fetchCtx := ctx
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}

	responses, err := s.responses.ListBySession(fetchCtx, sessionID)
	if err != nil {
		s.logger.Warn("fetch responses failed", zap.String("session_id", sessionID), zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) {
			return models.CompiledStats{}, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "timed out fetching responses")
		}
		return models.CompiledStats{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch responses")
	}

	start := time.Now()
	stats := CompileStats(responses)
	s.metrics.ObserveCompilation(trigger, len(responses), time.Since(start))
	return stats, nil
}

func (s *SessionCloseService) invalidate(ctx context.Context, sessionID string) {
	if err := s.cache.Invalidate(ctx, statsCacheKey(sessionID)); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// storeError passes typed store errors through and wraps everything else.
func storeError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
