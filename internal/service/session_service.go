package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/feedback-sessions-api/internal/dto"
	"github.com/noah-isme/feedback-sessions-api/internal/models"
	appErrors "github.com/noah-isme/feedback-sessions-api/pkg/errors"
)

const minChoiceOptions = 2

type sessionReader interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
}

type sessionStore interface {
	sessionReader
	Create(ctx context.Context, session *models.Session) error
	List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error)
}

type responseCounter interface {
	CountBySession(ctx context.Context, sessionID string) (int, error)
}

// SessionService manages feedback sessions.
type SessionService struct {
	repo      sessionStore
	responses responseCounter
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSessionService constructs the session service.
func NewSessionService(repo sessionStore, responses responseCounter, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &SessionService{repo: repo, responses: responses, validator: validate, logger: logger, now: time.Now}
	registerQuestionKind(svc.validator)
	return svc
}

func registerQuestionKind(v *validator.Validate) {
	_ = v.RegisterValidation("question_kind", func(fl validator.FieldLevel) bool {
		return models.AnswerKind(fl.Field().String()).Valid()
	})
}

// Create opens a new session owned by the caller.
func (s *SessionService) Create(ctx context.Context, req dto.CreateSessionRequest, claims *models.JWTClaims) (*models.Session, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleTeacher && claims.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}

	questions, err := buildQuestions(req.Questions)
	if err != nil {
		return nil, err
	}

	var closesAt *time.Time
	if req.ClosesAt != nil {
		deadline := req.ClosesAt.UTC()
		if !deadline.After(s.now()) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "closesAt must be in the future")
		}
		closesAt = &deadline
	}

	session := &models.Session{
		Title:        strings.TrimSpace(req.Title),
		Subject:      strings.TrimSpace(req.Subject),
		Cohort:       strings.TrimSpace(req.Cohort),
		InstructorID: claims.UserID,
		Status:       models.SessionStatusActive,
		Questions:    questions,
		ClosesAt:     closesAt,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	s.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("instructor_id", session.InstructorID),
		zap.Int("questions", len(questions)),
	)
	return session, nil
}

func buildQuestions(reqs []dto.QuestionRequest) (models.Questions, error) {
	seen := make(map[string]struct{}, len(reqs))
	questions := make(models.Questions, 0, len(reqs))
	for _, req := range reqs {
		id := strings.TrimSpace(req.ID)
		if _, dup := seen[id]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate question id %q", id))
		}
		seen[id] = struct{}{}

		kind := models.AnswerKind(req.Kind)
		question := models.Question{ID: id, Text: strings.TrimSpace(req.Text), Kind: kind, Required: req.Required}
		if kind == models.AnswerKindChoice {
			options, err := normalizeOptions(id, req.Options)
			if err != nil {
				return nil, err
			}
			question.Options = options
		} else if len(req.Options) > 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %q: options are only allowed for choice questions", id))
		}
		questions = append(questions, question)
	}
	return questions, nil
}

func normalizeOptions(questionID string, raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	options := make([]string, 0, len(raw))
	for _, option := range raw {
		option = strings.TrimSpace(option)
		if _, dup := seen[option]; dup || option == "" {
			continue
		}
		seen[option] = struct{}{}
		options = append(options, option)
	}
	if len(options) < minChoiceOptions {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %q: choice questions need at least %d distinct options", questionID, minChoiceOptions))
	}
	return options, nil
}

// Get returns a session. Students see the questionnaire only.
func (s *SessionService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*dto.SessionDetail, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	session, err := loadSession(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}

	if claims.Role == models.RoleStudent {
		session.CompiledStats = nil
		return &dto.SessionDetail{Session: *session}, nil
	}
	if !canManage(session.InstructorID, claims) {
		return nil, appErrors.ErrForbidden
	}

	count, err := s.responses.CountBySession(ctx, session.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count responses")
	}
	return &dto.SessionDetail{Session: *session, ResponseCount: count}, nil
}

// List returns sessions visible to the caller: admins see all, teachers their own.
func (s *SessionService) List(ctx context.Context, query dto.SessionListQuery, claims *models.JWTClaims) ([]models.Session, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}

	filter := models.SessionFilter{Page: query.Page, PageSize: query.PageSize}
	switch claims.Role {
	case models.RoleAdmin:
	case models.RoleTeacher:
		filter.InstructorID = claims.UserID
	default:
		return nil, nil, appErrors.ErrForbidden
	}

	if query.Status != "" {
		status := models.SessionStatus(strings.ToUpper(query.Status))
		if status != models.SessionStatusActive && status != models.SessionStatusClosed {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "status must be ACTIVE or CLOSED")
		}
		filter.Status = &status
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	sessions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func loadSession(ctx context.Context, repo sessionReader, id string) (*models.Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session id is required")
	}
	session, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}
	return session, nil
}

// canManage reports whether the caller is the session's instructor or an admin.
func canManage(instructorID string, claims *models.JWTClaims) bool {
	if claims == nil {
		return false
	}
	if claims.IsAdmin() {
		return true
	}
	return claims.Role == models.RoleTeacher && instructorID == claims.UserID
}
